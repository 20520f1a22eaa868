package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"bazaar-api/internal/cache"
	"bazaar-api/internal/model"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// CatalogSource is the authoritative read side of the marketplace.
type CatalogSource interface {
	ListShops(ctx context.Context) ([]model.Shop, error)
	ListListings(ctx context.Context, shopID int64) ([]model.Listing, error)
}

// Catalog serves shop and listing enumeration for display from a cache.
// Concurrent misses for the same key share one load.
type Catalog struct {
	source CatalogSource
	cache  cache.Cache
	ttl    time.Duration
	logger *zap.Logger
	group  singleflight.Group
	gen    atomic.Uint64
}

// NewCatalog creates a new catalog.
func NewCatalog(source CatalogSource, c cache.Cache, ttl time.Duration, logger *zap.Logger) *Catalog {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Catalog{
		source: source,
		cache:  c,
		ttl:    ttl,
		logger: logger.Named("catalog"),
	}
}

// Shops returns every shop.
func (c *Catalog) Shops(ctx context.Context) ([]model.Shop, error) {
	var shops []model.Shop
	err := c.load(ctx, "shops", &shops, func() (interface{}, error) {
		return c.source.ListShops(ctx)
	})
	return shops, err
}

// Listings returns the listings of a shop.
func (c *Catalog) Listings(ctx context.Context, shopID int64) ([]model.Listing, error) {
	var listings []model.Listing
	err := c.load(ctx, fmt.Sprintf("listings:%d", shopID), &listings, func() (interface{}, error) {
		return c.source.ListListings(ctx, shopID)
	})
	return listings, err
}

// Invalidate drops every cached view. Called after each successful mutation.
func (c *Catalog) Invalidate() {
	c.gen.Add(1)
}

func (c *Catalog) key(name string) string {
	return fmt.Sprintf("bazaar:catalog:%d:%s", c.gen.Load(), name)
}

func (c *Catalog) load(ctx context.Context, name string, dst interface{}, fetch func() (interface{}, error)) error {
	key := c.key(name)

	raw, err, _ := c.group.Do(key, func() (interface{}, error) {
		return c.cache.GetOrSet(ctx, key, c.ttl, func() ([]byte, error) {
			v, err := fetch()
			if err != nil {
				return nil, err
			}
			return json.Marshal(v)
		})
	})
	if err != nil {
		return err
	}

	if err := json.Unmarshal(raw.([]byte), dst); err != nil {
		c.logger.Warn("dropping undecodable cache entry", zap.String("key", key), zap.Error(err))
		_ = c.cache.Delete(ctx, key)
		v, err := fetch()
		if err != nil {
			return err
		}
		b, err := json.Marshal(v)
		if err != nil {
			return err
		}
		return json.Unmarshal(b, dst)
	}
	return nil
}
