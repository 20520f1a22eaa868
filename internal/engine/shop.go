package engine

import (
	"context"
	"strings"
	"time"

	"bazaar-api/internal/model"

	"go.uber.org/zap"
)

// CreateShop registers a new shop. Admin only.
func (e *Engine) CreateShop(ctx context.Context, actor Actor, name, icon, description string, isAdmin bool) (s *model.Shop, err error) {
	const op = "create_shop"
	defer e.observe(op, time.Now(), &err)

	if !actor.Admin {
		return nil, fail(op, KindPermissionDenied)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fail(op, KindInvalidName)
	}
	if strings.TrimSpace(icon) == "" {
		return nil, fail(op, KindInvalidItem)
	}

	id, err := e.listings.CreateShop(ctx, name, icon, description, isAdmin)
	if err != nil {
		return nil, storeErr(op, err)
	}

	e.logger.Info("shop created", zap.Int64("shop_id", id), zap.String("name", name),
		zap.Bool("admin", isAdmin), zap.String("by", actor.ID))
	return e.shop(ctx, op, id)
}

// RenameShop changes a shop's name. Admin only.
func (e *Engine) RenameShop(ctx context.Context, actor Actor, shopID int64, name string) (err error) {
	const op = "rename_shop"
	defer e.observe(op, time.Now(), &err)

	if !actor.Admin {
		return fail(op, KindPermissionDenied)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return fail(op, KindInvalidName)
	}

	if err := e.listings.SetShopName(ctx, shopID, name); err != nil {
		return storeErr(op, err)
	}
	return nil
}

// SetShopDescription updates a shop's description. Besides admins, anyone
// who created a listing in a player shop may edit it.
func (e *Engine) SetShopDescription(ctx context.Context, actor Actor, shopID int64, description string) (err error) {
	const op = "set_shop_description"
	defer e.observe(op, time.Now(), &err)

	s, err := e.shop(ctx, op, shopID)
	if err != nil {
		return err
	}
	if !actor.Admin {
		allowed, err := e.hasListingIn(ctx, op, actor, s)
		if err != nil {
			return err
		}
		if !allowed {
			return fail(op, KindPermissionDenied)
		}
	}

	if err := e.listings.SetShopDescription(ctx, s.ID, description); err != nil {
		return storeErr(op, err)
	}
	return nil
}

func (e *Engine) hasListingIn(ctx context.Context, op string, actor Actor, s *model.Shop) (bool, error) {
	if s.IsAdmin || actor.ID == "" {
		return false, nil
	}
	listings, err := e.listings.ListingsOf(ctx, s.ID)
	if err != nil {
		return false, storeErr(op, err)
	}
	for i := range listings {
		if listings[i].IsCreator(actor.ID) {
			return true, nil
		}
	}
	return false, nil
}

// SetShopIcon replaces a shop's icon item. Admin only.
func (e *Engine) SetShopIcon(ctx context.Context, actor Actor, shopID int64, icon string) (err error) {
	const op = "set_shop_icon"
	defer e.observe(op, time.Now(), &err)

	if !actor.Admin {
		return fail(op, KindPermissionDenied)
	}
	if strings.TrimSpace(icon) == "" {
		return fail(op, KindInvalidItem)
	}

	if err := e.listings.SetShopIcon(ctx, shopID, icon); err != nil {
		return storeErr(op, err)
	}
	return nil
}

// DeleteShop removes a shop that holds no listings. Admin only.
func (e *Engine) DeleteShop(ctx context.Context, actor Actor, shopID int64) (err error) {
	const op = "delete_shop"
	defer e.observe(op, time.Now(), &err)

	if !actor.Admin {
		return fail(op, KindPermissionDenied)
	}

	s, err := e.shop(ctx, op, shopID)
	if err != nil {
		return err
	}
	n, err := e.listings.CountListings(ctx, s.ID)
	if err != nil {
		return storeErr(op, err)
	}
	if n > 0 {
		return &Error{Kind: KindShopNotEmpty, Op: op, Available: n}
	}

	if err := e.listings.DeleteShop(ctx, s.ID); err != nil {
		return storeErr(op, err)
	}
	e.logger.Info("shop deleted", zap.Int64("shop_id", s.ID), zap.String("name", s.Name), zap.String("by", actor.ID))
	return nil
}

// Shop returns a single shop.
func (e *Engine) Shop(ctx context.Context, shopID int64) (*model.Shop, error) {
	return e.shop(ctx, "shop", shopID)
}

// ListShops returns every shop.
func (e *Engine) ListShops(ctx context.Context) ([]model.Shop, error) {
	shops, err := e.listings.ListShops(ctx)
	if err != nil {
		return nil, storeErr("list_shops", err)
	}
	return shops, nil
}

// ListListings returns the listings of a shop.
func (e *Engine) ListListings(ctx context.Context, shopID int64) ([]model.Listing, error) {
	const op = "list_listings"
	if _, err := e.shop(ctx, op, shopID); err != nil {
		return nil, err
	}
	listings, err := e.listings.ListingsOf(ctx, shopID)
	if err != nil {
		return nil, storeErr(op, err)
	}
	return listings, nil
}

// Listing returns a single listing snapshot.
func (e *Engine) Listing(ctx context.Context, listingID int64) (*model.Listing, error) {
	return e.listing(ctx, "listing", listingID)
}

// Stats returns store statistics.
func (e *Engine) Stats(ctx context.Context) (map[string]interface{}, error) {
	stats, err := e.listings.Stats(ctx)
	if err != nil {
		return nil, storeErr("stats", err)
	}
	return stats, nil
}
