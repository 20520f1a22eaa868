package repository

import (
	"context"
	"errors"
	"time"

	"bazaar-api/internal/model"

	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound is returned when a shop, listing or notification does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicateName is returned when a shop name is already taken.
	ErrDuplicateName = errors.New("shop name already exists")

	// ErrUnderflow is returned when a quantity change would drop below zero.
	ErrUnderflow = errors.New("quantity would drop below zero")
)

// ListingStore defines shop and listing data access methods.
type ListingStore interface {
	// CreateShop inserts a shop. Returns ErrDuplicateName if the name is taken.
	CreateShop(ctx context.Context, name, icon, description string, isAdmin bool) (int64, error)

	ShopByID(ctx context.Context, id int64) (*model.Shop, error)
	ShopByName(ctx context.Context, name string) (*model.Shop, error)
	ShopOf(ctx context.Context, listingID int64) (*model.Shop, error)
	ListShops(ctx context.Context) ([]model.Shop, error)
	CountListings(ctx context.Context, shopID int64) (int, error)

	// SetShopName renames a shop. Returns ErrDuplicateName if another shop has the name.
	SetShopName(ctx context.Context, shopID int64, name string) error
	SetShopDescription(ctx context.Context, shopID int64, description string) error
	SetShopIcon(ctx context.Context, shopID int64, icon string) error

	// DeleteShop removes the shop row only. Callers guarantee it has no listings.
	DeleteShop(ctx context.Context, shopID int64) error

	// CreateListing inserts a listing with quantity 0 and a normalized item definition.
	CreateListing(ctx context.Context, listing *model.Listing) (int64, error)

	// Listing returns a snapshot of a listing joined with its shop's admin flag.
	Listing(ctx context.Context, id int64) (*model.Listing, error)
	ListingsOf(ctx context.Context, shopID int64) ([]model.Listing, error)
	Quantity(ctx context.Context, listingID int64) (int, error)
	IsAdminShopOf(ctx context.Context, listingID int64) (bool, error)
	Exists(ctx context.Context, listingID int64) (bool, error)

	// AdjustQuantity adds delta to the stored quantity. Returns ErrUnderflow
	// instead of letting the quantity go negative.
	AdjustQuantity(ctx context.Context, listingID int64, delta int) error
	SetPrice(ctx context.Context, listingID int64, price decimal.Decimal) error

	// ToggleSelling flips the selling flag and returns the new value.
	ToggleSelling(ctx context.Context, listingID int64) (bool, error)
	MoveListing(ctx context.Context, listingID, shopID int64) error
	DeleteListing(ctx context.Context, listingID int64) error

	// Stats returns statistics about the listing database.
	Stats(ctx context.Context) (map[string]interface{}, error)

	Close() error
}

// NotificationStore defines the store-and-forward mailbox.
type NotificationStore interface {
	Append(ctx context.Context, n *model.Notification) error

	// Unread returns unread notifications for recipient, oldest first.
	Unread(ctx context.Context, recipient string) ([]model.Notification, error)
	CountUnread(ctx context.Context, recipient string) (int, error)

	// MarkRead flags the given notifications of recipient as read.
	MarkRead(ctx context.Context, recipient string, ids []string) error

	// DeleteOlderThan removes notifications created before cutoff regardless of read state.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)

	Close() error
}
