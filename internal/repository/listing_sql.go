package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"bazaar-api/internal/model"

	"github.com/shopspring/decimal"
)

// SQLListingStore implements ListingStore on top of a Database.
type SQLListingStore struct {
	*Database
}

// NewListingStore creates a listing store sharing the given database.
func NewListingStore(db *Database) *SQLListingStore {
	return &SQLListingStore{Database: db}
}

const shopColumns = `s.id, s.name, s.description, s.icon, s.is_admin`

const listingColumns = `i.id, i.shop_id, i.item_data, i.quantity, i.is_selling, i.price, i.creator, s.is_admin`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanShop(row scanner) (*model.Shop, error) {
	var s model.Shop
	if err := row.Scan(&s.ID, &s.Name, &s.Description, &s.Icon, &s.IsAdmin); err != nil {
		return nil, err
	}
	return &s, nil
}

func scanListing(row scanner) (*model.Listing, error) {
	var (
		l       model.Listing
		creator sql.NullString
	)
	if err := row.Scan(&l.ID, &l.ShopID, &l.ItemData, &l.Quantity, &l.IsSelling, &l.Price, &creator, &l.AdminShop); err != nil {
		return nil, err
	}
	l.Creator = creator.String
	return &l, nil
}

// CreateShop inserts a shop after checking the name is free.
func (r *SQLListingStore) CreateShop(ctx context.Context, name, icon, description string, isAdmin bool) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := r.checkNameFree(ctx, tx, name, 0); err != nil {
		return 0, err
	}

	id, err := r.insert(ctx, tx,
		`INSERT INTO shops (name, description, icon, is_admin) VALUES (?, ?, ?, ?)`,
		name, description, icon, isAdmin)
	if err != nil {
		if r.dialect.isDuplicate(err) {
			return 0, ErrDuplicateName
		}
		return 0, fmt.Errorf("failed to create shop: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return id, nil
}

// checkNameFree returns ErrDuplicateName if a shop other than exceptID uses name.
func (r *SQLListingStore) checkNameFree(ctx context.Context, q queryer, name string, exceptID int64) error {
	var n int
	err := r.queryRow(ctx, q, `SELECT COUNT(*) FROM shops WHERE name = ? AND id <> ?`, name, exceptID).Scan(&n)
	if err != nil {
		return fmt.Errorf("failed to check shop name: %w", err)
	}
	if n > 0 {
		return ErrDuplicateName
	}
	return nil
}

func (r *SQLListingStore) shopWhere(ctx context.Context, from, where string, arg interface{}) (*model.Shop, error) {
	s, err := scanShop(r.queryRow(ctx, r.db, `SELECT `+shopColumns+` FROM `+from+` WHERE `+where, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get shop: %w", err)
	}
	return s, nil
}

func (r *SQLListingStore) ShopByID(ctx context.Context, id int64) (*model.Shop, error) {
	return r.shopWhere(ctx, "shops s", "s.id = ?", id)
}

func (r *SQLListingStore) ShopByName(ctx context.Context, name string) (*model.Shop, error) {
	return r.shopWhere(ctx, "shops s", "s.name = ?", name)
}

// ShopOf returns the shop owning a listing.
func (r *SQLListingStore) ShopOf(ctx context.Context, listingID int64) (*model.Shop, error) {
	return r.shopWhere(ctx, "shops s JOIN items i ON i.shop_id = s.id", "i.id = ?", listingID)
}

// ListShops returns all shops ordered by name.
func (r *SQLListingStore) ListShops(ctx context.Context) ([]model.Shop, error) {
	rows, err := r.query(ctx, r.db, `SELECT `+shopColumns+` FROM shops s ORDER BY s.name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list shops: %w", err)
	}
	defer rows.Close()

	shops := []model.Shop{}
	for rows.Next() {
		s, err := scanShop(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan shop: %w", err)
		}
		shops = append(shops, *s)
	}
	return shops, rows.Err()
}

func (r *SQLListingStore) CountListings(ctx context.Context, shopID int64) (int, error) {
	var n int
	if err := r.queryRow(ctx, r.db, `SELECT COUNT(*) FROM items WHERE shop_id = ?`, shopID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count listings: %w", err)
	}
	return n, nil
}

// SetShopName renames a shop, checking uniqueness inside the same transaction.
func (r *SQLListingStore) SetShopName(ctx context.Context, shopID int64, name string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := r.checkNameFree(ctx, tx, name, shopID); err != nil {
		return err
	}

	res, err := r.exec(ctx, tx, `UPDATE shops SET name = ? WHERE id = ?`, name, shopID)
	if err != nil {
		if r.dialect.isDuplicate(err) {
			return ErrDuplicateName
		}
		return fmt.Errorf("failed to rename shop: %w", err)
	}
	if err := r.requireRow(ctx, tx, res, "shops", shopID); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *SQLListingStore) SetShopDescription(ctx context.Context, shopID int64, description string) error {
	return r.updateShop(ctx, shopID, "description", description)
}

func (r *SQLListingStore) SetShopIcon(ctx context.Context, shopID int64, icon string) error {
	return r.updateShop(ctx, shopID, "icon", icon)
}

func (r *SQLListingStore) updateShop(ctx context.Context, shopID int64, column, value string) error {
	res, err := r.exec(ctx, r.db, `UPDATE shops SET `+column+` = ? WHERE id = ?`, value, shopID)
	if err != nil {
		return fmt.Errorf("failed to update shop %s: %w", column, err)
	}
	return r.requireRow(ctx, r.db, res, "shops", shopID)
}

// DeleteShop removes the shop row only.
func (r *SQLListingStore) DeleteShop(ctx context.Context, shopID int64) error {
	res, err := r.exec(ctx, r.db, `DELETE FROM shops WHERE id = ?`, shopID)
	if err != nil {
		return fmt.Errorf("failed to delete shop: %w", err)
	}
	return r.requireRow(ctx, r.db, res, "shops", shopID)
}

// CreateListing inserts a listing with quantity 0.
func (r *SQLListingStore) CreateListing(ctx context.Context, l *model.Listing) (int64, error) {
	id, err := r.insert(ctx, r.db,
		`INSERT INTO items (shop_id, item_data, quantity, is_selling, price, creator) VALUES (?, ?, 0, ?, ?, ?)`,
		l.ShopID, model.NormalizeItemData(l.ItemData), l.IsSelling, l.Price.StringFixed(model.PriceScale), nullString(l.Creator))
	if err != nil {
		return 0, fmt.Errorf("failed to create listing: %w", err)
	}
	return id, nil
}

func (r *SQLListingStore) Listing(ctx context.Context, id int64) (*model.Listing, error) {
	l, err := scanListing(r.queryRow(ctx, r.db,
		`SELECT `+listingColumns+` FROM items i JOIN shops s ON s.id = i.shop_id WHERE i.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get listing: %w", err)
	}
	return l, nil
}

// ListingsOf returns the listings of a shop in creation order.
func (r *SQLListingStore) ListingsOf(ctx context.Context, shopID int64) ([]model.Listing, error) {
	rows, err := r.query(ctx, r.db,
		`SELECT `+listingColumns+` FROM items i JOIN shops s ON s.id = i.shop_id WHERE i.shop_id = ? ORDER BY i.id`, shopID)
	if err != nil {
		return nil, fmt.Errorf("failed to list listings: %w", err)
	}
	defer rows.Close()

	listings := []model.Listing{}
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan listing: %w", err)
		}
		listings = append(listings, *l)
	}
	return listings, rows.Err()
}

func (r *SQLListingStore) Quantity(ctx context.Context, listingID int64) (int, error) {
	var n int
	err := r.queryRow(ctx, r.db, `SELECT quantity FROM items WHERE id = ?`, listingID).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get quantity: %w", err)
	}
	return n, nil
}

func (r *SQLListingStore) IsAdminShopOf(ctx context.Context, listingID int64) (bool, error) {
	shop, err := r.ShopOf(ctx, listingID)
	if err != nil {
		return false, err
	}
	return shop.IsAdmin, nil
}

func (r *SQLListingStore) Exists(ctx context.Context, listingID int64) (bool, error) {
	ok, err := r.exists(ctx, r.db, "items", listingID)
	if err != nil {
		return false, fmt.Errorf("failed to check listing: %w", err)
	}
	return ok, nil
}

// AdjustQuantity applies delta with a guarded UPDATE so the stored value never goes negative.
func (r *SQLListingStore) AdjustQuantity(ctx context.Context, listingID int64, delta int) error {
	res, err := r.exec(ctx, r.db,
		`UPDATE items SET quantity = quantity + ? WHERE id = ? AND quantity + ? >= 0`,
		delta, listingID, delta)
	if err != nil {
		return fmt.Errorf("failed to adjust quantity: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to adjust quantity: %w", err)
	}
	if n > 0 {
		return nil
	}

	ok, err := r.Exists(ctx, listingID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	if delta == 0 {
		return nil
	}
	return ErrUnderflow
}

func (r *SQLListingStore) SetPrice(ctx context.Context, listingID int64, price decimal.Decimal) error {
	res, err := r.exec(ctx, r.db, `UPDATE items SET price = ? WHERE id = ?`, price.StringFixed(model.PriceScale), listingID)
	if err != nil {
		return fmt.Errorf("failed to set price: %w", err)
	}
	return r.requireRow(ctx, r.db, res, "items", listingID)
}

// ToggleSelling flips is_selling and reads the new value back in one transaction.
func (r *SQLListingStore) ToggleSelling(ctx context.Context, listingID int64) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := r.exec(ctx, tx, `UPDATE items SET is_selling = NOT is_selling WHERE id = ?`, listingID)
	if err != nil {
		return false, fmt.Errorf("failed to toggle listing: %w", err)
	}
	if err := r.requireRow(ctx, tx, res, "items", listingID); err != nil {
		return false, err
	}

	var selling bool
	if err := r.queryRow(ctx, tx, `SELECT is_selling FROM items WHERE id = ?`, listingID).Scan(&selling); err != nil {
		return false, fmt.Errorf("failed to read listing mode: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return selling, nil
}

func (r *SQLListingStore) MoveListing(ctx context.Context, listingID, shopID int64) error {
	res, err := r.exec(ctx, r.db, `UPDATE items SET shop_id = ? WHERE id = ?`, shopID, listingID)
	if err != nil {
		return fmt.Errorf("failed to move listing: %w", err)
	}
	return r.requireRow(ctx, r.db, res, "items", listingID)
}

func (r *SQLListingStore) DeleteListing(ctx context.Context, listingID int64) error {
	res, err := r.exec(ctx, r.db, `DELETE FROM items WHERE id = ?`, listingID)
	if err != nil {
		return fmt.Errorf("failed to delete listing: %w", err)
	}
	return r.requireRow(ctx, r.db, res, "items", listingID)
}

// Stats returns statistics about the listing database.
func (r *SQLListingStore) Stats(ctx context.Context) (map[string]interface{}, error) {
	stats := map[string]interface{}{"driver": r.dialect.name}

	var shops, adminShops, listings int64
	var stocked sql.NullInt64
	if err := r.queryRow(ctx, r.db, `SELECT COUNT(*) FROM shops`).Scan(&shops); err != nil {
		return nil, err
	}
	if err := r.queryRow(ctx, r.db, `SELECT COUNT(*) FROM shops WHERE is_admin = ?`, true).Scan(&adminShops); err != nil {
		return nil, err
	}
	if err := r.queryRow(ctx, r.db, `SELECT COUNT(*), SUM(quantity) FROM items`).Scan(&listings, &stocked); err != nil {
		return nil, err
	}

	stats["shops"] = shops
	stats["admin_shops"] = adminShops
	stats["listings"] = listings
	stats["units_in_stock"] = stocked.Int64
	return stats, nil
}

// Ensure SQLListingStore implements ListingStore
var _ ListingStore = (*SQLListingStore)(nil)
