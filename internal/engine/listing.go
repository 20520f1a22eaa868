package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"bazaar-api/internal/model"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CreateListing adds an empty listing to a shop. The actor becomes the creator.
func (e *Engine) CreateListing(ctx context.Context, actor Actor, shopID int64, itemData string, isSelling bool, price decimal.Decimal) (l *model.Listing, err error) {
	const op = "create_listing"
	defer e.observe(op, time.Now(), &err)

	price = price.Round(model.PriceScale)
	if !price.IsPositive() {
		return nil, fail(op, KindInvalidAmount)
	}
	if strings.TrimSpace(itemData) == "" {
		return nil, fail(op, KindInvalidItem)
	}

	shop, err := e.shop(ctx, op, shopID)
	if err != nil {
		return nil, err
	}
	if shop.IsAdmin && !actor.Admin {
		return nil, fail(op, KindPermissionDenied)
	}

	l = &model.Listing{
		ShopID:    shop.ID,
		ItemData:  itemData,
		IsSelling: isSelling,
		Price:     price,
		Creator:   actor.ID,
		AdminShop: shop.IsAdmin,
	}
	id, err := e.listings.CreateListing(ctx, l)
	if err != nil {
		return nil, storeErr(op, err)
	}

	created, err := e.listing(ctx, op, id)
	if err != nil {
		return nil, err
	}
	e.logger.Info("listing created", zap.Int64("listing_id", id), zap.Int64("shop_id", shop.ID),
		zap.String("creator", actor.ID), zap.Bool("selling", isSelling))
	return created, nil
}

// RemoveListing deletes an empty listing.
func (e *Engine) RemoveListing(ctx context.Context, actor Actor, listingID int64) (err error) {
	const op = "remove_listing"
	defer e.observe(op, time.Now(), &err)

	l, err := e.listing(ctx, op, listingID)
	if err != nil {
		return err
	}
	if !canManage(actor, l) {
		return fail(op, KindPermissionDenied)
	}
	if l.Quantity != 0 {
		return &Error{Kind: KindListingNotEmpty, Op: op, Available: l.Quantity}
	}

	if err := e.listings.DeleteListing(ctx, l.ID); err != nil {
		return storeErr(op, err)
	}
	return nil
}

// ToggleMode flips a listing between selling and buying and returns the new mode.
func (e *Engine) ToggleMode(ctx context.Context, actor Actor, listingID int64) (selling bool, err error) {
	const op = "toggle_mode"
	defer e.observe(op, time.Now(), &err)

	l, err := e.listing(ctx, op, listingID)
	if err != nil {
		return false, err
	}
	if !canManage(actor, l) {
		return false, fail(op, KindPermissionDenied)
	}

	selling, err = e.listings.ToggleSelling(ctx, l.ID)
	if err != nil {
		return false, storeErr(op, err)
	}
	return selling, nil
}

// SetPrice changes the unit price of a listing.
func (e *Engine) SetPrice(ctx context.Context, actor Actor, listingID int64, price decimal.Decimal) (err error) {
	const op = "set_price"
	defer e.observe(op, time.Now(), &err)

	price = price.Round(model.PriceScale)
	if !price.IsPositive() {
		return fail(op, KindInvalidAmount)
	}

	l, err := e.listing(ctx, op, listingID)
	if err != nil {
		return err
	}
	if !canManage(actor, l) {
		return fail(op, KindPermissionDenied)
	}

	if err := e.listings.SetPrice(ctx, l.ID, price); err != nil {
		return storeErr(op, err)
	}
	return nil
}

// MoveListing relocates a listing to the shop named dest. Admin shops take part
// in no moves. The creator is told when someone else moved their listing.
func (e *Engine) MoveListing(ctx context.Context, actor Actor, listingID int64, dest string) (to *model.Shop, err error) {
	const op = "move_listing"
	defer e.observe(op, time.Now(), &err)

	l, err := e.listing(ctx, op, listingID)
	if err != nil {
		return nil, err
	}
	if !canManage(actor, l) {
		return nil, fail(op, KindPermissionDenied)
	}
	if l.AdminShop {
		return nil, fail(op, KindPermissionDenied)
	}

	from, err := e.shop(ctx, op, l.ShopID)
	if err != nil {
		return nil, err
	}
	to, err = e.listings.ShopByName(ctx, dest)
	if err != nil {
		return nil, storeErr(op, err)
	}
	if to.IsAdmin {
		return nil, fail(op, KindPermissionDenied)
	}
	if to.ID == from.ID {
		return nil, fail(op, KindInvalidMove)
	}

	if err := e.listings.MoveListing(ctx, l.ID, to.ID); err != nil {
		return nil, storeErr(op, err)
	}

	if l.HasCreator() && !l.IsCreator(actor.ID) {
		e.notify(ctx, l.Creator, fmt.Sprintf("Your listing #%d (%s) was moved by %s from %s to %s",
			l.ID, itemLabel(l.ItemData), e.displayName(ctx, actor.ID), from.Name, to.Name))
	}
	return to, nil
}

// MoveTargets lists the shops a listing could be moved to.
func (e *Engine) MoveTargets(ctx context.Context, actor Actor, listingID int64) (shops []model.Shop, err error) {
	const op = "move_targets"
	defer e.observe(op, time.Now(), &err)

	l, err := e.listing(ctx, op, listingID)
	if err != nil {
		return nil, err
	}
	if !canManage(actor, l) || l.AdminShop {
		return nil, fail(op, KindPermissionDenied)
	}

	all, err := e.listings.ListShops(ctx)
	if err != nil {
		return nil, storeErr(op, err)
	}
	shops = make([]model.Shop, 0, len(all))
	for _, s := range all {
		if s.IsAdmin || s.ID == l.ShopID {
			continue
		}
		shops = append(shops, s)
	}
	return shops, nil
}

const maxLabel = 48

// itemLabel returns a short human-readable name for an item definition.
func itemLabel(data string) string {
	var fields map[string]interface{}
	if err := json.Unmarshal([]byte(data), &fields); err == nil {
		for _, key := range []string{"name", "Name", "id", "type"} {
			if s, ok := fields[key].(string); ok && s != "" {
				return s
			}
		}
	}
	if len(data) > maxLabel {
		return data[:maxLabel] + "..."
	}
	return data
}
