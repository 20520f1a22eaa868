package engine

import (
	"context"
	"fmt"
	"time"

	"bazaar-api/internal/gateway"
	"bazaar-api/internal/model"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Buy purchases amount units from a selling listing.
func (e *Engine) Buy(ctx context.Context, actor Actor, listingID int64, amount int) (res *TradeResult, err error) {
	const op = "buy"
	defer e.observe(op, time.Now(), &err)

	if amount <= 0 {
		return nil, fail(op, KindInvalidAmount)
	}

	l, err := e.listing(ctx, op, listingID)
	if err != nil {
		return nil, err
	}
	if !l.IsSelling {
		return nil, fail(op, KindNotForSale)
	}
	if !l.AdminShop && l.IsCreator(actor.ID) {
		return nil, fail(op, KindSelfTrade)
	}
	if !l.AdminShop && l.Quantity < amount {
		return nil, &Error{Kind: KindInsufficientStock, Op: op, Available: l.Quantity}
	}

	kind := gateway.ItemKind(l.ItemData)
	ok, err := e.inventory.HasSpaceFor(ctx, actor.ID, kind, amount)
	if err != nil {
		return nil, inventoryErr(op, err)
	}
	if !ok {
		return nil, fail(op, KindInsufficientSpace)
	}

	total := l.TotalCost(amount)
	buyer, err := e.account(ctx, op, actor.ID)
	if err != nil {
		return nil, err
	}
	if err := buyer.Debit(ctx, total); err != nil {
		return nil, ledgerErr(op, err)
	}

	log := e.logger.With(zap.String("op", op), zap.Int64("listing_id", l.ID),
		zap.String("buyer", actor.ID), zap.Int("amount", amount), zap.String("total", total.StringFixed(model.PriceScale)))

	quantity := l.Quantity
	if !l.AdminShop {
		e.creditCreator(ctx, log, l, total)

		if err := e.listings.AdjustQuantity(ctx, l.ID, -amount); err != nil {
			log.Error("buyer charged but stock not decremented", zap.Error(err))
			return nil, storeErr(op, err)
		}
		quantity -= amount
	}

	ok, err = e.inventory.Insert(ctx, actor.ID, kind, amount)
	if err != nil || !ok {
		log.Error("buyer charged but goods not delivered", zap.Bool("inserted", ok), zap.Error(err))
		if err != nil {
			return nil, inventoryErr(op, err)
		}
		return nil, fail(op, KindInsufficientSpace)
	}

	e.metrics.AddTradeVolume(op, total.InexactFloat64())
	log.Info("listing bought")

	if !l.AdminShop {
		e.notify(ctx, l.Creator, fmt.Sprintf("%s bought %d x %s from your listing #%d for %s",
			e.displayName(ctx, actor.ID), amount, itemLabel(l.ItemData), l.ID, total.StringFixed(model.PriceScale)))
	}

	return &TradeResult{ListingID: l.ID, Amount: amount, TotalCost: total, Quantity: quantity}, nil
}

// creditCreator pays the listing creator. A missing account or a refused credit
// is logged and the trade continues.
func (e *Engine) creditCreator(ctx context.Context, log *zap.Logger, l *model.Listing, total decimal.Decimal) {
	if !l.HasCreator() {
		log.Warn("listing has no creator, payment not credited")
		return
	}

	acct, err := e.ledger.AccountOf(ctx, l.Creator)
	if err != nil {
		log.Warn("creator account not found, payment not credited", zap.String("creator", l.Creator), zap.Error(err))
		return
	}
	if err := acct.Credit(ctx, total); err != nil {
		log.Warn("creator credit failed, payment not credited", zap.String("creator", l.Creator), zap.Error(err))
	}
}

// Sell sells amount units to a buying listing.
func (e *Engine) Sell(ctx context.Context, actor Actor, listingID int64, amount int) (res *TradeResult, err error) {
	const op = "sell"
	defer e.observe(op, time.Now(), &err)

	if amount <= 0 {
		return nil, fail(op, KindInvalidAmount)
	}

	l, err := e.listing(ctx, op, listingID)
	if err != nil {
		return nil, err
	}
	if l.IsSelling {
		return nil, fail(op, KindWrongMode)
	}
	if !l.AdminShop && l.IsCreator(actor.ID) {
		return nil, fail(op, KindSelfTrade)
	}

	kind := gateway.ItemKind(l.ItemData)
	held, err := e.inventory.CountMatching(ctx, actor.ID, kind)
	if err != nil {
		return nil, inventoryErr(op, err)
	}
	if held < amount {
		return nil, &Error{Kind: KindInsufficientItems, Op: op, Available: held}
	}
	if !l.AdminShop && l.Quantity+amount > MaxStock {
		return nil, &Error{Kind: KindStockLimitExceeded, Op: op, Available: MaxStock - l.Quantity}
	}

	total := l.TotalCost(amount)
	seller, err := e.account(ctx, op, actor.ID)
	if err != nil {
		return nil, err
	}

	log := e.logger.With(zap.String("op", op), zap.Int64("listing_id", l.ID),
		zap.String("seller", actor.ID), zap.Int("amount", amount), zap.String("total", total.StringFixed(model.PriceScale)))

	// Admin shops pay out of thin air. A player listing without a recorded
	// creator is treated the same way.
	var payer gateway.Account
	if !l.AdminShop {
		if l.HasCreator() {
			if payer, err = e.account(ctx, op, l.Creator); err != nil {
				return nil, err
			}
		} else {
			log.Warn("listing has no creator, shop pays nothing")
		}
	}

	if payer != nil {
		if err := payer.Debit(ctx, total); err != nil {
			return nil, ledgerErr(op, err)
		}
	}

	ok, err := e.inventory.RemoveMatching(ctx, actor.ID, kind, amount)
	if err != nil || !ok {
		e.refund(ctx, log, payer, total)
		if err != nil {
			return nil, inventoryErr(op, err)
		}
		return nil, &Error{Kind: KindInsufficientItems, Op: op, Available: held}
	}

	if err := seller.Credit(ctx, total); err != nil {
		e.refund(ctx, log, payer, total)
		e.returnGoods(ctx, log, actor.ID, kind, amount)
		return nil, ledgerErr(op, err)
	}

	quantity := l.Quantity
	if !l.AdminShop {
		if err := e.listings.AdjustQuantity(ctx, l.ID, amount); err != nil {
			log.Error("seller paid but stock not incremented", zap.Error(err))
			return nil, storeErr(op, err)
		}
		quantity += amount
	}

	e.metrics.AddTradeVolume(op, total.InexactFloat64())
	log.Info("listing sold to")

	if !l.AdminShop {
		e.notify(ctx, l.Creator, fmt.Sprintf("%s sold %d x %s to your listing #%d for %s",
			e.displayName(ctx, actor.ID), amount, itemLabel(l.ItemData), l.ID, total.StringFixed(model.PriceScale)))
	}

	return &TradeResult{ListingID: l.ID, Amount: amount, TotalCost: total, Quantity: quantity}, nil
}

// refund returns a debit taken from payer. Failures are logged.
func (e *Engine) refund(ctx context.Context, log *zap.Logger, payer gateway.Account, total decimal.Decimal) {
	if payer == nil {
		return
	}
	if err := payer.Credit(ctx, total); err != nil {
		log.Error("refund failed, payer left charged", zap.Error(err))
	}
}

// returnGoods puts items taken from identity back. Failures are logged.
func (e *Engine) returnGoods(ctx context.Context, log *zap.Logger, identity string, kind gateway.ItemKind, n int) {
	ok, err := e.inventory.Insert(ctx, identity, kind, n)
	if err != nil || !ok {
		log.Error("failed to return goods", zap.String("identity", identity), zap.Bool("inserted", ok), zap.Error(err))
	}
}

// Stock moves amount units from the creator's inventory into their listing.
func (e *Engine) Stock(ctx context.Context, actor Actor, listingID int64, amount int) (res *StockResult, err error) {
	const op = "stock"
	defer e.observe(op, time.Now(), &err)

	if amount <= 0 {
		return nil, fail(op, KindInvalidAmount)
	}

	l, err := e.listing(ctx, op, listingID)
	if err != nil {
		return nil, err
	}
	if l.AdminShop || !l.IsCreator(actor.ID) {
		return nil, fail(op, KindPermissionDenied)
	}

	kind := gateway.ItemKind(l.ItemData)
	held, err := e.inventory.CountMatching(ctx, actor.ID, kind)
	if err != nil {
		return nil, inventoryErr(op, err)
	}
	if held < amount {
		return nil, &Error{Kind: KindInsufficientItems, Op: op, Available: held}
	}

	ok, err := e.inventory.RemoveMatching(ctx, actor.ID, kind, amount)
	if err != nil {
		return nil, inventoryErr(op, err)
	}
	if !ok {
		return nil, &Error{Kind: KindInsufficientItems, Op: op, Available: held}
	}

	if err := e.listings.AdjustQuantity(ctx, l.ID, amount); err != nil {
		log := e.logger.With(zap.String("op", op), zap.Int64("listing_id", l.ID))
		e.returnGoods(ctx, log, actor.ID, kind, amount)
		return nil, storeErr(op, err)
	}

	return &StockResult{ListingID: l.ID, Amount: amount, Quantity: l.Quantity + amount}, nil
}

// Withdraw moves amount units from a listing back into the actor's inventory.
// The quantity decrement is rolled back if the items cannot be delivered.
func (e *Engine) Withdraw(ctx context.Context, actor Actor, listingID int64, amount int) (res *StockResult, err error) {
	const op = "withdraw"
	defer e.observe(op, time.Now(), &err)

	if amount <= 0 {
		return nil, fail(op, KindInvalidAmount)
	}

	l, err := e.listing(ctx, op, listingID)
	if err != nil {
		return nil, err
	}
	if !canManage(actor, l) {
		return nil, fail(op, KindPermissionDenied)
	}
	if amount > l.Quantity {
		return nil, &Error{Kind: KindInsufficientStock, Op: op, Available: l.Quantity}
	}

	kind := gateway.ItemKind(l.ItemData)
	ok, err := e.inventory.HasSpaceFor(ctx, actor.ID, kind, amount)
	if err != nil {
		return nil, inventoryErr(op, err)
	}
	if !ok {
		return nil, fail(op, KindInsufficientSpace)
	}

	if err := e.listings.AdjustQuantity(ctx, l.ID, -amount); err != nil {
		return nil, storeErr(op, err)
	}

	ok, err = e.inventory.Insert(ctx, actor.ID, kind, amount)
	if err != nil || !ok {
		if rbErr := e.listings.AdjustQuantity(ctx, l.ID, amount); rbErr != nil {
			e.logger.Error("failed to roll back withdraw",
				zap.Int64("listing_id", l.ID), zap.Int("amount", amount), zap.Error(rbErr))
		}
		if err != nil {
			return nil, inventoryErr(op, err)
		}
		return nil, fail(op, KindInsufficientSpace)
	}

	return &StockResult{ListingID: l.ID, Amount: amount, Quantity: l.Quantity - amount}, nil
}
