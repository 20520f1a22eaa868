// Package engine implements the marketplace transaction engine.
//
// The engine keeps no state of its own: every operation re-reads the listing
// store, calls the ledger and inventory gateways in a fixed order, and writes
// the result back. It performs no locking. Callers must invoke mutating
// operations from one serialized context.
//
// Ordering for trades is: verify, charge the payer, credit the payee and
// adjust stock (best effort for the listing creator), then move the goods.
// There is no atomicity across the ledger, the inventory and the store.
package engine

import (
	"context"
	"errors"
	"strings"
	"time"

	"bazaar-api/internal/gateway"
	"bazaar-api/internal/metrics"
	"bazaar-api/internal/model"
	"bazaar-api/internal/repository"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// MaxStock is the ceiling a sell may push a player listing's quantity to.
const MaxStock = 1024

// Actor is the identity invoking an operation. Admin is the caller's
// already-evaluated authorization predicate.
type Actor struct {
	ID    string
	Admin bool
}

// Notifier informs a listing owner of activity.
type Notifier interface {
	Notify(ctx context.Context, recipient, message string) error
}

// Deps are the collaborators of an Engine.
type Deps struct {
	Listings   repository.ListingStore
	Ledger     gateway.Ledger
	Inventory  gateway.Inventory
	Identities gateway.IdentityResolver
	Notifier   Notifier         // optional
	Metrics    *metrics.Metrics // optional
	Logger     *zap.Logger      // optional
}

// Engine orchestrates marketplace operations.
type Engine struct {
	listings   repository.ListingStore
	ledger     gateway.Ledger
	inventory  gateway.Inventory
	identities gateway.IdentityResolver
	notifier   Notifier
	metrics    *metrics.Metrics
	logger     *zap.Logger
}

// New creates an engine. It is built once at startup and passed to callers.
func New(d Deps) *Engine {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		listings:   d.Listings,
		ledger:     d.Ledger,
		inventory:  d.Inventory,
		identities: d.Identities,
		notifier:   d.Notifier,
		metrics:    d.Metrics,
		logger:     logger.Named("engine"),
	}
}

// TradeResult reports a completed buy or sell.
type TradeResult struct {
	ListingID int64           `json:"listing_id"`
	Amount    int             `json:"amount"`
	TotalCost decimal.Decimal `json:"total_cost"`
	Quantity  int             `json:"quantity"` // listing quantity after the trade
}

// StockResult reports a completed stock or withdraw.
type StockResult struct {
	ListingID int64 `json:"listing_id"`
	Amount    int   `json:"amount"`
	Quantity  int   `json:"quantity"`
}

// observe records the outcome of an operation. errp points at the named error result.
func (e *Engine) observe(op string, start time.Time, errp *error) {
	outcome := "ok"
	if *errp != nil {
		outcome = strings.ReplaceAll(KindOf(*errp).String(), " ", "_")
		if KindOf(*errp) == KindStorage || KindOf(*errp) == KindUnknown {
			e.logger.Error("operation failed", zap.String("op", op), zap.Error(*errp))
		} else {
			e.logger.Debug("operation rejected", zap.String("op", op), zap.Error(*errp))
		}
	}
	e.metrics.ObserveOperation(op, outcome, time.Since(start))
}

// storeErr maps a repository error to an engine error.
func storeErr(op string, err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return failWrap(op, KindNotFound, err)
	case errors.Is(err, repository.ErrDuplicateName):
		return failWrap(op, KindDuplicateName, err)
	case errors.Is(err, repository.ErrUnderflow):
		return failWrap(op, KindInsufficientStock, err)
	default:
		return failWrap(op, KindStorage, err)
	}
}

// ledgerErr maps a ledger error to an engine error.
func ledgerErr(op string, err error) error {
	var rej *gateway.Rejection
	switch {
	case errors.As(err, &rej):
		return &Error{Kind: KindTransactionFailed, Op: op, Reason: rej.Reason, Err: err}
	case errors.Is(err, gateway.ErrNoAccount):
		return failWrap(op, KindNoAccount, err)
	default:
		return &Error{Kind: KindTransactionFailed, Op: op, Reason: "ledger unavailable", Err: err}
	}
}

// inventoryErr wraps an inventory gateway failure.
func inventoryErr(op string, err error) error {
	return &Error{Kind: KindTransactionFailed, Op: op, Reason: "inventory unavailable", Err: err}
}

func (e *Engine) listing(ctx context.Context, op string, id int64) (*model.Listing, error) {
	l, err := e.listings.Listing(ctx, id)
	if err != nil {
		return nil, storeErr(op, err)
	}
	return l, nil
}

func (e *Engine) shop(ctx context.Context, op string, id int64) (*model.Shop, error) {
	s, err := e.listings.ShopByID(ctx, id)
	if err != nil {
		return nil, storeErr(op, err)
	}
	return s, nil
}

func (e *Engine) account(ctx context.Context, op, identity string) (gateway.Account, error) {
	if identity == "" {
		return nil, fail(op, KindNoAccount)
	}
	acct, err := e.ledger.AccountOf(ctx, identity)
	if err != nil {
		return nil, ledgerErr(op, err)
	}
	return acct, nil
}

// canManage reports whether actor may edit l: its creator or an admin.
func canManage(actor Actor, l *model.Listing) bool {
	return actor.Admin || l.IsCreator(actor.ID)
}

func (e *Engine) displayName(ctx context.Context, identity string) string {
	return gateway.DisplayNameOr(ctx, e.identities, identity)
}

// notify hands a message to the notifier. Failures are logged, never returned.
func (e *Engine) notify(ctx context.Context, recipient, message string) {
	if e.notifier == nil || recipient == "" {
		return
	}
	if err := e.notifier.Notify(ctx, recipient, message); err != nil {
		e.logger.Warn("failed to notify listing owner",
			zap.String("recipient", recipient), zap.Error(err))
	}
}
