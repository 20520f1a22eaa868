// Package gateway defines the host capabilities the marketplace engine calls:
// the currency ledger, per-user inventories, and identity/presence.
package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ItemKind identifies a stackable item. It is the serialized single-unit
// item definition stored on a listing.
type ItemKind string

// ErrNoAccount is returned by Ledger.AccountOf when the identity has no account.
var ErrNoAccount = errors.New("no ledger account")

// Rejection is returned when the ledger refuses a debit or credit.
type Rejection struct {
	Reason string
}

func (r *Rejection) Error() string {
	return fmt.Sprintf("ledger rejected: %s", r.Reason)
}

// Ledger resolves currency accounts.
type Ledger interface {
	AccountOf(ctx context.Context, identity string) (Account, error)
}

// Account is a single currency account in the external ledger.
type Account interface {
	Balance(ctx context.Context) (decimal.Decimal, error)
	Debit(ctx context.Context, amount decimal.Decimal) error
	Credit(ctx context.Context, amount decimal.Decimal) error
}

// Inventory is a per-user item container owned by the host.
type Inventory interface {
	CountMatching(ctx context.Context, identity string, kind ItemKind) (int, error)
	RemoveMatching(ctx context.Context, identity string, kind ItemKind, n int) (bool, error)
	HasSpaceFor(ctx context.Context, identity string, kind ItemKind, n int) (bool, error)
	Insert(ctx context.Context, identity string, kind ItemKind, n int) (bool, error)
}

// IdentityResolver maps identities to presence, display names and a delivery channel.
type IdentityResolver interface {
	IsReachable(ctx context.Context, identity string) (bool, error)
	Deliver(ctx context.Context, identity, message string) error
	DisplayName(ctx context.Context, identity string) (string, bool)
}

// Presence is the session side of an IdentityResolver: the host registers
// identities as they come and go, and drains delivered messages.
type Presence interface {
	IdentityResolver
	Register(ctx context.Context, identity, displayName string) error
	Unregister(ctx context.Context, identity string) error
	Touch(ctx context.Context, identity string) error
	Drain(ctx context.Context, identity string) ([]string, error)
}

// DisplayNameOr returns the resolved display name or the identity itself.
func DisplayNameOr(ctx context.Context, r IdentityResolver, identity string) string {
	if r != nil {
		if name, ok := r.DisplayName(ctx, identity); ok && name != "" {
			return name
		}
	}
	return identity
}
