package gateway

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"
)

// MemoryLedger is an in-process Ledger.
// Use this for development/testing or when the host has no ledger service.
type MemoryLedger struct {
	mu       sync.Mutex
	balances map[string]decimal.Decimal
	autoOpen *decimal.Decimal
}

// NewMemoryLedger creates an empty ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{balances: make(map[string]decimal.Decimal)}
}

// WithStartingBalance makes unknown identities get an account on first lookup.
func (l *MemoryLedger) WithStartingBalance(balance decimal.Decimal) *MemoryLedger {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.autoOpen = &balance
	return l
}

// Open creates or resets an account.
func (l *MemoryLedger) Open(identity string, balance decimal.Decimal) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[identity] = balance
}

// BalanceOf returns the balance and whether the account exists.
func (l *MemoryLedger) BalanceOf(identity string) (decimal.Decimal, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.balances[identity]
	return b, ok
}

func (l *MemoryLedger) AccountOf(ctx context.Context, identity string) (Account, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.balances[identity]; !ok {
		if l.autoOpen == nil || identity == "" {
			return nil, ErrNoAccount
		}
		l.balances[identity] = *l.autoOpen
	}
	return &memoryAccount{ledger: l, identity: identity}, nil
}

type memoryAccount struct {
	ledger   *MemoryLedger
	identity string
}

func (a *memoryAccount) Balance(ctx context.Context) (decimal.Decimal, error) {
	a.ledger.mu.Lock()
	defer a.ledger.mu.Unlock()
	return a.ledger.balances[a.identity], nil
}

func (a *memoryAccount) Debit(ctx context.Context, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return &Rejection{Reason: "negative amount"}
	}

	a.ledger.mu.Lock()
	defer a.ledger.mu.Unlock()

	balance := a.ledger.balances[a.identity]
	if balance.LessThan(amount) {
		return &Rejection{Reason: "insufficient funds"}
	}
	a.ledger.balances[a.identity] = balance.Sub(amount)
	return nil
}

func (a *memoryAccount) Credit(ctx context.Context, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return &Rejection{Reason: "negative amount"}
	}

	a.ledger.mu.Lock()
	defer a.ledger.mu.Unlock()
	a.ledger.balances[a.identity] = a.ledger.balances[a.identity].Add(amount)
	return nil
}

// MemoryInventory is an in-process Inventory with a per-identity unit capacity.
type MemoryInventory struct {
	mu       sync.Mutex
	items    map[string]map[ItemKind]int
	capacity map[string]int
	defaults int
}

// NewMemoryInventory creates an inventory where every identity can hold capacity units.
func NewMemoryInventory(capacity int) *MemoryInventory {
	return &MemoryInventory{
		items:    make(map[string]map[ItemKind]int),
		capacity: make(map[string]int),
		defaults: capacity,
	}
}

// SetCapacity overrides the unit capacity of one identity.
func (inv *MemoryInventory) SetCapacity(identity string, capacity int) {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	inv.capacity[identity] = capacity
}

// Give adds units without a capacity check.
func (inv *MemoryInventory) Give(identity string, kind ItemKind, n int) {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	inv.bag(identity)[kind] += n
}

// Count returns how many units of kind identity holds.
func (inv *MemoryInventory) Count(identity string, kind ItemKind) int {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	return inv.items[identity][kind]
}

func (inv *MemoryInventory) bag(identity string) map[ItemKind]int {
	b, ok := inv.items[identity]
	if !ok {
		b = make(map[ItemKind]int)
		inv.items[identity] = b
	}
	return b
}

func (inv *MemoryInventory) free(identity string) int {
	limit, ok := inv.capacity[identity]
	if !ok {
		limit = inv.defaults
	}
	used := 0
	for _, n := range inv.items[identity] {
		used += n
	}
	return limit - used
}

func (inv *MemoryInventory) CountMatching(ctx context.Context, identity string, kind ItemKind) (int, error) {
	return inv.Count(identity, kind), nil
}

func (inv *MemoryInventory) RemoveMatching(ctx context.Context, identity string, kind ItemKind, n int) (bool, error) {
	inv.mu.Lock()
	defer inv.mu.Unlock()

	b := inv.bag(identity)
	if b[kind] < n {
		return false, nil
	}
	b[kind] -= n
	if b[kind] == 0 {
		delete(b, kind)
	}
	return true, nil
}

func (inv *MemoryInventory) HasSpaceFor(ctx context.Context, identity string, kind ItemKind, n int) (bool, error) {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	return inv.free(identity) >= n, nil
}

func (inv *MemoryInventory) Insert(ctx context.Context, identity string, kind ItemKind, n int) (bool, error) {
	inv.mu.Lock()
	defer inv.mu.Unlock()

	if inv.free(identity) < n {
		return false, nil
	}
	inv.bag(identity)[kind] += n
	return true, nil
}

var (
	_ Ledger    = (*MemoryLedger)(nil)
	_ Inventory = (*MemoryInventory)(nil)
)
