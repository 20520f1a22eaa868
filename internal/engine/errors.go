package engine

import (
	"errors"
	"fmt"
)

// Kind classifies an engine failure. Every kind is terminal for the call.
type Kind int

const (
	KindUnknown Kind = iota
	KindNotFound
	KindDuplicateName
	KindPermissionDenied
	KindNotForSale
	KindWrongMode
	KindSelfTrade
	KindInsufficientStock
	KindInsufficientItems
	KindStockLimitExceeded
	KindInsufficientSpace
	KindNoAccount
	KindTransactionFailed
	KindShopNotEmpty
	KindListingNotEmpty
	KindInvalidAmount
	KindInvalidMove
	KindInvalidName
	KindInvalidItem
	KindStorage
)

var kindNames = map[Kind]string{
	KindUnknown:            "unknown",
	KindNotFound:           "not found",
	KindDuplicateName:      "duplicate name",
	KindPermissionDenied:   "permission denied",
	KindNotForSale:         "not for sale",
	KindWrongMode:          "wrong mode",
	KindSelfTrade:          "self trade",
	KindInsufficientStock:  "insufficient stock",
	KindInsufficientItems:  "insufficient items",
	KindStockLimitExceeded: "stock limit exceeded",
	KindInsufficientSpace:  "insufficient space",
	KindNoAccount:          "no account",
	KindTransactionFailed:  "transaction failed",
	KindShopNotEmpty:       "shop not empty",
	KindListingNotEmpty:    "listing not empty",
	KindInvalidAmount:      "invalid amount",
	KindInvalidMove:        "invalid move",
	KindInvalidName:        "invalid name",
	KindInvalidItem:        "invalid item",
	KindStorage:            "storage error",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error is the typed failure returned by every engine operation.
type Error struct {
	Kind      Kind
	Op        string
	Available int    // InsufficientStock, InsufficientItems
	Reason    string // TransactionFailed
	Err       error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	switch e.Kind {
	case KindInsufficientStock, KindInsufficientItems:
		msg = fmt.Sprintf("%s (available %d)", msg, e.Available)
	case KindTransactionFailed:
		if e.Reason != "" {
			msg = fmt.Sprintf("%s: %s", msg, e.Reason)
		}
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil && e.Kind != KindTransactionFailed {
		msg = msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error with the same kind, so the sentinels below work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// Sentinels for errors.Is.
var (
	ErrNotFound           = &Error{Kind: KindNotFound}
	ErrDuplicateName      = &Error{Kind: KindDuplicateName}
	ErrPermissionDenied   = &Error{Kind: KindPermissionDenied}
	ErrNotForSale         = &Error{Kind: KindNotForSale}
	ErrWrongMode          = &Error{Kind: KindWrongMode}
	ErrSelfTrade          = &Error{Kind: KindSelfTrade}
	ErrInsufficientStock  = &Error{Kind: KindInsufficientStock}
	ErrInsufficientItems  = &Error{Kind: KindInsufficientItems}
	ErrStockLimitExceeded = &Error{Kind: KindStockLimitExceeded}
	ErrInsufficientSpace  = &Error{Kind: KindInsufficientSpace}
	ErrNoAccount          = &Error{Kind: KindNoAccount}
	ErrTransactionFailed  = &Error{Kind: KindTransactionFailed}
	ErrShopNotEmpty       = &Error{Kind: KindShopNotEmpty}
	ErrListingNotEmpty    = &Error{Kind: KindListingNotEmpty}
	ErrInvalidAmount      = &Error{Kind: KindInvalidAmount}
	ErrInvalidMove        = &Error{Kind: KindInvalidMove}
	ErrInvalidName        = &Error{Kind: KindInvalidName}
	ErrInvalidItem        = &Error{Kind: KindInvalidItem}
	ErrStorage            = &Error{Kind: KindStorage}
)

// KindOf returns the kind of an engine error, or KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

func fail(op string, kind Kind) *Error {
	return &Error{Kind: kind, Op: op}
}

func failWrap(op string, kind Kind, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}
