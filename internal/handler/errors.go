package handler

import (
	"errors"
	"net/http"
	"strings"

	"bazaar-api/internal/engine"
	"bazaar-api/pkg/apierror"
)

type errorMapping struct {
	status int
	code   string
}

var kindErrors = map[engine.Kind]errorMapping{
	engine.KindNotFound:           {http.StatusNotFound, "NOT_FOUND"},
	engine.KindDuplicateName:      {http.StatusConflict, "DUPLICATE_NAME"},
	engine.KindPermissionDenied:   {http.StatusForbidden, "PERMISSION_DENIED"},
	engine.KindNotForSale:         {http.StatusConflict, "NOT_FOR_SALE"},
	engine.KindWrongMode:          {http.StatusConflict, "WRONG_MODE"},
	engine.KindSelfTrade:          {http.StatusConflict, "SELF_TRADE"},
	engine.KindInsufficientStock:  {http.StatusConflict, "INSUFFICIENT_STOCK"},
	engine.KindInsufficientItems:  {http.StatusConflict, "INSUFFICIENT_ITEMS"},
	engine.KindStockLimitExceeded: {http.StatusConflict, "STOCK_LIMIT_EXCEEDED"},
	engine.KindInsufficientSpace:  {http.StatusConflict, "INSUFFICIENT_SPACE"},
	engine.KindNoAccount:          {http.StatusPaymentRequired, "NO_ACCOUNT"},
	engine.KindTransactionFailed:  {http.StatusPaymentRequired, "TRANSACTION_FAILED"},
	engine.KindShopNotEmpty:       {http.StatusConflict, "SHOP_NOT_EMPTY"},
	engine.KindListingNotEmpty:    {http.StatusConflict, "LISTING_NOT_EMPTY"},
	engine.KindInvalidAmount:      {http.StatusBadRequest, "INVALID_AMOUNT"},
	engine.KindInvalidMove:        {http.StatusBadRequest, "INVALID_MOVE"},
	engine.KindInvalidName:        {http.StatusBadRequest, "INVALID_NAME"},
	engine.KindInvalidItem:        {http.StatusBadRequest, "INVALID_ITEM"},
}

// apiError converts an engine failure into its HTTP form. Storage and
// unexpected errors become a generic 500.
func apiError(err error) *apierror.Error {
	var apiErr *apierror.Error
	if errors.As(err, &apiErr) {
		return apiErr
	}

	var e *engine.Error
	if !errors.As(err, &e) {
		return apierror.InternalError("")
	}
	m, ok := kindErrors[e.Kind]
	if !ok {
		return apierror.InternalError("")
	}

	msg := e.Kind.String()
	if e.Kind == engine.KindTransactionFailed && e.Reason != "" {
		msg += ": " + e.Reason
	}
	out := apierror.New(m.status, m.code, strings.ToUpper(msg[:1])+msg[1:])

	switch e.Kind {
	case engine.KindInsufficientStock, engine.KindInsufficientItems,
		engine.KindStockLimitExceeded, engine.KindListingNotEmpty, engine.KindShopNotEmpty:
		out.WithAvailable(e.Available)
	}
	return out
}
