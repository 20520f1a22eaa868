package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/shopspring/decimal"
)

// HTTPLedger talks to a remote ledger service.
//
//	GET  /accounts/{identity}         200 {"balance":"12.50"} | 404 no account
//	POST /accounts/{identity}/debit   {"amount":"10.00"} 2xx ok | 402/409/422 {"reason":"..."}
//	POST /accounts/{identity}/credit  same as debit
type HTTPLedger struct {
	client *Client
}

// NewHTTPLedger creates a ledger gateway on top of client.
func NewHTTPLedger(client *Client) *HTTPLedger {
	return &HTTPLedger{client: client}
}

type balanceResponse struct {
	Balance decimal.Decimal `json:"balance"`
}

type amountRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type rejectionResponse struct {
	Reason string `json:"reason"`
}

func accountPath(identity string) string {
	return "/accounts/" + url.PathEscape(identity)
}

func (l *HTTPLedger) AccountOf(ctx context.Context, identity string) (Account, error) {
	if _, err := l.balance(ctx, identity); err != nil {
		return nil, err
	}
	return &httpAccount{ledger: l, identity: identity}, nil
}

func (l *HTTPLedger) balance(ctx context.Context, identity string) (decimal.Decimal, error) {
	var resp balanceResponse
	err := l.client.call(ctx, http.MethodGet, accountPath(identity), nil, &resp)
	var statusErr *StatusError
	if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
		return decimal.Zero, ErrNoAccount
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("ledger lookup failed: %w", err)
	}
	return resp.Balance, nil
}

// transfer posts a debit or credit and turns refusals into *Rejection.
func (l *HTTPLedger) transfer(ctx context.Context, identity, op string, amount decimal.Decimal) error {
	status, body, err := l.client.do(ctx, http.MethodPost, accountPath(identity)+"/"+op, amountRequest{Amount: amount})
	if err != nil {
		return fmt.Errorf("ledger %s failed: %w", op, err)
	}

	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusNotFound:
		return ErrNoAccount
	case status == http.StatusPaymentRequired, status == http.StatusConflict, status == http.StatusUnprocessableEntity:
		var rej rejectionResponse
		if json.Unmarshal(body, &rej) != nil || rej.Reason == "" {
			rej.Reason = http.StatusText(status)
		}
		return &Rejection{Reason: rej.Reason}
	default:
		return &StatusError{StatusCode: status, Body: body}
	}
}

type httpAccount struct {
	ledger   *HTTPLedger
	identity string
}

func (a *httpAccount) Balance(ctx context.Context) (decimal.Decimal, error) {
	return a.ledger.balance(ctx, a.identity)
}

func (a *httpAccount) Debit(ctx context.Context, amount decimal.Decimal) error {
	return a.ledger.transfer(ctx, a.identity, "debit", amount)
}

func (a *httpAccount) Credit(ctx context.Context, amount decimal.Decimal) error {
	return a.ledger.transfer(ctx, a.identity, "credit", amount)
}

var _ Ledger = (*HTTPLedger)(nil)
