package handler

import (
	"context"
	"net/http"

	"bazaar-api/internal/engine"
	"bazaar-api/internal/model"
	"bazaar-api/pkg/response"

	"github.com/shopspring/decimal"
)

type amountRequest struct {
	Amount int `json:"amount"`
}

type priceRequest struct {
	Price decimal.Decimal `json:"price"`
}

type moveRequest struct {
	Shop string `json:"shop"`
}

// GetListing handles GET /api/v1/listings/{listingID}
func (h *MarketHandler) GetListing(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "listingID")
	if err != nil {
		response.Error(w, err)
		return
	}

	listing, err := h.engine.Listing(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.OK(w, listing)
}

// Buy handles POST /api/v1/listings/{listingID}/buy
func (h *MarketHandler) Buy(w http.ResponseWriter, r *http.Request) {
	h.trade(w, r, h.engine.Buy)
}

// Sell handles POST /api/v1/listings/{listingID}/sell
func (h *MarketHandler) Sell(w http.ResponseWriter, r *http.Request) {
	h.trade(w, r, h.engine.Sell)
}

// Stock handles POST /api/v1/listings/{listingID}/stock
func (h *MarketHandler) Stock(w http.ResponseWriter, r *http.Request) {
	h.restock(w, r, h.engine.Stock)
}

// Withdraw handles POST /api/v1/listings/{listingID}/withdraw
func (h *MarketHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	h.restock(w, r, h.engine.Withdraw)
}

type tradeFunc func(ctx context.Context, actor engine.Actor, listingID int64, amount int) (*engine.TradeResult, error)

type stockFunc func(ctx context.Context, actor engine.Actor, listingID int64, amount int) (*engine.StockResult, error)

func (h *MarketHandler) trade(w http.ResponseWriter, r *http.Request, fn tradeFunc) {
	actor, id, amount, ok := h.amountCall(w, r)
	if !ok {
		return
	}

	var res *engine.TradeResult
	err := h.write(func() error {
		var err error
		res, err = fn(r.Context(), actor, id, amount)
		return err
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.OK(w, res)
}

func (h *MarketHandler) restock(w http.ResponseWriter, r *http.Request, fn stockFunc) {
	actor, id, amount, ok := h.amountCall(w, r)
	if !ok {
		return
	}

	var res *engine.StockResult
	err := h.write(func() error {
		var err error
		res, err = fn(r.Context(), actor, id, amount)
		return err
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.OK(w, res)
}

// amountCall parses the actor, listing ID and {"amount": n} body shared by trade routes.
// Amount validation is left to the engine.
func (h *MarketHandler) amountCall(w http.ResponseWriter, r *http.Request) (engine.Actor, int64, int, bool) {
	actor, err := actingAs(r)
	if err != nil {
		response.Error(w, err)
		return actor, 0, 0, false
	}
	id, err := idParam(r, "listingID")
	if err != nil {
		response.Error(w, err)
		return actor, 0, 0, false
	}
	var req amountRequest
	if err := decode(w, r, &req); err != nil {
		response.Error(w, err)
		return actor, 0, 0, false
	}
	return actor, id, req.Amount, true
}

// ToggleMode handles POST /api/v1/listings/{listingID}/toggle
func (h *MarketHandler) ToggleMode(w http.ResponseWriter, r *http.Request) {
	actor, err := actingAs(r)
	if err != nil {
		response.Error(w, err)
		return
	}
	id, err := idParam(r, "listingID")
	if err != nil {
		response.Error(w, err)
		return
	}

	var selling bool
	err = h.write(func() error {
		var err error
		selling, err = h.engine.ToggleMode(r.Context(), actor, id)
		return err
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.OK(w, map[string]interface{}{
		"listing_id": id,
		"is_selling": selling,
	})
}

// SetPrice handles PUT /api/v1/listings/{listingID}/price
func (h *MarketHandler) SetPrice(w http.ResponseWriter, r *http.Request) {
	actor, err := actingAs(r)
	if err != nil {
		response.Error(w, err)
		return
	}
	id, err := idParam(r, "listingID")
	if err != nil {
		response.Error(w, err)
		return
	}
	var req priceRequest
	if err := decode(w, r, &req); err != nil {
		response.Error(w, err)
		return
	}

	var listing *model.Listing
	err = h.write(func() error {
		if err := h.engine.SetPrice(r.Context(), actor, id, req.Price); err != nil {
			return err
		}
		var err error
		listing, err = h.engine.Listing(r.Context(), id)
		return err
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.OK(w, listing)
}

// MoveListing handles POST /api/v1/listings/{listingID}/move
func (h *MarketHandler) MoveListing(w http.ResponseWriter, r *http.Request) {
	actor, err := actingAs(r)
	if err != nil {
		response.Error(w, err)
		return
	}
	id, err := idParam(r, "listingID")
	if err != nil {
		response.Error(w, err)
		return
	}
	var req moveRequest
	if err := decode(w, r, &req); err != nil {
		response.Error(w, err)
		return
	}

	var shop *model.Shop
	err = h.write(func() error {
		var err error
		shop, err = h.engine.MoveListing(r.Context(), actor, id, req.Shop)
		return err
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.OK(w, map[string]interface{}{
		"listing_id": id,
		"shop":       shop,
	})
}

// MoveTargets handles GET /api/v1/listings/{listingID}/move-targets
func (h *MarketHandler) MoveTargets(w http.ResponseWriter, r *http.Request) {
	actor, err := actingAs(r)
	if err != nil {
		response.Error(w, err)
		return
	}
	id, err := idParam(r, "listingID")
	if err != nil {
		response.Error(w, err)
		return
	}

	shops, err := h.engine.MoveTargets(r.Context(), actor, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.OK(w, map[string]interface{}{
		"listing_id": id,
		"shops":      shops,
	})
}

// RemoveListing handles DELETE /api/v1/listings/{listingID}
func (h *MarketHandler) RemoveListing(w http.ResponseWriter, r *http.Request) {
	actor, err := actingAs(r)
	if err != nil {
		response.Error(w, err)
		return
	}
	id, err := idParam(r, "listingID")
	if err != nil {
		response.Error(w, err)
		return
	}

	if err := h.write(func() error { return h.engine.RemoveListing(r.Context(), actor, id) }); err != nil {
		h.fail(w, r, err)
		return
	}
	response.NoContent(w)
}
