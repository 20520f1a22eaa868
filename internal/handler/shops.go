package handler

import (
	"net/http"

	"bazaar-api/internal/model"
	"bazaar-api/pkg/apierror"
	"bazaar-api/pkg/response"

	"github.com/shopspring/decimal"
)

type createShopRequest struct {
	Name        string `json:"name"`
	Icon        string `json:"icon"`
	Description string `json:"description"`
	IsAdmin     bool   `json:"is_admin"`
}

type createListingRequest struct {
	ItemData  string          `json:"item_data"`
	IsSelling bool            `json:"is_selling"`
	Price     decimal.Decimal `json:"price"`
}

// ListShops handles GET /api/v1/shops
func (h *MarketHandler) ListShops(w http.ResponseWriter, r *http.Request) {
	shops, err := h.catalog.Shops(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.OK(w, map[string]interface{}{
		"shops": shops,
		"count": len(shops),
	})
}

// GetShop handles GET /api/v1/shops/{shopID}
func (h *MarketHandler) GetShop(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "shopID")
	if err != nil {
		response.Error(w, err)
		return
	}

	shop, err := h.engine.Shop(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.OK(w, shop)
}

// CreateShop handles POST /api/v1/shops
func (h *MarketHandler) CreateShop(w http.ResponseWriter, r *http.Request) {
	actor, err := actingAs(r)
	if err != nil {
		response.Error(w, err)
		return
	}
	var req createShopRequest
	if err := decode(w, r, &req); err != nil {
		response.Error(w, err)
		return
	}

	var shop *model.Shop
	err = h.write(func() error {
		var err error
		shop, err = h.engine.CreateShop(r.Context(), actor, req.Name, req.Icon, req.Description, req.IsAdmin)
		return err
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.Created(w, shop)
}

// UpdateShop handles PUT /api/v1/shops/{shopID}/{field} for name, description and icon.
func (h *MarketHandler) UpdateShop(field string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actingAs(r)
		if err != nil {
			response.Error(w, err)
			return
		}
		id, err := idParam(r, "shopID")
		if err != nil {
			response.Error(w, err)
			return
		}
		var req map[string]string
		if err := decode(w, r, &req); err != nil {
			response.Error(w, err)
			return
		}
		value, ok := req[field]
		if !ok {
			response.Error(w, apierror.ValidationError("missing field",
				apierror.FieldError{Field: field, Message: "is required"}))
			return
		}

		var shop *model.Shop
		err = h.write(func() error {
			var err error
			switch field {
			case "name":
				err = h.engine.RenameShop(r.Context(), actor, id, value)
			case "description":
				err = h.engine.SetShopDescription(r.Context(), actor, id, value)
			case "icon":
				err = h.engine.SetShopIcon(r.Context(), actor, id, value)
			default:
				err = apierror.NotFound("")
			}
			if err != nil {
				return err
			}
			shop, err = h.engine.Shop(r.Context(), id)
			return err
		})
		if err != nil {
			h.fail(w, r, err)
			return
		}
		response.OK(w, shop)
	}
}

// DeleteShop handles DELETE /api/v1/shops/{shopID}
func (h *MarketHandler) DeleteShop(w http.ResponseWriter, r *http.Request) {
	actor, err := actingAs(r)
	if err != nil {
		response.Error(w, err)
		return
	}
	id, err := idParam(r, "shopID")
	if err != nil {
		response.Error(w, err)
		return
	}

	if err := h.write(func() error { return h.engine.DeleteShop(r.Context(), actor, id) }); err != nil {
		h.fail(w, r, err)
		return
	}
	response.NoContent(w)
}

// ListListings handles GET /api/v1/shops/{shopID}/listings
func (h *MarketHandler) ListListings(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "shopID")
	if err != nil {
		response.Error(w, err)
		return
	}

	listings, err := h.catalog.Listings(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.OK(w, map[string]interface{}{
		"shop_id":  id,
		"listings": listings,
		"count":    len(listings),
	})
}

// CreateListing handles POST /api/v1/shops/{shopID}/listings
func (h *MarketHandler) CreateListing(w http.ResponseWriter, r *http.Request) {
	actor, err := actingAs(r)
	if err != nil {
		response.Error(w, err)
		return
	}
	id, err := idParam(r, "shopID")
	if err != nil {
		response.Error(w, err)
		return
	}
	var req createListingRequest
	if err := decode(w, r, &req); err != nil {
		response.Error(w, err)
		return
	}

	var listing *model.Listing
	err = h.write(func() error {
		var err error
		listing, err = h.engine.CreateListing(r.Context(), actor, id, req.ItemData, req.IsSelling, req.Price)
		return err
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.Created(w, listing)
}
