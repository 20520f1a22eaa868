package model

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// PriceScale is the number of fraction digits a price is stored with.
const PriceScale = 2

// Listing is a single buy or sell offer inside a shop.
type Listing struct {
	ID        int64           `json:"id"`
	ShopID    int64           `json:"shop_id"`
	ItemData  string          `json:"item_data"`
	Quantity  int             `json:"quantity"`
	IsSelling bool            `json:"is_selling"`
	Price     decimal.Decimal `json:"price"`
	Creator   string          `json:"creator,omitempty"` // empty when the listing has no creator
	AdminShop bool            `json:"admin_shop"`
}

// HasCreator reports whether a creator identity is recorded.
func (l *Listing) HasCreator() bool {
	return l.Creator != ""
}

// IsCreator reports whether identity created the listing.
func (l *Listing) IsCreator(identity string) bool {
	return l.Creator != "" && l.Creator == identity
}

// TotalCost returns price * amount rounded to the stored price scale.
func (l *Listing) TotalCost(amount int) decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(amount))).Round(PriceScale)
}

// NormalizeItemData forces the unit count of a serialized item to 1.
// Only JSON objects carrying a numeric count member are rewritten;
// anything else is returned unchanged.
func NormalizeItemData(data string) string {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(data), &fields); err != nil {
		return data
	}

	changed := false
	for _, key := range []string{"count", "Count"} {
		raw, ok := fields[key]
		if !ok {
			continue
		}
		var n json.Number
		if err := json.Unmarshal(raw, &n); err != nil {
			continue
		}
		if string(n) != "1" {
			fields[key] = json.RawMessage("1")
			changed = true
		}
	}
	if !changed {
		return data
	}

	out, err := json.Marshal(fields)
	if err != nil {
		return data
	}
	return string(out)
}
