package gateway

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

// HTTPInventory talks to the host's inventory service.
// Every call is POST /inventories/{identity}/{op} with {"kind":..., "amount":n}.
type HTTPInventory struct {
	client *Client
}

// NewHTTPInventory creates an inventory gateway on top of client.
func NewHTTPInventory(client *Client) *HTTPInventory {
	return &HTTPInventory{client: client}
}

type inventoryRequest struct {
	Kind   ItemKind `json:"kind"`
	Amount int      `json:"amount,omitempty"`
}

type countResponse struct {
	Count int `json:"count"`
}

type okResponse struct {
	OK bool `json:"ok"`
}

func inventoryPath(identity, op string) string {
	return "/inventories/" + url.PathEscape(identity) + "/" + op
}

func (i *HTTPInventory) CountMatching(ctx context.Context, identity string, kind ItemKind) (int, error) {
	var resp countResponse
	if err := i.client.call(ctx, http.MethodPost, inventoryPath(identity, "count"), inventoryRequest{Kind: kind}, &resp); err != nil {
		return 0, fmt.Errorf("inventory count failed: %w", err)
	}
	return resp.Count, nil
}

func (i *HTTPInventory) RemoveMatching(ctx context.Context, identity string, kind ItemKind, n int) (bool, error) {
	return i.mutate(ctx, identity, "remove", kind, n)
}

func (i *HTTPInventory) HasSpaceFor(ctx context.Context, identity string, kind ItemKind, n int) (bool, error) {
	return i.mutate(ctx, identity, "space", kind, n)
}

func (i *HTTPInventory) Insert(ctx context.Context, identity string, kind ItemKind, n int) (bool, error) {
	return i.mutate(ctx, identity, "insert", kind, n)
}

func (i *HTTPInventory) mutate(ctx context.Context, identity, op string, kind ItemKind, n int) (bool, error) {
	var resp okResponse
	if err := i.client.call(ctx, http.MethodPost, inventoryPath(identity, op), inventoryRequest{Kind: kind, Amount: n}, &resp); err != nil {
		return false, fmt.Errorf("inventory %s failed: %w", op, err)
	}
	return resp.OK, nil
}

var _ Inventory = (*HTTPInventory)(nil)
