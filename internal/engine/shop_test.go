package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateShop(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.engine.CreateShop(ctx, alice, "Alpha", "chest", "", false)
	assert.ErrorIs(t, err, ErrPermissionDenied)

	_, err = h.engine.CreateShop(ctx, admin, "   ", "chest", "", false)
	assert.ErrorIs(t, err, ErrInvalidName)

	_, err = h.engine.CreateShop(ctx, admin, "Alpha", "", "", false)
	assert.ErrorIs(t, err, ErrInvalidItem)

	s, err := h.engine.CreateShop(ctx, admin, " Alpha ", "chest", "tools", false)
	require.NoError(t, err)
	assert.Equal(t, "Alpha", s.Name)
	assert.Equal(t, "tools", s.Description)

	_, err = h.engine.CreateShop(ctx, admin, "Alpha", "barrel", "", true)
	assert.ErrorIs(t, err, ErrDuplicateName)

	shops, err := h.engine.ListShops(ctx)
	require.NoError(t, err)
	require.Len(t, shops, 1)
	assert.Equal(t, "chest", shops[0].Icon)
	assert.False(t, shops[0].IsAdmin)
}

func TestRenameShop(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	alpha := h.shop(t, "Alpha", false)
	h.shop(t, "Beta", false)

	assert.ErrorIs(t, h.engine.RenameShop(ctx, alice, alpha.ID, "Gamma"), ErrPermissionDenied)
	assert.ErrorIs(t, h.engine.RenameShop(ctx, admin, alpha.ID, ""), ErrInvalidName)
	assert.ErrorIs(t, h.engine.RenameShop(ctx, admin, alpha.ID, "Beta"), ErrDuplicateName)
	assert.ErrorIs(t, h.engine.RenameShop(ctx, admin, 999, "Delta"), ErrNotFound)

	require.NoError(t, h.engine.RenameShop(ctx, admin, alpha.ID, "Gamma"))
	s, err := h.engine.Shop(ctx, alpha.ID)
	require.NoError(t, err)
	assert.Equal(t, "Gamma", s.Name)
}

func TestSetShopDescription(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	alpha := h.shop(t, "Alpha", false)
	server := h.shop(t, "Server", true)
	h.listing(t, alice, alpha.ID, true, "1.00")

	assert.ErrorIs(t, h.engine.SetShopDescription(ctx, bob, alpha.ID, "mine"), ErrPermissionDenied)
	assert.ErrorIs(t, h.engine.SetShopDescription(ctx, alice, server.ID, "mine"), ErrPermissionDenied)
	require.NoError(t, h.engine.SetShopDescription(ctx, alice, alpha.ID, "diamonds cheap"))
	require.NoError(t, h.engine.SetShopDescription(ctx, admin, server.ID, "official"))

	s, err := h.engine.Shop(ctx, alpha.ID)
	require.NoError(t, err)
	assert.Equal(t, "diamonds cheap", s.Description)
}

func TestSetShopIcon(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	alpha := h.shop(t, "Alpha", false)

	assert.ErrorIs(t, h.engine.SetShopIcon(ctx, alice, alpha.ID, "barrel"), ErrPermissionDenied)
	assert.ErrorIs(t, h.engine.SetShopIcon(ctx, admin, alpha.ID, ""), ErrInvalidItem)
	require.NoError(t, h.engine.SetShopIcon(ctx, admin, alpha.ID, "barrel"))

	s, err := h.engine.Shop(ctx, alpha.ID)
	require.NoError(t, err)
	assert.Equal(t, "barrel", s.Icon)
}

func TestDeleteShop(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	alpha := h.shop(t, "Alpha", false)
	l := h.listing(t, alice, alpha.ID, true, "1.00")

	assert.ErrorIs(t, h.engine.DeleteShop(ctx, alice, alpha.ID), ErrPermissionDenied)
	assert.ErrorIs(t, h.engine.DeleteShop(ctx, admin, alpha.ID), ErrShopNotEmpty)

	require.NoError(t, h.engine.RemoveListing(ctx, alice, l.ID))
	require.NoError(t, h.engine.DeleteShop(ctx, admin, alpha.ID))

	_, err := h.engine.Shop(ctx, alpha.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, h.engine.DeleteShop(ctx, admin, alpha.ID), ErrNotFound)
}

func TestListListings(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	alpha := h.shop(t, "Alpha", false)
	h.listing(t, alice, alpha.ID, true, "1.00")
	h.listing(t, bob, alpha.ID, false, "2.00")

	listings, err := h.engine.ListListings(ctx, alpha.ID)
	require.NoError(t, err)
	require.Len(t, listings, 2)
	assert.Equal(t, "alice", listings[0].Creator)
	assert.False(t, listings[1].IsSelling)

	_, err = h.engine.ListListings(ctx, 999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestErrorMessages(t *testing.T) {
	err := &Error{Kind: KindInsufficientStock, Op: "buy", Available: 3}
	assert.Equal(t, "buy: insufficient stock (available 3)", err.Error())

	err = &Error{Kind: KindTransactionFailed, Op: "sell", Reason: "insufficient funds"}
	assert.Equal(t, "sell: transaction failed: insufficient funds", err.Error())

	assert.Equal(t, KindSelfTrade, KindOf(fail("buy", KindSelfTrade)))
	assert.Equal(t, KindUnknown, KindOf(assert.AnError))
}
