package router

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"bazaar-api/internal/cache"
	"bazaar-api/internal/engine"
	"bazaar-api/internal/gateway"
	"bazaar-api/internal/handler"
	"bazaar-api/internal/metrics"
	"bazaar-api/internal/middleware"
	"bazaar-api/internal/notify"
	"bazaar-api/internal/repository"
	"bazaar-api/internal/service"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const apiKey = "test-key"

type testServer struct {
	router     http.Handler
	ledger     *gateway.MemoryLedger
	inventory  *gateway.MemoryInventory
	deliveries *gatedInventory
	presence   *gateway.MemoryPresence
}

// gatedInventory can be switched to refuse every delivery while still
// reporting free space.
type gatedInventory struct {
	*gateway.MemoryInventory
	refuse atomic.Bool
}

func (g *gatedInventory) Insert(ctx context.Context, identity string, kind gateway.ItemKind, n int) (bool, error) {
	if g.refuse.Load() {
		return false, nil
	}
	return g.MemoryInventory.Insert(ctx, identity, kind, n)
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx := context.Background()
	logger := zaptest.NewLogger(t)

	db, err := repository.OpenSQLite(ctx, filepath.Join(t.TempDir(), "bazaar.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ts := &testServer{
		ledger:    gateway.NewMemoryLedger(),
		inventory: gateway.NewMemoryInventory(2048),
		presence:  gateway.NewMemoryPresence(),
	}
	ts.deliveries = &gatedInventory{MemoryInventory: ts.inventory}

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)
	dispatcher := notify.New(repository.NewNotificationStore(db), ts.presence, m, logger)

	eng := engine.New(engine.Deps{
		Listings:   repository.NewListingStore(db),
		Ledger:     ts.ledger,
		Inventory:  ts.deliveries,
		Identities: ts.presence,
		Notifier:   dispatcher,
		Metrics:    m,
		Logger:     logger,
	})

	memCache := cache.NewMemoryCache(time.Minute)
	t.Cleanup(func() { memCache.Close() })

	scheduler := service.NewSweepScheduler(dispatcher, service.SweepConfig{}, logger)

	ts.router = New(Config{
		Handler: handler.New("bazaar-api", "test", handler.Probe{Name: "store", Check: db.PingContext}),
		MarketHandler: handler.NewMarketHandler(eng,
			service.NewCatalog(eng, memCache, time.Minute, logger), logger),
		SessionHandler: handler.NewSessionHandler(
			service.NewSessionService(ts.presence, dispatcher, logger), dispatcher, logger),
		AdminHandler:   handler.NewAdminHandler(eng, scheduler, "sqlite", logger),
		AuthMiddleware: middleware.NewAuthMiddleware(middleware.AuthConfig{APIKeys: []string{apiKey}}),
		Gatherer:       registry,
		Logger:         logger,
	})
	return ts
}

type call struct {
	method string
	path   string
	actor  string
	admin  bool
	body   interface{}
}

func (ts *testServer) do(t *testing.T, c call) *httptest.ResponseRecorder {
	t.Helper()

	var body bytes.Buffer
	if c.body != nil {
		require.NoError(t, json.NewEncoder(&body).Encode(c.body))
	}
	req := httptest.NewRequest(c.method, c.path, &body)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", apiKey)
	if c.actor != "" {
		req.Header.Set("X-Actor-ID", c.actor)
	}
	if c.admin {
		req.Header.Set("X-Actor-Admin", "true")
	}

	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

// data decodes the success envelope into v.
func data(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	var env struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	require.True(t, env.Success, rec.Body.String())
	require.NoError(t, json.Unmarshal(env.Data, v))
}

type errorBody struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Available *int   `json:"available"`
}

func apiErr(t *testing.T, rec *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var env struct {
		Success bool      `json:"success"`
		Error   errorBody `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	require.False(t, env.Success)
	return env.Error
}

type idBody struct {
	ID int64 `json:"id"`
}

// market sets up a player shop with a 10 unit selling listing by alice at 2.50.
func (ts *testServer) market(t *testing.T) (shopID, listingID int64) {
	t.Helper()

	rec := ts.do(t, call{method: http.MethodPost, path: "/api/v1/shops", actor: "op", admin: true,
		body: map[string]interface{}{"name": "Market", "icon": "chest"}})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var shop idBody
	data(t, rec, &shop)

	rec = ts.do(t, call{method: http.MethodPost, path: fmt.Sprintf("/api/v1/shops/%d/listings", shop.ID), actor: "alice",
		body: map[string]interface{}{"item_data": "diamond", "is_selling": true, "price": "2.50"}})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var listing idBody
	data(t, rec, &listing)

	ts.inventory.Give("alice", "diamond", 10)
	rec = ts.do(t, call{method: http.MethodPost, path: fmt.Sprintf("/api/v1/listings/%d/stock", listing.ID), actor: "alice",
		body: map[string]int{"amount": 10}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	return shop.ID, listing.ID
}

func TestPublicRoutes(t *testing.T) {
	ts := newTestServer(t)

	for _, path := range []string{"/api/status", "/api/v1/health", "/api/v1/ready"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		ts.router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code, path)
		assert.NotEmpty(t, rec.Header().Get("X-Request-ID"), path)
	}
}

func TestHostRoutesRequireAPIKey(t *testing.T) {
	ts := newTestServer(t)

	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/shops", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMutationsRequireActor(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, call{method: http.MethodPost, path: "/api/v1/shops", body: map[string]string{"name": "x", "icon": "y"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBuyFlow(t *testing.T) {
	ts := newTestServer(t)
	shopID, listingID := ts.market(t)
	ts.ledger.Open("alice", decimal.Zero)
	ts.ledger.Open("bob", decimal.RequireFromString("100"))

	listingsPath := fmt.Sprintf("/api/v1/shops/%d/listings", shopID)
	var before struct {
		Listings []struct {
			Quantity int `json:"quantity"`
		} `json:"listings"`
	}
	data(t, ts.do(t, call{method: http.MethodGet, path: listingsPath}), &before)
	require.Len(t, before.Listings, 1)
	require.Equal(t, 10, before.Listings[0].Quantity)

	rec := ts.do(t, call{method: http.MethodPost, path: fmt.Sprintf("/api/v1/listings/%d/buy", listingID), actor: "bob",
		body: map[string]int{"amount": 3}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var res struct {
		Amount    int             `json:"amount"`
		TotalCost decimal.Decimal `json:"total_cost"`
		Quantity  int             `json:"quantity"`
	}
	data(t, rec, &res)
	assert.Equal(t, 3, res.Amount)
	assert.True(t, res.TotalCost.Equal(decimal.RequireFromString("7.50")), res.TotalCost.String())
	assert.Equal(t, 7, res.Quantity)

	bob, _ := ts.ledger.BalanceOf("bob")
	assert.Equal(t, "92.50", bob.StringFixed(2))
	alice, _ := ts.ledger.BalanceOf("alice")
	assert.Equal(t, "7.50", alice.StringFixed(2))
	assert.Equal(t, 3, ts.inventory.Count("bob", "diamond"))

	// the cached listing view was dropped by the trade
	var after struct {
		Listings []struct {
			Quantity int `json:"quantity"`
		} `json:"listings"`
	}
	data(t, ts.do(t, call{method: http.MethodGet, path: listingsPath}), &after)
	require.Len(t, after.Listings, 1)
	assert.Equal(t, 7, after.Listings[0].Quantity)
}

func TestFailedBuyRefreshesListings(t *testing.T) {
	ts := newTestServer(t)
	shopID, listingID := ts.market(t)
	ts.ledger.Open("alice", decimal.Zero)
	ts.ledger.Open("bob", decimal.RequireFromString("100"))

	listingsPath := fmt.Sprintf("/api/v1/shops/%d/listings", shopID)
	type listingsView struct {
		Listings []struct {
			Quantity int `json:"quantity"`
		} `json:"listings"`
	}
	var before listingsView
	data(t, ts.do(t, call{method: http.MethodGet, path: listingsPath}), &before)
	require.Len(t, before.Listings, 1)
	require.Equal(t, 10, before.Listings[0].Quantity)

	ts.deliveries.refuse.Store(true)
	rec := ts.do(t, call{method: http.MethodPost, path: fmt.Sprintf("/api/v1/listings/%d/buy", listingID), actor: "bob",
		body: map[string]int{"amount": 4}})
	assert.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())
	assert.Equal(t, "INSUFFICIENT_SPACE", apiErr(t, rec).Code)

	// the charge and the stock move stand even though nothing was delivered
	bob, _ := ts.ledger.BalanceOf("bob")
	assert.Equal(t, "90.00", bob.StringFixed(2))
	assert.Zero(t, ts.inventory.Count("bob", "diamond"))

	var after listingsView
	data(t, ts.do(t, call{method: http.MethodGet, path: listingsPath}), &after)
	require.Len(t, after.Listings, 1)
	assert.Equal(t, 6, after.Listings[0].Quantity)
}

func TestTradeErrors(t *testing.T) {
	ts := newTestServer(t)
	_, listingID := ts.market(t)
	ts.ledger.Open("bob", decimal.RequireFromString("1"))
	buy := fmt.Sprintf("/api/v1/listings/%d/buy", listingID)

	t.Run("insufficient stock", func(t *testing.T) {
		rec := ts.do(t, call{method: http.MethodPost, path: buy, actor: "bob", body: map[string]int{"amount": 11}})
		assert.Equal(t, http.StatusConflict, rec.Code)
		e := apiErr(t, rec)
		assert.Equal(t, "INSUFFICIENT_STOCK", e.Code)
		require.NotNil(t, e.Available)
		assert.Equal(t, 10, *e.Available)
	})

	t.Run("self trade", func(t *testing.T) {
		rec := ts.do(t, call{method: http.MethodPost, path: buy, actor: "alice", body: map[string]int{"amount": 1}})
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, "SELF_TRADE", apiErr(t, rec).Code)
	})

	t.Run("insufficient funds", func(t *testing.T) {
		rec := ts.do(t, call{method: http.MethodPost, path: buy, actor: "bob", body: map[string]int{"amount": 1}})
		assert.Equal(t, http.StatusPaymentRequired, rec.Code)
		assert.Equal(t, "TRANSACTION_FAILED", apiErr(t, rec).Code)
	})

	t.Run("zero amount", func(t *testing.T) {
		rec := ts.do(t, call{method: http.MethodPost, path: buy, actor: "bob", body: map[string]int{"amount": 0}})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "INVALID_AMOUNT", apiErr(t, rec).Code)
	})

	t.Run("missing listing", func(t *testing.T) {
		rec := ts.do(t, call{method: http.MethodPost, path: "/api/v1/listings/999/buy", actor: "bob", body: map[string]int{"amount": 1}})
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("bad id", func(t *testing.T) {
		rec := ts.do(t, call{method: http.MethodPost, path: "/api/v1/listings/abc/buy", actor: "bob", body: map[string]int{"amount": 1}})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("bad json", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, buy, strings.NewReader("{"))
		req.Header.Set("X-API-Key", apiKey)
		req.Header.Set("X-Actor-ID", "bob")
		rec := httptest.NewRecorder()
		ts.router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	assert.Equal(t, 0, ts.inventory.Count("bob", "diamond"), "no goods delivered")
}

func TestShopLifecycle(t *testing.T) {
	ts := newTestServer(t)
	shopID, listingID := ts.market(t)
	shopPath := fmt.Sprintf("/api/v1/shops/%d", shopID)

	rec := ts.do(t, call{method: http.MethodPut, path: shopPath + "/name", actor: "op", admin: true,
		body: map[string]string{"name": "Bazaar"}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var shop struct {
		Name string `json:"name"`
	}
	data(t, rec, &shop)
	assert.Equal(t, "Bazaar", shop.Name)

	rec = ts.do(t, call{method: http.MethodPut, path: shopPath + "/name", actor: "alice",
		body: map[string]string{"name": "Mine"}})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.do(t, call{method: http.MethodPut, path: shopPath + "/icon", actor: "op", admin: true,
		body: map[string]string{}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", apiErr(t, rec).Code)

	rec = ts.do(t, call{method: http.MethodDelete, path: shopPath, actor: "op", admin: true})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "SHOP_NOT_EMPTY", apiErr(t, rec).Code)

	listingPath := fmt.Sprintf("/api/v1/listings/%d", listingID)
	rec = ts.do(t, call{method: http.MethodDelete, path: listingPath, actor: "alice"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "LISTING_NOT_EMPTY", apiErr(t, rec).Code)

	rec = ts.do(t, call{method: http.MethodPost, path: listingPath + "/withdraw", actor: "alice", body: map[string]int{"amount": 10}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 10, ts.inventory.Count("alice", "diamond"))

	rec = ts.do(t, call{method: http.MethodDelete, path: listingPath, actor: "alice"})
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	rec = ts.do(t, call{method: http.MethodDelete, path: shopPath, actor: "op", admin: true})
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	var shops struct {
		Count int `json:"count"`
	}
	data(t, ts.do(t, call{method: http.MethodGet, path: "/api/v1/shops"}), &shops)
	assert.Equal(t, 0, shops.Count)
}

func TestListingManagement(t *testing.T) {
	ts := newTestServer(t)
	_, listingID := ts.market(t)
	listingPath := fmt.Sprintf("/api/v1/listings/%d", listingID)

	rec := ts.do(t, call{method: http.MethodPost, path: "/api/v1/shops", actor: "op", admin: true,
		body: map[string]interface{}{"name": "Annex", "icon": "barrel"}})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = ts.do(t, call{method: http.MethodPost, path: listingPath + "/toggle", actor: "alice"})
	require.Equal(t, http.StatusOK, rec.Code)
	var toggled struct {
		IsSelling bool `json:"is_selling"`
	}
	data(t, rec, &toggled)
	assert.False(t, toggled.IsSelling)

	rec = ts.do(t, call{method: http.MethodPut, path: listingPath + "/price", actor: "alice", body: map[string]string{"price": "3.333"}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var priced struct {
		Price decimal.Decimal `json:"price"`
	}
	data(t, rec, &priced)
	assert.Equal(t, "3.33", priced.Price.StringFixed(2))

	rec = ts.do(t, call{method: http.MethodPut, path: listingPath + "/price", actor: "bob", body: map[string]string{"price": "1"}})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.do(t, call{method: http.MethodGet, path: listingPath + "/move-targets", actor: "alice"})
	require.Equal(t, http.StatusOK, rec.Code)
	var targets struct {
		Shops []struct {
			Name string `json:"name"`
		} `json:"shops"`
	}
	data(t, rec, &targets)
	require.Len(t, targets.Shops, 1)
	assert.Equal(t, "Annex", targets.Shops[0].Name)

	rec = ts.do(t, call{method: http.MethodPost, path: listingPath + "/move", actor: "alice", body: map[string]string{"shop": "Annex"}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = ts.do(t, call{method: http.MethodPost, path: listingPath + "/move", actor: "alice", body: map[string]string{"shop": "Nowhere"}})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestNotificationReplayOnSession(t *testing.T) {
	ts := newTestServer(t)
	_, listingID := ts.market(t)
	ts.ledger.Open("alice", decimal.Zero)
	ts.ledger.Open("bob", decimal.RequireFromString("100"))

	rec := ts.do(t, call{method: http.MethodPost, path: fmt.Sprintf("/api/v1/listings/%d/buy", listingID), actor: "bob",
		body: map[string]int{"amount": 2}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var unread struct {
		Count         int `json:"count"`
		Notifications []struct {
			Message string `json:"message"`
		} `json:"notifications"`
	}
	data(t, ts.do(t, call{method: http.MethodGet, path: "/api/v1/notifications/alice/unread"}), &unread)
	require.Equal(t, 1, unread.Count)
	assert.Equal(t, fmt.Sprintf("bob bought 2 x diamond from your listing #%d for 5.00", listingID), unread.Notifications[0].Message)

	rec = ts.do(t, call{method: http.MethodPost, path: "/api/v1/sessions", body: map[string]string{"identity": "alice", "display_name": "Alice"}})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var started struct {
		Replayed int `json:"replayed"`
	}
	data(t, rec, &started)
	assert.Equal(t, 1, started.Replayed)

	var msgs struct {
		Messages []string `json:"messages"`
	}
	data(t, ts.do(t, call{method: http.MethodGet, path: "/api/v1/sessions/alice/messages"}), &msgs)
	assert.Len(t, msgs.Messages, 1)

	data(t, ts.do(t, call{method: http.MethodGet, path: "/api/v1/notifications/alice/unread"}), &unread)
	assert.Equal(t, 0, unread.Count)

	rec = ts.do(t, call{method: http.MethodDelete, path: "/api/v1/sessions/alice"})
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestAdminRoutes(t *testing.T) {
	ts := newTestServer(t)
	ts.market(t)

	rec := ts.do(t, call{method: http.MethodGet, path: "/api/v1/admin/stats"})
	require.Equal(t, http.StatusOK, rec.Code)
	var stats struct {
		StoreType string                 `json:"store_type"`
		Store     map[string]interface{} `json:"store"`
	}
	data(t, rec, &stats)
	assert.Equal(t, "sqlite", stats.StoreType)
	assert.Equal(t, "connected", stats.Store["status"])

	rec = ts.do(t, call{method: http.MethodPost, path: "/api/v1/admin/sweep"})
	require.Equal(t, http.StatusOK, rec.Code)
	var swept struct {
		Removed int64 `json:"removed"`
	}
	data(t, rec, &swept)
	assert.Equal(t, int64(0), swept.Removed)
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t)
	ts.market(t)

	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `bazaar_engine_operations_total{op="stock",outcome="ok"} 1`)
}
