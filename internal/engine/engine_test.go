package engine

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"bazaar-api/internal/gateway"
	"bazaar-api/internal/metrics"
	"bazaar-api/internal/model"
	"bazaar-api/internal/repository"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const diamond = gateway.ItemKind("diamond")

var (
	admin = Actor{ID: "op", Admin: true}
	alice = Actor{ID: "alice"}
	bob   = Actor{ID: "bob"}
	carol = Actor{ID: "carol"}
)

type sentMessage struct {
	Recipient string
	Message   string
}

// recordingNotifier captures notifications instead of delivering them.
type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentMessage
}

func (n *recordingNotifier) Notify(ctx context.Context, recipient, message string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentMessage{recipient, message})
	return nil
}

func (n *recordingNotifier) messages() []sentMessage {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]sentMessage(nil), n.sent...)
}

type harness struct {
	engine    *Engine
	store     *repository.SQLListingStore
	ledger    *gateway.MemoryLedger
	inventory *gateway.MemoryInventory
	presence  *gateway.MemoryPresence
	notifier  *recordingNotifier
	metrics   *metrics.Metrics
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	db, err := repository.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "bazaar.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	h := &harness{
		store:     repository.NewListingStore(db),
		ledger:    gateway.NewMemoryLedger(),
		inventory: gateway.NewMemoryInventory(2048),
		presence:  gateway.NewMemoryPresence(),
		notifier:  &recordingNotifier{},
		metrics:   metrics.New(prometheus.NewRegistry()),
	}
	h.engine = New(Deps{
		Listings:   h.store,
		Ledger:     h.ledger,
		Inventory:  h.inventory,
		Identities: h.presence,
		Notifier:   h.notifier,
		Metrics:    h.metrics,
		Logger:     zaptest.NewLogger(t),
	})
	return h
}

func (h *harness) fund(identity, balance string) {
	h.ledger.Open(identity, decimal.RequireFromString(balance))
}

func (h *harness) balance(t *testing.T, identity string) string {
	t.Helper()
	b, ok := h.ledger.BalanceOf(identity)
	require.True(t, ok, "no account for %s", identity)
	return b.StringFixed(2)
}

func (h *harness) shop(t *testing.T, name string, isAdmin bool) *model.Shop {
	t.Helper()
	s, err := h.engine.CreateShop(context.Background(), admin, name, "chest", "", isAdmin)
	require.NoError(t, err)
	return s
}

func (h *harness) listing(t *testing.T, actor Actor, shopID int64, selling bool, price string) *model.Listing {
	t.Helper()
	l, err := h.engine.CreateListing(context.Background(), actor, shopID, string(diamond), selling, decimal.RequireFromString(price))
	require.NoError(t, err)
	return l
}

func (h *harness) quantity(t *testing.T, listingID int64) int {
	t.Helper()
	q, err := h.store.Quantity(context.Background(), listingID)
	require.NoError(t, err)
	return q
}

// stocked creates a selling listing owned by alice holding qty diamonds.
func (h *harness) stocked(t *testing.T, shopID int64, price string, qty int) *model.Listing {
	t.Helper()
	l := h.listing(t, alice, shopID, true, price)
	h.inventory.Give(alice.ID, diamond, qty)
	_, err := h.engine.Stock(context.Background(), alice, l.ID, qty)
	require.NoError(t, err)
	return l
}
