package notify

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"bazaar-api/internal/gateway"
	"bazaar-api/internal/metrics"
	"bazaar-api/internal/repository"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// flakyPresence fails deliveries once failAfter messages went through.
type flakyPresence struct {
	*gateway.MemoryPresence
	mu        sync.Mutex
	delivered int
	failAfter int
}

func (p *flakyPresence) Deliver(ctx context.Context, identity, message string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failAfter >= 0 && p.delivered >= p.failAfter {
		return errors.New("connection dropped")
	}
	p.delivered++
	return p.MemoryPresence.Deliver(ctx, identity, message)
}

type fixture struct {
	dispatcher *Dispatcher
	store      *repository.SQLNotificationStore
	presence   *flakyPresence
	metrics    *metrics.Metrics
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := repository.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "bazaar.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	f := &fixture{
		store:    repository.NewNotificationStore(db),
		presence: &flakyPresence{MemoryPresence: gateway.NewMemoryPresence(), failAfter: -1},
		metrics:  metrics.New(prometheus.NewRegistry()),
	}
	f.dispatcher = New(f.store, f.presence, f.metrics, zaptest.NewLogger(t))
	return f
}

func TestNotify_ReachableDeliversDirectly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.presence.Register(ctx, "alice", "Alice"))

	require.NoError(t, f.dispatcher.Notify(ctx, "alice", "sold 3"))

	msgs, err := f.presence.Drain(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"sold 3"}, msgs)

	n, err := f.store.CountUnread(ctx, "alice")
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.NotificationCount("delivered")))
}

func TestNotify_FailedDeliveryIsStored(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.presence.Register(ctx, "alice", ""))
	f.presence.failAfter = 0

	require.NoError(t, f.dispatcher.Notify(ctx, "alice", "sold 3"))

	unread, err := f.dispatcher.Unread(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, unread, 1)
	assert.Equal(t, "sold 3", unread[0].Message)
}

func TestFlush_DeliversInOrderOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	base := time.Now()
	for i, msg := range []string{"first", "second", "third"} {
		at := base.Add(time.Duration(i) * time.Second)
		f.dispatcher.now = func() time.Time { return at }
		require.NoError(t, f.dispatcher.Notify(ctx, "alice", msg))
	}
	f.dispatcher.now = time.Now

	require.NoError(t, f.presence.Register(ctx, "alice", ""))
	n, err := f.dispatcher.Flush(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	msgs, err := f.presence.Drain(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second", "third"}, msgs)

	n, err = f.dispatcher.Flush(ctx, "alice")
	require.NoError(t, err)
	assert.Zero(t, n, "a second flush delivers nothing")
	assert.Equal(t, float64(3), testutil.ToFloat64(f.metrics.NotificationCount("flushed")))
}

func TestFlush_StopsAtDeliveryError(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, msg := range []string{"a", "b", "c"} {
		require.NoError(t, f.dispatcher.Notify(ctx, "alice", msg))
		time.Sleep(2 * time.Millisecond)
	}

	f.presence.failAfter = 1
	n, err := f.dispatcher.Flush(ctx, "alice")
	require.Error(t, err)
	assert.Equal(t, 1, n)

	unread, err := f.dispatcher.Unread(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, unread, 2)
	assert.Equal(t, "b", unread[0].Message)
	assert.Equal(t, "c", unread[1].Message)
}

func TestSweep(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	now := time.Now()
	f.dispatcher.now = func() time.Time { return now.Add(-31 * 24 * time.Hour) }
	require.NoError(t, f.dispatcher.Notify(ctx, "alice", "ancient"))
	f.dispatcher.now = func() time.Time { return now.Add(-29 * 24 * time.Hour) }
	require.NoError(t, f.dispatcher.Notify(ctx, "alice", "recent"))
	f.dispatcher.now = func() time.Time { return now }

	deleted, err := f.dispatcher.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	unread, err := f.dispatcher.Unread(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, unread, 1)
	assert.Equal(t, "recent", unread[0].Message)
}

func TestAsyncNotifier(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	async := NewAsync(f.dispatcher, AsyncConfig{Workers: 2, QueueSize: 8})

	for i := 0; i < 5; i++ {
		require.NoError(t, async.Notify(ctx, "bob", "tick"))
	}
	async.Stop()

	n, err := f.store.CountUnread(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, 5, n)
}

func TestAsyncNotifier_StoppedRunsInline(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	async := NewAsync(f.dispatcher, AsyncConfig{})
	async.Stop()

	require.NoError(t, async.Notify(ctx, "bob", "late"))
	n, err := f.store.CountUnread(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
