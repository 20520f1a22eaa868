// Package notify delivers listing activity to owners, storing messages for
// owners who are not reachable and replaying them when they come back.
package notify

import (
	"context"
	"fmt"
	"time"

	"bazaar-api/internal/gateway"
	"bazaar-api/internal/metrics"
	"bazaar-api/internal/model"
	"bazaar-api/internal/repository"

	"go.uber.org/zap"
)

// Retention is how long a stored notification is kept, read or not.
const Retention = 30 * 24 * time.Hour

// Dispatcher implements store-and-forward delivery.
type Dispatcher struct {
	store    repository.NotificationStore
	resolver gateway.IdentityResolver
	metrics  *metrics.Metrics
	logger   *zap.Logger
	now      func() time.Time
}

// New creates a dispatcher. m and logger may be nil.
func New(store repository.NotificationStore, resolver gateway.IdentityResolver, m *metrics.Metrics, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		store:    store,
		resolver: resolver,
		metrics:  m,
		logger:   logger.Named("notify"),
		now:      time.Now,
	}
}

// Notify delivers message right away when recipient is reachable and stores it otherwise.
// A failed live delivery falls back to the store.
func (d *Dispatcher) Notify(ctx context.Context, recipient, message string) error {
	return d.notifyAt(ctx, recipient, message, d.now())
}

// notifyAt is Notify with an explicit creation time, so queued messages keep
// the order they were raised in.
func (d *Dispatcher) notifyAt(ctx context.Context, recipient, message string, at time.Time) error {
	reachable, err := d.resolver.IsReachable(ctx, recipient)
	if err != nil {
		d.logger.Warn("presence lookup failed, storing notification",
			zap.String("recipient", recipient), zap.Error(err))
		reachable = false
	}

	if reachable {
		err := d.resolver.Deliver(ctx, recipient, message)
		if err == nil {
			d.metrics.Notification("delivered")
			return nil
		}
		d.logger.Warn("live delivery failed, storing notification",
			zap.String("recipient", recipient), zap.Error(err))
	}

	n := &model.Notification{
		Recipient: recipient,
		Message:   message,
		CreatedAt: at,
	}
	if err := d.store.Append(ctx, n); err != nil {
		return fmt.Errorf("failed to store notification for %s: %w", recipient, err)
	}
	d.metrics.Notification("stored")
	return nil
}

// Flush replays unread notifications of recipient oldest first and marks the
// delivered ones read. It stops at the first delivery error; the rest stay unread.
func (d *Dispatcher) Flush(ctx context.Context, recipient string) (int, error) {
	unread, err := d.store.Unread(ctx, recipient)
	if err != nil {
		return 0, fmt.Errorf("failed to load notifications for %s: %w", recipient, err)
	}
	if len(unread) == 0 {
		return 0, nil
	}

	delivered := make([]string, 0, len(unread))
	var deliverErr error
	for _, n := range unread {
		if err := d.resolver.Deliver(ctx, recipient, n.Message); err != nil {
			deliverErr = err
			break
		}
		delivered = append(delivered, n.ID)
	}

	if len(delivered) > 0 {
		if err := d.store.MarkRead(ctx, recipient, delivered); err != nil {
			return 0, fmt.Errorf("failed to mark notifications read for %s: %w", recipient, err)
		}
		for range delivered {
			d.metrics.Notification("flushed")
		}
	}

	if deliverErr != nil {
		d.logger.Warn("flush interrupted",
			zap.String("recipient", recipient),
			zap.Int("delivered", len(delivered)),
			zap.Int("pending", len(unread)-len(delivered)),
			zap.Error(deliverErr))
		return len(delivered), fmt.Errorf("failed to deliver notification to %s: %w", recipient, deliverErr)
	}

	d.logger.Debug("notifications flushed", zap.String("recipient", recipient), zap.Int("count", len(delivered)))
	return len(delivered), nil
}

// Unread returns the stored, not yet delivered notifications of recipient.
func (d *Dispatcher) Unread(ctx context.Context, recipient string) ([]model.Notification, error) {
	return d.store.Unread(ctx, recipient)
}

// Sweep deletes notifications older than Retention.
func (d *Dispatcher) Sweep(ctx context.Context) (int64, error) {
	cutoff := d.now().Add(-Retention)
	n, err := d.store.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to sweep notifications: %w", err)
	}
	d.metrics.Swept(n)
	if n > 0 {
		d.logger.Info("old notifications swept", zap.Int64("deleted", n), zap.Time("cutoff", cutoff))
	}
	return n, nil
}
