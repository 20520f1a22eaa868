package notify

import (
	"context"
	"time"

	"github.com/alitto/pond"
	"go.uber.org/zap"
)

// AsyncConfig sizes the asynchronous notification pool.
type AsyncConfig struct {
	Workers   int
	QueueSize int
	Timeout   time.Duration // per notification
}

// AsyncNotifier hands notifications to a worker pool so callers never wait
// on presence lookups or the store. A full queue falls back to a synchronous call.
type AsyncNotifier struct {
	dispatcher *Dispatcher
	pool       *pond.WorkerPool
	timeout    time.Duration
	logger     *zap.Logger
}

// NewAsync starts the pool in front of d.
func NewAsync(d *Dispatcher, cfg AsyncConfig) *AsyncNotifier {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	logger := d.logger.With(zap.String("component", "async"))
	pool := pond.New(
		cfg.Workers,
		cfg.QueueSize,
		pond.MinWorkers(1),
		pond.IdleTimeout(time.Minute),
		pond.PanicHandler(func(p interface{}) {
			logger.Error("notification worker panic recovered", zap.Any("panic", p))
		}),
	)

	return &AsyncNotifier{
		dispatcher: d,
		pool:       pool,
		timeout:    cfg.Timeout,
		logger:     logger,
	}
}

// Notify queues a notification. The caller's cancellation does not reach the
// queued work; it runs under its own timeout.
func (a *AsyncNotifier) Notify(ctx context.Context, recipient, message string) error {
	at := a.dispatcher.now()
	base := context.WithoutCancel(ctx)

	task := func() {
		tctx, cancel := context.WithTimeout(base, a.timeout)
		defer cancel()
		if err := a.dispatcher.notifyAt(tctx, recipient, message, at); err != nil {
			a.logger.Error("notification lost", zap.String("recipient", recipient), zap.Error(err))
		}
	}

	if a.pool.Stopped() || !a.pool.TrySubmit(task) {
		a.logger.Warn("notification queue full, delivering inline", zap.String("recipient", recipient))
		return a.dispatcher.notifyAt(ctx, recipient, message, at)
	}
	return nil
}

// Stop waits for queued notifications to finish.
func (a *AsyncNotifier) Stop() {
	a.pool.StopAndWait()
}
