package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Sweeper deletes expired notifications and reports how many went.
type Sweeper interface {
	Sweep(ctx context.Context) (int64, error)
}

// SweepConfig holds configuration for the sweep scheduler.
type SweepConfig struct {
	// Interval is how often the sweep runs.
	// Default: 24 hours
	Interval time.Duration

	// InitialDelay is the wait before the first run after Start.
	// Default: 1 minute
	InitialDelay time.Duration

	// Timeout bounds a single run.
	// Default: 5 minutes
	Timeout time.Duration
}

// SweepScheduler runs the notification retention sweep periodically.
type SweepScheduler struct {
	sweeper   Sweeper
	config    SweepConfig
	logger    *zap.Logger
	ticker    *time.Ticker
	stopCh    chan struct{}
	stopOnce  sync.Once
	isRunning bool
	mu        sync.Mutex
}

// NewSweepScheduler creates a new sweep scheduler.
func NewSweepScheduler(sweeper Sweeper, config SweepConfig, logger *zap.Logger) *SweepScheduler {
	if config.Interval <= 0 {
		config.Interval = 24 * time.Hour
	}
	if config.InitialDelay <= 0 {
		config.InitialDelay = time.Minute
	}
	if config.Timeout <= 0 {
		config.Timeout = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &SweepScheduler{
		sweeper: sweeper,
		config:  config,
		logger:  logger.Named("sweep"),
		stopCh:  make(chan struct{}),
	}
}

// Start begins the sweep scheduler.
func (s *SweepScheduler) Start() {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = true
	s.ticker = time.NewTicker(s.config.Interval)
	s.mu.Unlock()

	s.logger.Info("sweep scheduler started",
		zap.Duration("interval", s.config.Interval),
		zap.Duration("initial_delay", s.config.InitialDelay))

	go func() {
		select {
		case <-time.After(s.config.InitialDelay):
			s.runSweep()
		case <-s.stopCh:
		}
	}()

	go s.run()
}

func (s *SweepScheduler) run() {
	for {
		select {
		case <-s.ticker.C:
			s.runSweep()
		case <-s.stopCh:
			s.logger.Info("sweep scheduler stopped")
			return
		}
	}
}

func (s *SweepScheduler) runSweep() {
	deleted, err := s.RunNow()
	if err != nil {
		s.logger.Error("sweep failed", zap.Error(err))
		return
	}
	s.logger.Debug("sweep finished", zap.Int64("deleted", deleted))
}

// Stop stops the sweep scheduler. Safe to call more than once.
func (s *SweepScheduler) Stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		if s.ticker != nil {
			s.ticker.Stop()
		}
		close(s.stopCh)
		s.isRunning = false
	})
}

// RunNow triggers an immediate sweep.
func (s *SweepScheduler) RunNow() (int64, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Timeout)
	defer cancel()

	return s.sweeper.Sweep(ctx)
}
