package service

import (
	"context"
	"fmt"

	"bazaar-api/internal/gateway"

	"go.uber.org/zap"
)

// Flusher replays stored notifications to a recipient.
type Flusher interface {
	Flush(ctx context.Context, recipient string) (int, error)
}

// SessionService tracks host sessions and replays stored notifications on join.
type SessionService struct {
	presence gateway.Presence
	flusher  Flusher
	logger   *zap.Logger
}

// NewSessionService creates a new session service.
func NewSessionService(presence gateway.Presence, flusher Flusher, logger *zap.Logger) *SessionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionService{
		presence: presence,
		flusher:  flusher,
		logger:   logger.Named("session"),
	}
}

// Start marks identity reachable and flushes its mailbox. It returns the
// number of stored notifications delivered. A flush error does not undo the
// registration; the remaining messages are replayed on the next start.
func (s *SessionService) Start(ctx context.Context, identity, displayName string) (int, error) {
	if identity == "" {
		return 0, fmt.Errorf("identity is required")
	}
	if err := s.presence.Register(ctx, identity, displayName); err != nil {
		return 0, fmt.Errorf("failed to register session: %w", err)
	}

	n, err := s.flusher.Flush(ctx, identity)
	if err != nil {
		s.logger.Warn("flush on join incomplete", zap.String("identity", identity), zap.Int("delivered", n), zap.Error(err))
		return n, nil
	}
	s.logger.Info("session started", zap.String("identity", identity), zap.Int("replayed", n))
	return n, nil
}

// End marks identity unreachable. Later notifications are stored.
func (s *SessionService) End(ctx context.Context, identity string) error {
	if err := s.presence.Unregister(ctx, identity); err != nil {
		return fmt.Errorf("failed to end session: %w", err)
	}
	s.logger.Info("session ended", zap.String("identity", identity))
	return nil
}

// Drain returns delivered messages waiting for the host to show, and refreshes the session.
func (s *SessionService) Drain(ctx context.Context, identity string) ([]string, error) {
	if err := s.presence.Touch(ctx, identity); err != nil {
		s.logger.Debug("session touch failed", zap.String("identity", identity), zap.Error(err))
	}
	msgs, err := s.presence.Drain(ctx, identity)
	if err != nil {
		return nil, fmt.Errorf("failed to drain messages: %w", err)
	}
	if msgs == nil {
		msgs = []string{}
	}
	return msgs, nil
}
