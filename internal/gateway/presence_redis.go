package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	// DefaultSessionTTL is how long a session stays reachable without a heartbeat.
	DefaultSessionTTL = 5 * time.Minute

	// InboxTTL bounds how long delivered but undrained messages are kept.
	InboxTTL = 24 * time.Hour

	// DefaultKeyPrefix is the Redis key prefix for presence data.
	DefaultKeyPrefix = "bazaar:presence:"
)

// session is the value stored under a session key.
type session struct {
	DisplayName string    `json:"display_name"`
	StartedAt   time.Time `json:"started_at"`
}

// RedisPresence tracks sessions in Redis.
// A session key with a TTL marks an identity reachable; delivered messages are
// appended to a per-identity inbox list and announced on a pub/sub channel.
type RedisPresence struct {
	client    *redis.Client
	ttl       time.Duration
	keyPrefix string
	logger    *zap.Logger
}

// NewRedisPresence creates a Redis backed presence registry.
func NewRedisPresence(client *redis.Client, ttl time.Duration, logger *zap.Logger) *RedisPresence {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &RedisPresence{
		client:    client,
		ttl:       ttl,
		keyPrefix: DefaultKeyPrefix,
		logger:    logger,
	}
}

func (p *RedisPresence) sessionKey(identity string) string { return p.keyPrefix + "session:" + identity }
func (p *RedisPresence) inboxKey(identity string) string   { return p.keyPrefix + "inbox:" + identity }
func (p *RedisPresence) namesKey() string                  { return p.keyPrefix + "names" }

// Channel returns the pub/sub channel announcing deliveries for identity.
func (p *RedisPresence) Channel(identity string) string {
	return p.keyPrefix + "deliver:" + identity
}

// Register marks identity reachable and records its display name.
func (p *RedisPresence) Register(ctx context.Context, identity, displayName string) error {
	data, err := json.Marshal(session{DisplayName: displayName, StartedAt: time.Now()})
	if err != nil {
		return fmt.Errorf("failed to serialize session: %w", err)
	}

	pipe := p.client.Pipeline()
	pipe.Set(ctx, p.sessionKey(identity), data, p.ttl)
	if displayName != "" {
		pipe.HSet(ctx, p.namesKey(), identity, displayName)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to register session: %w", err)
	}

	p.logger.Debug("session registered", zap.String("identity", identity), zap.Duration("ttl", p.ttl))
	return nil
}

// Unregister removes the session key.
func (p *RedisPresence) Unregister(ctx context.Context, identity string) error {
	return p.client.Del(ctx, p.sessionKey(identity)).Err()
}

// Touch extends the TTL of an existing session.
func (p *RedisPresence) Touch(ctx context.Context, identity string) error {
	ok, err := p.client.Expire(ctx, p.sessionKey(identity), p.ttl).Result()
	if err != nil {
		return fmt.Errorf("failed to refresh session: %w", err)
	}
	if !ok {
		return fmt.Errorf("session not found: %s", identity)
	}
	return nil
}

func (p *RedisPresence) IsReachable(ctx context.Context, identity string) (bool, error) {
	n, err := p.client.Exists(ctx, p.sessionKey(identity)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check session: %w", err)
	}
	return n > 0, nil
}

// Deliver appends message to the identity's inbox and publishes it.
func (p *RedisPresence) Deliver(ctx context.Context, identity, message string) error {
	pipe := p.client.TxPipeline()
	pipe.RPush(ctx, p.inboxKey(identity), message)
	pipe.Expire(ctx, p.inboxKey(identity), InboxTTL)
	pipe.Publish(ctx, p.Channel(identity), message)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to deliver message: %w", err)
	}
	return nil
}

// DisplayName looks up the live session first, then the name directory.
func (p *RedisPresence) DisplayName(ctx context.Context, identity string) (string, bool) {
	data, err := p.client.Get(ctx, p.sessionKey(identity)).Bytes()
	if err == nil {
		var s session
		if json.Unmarshal(data, &s) == nil && s.DisplayName != "" {
			return s.DisplayName, true
		}
	} else if !errors.Is(err, redis.Nil) {
		p.logger.Warn("failed to read session", zap.String("identity", identity), zap.Error(err))
	}

	name, err := p.client.HGet(ctx, p.namesKey(), identity).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			p.logger.Warn("failed to read display name", zap.String("identity", identity), zap.Error(err))
		}
		return "", false
	}
	return name, true
}

// Drain returns and clears the identity's inbox.
func (p *RedisPresence) Drain(ctx context.Context, identity string) ([]string, error) {
	pipe := p.client.TxPipeline()
	msgs := pipe.LRange(ctx, p.inboxKey(identity), 0, -1)
	pipe.Del(ctx, p.inboxKey(identity))
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to drain inbox: %w", err)
	}
	return msgs.Val(), nil
}

var _ Presence = (*RedisPresence)(nil)
