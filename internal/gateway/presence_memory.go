package gateway

import (
	"context"
	"sync"
)

// MemoryPresence keeps sessions, names and inboxes in process.
// Use this for development/testing or single-instance deployments.
type MemoryPresence struct {
	mu      sync.Mutex
	online  map[string]bool
	names   map[string]string
	inboxes map[string][]string
}

// NewMemoryPresence creates an empty presence registry.
func NewMemoryPresence() *MemoryPresence {
	return &MemoryPresence{
		online:  make(map[string]bool),
		names:   make(map[string]string),
		inboxes: make(map[string][]string),
	}
}

func (p *MemoryPresence) Register(ctx context.Context, identity, displayName string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.online[identity] = true
	if displayName != "" {
		p.names[identity] = displayName
	}
	return nil
}

func (p *MemoryPresence) Unregister(ctx context.Context, identity string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.online, identity)
	return nil
}

// Touch is a no-op: memory sessions do not expire.
func (p *MemoryPresence) Touch(ctx context.Context, identity string) error {
	return nil
}

func (p *MemoryPresence) IsReachable(ctx context.Context, identity string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.online[identity], nil
}

func (p *MemoryPresence) Deliver(ctx context.Context, identity, message string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.inboxes[identity] = append(p.inboxes[identity], message)
	return nil
}

func (p *MemoryPresence) DisplayName(ctx context.Context, identity string) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	name, ok := p.names[identity]
	return name, ok
}

// Drain returns and clears the delivered messages of identity.
func (p *MemoryPresence) Drain(ctx context.Context, identity string) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	msgs := p.inboxes[identity]
	delete(p.inboxes, identity)
	return msgs, nil
}

var _ Presence = (*MemoryPresence)(nil)
