package runtime

import (
	"chat-presence/contract"
	"chat-presence/domain/event"
	"chat-presence/observability"
	"context"
	"log/slog"
	"sync"
	"time"
)

// PresenceBroadcaster sends the roster and join/leave announcements to every
// open connection. Fetch and broadcast happen under one lock so a client never
// receives a roster older than one it already got.
type PresenceBroadcaster struct {
	mu           sync.Mutex
	log          *slog.Logger
	store        contract.Store
	registry     *Registry
	monitoring   *observability.MonitoringManager
	storeTimeout time.Duration
}

func NewPresenceBroadcaster(
	log *slog.Logger,
	store contract.Store,
	registry *Registry,
	monitoring *observability.MonitoringManager,
	storeTimeout time.Duration,
) *PresenceBroadcaster {
	return &PresenceBroadcaster{
		log:          log,
		store:        store,
		registry:     registry,
		monitoring:   monitoring,
		storeTimeout: storeTimeout,
	}
}

// Joined emits user_list, then user_joined when announce is set.
func (p *PresenceBroadcaster) Joined(ctx context.Context, username string, announce bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.broadcastRoster(ctx)
	if announce {
		p.broadcast(ctx, event.UserJoined{Username: username})
	}
}

// Left emits user_left when announce is set, then user_list.
func (p *PresenceBroadcaster) Left(ctx context.Context, username string, announce bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if announce {
		p.broadcast(ctx, event.UserLeft{Username: username})
	}
	p.broadcastRoster(ctx)
}

func (p *PresenceBroadcaster) broadcastRoster(ctx context.Context) {
	storeCtx, cancel := p.storeContext(ctx)
	defer cancel()

	users, err := p.store.ListUsers(storeCtx)
	if err != nil {
		p.monitoring.IncrStoreErrors()
		p.log.Warn("Roster unavailable, user_list skipped", "error", err)
		return
	}
	p.broadcast(ctx, event.NewUserList(users))
}

func (p *PresenceBroadcaster) broadcast(ctx context.Context, e event.DomainEvent) {
	for _, sink := range p.registry.Sinks() {
		if err := sink.Consume(ctx, e); err != nil {
			p.monitoring.IncrDroppedEvents()
			p.log.Debug("Presence event not delivered", "event", e.Type(), "error", err)
		}
	}
}

func (p *PresenceBroadcaster) storeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.storeTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, p.storeTimeout)
}
