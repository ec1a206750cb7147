package runtime

import (
	"chat-relay/domain"
	"chat-relay/domain/event"
	"context"
	"log/slog"
)

// PresenceTracker derives online/offline status from registry transitions.
// It keeps no state: the snapshot is read from the registry every time.
type PresenceTracker struct {
	log      *slog.Logger
	registry *ConnectionRegistry
	sessions *SessionTable
}

func NewPresenceTracker(log *slog.Logger, registry *ConnectionRegistry, sessions *SessionTable) *PresenceTracker {
	return &PresenceTracker{log: log, registry: registry, sessions: sessions}
}

func (p *PresenceTracker) Snapshot() []string {
	return p.registry.Online()
}

// OnIdentify runs after a connection has been bound. The connection always
// receives the full presence list; everyone receives an online update only
// when the identity just got its first connection.
func (p *PresenceTracker) OnIdentify(ctx context.Context, connID domain.ConnectionID, identity domain.Identity, binding Binding) {
	if binding.PreviousTransition == LastConnection {
		p.broadcast(ctx, event.PresenceUpdate{UserID: binding.Previous.ID, Status: event.StatusOffline})
	}
	_ = p.sessions.Emit(ctx, p.log, connID, event.PresenceList{Online: p.Snapshot()})
	if binding.Transition == FirstConnection {
		p.broadcast(ctx, event.PresenceUpdate{UserID: identity.ID, Status: event.StatusOnline, Kind: identity.Kind})
	}
}

// OnDisconnect runs after a connection has been unbound.
func (p *PresenceTracker) OnDisconnect(ctx context.Context, identity domain.Identity, transition Transition) {
	if transition != LastConnection {
		return
	}
	p.broadcast(ctx, event.PresenceUpdate{UserID: identity.ID, Status: event.StatusOffline})
}

// broadcast reaches every live connection, identified or not.
func (p *PresenceTracker) broadcast(ctx context.Context, update event.PresenceUpdate) {
	p.log.Debug("Presence changed", "identity_id", update.UserID, "status", update.Status)
	for _, connID := range p.sessions.All() {
		_ = p.sessions.Emit(ctx, p.log, connID, update)
	}
}
