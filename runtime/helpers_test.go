package runtime

import (
	"chat-relay/domain"
	"chat-relay/domain/event"
	"context"
	"log/slog"
	"sync"
	"testing"

	"github.com/mama165/sdk-go/logs"
)

type recordingSink struct {
	mu     sync.Mutex
	events []event.RealtimeEvent
}

func (s *recordingSink) Consume(_ context.Context, e event.RealtimeEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return nil
}

func (s *recordingSink) named(name string) []event.RealtimeEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	var res []event.RealtimeEvent
	for _, e := range s.events {
		if e.Name() == name {
			res = append(res, e)
		}
	}
	return res
}

func (s *recordingSink) presenceUpdates(status event.Status) []event.PresenceUpdate {
	var res []event.PresenceUpdate
	for _, e := range s.named(event.NamePresenceUpdate) {
		if update := e.(event.PresenceUpdate); update.Status == status {
			res = append(res, update)
		}
	}
	return res
}

func (s *recordingSink) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = nil
}

// loop drives the orchestrator command handlers synchronously, without the
// event loop goroutine.
type loop struct {
	t     *testing.T
	ctx   context.Context
	o     *Orchestrator
	sinks map[domain.ConnectionID]*recordingSink
}

func newLoop(t *testing.T, opts ...DeliveryOption) *loop {
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	return &loop{
		t:     t,
		ctx:   context.Background(),
		o:     NewOrchestrator(log, nil, 1, opts...),
		sinks: make(map[domain.ConnectionID]*recordingSink),
	}
}

func (l *loop) connect(id string) *recordingSink {
	sink := &recordingSink{}
	connID := domain.ConnectionID(id)
	l.sinks[connID] = sink
	l.o.handle(l.ctx, connectCmd{connID: connID, sink: sink})
	return sink
}

func (l *loop) identify(connID string, identityID string, kind domain.Kind) {
	l.o.handle(l.ctx, identifyCmd{
		connID:   domain.ConnectionID(connID),
		identity: domain.Identity{ID: identityID, Kind: kind},
	})
}

func (l *loop) join(connID string, conversationID domain.ConversationID) {
	l.o.handle(l.ctx, joinCmd{connID: domain.ConnectionID(connID), conversationID: conversationID})
}

func (l *loop) leave(connID string, conversationID domain.ConversationID) {
	l.o.handle(l.ctx, leaveCmd{connID: domain.ConnectionID(connID), conversationID: conversationID})
}

func (l *loop) disconnect(connID string) {
	l.o.handle(l.ctx, disconnectCmd{connID: domain.ConnectionID(connID)})
}

func (l *loop) resetAll() {
	for _, sink := range l.sinks {
		sink.reset()
	}
}

func conns(ids ...string) []domain.ConnectionID {
	res := make([]domain.ConnectionID, 0, len(ids))
	for _, id := range ids {
		res = append(res, domain.ConnectionID(id))
	}
	return res
}
