package runtime

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/samber/lo"
)

// SessionTable maps every live connection, identified or not, to the sink
// used to write to it. Entries exist from transport connect to disconnect.
type SessionTable struct {
	sinks map[domain.ConnectionID]contract.EventSink
}

func NewSessionTable() *SessionTable {
	return &SessionTable{sinks: make(map[domain.ConnectionID]contract.EventSink)}
}

func (s *SessionTable) Attach(connID domain.ConnectionID, sink contract.EventSink) {
	s.sinks[connID] = sink
}

func (s *SessionTable) Detach(connID domain.ConnectionID) {
	delete(s.sinks, connID)
}

func (s *SessionTable) Sink(connID domain.ConnectionID) (contract.EventSink, bool) {
	sink, ok := s.sinks[connID]
	return sink, ok
}

func (s *SessionTable) Len() int {
	return len(s.sinks)
}

// All returns every live connection, sorted.
func (s *SessionTable) All() []domain.ConnectionID {
	ids := lo.Keys(s.sinks)
	slices.Sort(ids)
	return ids
}

// Emit writes one event to one connection. A failing or panicking sink is
// reported as an error and never escapes to the caller.
func (s *SessionTable) Emit(ctx context.Context, log *slog.Logger, connID domain.ConnectionID, evt event.RealtimeEvent) (err error) {
	sink, ok := s.sinks[connID]
	if !ok {
		return errors.ErrSinkClosed
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sink panic: %v", r)
		}
		if err != nil {
			log.Warn("Failed to emit event",
				"connection_id", connID,
				"event", evt.Name(),
				"error", err)
		}
	}()
	return sink.Consume(ctx, evt)
}
