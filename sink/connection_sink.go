package sink

import (
	"chat-relay/contract"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"context"
	"sync"
)

var _ contract.EventSink = (*ConnectionSink)(nil)

// ConnectionSink is the handle the event loop writes to for one connection.
// Events are queued on a bounded channel drained by the transport write pump,
// so Consume never waits on the network.
type ConnectionSink struct {
	mu     sync.RWMutex
	events chan event.RealtimeEvent
	closed bool
}

func NewConnectionSink(bufferSize int) *ConnectionSink {
	return &ConnectionSink{events: make(chan event.RealtimeEvent, bufferSize)}
}

// Consume is called by the event loop.
// A full buffer means a slow client: the event is dropped and reported.
func (s *ConnectionSink) Consume(ctx context.Context, e event.RealtimeEvent) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return errors.ErrSinkClosed
	}
	select {
	case s.events <- e:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return errors.ErrSinkFull
	}
}

// Events is drained by the write pump until Close.
func (s *ConnectionSink) Events() <-chan event.RealtimeEvent {
	return s.events
}

// Close is idempotent. Pending events stay readable until drained.
func (s *ConnectionSink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.events)
}
