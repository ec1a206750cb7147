package sink

import (
	"chat-relay/domain/event"
	"chat-relay/errors"
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConnectionSink_Queues_Events_In_Order(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	s := NewConnectionSink(2)

	req.NoError(s.Consume(ctx, event.PresenceList{Online: []string{"a"}}))
	req.NoError(s.Consume(ctx, event.PresenceUpdate{UserID: "b", Status: event.StatusOnline}))

	req.Equal(event.NamePresenceList, (<-s.Events()).Name())
	req.Equal(event.NamePresenceUpdate, (<-s.Events()).Name())
}

func TestConnectionSink_Full_Buffer_Drops_Event(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	s := NewConnectionSink(1)

	// Given a buffer already holding one event
	req.NoError(s.Consume(ctx, event.PresenceList{}))

	// When a second event arrives before the write pump drained it
	err := s.Consume(ctx, event.PresenceList{})

	// Then it is rejected without blocking
	req.ErrorIs(err, errors.ErrSinkFull)
	req.Len(s.Events(), 1)
}

func TestConnectionSink_Closed(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	s := NewConnectionSink(1)
	req.NoError(s.Consume(ctx, event.PresenceList{}))

	s.Close()
	s.Close()

	req.ErrorIs(s.Consume(ctx, event.PresenceList{}), errors.ErrSinkClosed)
	// The pending event is still drained, then the channel reports closed
	_, ok := <-s.Events()
	req.True(ok)
	_, ok = <-s.Events()
	req.False(ok)
}
