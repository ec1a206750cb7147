package main

import (
	"chat-relay/domain"
	"chat-relay/domain/event"
	ws "chat-relay/infrastructure/websocket"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/gookit/color"
	"github.com/stretchr/testify/require"
)

func envelope(t *testing.T, name string, data any) ws.Envelope {
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	return ws.Envelope{Event: name, Data: raw}
}

func TestRender_Realtime_Events(t *testing.T) {
	req := require.New(t)
	color.Disable()
	t.Cleanup(func() { color.Enable = true })

	// Given one frame of each kind
	record := domain.MessageRecord{SenderID: "alice", Text: "hi", CreatedAt: time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC),
		File: &domain.Attachment{Name: "cat.png"}}

	// Then each renders a readable line
	req.Equal("10:00:00 alice: hi [cat.png]", render(envelope(t, event.NameNewMessage, record)))
	req.Contains(render(envelope(t, event.NamePresenceUpdate, event.PresenceUpdate{UserID: "bob", Status: event.StatusOnline})), "bob is online")
	req.Contains(render(envelope(t, event.NamePresenceUpdate, event.PresenceUpdate{UserID: "bob", Status: event.StatusOffline})), "bob is offline")
	req.Equal("online: alice, bob", render(envelope(t, event.NamePresenceList, []string{"alice", "bob"})))
	req.True(strings.HasPrefix(render(envelope(t, event.NameError, event.ErrorNotice{Event: "join", Message: "nope"})), "error (join)"))
}
