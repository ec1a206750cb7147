package runtime

import (
	"chat-relay/domain"
	"chat-relay/domain/event"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPresence_Identify_Sends_List_And_Online_Update(t *testing.T) {
	req := require.New(t)
	l := newLoop(t)

	// Given an observer connection which has not identified
	observer := l.connect("observer")
	c1 := l.connect("c1")

	// When c1 identifies as alice
	l.identify("c1", "alice", domain.KindUser)

	// Then c1 alone receives the presence list, including itself
	lists := c1.named(event.NamePresenceList)
	req.Len(lists, 1)
	req.Equal([]string{"alice"}, lists[0].Payload())
	req.Empty(observer.named(event.NamePresenceList))

	// And everyone receives the online update with the kind
	for _, sink := range []*recordingSink{observer, c1} {
		updates := sink.presenceUpdates(event.StatusOnline)
		req.Len(updates, 1)
		req.Equal(event.PresenceUpdate{UserID: "alice", Status: event.StatusOnline, Kind: domain.KindUser}, updates[0])
	}
}

func TestPresence_Second_Connection_Gets_List_Without_Broadcast(t *testing.T) {
	req := require.New(t)
	l := newLoop(t)
	observer := l.connect("observer")
	l.connect("c1")
	c2 := l.connect("c2")

	// Given alice is online through c1
	l.identify("c1", "alice", domain.KindUser)

	// When c2 identifies as alice too
	l.identify("c2", "alice", domain.KindUser)

	// Then only one online transition was ever broadcast
	req.Len(observer.presenceUpdates(event.StatusOnline), 1)
	// And c2 was seeded with the current snapshot
	lists := c2.named(event.NamePresenceList)
	req.Len(lists, 1)
	req.Equal([]string{"alice"}, lists[0].Payload())
}

func TestPresence_Offline_Only_On_Last_Disconnect(t *testing.T) {
	req := require.New(t)
	l := newLoop(t)
	observer := l.connect("observer")
	l.connect("c1")
	l.connect("c2")
	l.identify("c1", "alice", domain.KindUser)
	l.identify("c2", "alice", domain.KindUser)

	// When c1 disconnects while c2 remains
	l.disconnect("c1")

	// Then nobody hears alice went offline
	req.Empty(observer.presenceUpdates(event.StatusOffline))
	req.True(l.o.registry.IsOnline("alice"))

	// When c2 disconnects
	l.disconnect("c2")

	// Then exactly one offline update is broadcast, without kind
	updates := observer.presenceUpdates(event.StatusOffline)
	req.Len(updates, 1)
	req.Equal(event.PresenceUpdate{UserID: "alice", Status: event.StatusOffline}, updates[0])
	req.False(l.o.registry.IsOnline("alice"))

	// And a repeated disconnect does not emit again
	l.disconnect("c2")
	req.Len(observer.presenceUpdates(event.StatusOffline), 1)
}

func TestPresence_Disconnected_Connection_Receives_Nothing(t *testing.T) {
	req := require.New(t)
	l := newLoop(t)
	c1 := l.connect("c1")
	l.identify("c1", "alice", domain.KindUser)
	c1.reset()

	l.disconnect("c1")

	req.Empty(c1.named(event.NamePresenceUpdate))
}

func TestPresence_Snapshot_Lists_Sorted_Online_Identities(t *testing.T) {
	req := require.New(t)
	l := newLoop(t)
	l.connect("c1")
	l.connect("c2")
	l.connect("c3")
	l.identify("c1", "zoe", domain.KindUser)
	l.identify("c2", "admin", domain.KindAdmin)
	l.identify("c3", "bob", domain.KindUser)

	req.Equal([]string{"admin", "bob", "zoe"}, l.o.presence.Snapshot())

	l.disconnect("c2")
	req.Equal([]string{"bob", "zoe"}, l.o.presence.Snapshot())
}

func TestPresence_Rebind_Emits_Offline_For_Previous_Identity(t *testing.T) {
	req := require.New(t)
	l := newLoop(t)
	observer := l.connect("observer")
	l.connect("c1")
	l.identify("c1", "alice", domain.KindUser)

	// When the same connection identifies as bob
	l.identify("c1", "bob", domain.KindUser)

	req.Equal([]event.PresenceUpdate{{UserID: "alice", Status: event.StatusOffline}},
		observer.presenceUpdates(event.StatusOffline))
	req.Len(observer.presenceUpdates(event.StatusOnline), 2)
	req.Equal([]string{"bob"}, l.o.presence.Snapshot())
}

func TestPresence_Identify_On_Unknown_Connection_Is_Ignored(t *testing.T) {
	req := require.New(t)
	l := newLoop(t)
	observer := l.connect("observer")

	l.identify("ghost", "alice", domain.KindUser)

	req.Empty(observer.events)
	req.Empty(l.o.presence.Snapshot())
}
