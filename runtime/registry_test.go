package runtime

import (
	"chat-relay/domain"
	"slices"
	"testing"

	"github.com/stretchr/testify/require"
)

var (
	alice = domain.Identity{ID: "alice", Kind: domain.KindUser}
	bob   = domain.Identity{ID: "bob", Kind: domain.KindUser}
	admin = domain.Identity{ID: "admin", Kind: domain.KindAdmin}
)

func TestConnectionRegistry_Bind_First_Connection(t *testing.T) {
	req := require.New(t)
	registry := NewConnectionRegistry()

	// Given no identity is connected
	req.Empty(registry.Online())

	// When a first connection is bound
	binding := registry.Bind("c1", alice)

	// Then the identity went online
	req.Equal(FirstConnection, binding.Transition)
	req.Equal(conns("c1"), registry.ConnectionsFor(alice.ID))
	req.True(registry.IsOnline(alice.ID))
	req.Equal([]string{alice.ID}, registry.Online())
}

func TestConnectionRegistry_Bind_Second_Connection_Is_Not_An_Edge(t *testing.T) {
	req := require.New(t)
	registry := NewConnectionRegistry()

	// Given alice already has a connection
	registry.Bind("c1", alice)

	// When a second device connects
	binding := registry.Bind("c2", alice)

	// Then no transition is reported
	req.Equal(NoTransition, binding.Transition)
	req.Equal(conns("c1", "c2"), registry.ConnectionsFor(alice.ID))
}

func TestConnectionRegistry_Bind_Same_Identity_Twice_Is_Idempotent(t *testing.T) {
	req := require.New(t)
	registry := NewConnectionRegistry()

	registry.Bind("c1", alice)
	binding := registry.Bind("c1", alice)

	req.Equal(Binding{}, binding)
	req.Equal(conns("c1"), registry.ConnectionsFor(alice.ID))
}

func TestConnectionRegistry_Rebind_To_Another_Identity(t *testing.T) {
	req := require.New(t)
	registry := NewConnectionRegistry()

	// Given c1 belongs to alice
	registry.Bind("c1", alice)

	// When c1 identifies as bob
	binding := registry.Bind("c1", bob)

	// Then alice lost her last connection and bob got his first
	req.Equal(FirstConnection, binding.Transition)
	req.Equal(alice, binding.Previous)
	req.Equal(LastConnection, binding.PreviousTransition)
	req.Empty(registry.ConnectionsFor(alice.ID))
	req.Equal(conns("c1"), registry.ConnectionsFor(bob.ID))
	req.Equal([]string{bob.ID}, registry.Online())
}

func TestConnectionRegistry_Unbind(t *testing.T) {
	req := require.New(t)
	registry := NewConnectionRegistry()

	// Given alice has two connections
	registry.Bind("c1", alice)
	registry.Bind("c2", alice)

	// When the first one goes away
	identity, transition := registry.Unbind("c1")

	// Then alice stays online
	req.Equal(alice, identity)
	req.Equal(NoTransition, transition)
	req.Equal(conns("c2"), registry.ConnectionsFor(alice.ID))

	// When the last one goes away
	identity, transition = registry.Unbind("c2")

	// Then alice is offline and forgotten
	req.Equal(alice, identity)
	req.Equal(LastConnection, transition)
	req.Empty(registry.ConnectionsFor(alice.ID))
	req.Empty(registry.identities)
	req.Empty(registry.bindings)
}

func TestConnectionRegistry_Unbind_Unknown_Connection_Is_Noop(t *testing.T) {
	req := require.New(t)
	registry := NewConnectionRegistry()
	registry.Bind("c1", alice)

	identity, transition := registry.Unbind("unknown")
	req.True(identity.IsZero())
	req.Equal(NoTransition, transition)

	// Double unbind
	registry.Unbind("c1")
	identity, transition = registry.Unbind("c1")
	req.True(identity.IsZero())
	req.Equal(NoTransition, transition)
}

func TestConnectionRegistry_ConnectionsFor_Unknown_Identity(t *testing.T) {
	req := require.New(t)
	registry := NewConnectionRegistry()

	connections := registry.ConnectionsFor("nobody")
	req.NotNil(connections)
	req.Empty(connections)
}

func TestConnectionRegistry_Online_Iff_Connections(t *testing.T) {
	req := require.New(t)
	registry := NewConnectionRegistry()

	steps := []func(){
		func() { registry.Bind("c1", alice) },
		func() { registry.Bind("c2", bob) },
		func() { registry.Bind("c3", alice) },
		func() { registry.Bind("c4", admin) },
		func() { registry.Unbind("c1") },
		func() { registry.Bind("c2", admin) },
		func() { registry.Unbind("c3") },
		func() { registry.Unbind("c3") },
		func() { registry.Unbind("c4") },
		func() { registry.Unbind("c2") },
	}

	for _, step := range steps {
		step()
		for _, identity := range []domain.Identity{alice, bob, admin} {
			online := registry.IsOnline(identity.ID)
			req.Equal(len(registry.ConnectionsFor(identity.ID)) > 0, online, identity.ID)
			req.Equal(online, slices.Contains(registry.Online(), identity.ID), identity.ID)
		}
	}
	req.Empty(registry.Online())
}
