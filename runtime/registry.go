package runtime

import (
	"chat-relay/domain"
	"slices"

	"github.com/samber/lo"
)

type ConnSet map[domain.ConnectionID]struct{}

// Transition is the edge observed on an identity's connection set.
type Transition int

const (
	NoTransition Transition = iota
	// FirstConnection means the set went from empty to non-empty.
	FirstConnection
	// LastConnection means the set went from non-empty to empty.
	LastConnection
)

// Binding is the outcome of Bind. When a connection is rebound to another
// identity, Previous holds the identity it was detached from and
// PreviousTransition the edge that detach produced.
type Binding struct {
	Transition         Transition
	Previous           domain.Identity
	PreviousTransition Transition
}

// ConnectionRegistry owns the connection -> identity binding and its reverse
// index identity -> connections. It is not safe for concurrent use: the
// orchestrator event loop is its only caller.
type ConnectionRegistry struct {
	bindings   map[domain.ConnectionID]domain.Identity
	identities map[string]ConnSet
}

func NewConnectionRegistry() *ConnectionRegistry {
	return &ConnectionRegistry{
		bindings:   make(map[domain.ConnectionID]domain.Identity),
		identities: make(map[string]ConnSet),
	}
}

// Bind associates a connection with an identity.
// Binding the same connection to the same identity again changes nothing.
func (r *ConnectionRegistry) Bind(connID domain.ConnectionID, identity domain.Identity) Binding {
	var binding Binding
	if current, ok := r.bindings[connID]; ok {
		if current.ID == identity.ID {
			// Kind may be refreshed, membership is unchanged
			r.bindings[connID] = identity
			return binding
		}
		binding.Previous, binding.PreviousTransition = r.Unbind(connID)
	}

	r.bindings[connID] = identity
	conns, ok := r.identities[identity.ID]
	if !ok {
		conns = make(ConnSet)
		r.identities[identity.ID] = conns
	}
	if len(conns) == 0 {
		binding.Transition = FirstConnection
	}
	conns[connID] = struct{}{}
	return binding
}

// Unbind detaches a connection from its identity. The identity entry is
// removed as soon as its last connection goes away.
// Unbinding a connection that was never bound is a no-op.
func (r *ConnectionRegistry) Unbind(connID domain.ConnectionID) (domain.Identity, Transition) {
	identity, ok := r.bindings[connID]
	if !ok {
		return domain.Identity{}, NoTransition
	}
	delete(r.bindings, connID)

	conns, ok := r.identities[identity.ID]
	if !ok {
		return identity, NoTransition
	}
	delete(conns, connID)
	if len(conns) == 0 {
		delete(r.identities, identity.ID)
		return identity, LastConnection
	}
	return identity, NoTransition
}

// ConnectionsFor returns the live connections of an identity, sorted.
// Unknown identities yield an empty slice.
func (r *ConnectionRegistry) ConnectionsFor(identityID string) []domain.ConnectionID {
	conns := r.identities[identityID]
	if len(conns) == 0 {
		return []domain.ConnectionID{}
	}
	ids := lo.Keys(conns)
	slices.Sort(ids)
	return ids
}

func (r *ConnectionRegistry) IdentityOf(connID domain.ConnectionID) (domain.Identity, bool) {
	identity, ok := r.bindings[connID]
	return identity, ok
}

func (r *ConnectionRegistry) IsOnline(identityID string) bool {
	return len(r.identities[identityID]) > 0
}

// Online lists every identity holding at least one connection, sorted.
func (r *ConnectionRegistry) Online() []string {
	ids := lo.Keys(r.identities)
	slices.Sort(ids)
	return ids
}
