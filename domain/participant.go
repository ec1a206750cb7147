// Package domain contains core concepts of the chat system.
// This file defines Identity, the logical participant behind one or many connections.
// No runtime, network, or UI logic should be added here.
package domain

import "chat-relay/errors"

type Kind string

const (
	KindAdmin Kind = "admin"
	KindUser  Kind = "user"
)

func (k Kind) Valid() bool {
	return k == KindAdmin || k == KindUser
}

// Identity is a logical chat participant. Identities are created by account
// management and never mutated by the realtime layer.
type Identity struct {
	ID   string
	Kind Kind
}

func NewIdentity(id string, kind Kind) (Identity, error) {
	if id == "" {
		return Identity{}, errors.ErrMissingIdentity
	}
	if !kind.Valid() {
		return Identity{}, errors.ErrInvalidKind
	}
	return Identity{ID: id, Kind: kind}, nil
}

func (i Identity) IsZero() bool {
	return i.ID == ""
}

// ConnectionID identifies one live transport session.
type ConnectionID string
