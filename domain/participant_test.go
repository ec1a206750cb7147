package domain

import (
	"chat-relay/errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewIdentity(t *testing.T) {
	req := require.New(t)

	identity, err := NewIdentity("u1", KindAdmin)
	req.NoError(err)
	req.Equal(Identity{ID: "u1", Kind: KindAdmin}, identity)
	req.False(identity.IsZero())

	_, err = NewIdentity("", KindUser)
	req.ErrorIs(err, errors.ErrMissingIdentity)

	_, err = NewIdentity("u1", "guest")
	req.ErrorIs(err, errors.ErrInvalidKind)
}
