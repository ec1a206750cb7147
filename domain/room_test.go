package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConversationID_Does_Not_Depend_On_Order(t *testing.T) {
	req := require.New(t)

	req.Equal(NewConversationID("alice", "bob"), NewConversationID("bob", "alice"))
	req.Equal(ConversationID("alice-bob"), NewConversationID("bob", "alice"))
}

func TestConversationID_Includes(t *testing.T) {
	req := require.New(t)
	u1 := "0b6f1c52-6f0e-4f6a-9d59-4b8f3a1b2c3d"
	u2 := "9a1e2d3c-1111-4222-8333-444455556666"
	id := NewConversationID(u1, u2)

	req.True(id.Includes(u1))
	req.True(id.Includes(u2))
	req.False(id.Includes(""))
	req.False(id.Includes("0b6f1c52"))
	req.False(id.Includes("someone-else"))
}
