package repositories

import (
	"chat-relay/domain"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestInspectMapper_Renders_Relay_Keys(t *testing.T) {
	req := require.New(t)

	// Given a stored message and an account
	record := domain.MessageRecord{
		ID:         uuid.New(),
		SenderID:   "alice",
		ReceiverID: "bob",
		Type:       domain.MessageText,
		Text:       "hello",
		CreatedAt:  time.Now().UTC(),
	}
	msgVal, err := json.Marshal(record)
	req.NoError(err)
	accountVal, err := json.Marshal(Account{ID: "alice", Kind: domain.KindUser, Name: "Alice", Email: "alice@example.com"})
	req.NoError(err)

	// When mapping their keys
	msgRow := InspectMapper("msg:alice-bob:0000000000000000001:"+record.ID.String(), msgVal)
	accountRow := InspectMapper("account:alice", accountVal)
	brokenRow := InspectMapper("msg:broken", []byte("{"))

	// Then each row carries a readable detail
	req.Equal("TEXT", msgRow.Type)
	req.Equal("alice -> bob: hello", msgRow.Detail)
	req.Equal("USER", accountRow.Type)
	req.Equal("Alice <alice@example.com>", accountRow.Detail)
	req.Equal("Error: unmarshal failed", brokenRow.Detail)
}
