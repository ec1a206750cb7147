package domain

import (
	"slices"
	"strings"
)

const conversationSeparator = "-"

// ConversationID is the room key of a two-party conversation.
type ConversationID string

// NewConversationID sorts both participant ids so that the key does not depend
// on who started the conversation.
func NewConversationID(a, b string) ConversationID {
	ids := []string{a, b}
	slices.Sort(ids)
	return ConversationID(ids[0] + conversationSeparator + ids[1])
}

// Includes reports whether id is one of the conversation participants.
// Participant ids are uuids, which contain the separator themselves, so
// the key is matched against both sorted positions instead of being split.
func (c ConversationID) Includes(id string) bool {
	if id == "" {
		return false
	}
	key := string(c)
	return strings.HasPrefix(key, id+conversationSeparator) ||
		strings.HasSuffix(key, conversationSeparator+id)
}

func (c ConversationID) String() string {
	return string(c)
}
