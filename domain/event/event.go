package event

import "chat-relay/domain"

const (
	NamePresenceList   = "presence_list"
	NamePresenceUpdate = "presence_update"
	NameNewMessage     = "new_message"
	NameError          = "error"
)

// RealtimeEvent is a server to client event. Name is the wire event name and
// Payload the value serialized as the envelope data.
type RealtimeEvent interface {
	Name() string
	Payload() any
}

type Status string

const (
	StatusOnline  Status = "online"
	StatusOffline Status = "offline"
)

// PresenceList seeds a freshly identified connection with everyone online.
type PresenceList struct {
	Online []string
}

func (p PresenceList) Name() string { return NamePresenceList }

func (p PresenceList) Payload() any {
	if p.Online == nil {
		return []string{}
	}
	return p.Online
}

// PresenceUpdate is broadcast on online/offline edges only.
type PresenceUpdate struct {
	UserID string      `json:"userId"`
	Status Status      `json:"status"`
	Kind   domain.Kind `json:"type,omitempty"`
}

func (p PresenceUpdate) Name() string { return NamePresenceUpdate }
func (p PresenceUpdate) Payload() any { return p }

type NewMessage struct {
	Record domain.MessageRecord
}

func (n NewMessage) Name() string { return NameNewMessage }
func (n NewMessage) Payload() any { return n.Record }

// ErrorNotice tells a client that one of its events was ignored.
type ErrorNotice struct {
	Event   string `json:"event,omitempty"`
	Message string `json:"message"`
}

func (e ErrorNotice) Name() string { return NameError }
func (e ErrorNotice) Payload() any { return e }
