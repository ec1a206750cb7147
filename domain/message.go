// Package domain contains core concepts of the chat system.
// This file defines persisted message records and related rules.
// Records are immutable once stored, except for the read flag.
package domain

import (
	"time"

	"github.com/google/uuid"
)

type MessageType string

const (
	MessageText  MessageType = "text"
	MessageFile  MessageType = "file"
	MessageVoice MessageType = "voice"
)

// MessageRecord is a message after it has been durably persisted.
// It is the payload of the new_message realtime event.
type MessageRecord struct {
	ID             uuid.UUID      `json:"id"`
	ConversationID ConversationID `json:"conversationId"`
	SenderID       string         `json:"senderId"`
	SenderKind     Kind           `json:"senderModel"`
	SenderName     string         `json:"senderName"`
	ReceiverID     string         `json:"receiverId"`
	ReceiverKind   Kind           `json:"receiverModel"`
	ReceiverName   string         `json:"receiverName"`
	Type           MessageType    `json:"messageType"`
	Text           string         `json:"message"`
	File           *Attachment    `json:"file,omitempty"`
	Voice          *Voice         `json:"voice,omitempty"`
	IsRead         bool           `json:"isRead"`
	CreatedAt      time.Time      `json:"createdAt"`
}

type Attachment struct {
	URL  string `json:"url"`
	Name string `json:"name"`
	Size int64  `json:"size"`
	Type string `json:"type"`
}

type Voice struct {
	URL      string `json:"url"`
	Duration int    `json:"duration"`
}
