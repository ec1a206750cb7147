package domain

// SendMessageCommand carries a message intent before it is persisted.
type SendMessageCommand struct {
	Sender     Identity
	ReceiverID string `validate:"required"`
	Text       string
	Upload     *Upload
	// VoiceDuration is only meaningful when Upload is an audio file.
	VoiceDuration int `validate:"gte=0"`
}

// Upload is a stored file referenced by a message.
type Upload struct {
	URL      string
	Name     string
	Size     int64
	MimeType string
}

type GetConversationCommand struct {
	Requester      Identity
	ConversationID ConversationID `validate:"required"`
	Cursor         *string
	Limit          int `validate:"gte=0"`
}

type ConversationPage struct {
	ConversationID ConversationID  `json:"conversationId"`
	Messages       []MessageRecord `json:"messages"`
	Cursor         *string         `json:"cursor,omitempty"`
}
