//go:generate go run go.uber.org/mock/mockgen -source=chat_service.go -destination=../mocks/mock_chat_service.go -package=mocks
package services

import (
	"chat-relay/auth"
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/errors"
	"chat-relay/moderation"
	"chat-relay/repositories"
	"chat-relay/storage"
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

type IChatService interface {
	SendMessage(ctx context.Context, cmd domain.SendMessageCommand) (domain.MessageRecord, error)
	GetConversation(ctx context.Context, cmd domain.GetConversationCommand) (domain.ConversationPage, error)
	MarkConversationRead(ctx context.Context, requester domain.Identity, conversationID domain.ConversationID) (int, error)
	UnreadCount(ctx context.Context, requester domain.Identity) (int, error)
}

var _ IChatService = (*ChatService)(nil)

type ChatConfig struct {
	MaxMessageLength int
	DefaultPageLimit int
	MaxPageLimit     int
}

// ChatService persists messages and hands them to the realtime core.
type ChatService struct {
	log               *slog.Logger
	messageRepository repositories.IMessageRepository
	accountRepository repositories.IAccountRepository
	authorizer        contract.ConversationAuthorizer
	orchestrator      contract.IOrchestrator
	moderator         *moderation.Moderator
	config            ChatConfig
	now               func() time.Time
}

func NewChatService(
	log *slog.Logger,
	messageRepository repositories.IMessageRepository,
	accountRepository repositories.IAccountRepository,
	authorizer contract.ConversationAuthorizer,
	orchestrator contract.IOrchestrator,
	moderator *moderation.Moderator,
	config ChatConfig,
) *ChatService {
	return &ChatService{
		log:               log,
		messageRepository: messageRepository,
		accountRepository: accountRepository,
		authorizer:        authorizer,
		orchestrator:      orchestrator,
		moderator:         moderator,
		config:            config,
		now:               func() time.Time { return time.Now().UTC() },
	}
}

// SendMessage validates, censors and persists a message, then schedules its
// realtime delivery. Delivery only happens once the write succeeded; a
// delivery that cannot be scheduled does not fail the call since the message
// is already stored.
func (s *ChatService) SendMessage(ctx context.Context, cmd domain.SendMessageCommand) (domain.MessageRecord, error) {
	if cmd.ReceiverID == "" {
		return domain.MessageRecord{}, errors.ErrReceiverRequired
	}
	if err := auth.ValidateCommand(cmd); err != nil {
		return domain.MessageRecord{}, fmt.Errorf("%w: %v", errors.ErrInvalidRequest, err)
	}
	text := strings.TrimSpace(cmd.Text)
	if text == "" && cmd.Upload == nil {
		return domain.MessageRecord{}, errors.ErrEmptyMessage
	}
	if utf8.RuneCountInString(text) > s.config.MaxMessageLength {
		return domain.MessageRecord{}, errors.ErrMessageTooLong
	}

	sender, err := s.accountRepository.GetAccount(cmd.Sender.ID)
	if err != nil {
		return domain.MessageRecord{}, lookupError(err, errors.ErrSenderNotFound)
	}
	if sender.Suspended {
		return domain.MessageRecord{}, errors.ErrAccountSuspended
	}
	receiver, err := s.accountRepository.GetAccount(cmd.ReceiverID)
	if err != nil {
		return domain.MessageRecord{}, lookupError(err, errors.ErrReceiverNotFound)
	}

	if censored, words := s.moderator.Censor(text); len(words) > 0 {
		s.log.Debug("Message censored", "identity_id", sender.ID, "words", len(words))
		text = censored
	}

	record := domain.MessageRecord{
		ID:             uuid.New(),
		ConversationID: domain.NewConversationID(sender.ID, receiver.ID),
		SenderID:       sender.ID,
		SenderKind:     sender.Kind,
		SenderName:     sender.Name,
		ReceiverID:     receiver.ID,
		ReceiverKind:   receiver.Kind,
		ReceiverName:   receiver.Name,
		Type:           domain.MessageText,
		Text:           text,
		CreatedAt:      s.now(),
	}
	attach(&record, cmd.Upload, cmd.VoiceDuration)

	if err := s.messageRepository.StoreMessage(record); err != nil {
		return domain.MessageRecord{}, fmt.Errorf("store message: %w", err)
	}
	if err := s.orchestrator.Deliver(ctx, record); err != nil {
		s.log.Warn("Message stored but not delivered",
			"message_id", record.ID,
			"conversation_id", record.ConversationID,
			"error", err)
	}
	return record, nil
}

func attach(record *domain.MessageRecord, upload *domain.Upload, voiceDuration int) {
	if upload == nil {
		return
	}
	if storage.IsAudio(upload.MimeType) {
		record.Type = domain.MessageVoice
		record.Voice = &domain.Voice{URL: upload.URL, Duration: voiceDuration}
		return
	}
	record.Type = domain.MessageFile
	record.File = &domain.Attachment{
		URL:  upload.URL,
		Name: upload.Name,
		Size: upload.Size,
		Type: upload.MimeType,
	}
}

// GetConversation returns one page of history, oldest first, and marks the
// messages addressed to the requester as read.
func (s *ChatService) GetConversation(ctx context.Context, cmd domain.GetConversationCommand) (domain.ConversationPage, error) {
	if err := auth.ValidateCommand(cmd); err != nil {
		return domain.ConversationPage{}, fmt.Errorf("%w: %v", errors.ErrInvalidRequest, err)
	}
	if !s.authorizer.IsAuthorizedForConversation(ctx, cmd.Requester, cmd.ConversationID) {
		return domain.ConversationPage{}, errors.ErrNotAuthorized
	}

	limit := cmd.Limit
	switch {
	case limit == 0:
		limit = s.config.DefaultPageLimit
	case limit > s.config.MaxPageLimit:
		limit = s.config.MaxPageLimit
	}
	messages, cursor, err := s.messageRepository.GetMessages(cmd.ConversationID, cmd.Cursor, limit)
	if err != nil {
		return domain.ConversationPage{}, err
	}

	updated, err := s.messageRepository.MarkRead(cmd.ConversationID, cmd.Requester.ID)
	if err != nil {
		s.log.Warn("Unable to mark conversation as read",
			"conversation_id", cmd.ConversationID,
			"identity_id", cmd.Requester.ID,
			"error", err)
	} else if updated > 0 {
		for i := range messages {
			if messages[i].ReceiverID == cmd.Requester.ID {
				messages[i].IsRead = true
			}
		}
	}
	return domain.ConversationPage{
		ConversationID: cmd.ConversationID,
		Messages:       messages,
		Cursor:         cursor,
	}, nil
}

// MarkConversationRead flags the messages of the conversation addressed to
// the requester as read and returns how many changed.
func (s *ChatService) MarkConversationRead(ctx context.Context, requester domain.Identity, conversationID domain.ConversationID) (int, error) {
	if conversationID == "" {
		return 0, fmt.Errorf("%w: conversation id is required", errors.ErrInvalidRequest)
	}
	if !s.authorizer.IsAuthorizedForConversation(ctx, requester, conversationID) {
		return 0, errors.ErrNotAuthorized
	}
	updated, err := s.messageRepository.MarkRead(conversationID, requester.ID)
	if err != nil {
		return 0, fmt.Errorf("mark conversation read: %w", err)
	}
	return updated, nil
}

// UnreadCount returns how many messages wait unread for the requester.
func (s *ChatService) UnreadCount(_ context.Context, requester domain.Identity) (int, error) {
	count, err := s.messageRepository.CountUnread(requester.ID)
	if err != nil {
		return 0, fmt.Errorf("count unread: %w", err)
	}
	return count, nil
}

func lookupError(err error, notFound error) error {
	if stderrors.Is(err, errors.ErrAccountNotFound) {
		return notFound
	}
	return err
}
