//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_repository.go -package=mocks
package repositories

import (
	"chat-relay/domain"
	"chat-relay/errors"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"slices"

	"github.com/dgraph-io/badger/v4"
)

const (
	messagePrefix = "msg:"
	unreadPrefix  = "unread:"
)

// A cursor is the "{timestamp_padded}:{uuid}" tail of a message key.
var cursorPattern = regexp.MustCompile(`^\d{19}:[0-9a-f-]{36}$`)

type IMessageRepository interface {
	StoreMessage(record domain.MessageRecord) error
	GetMessages(conversationID domain.ConversationID, cursor *string, limit int) ([]domain.MessageRecord, *string, error)
	MarkRead(conversationID domain.ConversationID, receiverID string) (int, error)
	CountUnread(receiverID string) (int, error)
}

type MessageRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewMessageRepository(db *badger.DB, log *slog.Logger) MessageRepository {
	return MessageRepository{db: db, log: log}
}

func conversationPrefix(conversationID domain.ConversationID) string {
	return fmt.Sprintf("%s%s:", messagePrefix, conversationID)
}

// messageKey is formatted as "msg:{conversation_id}:{timestamp_padded}:{uuid}":
//  1. 19-digit zero padding keeps keys of a conversation in chronological order.
//  2. The uuid breaks ties between messages stored in the same nanosecond.
func messageKey(record domain.MessageRecord) []byte {
	return []byte(fmt.Sprintf("%s%019d:%s",
		conversationPrefix(record.ConversationID),
		record.CreatedAt.UnixNano(),
		record.ID,
	))
}

// unreadKey indexes an unread message under its receiver as
// "unread:{receiver_id}:{conversation_id}:{timestamp_padded}:{uuid}".
func unreadKey(record domain.MessageRecord) []byte {
	return []byte(unreadPrefix + record.ReceiverID + ":" + string(messageKey(record)[len(messagePrefix):]))
}

// StoreMessage persists a message record in BadgerDB.
func (m MessageRepository) StoreMessage(record domain.MessageRecord) error {
	bytes, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal message %s: %w", record.ID, err)
	}
	return m.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(messageKey(record), bytes); err != nil {
			return err
		}
		if record.IsRead || record.ReceiverID == "" {
			return nil
		}
		return txn.Set(unreadKey(record), nil)
	})
}

// GetMessages walks a conversation backwards from the cursor (or from the
// newest message) and returns up to limit records in chronological order.
// The returned cursor points at the oldest record of the page and is nil once
// the beginning of the conversation has been reached.
func (m MessageRepository) GetMessages(conversationID domain.ConversationID, cursor *string, limit int) ([]domain.MessageRecord, *string, error) {
	if cursor != nil && !cursorPattern.MatchString(*cursor) {
		return nil, nil, errors.ErrInvalidCursor
	}
	if limit <= 0 {
		return []domain.MessageRecord{}, nil, nil
	}

	var records []domain.MessageRecord
	var lastKey string
	hasMore := false
	err := m.db.View(func(txn *badger.Txn) error {
		prefixStr := conversationPrefix(conversationID)
		prefix := []byte(prefixStr)
		prefixLen := len(prefixStr)
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		options.Prefix = prefix
		it := txn.NewIterator(options)
		defer it.Close()

		var seekKey []byte
		switch cursor {
		case nil:
			// Past every key of the conversation, the iterator moves back to the newest one
			seekKey = append([]byte(prefixStr), []byte("9999999999999999999;")...)
		default:
			seekKey = append([]byte(prefixStr), []byte(*cursor)...)
		}

		it.Seek(seekKey)
		if cursor != nil && it.ValidForPrefix(prefix) && string(it.Item().Key()[prefixLen:]) == *cursor {
			it.Next()
		}

		for ; it.ValidForPrefix(prefix); it.Next() {
			if len(records) == limit {
				hasMore = true
				break
			}
			item := it.Item()
			lastKey = string(item.Key()[prefixLen:])
			err := item.Value(func(value []byte) error {
				var record domain.MessageRecord
				if err := json.Unmarshal(value, &record); err != nil {
					return err
				}
				records = append(records, record)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	slices.Reverse(records)
	if records == nil {
		records = []domain.MessageRecord{}
	}
	if !hasMore {
		return records, nil, nil
	}
	m.log.Debug("Conversation page truncated", "conversation_id", conversationID, "limit", limit)
	return records, &lastKey, nil
}

// MarkRead flags every unread message of the conversation addressed to
// receiverID and returns how many were updated.
func (m MessageRepository) MarkRead(conversationID domain.ConversationID, receiverID string) (int, error) {
	updated := 0
	err := m.db.Update(func(txn *badger.Txn) error {
		prefix := []byte(conversationPrefix(conversationID))
		options := badger.DefaultIteratorOptions
		options.Prefix = prefix
		it := txn.NewIterator(options)
		defer it.Close()

		pending := make(map[string][]byte)
		var indexed [][]byte
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			var record domain.MessageRecord
			if err := item.Value(func(value []byte) error {
				return json.Unmarshal(value, &record)
			}); err != nil {
				return err
			}
			if record.IsRead || record.ReceiverID != receiverID {
				continue
			}
			record.IsRead = true
			bytes, err := json.Marshal(record)
			if err != nil {
				return err
			}
			pending[string(item.KeyCopy(nil))] = bytes
			indexed = append(indexed, unreadKey(record))
		}
		// Writes are applied once the iterator is done with the keys
		for key, bytes := range pending {
			if err := txn.Set([]byte(key), bytes); err != nil {
				return err
			}
		}
		for _, key := range indexed {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		updated = len(pending)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return updated, nil
}

// CountUnread returns how many messages addressed to receiverID are still
// unread, across every conversation.
func (m MessageRepository) CountUnread(receiverID string) (int, error) {
	count := 0
	err := m.db.View(func(txn *badger.Txn) error {
		prefix := []byte(unreadPrefix + receiverID + ":")
		options := badger.DefaultIteratorOptions
		options.Prefix = prefix
		options.PrefetchValues = false
		it := txn.NewIterator(options)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			count++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}
