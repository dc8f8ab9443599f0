package repositories

import (
	"chat-presence/domain"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

const (
	messagePrefix      = "msg:"
	messageIndexPrefix = "msgidx:"
)

// DiskMessage is the stored form of a message. At is kept in nanoseconds.
type DiskMessage struct {
	ID             string            `json:"id"`
	Room           string            `json:"room"`
	SenderID       string            `json:"senderId"`
	SenderUsername string            `json:"senderUsername"`
	Content        string            `json:"content"`
	FileURL        string            `json:"fileUrl,omitempty"`
	ReadBy         []string          `json:"readBy"`
	Reactions      []domain.Reaction `json:"reactions"`
	At             int64             `json:"at"`
}

// messageKey is formatted as "msg:{room_id}:{timestamp_padded}:{id}" to:
//  1. Ensure chronological sorting using 19-digit zero padding (lexicographical order).
//  2. Keep two messages of the same nanosecond apart with the id suffix.
func messageKey(roomID domain.RoomID, at time.Time, id domain.MessageID) string {
	return fmt.Sprintf("%s%s:%019d:%s", messagePrefix, roomID, at.UnixNano(), id)
}

func roomMessagesPrefix(roomID domain.RoomID) string {
	return fmt.Sprintf("%s%s:", messagePrefix, roomID)
}

// CreateMessage persists a message in an existing room.
// The store owns ID and CreatedAt, the caller's values are ignored.
func (s *BadgerStore) CreateMessage(ctx context.Context, msg domain.Message) (domain.Message, error) {
	msg.ID = domain.MessageID(uuid.NewString())
	msg.CreatedAt = s.clock.Next()
	msg.ReadBy = []domain.UserID{}
	msg.Reactions = []domain.Reaction{}
	key := messageKey(msg.RoomID, msg.CreatedAt, msg.ID)

	err := s.update(ctx, func(txn *badger.Txn) error {
		if _, err := get(txn, roomIDPrefix+string(msg.RoomID)); err != nil {
			return err
		}
		if err := setJSON(txn, key, fromMessage(msg)); err != nil {
			return err
		}
		return txn.Set([]byte(messageIndexPrefix+string(msg.ID)), []byte(key))
	})
	if err != nil {
		return domain.Message{}, err
	}
	return msg, nil
}

func (s *BadgerStore) GetMessage(ctx context.Context, id domain.MessageID) (domain.Message, error) {
	var message DiskMessage
	err := s.view(ctx, func(txn *badger.Txn) error {
		key, err := get(txn, messageIndexPrefix+string(id))
		if err != nil {
			return err
		}
		return getJSON(txn, string(key), &message)
	})
	if err != nil {
		return domain.Message{}, err
	}
	return toMessage(message), nil
}

// ListMessages retrieves messages for a specific room using a reverse prefix scan,
// so that limitMessages keeps the most recent ones. The result is returned
// oldest first.
func (s *BadgerStore) ListMessages(ctx context.Context, roomID domain.RoomID) ([]domain.Message, error) {
	var diskMessages []DiskMessage
	err := s.view(ctx, func(txn *badger.Txn) error {
		diskMessages = nil
		prefix := []byte(roomMessagesPrefix(roomID))
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		// Highest possible key of the room, the scan walks back from there
		seekKey := append(append([]byte{}, prefix...), 0xFF)
		for it.Seek(seekKey); it.ValidForPrefix(prefix); it.Next() {
			if s.limitMessages != nil && len(diskMessages) == *s.limitMessages {
				s.log.Debug(fmt.Sprintf("Maximum of %d message reached", *s.limitMessages))
				break
			}
			var message DiskMessage
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &message)
			})
			if err != nil {
				return err
			}
			diskMessages = append(diskMessages, message)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	messages := lo.Map(diskMessages, func(m DiskMessage, _ int) domain.Message { return toMessage(m) })
	return lo.Reverse(messages), nil
}

// SetReaction replaces the user's previous reaction, if any.
func (s *BadgerStore) SetReaction(ctx context.Context, id domain.MessageID, userID domain.UserID, kind string) (domain.Message, error) {
	return s.mutateMessage(ctx, id, func(m domain.Message) (domain.Message, bool) {
		return m.WithReaction(userID, kind), true
	})
}

func (s *BadgerStore) AddReadReceipt(ctx context.Context, id domain.MessageID, userID domain.UserID) (domain.Message, error) {
	return s.mutateMessage(ctx, id, func(m domain.Message) (domain.Message, bool) {
		return m.WithReader(userID)
	})
}

// mutateMessage is a read-modify-write on one message. fn reports whether
// the message changed and has to be written back.
func (s *BadgerStore) mutateMessage(
	ctx context.Context,
	id domain.MessageID,
	fn func(domain.Message) (domain.Message, bool),
) (domain.Message, error) {
	var result domain.Message
	err := s.update(ctx, func(txn *badger.Txn) error {
		key, err := get(txn, messageIndexPrefix+string(id))
		if err != nil {
			return err
		}
		var message DiskMessage
		if err = getJSON(txn, string(key), &message); err != nil {
			return err
		}
		updated, changed := fn(toMessage(message))
		result = updated
		if !changed {
			return nil
		}
		return setJSON(txn, string(key), fromMessage(updated))
	})
	if err != nil {
		return domain.Message{}, err
	}
	return result, nil
}

func fromMessage(m domain.Message) DiskMessage {
	return DiskMessage{
		ID:             string(m.ID),
		Room:           string(m.RoomID),
		SenderID:       string(m.Sender.ID),
		SenderUsername: m.Sender.Username,
		Content:        m.Content,
		FileURL:        m.FileURL,
		ReadBy:         lo.Map(m.ReadBy, func(id domain.UserID, _ int) string { return string(id) }),
		Reactions:      m.Reactions,
		At:             m.CreatedAt.UnixNano(),
	}
}

func toMessage(m DiskMessage) domain.Message {
	reactions := m.Reactions
	if reactions == nil {
		reactions = []domain.Reaction{}
	}
	return domain.Message{
		ID:     domain.MessageID(m.ID),
		RoomID: domain.RoomID(m.Room),
		Sender: domain.Sender{
			ID:       domain.UserID(m.SenderID),
			Username: m.SenderUsername,
		},
		Content:   m.Content,
		FileURL:   m.FileURL,
		ReadBy:    lo.Map(m.ReadBy, func(id string, _ int) domain.UserID { return domain.UserID(id) }),
		Reactions: reactions,
		CreatedAt: time.Unix(0, m.At).UTC(),
	}
}
