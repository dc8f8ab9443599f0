package mongostore

import (
	"chat-presence/domain"
	"chat-presence/errors"
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type senderDocument struct {
	ID       string `bson:"id"`
	Username string `bson:"username"`
}

type reactionDocument struct {
	User string `bson:"user"`
	Type string `bson:"type"`
}

// messageDocument keeps createdAt for readability and createdAtNano for ordering,
// BSON dates only carry milliseconds.
type messageDocument struct {
	ID            string             `bson:"_id"`
	Room          string             `bson:"room"`
	Sender        senderDocument     `bson:"sender"`
	Content       string             `bson:"content"`
	FileURL       string             `bson:"fileUrl,omitempty"`
	ReadBy        []string           `bson:"readBy"`
	Reactions     []reactionDocument `bson:"reactions"`
	CreatedAt     time.Time          `bson:"createdAt"`
	CreatedAtNano int64              `bson:"createdAtNano"`
}

func (s *Store) CreateMessage(ctx context.Context, msg domain.Message) (domain.Message, error) {
	count, err := s.rooms.CountDocuments(ctx, bson.M{"_id": string(msg.RoomID)})
	if err != nil {
		return domain.Message{}, err
	}
	if count == 0 {
		return domain.Message{}, fmt.Errorf("room %s: %w", msg.RoomID, errors.ErrNotFound)
	}

	msg.ID = domain.MessageID(uuid.NewString())
	msg.CreatedAt = s.clock.Next()
	msg.ReadBy = []domain.UserID{}
	msg.Reactions = []domain.Reaction{}
	if _, err = s.messages.InsertOne(ctx, fromMessage(msg)); err != nil {
		return domain.Message{}, fmt.Errorf("insert message: %w", err)
	}
	return msg, nil
}

func (s *Store) GetMessage(ctx context.Context, id domain.MessageID) (domain.Message, error) {
	var doc messageDocument
	if err := s.messages.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		return domain.Message{}, notFound(err, "message "+string(id))
	}
	return toMessage(doc), nil
}

// ListMessages sorts newest first when a limit applies, then restores ascending order.
func (s *Store) ListMessages(ctx context.Context, roomID domain.RoomID) ([]domain.Message, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAtNano", Value: 1}})
	if s.limitMessages != nil {
		opts = options.Find().
			SetSort(bson.D{{Key: "createdAtNano", Value: -1}}).
			SetLimit(int64(*s.limitMessages))
	}
	cursor, err := s.messages.Find(ctx, bson.M{"room": string(roomID)}, opts)
	if err != nil {
		return nil, err
	}
	var docs []messageDocument
	if err = cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	messages := lo.Map(docs, func(d messageDocument, _ int) domain.Message { return toMessage(d) })
	if s.limitMessages != nil {
		messages = lo.Reverse(messages)
	}
	return messages, nil
}

// SetReaction drops the user's previous reaction and appends the new one in a
// single pipeline update, so concurrent reactions never leave two entries.
func (s *Store) SetReaction(ctx context.Context, id domain.MessageID, userID domain.UserID, kind string) (domain.Message, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$set", Value: bson.M{
			"reactions": bson.M{"$concatArrays": bson.A{
				bson.M{"$filter": bson.M{
					"input": bson.M{"$ifNull": bson.A{"$reactions", bson.A{}}},
					"as":    "r",
					"cond":  bson.M{"$ne": bson.A{"$$r.user", string(userID)}},
				}},
				bson.A{bson.M{"user": string(userID), "type": kind}},
			}},
		}}},
	}
	var doc messageDocument
	err := s.messages.FindOneAndUpdate(ctx, bson.M{"_id": string(id)}, pipeline, returnAfter()).Decode(&doc)
	if err != nil {
		return domain.Message{}, notFound(err, "message "+string(id))
	}
	return toMessage(doc), nil
}

func (s *Store) AddReadReceipt(ctx context.Context, id domain.MessageID, userID domain.UserID) (domain.Message, error) {
	var doc messageDocument
	err := s.messages.FindOneAndUpdate(ctx,
		bson.M{"_id": string(id)},
		bson.M{"$addToSet": bson.M{"readBy": string(userID)}},
		returnAfter(),
	).Decode(&doc)
	if err != nil {
		return domain.Message{}, notFound(err, "message "+string(id))
	}
	return toMessage(doc), nil
}

func fromMessage(m domain.Message) messageDocument {
	return messageDocument{
		ID:      string(m.ID),
		Room:    string(m.RoomID),
		Sender:  senderDocument{ID: string(m.Sender.ID), Username: m.Sender.Username},
		Content: m.Content,
		FileURL: m.FileURL,
		ReadBy:  lo.Map(m.ReadBy, func(id domain.UserID, _ int) string { return string(id) }),
		Reactions: lo.Map(m.Reactions, func(r domain.Reaction, _ int) reactionDocument {
			return reactionDocument{User: string(r.User), Type: r.Type}
		}),
		CreatedAt:     m.CreatedAt,
		CreatedAtNano: m.CreatedAt.UnixNano(),
	}
}

func toMessage(d messageDocument) domain.Message {
	return domain.Message{
		ID:      domain.MessageID(d.ID),
		RoomID:  domain.RoomID(d.Room),
		Sender:  domain.Sender{ID: domain.UserID(d.Sender.ID), Username: d.Sender.Username},
		Content: d.Content,
		FileURL: d.FileURL,
		ReadBy:  lo.Map(d.ReadBy, func(id string, _ int) domain.UserID { return domain.UserID(id) }),
		Reactions: lo.Map(d.Reactions, func(r reactionDocument, _ int) domain.Reaction {
			return domain.Reaction{User: domain.UserID(r.User), Type: r.Type}
		}),
		CreatedAt: time.Unix(0, d.CreatedAtNano).UTC(),
	}
}
