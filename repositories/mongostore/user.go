package mongostore

import (
	"chat-presence/domain"
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type userDocument struct {
	ID       string `bson:"_id"`
	Username string `bson:"username"`
	Key      string `bson:"key"`
	Online   bool   `bson:"online"`
}

// UpsertUser relies on the unique index on key. Two concurrent first joins
// race on the upsert; the loser gets a duplicate key error and reads the winner.
func (s *Store) UpsertUser(ctx context.Context, key, username string) (domain.User, error) {
	update := bson.M{"$setOnInsert": bson.M{
		"_id":      uuid.NewString(),
		"username": username,
		"online":   false,
	}}
	var doc userDocument
	err := s.users.FindOneAndUpdate(ctx, bson.M{"key": key}, update, upsertAfter()).Decode(&doc)
	if mongo.IsDuplicateKeyError(err) {
		err = s.users.FindOne(ctx, bson.M{"key": key}).Decode(&doc)
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("upsert user: %w", err)
	}
	return toUser(doc), nil
}

func (s *Store) GetUser(ctx context.Context, id domain.UserID) (domain.User, error) {
	var doc userDocument
	if err := s.users.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		return domain.User{}, notFound(err, "user "+string(id))
	}
	return toUser(doc), nil
}

func (s *Store) SetOnline(ctx context.Context, id domain.UserID, online bool) error {
	res, err := s.users.UpdateOne(ctx, bson.M{"_id": string(id)}, bson.M{"$set": bson.M{"online": online}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return notFound(mongo.ErrNoDocuments, "user "+string(id))
	}
	return nil
}

func (s *Store) ResetPresence(ctx context.Context) error {
	res, err := s.users.UpdateMany(ctx, bson.M{"online": true}, bson.M{"$set": bson.M{"online": false}})
	if err != nil {
		return err
	}
	s.log.Debug("Presence reset", "users", res.ModifiedCount)
	return nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.User, error) {
	cursor, err := s.users.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "username", Value: 1}}))
	if err != nil {
		return nil, err
	}
	var docs []userDocument
	if err = cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	return lo.Map(docs, func(d userDocument, _ int) domain.User { return toUser(d) }), nil
}

func toUser(d userDocument) domain.User {
	return domain.User{
		ID:       domain.UserID(d.ID),
		Username: d.Username,
		Key:      d.Key,
		Online:   d.Online,
	}
}
