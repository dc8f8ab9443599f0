package mongostore

import (
	"chat-presence/domain"
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

type roomDocument struct {
	ID        string   `bson:"_id"`
	Name      string   `bson:"name"`
	IsPrivate bool     `bson:"isPrivate"`
	Members   []string `bson:"members"`
}

func (s *Store) FindOrCreateRoom(ctx context.Context, name string) (domain.Room, error) {
	update := bson.M{"$setOnInsert": bson.M{
		"_id":       uuid.NewString(),
		"isPrivate": false,
		"members":   bson.A{},
	}}
	var doc roomDocument
	err := s.rooms.FindOneAndUpdate(ctx, bson.M{"name": name}, update, upsertAfter()).Decode(&doc)
	if mongo.IsDuplicateKeyError(err) {
		err = s.rooms.FindOne(ctx, bson.M{"name": name}).Decode(&doc)
	}
	if err != nil {
		return domain.Room{}, fmt.Errorf("find or create room: %w", err)
	}
	return toRoom(doc), nil
}

func (s *Store) GetRoom(ctx context.Context, id domain.RoomID) (domain.Room, error) {
	var doc roomDocument
	if err := s.rooms.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		return domain.Room{}, notFound(err, "room "+string(id))
	}
	return toRoom(doc), nil
}

func (s *Store) AddMember(ctx context.Context, roomID domain.RoomID, userID domain.UserID) (domain.Room, error) {
	var doc roomDocument
	err := s.rooms.FindOneAndUpdate(ctx,
		bson.M{"_id": string(roomID)},
		bson.M{"$addToSet": bson.M{"members": string(userID)}},
		returnAfter(),
	).Decode(&doc)
	if err != nil {
		return domain.Room{}, notFound(err, "room "+string(roomID))
	}
	return toRoom(doc), nil
}

func toRoom(d roomDocument) domain.Room {
	return domain.Room{
		ID:        domain.RoomID(d.ID),
		Name:      d.Name,
		IsPrivate: d.IsPrivate,
		Members:   lo.Map(d.Members, func(id string, _ int) domain.UserID { return domain.UserID(id) }),
	}
}
