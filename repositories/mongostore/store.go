// Package mongostore implements contract.Store on MongoDB.
// It is selected with STORE_DRIVER=mongo.
package mongostore

import (
	"chat-presence/errors"
	"chat-presence/repositories"
	"context"
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	usersCollection    = "users"
	roomsCollection    = "rooms"
	messagesCollection = "messages"
)

type Config struct {
	URI           string
	Database      string
	MaxPoolSize   uint64
	LimitMessages *int
}

type Store struct {
	client        *mongo.Client
	users         *mongo.Collection
	rooms         *mongo.Collection
	messages      *mongo.Collection
	log           *slog.Logger
	clock         *repositories.MonotonicClock
	limitMessages *int
}

// Open connects, pings and makes sure the unique indexes exist.
func Open(ctx context.Context, cfg Config, log *slog.Logger) (*Store, error) {
	opts := options.Client().ApplyURI(cfg.URI)
	if cfg.MaxPoolSize > 0 {
		opts.SetMaxPoolSize(cfg.MaxPoolSize)
	}
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo connect failed: %w", err)
	}
	if err = client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping failed: %w", err)
	}

	db := client.Database(cfg.Database)
	s := &Store{
		client:        client,
		users:         db.Collection(usersCollection),
		rooms:         db.Collection(roomsCollection),
		messages:      db.Collection(messagesCollection),
		log:           log,
		clock:         repositories.NewMonotonicClock(),
		limitMessages: cfg.LimitMessages,
	}
	if err = s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	log.Info("MongoDB store ready", "database", cfg.Database)
	return s, nil
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	if _, err := s.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "key", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return fmt.Errorf("users index: %w", err)
	}
	if _, err := s.rooms.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "name", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return fmt.Errorf("rooms index: %w", err)
	}
	if _, err := s.messages.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "room", Value: 1}, {Key: "createdAtNano", Value: 1}},
	}); err != nil {
		return fmt.Errorf("messages index: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.client.Disconnect(context.Background())
}

// notFound turns mongo.ErrNoDocuments into errors.ErrNotFound.
func notFound(err error, what string) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return fmt.Errorf("%s: %w", what, errors.ErrNotFound)
	}
	return err
}

// upsertAfter is shared by the find-or-create operations.
func upsertAfter() *options.FindOneAndUpdateOptions {
	return options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
}

func returnAfter() *options.FindOneAndUpdateOptions {
	return options.FindOneAndUpdate().SetReturnDocument(options.After)
}
