//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"chat-presence/domain"
	"chat-presence/domain/event"
	"context"
	"reflect"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// EventSink is the outbound side of one connection.
// Consume must not block: a sink that cannot accept an event reports an error instead.
type EventSink interface {
	Consume(ctx context.Context, e event.DomainEvent) error
}

// Store is the durable state of users, rooms and messages.
// Missing entities are reported with errors.ErrNotFound, anything else is a store failure.
type Store interface {
	// UpsertUser returns the user owning key, creating it with username on first use.
	UpsertUser(ctx context.Context, key, username string) (domain.User, error)
	GetUser(ctx context.Context, id domain.UserID) (domain.User, error)
	SetOnline(ctx context.Context, id domain.UserID, online bool) error
	// ResetPresence marks every user offline.
	ResetPresence(ctx context.Context) error
	ListUsers(ctx context.Context) ([]domain.User, error)

	// FindOrCreateRoom is atomic: concurrent callers with the same name get the same room.
	FindOrCreateRoom(ctx context.Context, name string) (domain.Room, error)
	GetRoom(ctx context.Context, id domain.RoomID) (domain.Room, error)
	AddMember(ctx context.Context, roomID domain.RoomID, userID domain.UserID) (domain.Room, error)

	// CreateMessage assigns ID and CreatedAt. CreatedAt strictly increases per store.
	CreateMessage(ctx context.Context, msg domain.Message) (domain.Message, error)
	GetMessage(ctx context.Context, id domain.MessageID) (domain.Message, error)
	// ListMessages returns the messages of a room ordered by CreatedAt ascending.
	ListMessages(ctx context.Context, roomID domain.RoomID) ([]domain.Message, error)
	SetReaction(ctx context.Context, id domain.MessageID, userID domain.UserID, kind string) (domain.Message, error)
	AddReadReceipt(ctx context.Context, id domain.MessageID, userID domain.UserID) (domain.Message, error)

	Close() error
}
