package services_test

import (
	"chat-presence/domain"
	"chat-presence/errors"
	"chat-presence/mocks"
	"chat-presence/observability"
	"chat-presence/runtime"
	"chat-presence/services"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func newService(t *testing.T) (*services.ChatService, *mocks.MockStore) {
	t.Helper()
	ctrl := gomock.NewController(t)
	store := mocks.NewMockStore(ctrl)
	o := runtime.NewOrchestrator(slog.Default(), store, observability.NewMonitoringManager(slog.Default()), runtime.Config{
		DefaultRoom:      domain.DefaultRoomName,
		StoreTimeout:     time.Second,
		MaxContentLength: 100,
		TypingTTL:        time.Second,
	})
	return services.NewChatService(o), store
}

func TestChatService_Join_Rejects_Invalid_Identity(t *testing.T) {
	svc, _ := newService(t)
	sink := mocks.NewMockEventSink(gomock.NewController(t))

	tests := []struct {
		name string
		req  services.JoinRequest
	}{
		{name: "missing username", req: services.JoinRequest{}},
		{name: "blank username", req: services.JoinRequest{Username: "   "}},
		{name: "username too long", req: services.JoinRequest{Username: strings.Repeat("a", 51)}},
		{name: "malformed email", req: services.JoinRequest{Username: "alice", Email: "not-an-email"}},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			connID := domain.ConnID(strings.Repeat("c", i+1))
			req.NoError(svc.Connect(connID, sink))

			// The mocked store has no expectation, any call would fail the test
			_, _, err := svc.Join(context.Background(), connID, tt.req)

			req.ErrorIs(err, errors.ErrIdentity)
		})
	}
}

func TestChatService_Join_Reports_The_Wire_Field_Name(t *testing.T) {
	req := require.New(t)
	svc, _ := newService(t)

	_, _, err := svc.Join(context.Background(), "c1", services.JoinRequest{Username: "alice", Email: "nope"})

	req.ErrorIs(err, errors.ErrIdentity)
	req.Contains(err.Error(), "email failed on email")
}

func TestChatService_SendMessage_Validation(t *testing.T) {
	svc, _ := newService(t)

	t.Run("should reject a missing room", func(t *testing.T) {
		req := require.New(t)
		_, err := svc.SendMessage(context.Background(), "c1", services.SendMessageRequest{Content: "hi"})
		req.ErrorIs(err, errors.ErrValidation)
	})

	t.Run("should reject a relative attachment url", func(t *testing.T) {
		req := require.New(t)
		_, err := svc.SendMessage(context.Background(), "c1", services.SendMessageRequest{
			RoomID:  "r1",
			FileURL: "uploads/cat.png",
		})
		req.ErrorIs(err, errors.ErrValidation)
	})

	t.Run("should reach the orchestrator once the request is well formed", func(t *testing.T) {
		req := require.New(t)
		// c1 never joined
		_, err := svc.SendMessage(context.Background(), "c1", services.SendMessageRequest{RoomID: "r1", Content: "hi"})
		req.ErrorIs(err, errors.ErrUnauthenticated)
	})
}

func TestChatService_React(t *testing.T) {
	svc, store := newService(t)

	t.Run("should fail when reaction is missing", func(t *testing.T) {
		req := require.New(t)
		store.EXPECT().SetReaction(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

		_, err := svc.React(context.Background(), services.ReactRequest{MessageID: "m1", UserID: "u1"})

		req.ErrorIs(err, errors.ErrValidation)
	})

	t.Run("should store the reaction", func(t *testing.T) {
		req := require.New(t)
		updated := domain.Message{
			ID:        "m1",
			Reactions: []domain.Reaction{{User: "u1", Type: "👍"}},
		}
		store.EXPECT().
			SetReaction(gomock.Any(), domain.MessageID("m1"), domain.UserID("u1"), "👍").
			Return(updated, nil).
			Times(1)

		msg, err := svc.React(context.Background(), services.ReactRequest{MessageID: "m1", UserID: "u1", Reaction: "👍"})

		req.NoError(err)
		req.Equal(updated, msg)
	})

	t.Run("should report an unknown message", func(t *testing.T) {
		req := require.New(t)
		store.EXPECT().
			SetReaction(gomock.Any(), domain.MessageID("missing"), domain.UserID("u1"), "❤️").
			Return(domain.Message{}, errors.ErrNotFound)

		_, err := svc.React(context.Background(), services.ReactRequest{MessageID: "missing", UserID: "u1", Reaction: "❤️"})

		req.ErrorIs(err, errors.ErrNotFound)
	})
}

func TestChatService_MarkRead(t *testing.T) {
	req := require.New(t)
	svc, store := newService(t)

	// Given a read receipt without user
	err := svc.MarkRead(context.Background(), services.ReadRequest{MessageID: "m1"})
	req.ErrorIs(err, errors.ErrValidation)

	// When a complete receipt arrives
	store.EXPECT().
		AddReadReceipt(gomock.Any(), domain.MessageID("m1"), domain.UserID("u1")).
		Return(domain.Message{ID: "m1", ReadBy: []domain.UserID{"u1"}}, nil)

	// Then it is recorded
	req.NoError(svc.MarkRead(context.Background(), services.ReadRequest{MessageID: "m1", UserID: "u1"}))
}
