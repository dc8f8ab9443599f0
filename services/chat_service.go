//go:generate go run go.uber.org/mock/mockgen -source=chat_service.go -destination=mocks/mock_chat_service.go -package=mocks
package services

import (
	"chat-presence/contract"
	"chat-presence/domain"
	"chat-presence/errors"
	"chat-presence/runtime"
	"context"
)

// IChatService is what the transports call. Requests are validated here,
// the orchestrator only sees well-formed values.
type IChatService interface {
	Connect(connID domain.ConnID, sink contract.EventSink) error
	Join(ctx context.Context, connID domain.ConnID, req JoinRequest) (domain.User, domain.Room, error)
	JoinRoom(ctx context.Context, connID domain.ConnID, req JoinRoomRequest) (domain.Room, error)
	SendMessage(ctx context.Context, connID domain.ConnID, req SendMessageRequest) (domain.Message, error)
	Typing(ctx context.Context, connID domain.ConnID, req TypingRequest) error
	React(ctx context.Context, req ReactRequest) (domain.Message, error)
	MarkRead(ctx context.Context, req ReadRequest) error
	History(ctx context.Context, roomID domain.RoomID) ([]domain.Message, error)
	Users(ctx context.Context) ([]domain.User, error)
	Disconnect(ctx context.Context, connID domain.ConnID)
}

type ChatService struct {
	orchestrator *runtime.Orchestrator
}

func NewChatService(o *runtime.Orchestrator) *ChatService {
	return &ChatService{orchestrator: o}
}

func (s *ChatService) Connect(connID domain.ConnID, sink contract.EventSink) error {
	return s.orchestrator.Connect(connID, sink)
}

func (s *ChatService) Join(ctx context.Context, connID domain.ConnID, req JoinRequest) (domain.User, domain.Room, error) {
	if err := validateJoin(req); err != nil {
		return domain.User{}, domain.Room{}, err
	}
	return s.orchestrator.Join(ctx, connID, domain.IdentityClaim{Name: req.Username, Email: req.Email})
}

func (s *ChatService) JoinRoom(ctx context.Context, connID domain.ConnID, req JoinRoomRequest) (domain.Room, error) {
	if err := validateRequest(req, errors.ErrValidation); err != nil {
		return domain.Room{}, err
	}
	return s.orchestrator.JoinRoom(ctx, connID, domain.RoomID(req.RoomID))
}

func (s *ChatService) SendMessage(ctx context.Context, connID domain.ConnID, req SendMessageRequest) (domain.Message, error) {
	if err := validateRequest(req, errors.ErrValidation); err != nil {
		return domain.Message{}, err
	}
	content := domain.Content{Text: req.Content, FileURL: req.FileURL}
	return s.orchestrator.SendMessage(ctx, connID, domain.RoomID(req.RoomID), content)
}

func (s *ChatService) Typing(ctx context.Context, connID domain.ConnID, req TypingRequest) error {
	if err := validateRequest(req, errors.ErrValidation); err != nil {
		return err
	}
	return s.orchestrator.SetTyping(ctx, connID, domain.RoomID(req.RoomID), req.IsTyping)
}

func (s *ChatService) React(ctx context.Context, req ReactRequest) (domain.Message, error) {
	if err := validateRequest(req, errors.ErrValidation); err != nil {
		return domain.Message{}, err
	}
	return s.orchestrator.React(ctx, domain.MessageID(req.MessageID), domain.UserID(req.UserID), req.Reaction)
}

func (s *ChatService) MarkRead(ctx context.Context, req ReadRequest) error {
	if err := validateRequest(req, errors.ErrValidation); err != nil {
		return err
	}
	return s.orchestrator.MarkRead(ctx, domain.MessageID(req.MessageID), domain.UserID(req.UserID))
}

func (s *ChatService) History(ctx context.Context, roomID domain.RoomID) ([]domain.Message, error) {
	return s.orchestrator.LoadHistory(ctx, roomID)
}

func (s *ChatService) Users(ctx context.Context) ([]domain.User, error) {
	return s.orchestrator.Users(ctx)
}

func (s *ChatService) Disconnect(ctx context.Context, connID domain.ConnID) {
	s.orchestrator.Disconnect(ctx, connID)
}
