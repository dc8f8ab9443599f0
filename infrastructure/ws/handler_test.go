package ws

import (
	"chat-presence/domain"
	"chat-presence/domain/event"
	"chat-presence/errors"
	"chat-presence/services"
	servicemocks "chat-presence/services/mocks"
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

// expectLifecycle registers the connection and returns a channel closed on disconnect.
func expectLifecycle(service *servicemocks.MockIChatService) <-chan struct{} {
	disconnected := make(chan struct{})
	service.EXPECT().Connect(gomock.Any(), gomock.Any()).Return(nil)
	service.EXPECT().
		Disconnect(gomock.Any(), gomock.Any()).
		Do(func(ctx context.Context, connID domain.ConnID) { close(disconnected) })
	return disconnected
}

func closeAndWait(t *testing.T, conn *websocket.Conn, disconnected <-chan struct{}) {
	t.Helper()
	_ = conn.Close()
	select {
	case <-disconnected:
	case <-time.After(2 * time.Second):
		t.Fatal("connection was never disconnected")
	}
}

func TestHandler_Unknown_Event(t *testing.T) {
	req := require.New(t)
	service := servicemocks.NewMockIChatService(gomock.NewController(t))
	disconnected := expectLifecycle(service)
	srv, _ := newTestServer(t, service, Config{})
	conn := dial(t, srv)

	// When a client sends an event nobody handles
	sendFrame(t, conn, "dance", map[string]string{})

	// Then it gets an error frame and stays connected
	e := expectEvent[event.Error](t, conn, string(event.ErrorType))
	req.Equal("dance", e.Event)
	req.Equal("unknown_event", e.Code)

	closeAndWait(t, conn, disconnected)
}

func TestHandler_Malformed_Frame(t *testing.T) {
	req := require.New(t)
	service := servicemocks.NewMockIChatService(gomock.NewController(t))
	disconnected := expectLifecycle(service)
	srv, _ := newTestServer(t, service, Config{})
	conn := dial(t, srv)

	req.NoError(conn.WriteMessage(websocket.TextMessage, []byte("{not json")))

	e := expectEvent[event.Error](t, conn, string(event.ErrorType))
	req.Equal("validation_error", e.Code)

	closeAndWait(t, conn, disconnected)
}

func TestHandler_JoinRoom_Accepts_Both_Shapes(t *testing.T) {
	for _, tc := range []struct {
		name string
		data any
	}{
		{name: "bare room id", data: "r1"},
		{name: "object", data: map[string]string{"roomId": "r1"}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			service := servicemocks.NewMockIChatService(gomock.NewController(t))
			disconnected := expectLifecycle(service)
			joined := make(chan services.JoinRoomRequest, 1)
			service.EXPECT().
				JoinRoom(gomock.Any(), gomock.Any(), gomock.Any()).
				DoAndReturn(func(ctx context.Context, connID domain.ConnID, req services.JoinRoomRequest) (domain.Room, error) {
					joined <- req
					return domain.Room{ID: "r1"}, nil
				})
			srv, _ := newTestServer(t, service, Config{})
			conn := dial(t, srv)

			// When the client asks for room r1
			sendFrame(t, conn, JoinRoomEvent, tc.data)

			// Then the service is asked for r1
			select {
			case req := <-joined:
				require.Equal(t, "r1", req.RoomID)
			case <-time.After(2 * time.Second):
				t.Fatal("join_room never reached the service")
			}

			closeAndWait(t, conn, disconnected)
		})
	}
}

func TestHandler_React_Uses_The_Joined_User(t *testing.T) {
	req := require.New(t)
	service := servicemocks.NewMockIChatService(gomock.NewController(t))
	disconnected := expectLifecycle(service)
	srv, _ := newTestServer(t, service, Config{})
	conn := dial(t, srv)
	alice := domain.User{ID: "u-alice", Username: "alice"}

	// Given a connection that has not joined yet
	sendFrame(t, conn, ReactEvent, map[string]string{"messageId": "m1", "reaction": "👍"})
	e := expectEvent[event.Error](t, conn, string(event.ErrorType))
	req.Equal("unauthenticated", e.Code)

	// When alice joins then reacts, claiming to be someone else
	service.EXPECT().
		Join(gomock.Any(), gomock.Any(), services.JoinRequest{Username: "alice"}).
		Return(alice, domain.Room{ID: "r1"}, nil)
	updated := domain.Message{ID: "m1", Reactions: []domain.Reaction{{User: alice.ID, Type: "👍"}}}
	service.EXPECT().
		React(gomock.Any(), services.ReactRequest{MessageID: "m1", UserID: "u-alice", Reaction: "👍"}).
		Return(updated, nil)

	sendFrame(t, conn, UserJoinEvent, map[string]string{"username": "alice"})
	sendFrame(t, conn, ReactEvent, map[string]string{"messageId": "m1", "userId": "u-mallory", "reaction": "👍"})

	// Then the reaction is stored for alice and echoed to her only
	msg := expectEvent[domain.Message](t, conn, string(event.ReactionUpdatedType))
	req.Equal(updated.Reactions, msg.Reactions)

	closeAndWait(t, conn, disconnected)
}

func TestHandler_Service_Error_Is_Reported(t *testing.T) {
	req := require.New(t)
	service := servicemocks.NewMockIChatService(gomock.NewController(t))
	disconnected := expectLifecycle(service)
	srv, _ := newTestServer(t, service, Config{})
	conn := dial(t, srv)

	service.EXPECT().
		SendMessage(gomock.Any(), gomock.Any(), services.SendMessageRequest{RoomID: "r1", Content: "hi"}).
		Return(domain.Message{}, errors.ErrStoreUnavailable)

	sendFrame(t, conn, SendMessageEvent, map[string]string{"roomId": "r1", "content": "hi"})

	e := expectEvent[event.Error](t, conn, string(event.ErrorType))
	req.Equal(SendMessageEvent, e.Event)
	req.Equal("store_unavailable", e.Code)

	closeAndWait(t, conn, disconnected)
}

func TestHandler_Rate_Limit(t *testing.T) {
	req := require.New(t)
	service := servicemocks.NewMockIChatService(gomock.NewController(t))
	disconnected := expectLifecycle(service)
	srv, _ := newTestServer(t, service, Config{RatePerSecond: 0.01, RateBurst: 1})
	conn := dial(t, srv)

	// Given a bucket holding a single token
	service.EXPECT().Typing(gomock.Any(), gomock.Any(), services.TypingRequest{RoomID: "r1", IsTyping: true}).Return(nil).Times(1)

	// When two frames arrive back to back
	sendFrame(t, conn, TypingEvent, map[string]any{"roomId": "r1", "isTyping": true})
	sendFrame(t, conn, TypingEvent, map[string]any{"roomId": "r1", "isTyping": true})

	// Then only the first one reaches the service
	e := expectEvent[event.Error](t, conn, string(event.ErrorType))
	req.Equal("rate_limited", e.Code)

	closeAndWait(t, conn, disconnected)
}

func TestHandler_Rejects_Disallowed_Origin(t *testing.T) {
	req := require.New(t)
	service := servicemocks.NewMockIChatService(gomock.NewController(t))
	srv, _ := newTestServer(t, service, Config{})

	header := http.Header{}
	header.Set("Origin", "http://evil.example")
	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), header)

	req.Error(err)
	req.Equal(http.StatusForbidden, resp.StatusCode)
}

func TestHandler_Frame_Too_Large_Closes_The_Connection(t *testing.T) {
	req := require.New(t)
	service := servicemocks.NewMockIChatService(gomock.NewController(t))
	disconnected := expectLifecycle(service)
	srv, _ := newTestServer(t, service, Config{MaxFrameSize: 64})
	conn := dial(t, srv)

	req.NoError(conn.WriteMessage(websocket.TextMessage, []byte(strings.Repeat("x", 1024))))

	select {
	case <-disconnected:
	case <-time.After(2 * time.Second):
		req.Fail("oversized frame should drop the connection")
	}
}

func TestHandler_Shutdown_Closes_Connections(t *testing.T) {
	req := require.New(t)
	service := servicemocks.NewMockIChatService(gomock.NewController(t))
	disconnected := expectLifecycle(service)
	srv, handler := newTestServer(t, service, Config{})
	conn := dial(t, srv)

	req.Eventually(func() bool { return handler.Active() == 1 }, time.Second, 10*time.Millisecond)
	req.NoError(handler.Shutdown(context.Background()))

	_, _, err := conn.ReadMessage()
	req.True(websocket.IsCloseError(err, websocket.CloseGoingAway))
	<-disconnected
	req.Eventually(func() bool { return handler.Active() == 0 }, time.Second, 10*time.Millisecond)
}
