package rest

import (
	"bytes"
	"chat-presence/domain"
	"chat-presence/errors"
	"chat-presence/observability"
	"chat-presence/services"
	servicemocks "chat-presence/services/mocks"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func newTestRouter(t *testing.T) (*gin.Engine, *servicemocks.MockIChatService, *observability.MonitoringManager) {
	t.Helper()
	service := servicemocks.NewMockIChatService(gomock.NewController(t))
	monitoring := observability.NewMonitoringManager(slog.Default())
	ws := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusTeapot) })
	router := NewRouter(slog.Default(), service, monitoring, ws)
	gin.SetMode(gin.TestMode)
	return router, service, monitoring
}

func do(router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var reader bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&reader).Encode(body)
	}
	r := httptest.NewRequest(method, path, &reader)
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)
	return w
}

func TestRouter_History(t *testing.T) {
	router, service, _ := newTestRouter(t)
	messages := []domain.Message{
		{ID: "m1", RoomID: "r1", Content: "hello", CreatedAt: time.Unix(1, 0).UTC()},
	}

	for _, path := range []string{"/rooms/r1/messages", "/api/messages/r1"} {
		t.Run(path, func(t *testing.T) {
			req := require.New(t)
			service.EXPECT().History(gomock.Any(), domain.RoomID("r1")).Return(messages, nil)

			w := do(router, http.MethodGet, path, nil)

			req.Equal(http.StatusOK, w.Code)
			var got []domain.Message
			req.NoError(json.Unmarshal(w.Body.Bytes(), &got))
			req.Equal(messages, got)
		})
	}
}

func TestRouter_History_Empty_Room_Is_An_Empty_Array(t *testing.T) {
	req := require.New(t)
	router, service, _ := newTestRouter(t)
	service.EXPECT().History(gomock.Any(), domain.RoomID("r1")).Return(nil, nil)

	w := do(router, http.MethodGet, "/rooms/r1/messages", nil)

	req.Equal(http.StatusOK, w.Code)
	req.JSONEq(`[]`, w.Body.String())
}

func TestRouter_Error_Mapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{name: "not found", err: fmt.Errorf("react: %w", errors.ErrNotFound), status: http.StatusNotFound, code: "not_found"},
		{name: "validation", err: errors.ErrValidation, status: http.StatusBadRequest, code: "validation_error"},
		{name: "store down", err: errors.ErrStoreUnavailable, status: http.StatusServiceUnavailable, code: "store_unavailable"},
		{name: "unexpected", err: fmt.Errorf("boom"), status: http.StatusInternalServerError, code: "internal_error"},
	}
	router, service, _ := newTestRouter(t)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			service.EXPECT().React(gomock.Any(), gomock.Any()).Return(domain.Message{}, tt.err)

			w := do(router, http.MethodPost, "/messages/m1/react", map[string]string{"userId": "u1", "reaction": "👍"})

			req.Equal(tt.status, w.Code)
			var body ErrorResponse
			req.NoError(json.Unmarshal(w.Body.Bytes(), &body))
			req.Equal(tt.code, body.Error)
		})
	}
}

func TestRouter_React(t *testing.T) {
	req := require.New(t)
	router, service, _ := newTestRouter(t)
	updated := domain.Message{ID: "m1", Reactions: []domain.Reaction{{User: "u1", Type: "👍"}}}

	// Given the path carries the message and the body the reaction
	service.EXPECT().
		React(gomock.Any(), services.ReactRequest{MessageID: "m1", UserID: "u1", Reaction: "👍"}).
		Return(updated, nil)

	// When the reaction is posted
	w := do(router, http.MethodPost, "/messages/m1/react", map[string]string{"userId": "u1", "reaction": "👍"})

	// Then the updated message is returned
	req.Equal(http.StatusOK, w.Code)
	var got domain.Message
	req.NoError(json.Unmarshal(w.Body.Bytes(), &got))
	req.Equal(updated.Reactions, got.Reactions)
}

func TestRouter_React_Malformed_Body(t *testing.T) {
	req := require.New(t)
	router, _, _ := newTestRouter(t)

	r := httptest.NewRequest(http.MethodPost, "/messages/m1/react", bytes.NewBufferString("{"))
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	req.Equal(http.StatusBadRequest, w.Code)
}

func TestRouter_Read(t *testing.T) {
	req := require.New(t)
	router, service, _ := newTestRouter(t)
	service.EXPECT().MarkRead(gomock.Any(), services.ReadRequest{MessageID: "m1", UserID: "u1"}).Return(nil)

	w := do(router, http.MethodPost, "/messages/m1/read", map[string]string{"userId": "u1"})

	req.Equal(http.StatusOK, w.Code)
	req.JSONEq(`{"success": true}`, w.Body.String())
}

func TestRouter_Users(t *testing.T) {
	req := require.New(t)
	router, service, _ := newTestRouter(t)
	service.EXPECT().Users(gomock.Any()).Return([]domain.User{
		{ID: "u1", Username: "alice", Key: "name:alice", Online: true},
	}, nil)

	w := do(router, http.MethodGet, "/api/users", nil)

	req.Equal(http.StatusOK, w.Code)
	// The identity key stays server side
	req.JSONEq(`[{"id":"u1","username":"alice","online":true}]`, w.Body.String())
}

func TestRouter_Health(t *testing.T) {
	req := require.New(t)
	router, _, monitoring := newTestRouter(t)
	monitoring.IncrConnections()
	monitoring.IncrMessages()

	w := do(router, http.MethodGet, "/health", nil)

	req.Equal(http.StatusOK, w.Code)
	var body HealthResponse
	req.NoError(json.Unmarshal(w.Body.Bytes(), &body))
	req.Equal("ok", body.Status)
	req.Equal(int64(1), body.Stats.Connections)
	req.Equal(uint64(1), body.Stats.MessagesSent)
}

func TestRouter_Mounts_Websocket(t *testing.T) {
	req := require.New(t)
	router, _, _ := newTestRouter(t)

	w := do(router, http.MethodGet, "/ws", nil)

	req.Equal(http.StatusTeapot, w.Code)
}
