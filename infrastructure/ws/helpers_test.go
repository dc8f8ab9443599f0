package ws

import (
	"chat-presence/services"
	"encoding/json"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

type testFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func newTestServer(t *testing.T, service services.IChatService, config Config) (*httptest.Server, *Handler) {
	t.Helper()
	handler := NewHandler(slog.Default(), service, NewOriginChecker(slog.Default(), []string{"http://localhost:3000"}), config)
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv, handler
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func sendFrame(t *testing.T, conn *websocket.Conn, name string, data any) {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(testFrame{Event: name, Data: raw}))
}

func readFrame(t *testing.T, conn *websocket.Conn) testFrame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var frame testFrame
	require.NoError(t, conn.ReadJSON(&frame))
	return frame
}

// expectEvent reads the next frame, checks its name and decodes its data into T.
func expectEvent[T any](t *testing.T, conn *websocket.Conn, name string) T {
	t.Helper()
	frame := readFrame(t, conn)
	require.Equal(t, name, frame.Event, "data: %s", frame.Data)
	var data T
	require.NoError(t, json.Unmarshal(frame.Data, &data))
	return data
}
