// Package ws serves the chat over websocket connections, one JSON frame per event.
package ws

import (
	"chat-presence/domain"
	"chat-presence/services"
	"chat-presence/sink"
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

type Config struct {
	BufferSize    int
	MaxFrameSize  int64
	RatePerSecond float64
	RateBurst     int
	PongWait      time.Duration
	PingPeriod    time.Duration
	WriteWait     time.Duration
}

func (c Config) withDefaults() Config {
	if c.BufferSize <= 0 {
		c.BufferSize = 256
	}
	if c.MaxFrameSize <= 0 {
		c.MaxFrameSize = 64 * 1024
	}
	if c.PongWait <= 0 {
		c.PongWait = 60 * time.Second
	}
	if c.PingPeriod <= 0 || c.PingPeriod >= c.PongWait {
		c.PingPeriod = c.PongWait * 9 / 10
	}
	if c.WriteWait <= 0 {
		c.WriteWait = 10 * time.Second
	}
	if c.RateBurst <= 0 {
		c.RateBurst = 1
	}
	return c
}

// Handler upgrades HTTP requests and runs one client per connection.
type Handler struct {
	log      *slog.Logger
	service  services.IChatService
	upgrader websocket.Upgrader
	config   Config

	mu      sync.Mutex
	clients map[domain.ConnID]*websocket.Conn
	active  sync.WaitGroup
}

func NewHandler(log *slog.Logger, service services.IChatService, origins *OriginChecker, config Config) *Handler {
	return &Handler{
		log:     log,
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     origins.Check,
		},
		config:  config.withDefaults(),
		clients: make(map[domain.ConnID]*websocket.Conn),
	}
}

// ServeHTTP blocks for the lifetime of the connection.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader already replied to the client
		h.log.Debug("WebSocket upgrade failed", "remote_addr", r.RemoteAddr, "error", err)
		return
	}

	connID := domain.NewConnID()
	connSink := sink.NewConnectionSink(h.config.BufferSize)
	if err := h.service.Connect(connID, connSink); err != nil {
		h.log.Error("Failed to register connection", "conn_id", connID, "error", err)
		_ = conn.Close()
		return
	}
	h.track(connID, conn)
	defer h.untrack(connID)

	c := &client{
		log:     h.log,
		conn:    conn,
		connID:  connID,
		sink:    connSink,
		service: h.service,
		limiter: h.limiter(),
		config:  h.config,
	}
	h.log.Info("Connection accepted", "conn_id", connID, "remote_addr", r.RemoteAddr)

	go c.writePump()
	c.readPump(r.Context())
}

func (h *Handler) limiter() *rate.Limiter {
	if h.config.RatePerSecond <= 0 {
		return rate.NewLimiter(rate.Inf, h.config.RateBurst)
	}
	return rate.NewLimiter(rate.Limit(h.config.RatePerSecond), h.config.RateBurst)
}

func (h *Handler) track(connID domain.ConnID, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.active.Add(1)
	h.clients[connID] = conn
}

func (h *Handler) untrack(connID domain.ConnID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, connID)
	h.active.Done()
}

// Active is the number of live websocket connections.
func (h *Handler) Active() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Shutdown closes every live connection with a going-away frame and waits
// until each of them has been disconnected from the service.
// http.Server.Shutdown does not see hijacked connections.
func (h *Handler) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(h.clients))
	for _, conn := range h.clients {
		conns = append(conns, conn)
	}
	h.mu.Unlock()

	deadline := time.Now().Add(h.config.WriteWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	message := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
	for _, conn := range conns {
		_ = conn.WriteControl(websocket.CloseMessage, message, deadline)
		_ = conn.Close()
	}
	h.log.Info("WebSocket connections closed", "count", len(conns))

	released := make(chan struct{})
	go func() {
		h.active.Wait()
		close(released)
	}()
	select {
	case <-released:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
