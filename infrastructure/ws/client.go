package ws

import (
	"chat-presence/domain"
	"chat-presence/domain/event"
	"chat-presence/errors"
	"chat-presence/services"
	"chat-presence/sink"
	"context"
	goerrors "errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

// client pumps one websocket connection.
// readPump owns user, writePump is the only writer on conn.
type client struct {
	log     *slog.Logger
	conn    *websocket.Conn
	connID  domain.ConnID
	sink    *sink.ConnectionSink
	service services.IChatService
	limiter *rate.Limiter
	config  Config
	user    *domain.User
}

func (c *client) readPump(ctx context.Context) {
	defer func() {
		// The request context may already be canceled, presence must still go out
		c.service.Disconnect(context.WithoutCancel(ctx), c.connID)
		c.sink.Close()
	}()

	c.conn.SetReadLimit(c.config.MaxFrameSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(c.config.PongWait)); err != nil {
		c.log.Debug("Error setting initial read deadline", "conn_id", c.connID, "error", err)
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			c.logReadError(err)
			return
		}
		if !c.limiter.Allow() {
			c.reject(ctx, "", errors.ErrRateLimited)
			continue
		}
		frame, err := decodeFrame(raw)
		if err != nil {
			c.reject(ctx, "", err)
			continue
		}
		if err := c.dispatch(ctx, frame); err != nil {
			c.reject(ctx, frame.Event, err)
		}
	}
}

func (c *client) dispatch(ctx context.Context, frame InboundFrame) error {
	switch frame.Event {
	case JoinEvent, UserJoinEvent:
		req, err := decodeData[services.JoinRequest](frame)
		if err != nil {
			return err
		}
		user, _, err := c.service.Join(ctx, c.connID, req)
		if err != nil {
			return err
		}
		c.user = &user
		return nil
	case JoinRoomEvent:
		req, err := decodeJoinRoom(frame)
		if err != nil {
			return err
		}
		_, err = c.service.JoinRoom(ctx, c.connID, req)
		return err
	case SendMessageEvent:
		req, err := decodeData[services.SendMessageRequest](frame)
		if err != nil {
			return err
		}
		_, err = c.service.SendMessage(ctx, c.connID, req)
		return err
	case TypingEvent:
		req, err := decodeData[services.TypingRequest](frame)
		if err != nil {
			return err
		}
		return c.service.Typing(ctx, c.connID, req)
	case ReactEvent:
		req, err := decodeData[services.ReactRequest](frame)
		if err != nil {
			return err
		}
		if c.user == nil {
			return fmt.Errorf("react: %w", errors.ErrUnauthenticated)
		}
		// The reacting user is the one bound to the connection
		req.UserID = string(c.user.ID)
		msg, err := c.service.React(ctx, req)
		if err != nil {
			return err
		}
		return c.sink.Consume(ctx, event.ReactionUpdated{Message: msg})
	case ReadEvent:
		req, err := decodeData[services.ReadRequest](frame)
		if err != nil {
			return err
		}
		if c.user == nil {
			return fmt.Errorf("read: %w", errors.ErrUnauthenticated)
		}
		req.UserID = string(c.user.ID)
		return c.service.MarkRead(ctx, req)
	default:
		return fmt.Errorf("%q: %w", frame.Event, errors.ErrUnknownEvent)
	}
}

// reject reports err to this connection only.
func (c *client) reject(ctx context.Context, eventName string, err error) {
	c.log.Debug("Event rejected", "conn_id", c.connID, "event", eventName, "error", err)
	e := event.Error{Event: eventName, Code: errors.Code(err), Message: err.Error()}
	if err := c.sink.Consume(ctx, e); err != nil {
		c.log.Debug("Error frame dropped", "conn_id", c.connID, "error", err)
	}
}

func (c *client) logReadError(err error) {
	switch {
	case goerrors.Is(err, websocket.ErrReadLimit):
		c.log.Warn("Frame exceeded maximum size", "conn_id", c.connID, "max_bytes", c.config.MaxFrameSize)
	case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived):
		c.log.Debug("Client disconnected", "conn_id", c.connID)
	case goerrors.Is(err, io.EOF), goerrors.Is(err, net.ErrClosed):
		c.log.Debug("Connection closed", "conn_id", c.connID)
	default:
		c.log.Warn("WebSocket read error", "conn_id", c.connID, "error", err)
	}
}

// writePump drains the sink in order. It stops when the sink closes, the
// connection fails or a ping cannot be written.
func (c *client) writePump() {
	ticker := time.NewTicker(c.config.PingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case e := <-c.sink.Events():
			if !c.write(e) {
				return
			}
		case <-c.sink.Done():
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.log.Debug("Error writing ping", "conn_id", c.connID, "error", err)
				return
			}
		}
	}
}

func (c *client) write(e event.DomainEvent) bool {
	payload, err := encodeEvent(e)
	if err != nil {
		c.log.Error("Failed to encode event", "conn_id", c.connID, "event", e.Type(), "error", err)
		return true
	}
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait)); err != nil {
		return false
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		c.log.Debug("Error writing frame", "conn_id", c.connID, "error", err)
		return false
	}
	return true
}
