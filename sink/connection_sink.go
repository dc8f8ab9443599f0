package sink

import (
	"chat-presence/domain/event"
	"chat-presence/errors"
	"context"
	"sync"
)

// ConnectionSink buffers the outbound events of one connection.
// The transport's write loop drains Events and stops once Done is closed.
type ConnectionSink struct {
	events    chan event.DomainEvent
	done      chan struct{}
	closeOnce sync.Once
}

func NewConnectionSink(bufferSize int) *ConnectionSink {
	return &ConnectionSink{
		events: make(chan event.DomainEvent, bufferSize),
		done:   make(chan struct{}),
	}
}

// Consume is called by broadcasters and never blocks.
// A full buffer means the client cannot keep up: the sink closes itself so the
// transport drops the connection, the other connections are not held back.
func (s *ConnectionSink) Consume(ctx context.Context, e event.DomainEvent) error {
	select {
	case <-s.done:
		return errors.ErrConnectionClosed
	default:
	}

	select {
	case s.events <- e:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		s.Close()
		return errors.ErrSlowConsumer
	}
}

func (s *ConnectionSink) Events() <-chan event.DomainEvent {
	return s.events
}

func (s *ConnectionSink) Done() <-chan struct{} {
	return s.done
}

// Close is idempotent. The events channel is never closed, late producers get
// ErrConnectionClosed instead of a panic.
func (s *ConnectionSink) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}
