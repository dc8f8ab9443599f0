package runtime

import (
	"chat-presence/contract"
	"chat-presence/domain"
	"chat-presence/errors"
	"sync"
)

type Set[K comparable] map[K]struct{}

// Session is a snapshot of one live connection.
// User is nil until the connection joined.
type Session struct {
	ConnID domain.ConnID
	Sink   contract.EventSink
	User   *domain.User
}

// Registry is the connection registry: which connections are open, which user
// each one is bound to, and how many live connections every user holds.
// Presence is reference counted: a user is online while that count is above zero.
type Registry struct {
	mu        sync.RWMutex
	sessions  map[domain.ConnID]*Session
	userConns map[domain.UserID]Set[domain.ConnID]
}

func NewRegistry() *Registry {
	return &Registry{
		sessions:  make(map[domain.ConnID]*Session),
		userConns: make(map[domain.UserID]Set[domain.ConnID]),
	}
}

// Open attaches a new transport connection, not yet bound to any user.
func (r *Registry) Open(connID domain.ConnID, sink contract.EventSink) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[connID]; exists {
		return errors.ErrConnectionExists
	}
	r.sessions[connID] = &Session{ConnID: connID, Sink: sink}
	return nil
}

// Bind attaches user to the connection. first reports the user's transition
// from zero to one live connection.
// Binding the same user twice is a no-op, binding another user fails.
func (r *Registry) Bind(connID domain.ConnID, user domain.User) (first bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[connID]
	if !ok {
		return false, errors.ErrConnectionClosed
	}
	if session.User != nil {
		if session.User.ID != user.ID {
			return false, errors.ErrIdentity
		}
		return false, nil
	}

	session.User = &user
	conns, ok := r.userConns[user.ID]
	if !ok {
		conns = make(Set[domain.ConnID])
		r.userConns[user.ID] = conns
	}
	conns[connID] = struct{}{}
	return len(conns) == 1, nil
}

// Unbind reverses Bind, used when a join fails after the binding.
func (r *Registry) Unbind(connID domain.ConnID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[connID]
	if !ok || session.User == nil {
		return
	}
	r.release(connID, session.User.ID)
	session.User = nil
}

func (r *Registry) Lookup(connID domain.ConnID) (Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	session, ok := r.sessions[connID]
	if !ok {
		return Session{}, false
	}
	return *session, true
}

// Close removes the connection. last reports whether it was the user's final
// live connection. Closing an unknown connection returns ok=false.
func (r *Registry) Close(connID domain.ConnID) (session Session, last bool, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[connID]
	if !ok {
		return Session{}, false, false
	}
	delete(r.sessions, connID)
	if s.User != nil {
		last = r.release(connID, s.User.ID)
	}
	return *s, last, true
}

// release must be called with mu held.
func (r *Registry) release(connID domain.ConnID, userID domain.UserID) bool {
	conns := r.userConns[userID]
	delete(conns, connID)
	if len(conns) == 0 {
		delete(r.userConns, userID)
		return true
	}
	return false
}

// Sinks returns the sink of every open connection, joined or not.
func (r *Registry) Sinks() []contract.EventSink {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sinks := make([]contract.EventSink, 0, len(r.sessions))
	for _, session := range r.sessions {
		sinks = append(sinks, session.Sink)
	}
	return sinks
}

// SinksOf resolves connection ids into sinks, skipping closed connections.
func (r *Registry) SinksOf(connIDs []domain.ConnID) []contract.EventSink {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sinks := make([]contract.EventSink, 0, len(connIDs))
	for _, connID := range connIDs {
		if session, ok := r.sessions[connID]; ok {
			sinks = append(sinks, session.Sink)
		}
	}
	return sinks
}

func (r *Registry) Online(userID domain.UserID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.userConns[userID]) > 0
}

// Connections is the number of live connections bound to userID.
func (r *Registry) Connections(userID domain.UserID) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.userConns[userID])
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
