// Package runtime coordinates connections, rooms, typing and presence.
// It owns the in-memory state and decides who receives which event;
// durable state lives behind contract.Store.
package runtime

import (
	"chat-presence/contract"
	"chat-presence/domain"
	"chat-presence/domain/event"
	"chat-presence/errors"
	"chat-presence/observability"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"
)

type Config struct {
	DefaultRoom      string
	StoreTimeout     time.Duration
	MaxContentLength int
	TypingTTL        time.Duration
}

type Orchestrator struct {
	log          *slog.Logger
	store        contract.Store
	registry     *Registry
	rooms        *Rooms
	typing       *TypingAggregator
	presence     *PresenceBroadcaster
	monitoring   *observability.MonitoringManager
	userLocks    *KeyedMutex
	roomLocks    *KeyedMutex
	messageLocks *KeyedMutex
	config       Config
	now          func() time.Time
}

func NewOrchestrator(
	log *slog.Logger,
	store contract.Store,
	monitoring *observability.MonitoringManager,
	config Config,
) *Orchestrator {
	if config.DefaultRoom == "" {
		config.DefaultRoom = domain.DefaultRoomName
	}
	registry := NewRegistry()
	return &Orchestrator{
		log:          log,
		store:        store,
		registry:     registry,
		rooms:        NewRooms(store),
		typing:       NewTypingAggregator(config.TypingTTL),
		presence:     NewPresenceBroadcaster(log, store, registry, monitoring, config.StoreTimeout),
		monitoring:   monitoring,
		userLocks:    NewKeyedMutex(),
		roomLocks:    NewKeyedMutex(),
		messageLocks: NewKeyedMutex(),
		config:       config,
		now:          time.Now,
	}
}

// Connect registers a new transport connection. Nothing is broadcast until it joins.
func (o *Orchestrator) Connect(connID domain.ConnID, sink contract.EventSink) error {
	if err := o.registry.Open(connID, sink); err != nil {
		return err
	}
	o.monitoring.IncrConnections()
	o.log.Debug("Connection opened", "conn_id", connID)
	return nil
}

// Join binds the identity to the connection, makes the user a member of the
// default room and subscribes the connection to it. The joining connection
// receives room_joined then the room history; every connection then receives
// user_list, and user_joined when the user just came online.
//
// Every store step runs before any event is emitted, a failure leaves no
// binding and no subscription behind.
func (o *Orchestrator) Join(ctx context.Context, connID domain.ConnID, claim domain.IdentityClaim) (domain.User, domain.Room, error) {
	username := claim.Username()
	if username == "" {
		return domain.User{}, domain.Room{}, fmt.Errorf("join: empty name: %w", errors.ErrIdentity)
	}
	session, ok := o.registry.Lookup(connID)
	if !ok {
		return domain.User{}, domain.Room{}, fmt.Errorf("join: %w", errors.ErrConnectionClosed)
	}
	key := claim.Key()
	if session.User != nil && session.User.Key != key {
		return domain.User{}, domain.Room{}, fmt.Errorf("join: connection bound to another user: %w", errors.ErrIdentity)
	}

	unlock := o.userLocks.Lock(key)
	user, room, first, err := o.join(ctx, connID, session.Sink, key, username)
	unlock()
	if err != nil {
		return domain.User{}, domain.Room{}, err
	}

	o.presence.Joined(ctx, user.Username, first)

	o.log.Info("User joined", "conn_id", connID, "user_id", user.ID, "username", user.Username, "room_id", room.ID)
	return user, room, nil
}

// join runs under the user lock. The history read, the subscription and the
// first two events share the room lock with SendMessage: a concurrent message
// is either part of the history or delivered after it.
func (o *Orchestrator) join(ctx context.Context, connID domain.ConnID, sink contract.EventSink, key, username string) (
	user domain.User, room domain.Room, first bool, err error,
) {
	storeCtx, cancel := o.storeContext(ctx)
	defer cancel()

	if user, err = o.store.UpsertUser(storeCtx, key, username); err != nil {
		return user, room, false, o.storeError("join: user", err)
	}
	if room, err = o.rooms.EnsureDefaultRoom(storeCtx, o.config.DefaultRoom); err != nil {
		return user, room, false, o.storeError("join: default room", err)
	}
	if room, err = o.store.AddMember(storeCtx, room.ID, user.ID); err != nil {
		return user, room, false, o.storeError("join: membership", err)
	}

	o.withRoom(room.ID, func() {
		var history []domain.Message
		if history, err = o.store.ListMessages(storeCtx, room.ID); err != nil {
			err = o.storeError("join: history", err)
			return
		}
		if first, err = o.registry.Bind(connID, user); err != nil {
			err = fmt.Errorf("join: %w", err)
			return
		}
		if first {
			if err = o.store.SetOnline(storeCtx, user.ID, true); err != nil {
				o.registry.Unbind(connID)
				err = o.storeError("join: presence", err)
				return
			}
		}
		o.rooms.Subscribe(connID, room.ID)
		o.send(ctx, sink, event.RoomJoined{RoomID: room.ID})
		o.send(ctx, sink, event.MessageHistory{RoomID: room.ID, Messages: history})
	})
	if err != nil {
		return user, room, false, err
	}
	user.Online = true
	return user, room, first, nil
}

// JoinRoom subscribes an already joined connection to an existing room and
// sends it room_joined and the room history.
func (o *Orchestrator) JoinRoom(ctx context.Context, connID domain.ConnID, roomID domain.RoomID) (domain.Room, error) {
	session, err := o.joinedSession(connID)
	if err != nil {
		return domain.Room{}, fmt.Errorf("join room: %w", err)
	}
	storeCtx, cancel := o.storeContext(ctx)
	defer cancel()

	room, err := o.store.AddMember(storeCtx, roomID, session.User.ID)
	if err != nil {
		return domain.Room{}, o.storeError("join room: membership", err)
	}
	// Disconnect takes the same lock before closing, no subscription outlives the connection.
	unlock := o.userLocks.Lock(session.User.Key)
	defer unlock()
	if _, ok := o.registry.Lookup(connID); !ok {
		return domain.Room{}, fmt.Errorf("join room: %w", errors.ErrConnectionClosed)
	}
	o.withRoom(roomID, func() {
		var history []domain.Message
		if history, err = o.store.ListMessages(storeCtx, roomID); err != nil {
			err = o.storeError("join room: history", err)
			return
		}
		o.rooms.Subscribe(connID, roomID)
		o.send(ctx, session.Sink, event.RoomJoined{RoomID: roomID})
		o.send(ctx, session.Sink, event.MessageHistory{RoomID: roomID, Messages: history})
	})
	if err != nil {
		return domain.Room{}, err
	}
	return room, nil
}

// Disconnect is idempotent and a no-op for unknown connections. It releases
// the subscriptions and typing state of the connection, flips the user offline
// when this was the last connection and tells every remaining connection.
func (o *Orchestrator) Disconnect(ctx context.Context, connID domain.ConnID) {
	before, ok := o.registry.Lookup(connID)
	if !ok {
		return
	}
	unlock := func() {}
	if before.User != nil {
		unlock = o.userLocks.Lock(before.User.Key)
	}

	session, _, ok := o.registry.Close(connID)
	if !ok {
		unlock()
		return
	}
	// A join may have bound the connection between Lookup and Close.
	if before.User == nil && session.User != nil {
		unlock = o.userLocks.Lock(session.User.Key)
	}
	o.monitoring.DecrConnections()
	o.rooms.UnsubscribeAll(connID)

	offline := false
	if session.User != nil && !o.registry.Online(session.User.ID) {
		offline = true
		storeCtx, cancel := o.storeContext(ctx)
		if err := o.store.SetOnline(storeCtx, session.User.ID, false); err != nil {
			o.monitoring.IncrStoreErrors()
			o.log.Warn("Could not store offline presence", "user_id", session.User.ID, "error", err)
		}
		cancel()
	}
	unlock()

	for _, roomID := range o.typing.RoomsOf(connID) {
		o.withRoom(roomID, func() {
			if changed, usernames := o.typing.Clear(roomID, connID); changed {
				o.fanout(ctx, roomID, event.TypingUsers{RoomID: roomID, Usernames: usernames})
			}
		})
	}

	if session.User == nil {
		o.log.Debug("Connection closed before join", "conn_id", connID)
		return
	}
	o.presence.Left(ctx, session.User.Username, offline)
	o.log.Info("User disconnected", "conn_id", connID, "username", session.User.Username, "offline", offline)
}

// SendMessage persists the message then delivers it to the room's current
// recipients. Persistence and fan-out share the room lock and sinks are FIFO,
// so every recipient sees a room's messages in persisted order.
func (o *Orchestrator) SendMessage(ctx context.Context, connID domain.ConnID, roomID domain.RoomID, content domain.Content) (domain.Message, error) {
	session, err := o.joinedSession(connID)
	if err != nil {
		return domain.Message{}, fmt.Errorf("send message: %w", err)
	}
	if strings.TrimSpace(content.Text) == "" && content.FileURL == "" {
		return domain.Message{}, fmt.Errorf("send message: empty content: %w", errors.ErrValidation)
	}
	if o.config.MaxContentLength > 0 && utf8.RuneCountInString(content.Text) > o.config.MaxContentLength {
		return domain.Message{}, fmt.Errorf("send message: content longer than %d: %w", o.config.MaxContentLength, errors.ErrValidation)
	}

	var msg domain.Message
	o.withRoom(roomID, func() {
		storeCtx, cancel := o.storeContext(ctx)
		defer cancel()

		msg, err = o.store.CreateMessage(storeCtx, domain.Message{
			RoomID:  roomID,
			Sender:  domain.Sender{ID: session.User.ID, Username: session.User.Username},
			Content: content.Text,
			FileURL: content.FileURL,
		})
		if err != nil {
			err = o.storeError("send message", err)
			return
		}
		o.fanout(ctx, roomID, event.MessageReceived{Message: msg})
	})
	if err != nil {
		return domain.Message{}, err
	}
	o.monitoring.IncrMessages()
	return msg, nil
}

// LoadHistory returns the room's messages, oldest first.
func (o *Orchestrator) LoadHistory(ctx context.Context, roomID domain.RoomID) ([]domain.Message, error) {
	storeCtx, cancel := o.storeContext(ctx)
	defer cancel()

	messages, err := o.store.ListMessages(storeCtx, roomID)
	if err != nil {
		return nil, o.storeError("history", err)
	}
	return messages, nil
}

// React sets the user's reaction, replacing any previous one. Nothing is broadcast.
func (o *Orchestrator) React(ctx context.Context, messageID domain.MessageID, userID domain.UserID, kind string) (domain.Message, error) {
	if strings.TrimSpace(kind) == "" {
		return domain.Message{}, fmt.Errorf("react: empty reaction: %w", errors.ErrValidation)
	}
	unlock := o.messageLocks.Lock(string(messageID))
	defer unlock()

	storeCtx, cancel := o.storeContext(ctx)
	defer cancel()

	msg, err := o.store.SetReaction(storeCtx, messageID, userID, kind)
	if err != nil {
		return domain.Message{}, o.storeError("react", err)
	}
	return msg, nil
}

// MarkRead records a read receipt once. Nothing is broadcast.
func (o *Orchestrator) MarkRead(ctx context.Context, messageID domain.MessageID, userID domain.UserID) error {
	unlock := o.messageLocks.Lock(string(messageID))
	defer unlock()

	storeCtx, cancel := o.storeContext(ctx)
	defer cancel()

	if _, err := o.store.AddReadReceipt(storeCtx, messageID, userID); err != nil {
		return o.storeError("mark read", err)
	}
	return nil
}

// SetTyping applies a typing signal and, when the room's state changed,
// sends the full set of typing usernames to the room.
func (o *Orchestrator) SetTyping(ctx context.Context, connID domain.ConnID, roomID domain.RoomID, isTyping bool) error {
	session, err := o.joinedSession(connID)
	if err != nil {
		return fmt.Errorf("typing: %w", err)
	}
	o.withRoom(roomID, func() {
		if _, ok := o.registry.Lookup(connID); !ok {
			err = errors.ErrConnectionClosed
			return
		}
		changed, usernames := o.typing.Set(roomID, connID, session.User.Username, isTyping, o.now())
		// Disconnect may have read the typing rooms between the lookup and Set.
		if _, ok := o.registry.Lookup(connID); !ok {
			err = errors.ErrConnectionClosed
			if cleared, remaining := o.typing.Clear(roomID, connID); cleared && !changed {
				o.fanout(ctx, roomID, event.TypingUsers{RoomID: roomID, Usernames: remaining})
			}
			return
		}
		if changed {
			o.fanout(ctx, roomID, event.TypingUsers{RoomID: roomID, Usernames: usernames})
		}
	})
	if err != nil {
		return fmt.Errorf("typing: %w", err)
	}
	return nil
}

// ExpireTyping forces every entry past its deadline back to Idle and returns
// how many were cleared.
func (o *Orchestrator) ExpireTyping(ctx context.Context) int {
	now := o.now()
	expired := 0
	for _, key := range o.typing.Expired(now) {
		o.withRoom(key.RoomID, func() {
			if changed, usernames := o.typing.ExpireIf(key, now); changed {
				expired++
				o.fanout(ctx, key.RoomID, event.TypingUsers{RoomID: key.RoomID, Usernames: usernames})
			}
		})
	}
	return expired
}

// Users is the roster as stored.
func (o *Orchestrator) Users(ctx context.Context) ([]domain.User, error) {
	storeCtx, cancel := o.storeContext(ctx)
	defer cancel()

	users, err := o.store.ListUsers(storeCtx)
	if err != nil {
		return nil, o.storeError("users", err)
	}
	return users, nil
}

// ResetPresence marks every stored user offline. It runs once at startup,
// no connection can be live yet.
func (o *Orchestrator) ResetPresence(ctx context.Context) error {
	storeCtx, cancel := o.storeContext(ctx)
	defer cancel()

	if err := o.store.ResetPresence(storeCtx); err != nil {
		return o.storeError("reset presence", err)
	}
	return nil
}

func (o *Orchestrator) joinedSession(connID domain.ConnID) (Session, error) {
	session, ok := o.registry.Lookup(connID)
	if !ok || session.User == nil {
		return Session{}, errors.ErrUnauthenticated
	}
	return session, nil
}

func (o *Orchestrator) withRoom(roomID domain.RoomID, fn func()) {
	unlock := o.roomLocks.Lock(string(roomID))
	defer unlock()
	fn()
}

// fanout delivers e to the room's live recipients. A sink that refuses the
// event only loses it for its own connection.
func (o *Orchestrator) fanout(ctx context.Context, roomID domain.RoomID, e event.DomainEvent) {
	for _, sink := range o.registry.SinksOf(o.rooms.RecipientsOf(roomID)) {
		o.send(ctx, sink, e)
	}
}

func (o *Orchestrator) send(ctx context.Context, sink contract.EventSink, e event.DomainEvent) {
	if err := sink.Consume(ctx, e); err != nil {
		o.monitoring.IncrDroppedEvents()
		o.log.Debug("Event not delivered", "event", e.Type(), "error", err)
	}
}

func (o *Orchestrator) storeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.config.StoreTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, o.config.StoreTimeout)
}

// storeError keeps not-found errors as they are and reports anything else
// as the store being unavailable.
func (o *Orchestrator) storeError(op string, err error) error {
	if errors.Is(err, errors.ErrNotFound) {
		return fmt.Errorf("%s: %w", op, err)
	}
	o.monitoring.IncrStoreErrors()
	o.log.Error("Store operation failed", "op", op, "error", err)
	return fmt.Errorf("%s: %w: %v", op, errors.ErrStoreUnavailable, err)
}
