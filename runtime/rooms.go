package runtime

import (
	"chat-presence/contract"
	"chat-presence/domain"
	"context"
	"sync"

	"github.com/samber/lo"
	"golang.org/x/sync/singleflight"
)

// Rooms is the room membership index: durable rooms come from the store,
// live subscriptions (which connection listens to which room) stay in memory.
type Rooms struct {
	mu            sync.RWMutex
	store         contract.Store
	group         singleflight.Group
	byName        map[string]domain.RoomID
	subscribers   map[domain.RoomID]Set[domain.ConnID]
	subscriptions map[domain.ConnID]Set[domain.RoomID]
}

func NewRooms(store contract.Store) *Rooms {
	return &Rooms{
		store:         store,
		byName:        make(map[string]domain.RoomID),
		subscribers:   make(map[domain.RoomID]Set[domain.ConnID]),
		subscriptions: make(map[domain.ConnID]Set[domain.RoomID]),
	}
}

// EnsureDefaultRoom returns the room called name, creating it on first use.
// Concurrent first calls share one store round trip, and the store's
// find-or-create keeps the room unique even across restarts.
func (r *Rooms) EnsureDefaultRoom(ctx context.Context, name string) (domain.Room, error) {
	r.mu.RLock()
	id, cached := r.byName[name]
	r.mu.RUnlock()
	if cached {
		return r.store.GetRoom(ctx, id)
	}

	v, err, _ := r.group.Do(name, func() (any, error) {
		room, err := r.store.FindOrCreateRoom(ctx, name)
		if err != nil {
			return domain.Room{}, err
		}
		r.mu.Lock()
		r.byName[name] = room.ID
		r.mu.Unlock()
		return room, nil
	})
	if err != nil {
		return domain.Room{}, err
	}
	return v.(domain.Room), nil
}

// Subscribe is idempotent. A connection may hold several rooms.
func (r *Rooms) Subscribe(connID domain.ConnID, roomID domain.RoomID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.subscribers[roomID]; !ok {
		r.subscribers[roomID] = make(Set[domain.ConnID])
	}
	r.subscribers[roomID][connID] = struct{}{}

	if _, ok := r.subscriptions[connID]; !ok {
		r.subscriptions[connID] = make(Set[domain.RoomID])
	}
	r.subscriptions[connID][roomID] = struct{}{}
}

func (r *Rooms) Unsubscribe(connID domain.ConnID, roomID domain.RoomID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.unsubscribe(connID, roomID)
}

// UnsubscribeAll drops every subscription of the connection and returns the rooms it left.
func (r *Rooms) UnsubscribeAll(connID domain.ConnID) []domain.RoomID {
	r.mu.Lock()
	defer r.mu.Unlock()

	rooms := lo.Keys(r.subscriptions[connID])
	for _, roomID := range rooms {
		r.unsubscribe(connID, roomID)
	}
	return rooms
}

// unsubscribe must be called with mu held.
// Empty sets are removed so the maps do not grow with past rooms and connections.
func (r *Rooms) unsubscribe(connID domain.ConnID, roomID domain.RoomID) {
	if members, ok := r.subscribers[roomID]; ok {
		delete(members, connID)
		if len(members) == 0 {
			delete(r.subscribers, roomID)
		}
	}
	if rooms, ok := r.subscriptions[connID]; ok {
		delete(rooms, roomID)
		if len(rooms) == 0 {
			delete(r.subscriptions, connID)
		}
	}
}

// RecipientsOf is computed on every call from the live subscriptions.
func (r *Rooms) RecipientsOf(roomID domain.RoomID) []domain.ConnID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.Keys(r.subscribers[roomID])
}

func (r *Rooms) SubscriptionsOf(connID domain.ConnID) []domain.RoomID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.Keys(r.subscriptions[connID])
}
