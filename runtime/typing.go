package runtime

import (
	"chat-presence/domain"
	"sort"
	"sync"
	"time"

	"github.com/samber/lo"
)

type typingEntry struct {
	username string
	deadline time.Time
}

// TypingKey identifies one (room, connection) typing state.
type TypingKey struct {
	RoomID domain.RoomID
	ConnID domain.ConnID
}

// TypingAggregator holds the per (room, connection) state Idle or Typing.
// A Typing entry expires at its deadline unless refreshed.
type TypingAggregator struct {
	mu    sync.Mutex
	ttl   time.Duration
	rooms map[domain.RoomID]map[domain.ConnID]typingEntry
}

func NewTypingAggregator(ttl time.Duration) *TypingAggregator {
	return &TypingAggregator{
		ttl:   ttl,
		rooms: make(map[domain.RoomID]map[domain.ConnID]typingEntry),
	}
}

// Set applies a typing signal. changed is false when the state did not move,
// a repeated Typing signal only pushes the deadline back.
func (t *TypingAggregator) Set(roomID domain.RoomID, connID domain.ConnID, username string, isTyping bool, now time.Time) (changed bool, usernames []string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	entries := t.rooms[roomID]
	_, typing := entries[connID]

	switch {
	case isTyping:
		if entries == nil {
			entries = make(map[domain.ConnID]typingEntry)
			t.rooms[roomID] = entries
		}
		entries[connID] = typingEntry{username: username, deadline: now.Add(t.ttl)}
		changed = !typing
	case typing:
		t.remove(roomID, connID)
		changed = true
	}
	return changed, t.usernames(roomID)
}

// Clear forces the connection to Idle in roomID.
func (t *TypingAggregator) Clear(roomID domain.RoomID, connID domain.ConnID) (changed bool, usernames []string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, typing := t.rooms[roomID][connID]; !typing {
		return false, t.usernames(roomID)
	}
	t.remove(roomID, connID)
	return true, t.usernames(roomID)
}

// ExpireIf clears the entry only if its deadline passed at now.
// The entry may have been refreshed since Expired listed it.
func (t *TypingAggregator) ExpireIf(key TypingKey, now time.Time) (changed bool, usernames []string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, typing := t.rooms[key.RoomID][key.ConnID]
	if !typing || now.Before(entry.deadline) {
		return false, t.usernames(key.RoomID)
	}
	t.remove(key.RoomID, key.ConnID)
	return true, t.usernames(key.RoomID)
}

// Expired lists the entries whose deadline passed at now.
func (t *TypingAggregator) Expired(now time.Time) []TypingKey {
	t.mu.Lock()
	defer t.mu.Unlock()

	var keys []TypingKey
	for roomID, entries := range t.rooms {
		for connID, entry := range entries {
			if !now.Before(entry.deadline) {
				keys = append(keys, TypingKey{RoomID: roomID, ConnID: connID})
			}
		}
	}
	return keys
}

// RoomsOf lists the rooms where connID is currently typing.
func (t *TypingAggregator) RoomsOf(connID domain.ConnID) []domain.RoomID {
	t.mu.Lock()
	defer t.mu.Unlock()

	var rooms []domain.RoomID
	for roomID, entries := range t.rooms {
		if _, typing := entries[connID]; typing {
			rooms = append(rooms, roomID)
		}
	}
	return rooms
}

func (t *TypingAggregator) Usernames(roomID domain.RoomID) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.usernames(roomID)
}

// remove must be called with mu held.
func (t *TypingAggregator) remove(roomID domain.RoomID, connID domain.ConnID) {
	delete(t.rooms[roomID], connID)
	if len(t.rooms[roomID]) == 0 {
		delete(t.rooms, roomID)
	}
}

// usernames must be called with mu held. Two connections of the same user
// typing in the same room show the name once.
func (t *TypingAggregator) usernames(roomID domain.RoomID) []string {
	names := lo.Uniq(lo.MapToSlice(t.rooms[roomID], func(_ domain.ConnID, e typingEntry) string {
		return e.username
	}))
	sort.Strings(names)
	return names
}
