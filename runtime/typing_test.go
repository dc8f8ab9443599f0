package runtime

import (
	"chat-presence/domain"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTypingAggregator_Transitions(t *testing.T) {
	req := require.New(t)
	typing := NewTypingAggregator(3 * time.Second)
	now := time.Now()
	room := domain.RoomID("general")

	// Idle -> Typing
	changed, names := typing.Set(room, "c1", "alice", true, now)
	req.True(changed)
	req.Equal([]string{"alice"}, names)

	// Typing -> Typing only refreshes
	changed, names = typing.Set(room, "c1", "alice", true, now.Add(time.Second))
	req.False(changed)
	req.Equal([]string{"alice"}, names)

	changed, names = typing.Set(room, "c2", "bob", true, now)
	req.True(changed)
	req.Equal([]string{"alice", "bob"}, names)

	// Typing -> Idle
	changed, names = typing.Set(room, "c1", "alice", false, now)
	req.True(changed)
	req.Equal([]string{"bob"}, names)

	// Idle -> Idle
	changed, _ = typing.Set(room, "c1", "alice", false, now)
	req.False(changed)
}

func TestTypingAggregator_Same_User_On_Two_Connections_Is_Listed_Once(t *testing.T) {
	req := require.New(t)
	typing := NewTypingAggregator(3 * time.Second)
	now := time.Now()

	typing.Set("general", "c1", "alice", true, now)
	_, names := typing.Set("general", "c2", "alice", true, now)

	req.Equal([]string{"alice"}, names)
}

func TestTypingAggregator_Expiry(t *testing.T) {
	req := require.New(t)
	typing := NewTypingAggregator(3 * time.Second)
	now := time.Now()

	typing.Set("general", "c1", "alice", true, now)
	typing.Set("general", "c2", "bob", true, now.Add(2*time.Second))

	// Nothing expired before the deadline
	req.Empty(typing.Expired(now.Add(2 * time.Second)))

	// alice's entry expires first
	expired := typing.Expired(now.Add(3 * time.Second))
	req.Equal([]TypingKey{{RoomID: "general", ConnID: "c1"}}, expired)

	// A refresh in between keeps the entry alive
	typing.Set("general", "c1", "alice", true, now.Add(3*time.Second))
	changed, _ := typing.ExpireIf(expired[0], now.Add(3*time.Second))
	req.False(changed)

	changed, names := typing.ExpireIf(expired[0], now.Add(7*time.Second))
	req.True(changed)
	req.Equal([]string{"bob"}, names)
}

func TestTypingAggregator_Clear_And_RoomsOf(t *testing.T) {
	req := require.New(t)
	typing := NewTypingAggregator(time.Second)
	now := time.Now()

	typing.Set("general", "c1", "alice", true, now)
	typing.Set("random", "c1", "alice", true, now)

	req.ElementsMatch([]domain.RoomID{"general", "random"}, typing.RoomsOf("c1"))

	changed, names := typing.Clear("general", "c1")
	req.True(changed)
	req.Empty(names)

	changed, _ = typing.Clear("general", "c1")
	req.False(changed)
	req.Equal([]string{"alice"}, typing.Usernames("random"))
}
