package main

import (
	"bytes"
	"chat-presence/domain"
	"encoding/json"
	"testing"
	"time"

	"github.com/gookit/color"
	"github.com/stretchr/testify/require"
)

func rawFrame(t *testing.T, name string, data any) frame {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	return frame{Event: name, Data: raw}
}

func TestRender_Tracks_Room_And_Last_Message(t *testing.T) {
	req := require.New(t)
	color.Disable()
	state := &session{}

	// Given the join sequence
	render(rawFrame(t, "room_joined", map[string]string{"roomId": "r1"}), state)
	history := []domain.Message{
		{ID: "m1", Sender: domain.Sender{Username: "alice"}, Content: "first", CreatedAt: time.Now()},
		{ID: "m2", Sender: domain.Sender{Username: "bob"}, Content: "second", CreatedAt: time.Now()},
	}
	text := render(rawFrame(t, "receive_message", history), state)

	// Then both lines are printed and the prompt targets the last one
	req.Contains(text, "alice: first")
	req.Contains(text, "bob: second")
	roomID, last := state.get()
	req.Equal(domain.RoomID("r1"), roomID)
	req.Equal(domain.MessageID("m2"), last)

	// When a live message arrives
	text = render(rawFrame(t, "receive_message", domain.Message{ID: "m3", Sender: domain.Sender{Username: "bob"}, Content: "live"}), state)
	req.Contains(text, "bob: live")
	_, last = state.get()
	req.Equal(domain.MessageID("m3"), last)
}

func TestRender_Presence_And_Errors(t *testing.T) {
	req := require.New(t)
	color.Disable()
	state := &session{}

	req.Equal("*** bob left", render(rawFrame(t, "user_left", map[string]string{"username": "bob"}), state))
	req.Equal("bob typing...", render(rawFrame(t, "typing_users", []string{"bob"}), state))
	req.Empty(render(rawFrame(t, "typing_users", []string{}), state))
	req.Empty(render(rawFrame(t, "user_list", []any{}), state))
	req.Equal("!!! not_found: gone", render(rawFrame(t, "error", map[string]string{"code": "not_found", "message": "gone"}), state))
}

func TestRenderRoster(t *testing.T) {
	req := require.New(t)
	var out bytes.Buffer

	renderRoster([]domain.User{{Username: "alice", Online: true}, {Username: "bob"}}, &out)

	req.Contains(out.String(), "alice")
	req.Contains(out.String(), "online")
	req.Contains(out.String(), "offline")
}
