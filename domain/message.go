// Package domain contains core concepts of the chat system.
// This file defines Message records and the rules for reactions and read receipts.
package domain

import (
	"slices"
	"time"

	"github.com/samber/lo"
)

type MessageID string

// Sender is denormalized into each message so history never needs a user lookup.
type Sender struct {
	ID       UserID `json:"id"`
	Username string `json:"username"`
}

type Reaction struct {
	User UserID `json:"user"`
	Type string `json:"type"`
}

// ReactionKinds are the kinds offered by the reference client.
// Any non-empty kind is accepted.
var ReactionKinds = []string{"👍", "❤️", "😂", "😮", "😢", "👎"}

// Message is a persisted chat message.
// ID and CreatedAt are assigned by the store.
type Message struct {
	ID        MessageID  `json:"id"`
	RoomID    RoomID     `json:"roomId"`
	Sender    Sender     `json:"sender"`
	Content   string     `json:"content"`
	FileURL   string     `json:"fileUrl,omitempty"`
	ReadBy    []UserID   `json:"readBy"`
	Reactions []Reaction `json:"reactions"`
	CreatedAt time.Time  `json:"createdAt"`
}

// WithReaction drops any previous reaction of userID then appends the new one.
// A user holds at most one reaction per message.
func (m Message) WithReaction(userID UserID, kind string) Message {
	m.Reactions = append(
		lo.Filter(m.Reactions, func(r Reaction, _ int) bool { return r.User != userID }),
		Reaction{User: userID, Type: kind},
	)
	return m
}

// WithReader records userID in ReadBy once. The boolean reports whether it was added.
func (m Message) WithReader(userID UserID) (Message, bool) {
	if slices.Contains(m.ReadBy, userID) {
		return m, false
	}
	m.ReadBy = append(slices.Clone(m.ReadBy), userID)
	return m, true
}

// Content is what a sender submits: text, an attachment reference, or both.
type Content struct {
	Text    string
	FileURL string
}
