package event

import (
	"chat-presence/domain"
)

type Type string

const (
	RoomJoinedType      Type = "room_joined"
	ReceiveMessageType  Type = "receive_message"
	UserListType        Type = "user_list"
	UserJoinedType      Type = "user_joined"
	UserLeftType        Type = "user_left"
	TypingUsersType     Type = "typing_users"
	ReactionUpdatedType Type = "reaction_updated"
	ErrorType           Type = "error"
)

// DomainEvent is anything delivered to a connection.
// Payload is the value written in the "data" field of the outbound frame.
type DomainEvent interface {
	Type() Type
	Payload() any
}

type RoomJoined struct {
	RoomID domain.RoomID `json:"roomId"`
}

func (e RoomJoined) Type() Type   { return RoomJoinedType }
func (e RoomJoined) Payload() any { return e }

// MessageHistory is the batch of prior messages sent once after a join.
type MessageHistory struct {
	RoomID   domain.RoomID
	Messages []domain.Message
}

func (e MessageHistory) Type() Type { return ReceiveMessageType }
func (e MessageHistory) Payload() any {
	if e.Messages == nil {
		return []domain.Message{}
	}
	return e.Messages
}

type MessageReceived struct {
	Message domain.Message
}

func (e MessageReceived) Type() Type   { return ReceiveMessageType }
func (e MessageReceived) Payload() any { return e.Message }

type RosterEntry struct {
	ID       domain.UserID `json:"id"`
	Username string        `json:"username"`
	Online   bool          `json:"online"`
}

type UserList struct {
	Users []RosterEntry
}

func (e UserList) Type() Type { return UserListType }
func (e UserList) Payload() any {
	if e.Users == nil {
		return []RosterEntry{}
	}
	return e.Users
}

type UserJoined struct {
	Username string `json:"username"`
}

func (e UserJoined) Type() Type   { return UserJoinedType }
func (e UserJoined) Payload() any { return e }

type UserLeft struct {
	Username string `json:"username"`
}

func (e UserLeft) Type() Type   { return UserLeftType }
func (e UserLeft) Payload() any { return e }

// TypingUsers carries the full set of usernames currently typing in a room.
type TypingUsers struct {
	RoomID    domain.RoomID
	Usernames []string
}

func (e TypingUsers) Type() Type { return TypingUsersType }
func (e TypingUsers) Payload() any {
	if e.Usernames == nil {
		return []string{}
	}
	return e.Usernames
}

type ReactionUpdated struct {
	Message domain.Message
}

func (e ReactionUpdated) Type() Type   { return ReactionUpdatedType }
func (e ReactionUpdated) Payload() any { return e.Message }

// Error is sent to the originating connection only.
type Error struct {
	Event   string `json:"event"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e Error) Type() Type   { return ErrorType }
func (e Error) Payload() any { return e }
