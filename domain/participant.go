// Package domain contains core concepts of the chat system.
// This file defines users, connections and the identity they claim on join.
// No runtime, network, or UI logic should be added here.
package domain

import (
	"strings"

	"github.com/google/uuid"
)

type UserID string

type ConnID string

func NewConnID() ConnID {
	return ConnID(uuid.NewString())
}

// User is the durable record of a chat participant.
// Key is the identity key used to find the user again on a later join.
type User struct {
	ID       UserID `json:"id"`
	Username string `json:"username"`
	Key      string `json:"-"`
	Online   bool   `json:"online"`
}

// IdentityClaim is what a connection presents on join.
// The claim is trusted, credentials are verified upstream.
type IdentityClaim struct {
	Name  string
	Email string
}

// Key returns the identity key: the lower-cased email when present,
// the lower-cased name otherwise.
func (c IdentityClaim) Key() string {
	if email := strings.TrimSpace(c.Email); email != "" {
		return "email:" + strings.ToLower(email)
	}
	return "name:" + strings.ToLower(strings.TrimSpace(c.Name))
}

func (c IdentityClaim) Username() string {
	return strings.TrimSpace(c.Name)
}
