// Package session manages persisted conversations and their ordered turns.
package session

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound indicates the requested session does not exist.
var ErrNotFound = errors.New("session not found")

// Role identifies who produced a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether the role is one the schema accepts.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Session is a conversation owned by a single user.
type Session struct {
	ID        uuid.UUID `json:"id"`
	OwnerID   string    `json:"owner_id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Turn is a single message within a session. SequenceNumber is assigned
// by the store and is strictly increasing within a session, starting at 1.
//
// Content is stored in the language it was delivered in: the user's turn
// as typed, the assistant's turn as shown to the user.
type Turn struct {
	ID             uuid.UUID `json:"id"`
	SessionID      uuid.UUID `json:"session_id"`
	SequenceNumber int64     `json:"sequence_number"`
	Role           Role      `json:"role"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}
