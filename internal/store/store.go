package store

import (
	"context"
	"time"
)

// History query limits, matching the public API contract.
const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 200
)

// User represents an account in the directory.
type User struct {
	ID           int64
	Username     string
	Firstname    string
	Lastname     string
	PasswordHash string
	CreatedAt    time.Time
}

// GroupMessage is a persisted room message. Immutable once created.
type GroupMessage struct {
	ID       int64
	FromUser string
	Room     string
	Body     string
	SentAt   time.Time
}

// PrivateMessage is a persisted one-to-one message. Immutable once created.
type PrivateMessage struct {
	ID       int64
	FromUser string
	ToUser   string
	Body     string
	SentAt   time.Time
}

// UserStore handles account persistence.
type UserStore interface {
	// CreateUser creates a new user with hashed password.
	CreateUser(ctx context.Context, username, firstname, lastname, passwordHash string) (*User, error)

	// GetUserByUsername retrieves a user by username.
	GetUserByUsername(ctx context.Context, username string) (*User, error)

	// ListUsers returns all users sorted by username.
	ListUsers(ctx context.Context) ([]*User, error)
}

// MessageStore handles message persistence.
type MessageStore interface {
	// AppendGroupMessage persists a group message and assigns its ID.
	AppendGroupMessage(ctx context.Context, msg *GroupMessage) error

	// AppendPrivateMessage persists a private message and assigns its ID.
	AppendPrivateMessage(ctx context.Context, msg *PrivateMessage) error

	// RecentGroupMessages returns the newest messages for a room in
	// chronological ascending order. Limit is clamped to MaxHistoryLimit;
	// zero or negative means DefaultHistoryLimit.
	RecentGroupMessages(ctx context.Context, room string, limit int) ([]*GroupMessage, error)

	// RecentPrivateMessages returns the newest messages exchanged between
	// two users, in either direction, in chronological ascending order.
	RecentPrivateMessages(ctx context.Context, userA, userB string, limit int) ([]*PrivateMessage, error)
}

// Store aggregates all storage interfaces.
type Store interface {
	UserStore
	MessageStore

	// Close closes the underlying database connection.
	Close() error
}

// ClampHistoryLimit normalizes a requested history limit.
func ClampHistoryLimit(limit int) int {
	if limit <= 0 {
		return DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		return MaxHistoryLimit
	}
	return limit
}
