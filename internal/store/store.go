package store

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors shared by every store implementation. Callers match them
// with errors.Is and translate them at the transport boundary.
var (
	// ErrNotFound is returned when a user or message does not exist.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when a username is already taken.
	ErrAlreadyExists = errors.New("already exists")
	// ErrInvalidInput is returned when a required field is empty.
	ErrInvalidInput = errors.New("invalid input")
)

// Role describes a user's privilege level.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Display defaults applied when a user has no stored avatar or color, and
// when a profile is requested for an unknown username.
const (
	DefaultAvatar = "/uploads/default.png"
	DefaultColor  = "#007BFF"
)

// User is a registered account. Username is unique and immutable.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	Color        string
	Avatar       string
	Role         Role
	CreatedAt    time.Time
}

// Message is one entry in the durable chat log. Author references a user by
// value only; the row survives the author's deletion. Avatar and Color are
// snapshots taken at send time and never updated retroactively.
type Message struct {
	ID        int64
	Author    string
	Text      string
	Avatar    string
	Color     string
	CreatedAt time.Time
}

// UserStore handles user persistence.
type UserStore interface {
	// CreateUser inserts a new user. The uniqueness check and the insert are
	// atomic; a duplicate username yields ErrAlreadyExists, an empty username
	// or credential yields ErrInvalidInput.
	CreateUser(ctx context.Context, username, passwordHash, color, avatar string) (*User, error)

	// GetUserByUsername retrieves a user by exact, case-sensitive username.
	GetUserByUsername(ctx context.Context, username string) (*User, error)

	// ListUsernames returns all registered usernames in insertion order.
	ListUsernames(ctx context.Context) ([]string, error)

	// DeleteUser removes the user row. ErrNotFound when absent.
	DeleteUser(ctx context.Context, username string) error

	// CountAdmins reports how many users hold the admin role.
	CountAdmins(ctx context.Context) (int, error)
}

// MessageStore handles the ordered message log.
type MessageStore interface {
	// AppendMessage persists a message, assigning the next identifier and the
	// creation timestamp on msg.
	AppendMessage(ctx context.Context, msg *Message) error

	// RecentMessages returns the most recent limit messages in chronological
	// order, oldest first.
	RecentMessages(ctx context.Context, limit int) ([]*Message, error)

	// DeleteMessage removes a message by identifier. ErrNotFound when absent.
	DeleteMessage(ctx context.Context, id int64) error
}

// Store aggregates all storage interfaces.
type Store interface {
	UserStore
	MessageStore

	// Close closes the underlying database connection.
	Close() error
}
