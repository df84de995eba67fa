package storage

import (
	"context"
	"time"

	"chatgate/internal/models"
)

// Storage defines the interface for users, conversations and messages.
// It provides a clean abstraction that can be implemented by different
// backends such as in-memory maps or SQL databases.
//
// Lookups of missing records return an error wrapping ErrNotFound.
type Storage interface {
	// CreateUser stores a new user. Usernames and token hashes are unique.
	CreateUser(ctx context.Context, user *models.User) error

	// GetUser retrieves a user by ID
	GetUser(ctx context.Context, id string) (*models.User, error)

	// GetUserByUsername retrieves a user by username
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)

	// GetUserByTokenHash resolves an API token hash to its user
	GetUserByTokenHash(ctx context.Context, hash string) (*models.User, error)

	// Users returns every user, oldest first
	Users(ctx context.Context) ([]*models.User, error)

	// CreateConversation stores a new conversation with its participants
	CreateConversation(ctx context.Context, conv *models.Conversation) error

	// GetConversation retrieves a conversation by ID
	GetConversation(ctx context.Context, id string) (*models.Conversation, error)

	// ConversationsForUser returns the conversations userID takes part in,
	// oldest first
	ConversationsForUser(ctx context.Context, userID string) ([]*models.Conversation, error)

	// CreateMessage stores a new message
	CreateMessage(ctx context.Context, msg *models.Message) error

	// GetMessage retrieves a message by ID
	GetMessage(ctx context.Context, id string) (*models.Message, error)

	// UpdateMessage replaces the body and edit time of an existing message
	UpdateMessage(ctx context.Context, msg *models.Message) error

	// DeleteMessage removes a message
	DeleteMessage(ctx context.Context, id string) error

	// MessagesForUser returns the messages of every conversation userID takes
	// part in that match filter, oldest first
	MessagesForUser(ctx context.Context, userID string, filter models.MessageFilter) ([]*models.Message, error)

	// Ping checks that the backend is reachable
	Ping(ctx context.Context) error

	// Close closes the storage connection and cleans up resources
	Close() error
}

// Config holds configuration for storage backends
type Config struct {
	// Type specifies the storage backend type (memory, postgres, sqlite)
	Type string `json:"type" yaml:"type"`

	// ConnectionString is used for database backends
	ConnectionString string `json:"connection_string,omitempty" yaml:"connection_string,omitempty"`

	// Pool settings for database backends
	MaxOpenConns    int           `json:"max_open_conns,omitempty" yaml:"max_open_conns,omitempty"`
	MaxIdleConns    int           `json:"max_idle_conns,omitempty" yaml:"max_idle_conns,omitempty"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime,omitempty" yaml:"conn_max_lifetime,omitempty"`
}
