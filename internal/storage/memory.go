package storage

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"chatgate/internal/models"
)

// MemoryStorage implements the Storage interface using in-memory data structures.
// This provider is ideal for development, testing, and scenarios where data
// persistence is not required. It provides fast access but data is lost on restart.
type MemoryStorage struct {
	mu            sync.RWMutex
	users         map[string]*models.User // keyed by ID
	usernames     map[string]string       // username -> ID
	tokenHashes   map[string]string       // hash -> ID
	conversations map[string]*models.Conversation
	messages      map[string]*models.Message
}

// NewMemoryStorage creates a new memory-based storage instance
func NewMemoryStorage(config Config) (*MemoryStorage, error) {
	return &MemoryStorage{
		users:         make(map[string]*models.User),
		usernames:     make(map[string]string),
		tokenHashes:   make(map[string]string),
		conversations: make(map[string]*models.Conversation),
		messages:      make(map[string]*models.Message),
	}, nil
}

// CreateUser stores a new user
func (m *MemoryStorage) CreateUser(ctx context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.usernames[user.Username]; exists {
		return fmt.Errorf("user %s: %w", user.Username, ErrDuplicate)
	}
	if _, exists := m.tokenHashes[user.TokenHash]; exists && user.TokenHash != "" {
		return fmt.Errorf("token for user %s: %w", user.Username, ErrDuplicate)
	}

	// Store a copy to prevent external modification
	userCopy := *user
	m.users[user.ID] = &userCopy
	m.usernames[user.Username] = user.ID
	if user.TokenHash != "" {
		m.tokenHashes[user.TokenHash] = user.ID
	}
	return nil
}

// GetUser retrieves a user by ID
func (m *MemoryStorage) GetUser(ctx context.Context, id string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.userByID(id)
}

func (m *MemoryStorage) userByID(id string) (*models.User, error) {
	user, exists := m.users[id]
	if !exists {
		return nil, fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	userCopy := *user
	return &userCopy, nil
}

// GetUserByUsername retrieves a user by username
func (m *MemoryStorage) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, exists := m.usernames[username]
	if !exists {
		return nil, fmt.Errorf("user %s: %w", username, ErrNotFound)
	}
	return m.userByID(id)
}

// GetUserByTokenHash resolves a token hash to its user
func (m *MemoryStorage) GetUserByTokenHash(ctx context.Context, hash string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, exists := m.tokenHashes[hash]
	if !exists {
		return nil, fmt.Errorf("token: %w", ErrNotFound)
	}
	return m.userByID(id)
}

// Users returns every user, oldest first
func (m *MemoryStorage) Users(ctx context.Context) ([]*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	users := make([]*models.User, 0, len(m.users))
	for _, user := range m.users {
		userCopy := *user
		users = append(users, &userCopy)
	}
	sort.Slice(users, func(i, j int) bool {
		return olderFirst(users[i].CreatedAt, users[j].CreatedAt, users[i].ID, users[j].ID)
	})
	return users, nil
}

// CreateConversation stores a new conversation
func (m *MemoryStorage) CreateConversation(ctx context.Context, conv *models.Conversation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.conversations[conv.ID]; exists {
		return fmt.Errorf("conversation %s: %w", conv.ID, ErrDuplicate)
	}
	m.conversations[conv.ID] = copyConversation(conv)
	return nil
}

// GetConversation retrieves a conversation by ID
func (m *MemoryStorage) GetConversation(ctx context.Context, id string) (*models.Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	conv, exists := m.conversations[id]
	if !exists {
		return nil, fmt.Errorf("conversation %s: %w", id, ErrNotFound)
	}
	return copyConversation(conv), nil
}

// ConversationsForUser returns the user's conversations, oldest first
func (m *MemoryStorage) ConversationsForUser(ctx context.Context, userID string) ([]*models.Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	convs := make([]*models.Conversation, 0)
	for _, conv := range m.conversations {
		if conv.HasParticipant(userID) {
			convs = append(convs, copyConversation(conv))
		}
	}
	sort.Slice(convs, func(i, j int) bool {
		return olderFirst(convs[i].CreatedAt, convs[j].CreatedAt, convs[i].ID, convs[j].ID)
	})
	return convs, nil
}

// CreateMessage stores a new message
func (m *MemoryStorage) CreateMessage(ctx context.Context, msg *models.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.conversations[msg.ConversationID]; !exists {
		return fmt.Errorf("conversation %s: %w", msg.ConversationID, ErrNotFound)
	}
	if _, exists := m.messages[msg.ID]; exists {
		return fmt.Errorf("message %s: %w", msg.ID, ErrDuplicate)
	}
	m.messages[msg.ID] = copyMessage(msg)
	return nil
}

// GetMessage retrieves a message by ID
func (m *MemoryStorage) GetMessage(ctx context.Context, id string) (*models.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	msg, exists := m.messages[id]
	if !exists {
		return nil, fmt.Errorf("message %s: %w", id, ErrNotFound)
	}
	return copyMessage(msg), nil
}

// UpdateMessage replaces the body and edit time of a message
func (m *MemoryStorage) UpdateMessage(ctx context.Context, msg *models.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, exists := m.messages[msg.ID]
	if !exists {
		return fmt.Errorf("message %s: %w", msg.ID, ErrNotFound)
	}
	updated := copyMessage(existing)
	updated.Body = msg.Body
	updated.EditedAt = copyTime(msg.EditedAt)
	m.messages[msg.ID] = updated
	return nil
}

// DeleteMessage removes a message
func (m *MemoryStorage) DeleteMessage(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.messages[id]; !exists {
		return fmt.Errorf("message %s: %w", id, ErrNotFound)
	}
	delete(m.messages, id)
	return nil
}

// MessagesForUser returns the user's visible messages matching filter
func (m *MemoryStorage) MessagesForUser(ctx context.Context, userID string, filter models.MessageFilter) ([]*models.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	msgs := make([]*models.Message, 0)
	for _, msg := range m.messages {
		conv, exists := m.conversations[msg.ConversationID]
		if !exists || !conv.HasParticipant(userID) {
			continue
		}
		if !filter.Matches(msg, conv) {
			continue
		}
		msgs = append(msgs, copyMessage(msg))
	}
	sort.Slice(msgs, func(i, j int) bool {
		return olderFirst(msgs[i].SentAt, msgs[j].SentAt, msgs[i].ID, msgs[j].ID)
	})
	return msgs, nil
}

// Ping always succeeds for memory storage
func (m *MemoryStorage) Ping(ctx context.Context) error {
	return nil
}

// Close is a no-op for memory storage
func (m *MemoryStorage) Close() error {
	return nil
}

func olderFirst(a, b time.Time, idA, idB string) bool {
	if a.Equal(b) {
		return idA < idB
	}
	return a.Before(b)
}

func copyConversation(c *models.Conversation) *models.Conversation {
	convCopy := *c
	convCopy.Participants = slices.Clone(c.Participants)
	return &convCopy
}

func copyMessage(msg *models.Message) *models.Message {
	msgCopy := *msg
	msgCopy.EditedAt = copyTime(msg.EditedAt)
	return &msgCopy
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	tc := *t
	return &tc
}
