package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"chatgate/internal/models"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS users (
	id           TEXT PRIMARY KEY,
	username     TEXT NOT NULL UNIQUE,
	email        TEXT NOT NULL DEFAULT '',
	role         TEXT NOT NULL,
	token_hash   TEXT UNIQUE,
	token_prefix TEXT NOT NULL DEFAULT '',
	created_at   TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS conversations (
	id         TEXT PRIMARY KEY,
	created_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS conversation_participants (
	conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
	user_id         TEXT NOT NULL,
	position        INTEGER NOT NULL,
	PRIMARY KEY (conversation_id, user_id)
);
CREATE INDEX IF NOT EXISTS idx_participants_user ON conversation_participants(user_id);
CREATE TABLE IF NOT EXISTS messages (
	id              TEXT PRIMARY KEY,
	conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
	sender_id       TEXT NOT NULL,
	message_body    TEXT NOT NULL,
	sent_at         TEXT NOT NULL,
	edited_at       TEXT
);
CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, sent_at);
`

// SQLiteStorage implements the Storage interface on an embedded SQLite
// database. The schema is created on open.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage creates a new SQLite storage instance
func NewSQLiteStorage(config Config) (*SQLiteStorage, error) {
	if config.ConnectionString == "" {
		return nil, fmt.Errorf("connection string is required for SQLite storage")
	}

	db, err := sql.Open("sqlite", config.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One long-lived connection: SQLite serialises writers, and the
	// foreign_keys pragma below is per connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

// CreateUser stores a new user
func (ss *SQLiteStorage) CreateUser(ctx context.Context, user *models.User) error {
	var tokenHash any
	if user.TokenHash != "" {
		tokenHash = user.TokenHash
	}
	_, err := ss.db.ExecContext(ctx,
		`INSERT INTO users (id, username, email, role, token_hash, token_prefix, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		user.ID, user.Username, user.Email, string(user.Role), tokenHash, user.TokenPrefix, formatTime(user.CreatedAt))
	if err != nil {
		if isSQLiteConstraint(err) {
			return fmt.Errorf("user %s: %w", user.Username, ErrDuplicate)
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

const sqliteUserColumns = `id, username, email, role, COALESCE(token_hash, ''), token_prefix, created_at`

// GetUser retrieves a user by ID
func (ss *SQLiteStorage) GetUser(ctx context.Context, id string) (*models.User, error) {
	return ss.queryUser(ctx, "id", id)
}

// GetUserByUsername retrieves a user by username
func (ss *SQLiteStorage) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return ss.queryUser(ctx, "username", username)
}

// GetUserByTokenHash resolves a token hash to its user
func (ss *SQLiteStorage) GetUserByTokenHash(ctx context.Context, hash string) (*models.User, error) {
	return ss.queryUser(ctx, "token_hash", hash)
}

func (ss *SQLiteStorage) queryUser(ctx context.Context, column, value string) (*models.User, error) {
	row := ss.db.QueryRowContext(ctx, `SELECT `+sqliteUserColumns+` FROM users WHERE `+column+` = ?`, value)
	user, err := scanSQLiteUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %s=%s: %w", column, value, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// Users returns every user, oldest first
func (ss *SQLiteStorage) Users(ctx context.Context) ([]*models.User, error) {
	rows, err := ss.db.QueryContext(ctx, `SELECT `+sqliteUserColumns+` FROM users ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	users := make([]*models.User, 0)
	for rows.Next() {
		user, err := scanSQLiteUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteUser(row rowScanner) (*models.User, error) {
	var (
		user      models.User
		role      string
		createdAt string
	)
	if err := row.Scan(&user.ID, &user.Username, &user.Email, &role, &user.TokenHash, &user.TokenPrefix, &createdAt); err != nil {
		return nil, err
	}
	user.Role = models.Role(role)
	t, err := parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	user.CreatedAt = t
	return &user, nil
}

// CreateConversation stores a conversation and its participants in one transaction
func (ss *SQLiteStorage) CreateConversation(ctx context.Context, conv *models.Conversation) error {
	tx, err := ss.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `INSERT INTO conversations (id, created_at) VALUES (?, ?)`,
		conv.ID, formatTime(conv.CreatedAt)); err != nil {
		if isSQLiteConstraint(err) {
			return fmt.Errorf("conversation %s: %w", conv.ID, ErrDuplicate)
		}
		return fmt.Errorf("failed to create conversation: %w", err)
	}
	for i, userID := range conv.Participants {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO conversation_participants (conversation_id, user_id, position) VALUES (?, ?, ?)`,
			conv.ID, userID, i); err != nil {
			return fmt.Errorf("failed to add participant %s: %w", userID, err)
		}
	}
	return tx.Commit()
}

// GetConversation retrieves a conversation by ID
func (ss *SQLiteStorage) GetConversation(ctx context.Context, id string) (*models.Conversation, error) {
	var createdAt string
	err := ss.db.QueryRowContext(ctx, `SELECT created_at FROM conversations WHERE id = ?`, id).Scan(&createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("conversation %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	t, err := parseTime(createdAt)
	if err != nil {
		return nil, err
	}

	conv := &models.Conversation{ID: id, CreatedAt: t}
	if err := ss.loadParticipants(ctx, []*models.Conversation{conv}); err != nil {
		return nil, err
	}
	return conv, nil
}

// ConversationsForUser returns the user's conversations, oldest first
func (ss *SQLiteStorage) ConversationsForUser(ctx context.Context, userID string) ([]*models.Conversation, error) {
	rows, err := ss.db.QueryContext(ctx, `
		SELECT c.id, c.created_at FROM conversations c
		JOIN conversation_participants p ON p.conversation_id = c.id
		WHERE p.user_id = ?
		ORDER BY c.created_at, c.id`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer rows.Close()

	convs := make([]*models.Conversation, 0)
	for rows.Next() {
		var (
			conv      models.Conversation
			createdAt string
		)
		if err := rows.Scan(&conv.ID, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}
		if conv.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		convs = append(convs, &conv)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := ss.loadParticipants(ctx, convs); err != nil {
		return nil, err
	}
	return convs, nil
}

func (ss *SQLiteStorage) loadParticipants(ctx context.Context, convs []*models.Conversation) error {
	if len(convs) == 0 {
		return nil
	}
	byID := make(map[string]*models.Conversation, len(convs))
	args := make([]any, len(convs))
	for i, c := range convs {
		byID[c.ID] = c
		c.Participants = []string{}
		args[i] = c.ID
	}

	rows, err := ss.db.QueryContext(ctx,
		`SELECT conversation_id, user_id FROM conversation_participants WHERE conversation_id IN `+
			inClause(len(args), 0, questionMark)+` ORDER BY conversation_id, position`, args...)
	if err != nil {
		return fmt.Errorf("failed to load participants: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var convID, userID string
		if err := rows.Scan(&convID, &userID); err != nil {
			return fmt.Errorf("failed to scan participant: %w", err)
		}
		byID[convID].Participants = append(byID[convID].Participants, userID)
	}
	return rows.Err()
}

// CreateMessage stores a new message
func (ss *SQLiteStorage) CreateMessage(ctx context.Context, msg *models.Message) error {
	_, err := ss.db.ExecContext(ctx,
		`INSERT INTO messages (id, conversation_id, sender_id, message_body, sent_at, edited_at) VALUES (?, ?, ?, ?, ?, ?)`,
		msg.ID, msg.ConversationID, msg.SenderID, msg.Body, formatTime(msg.SentAt), formatNullTime(msg.EditedAt))
	if err != nil {
		if strings.Contains(err.Error(), "FOREIGN KEY") {
			return fmt.Errorf("conversation %s: %w", msg.ConversationID, ErrNotFound)
		}
		if isSQLiteConstraint(err) {
			return fmt.Errorf("message %s: %w", msg.ID, ErrDuplicate)
		}
		return fmt.Errorf("failed to create message: %w", err)
	}
	return nil
}

// GetMessage retrieves a message by ID
func (ss *SQLiteStorage) GetMessage(ctx context.Context, id string) (*models.Message, error) {
	row := ss.db.QueryRowContext(ctx,
		`SELECT id, conversation_id, sender_id, message_body, sent_at, edited_at FROM messages WHERE id = ?`, id)
	msg, err := scanSQLiteMessage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("message %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get message: %w", err)
	}
	return msg, nil
}

// UpdateMessage replaces the body and edit time of a message
func (ss *SQLiteStorage) UpdateMessage(ctx context.Context, msg *models.Message) error {
	res, err := ss.db.ExecContext(ctx, `UPDATE messages SET message_body = ?, edited_at = ? WHERE id = ?`,
		msg.Body, formatNullTime(msg.EditedAt), msg.ID)
	if err != nil {
		return fmt.Errorf("failed to update message: %w", err)
	}
	return requireAffected(res, "message", msg.ID)
}

// DeleteMessage removes a message
func (ss *SQLiteStorage) DeleteMessage(ctx context.Context, id string) error {
	res, err := ss.db.ExecContext(ctx, `DELETE FROM messages WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}
	return requireAffected(res, "message", id)
}

// MessagesForUser returns the user's visible messages matching filter
func (ss *SQLiteStorage) MessagesForUser(ctx context.Context, userID string, filter models.MessageFilter) ([]*models.Message, error) {
	query, args := messageQuery(userID, filter, questionMark, func(t time.Time) any { return formatTime(t) })
	rows, err := ss.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	msgs := make([]*models.Message, 0)
	for rows.Next() {
		msg, err := scanSQLiteMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		msgs = append(msgs, msg)
	}
	return msgs, rows.Err()
}

func scanSQLiteMessage(row rowScanner) (*models.Message, error) {
	var (
		msg      models.Message
		sentAt   string
		editedAt *string
	)
	if err := row.Scan(&msg.ID, &msg.ConversationID, &msg.SenderID, &msg.Body, &sentAt, &editedAt); err != nil {
		return nil, err
	}
	t, err := parseTime(sentAt)
	if err != nil {
		return nil, err
	}
	msg.SentAt = t
	if msg.EditedAt, err = parseNullTime(editedAt); err != nil {
		return nil, err
	}
	return &msg, nil
}

func requireAffected(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
	}
	return nil
}

func isSQLiteConstraint(err error) bool {
	return strings.Contains(err.Error(), "constraint failed")
}

// Ping checks the database connection
func (ss *SQLiteStorage) Ping(ctx context.Context) error {
	return ss.db.PingContext(ctx)
}

// Close closes the storage connection
func (ss *SQLiteStorage) Close() error {
	return ss.db.Close()
}
