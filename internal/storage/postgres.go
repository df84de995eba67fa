package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"chatgate/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS users (
	id           TEXT PRIMARY KEY,
	username     TEXT NOT NULL UNIQUE,
	email        TEXT NOT NULL DEFAULT '',
	role         TEXT NOT NULL,
	token_hash   TEXT UNIQUE,
	token_prefix TEXT NOT NULL DEFAULT '',
	created_at   TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS conversations (
	id         TEXT PRIMARY KEY,
	created_at TIMESTAMPTZ NOT NULL
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
	sent_at         TIMESTAMPTZ NOT NULL,
	edited_at       TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, sent_at);
`

// Postgres error codes we translate.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// PostgresStorage implements the Storage interface using PostgreSQL through a
// pgx connection pool.
type PostgresStorage struct {
	pool *pgxpool.Pool
}

// NewPostgresStorage creates a new PostgreSQL storage instance and ensures the schema exists.
func NewPostgresStorage(config Config) (*PostgresStorage, error) {
	if config.ConnectionString == "" {
		return nil, fmt.Errorf("connection string is required for PostgreSQL storage")
	}

	poolConfig, err := pgxpool.ParseConfig(config.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}
	if config.MaxOpenConns > 0 {
		poolConfig.MaxConns = int32(config.MaxOpenConns)
	}
	if config.MaxIdleConns > 0 {
		poolConfig.MinConns = int32(min(config.MaxIdleConns, int(poolConfig.MaxConns)))
	}
	if config.ConnMaxLifetime > 0 {
		poolConfig.MaxConnLifetime = config.ConnMaxLifetime
	}

	ctx := context.Background()
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &PostgresStorage{pool: pool}, nil
}

func pgErrorCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// CreateUser stores a new user.
func (ps *PostgresStorage) CreateUser(ctx context.Context, user *models.User) error {
	tokenHash := pgtype.Text{String: user.TokenHash, Valid: user.TokenHash != ""}
	_, err := ps.pool.Exec(ctx,
		`INSERT INTO users (id, username, email, role, token_hash, token_prefix, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		user.ID, user.Username, user.Email, string(user.Role), tokenHash, user.TokenPrefix, user.CreatedAt)
	if err != nil {
		if pgErrorCode(err) == pgUniqueViolation {
			return fmt.Errorf("user %s: %w", user.Username, ErrDuplicate)
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

const pgUserColumns = `id, username, email, role, token_hash, token_prefix, created_at`

// GetUser retrieves a user by ID.
func (ps *PostgresStorage) GetUser(ctx context.Context, id string) (*models.User, error) {
	return ps.queryUser(ctx, "id", id)
}

// GetUserByUsername retrieves a user by username.
func (ps *PostgresStorage) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return ps.queryUser(ctx, "username", username)
}

// GetUserByTokenHash resolves a token hash to its user.
func (ps *PostgresStorage) GetUserByTokenHash(ctx context.Context, hash string) (*models.User, error) {
	return ps.queryUser(ctx, "token_hash", hash)
}

func (ps *PostgresStorage) queryUser(ctx context.Context, column, value string) (*models.User, error) {
	row := ps.pool.QueryRow(ctx, `SELECT `+pgUserColumns+` FROM users WHERE `+column+` = $1`, value)
	user, err := scanPgUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("user %s=%s: %w", column, value, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// Users returns every user, oldest first.
func (ps *PostgresStorage) Users(ctx context.Context) ([]*models.User, error) {
	rows, err := ps.pool.Query(ctx, `SELECT `+pgUserColumns+` FROM users ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	users := make([]*models.User, 0)
	for rows.Next() {
		user, err := scanPgUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

func scanPgUser(row pgx.Row) (*models.User, error) {
	var (
		user      models.User
		role      string
		tokenHash pgtype.Text
	)
	if err := row.Scan(&user.ID, &user.Username, &user.Email, &role, &tokenHash, &user.TokenPrefix, &user.CreatedAt); err != nil {
		return nil, err
	}
	user.Role = models.Role(role)
	user.TokenHash = tokenHash.String
	user.CreatedAt = user.CreatedAt.UTC()
	return &user, nil
}

// CreateConversation stores a conversation and its participants in one transaction.
func (ps *PostgresStorage) CreateConversation(ctx context.Context, conv *models.Conversation) error {
	return pgx.BeginFunc(ctx, ps.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `INSERT INTO conversations (id, created_at) VALUES ($1, $2)`, conv.ID, conv.CreatedAt); err != nil {
			if pgErrorCode(err) == pgUniqueViolation {
				return fmt.Errorf("conversation %s: %w", conv.ID, ErrDuplicate)
			}
			return fmt.Errorf("failed to create conversation: %w", err)
		}

		batch := &pgx.Batch{}
		for i, userID := range conv.Participants {
			batch.Queue(`INSERT INTO conversation_participants (conversation_id, user_id, position) VALUES ($1, $2, $3)`,
				conv.ID, userID, i)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("failed to add participants: %w", err)
		}
		return nil
	})
}

// GetConversation retrieves a conversation by ID.
func (ps *PostgresStorage) GetConversation(ctx context.Context, id string) (*models.Conversation, error) {
	conv := &models.Conversation{ID: id}
	err := ps.pool.QueryRow(ctx, `SELECT created_at FROM conversations WHERE id = $1`, id).Scan(&conv.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("conversation %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	conv.CreatedAt = conv.CreatedAt.UTC()

	if err := ps.loadParticipants(ctx, []*models.Conversation{conv}); err != nil {
		return nil, err
	}
	return conv, nil
}

// ConversationsForUser returns the user's conversations, oldest first.
func (ps *PostgresStorage) ConversationsForUser(ctx context.Context, userID string) ([]*models.Conversation, error) {
	rows, err := ps.pool.Query(ctx, `
		SELECT c.id, c.created_at FROM conversations c
		JOIN conversation_participants p ON p.conversation_id = c.id
		WHERE p.user_id = $1
		ORDER BY c.created_at, c.id`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}

	convs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*models.Conversation, error) {
		var conv models.Conversation
		if err := row.Scan(&conv.ID, &conv.CreatedAt); err != nil {
			return nil, err
		}
		conv.CreatedAt = conv.CreatedAt.UTC()
		return &conv, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan conversations: %w", err)
	}

	if err := ps.loadParticipants(ctx, convs); err != nil {
		return nil, err
	}
	return convs, nil
}

func (ps *PostgresStorage) loadParticipants(ctx context.Context, convs []*models.Conversation) error {
	if len(convs) == 0 {
		return nil
	}
	byID := make(map[string]*models.Conversation, len(convs))
	ids := make([]string, len(convs))
	for i, c := range convs {
		byID[c.ID] = c
		c.Participants = []string{}
		ids[i] = c.ID
	}

	rows, err := ps.pool.Query(ctx,
		`SELECT conversation_id, user_id FROM conversation_participants WHERE conversation_id = ANY($1) ORDER BY conversation_id, position`,
		ids)
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

// CreateMessage stores a new message.
func (ps *PostgresStorage) CreateMessage(ctx context.Context, msg *models.Message) error {
	_, err := ps.pool.Exec(ctx,
		`INSERT INTO messages (id, conversation_id, sender_id, message_body, sent_at, edited_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		msg.ID, msg.ConversationID, msg.SenderID, msg.Body, msg.SentAt, toTimestamptz(msg.EditedAt))
	switch pgErrorCode(err) {
	case "":
		if err != nil {
			return fmt.Errorf("failed to create message: %w", err)
		}
		return nil
	case pgForeignKeyViolation:
		return fmt.Errorf("conversation %s: %w", msg.ConversationID, ErrNotFound)
	case pgUniqueViolation:
		return fmt.Errorf("message %s: %w", msg.ID, ErrDuplicate)
	default:
		return fmt.Errorf("failed to create message: %w", err)
	}
}

const pgMessageColumns = `id, conversation_id, sender_id, message_body, sent_at, edited_at`

// GetMessage retrieves a message by ID.
func (ps *PostgresStorage) GetMessage(ctx context.Context, id string) (*models.Message, error) {
	row := ps.pool.QueryRow(ctx, `SELECT `+pgMessageColumns+` FROM messages WHERE id = $1`, id)
	msg, err := scanPgMessage(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("message %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get message: %w", err)
	}
	return msg, nil
}

// UpdateMessage replaces the body and edit time of a message.
func (ps *PostgresStorage) UpdateMessage(ctx context.Context, msg *models.Message) error {
	tag, err := ps.pool.Exec(ctx, `UPDATE messages SET message_body = $1, edited_at = $2 WHERE id = $3`,
		msg.Body, toTimestamptz(msg.EditedAt), msg.ID)
	if err != nil {
		return fmt.Errorf("failed to update message: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("message %s: %w", msg.ID, ErrNotFound)
	}
	return nil
}

// DeleteMessage removes a message.
func (ps *PostgresStorage) DeleteMessage(ctx context.Context, id string) error {
	tag, err := ps.pool.Exec(ctx, `DELETE FROM messages WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("message %s: %w", id, ErrNotFound)
	}
	return nil
}

// MessagesForUser returns the user's visible messages matching filter.
func (ps *PostgresStorage) MessagesForUser(ctx context.Context, userID string, filter models.MessageFilter) ([]*models.Message, error) {
	query, args := messageQuery(userID, filter, dollar, func(t time.Time) any { return t })
	rows, err := ps.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}

	msgs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*models.Message, error) {
		return scanPgMessage(row)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan messages: %w", err)
	}
	return msgs, nil
}

func scanPgMessage(row pgx.Row) (*models.Message, error) {
	var (
		msg      models.Message
		editedAt pgtype.Timestamptz
	)
	if err := row.Scan(&msg.ID, &msg.ConversationID, &msg.SenderID, &msg.Body, &msg.SentAt, &editedAt); err != nil {
		return nil, err
	}
	msg.SentAt = msg.SentAt.UTC()
	if editedAt.Valid {
		t := editedAt.Time.UTC()
		msg.EditedAt = &t
	}
	return &msg, nil
}

func toTimestamptz(t *time.Time) pgtype.Timestamptz {
	if t == nil {
		return pgtype.Timestamptz{}
	}
	return pgtype.Timestamptz{Time: *t, Valid: true}
}

// Ping checks the database connection.
func (ps *PostgresStorage) Ping(ctx context.Context) error {
	return ps.pool.Ping(ctx)
}

// Close closes the connection pool.
func (ps *PostgresStorage) Close() error {
	ps.pool.Close()
	return nil
}
