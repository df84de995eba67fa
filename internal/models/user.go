package models

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Role is a user's role. It gates access to the messaging endpoints.
type Role string

const (
	RoleGuest     Role = "guest"
	RoleModerator Role = "moderator"
	RoleAdmin     Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleGuest, RoleModerator, RoleAdmin:
		return true
	}
	return false
}

// User is a messaging participant. The raw API token is never persisted;
// only its SHA-256 hex hash and an 8-character display prefix are stored.
type User struct {
	ID          string    `json:"id"`
	Username    string    `json:"username"`
	Email       string    `json:"email,omitempty"`
	Role        Role      `json:"role"`
	TokenHash   string    `json:"-"`
	TokenPrefix string    `json:"token_prefix,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewUser creates a user with a fresh ID whose token is rawToken.
func NewUser(username, email string, role Role, rawToken string) *User {
	prefix := rawToken
	if len(prefix) > 8 {
		prefix = prefix[:8]
	}
	return &User{
		ID:          NewID(),
		Username:    username,
		Email:       email,
		Role:        role,
		TokenHash:   HashToken(rawToken),
		TokenPrefix: prefix,
		CreatedAt:   time.Now().UTC(),
	}
}

// GenerateToken produces a new random token in the format cg_<44 url-safe base64 chars>.
func GenerateToken() (string, error) {
	b := make([]byte, 33) // 33 bytes → 44 base64url chars
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return "cg_" + base64.RawURLEncoding.EncodeToString(b), nil
}

// HashToken computes the SHA-256 hex digest of a raw token.
func HashToken(rawToken string) string {
	sum := sha256.Sum256([]byte(rawToken))
	return hex.EncodeToString(sum[:])
}

// NewID generates a new UUID v4 string.
func NewID() string {
	return uuid.New().String()
}

// ValidID reports whether s parses as a UUID.
func ValidID(s string) bool {
	return uuid.Validate(s) == nil
}
