package storage

import (
	"context"
	"testing"
	"time"

	"chatgate/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStorage(t *testing.T) {
	storage, err := NewMemoryStorage(Config{})
	if err != nil {
		t.Fatalf("Failed to create memory storage: %v", err)
	}
	defer storage.Close()

	runStorageSuite(t, storage)
}

func TestMemoryStorage_ReturnsCopies(t *testing.T) {
	storage, err := NewMemoryStorage(Config{})
	require.NoError(t, err)
	ctx := context.Background()

	a, b := models.NewID(), models.NewID()
	conv := models.NewConversation([]string{a, b})
	require.NoError(t, storage.CreateConversation(ctx, conv))

	// Mutating the caller's value must not reach the store.
	conv.Participants[0] = "tampered"
	got, err := storage.GetConversation(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, a, got.Participants[0])

	got.Participants[1] = "tampered"
	again, err := storage.GetConversation(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, b, again.Participants[1])

	msg := models.NewMessage(conv.ID, a, "hello")
	require.NoError(t, storage.CreateMessage(ctx, msg))
	edited := time.Now()
	fetched, err := storage.GetMessage(ctx, msg.ID)
	require.NoError(t, err)
	fetched.EditedAt = &edited
	fetched.Body = "changed locally"

	stored, err := storage.GetMessage(ctx, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, "hello", stored.Body)
	assert.Nil(t, stored.EditedAt)
}

func TestMemoryStorage_UsersWithoutToken(t *testing.T) {
	storage, err := NewMemoryStorage(Config{})
	require.NoError(t, err)
	ctx := context.Background()

	u1 := models.NewUser("one", "", models.RoleGuest, "")
	u1.TokenHash = ""
	u2 := models.NewUser("two", "", models.RoleGuest, "")
	u2.TokenHash = ""

	require.NoError(t, storage.CreateUser(ctx, u1))
	require.NoError(t, storage.CreateUser(ctx, u2))
}
