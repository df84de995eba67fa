package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"chatgate/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var suiteEpoch = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

func newSuiteUser(t *testing.T, s Storage, name string, role models.Role, offset time.Duration) *models.User {
	t.Helper()
	u := models.NewUser(name+"-"+models.NewID()[:8], name+"@example.com", role, "cg_"+models.NewID())
	u.CreatedAt = suiteEpoch.Add(offset)
	require.NoError(t, s.CreateUser(context.Background(), u))
	return u
}

// runStorageSuite exercises the behaviour every backend must share.
func runStorageSuite(t *testing.T, s Storage) {
	ctx := context.Background()

	alice := newSuiteUser(t, s, "alice", models.RoleModerator, 0)
	bob := newSuiteUser(t, s, "bob", models.RoleModerator, time.Second)
	carol := newSuiteUser(t, s, "carol", models.RoleAdmin, 2*time.Second)

	t.Run("Users", func(t *testing.T) {
		got, err := s.GetUser(ctx, alice.ID)
		require.NoError(t, err)
		assert.Equal(t, alice.Username, got.Username)
		assert.Equal(t, models.RoleModerator, got.Role)
		assert.True(t, alice.CreatedAt.Equal(got.CreatedAt))

		got, err = s.GetUserByTokenHash(ctx, bob.TokenHash)
		require.NoError(t, err)
		assert.Equal(t, bob.ID, got.ID)

		got, err = s.GetUserByUsername(ctx, carol.Username)
		require.NoError(t, err)
		assert.Equal(t, carol.ID, got.ID)

		_, err = s.GetUser(ctx, models.NewID())
		assert.True(t, errors.Is(err, ErrNotFound))

		_, err = s.GetUserByTokenHash(ctx, models.HashToken("nope"))
		assert.True(t, errors.Is(err, ErrNotFound))

		dup := models.NewUser(alice.Username, "", models.RoleGuest, "cg_other")
		assert.True(t, errors.Is(s.CreateUser(ctx, dup), ErrDuplicate))

		users, err := s.Users(ctx)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, len(users), 3)
	})

	ab := models.NewConversation([]string{alice.ID, bob.ID})
	ab.CreatedAt = suiteEpoch
	bc := models.NewConversation([]string{bob.ID, carol.ID})
	bc.CreatedAt = suiteEpoch.Add(time.Minute)

	t.Run("Conversations", func(t *testing.T) {
		require.NoError(t, s.CreateConversation(ctx, ab))
		require.NoError(t, s.CreateConversation(ctx, bc))

		got, err := s.GetConversation(ctx, ab.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{alice.ID, bob.ID}, got.Participants)

		convs, err := s.ConversationsForUser(ctx, bob.ID)
		require.NoError(t, err)
		require.Len(t, convs, 2)
		assert.Equal(t, ab.ID, convs[0].ID)
		assert.Equal(t, bc.ID, convs[1].ID)
		assert.Equal(t, []string{bob.ID, carol.ID}, convs[1].Participants)

		convs, err = s.ConversationsForUser(ctx, alice.ID)
		require.NoError(t, err)
		assert.Len(t, convs, 1)

		_, err = s.GetConversation(ctx, models.NewID())
		assert.True(t, errors.Is(err, ErrNotFound))
	})

	m1 := models.NewMessage(ab.ID, alice.ID, "hi bob")
	m1.SentAt = time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)
	m2 := models.NewMessage(ab.ID, bob.ID, "hi alice")
	m2.SentAt = time.Date(2024, 3, 11, 9, 0, 0, 0, time.UTC)
	m3 := models.NewMessage(bc.ID, carol.ID, "hi bob, carol here")
	m3.SentAt = time.Date(2024, 3, 12, 9, 0, 0, 0, time.UTC)

	t.Run("Messages", func(t *testing.T) {
		for _, m := range []*models.Message{m1, m2, m3} {
			require.NoError(t, s.CreateMessage(ctx, m))
		}

		orphan := models.NewMessage(models.NewID(), alice.ID, "lost")
		assert.True(t, errors.Is(s.CreateMessage(ctx, orphan), ErrNotFound))

		got, err := s.GetMessage(ctx, m1.ID)
		require.NoError(t, err)
		assert.Equal(t, "hi bob", got.Body)
		assert.Nil(t, got.EditedAt)
		assert.True(t, m1.SentAt.Equal(got.SentAt))

		edited := suiteEpoch.Add(time.Hour)
		got.Body = "hi bob!"
		got.EditedAt = &edited
		require.NoError(t, s.UpdateMessage(ctx, got))

		got, err = s.GetMessage(ctx, m1.ID)
		require.NoError(t, err)
		assert.Equal(t, "hi bob!", got.Body)
		require.NotNil(t, got.EditedAt)
		assert.True(t, edited.Equal(*got.EditedAt))

		missing := models.NewMessage(ab.ID, alice.ID, "x")
		assert.True(t, errors.Is(s.UpdateMessage(ctx, missing), ErrNotFound))
	})

	t.Run("MessagesForUser", func(t *testing.T) {
		ids := func(msgs []*models.Message) []string {
			out := make([]string, len(msgs))
			for i, m := range msgs {
				out[i] = m.ID
			}
			return out
		}

		msgs, err := s.MessagesForUser(ctx, bob.ID, models.MessageFilter{})
		require.NoError(t, err)
		assert.Equal(t, []string{m1.ID, m2.ID, m3.ID}, ids(msgs))

		msgs, err = s.MessagesForUser(ctx, alice.ID, models.MessageFilter{})
		require.NoError(t, err)
		assert.Equal(t, []string{m1.ID, m2.ID}, ids(msgs))

		msgs, err = s.MessagesForUser(ctx, bob.ID, models.MessageFilter{SenderID: carol.ID})
		require.NoError(t, err)
		assert.Equal(t, []string{m3.ID}, ids(msgs))

		msgs, err = s.MessagesForUser(ctx, bob.ID, models.MessageFilter{ParticipantID: alice.ID})
		require.NoError(t, err)
		assert.Equal(t, []string{m1.ID, m2.ID}, ids(msgs))

		msgs, err = s.MessagesForUser(ctx, bob.ID, models.MessageFilter{ConversationID: bc.ID})
		require.NoError(t, err)
		assert.Equal(t, []string{m3.ID}, ids(msgs))

		day, err := models.ParseDate("2024-03-11")
		require.NoError(t, err)
		msgs, err = s.MessagesForUser(ctx, bob.ID, models.MessageFilter{StartDate: day, EndDate: day})
		require.NoError(t, err)
		assert.Equal(t, []string{m2.ID}, ids(msgs))

		msgs, err = s.MessagesForUser(ctx, bob.ID, models.MessageFilter{StartDate: day})
		require.NoError(t, err)
		assert.Equal(t, []string{m2.ID, m3.ID}, ids(msgs))

		msgs, err = s.MessagesForUser(ctx, models.NewID(), models.MessageFilter{})
		require.NoError(t, err)
		assert.Empty(t, msgs)
	})

	t.Run("DeleteMessage", func(t *testing.T) {
		require.NoError(t, s.DeleteMessage(ctx, m2.ID))
		_, err := s.GetMessage(ctx, m2.ID)
		assert.True(t, errors.Is(err, ErrNotFound))
		assert.True(t, errors.Is(s.DeleteMessage(ctx, m2.ID), ErrNotFound))
	})

	t.Run("Ping", func(t *testing.T) {
		assert.NoError(t, s.Ping(ctx))
	})
}
