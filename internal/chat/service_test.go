package chat

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"chatgate/internal/gate"
	"chatgate/internal/models"
	"chatgate/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testEpoch = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

type fixture struct {
	svc   *Service
	store *storage.MemoryStorage
	clock *gate.ManualClock

	alice, bob, carol *models.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store, err := storage.NewMemoryStorage(storage.Config{Type: "memory"})
	require.NoError(t, err)

	f := &fixture{
		store: store,
		clock: gate.NewManualClock(testEpoch),
	}
	f.svc = NewService(store, f.clock)
	f.alice = f.addUser(t, "alice")
	f.bob = f.addUser(t, "bob")
	f.carol = f.addUser(t, "carol")
	return f
}

func (f *fixture) addUser(t *testing.T, name string) *models.User {
	t.Helper()
	u := models.NewUser(name, name+"@example.com", models.RoleModerator, "cg_"+name)
	require.NoError(t, f.store.CreateUser(context.Background(), u))
	return u
}

func (f *fixture) conversation(t *testing.T, caller *models.User, others ...*models.User) *models.Conversation {
	t.Helper()
	ids := make([]string, len(others))
	for i, u := range others {
		ids[i] = u.ID
	}
	conv, err := f.svc.CreateConversation(context.Background(), caller, &models.CreateConversationRequest{Participants: ids})
	require.NoError(t, err)
	return conv
}

func (f *fixture) send(t *testing.T, caller *models.User, conv *models.Conversation, body string) *models.Message {
	t.Helper()
	msg, err := f.svc.SendMessage(context.Background(), caller, &models.SendMessageRequest{ConversationID: conv.ID, Body: body})
	require.NoError(t, err)
	return msg
}

func assertServiceError(t *testing.T, err error, status int) {
	t.Helper()
	require.Error(t, err)
	var se *ServiceError
	require.True(t, errors.As(err, &se), "expected *ServiceError, got %T", err)
	assert.Equal(t, status, se.StatusCode)
}

func TestService_CreateConversation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	t.Run("creator is added", func(t *testing.T) {
		conv := f.conversation(t, f.alice, f.bob)
		assert.ElementsMatch(t, []string{f.alice.ID, f.bob.ID}, conv.Participants)
		assert.True(t, testEpoch.Equal(conv.CreatedAt))
	})

	t.Run("creator listed twice is collapsed", func(t *testing.T) {
		conv := f.conversation(t, f.alice, f.alice, f.bob, f.carol)
		assert.Len(t, conv.Participants, 3)
	})

	t.Run("only the creator", func(t *testing.T) {
		_, err := f.svc.CreateConversation(ctx, f.alice, &models.CreateConversationRequest{Participants: []string{f.alice.ID}})
		assertServiceError(t, err, http.StatusBadRequest)
	})

	t.Run("empty participants", func(t *testing.T) {
		_, err := f.svc.CreateConversation(ctx, f.alice, &models.CreateConversationRequest{})
		assertServiceError(t, err, http.StatusBadRequest)
	})

	t.Run("unknown participant", func(t *testing.T) {
		_, err := f.svc.CreateConversation(ctx, f.alice, &models.CreateConversationRequest{Participants: []string{models.NewID()}})
		assertServiceError(t, err, http.StatusBadRequest)
	})

	t.Run("malformed participant id", func(t *testing.T) {
		_, err := f.svc.CreateConversation(ctx, f.alice, &models.CreateConversationRequest{Participants: []string{"bob"}})
		assertServiceError(t, err, http.StatusBadRequest)
	})
}

func TestService_ListConversations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first := f.conversation(t, f.alice, f.bob)
	f.clock.Advance(time.Minute)
	second := f.conversation(t, f.alice, f.carol)
	f.clock.Advance(time.Minute)
	f.conversation(t, f.bob, f.carol)

	page, err := f.svc.ListConversations(ctx, f.alice, &models.ListConversationsRequest{})
	require.NoError(t, err)
	require.Equal(t, 2, page.Count)
	assert.Equal(t, second.ID, page.Results[0].ID)
	assert.Equal(t, first.ID, page.Results[1].ID)

	page, err = f.svc.ListConversations(ctx, f.alice, &models.ListConversationsRequest{Ordering: "created_at"})
	require.NoError(t, err)
	assert.Equal(t, first.ID, page.Results[0].ID)

	page, err = f.svc.ListConversations(ctx, f.alice, &models.ListConversationsRequest{
		Page: models.Page{Page: 2, PageSize: 1},
	})
	require.NoError(t, err)
	require.Len(t, page.Results, 1)
	assert.Equal(t, first.ID, page.Results[0].ID)
	assert.False(t, page.HasMore)

	_, err = f.svc.ListConversations(ctx, f.alice, &models.ListConversationsRequest{Ordering: "participants"})
	assertServiceError(t, err, http.StatusBadRequest)
}

func TestService_GetConversation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	conv := f.conversation(t, f.alice, f.bob)

	got, err := f.svc.GetConversation(ctx, f.bob, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, conv.ID, got.ID)

	_, err = f.svc.GetConversation(ctx, f.carol, conv.ID)
	assertServiceError(t, err, http.StatusNotFound)

	_, err = f.svc.GetConversation(ctx, f.alice, models.NewID())
	assertServiceError(t, err, http.StatusNotFound)

	_, err = f.svc.GetConversation(ctx, f.alice, "not-a-uuid")
	assertServiceError(t, err, http.StatusNotFound)
}

func TestService_SendMessage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	conv := f.conversation(t, f.alice, f.bob)

	msg := f.send(t, f.bob, conv, "  hello  ")
	assert.Equal(t, "hello", msg.Body)
	assert.Equal(t, f.bob.ID, msg.SenderID)
	assert.True(t, testEpoch.Equal(msg.SentAt))
	assert.Nil(t, msg.EditedAt)

	tests := []struct {
		name   string
		caller *models.User
		req    models.SendMessageRequest
		status int
	}{
		{"not a participant", f.carol, models.SendMessageRequest{ConversationID: conv.ID, Body: "hi"}, http.StatusForbidden},
		{"missing conversation", f.alice, models.SendMessageRequest{ConversationID: models.NewID(), Body: "hi"}, http.StatusNotFound},
		{"empty body", f.alice, models.SendMessageRequest{ConversationID: conv.ID, Body: "   "}, http.StatusBadRequest},
		{"missing conversation id", f.alice, models.SendMessageRequest{Body: "hi"}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := tt.req
			_, err := f.svc.SendMessage(ctx, tt.caller, &req)
			assertServiceError(t, err, tt.status)
		})
	}
}

func TestService_ListMessages(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ab := f.conversation(t, f.alice, f.bob)
	bc := f.conversation(t, f.bob, f.carol)

	f.send(t, f.alice, ab, "one")
	f.clock.Advance(24 * time.Hour)
	f.send(t, f.bob, ab, "two")
	f.send(t, f.carol, bc, "hidden from alice")

	page, err := f.svc.ListMessages(ctx, f.alice, &models.ListMessagesRequest{})
	require.NoError(t, err)
	require.Equal(t, 2, page.Count)
	assert.Equal(t, "one", page.Results[0].Body)

	page, err = f.svc.ListMessages(ctx, f.bob, &models.ListMessagesRequest{
		Filter: models.MessageFilter{SenderID: f.bob.ID},
	})
	require.NoError(t, err)
	require.Equal(t, 1, page.Count)
	assert.Equal(t, "two", page.Results[0].Body)

	day, err := models.ParseDate("2024-03-11")
	require.NoError(t, err)
	page, err = f.svc.ListMessages(ctx, f.bob, &models.ListMessagesRequest{
		Filter: models.MessageFilter{StartDate: day, EndDate: day},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, page.Count)

	page, err = f.svc.ListMessages(ctx, f.bob, &models.ListMessagesRequest{
		Filter: models.MessageFilter{ConversationID: bc.ID},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Count)

	start, _ := models.ParseDate("2024-03-12")
	_, err = f.svc.ListMessages(ctx, f.bob, &models.ListMessagesRequest{
		Filter: models.MessageFilter{StartDate: start, EndDate: day},
	})
	assertServiceError(t, err, http.StatusBadRequest)
}

func TestService_UpdateMessage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	conv := f.conversation(t, f.alice, f.bob)
	msg := f.send(t, f.alice, conv, "draft")

	f.clock.Advance(5 * time.Minute)
	updated, err := f.svc.UpdateMessage(ctx, f.alice, msg.ID, &models.UpdateMessageRequest{Body: "final"})
	require.NoError(t, err)
	assert.Equal(t, "final", updated.Body)
	require.NotNil(t, updated.EditedAt)
	assert.True(t, testEpoch.Add(5*time.Minute).Equal(*updated.EditedAt))

	got, err := f.svc.GetMessage(ctx, f.bob, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, "final", got.Body)

	_, err = f.svc.UpdateMessage(ctx, f.bob, msg.ID, &models.UpdateMessageRequest{Body: "hijack"})
	assertServiceError(t, err, http.StatusForbidden)

	_, err = f.svc.UpdateMessage(ctx, f.carol, msg.ID, &models.UpdateMessageRequest{Body: "hijack"})
	assertServiceError(t, err, http.StatusNotFound)

	_, err = f.svc.UpdateMessage(ctx, f.alice, msg.ID, &models.UpdateMessageRequest{Body: ""})
	assertServiceError(t, err, http.StatusBadRequest)
}

func TestService_DeleteMessage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	conv := f.conversation(t, f.alice, f.bob)
	msg := f.send(t, f.alice, conv, "bye")

	assertServiceError(t, f.svc.DeleteMessage(ctx, f.bob, msg.ID), http.StatusForbidden)
	assertServiceError(t, f.svc.DeleteMessage(ctx, f.carol, msg.ID), http.StatusNotFound)

	require.NoError(t, f.svc.DeleteMessage(ctx, f.alice, msg.ID))

	_, err := f.svc.GetMessage(ctx, f.alice, msg.ID)
	assertServiceError(t, err, http.StatusNotFound)
	assertServiceError(t, f.svc.DeleteMessage(ctx, f.alice, msg.ID), http.StatusNotFound)
}

func TestServiceError(t *testing.T) {
	cause := errors.New("disk on fire")
	err := NewInternalError("failed to save", cause)
	assert.Equal(t, "failed to save: disk on fire", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, models.ErrorCodeInternalError, err.Code)

	nf := NewMessageNotFoundError("m1")
	assert.Equal(t, "message 'm1' not found", nf.Error())
	assert.Nil(t, nf.Unwrap())
}
