// Package chat implements the conversation and message operations behind the
// messaging API, including object-level permission checks.
package chat

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"

	"chatgate/internal/gate"
	"chatgate/internal/models"
	"chatgate/internal/storage"
)

// MinParticipants is the smallest conversation, creator included.
const MinParticipants = 2

// Service handles conversation and message business logic
type Service struct {
	storage storage.Storage
	clock   gate.Clock
}

// NewService creates a new chat service with the given storage backend.
// A nil clock means the system clock.
func NewService(storage storage.Storage, clock gate.Clock) *Service {
	if clock == nil {
		clock = gate.SystemClock{}
	}
	return &Service{
		storage: storage,
		clock:   clock,
	}
}

// CreateConversation starts a conversation. The caller is always a participant
// and every other participant must be an existing user.
func (s *Service) CreateConversation(ctx context.Context, caller *models.User, req *models.CreateConversationRequest) (*models.Conversation, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, NewInvalidRequestError("invalid conversation request", err)
	}

	participants := append([]string{caller.ID}, req.Participants...)
	conv := models.NewConversation(participants)
	conv.CreatedAt = s.clock.Now().UTC()

	if len(conv.Participants) < MinParticipants {
		return nil, NewInvalidRequestError("At least two participants are required for a conversation.", nil)
	}

	for _, id := range conv.Participants {
		if id == caller.ID {
			continue
		}
		if _, err := s.storage.GetUser(ctx, id); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return nil, NewInvalidRequestError(fmt.Sprintf("unknown participant '%s'", id), nil)
			}
			return nil, NewInternalError("failed to look up participant", err)
		}
	}

	if err := s.storage.CreateConversation(ctx, conv); err != nil {
		return nil, NewInternalError("failed to create conversation", err)
	}
	return conv, nil
}

// ListConversations returns a page of the caller's conversations.
func (s *Service) ListConversations(ctx context.Context, caller *models.User, req *models.ListConversationsRequest) (*models.PageResponse[*models.Conversation], error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, NewInvalidRequestError("invalid list request", err)
	}

	convs, err := s.storage.ConversationsForUser(ctx, caller.ID)
	if err != nil {
		return nil, NewInternalError("failed to list conversations", err)
	}
	if req.Ordering == "-created_at" {
		slices.Reverse(convs)
	}
	return models.NewPageResponse(convs, req.Page), nil
}

// GetConversation returns a conversation the caller takes part in. Other
// callers get a not-found error so conversation IDs are not disclosed.
func (s *Service) GetConversation(ctx context.Context, caller *models.User, id string) (*models.Conversation, error) {
	conv, err := s.loadConversation(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanAccess(caller.ID, http.MethodGet, conv, nil) {
		return nil, NewConversationNotFoundError(id)
	}
	return conv, nil
}

func (s *Service) loadConversation(ctx context.Context, id string) (*models.Conversation, error) {
	if !models.ValidID(id) {
		return nil, NewConversationNotFoundError(id)
	}
	conv, err := s.storage.GetConversation(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, NewConversationNotFoundError(id)
		}
		return nil, NewInternalError("failed to get conversation", err)
	}
	return conv, nil
}

// SendMessage posts a message from the caller to one of their conversations.
func (s *Service) SendMessage(ctx context.Context, caller *models.User, req *models.SendMessageRequest) (*models.Message, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, NewInvalidRequestError("invalid message request", err)
	}

	conv, err := s.loadConversation(ctx, req.ConversationID)
	if err != nil {
		return nil, err
	}
	if !conv.HasParticipant(caller.ID) {
		return nil, NewForbiddenError("You are not a participant of this conversation.")
	}

	msg := models.NewMessage(conv.ID, caller.ID, req.Body)
	msg.SentAt = s.clock.Now().UTC()
	if err := s.storage.CreateMessage(ctx, msg); err != nil {
		return nil, NewInternalError("failed to send message", err)
	}
	return msg, nil
}

// ListMessages returns a page of the messages in the caller's conversations.
func (s *Service) ListMessages(ctx context.Context, caller *models.User, req *models.ListMessagesRequest) (*models.PageResponse[*models.Message], error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, NewInvalidRequestError("invalid list request", err)
	}

	msgs, err := s.storage.MessagesForUser(ctx, caller.ID, req.Filter)
	if err != nil {
		return nil, NewInternalError("failed to list messages", err)
	}
	return models.NewPageResponse(msgs, req.Page), nil
}

// GetMessage returns a message visible to the caller.
func (s *Service) GetMessage(ctx context.Context, caller *models.User, id string) (*models.Message, error) {
	msg, _, err := s.authorizeMessage(ctx, caller, http.MethodGet, id)
	return msg, err
}

// UpdateMessage replaces the body of a message sent by the caller.
func (s *Service) UpdateMessage(ctx context.Context, caller *models.User, id string, req *models.UpdateMessageRequest) (*models.Message, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, NewInvalidRequestError("invalid message update", err)
	}

	msg, _, err := s.authorizeMessage(ctx, caller, http.MethodPatch, id)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now().UTC()
	msg.Body = req.Body
	msg.EditedAt = &now
	if err := s.storage.UpdateMessage(ctx, msg); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, NewMessageNotFoundError(id)
		}
		return nil, NewInternalError("failed to update message", err)
	}
	return msg, nil
}

// DeleteMessage removes a message sent by the caller.
func (s *Service) DeleteMessage(ctx context.Context, caller *models.User, id string) error {
	if _, _, err := s.authorizeMessage(ctx, caller, http.MethodDelete, id); err != nil {
		return err
	}
	if err := s.storage.DeleteMessage(ctx, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return NewMessageNotFoundError(id)
		}
		return NewInternalError("failed to delete message", err)
	}
	return nil
}

// authorizeMessage loads a message and its conversation and applies the
// object permission for method. Messages outside the caller's conversations
// are reported as not found.
func (s *Service) authorizeMessage(ctx context.Context, caller *models.User, method, id string) (*models.Message, *models.Conversation, error) {
	if !models.ValidID(id) {
		return nil, nil, NewMessageNotFoundError(id)
	}
	msg, err := s.storage.GetMessage(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil, NewMessageNotFoundError(id)
		}
		return nil, nil, NewInternalError("failed to get message", err)
	}

	conv, err := s.storage.GetConversation(ctx, msg.InConversation())
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, nil, NewInternalError("failed to get conversation", err)
	}

	var participants HasParticipants
	if conv != nil {
		participants = conv
	}
	if !CanAccess(caller.ID, http.MethodGet, msg, participants) {
		return nil, nil, NewMessageNotFoundError(id)
	}
	if !CanAccess(caller.ID, method, msg, participants) {
		return nil, nil, NewForbiddenError("only the sender may modify this message")
	}
	return msg, conv, nil
}
