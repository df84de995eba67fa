package chat

import (
	"context"

	"chatgate/internal/models"
)

// ServiceInterface defines the interface for chat service operations.
// Every operation acts on behalf of caller, who must be a stored user.
type ServiceInterface interface {
	// CreateConversation starts a conversation between the caller and the requested participants
	CreateConversation(ctx context.Context, caller *models.User, req *models.CreateConversationRequest) (*models.Conversation, error)

	// ListConversations returns a page of the caller's conversations
	ListConversations(ctx context.Context, caller *models.User, req *models.ListConversationsRequest) (*models.PageResponse[*models.Conversation], error)

	// GetConversation returns a conversation the caller takes part in
	GetConversation(ctx context.Context, caller *models.User, id string) (*models.Conversation, error)

	// SendMessage posts a message from the caller
	SendMessage(ctx context.Context, caller *models.User, req *models.SendMessageRequest) (*models.Message, error)

	// ListMessages returns a page of the messages visible to the caller
	ListMessages(ctx context.Context, caller *models.User, req *models.ListMessagesRequest) (*models.PageResponse[*models.Message], error)

	// GetMessage returns a message visible to the caller
	GetMessage(ctx context.Context, caller *models.User, id string) (*models.Message, error)

	// UpdateMessage edits a message sent by the caller
	UpdateMessage(ctx context.Context, caller *models.User, id string, req *models.UpdateMessageRequest) (*models.Message, error)

	// DeleteMessage removes a message sent by the caller
	DeleteMessage(ctx context.Context, caller *models.User, id string) error
}

// Ensure Service implements ServiceInterface
var _ ServiceInterface = (*Service)(nil)
