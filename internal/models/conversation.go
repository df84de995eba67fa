package models

import (
	"slices"
	"time"
)

// Conversation is a set of users exchanging messages.
type Conversation struct {
	ID           string    `json:"id"`
	Participants []string  `json:"participants"`
	CreatedAt    time.Time `json:"created_at"`
}

// NewConversation creates a conversation between the given user IDs.
// Duplicate IDs are collapsed, preserving first occurrence order.
func NewConversation(participants []string) *Conversation {
	return &Conversation{
		ID:           NewID(),
		Participants: uniqueIDs(participants),
		CreatedAt:    time.Now().UTC(),
	}
}

// ParticipantIDs returns the conversation's participants.
func (c *Conversation) ParticipantIDs() []string { return c.Participants }

// HasParticipant reports whether userID takes part in the conversation.
func (c *Conversation) HasParticipant(userID string) bool {
	return slices.Contains(c.Participants, userID)
}

// Message is a single message sent to a conversation.
type Message struct {
	ID             string     `json:"id"`
	ConversationID string     `json:"conversation_id"`
	SenderID       string     `json:"sender_id"`
	Body           string     `json:"message_body"`
	SentAt         time.Time  `json:"sent_at"`
	EditedAt       *time.Time `json:"edited_at,omitempty"`
}

// NewMessage creates a message from senderID to conversationID.
func NewMessage(conversationID, senderID, body string) *Message {
	return &Message{
		ID:             NewID(),
		ConversationID: conversationID,
		SenderID:       senderID,
		Body:           body,
		SentAt:         time.Now().UTC(),
	}
}

// Sender returns the sending user's ID.
func (m *Message) Sender() string { return m.SenderID }

// InConversation returns the ID of the conversation the message belongs to.
func (m *Message) InConversation() string { return m.ConversationID }

func uniqueIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
