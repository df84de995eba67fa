// Package models - API request types and input validation.
// This file defines the incoming API request structures.
//
// Validation Philosophy:
// - Fail fast with clear error messages for invalid input
// - Normalize input data for consistent processing (trimmed strings, defaulted paging)
// - Separate validation from normalization for clear error reporting
package models

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// Paging defaults for list endpoints.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
	DateLayout      = "2006-01-02"
	MaxMessageBytes = 10_000
)

// CreateConversationRequest starts a conversation. The caller is always added
// as a participant.
type CreateConversationRequest struct {
	Participants []string `json:"participants"`
}

func (r *CreateConversationRequest) Normalize() {
	for i, p := range r.Participants {
		r.Participants[i] = strings.TrimSpace(p)
	}
}

func (r *CreateConversationRequest) Validate() error {
	if len(r.Participants) == 0 {
		return errors.New("participants list is required")
	}
	for _, p := range r.Participants {
		if !ValidID(p) {
			return fmt.Errorf("invalid participant id: %q", p)
		}
	}
	return nil
}

// SendMessageRequest posts a message to a conversation.
type SendMessageRequest struct {
	ConversationID string `json:"conversation_id"`
	Body           string `json:"message_body"`
}

func (r *SendMessageRequest) Normalize() {
	r.ConversationID = strings.TrimSpace(r.ConversationID)
	r.Body = strings.TrimSpace(r.Body)
}

func (r *SendMessageRequest) Validate() error {
	if r.ConversationID == "" || r.Body == "" {
		return errors.New("conversation_id and message_body are required")
	}
	if !ValidID(r.ConversationID) {
		return fmt.Errorf("invalid conversation id: %q", r.ConversationID)
	}
	if len(r.Body) > MaxMessageBytes {
		return fmt.Errorf("message_body exceeds %d bytes", MaxMessageBytes)
	}
	return nil
}

// UpdateMessageRequest replaces a message body.
type UpdateMessageRequest struct {
	Body string `json:"message_body"`
}

func (r *UpdateMessageRequest) Normalize() {
	r.Body = strings.TrimSpace(r.Body)
}

func (r *UpdateMessageRequest) Validate() error {
	if r.Body == "" {
		return errors.New("message_body is required")
	}
	if len(r.Body) > MaxMessageBytes {
		return fmt.Errorf("message_body exceeds %d bytes", MaxMessageBytes)
	}
	return nil
}

// Page selects a slice of a result list. Page is 1-based.
type Page struct {
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
}

func (p *Page) Normalize() {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize <= 0 {
		p.PageSize = DefaultPageSize
	}
	if p.PageSize > MaxPageSize {
		p.PageSize = MaxPageSize
	}
}

// Validate rejects pages whose offset does not fit in an int.
func (p Page) Validate() error {
	if p.PageSize > 0 && p.Page-1 > math.MaxInt/p.PageSize {
		return fmt.Errorf("page %d is out of range", p.Page)
	}
	return nil
}

// Offset returns the number of items before the page. It saturates at
// math.MaxInt rather than wrapping.
func (p Page) Offset() int {
	if p.Page <= 1 || p.PageSize <= 0 {
		return 0
	}
	if p.Page-1 > math.MaxInt/p.PageSize {
		return math.MaxInt
	}
	return (p.Page - 1) * p.PageSize
}

// ListConversationsRequest lists the caller's conversations.
type ListConversationsRequest struct {
	Page
	// Ordering is "created_at" (oldest first) or "-created_at" (newest first).
	Ordering string `json:"ordering,omitempty"`
}

func (r *ListConversationsRequest) Normalize() {
	r.Page.Normalize()
	r.Ordering = strings.TrimSpace(r.Ordering)
	if r.Ordering == "" {
		r.Ordering = "-created_at"
	}
}

func (r *ListConversationsRequest) Validate() error {
	if err := r.Page.Validate(); err != nil {
		return err
	}
	if r.Ordering != "created_at" && r.Ordering != "-created_at" {
		return fmt.Errorf("invalid ordering: %q", r.Ordering)
	}
	return nil
}

// MessageFilter narrows a message listing. Zero fields do not filter.
// Dates are inclusive calendar days in UTC.
type MessageFilter struct {
	ConversationID string     `json:"conversation,omitempty"`
	SenderID       string     `json:"sender,omitempty"`
	ParticipantID  string     `json:"participant,omitempty"`
	StartDate      *time.Time `json:"start_date,omitempty"`
	EndDate        *time.Time `json:"end_date,omitempty"`
}

// Matches reports whether m in conv passes the filter.
func (f MessageFilter) Matches(m *Message, conv *Conversation) bool {
	if f.ConversationID != "" && m.ConversationID != f.ConversationID {
		return false
	}
	if f.SenderID != "" && m.SenderID != f.SenderID {
		return false
	}
	if f.ParticipantID != "" && (conv == nil || !conv.HasParticipant(f.ParticipantID)) {
		return false
	}
	if f.StartDate != nil && m.SentAt.Before(*f.StartDate) {
		return false
	}
	if f.EndDate != nil && !m.SentAt.Before(f.EndDate.AddDate(0, 0, 1)) {
		return false
	}
	return true
}

// ListMessagesRequest lists messages visible to the caller.
type ListMessagesRequest struct {
	Page
	Filter MessageFilter `json:"filter"`
}

func (r *ListMessagesRequest) Normalize() {
	r.Page.Normalize()
}

func (r *ListMessagesRequest) Validate() error {
	if err := r.Page.Validate(); err != nil {
		return err
	}
	f := r.Filter
	for name, id := range map[string]string{"conversation": f.ConversationID, "sender": f.SenderID, "participant": f.ParticipantID} {
		if id != "" && !ValidID(id) {
			return fmt.Errorf("invalid %s id: %q", name, id)
		}
	}
	if f.StartDate != nil && f.EndDate != nil && f.EndDate.Before(*f.StartDate) {
		return errors.New("end_date is before start_date")
	}
	return nil
}

// ParseDate parses a YYYY-MM-DD date as midnight UTC.
func ParseDate(s string) (*time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("invalid date %q: want YYYY-MM-DD", s)
	}
	return &t, nil
}
