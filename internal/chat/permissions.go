package chat

import (
	"net/http"
	"slices"
)

// Capability interfaces for object-level permission checks. A value is
// checked by which of these it satisfies, not by its concrete type.
type (
	// HasSender is satisfied by objects authored by a single user.
	HasSender interface {
		Sender() string
	}

	// HasParticipants is satisfied by objects shared by a set of users.
	HasParticipants interface {
		ParticipantIDs() []string
	}

	// HasConversation is satisfied by objects that belong to a conversation.
	HasConversation interface {
		InConversation() string
	}
)

// IsSafeMethod reports whether method only reads.
func IsSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}

// CanAccess decides whether userID may apply method to obj. conv holds the
// participants of the conversation obj belongs to, when it belongs to one.
//
// Reads are allowed to the sender and to participants of the object or of its
// conversation. PUT, PATCH and DELETE are allowed to the sender of an authored
// object, and to participants of an object without a sender.
func CanAccess(userID, method string, obj any, conv HasParticipants) bool {
	if userID == "" {
		return false
	}

	sender, authored := obj.(HasSender)
	isSender := authored && sender.Sender() == userID

	switch {
	case IsSafeMethod(method):
		if isSender {
			return true
		}
		if _, ok := obj.(HasConversation); ok && conv != nil && participates(conv, userID) {
			return true
		}
		if p, ok := obj.(HasParticipants); ok && participates(p, userID) {
			return true
		}
		return false
	case method == http.MethodPut || method == http.MethodPatch || method == http.MethodDelete:
		if authored {
			return isSender
		}
		if p, ok := obj.(HasParticipants); ok {
			return participates(p, userID)
		}
		return false
	}
	return false
}

func participates(p HasParticipants, userID string) bool {
	return slices.Contains(p.ParticipantIDs(), userID)
}
