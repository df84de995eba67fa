package storage

import (
	"fmt"
	"strings"
	"time"

	"chatgate/internal/models"
)

// sqlTimeLayout is a fixed-width UTC layout so that text timestamps in SQLite
// sort and compare lexically in time order.
const sqlTimeLayout = "2006-01-02T15:04:05.000000000Z"

// formatTime converts a time to its SQLite text form.
func formatTime(t time.Time) string {
	return t.UTC().Format(sqlTimeLayout)
}

// parseTime converts SQLite text back to a time.
func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(sqlTimeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse timestamp %q: %w", s, err)
	}
	return t, nil
}

// formatNullTime converts an optional time to a nullable SQLite value.
func formatNullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

// parseNullTime converts a nullable SQLite value back to an optional time.
func parseNullTime(s *string) (*time.Time, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	t, err := parseTime(*s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// placeholder renders the n-th (1-based) bind parameter for a SQL dialect.
type placeholder func(n int) string

func questionMark(int) string { return "?" }

func dollar(n int) string { return fmt.Sprintf("$%d", n) }

// messageQuery builds the SELECT for MessagesForUser. timeArg converts the
// filter's date bounds to the driver's bind type.
func messageQuery(userID string, f models.MessageFilter, ph placeholder, timeArg func(time.Time) any) (string, []any) {
	var (
		where []string
		args  []any
	)
	add := func(clause string, arg any) {
		args = append(args, arg)
		where = append(where, fmt.Sprintf(clause, ph(len(args))))
	}

	add("m.conversation_id IN (SELECT conversation_id FROM conversation_participants WHERE user_id = %s)", userID)
	if f.ConversationID != "" {
		add("m.conversation_id = %s", f.ConversationID)
	}
	if f.SenderID != "" {
		add("m.sender_id = %s", f.SenderID)
	}
	if f.ParticipantID != "" {
		add("m.conversation_id IN (SELECT conversation_id FROM conversation_participants WHERE user_id = %s)", f.ParticipantID)
	}
	if f.StartDate != nil {
		add("m.sent_at >= %s", timeArg(*f.StartDate))
	}
	if f.EndDate != nil {
		add("m.sent_at < %s", timeArg(f.EndDate.AddDate(0, 0, 1)))
	}

	query := "SELECT m.id, m.conversation_id, m.sender_id, m.message_body, m.sent_at, m.edited_at FROM messages m WHERE " +
		strings.Join(where, " AND ") +
		" ORDER BY m.sent_at, m.id"
	return query, args
}

// inClause renders "(ph1, ph2, ...)" for n parameters starting at offset+1.
func inClause(n, offset int, ph placeholder) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = ph(offset + i + 1)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}
