package models

import "time"

// Conversation is a direct conversation between two users.
// The backend creates it implicitly on the first message.
type Conversation struct {
	// ID is derived from the participant pair, see ConversationID
	ID string `json:"id"`

	// ParticipantIDs holds both user IDs in sorted order
	ParticipantIDs []string `json:"participant_ids"`

	// CreatedAt is when the first message was sent
	CreatedAt time.Time `json:"created_at"`

	// LastActiveAt is updated on every message.
	// Used by the cleanup service to drop abandoned conversations.
	LastActiveAt time.Time `json:"last_active_at"`
}

// ConversationID returns the ID of the direct conversation between two users.
// It does not depend on argument order.
func ConversationID(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + "--" + b
}
