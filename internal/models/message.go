package models

import "time"

// Message is a single chat message in a conversation.
// It is the unit the sync client dedups and orders.
type Message struct {
	// ID is the unique identifier for this message, stable across fetches
	ID string `json:"id"`

	// ConversationID is the conversation this message belongs to
	ConversationID string `json:"conversation_id,omitempty"`

	// SenderID is the author's user ID
	SenderID string `json:"sender_id"`

	// Body is the plain-text content, rendered literally
	Body string `json:"body"`

	// CreatedAt is when the backend accepted the message
	CreatedAt time.Time `json:"created_at"`
}

// SendMessageRequest is the request body for sending a message
type SendMessageRequest struct {
	ReceiverID string `json:"receiver_id"`
	Body       string `json:"body"`
}

// GetMessagesResponse is the response for fetching messages.
// NextCursor is set when more history pages are available.
type GetMessagesResponse struct {
	Messages   []Message `json:"messages"`
	NextCursor string    `json:"next_cursor,omitempty"`
}
