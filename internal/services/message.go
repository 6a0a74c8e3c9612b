package services

import (
	"errors"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/adi-253/Talkie/chatsync/internal/models"
)

// ErrInvalidCursor is returned when a history cursor cannot be parsed.
var ErrInvalidCursor = errors.New("invalid cursor")

// MessageService handles message storage and retrieval.
// Uses in-memory storage; conversations are created on their first message
// and dropped by the cleanup service once inactive.
type MessageService struct {
	// conversations stores messages per conversation: conversationID -> log
	conversations map[string]*conversationLog
	mu            sync.RWMutex
	now           func() time.Time
}

type conversationLog struct {
	info     models.Conversation
	messages []models.Message
}

// Message is an internal representation matching the model
type Message = models.Message

// NewMessageService creates a new MessageService instance
func NewMessageService() *MessageService {
	return NewMessageServiceWithClock(time.Now)
}

// NewMessageServiceWithClock creates a MessageService that timestamps
// messages with now.
func NewMessageServiceWithClock(now func() time.Time) *MessageService {
	return &MessageService{
		conversations: make(map[string]*conversationLog),
		now:           now,
	}
}

// SendMessage stores a message from senderID to req.ReceiverID, creating
// the conversation if needed. CreatedAt strictly increases per conversation.
func (s *MessageService) SendMessage(senderID string, req models.SendMessageRequest) *Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	id := models.ConversationID(senderID, req.ReceiverID)

	conv, ok := s.conversations[id]
	if !ok {
		participants := []string{senderID, req.ReceiverID}
		slices.Sort(participants)
		conv = &conversationLog{
			info: models.Conversation{
				ID:             id,
				ParticipantIDs: participants,
				CreatedAt:      now,
			},
		}
		s.conversations[id] = conv
	}

	if n := len(conv.messages); n > 0 {
		if last := conv.messages[n-1].CreatedAt; !now.After(last) {
			now = last.Add(time.Microsecond)
		}
	}

	msg := Message{
		ID:             uuid.New().String(),
		ConversationID: id,
		SenderID:       senderID,
		Body:           req.Body,
		CreatedAt:      now,
	}

	conv.messages = append(conv.messages, msg)
	conv.info.LastActiveAt = now
	return &msg
}

// GetMessages returns messages of a conversation.
// With a non-zero since it returns every message created at or after since.
// Otherwise it returns one page of history starting at cursor, plus the
// cursor of the next page or "" when the history is exhausted.
func (s *MessageService) GetMessages(conversationID string, since time.Time, cursor string, limit int) ([]Message, string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var all []Message
	if conv := s.conversations[conversationID]; conv != nil {
		all = conv.messages
	}

	if !since.IsZero() {
		filtered := []Message{}
		for _, msg := range all {
			if !msg.CreatedAt.Before(since) {
				filtered = append(filtered, msg)
			}
		}
		return filtered, "", nil
	}

	offset := 0
	if cursor != "" {
		n, err := strconv.Atoi(cursor)
		if err != nil || n < 0 {
			return nil, "", ErrInvalidCursor
		}
		offset = n
	}
	if offset > len(all) {
		offset = len(all)
	}

	end := len(all)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}

	page := make([]Message, end-offset)
	copy(page, all[offset:end])

	next := ""
	if end < len(all) {
		next = strconv.Itoa(end)
	}
	return page, next, nil
}

// Conversation returns the metadata of a conversation.
func (s *MessageService) Conversation(conversationID string) (models.Conversation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	conv, ok := s.conversations[conversationID]
	if !ok {
		return models.Conversation{}, false
	}
	return conv.info, true
}

// InactiveConversations returns conversations with no message since threshold.
func (s *MessageService) InactiveConversations(threshold time.Time) []models.Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var inactive []models.Conversation
	for _, conv := range s.conversations {
		if conv.info.LastActiveAt.Before(threshold) {
			inactive = append(inactive, conv.info)
		}
	}
	return inactive
}

// DeleteConversation removes a conversation and all its messages
func (s *MessageService) DeleteConversation(conversationID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv := s.conversations[conversationID]
	delete(s.conversations, conversationID)
	if conv != nil && len(conv.messages) > 0 {
		log.Debug().Str("conversation", conversationID).Int("messages", len(conv.messages)).Msg("Deleted conversation")
	}
}

// GetMessageCount returns the number of messages in a conversation (for debugging)
func (s *MessageService) GetMessageCount(conversationID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if conv := s.conversations[conversationID]; conv != nil {
		return len(conv.messages)
	}
	return 0
}
