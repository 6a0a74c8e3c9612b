package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/adi-253/Talkie/chatsync/internal/models"
	"github.com/adi-253/Talkie/chatsync/internal/services"
)

const (
	defaultPageSize = 100
	maxPageSize     = 500
)

// MessageHandler contains HTTP handlers for message operations.
type MessageHandler struct {
	messageService *services.MessageService
}

// NewMessageHandler creates a new MessageHandler instance.
func NewMessageHandler(messageService *services.MessageService) *MessageHandler {
	return &MessageHandler{messageService: messageService}
}

// SendMessage handles POST /api/messages
// Stores a message from the user named in X-User-ID to the receiver.
func (h *MessageHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	senderID := r.Header.Get("X-User-ID")
	if senderID == "" {
		http.Error(w, "X-User-ID header is required", http.StatusUnauthorized)
		return
	}

	var req models.SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if req.ReceiverID == "" {
		http.Error(w, "receiver_id is required", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Body) == "" {
		http.Error(w, "body is required", http.StatusBadRequest)
		return
	}

	msg := h.messageService.SendMessage(senderID, req)
	log.Debug().
		Str("message", msg.ID).
		Str("conversation", msg.ConversationID).
		Str("sender", senderID).
		Msg("Stored message")
	writeJSON(w, http.StatusCreated, msg)
}

// GetMessages handles GET /api/conversations/{id}/messages
// Query params:
//   - since: RFC 3339 timestamp; returns messages created at or after it
//   - cursor, limit: page through full history when since is absent
func (h *MessageHandler) GetMessages(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "id")
	if conversationID == "" {
		http.Error(w, "conversation ID is required", http.StatusBadRequest)
		return
	}

	query := r.URL.Query()

	var since time.Time
	if sinceParam := query.Get("since"); sinceParam != "" {
		parsed, err := time.Parse(time.RFC3339Nano, sinceParam)
		if err != nil {
			http.Error(w, "invalid 'since' timestamp format", http.StatusBadRequest)
			return
		}
		since = parsed
	}

	limit := defaultPageSize
	if limitParam := query.Get("limit"); limitParam != "" {
		n, err := strconv.Atoi(limitParam)
		if err != nil || n <= 0 {
			http.Error(w, "invalid 'limit'", http.StatusBadRequest)
			return
		}
		limit = min(n, maxPageSize)
	}

	messages, next, err := h.messageService.GetMessages(conversationID, since, query.Get("cursor"), limit)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCursor) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, models.GetMessagesResponse{
		Messages:   messages,
		NextCursor: next,
	})
}

// writeJSON is a helper function to write JSON responses.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
