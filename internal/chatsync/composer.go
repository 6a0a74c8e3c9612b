package chatsync

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/adi-253/Talkie/chatsync/internal/models"
)

var (
	// ErrEmptyBody is returned when a message has no visible content.
	ErrEmptyBody = errors.New("message body is empty")
	// ErrNoReceiver is returned when the conversation has no peer to send to.
	ErrNoReceiver = errors.New("receiver is required")
)

// MessageSender delivers a message to the backend.
type MessageSender interface {
	SendMessage(ctx context.Context, receiverID, body string) (*models.Message, error)
}

// ChangeNotifier is told when the conversation changed outside the sync loop.
type ChangeNotifier interface {
	NotifyExternalChange()
}

// Composer sends messages and then asks the controller to resync instead of
// inserting a local echo, so ordering and dedup stay in one place.
type Composer struct {
	sender   MessageSender
	notifier ChangeNotifier
	logger   zerolog.Logger
}

// NewComposer creates a composer that sends through sender and notifies notifier.
func NewComposer(sender MessageSender, notifier ChangeNotifier) *Composer {
	return &Composer{
		sender:   sender,
		notifier: notifier,
		logger:   log.With().Str("component", "composer").Logger(),
	}
}

// Send delivers body to receiverID. The body is sent as typed; only a body
// made entirely of whitespace is rejected.
func (c *Composer) Send(ctx context.Context, receiverID, body string) error {
	if strings.TrimSpace(body) == "" {
		return ErrEmptyBody
	}
	if receiverID == "" {
		return ErrNoReceiver
	}

	msg, err := c.sender.SendMessage(ctx, receiverID, body)
	if err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	if msg != nil {
		c.logger.Debug().Str("message", msg.ID).Str("receiver", receiverID).Msg("Message sent")
	}

	c.notifier.NotifyExternalChange()
	return nil
}
