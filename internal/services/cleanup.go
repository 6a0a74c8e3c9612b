package services

import (
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// CleanupService handles automatic deletion of inactive conversations.
// It runs as a background goroutine and periodically checks for stale ones.
type CleanupService struct {
	messages  *MessageService
	interval  time.Duration
	retention time.Duration
	now       func() time.Time
	stopChan  chan struct{}
	logger    zerolog.Logger
}

// NewCleanupService creates a new cleanup service.
// - interval: how often to check for inactive conversations (e.g., 1 minute)
// - retention: how long a conversation may stay silent before deletion
func NewCleanupService(messages *MessageService, interval, retention time.Duration) *CleanupService {
	return &CleanupService{
		messages:  messages,
		interval:  interval,
		retention: retention,
		now:       time.Now,
		stopChan:  make(chan struct{}),
		logger:    log.With().Str("component", "cleanup").Logger(),
	}
}

// Start begins the background cleanup worker.
// This method blocks and should be called with 'go'.
func (s *CleanupService) Start() {
	s.logger.Info().Dur("interval", s.interval).Dur("retention", s.retention).Msg("Cleanup service started")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.cleanup()
		case <-s.stopChan:
			s.logger.Info().Msg("Cleanup service stopped")
			return
		}
	}
}

// Stop gracefully shuts down the cleanup service.
func (s *CleanupService) Stop() {
	close(s.stopChan)
}

// cleanup deletes every conversation that has been silent past the retention window.
// It returns the number of deleted conversations.
func (s *CleanupService) cleanup() int {
	threshold := s.now().UTC().Add(-s.retention)

	inactive := s.messages.InactiveConversations(threshold)
	if len(inactive) == 0 {
		return 0
	}

	s.logger.Info().Int("count", len(inactive)).Msg("Cleaning up inactive conversations")
	for _, conv := range inactive {
		s.messages.DeleteConversation(conv.ID)
		s.logger.Debug().Str("conversation", conv.ID).Time("last_active_at", conv.LastActiveAt).Msg("Deleted inactive conversation")
	}
	return len(inactive)
}
