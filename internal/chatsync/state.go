package chatsync

import (
	"time"

	"github.com/adi-253/Talkie/chatsync/internal/models"
)

// LoadingState is the lifecycle state of the active conversation session.
type LoadingState int

const (
	// StateIdle means no conversation is selected.
	StateIdle LoadingState = iota
	// StateInitialLoading means the first bulk load is in flight.
	StateInitialLoading
	// StateReady means the history has loaded at least once.
	StateReady
	// StateError means the initial load failed; Retry starts it again.
	StateError
)

func (s LoadingState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateInitialLoading:
		return "initial_loading"
	case StateReady:
		return "ready"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Snapshot is the state a host UI renders. Messages is a private copy.
type Snapshot struct {
	ConversationID string
	Messages       []models.Message
	// Anchor is the CreatedAt of the newest known message; nil before any
	// message has been loaded.
	Anchor        *time.Time
	LoadingState  LoadingState
	Err           string
	PollingActive bool
	// Version increases every time the controller publishes a change.
	Version uint64
}
