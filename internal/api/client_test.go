package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adi-253/Talkie/chatsync/internal/config"
	"github.com/adi-253/Talkie/chatsync/internal/handlers"
	"github.com/adi-253/Talkie/chatsync/internal/models"
	"github.com/adi-253/Talkie/chatsync/internal/services"
)

func testConfig(baseURL, viewer string) *config.Config {
	cfg := config.DefaultConfig()
	cfg.API.BaseURL = baseURL
	cfg.API.PageSize = 2
	cfg.API.RateLimit = 1000
	cfg.API.RateBurst = 1000
	cfg.Chat.ViewerID = viewer
	return cfg
}

func newDevserver(t *testing.T) (*httptest.Server, *services.MessageService) {
	t.Helper()
	svc := services.NewMessageService()
	srv := httptest.NewServer(handlers.NewRouter(svc, nil))
	t.Cleanup(srv.Close)
	return srv, svc
}

func TestClient_SendAndFetchHistory(t *testing.T) {
	srv, _ := newDevserver(t)
	alice := NewClient(testConfig(srv.URL, "alice"))
	bob := NewClient(testConfig(srv.URL, "bob"))
	ctx := context.Background()

	require.NoError(t, alice.Health(ctx))

	var sent []*models.Message
	for i := 0; i < 5; i++ {
		client := alice
		receiver := "bob"
		if i%2 == 1 {
			client, receiver = bob, "alice"
		}
		msg, err := client.SendMessage(ctx, receiver, fmt.Sprintf("message %d", i))
		require.NoError(t, err)
		sent = append(sent, msg)
	}
	assert.Equal(t, "bob", sent[1].SenderID)

	// Page size is 2, so the history spans three pages.
	history, err := alice.FetchMessages(ctx, models.ConversationID("alice", "bob"), nil)
	require.NoError(t, err)
	require.Len(t, history, 5)
	for i, msg := range history {
		assert.Equal(t, sent[i].ID, msg.ID)
	}
}

func TestClient_FetchSinceIsInclusive(t *testing.T) {
	srv, svc := newDevserver(t)
	client := NewClient(testConfig(srv.URL, "alice"))

	first := svc.SendMessage("alice", models.SendMessageRequest{ReceiverID: "bob", Body: "one"})
	second := svc.SendMessage("bob", models.SendMessageRequest{ReceiverID: "alice", Body: "two"})

	delta, err := client.FetchMessages(context.Background(), "alice--bob", &second.CreatedAt)
	require.NoError(t, err)
	require.Len(t, delta, 1)
	assert.Equal(t, second.ID, delta[0].ID)
	assert.True(t, second.CreatedAt.Equal(delta[0].CreatedAt))

	delta, err = client.FetchMessages(context.Background(), "alice--bob", &first.CreatedAt)
	require.NoError(t, err)
	assert.Len(t, delta, 2)
}

func TestClient_SendsIdentityHeaders(t *testing.T) {
	var got http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"messages":[]}`)
	}))
	t.Cleanup(srv.Close)

	cfg := testConfig(srv.URL, "alice")
	cfg.API.Token = "secret"
	_, err := NewClient(cfg).FetchMessages(context.Background(), "alice--bob", nil)
	require.NoError(t, err)

	assert.Equal(t, "alice", got.Get("X-User-ID"))
	assert.Equal(t, "Bearer secret", got.Get("Authorization"))
	assert.NotEmpty(t, got.Get("X-Request-ID"))
}

func TestClient_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "database on fire", http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	_, err := NewClient(testConfig(srv.URL, "alice")).FetchMessages(context.Background(), "alice--bob", nil)
	require.Error(t, err)

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusServiceUnavailable, statusErr.StatusCode)
	assert.Equal(t, "database on fire", statusErr.Body)
}

func TestClient_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `not json`)
	}))
	t.Cleanup(srv.Close)

	_, err := NewClient(testConfig(srv.URL, "alice")).FetchMessages(context.Background(), "alice--bob", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse messages")
}

func TestClient_RespectsContextDeadline(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(func() {
		close(release)
		srv.Close()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	since := time.Now()
	_, err := NewClient(testConfig(srv.URL, "alice")).FetchMessages(ctx, "alice--bob", &since)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestClient_RunawayCursorIsBounded(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		fmt.Fprint(w, `{"messages":[],"next_cursor":"again"}`)
	}))
	t.Cleanup(srv.Close)

	_, err := NewClient(testConfig(srv.URL, "alice")).FetchMessages(context.Background(), "alice--bob", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds")
	assert.Equal(t, maxHistoryPages, calls)
}

func TestClient_LongHistoryPagesUnderLimiter(t *testing.T) {
	srv, svc := newDevserver(t)
	for i := 0; i < 40; i++ {
		svc.SendMessage("bob", models.SendMessageRequest{ReceiverID: "alice", Body: fmt.Sprintf("message %d", i)})
	}

	cfg := testConfig(srv.URL, "alice")
	cfg.API.PageSize = 1
	cfg.API.RateLimit = 100
	cfg.API.RateBurst = 1
	// The whole load takes several times longer than one request may.
	cfg.API.RequestTimeout = config.Duration{Duration: 100 * time.Millisecond}

	start := time.Now()
	msgs, err := NewClient(cfg).FetchMessages(context.Background(), "alice--bob", nil)
	require.NoError(t, err)
	assert.Len(t, msgs, 40)
	assert.Greater(t, time.Since(start), cfg.API.RequestTimeout.Duration)
}

func TestClient_RequestTimeoutAppliesPerRequest(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(func() {
		close(release)
		srv.Close()
	})

	cfg := testConfig(srv.URL, "alice")
	cfg.API.RequestTimeout = config.Duration{Duration: 30 * time.Millisecond}

	since := time.Now()
	_, err := NewClient(cfg).FetchMessages(context.Background(), "alice--bob", &since)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
