// Package api is the HTTP client for the Talkie message backend.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/adi-253/Talkie/chatsync/internal/config"
	"github.com/adi-253/Talkie/chatsync/internal/models"
)

// maxHistoryPages stops a misbehaving backend that never exhausts its cursor.
const maxHistoryPages = 1000

// StatusError is returned for non-2xx responses.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("backend error (status %d): %s", e.StatusCode, e.Body)
}

// Client talks to the REST backend on behalf of one user.
type Client struct {
	baseURL    string
	token      string
	userID     string
	pageSize   int
	timeout    time.Duration
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewClient creates a client for the configured backend acting as the
// configured viewer.
func NewClient(cfg *config.Config) *Client {
	return &Client{
		baseURL:    strings.TrimRight(cfg.API.BaseURL, "/"),
		token:      cfg.API.Token,
		userID:     cfg.Chat.ViewerID,
		pageSize:   cfg.API.PageSize,
		timeout:    cfg.API.RequestTimeout.Duration,
		httpClient: &http.Client{},
		limiter:    rate.NewLimiter(rate.Limit(cfg.API.RateLimit), cfg.API.RateBurst),
	}
}

// doRequest executes an HTTP request against the backend.
// It adds identity headers, waits on the rate limiter and maps non-2xx
// responses to *StatusError. The request timeout covers the limiter wait
// and the round trip of this one request.
func (c *Client) doRequest(ctx context.Context, method, endpoint string, body interface{}) ([]byte, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewBuffer(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.userID != "" {
		req.Header.Set("X-User-ID", c.userID)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
	}

	return respBody, nil
}

// FetchMessages returns the messages of a conversation. Without since it
// follows the backend's cursor until the whole history is loaded; with since
// it returns the messages created at or after since.
func (c *Client) FetchMessages(ctx context.Context, conversationID string, since *time.Time) ([]models.Message, error) {
	if since != nil {
		page, err := c.fetchPage(ctx, conversationID, since, "")
		if err != nil {
			return nil, err
		}
		return page.Messages, nil
	}

	var all []models.Message
	cursor := ""
	for i := 0; i < maxHistoryPages; i++ {
		page, err := c.fetchPage(ctx, conversationID, nil, cursor)
		if err != nil {
			return nil, err
		}
		all = append(all, page.Messages...)
		if page.NextCursor == "" {
			return all, nil
		}
		cursor = page.NextCursor
	}
	return nil, fmt.Errorf("history of conversation %s exceeds %d pages", conversationID, maxHistoryPages)
}

func (c *Client) fetchPage(ctx context.Context, conversationID string, since *time.Time, cursor string) (*models.GetMessagesResponse, error) {
	query := url.Values{}
	if since != nil {
		query.Set("since", since.UTC().Format(time.RFC3339Nano))
	} else {
		query.Set("limit", strconv.Itoa(c.pageSize))
		if cursor != "" {
			query.Set("cursor", cursor)
		}
	}
	endpoint := fmt.Sprintf("/api/conversations/%s/messages?%s", url.PathEscape(conversationID), query.Encode())

	respBody, err := c.doRequest(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	var page models.GetMessagesResponse
	if err := json.Unmarshal(respBody, &page); err != nil {
		return nil, fmt.Errorf("failed to parse messages: %w", err)
	}
	return &page, nil
}

// SendMessage posts body to receiverID and returns the stored message.
func (c *Client) SendMessage(ctx context.Context, receiverID, body string) (*models.Message, error) {
	req := models.SendMessageRequest{ReceiverID: receiverID, Body: body}
	respBody, err := c.doRequest(ctx, http.MethodPost, "/api/messages", req)
	if err != nil {
		return nil, err
	}

	var msg models.Message
	if err := json.Unmarshal(respBody, &msg); err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}
	return &msg, nil
}

// Health checks that the backend is reachable.
func (c *Client) Health(ctx context.Context) error {
	_, err := c.doRequest(ctx, http.MethodGet, "/health", nil)
	return err
}
