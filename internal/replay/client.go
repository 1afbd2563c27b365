package replay

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/claude/repcoach/internal/engine"
	"github.com/claude/repcoach/internal/feedback"
	"github.com/google/uuid"
)

// ImportPayload is the body POSTed to the server's import endpoint: a
// finished session evaluated offline.
type ImportPayload struct {
	SessionID uuid.UUID            `json:"session_id"`
	StartedAt time.Time            `json:"started_at"`
	Result    engine.SessionResult `json:"result"`
	Feedback  []feedback.Event     `json:"feedback,omitempty"`
}

// Client sends evaluated sessions to the RepCoach server over HTTP.
type Client struct {
	serverURL  string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a new HTTP client for the RepCoach server.
func NewClient(serverURL, apiKey string) *Client {
	return &Client{
		serverURL: serverURL,
		apiKey:    apiKey,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// SendSession POSTs an evaluated session to the server's import
// endpoint. Retries up to 3 times with exponential backoff on failure.
// The server dedups by session id, so a retry after a half-received
// response cannot double-store.
func (c *Client) SendSession(payload ImportPayload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling session: %w", err)
	}

	var lastErr error
	for attempt := range 3 {
		if attempt > 0 {
			time.Sleep(time.Duration(1<<uint(attempt-1)) * time.Second)
		}

		req, err := http.NewRequest(http.MethodPost, c.serverURL+"/api/v1/sessions/import", bytes.NewReader(data))
		if err != nil {
			return fmt.Errorf("creating import request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-API-Key", c.apiKey)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode == http.StatusOK {
			return nil
		}
		lastErr = fmt.Errorf("import failed (status %d): %s", resp.StatusCode, body)
	}

	return fmt.Errorf("after 3 attempts: %w", lastErr)
}
