package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/claude/repcoach/internal/models"
	"github.com/claude/repcoach/internal/storage"
	"github.com/google/uuid"
)

// HTTPClient implements DataSource by calling the RepCoach REST API.
// Used for remote MCP mode where the binary runs locally (stdio) but
// session data lives on the remote server (accessed over Tailscale).
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
}

// Compile-time check: HTTPClient satisfies DataSource.
var _ DataSource = (*HTTPClient)(nil)

// NewHTTPClient creates an HTTPClient targeting the given base URL.
func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// bucketToAgg maps MCP bucket values to REST API agg parameter values.
func bucketToAgg(bucket string) string {
	switch bucket {
	case "1 day":
		return "daily"
	case "1 week":
		return "weekly"
	case "1 month":
		return "monthly"
	default:
		return "daily"
	}
}

func (c *HTTPClient) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("httpclient: create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("httpclient: %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("httpclient: read body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("httpclient: %s returned %d: %s", path, resp.StatusCode, body)
	}

	return body, nil
}

func timeParams(start, end time.Time) url.Values {
	v := url.Values{}
	v.Set("start", start.Format(time.RFC3339))
	v.Set("end", end.Format(time.RFC3339))
	return v
}

func (c *HTTPClient) QuerySessions(ctx context.Context, start, end time.Time, exerciseID string) ([]models.SessionRow, error) {
	params := timeParams(start, end)
	if exerciseID != "" {
		params.Set("exercise", exerciseID)
	}

	body, err := c.get(ctx, "/api/v1/sessions", params)
	if err != nil {
		return nil, err
	}

	var sessions []models.SessionRow
	if err := json.Unmarshal(body, &sessions); err != nil {
		return nil, fmt.Errorf("httpclient: decode sessions: %w", err)
	}
	return sessions, nil
}

func (c *HTTPClient) GetSession(ctx context.Context, sessionID uuid.UUID) (*storage.SessionDetail, error) {
	body, err := c.get(ctx, "/api/v1/sessions/"+sessionID.String(), nil)
	if err != nil {
		return nil, err
	}

	var detail storage.SessionDetail
	if err := json.Unmarshal(body, &detail); err != nil {
		return nil, fmt.Errorf("httpclient: decode session detail: %w", err)
	}
	return &detail, nil
}

func (c *HTTPClient) GetScoreTrend(ctx context.Context, exerciseID string, start, end time.Time, bucket string) ([]storage.ScoreTrendPoint, error) {
	params := timeParams(start, end)
	params.Set("exercise", exerciseID)
	params.Set("agg", bucketToAgg(bucket))

	body, err := c.get(ctx, "/api/v1/stats/trend", params)
	if err != nil {
		return nil, err
	}

	var points []storage.ScoreTrendPoint
	if err := json.Unmarshal(body, &points); err != nil {
		return nil, fmt.Errorf("httpclient: decode score trend: %w", err)
	}
	return points, nil
}

func (c *HTTPClient) GetPeriodStats(ctx context.Context, exerciseID string, start, end time.Time) (*storage.PeriodStats, error) {
	params := timeParams(start, end)
	params.Set("exercise", exerciseID)

	body, err := c.get(ctx, "/api/v1/stats/period", params)
	if err != nil {
		return nil, err
	}

	var stats storage.PeriodStats
	if err := json.Unmarshal(body, &stats); err != nil {
		return nil, fmt.Errorf("httpclient: decode period stats: %w", err)
	}
	return &stats, nil
}
