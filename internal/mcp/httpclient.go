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

	"github.com/google/uuid"
	"github.com/meltforce/fretlog/internal/models"
)

// HTTPClient implements DataSource by calling the FretLog REST API. Used when
// the MCP binary runs apart from the server that owns the data.
type HTTPClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewHTTPClient creates an HTTPClient targeting the given base URL. apiKey
// may be empty when the server runs without authentication.
func NewHTTPClient(baseURL, apiKey string) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
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
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
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

func (c *HTTPClient) getJSON(ctx context.Context, path string, params url.Values, what string, v any) error {
	body, err := c.get(ctx, path, params)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("httpclient: decode %s: %w", what, err)
	}
	return nil
}

func (c *HTTPClient) Overview(ctx context.Context) ([]models.ExerciseOverview, error) {
	var out []models.ExerciseOverview
	if err := c.getJSON(ctx, "/api/v1/exercises", nil, "exercises", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *HTTPClient) ExerciseStats(ctx context.Context, id uuid.UUID) (models.ExerciseStats, error) {
	var out models.ExerciseStats
	if err := c.getJSON(ctx, "/api/v1/exercises/"+id.String()+"/stats", nil, "exercise stats", &out); err != nil {
		return models.ExerciseStats{}, err
	}
	return out, nil
}

func (c *HTTPClient) Chart(ctx context.Context, id uuid.UUID) ([]models.ChartPoint, error) {
	var out []models.ChartPoint
	if err := c.getJSON(ctx, "/api/v1/exercises/"+id.String()+"/chart", nil, "chart", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *HTTPClient) DailySummary(ctx context.Context, date time.Time) (models.DailySummary, error) {
	params := url.Values{}
	params.Set("date", date.Format("2006-01-02"))

	var out models.DailySummary
	if err := c.getJSON(ctx, "/api/v1/summary/daily", params, "daily summary", &out); err != nil {
		return models.DailySummary{}, err
	}
	return out, nil
}

func (c *HTTPClient) Inactive(ctx context.Context) ([]models.Exercise, error) {
	var resp struct {
		Exercises []models.Exercise `json:"exercises"`
	}
	if err := c.getJSON(ctx, "/api/v1/inactive", nil, "inactive exercises", &resp); err != nil {
		return nil, err
	}
	return resp.Exercises, nil
}

func (c *HTTPClient) History(ctx context.Context) ([]models.DailySummary, error) {
	var out []models.DailySummary
	if err := c.getJSON(ctx, "/api/v1/history", nil, "history", &out); err != nil {
		return nil, err
	}
	return out, nil
}
