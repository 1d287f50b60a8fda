package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// ErrNotFound is returned when the daemon answers 404.
var ErrNotFound = errors.New("not found")

// Client provides HTTP access to a running daemon.
type Client struct {
	base  string
	token string
	http  *http.Client
}

// NewClient returns a client for the daemon at baseURL (for example
// "http://127.0.0.1:8000"). A bare host:port or :port is accepted.
func NewClient(baseURL, token string) *Client {
	return &Client{
		base:  normalizeBaseURL(baseURL),
		token: strings.TrimSpace(token),
		http:  &http.Client{Timeout: 5 * time.Second},
	}
}

func normalizeBaseURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, ":") {
		raw = "127.0.0.1" + raw
	}
	if strings.HasPrefix(raw, "0.0.0.0:") {
		raw = "127.0.0.1" + strings.TrimPrefix(raw, "0.0.0.0")
	}
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	return strings.TrimRight(raw, "/")
}

// BaseURL returns the normalized daemon URL.
func (c *Client) BaseURL() string { return c.base }

// Health fetches GET /health.
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	var resp HealthResponse
	if err := c.get(ctx, "/health", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListRecordings fetches recordings whose filename starts with date.
func (c *Client) ListRecordings(ctx context.Context, date string) ([]Recording, error) {
	path := "/api/recordings"
	if date = strings.TrimSpace(date); date != "" {
		path += "?date=" + url.QueryEscape(date)
	}
	var resp []Recording
	if err := c.get(ctx, path, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// GetRecording fetches one recording; it returns ErrNotFound when absent.
func (c *Client) GetRecording(ctx context.Context, id int64) (*Recording, error) {
	var resp Recording
	if err := c.get(ctx, "/api/recordings/"+strconv.FormatInt(id, 10), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode/100 != 2 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		var apiErr ErrorResponse
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("daemon returned %d: %s", resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("daemon returned %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
