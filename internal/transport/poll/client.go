package poll

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"sentinelscan/internal/event"
)

// Config configures the polling client.
type Config struct {
	URL     string
	Timeout time.Duration
	Headers map[string]string
}

// Client fetches the backend's cumulative session snapshot. Each Fetch is an
// independent request; a failure is transient and retried by the caller on
// its fixed interval.
type Client struct {
	url     string
	headers map[string]string
	client  *http.Client
}

// NewClient creates a polling client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("poll URL is empty")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		url:     cfg.URL,
		headers: cfg.Headers,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

// Fetch retrieves and decodes one cumulative snapshot.
func (c *Client) Fetch(ctx context.Context) (*event.Snapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("create poll request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("poll request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("poll request returned status %s", resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read poll response: %w", err)
	}
	snap, err := event.DecodeSnapshot(body)
	if err != nil {
		return nil, fmt.Errorf("decode poll snapshot: %w", err)
	}
	return snap, nil
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.client.CloseIdleConnections()
	return nil
}
