package stream

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"sentinelscan/internal/event"
)

// Config configures the push-stream client.
type Config struct {
	URL     string
	Timeout time.Duration
	Headers map[string]string
}

// Client consumes a server-sent event stream from the sentinel backend.
// One Next call yields one framed event; a broken connection surfaces as an
// error and is fatal to the session by design.
type Client struct {
	resp   *http.Response
	reader *bufio.Reader
}

// Dial opens the stream. The request is bound to ctx, so cancelling the
// session context unblocks any in-flight read.
func Dial(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("stream URL is empty")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cfg.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("create stream request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	for k, v := range cfg.Headers {
		req.Header.Set(k, v)
	}

	client := &http.Client{
		Transport: &http.Transport{ResponseHeaderTimeout: timeout},
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("connect event stream: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("event stream returned status %s", resp.Status)
	}

	return &Client{resp: resp, reader: bufio.NewReader(resp.Body)}, nil
}

// Next blocks until the next complete event frame arrives. Comment lines and
// heartbeat frames with no data are skipped.
func (c *Client) Next(ctx context.Context) (event.Message, error) {
	var name string
	var data []string

	for {
		line, err := c.reader.ReadString('\n')
		if err != nil {
			if ctx.Err() != nil {
				return event.Message{}, ctx.Err()
			}
			return event.Message{}, fmt.Errorf("read event stream: %w", err)
		}
		line = strings.TrimRight(line, "\r\n")

		switch {
		case line == "":
			if len(data) > 0 {
				return event.Message{Name: name, Data: []byte(strings.Join(data, "\n"))}, nil
			}
			name = ""
		case strings.HasPrefix(line, ":"):
			// Comment/keepalive.
		case strings.HasPrefix(line, "event:"):
			name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data = append(data, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}
}

// Close terminates the stream connection.
func (c *Client) Close() error {
	if c == nil || c.resp == nil {
		return nil
	}
	return c.resp.Body.Close()
}
