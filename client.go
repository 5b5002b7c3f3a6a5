package bufr

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"
)

// maxFetchBytes caps a downloaded bulletin file. Observation bulletins are a
// few MB at most; the cap keeps a misbehaving server from exhausting memory.
const maxFetchBytes = 64 << 20

// Client fetches BUFR bulletin files over HTTP.
type Client struct {
	HTTPClient *http.Client
}

// NewClient returns a client with a two-minute request timeout.
func NewClient() *Client {
	return &Client{HTTPClient: &http.Client{Timeout: 120 * time.Second}}
}

// Fetch downloads url in full.
func (c *Client) Fetch(ctx context.Context, url string) ([]byte, error) {
	return c.FetchRange(ctx, url, 0, math.MaxInt64)
}

// FetchRange downloads bytes start..end (inclusive) of url. end ==
// math.MaxInt64 reads to EOF.
func (c *Client) FetchRange(ctx context.Context, url string, start, end int64) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	switch {
	case start == 0 && end == math.MaxInt64:
	case end == math.MaxInt64:
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", start))
	default:
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", start, end))
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusPartialContent && resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d fetching %s", resp.StatusCode, url)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBytes+1))
	if err != nil {
		return nil, err
	}
	if len(body) > maxFetchBytes {
		return nil, fmt.Errorf("%s: body exceeds %d bytes", url, maxFetchBytes)
	}
	return body, nil
}

// FetchMessages downloads url and splits it into raw messages.
func (c *Client) FetchMessages(ctx context.Context, url string) ([][]byte, error) {
	body, err := c.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	return ReadMessages(bytes.NewReader(body))
}
