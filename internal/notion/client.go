package notion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"
)

const (
	defaultBaseURL = "https://api.notion.com/v1"
	defaultTimeout = 30 * time.Second

	// requestsPerSecond matches the documented Notion rate limit of an
	// average of three requests per second per integration.
	requestsPerSecond = 3

	maxRetries = 3
)

// ClientConfig configures a Client.
type ClientConfig struct {
	// Tokens is the bearer-token pool. Requests rotate through the pool
	// round robin so several integrations share the write load.
	Tokens  []string
	Version string
	BaseURL string
	HTTP    *http.Client
	Logger  *slog.Logger
}

// Client is a Notion REST client with rate limiting and retry on
// transient errors (429 and 5xx).
type Client struct {
	baseURL string
	version string
	http    *http.Client
	tokens  []string
	limiter *rate.Limiter
	logger  *slog.Logger

	mu     sync.Mutex
	cursor int
}

// NewClient builds a Client. At least one token is required.
func NewClient(cfg ClientConfig) (*Client, error) {
	if len(cfg.Tokens) == 0 {
		return nil, fmt.Errorf("notion client requires at least one token")
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	version := cfg.Version
	if version == "" {
		version = "2022-06-28"
	}
	httpClient := cfg.HTTP
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: baseURL,
		version: version,
		http:    httpClient,
		tokens:  cfg.Tokens,
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond),
		logger:  logger,
	}, nil
}

func (c *Client) nextToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	token := c.tokens[c.cursor%len(c.tokens)]
	c.cursor++
	return token
}

// APIError is a non-transient Notion API failure.
type APIError struct {
	Status int
	Method string
	Path   string
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("notion %s %s: status %d: %s", e.Method, e.Path, e.Status, e.Body)
}

// do executes one API request, retrying transient failures with
// exponential backoff. The response body is returned raw.
func (c *Client) do(ctx context.Context, method, path string, body any) ([]byte, error) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
	}

	var out []byte
	attempt := 0
	op := func() error {
		attempt++
		if err := c.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}
		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Authorization", "Bearer "+c.nextToken())
		req.Header.Set("Notion-Version", c.version)
		req.Header.Set("Content-Type", "application/json")

		res, err := c.http.Do(req)
		if err != nil {
			// Network failures are worth one more try.
			return err
		}
		defer res.Body.Close()
		data, err := io.ReadAll(io.LimitReader(res.Body, 4<<20))
		if err != nil {
			return err
		}
		if res.StatusCode == http.StatusTooManyRequests || res.StatusCode >= 500 {
			c.logger.Warn("notion_transient_error",
				"status", res.StatusCode, "method", method, "path", path, "attempt", attempt)
			return fmt.Errorf("transient status %d", res.StatusCode)
		}
		if res.StatusCode < 200 || res.StatusCode >= 300 {
			return backoff.Permanent(&APIError{
				Status: res.StatusCode,
				Method: method,
				Path:   path,
				Body:   string(data),
			})
		}
		out = data
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(newRetryPolicy(), maxRetries-1), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		return nil, err
	}
	return out, nil
}

func newRetryPolicy() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 5 * time.Second
	return b
}
