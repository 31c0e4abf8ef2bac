package relaylinesdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client is a minimal Relayline HTTP API client.
type Client struct {
	BaseURL      string
	SharedSecret string
	HTTPClient   *http.Client
	Timeout      time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// DispatchResult is the dispatch webhook response.
type DispatchResult struct {
	OK              bool     `json:"ok"`
	RequestID       string   `json:"request_id"`
	FanoutApplied   bool     `json:"fanout_applied"`
	MatchedRoutes   []string `json:"matched_routes"`
	CommandsCreated int      `json:"commands_created"`
}

// EventsResult is the events webhook response.
type EventsResult struct {
	OK               bool   `json:"ok"`
	RequestID        string `json:"request_id"`
	Skipped          bool   `json:"skipped,omitempty"`
	Reason           string `json:"reason,omitempty"`
	Deduped          bool   `json:"deduped,omitempty"`
	WorkflowRecordID string `json:"workflow_record_id,omitempty"`
}

// Capture is one stored webhook delivery.
type Capture struct {
	ID         string `json:"id"`
	RequestID  string `json:"request_id"`
	Surface    string `json:"surface"`
	ReceivedAt string `json:"received_at"`
	Body       string `json:"body"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// Health checks service liveness.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "v0/health", nil, nil)
}

// SendDispatchWebhook posts a raw delivery to the dispatch surface.
func (c *Client) SendDispatchWebhook(ctx context.Context, payload any) (DispatchResult, error) {
	var resp DispatchResult
	err := c.do(ctx, http.MethodPost, "v0/webhooks/dispatch", payload, &resp)
	return resp, err
}

// SendEventsWebhook posts a raw delivery to the events surface.
func (c *Client) SendEventsWebhook(ctx context.Context, payload any) (EventsResult, error) {
	var resp EventsResult
	err := c.do(ctx, http.MethodPost, "v0/webhooks/events", payload, &resp)
	return resp, err
}

// ListCaptures returns recently captured deliveries.
func (c *Client) ListCaptures(ctx context.Context, limit int) ([]Capture, error) {
	endpoint := "v0/captures"
	if limit > 0 {
		endpoint = fmt.Sprintf("%s?limit=%d", endpoint, limit)
	}
	var resp []Capture
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.SharedSecret != "" {
		req.Header.Set("X-Webhook-Secret", c.SharedSecret)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
