// Package timeline is a thin Go client for the timeline API. It covers
// the write path and the state read; administrative surfaces are expected
// to be driven by tooling, not application code.
package timeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

type Principal struct {
	ActorID string
	Roles   []string
}

type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Principal  Principal
}

type Option func(*Client)

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.HTTPClient = client
	}
}

func WithPrincipal(principal Principal) Option {
	return func(c *Client) {
		c.Principal = principal
	}
}

func NewClient(baseURL string, opts ...Option) *Client {
	client := &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

type AppendEventInput struct {
	TenantID      string
	SubjectID     string
	EventType     string
	SchemaVersion int
	EventTime     *time.Time
	Payload       map[string]any
}

type Event struct {
	ID            string         `json:"id"`
	SubjectID     string         `json:"subject_id"`
	EventType     string         `json:"event_type"`
	SchemaVersion int            `json:"schema_version"`
	EventTime     time.Time      `json:"event_time"`
	Payload       map[string]any `json:"payload"`
	PreviousHash  string         `json:"previous_hash"`
	Hash          string         `json:"hash"`
	Seq           int64          `json:"seq"`
}

type State struct {
	SubjectID   string         `json:"subject_id"`
	State       map[string]any `json:"state"`
	LastEventID string         `json:"last_event_id"`
	EventCount  int            `json:"event_count"`
}

// AppendEvent appends one event to the subject's stream and returns the
// chained event as stored.
func (c *Client) AppendEvent(ctx context.Context, input AppendEventInput) (*Event, error) {
	if c == nil {
		return nil, fmt.Errorf("timeline client is nil")
	}
	if input.TenantID == "" || input.SubjectID == "" || input.EventType == "" {
		return nil, fmt.Errorf("tenant_id, subject_id and event_type are required")
	}
	path := fmt.Sprintf("/v1/tenants/%s/events", url.PathEscape(input.TenantID))

	body := map[string]any{
		"subject_id": input.SubjectID,
		"event_type": input.EventType,
		"payload":    input.Payload,
	}
	if input.SchemaVersion > 0 {
		body["schema_version"] = input.SchemaVersion
	}
	if input.EventTime != nil {
		body["event_time"] = input.EventTime.UTC().Format(time.RFC3339Nano)
	}

	var out Event
	if err := c.doJSON(ctx, http.MethodPost, path, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetState fetches the subject's derived state, optionally as of a point
// in time.
func (c *Client) GetState(ctx context.Context, tenantID, subjectID string, asOf *time.Time) (*State, error) {
	if c == nil {
		return nil, fmt.Errorf("timeline client is nil")
	}
	if tenantID == "" || subjectID == "" {
		return nil, fmt.Errorf("tenant_id and subject_id are required")
	}
	path := fmt.Sprintf("/v1/tenants/%s/subjects/%s/state", url.PathEscape(tenantID), url.PathEscape(subjectID))
	if asOf != nil {
		path += "?as_of=" + url.QueryEscape(asOf.UTC().Format(time.RFC3339))
	}

	var out State
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body any, out any) error {
	if c.BaseURL == "" {
		return fmt.Errorf("timeline base URL is required")
	}
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Principal.ActorID != "" {
		req.Header.Set("X-Actor-ID", c.Principal.ActorID)
	}
	if len(c.Principal.Roles) > 0 {
		req.Header.Set("X-Roles", strings.Join(c.Principal.Roles, ","))
	}

	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%s %s failed: status %d body %s", method, path, resp.StatusCode, string(raw))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
