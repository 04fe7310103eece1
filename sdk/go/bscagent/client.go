package bscagent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"
)

// DefaultHTTPTimeout defines the timeout used by clients created without a
// custom http.Client. It is intentionally short to avoid hanging network calls.
const DefaultHTTPTimeout = 15 * time.Second

// Client wraps the HTTP interactions with the agent REST API.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
}

// Message mirrors one message in a task conversation.
type Message struct {
	Role  string `json:"role"`
	Parts []Part `json:"parts"`
}

// Part is a single message fragment; only text is supported.
type Part struct {
	Text string `json:"text"`
}

// Text joins all non-empty fragments of the message.
func (m Message) Text() string {
	parts := make([]string, 0, len(m.Parts))
	for _, part := range m.Parts {
		if part.Text != "" {
			parts = append(parts, part.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// Task is a conversational task: identifier, current state and full history.
type Task struct {
	ID       string    `json:"id"`
	State    string    `json:"state"`
	Messages []Message `json:"messages"`
}

// Record is the server-side view of a task including scheduling bookkeeping.
type Record struct {
	Task      Task   `json:"task"`
	Claimed   bool   `json:"claimed"`
	LastError string `json:"last_error,omitempty"`
	CreatedAt int64  `json:"created_at"`
	UpdatedAt int64  `json:"updated_at"`
}

// Reply returns the latest agent message text, or "" when the agent has not
// responded yet.
func (r *Record) Reply() string {
	for i := len(r.Task.Messages) - 1; i >= 0; i-- {
		if r.Task.Messages[i].Role == "agent" {
			return r.Task.Messages[i].Text()
		}
	}
	return ""
}

// Stats aggregates live task counts per state.
type Stats struct {
	Total         int `json:"total"`
	Working       int `json:"working"`
	InputRequired int `json:"input_required"`
	Completed     int `json:"completed"`
	Failed        int `json:"failed"`
}

// ListQuery narrows down ListTasks results.
type ListQuery struct {
	Limit  int
	Offset int
	States []string
	Query  string
}

// APIError represents server side validation or internal errors.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("bscagent api error (%d): %s", e.StatusCode, e.Message)
}

// NewClient instantiates a client for the agent API. When httpClient is nil, a
// default client with a sensible timeout is used.
func NewClient(rawURL string, httpClient *http.Client) *Client {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		panic(fmt.Sprintf("invalid base url: %v", err))
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultHTTPTimeout}
	}
	return &Client{baseURL: parsed, httpClient: httpClient}
}

type submitPayload struct {
	TaskID  string `json:"task_id,omitempty"`
	Message string `json:"message"`
	Wait    bool   `json:"wait,omitempty"`
}

// SendMessage starts a new conversation with the agent.
func (c *Client) SendMessage(ctx context.Context, text string) (Record, error) {
	return c.submit(ctx, submitPayload{Message: text})
}

// ContinueTask appends a user message to an existing conversation.
func (c *Client) ContinueTask(ctx context.Context, taskID, text string) (Record, error) {
	return c.submit(ctx, submitPayload{TaskID: taskID, Message: text})
}

// SendMessageAndWait posts a message and blocks server-side until the turn
// reaches a terminal state. Pass an empty taskID to start a new conversation.
func (c *Client) SendMessageAndWait(ctx context.Context, taskID, text string) (Record, error) {
	return c.submit(ctx, submitPayload{TaskID: taskID, Message: text, Wait: true})
}

func (c *Client) submit(ctx context.Context, payload submitPayload) (Record, error) {
	var record Record
	if err := c.post(ctx, "/api/v1/tasks", payload, &record); err != nil {
		return Record{}, err
	}
	return record, nil
}

// GetTask fetches the full conversation state by task identifier.
func (c *Client) GetTask(ctx context.Context, taskID string) (Record, error) {
	var record Record
	endpoint := "/api/v1/tasks/" + url.PathEscape(taskID)
	if err := c.get(ctx, endpoint, &record); err != nil {
		return Record{}, err
	}
	return record, nil
}

// ListTasks returns live tasks matching the query.
func (c *Client) ListTasks(ctx context.Context, query ListQuery) ([]Record, error) {
	values := url.Values{}
	if query.Limit > 0 {
		values.Set("limit", strconv.Itoa(query.Limit))
	}
	if query.Offset > 0 {
		values.Set("offset", strconv.Itoa(query.Offset))
	}
	if len(query.States) > 0 {
		values.Set("state", strings.Join(query.States, ","))
	}
	if query.Query != "" {
		values.Set("q", query.Query)
	}
	endpoint := "/api/v1/tasks"
	if encoded := values.Encode(); encoded != "" {
		endpoint += "?" + encoded
	}
	var records []Record
	if err := c.get(ctx, endpoint, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// GetStats returns live task counts per state.
func (c *Client) GetStats(ctx context.Context) (Stats, error) {
	var stats Stats
	if err := c.get(ctx, "/api/v1/stats", &stats); err != nil {
		return Stats{}, err
	}
	return stats, nil
}

func (c *Client) post(ctx context.Context, endpoint string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := c.newRequest(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) get(ctx context.Context, endpoint string, out any) error {
	req, err := c.newRequest(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) newRequest(ctx context.Context, method, endpoint string, body io.Reader) (*http.Request, error) {
	parsed, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint: %w", err)
	}
	rel := &url.URL{Path: path.Join(c.baseURL.Path, parsed.Path), RawQuery: parsed.RawQuery}
	u := c.baseURL.ResolveReference(rel)
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	return req, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("perform request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		data, err := io.ReadAll(io.LimitReader(resp.Body, 2048))
		if err != nil {
			return fmt.Errorf("read error response: %w", err)
		}
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    string(bytes.TrimSpace(data)),
		}
	}

	if out == nil {
		return nil
	}
	decoder := json.NewDecoder(resp.Body)
	if err := decoder.Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
