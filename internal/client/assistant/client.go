// Package assistant is the HTTP client for the remote math-assistant service.
package assistant

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

// ChatRequest is the body of POST /api/chat.
type ChatRequest struct {
	Prompt         string `json:"prompt"`
	IncludeHistory bool   `json:"include_history"`
	TopicID        string `json:"topicId,omitempty"`
	Category       string `json:"category,omitempty"`
}

// ChatResponse is the success body. Response is nil when the field is absent.
type ChatResponse struct {
	Response *string `json:"response"`
}

// Error describes a failed exchange. Message holds the server-provided error
// text when the body carried one.
type Error struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	switch {
	case e.Message != "":
		return fmt.Sprintf("assistant: status %d: %s", e.StatusCode, e.Message)
	case e.StatusCode != 0:
		return fmt.Sprintf("assistant: status %d", e.StatusCode)
	case e.Err != nil:
		return "assistant: " + e.Err.Error()
	default:
		return "assistant: request failed"
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Transport sends one chat exchange.
type Transport interface {
	Chat(ctx context.Context, req ChatRequest) (ChatResponse, error)
}

// Client implements Transport over HTTP.
type Client struct {
	endpoint   string
	httpClient *http.Client
}

// maxErrorBody bounds how much of a failure body is read.
const maxErrorBody = 64 << 10

// NewClient targets the chat endpoint URL. A zero timeout leaves the
// transport default in place; callers normally bound requests via ctx.
func NewClient(endpoint string, timeout time.Duration) *Client {
	return &Client{
		endpoint:   strings.TrimSpace(endpoint),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// WithHTTPClient swaps the underlying http.Client.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

// Chat posts req and decodes the reply. Non-2xx statuses, network failures
// and undecodable bodies are all reported as *Error.
func (c *Client) Chat(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return ChatResponse{}, &Error{Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return ChatResponse{}, &Error{Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return ChatResponse{}, &Error{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return ChatResponse{}, &Error{
			StatusCode: resp.StatusCode,
			Message:    readErrorMessage(resp.Body),
		}
	}

	var out ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return ChatResponse{}, &Error{StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return out, nil
}

func readErrorMessage(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, maxErrorBody))
	if err != nil || len(data) == 0 {
		return ""
	}
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return ""
	}
	return strings.TrimSpace(payload.Error)
}
