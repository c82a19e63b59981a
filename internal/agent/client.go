// Package agent provides the non-streaming fallback to the generation
// backend: a discrete request/response call that returns a fixed
// catalogue of typed presentational components instead of raw HTML.
package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Client calls the agent HTTP endpoint.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client for the backend at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 120 * time.Second},
	}
}

// Request is the generation request body.
type Request struct {
	Prompt string `json:"prompt"`
	UserID string `json:"user_id"`
}

// Response is the generation result.
type Response struct {
	Components []Component `json:"components"`
	Error      string      `json:"error,omitempty"`
}

// Generate asks the backend to produce components for a prompt.
func (c *Client) Generate(ctx context.Context, prompt, userID string) (*Response, error) {
	body, err := json.Marshal(Request{Prompt: prompt, UserID: userID})
	if err != nil {
		return nil, fmt.Errorf("encode agent request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/agent", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build agent request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call agent endpoint: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("agent endpoint returned status %d", resp.StatusCode)
	}

	var out Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode agent response: %w", err)
	}
	return &out, nil
}
