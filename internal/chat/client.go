// Package chat proxies natural-language questions to the text-to-SQL service.
package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/odyssey-erp/invoice-analytics/internal/platform/httpx"
)

// Answer is the upstream reply to a question.
type Answer struct {
	SQL         string           `json:"sql"`
	Results     []map[string]any `json:"results"`
	Explanation string           `json:"explanation"`
}

// Client talks to the text-to-SQL service.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient constructs a new client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Ask forwards question to the upstream /query endpoint.
func (c *Client) Ask(ctx context.Context, question string) (Answer, error) {
	payload, err := json.Marshal(map[string]string{"question": question})
	if err != nil {
		return Answer{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fmt.Sprintf("%s/query", c.baseURL), bytes.NewReader(payload))
	if err != nil {
		return Answer{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Answer{}, fmt.Errorf("chat: %w: %v", httpx.ErrUpstream, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return Answer{}, fmt.Errorf("chat: %w: status %d", httpx.ErrUpstream, resp.StatusCode)
	}

	var answer Answer
	if err := json.NewDecoder(resp.Body).Decode(&answer); err != nil {
		return Answer{}, fmt.Errorf("chat: %w: decode: %v", httpx.ErrUpstream, err)
	}
	if answer.Results == nil {
		answer.Results = []map[string]any{}
	}
	return answer, nil
}
