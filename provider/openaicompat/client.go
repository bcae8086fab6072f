package openaicompat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/nevindra/scout"
)

// Client implements scout.StreamProvider for any OpenAI-compatible API.
// A Client is cheap to construct, so callers that receive credentials per
// request (one token per submitted message) build one per message and share
// the underlying http.Client via WithHTTPClient.
type Client struct {
	apiKey  string
	baseURL string
	client  *http.Client
	name    string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient shares an existing http.Client (connection pooling).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.client = hc }
}

// WithName overrides the provider name used in error messages.
func WithName(name string) Option {
	return func(c *Client) { c.name = name }
}

// NewClient creates an OpenAI-compatible streaming chat client.
// baseURL is the API base (e.g. "https://models.inference.ai.azure.com");
// the /chat/completions path is appended automatically.
func NewClient(apiKey, baseURL string, opts ...Option) *Client {
	c := &Client{
		apiKey:  apiKey,
		baseURL: baseURL,
		client:  &http.Client{},
		name:    "openai",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// StreamChat issues one streaming chat completions call and returns the
// fragment stream. The caller must drain or Close the stream to release
// the connection.
func (c *Client) StreamChat(ctx context.Context, req scout.ChatRequest) (scout.FragmentStream, error) {
	body := BuildBody(req)
	body.Stream = true

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, &scout.ErrLLM{Provider: c.name, Message: fmt.Sprintf("marshal request: %v", err)}
	}

	url := c.baseURL + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, &scout.ErrLLM{Provider: c.name, Message: fmt.Sprintf("create request: %v", err)}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, &scout.ErrLLM{Provider: c.name, Message: err.Error()}
	}
	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, &scout.ErrHTTP{Status: resp.StatusCode, Body: string(errBody)}
	}

	return NewStream(resp.Body), nil
}

// Compile-time interface check.
var _ scout.StreamProvider = (*Client)(nil)
