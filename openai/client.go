package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/fwojciec/relay"
)

// Interface compliance check.
var _ relay.Provider = (*Client)(nil)

// Client implements [relay.Provider] for the OpenAI Responses API.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

// Option configures a [Client].
type Option func(*Client)

// WithBaseURL sets the API base URL. Useful for testing with httptest.
func WithBaseURL(url string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(url, "/") }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithModel sets the model used when a request does not name one.
func WithModel(model string) Option {
	return func(c *Client) { c.model = model }
}

// New creates a new OpenAI [Client] with the given API key and options.
func New(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		model:      defaultModel,
		httpClient: http.DefaultClient,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Stream sends a streaming request to the Responses API and returns a
// [relay.Stream] that emits semantic events. A context overflow reported in
// the HTTP response wraps [relay.ErrContextOverflow]; other failures wrap
// [relay.ErrProvider].
func (c *Client) Stream(ctx context.Context, req relay.Request) (relay.Stream, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("openai: %w", err)
	}
	body, err := c.buildRequestBody(req)
	if err != nil {
		return nil, fmt.Errorf("openai: %w: %w", relay.ErrSerialization, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+responsesPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("openai: %w: %w", relay.ErrProvider, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("openai: %w", ctx.Err())
		}
		return nil, fmt.Errorf("openai: %w: %w", relay.ErrProvider, err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, parseHTTPError(resp)
	}

	return newStream(ctx, resp.Body), nil
}

func (c *Client) buildRequestBody(req relay.Request) ([]byte, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}

	items := req.History
	previous := ""
	if req.ContinuationToken != "" && len(req.Input) > 0 {
		items = req.Input
		previous = req.ContinuationToken
	}
	input, err := convertItems(items)
	if err != nil {
		return nil, err
	}

	return json.Marshal(apiRequest{
		Model:              model,
		Instructions:       req.Instructions,
		Input:              input,
		Tools:              convertTools(req.Tools),
		PreviousResponseID: previous,
		MaxOutputTokens:    req.MaxOutputTokens,
		Stream:             true,
		Store:              true,
	})
}

// convertItems maps history items to Responses input items. System messages
// become developer messages.
func convertItems(items []relay.Item) ([]apiInputItem, error) {
	result := make([]apiInputItem, 0, len(items))
	for _, it := range items {
		switch v := it.(type) {
		case relay.SystemMessage:
			result = append(result, apiInputItem{Type: "message", Role: "developer", Content: v.Content})
		case relay.UserMessage:
			result = append(result, apiInputItem{Type: "message", Role: "user", Content: v.Content})
		case relay.AssistantMessage:
			result = append(result, apiInputItem{Type: "message", Role: "assistant", Content: v.Content})
		case relay.ToolCall:
			args := string(v.Arguments)
			if args == "" {
				args = "{}"
			}
			result = append(result, apiInputItem{Type: "function_call", CallID: v.ID, Name: v.Name, Arguments: args})
		case relay.ToolResult:
			result = append(result, apiInputItem{Type: "function_call_output", CallID: v.CallID, Output: string(v.Output)})
		default:
			return nil, fmt.Errorf("unsupported item %T", it)
		}
	}
	return result, nil
}

func convertTools(tools []relay.Tool) []apiTool {
	if len(tools) == 0 {
		return nil
	}
	result := make([]apiTool, len(tools))
	for i, t := range tools {
		params := t.Parameters
		if len(params) == 0 {
			params = json.RawMessage(`{"type":"object","properties":{}}`)
		}
		result[i] = apiTool{
			Type:        "function",
			Name:        t.Name,
			Description: t.Description,
			Parameters:  params,
		}
	}
	return result
}

func parseHTTPError(resp *http.Response) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("openai: HTTP %d (failed to read body: %v): %w", resp.StatusCode, err, relay.ErrProvider)
	}
	var apiErr apiErrorResponse
	if err := json.Unmarshal(body, &apiErr); err != nil || apiErr.Error.Message == "" {
		return fmt.Errorf("openai: HTTP %d: %s: %w", resp.StatusCode, strings.TrimSpace(string(body)), relay.ErrProvider)
	}
	return classify(apiErr.Error.Code, apiErr.Error.Message)
}

// classify maps an API error code to the relay error taxonomy.
func classify(code, message string) error {
	if code == codeContextLengthExceeded || strings.Contains(message, codeContextLengthExceeded) {
		return fmt.Errorf("openai: %s: %w", message, relay.ErrContextOverflow)
	}
	if code == "" {
		return fmt.Errorf("openai: %s: %w", message, relay.ErrProvider)
	}
	return fmt.Errorf("openai: %s: %s: %w", code, message, relay.ErrProvider)
}
