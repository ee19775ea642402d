package anthropic

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

// Client implements [relay.Provider] for the Anthropic Messages API.
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

// New creates a new Anthropic [Client] with the given API key and options.
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

// Stream sends a streaming request to the Messages API and returns a
// [relay.Stream] that emits semantic events. A prompt that does not fit the
// model's context window wraps [relay.ErrContextOverflow]; other failures
// wrap [relay.ErrProvider].
func (c *Client) Stream(ctx context.Context, req relay.Request) (relay.Stream, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("anthropic: %w", err)
	}
	body, err := c.buildRequestBody(req)
	if err != nil {
		return nil, fmt.Errorf("anthropic: %w: %w", relay.ErrSerialization, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+messagesPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("anthropic: %w: %w", relay.ErrProvider, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Api-Key", c.apiKey)
	httpReq.Header.Set("Anthropic-Version", apiVersion)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("anthropic: %w", ctx.Err())
		}
		return nil, fmt.Errorf("anthropic: %w: %w", relay.ErrProvider, err)
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
	maxTokens := req.MaxOutputTokens
	if maxTokens == 0 {
		maxTokens = defaultMaxTokens
	}

	system, messages, err := convertItems(req.History)
	if err != nil {
		return nil, err
	}
	if req.Instructions != "" {
		system = append(system, apiContentBlock{Type: "text", Text: req.Instructions})
	}

	apiReq := apiRequest{
		Model:     model,
		MaxTokens: maxTokens,
		Stream:    true,
		System:    system,
		Messages:  messages,
		Tools:     convertTools(req.Tools),
	}
	injectCacheMarkers(&apiReq)

	return json.Marshal(apiReq)
}

// injectCacheMarkers sets cache_control breakpoints on the request:
//  1. Top-level: automatic caching for the conversation message window.
//  2. System prompt last block: stable content breakpoint.
//  3. Last tool: stable tool definitions breakpoint.
func injectCacheMarkers(req *apiRequest) {
	// cc is shared across all breakpoints; safe because it is read-only after assignment.
	cc := &apiCacheControl{Type: "ephemeral"}

	req.CacheControl = cc
	if len(req.System) > 0 {
		req.System[len(req.System)-1].CacheControl = cc
	}
	if len(req.Tools) > 0 {
		req.Tools[len(req.Tools)-1].CacheControl = cc
	}
}

// convertItems splits history into system blocks and role-alternating
// messages. Consecutive items of the same role share a message, so text and
// tool_use blocks of one response stay together and tool results precede
// the next user text.
func convertItems(items []relay.Item) ([]apiContentBlock, []apiMessage, error) {
	var system []apiContentBlock
	var result []apiMessage
	add := func(role string, block apiContentBlock) {
		if n := len(result); n > 0 && result[n-1].Role == role {
			result[n-1].Content = append(result[n-1].Content, block)
			return
		}
		result = append(result, apiMessage{Role: role, Content: []apiContentBlock{block}})
	}

	for _, it := range items {
		switch v := it.(type) {
		case relay.SystemMessage:
			system = append(system, apiContentBlock{Type: "text", Text: v.Content})
		case relay.UserMessage:
			add("user", apiContentBlock{Type: "text", Text: v.Content})
		case relay.AssistantMessage:
			add("assistant", apiContentBlock{Type: "text", Text: v.Content})
		case relay.ToolCall:
			input := v.Arguments
			if len(input) == 0 {
				input = json.RawMessage(`{}`)
			}
			add("assistant", apiContentBlock{Type: "tool_use", ID: v.ID, Name: v.Name, Input: input})
		case relay.ToolResult:
			add("user", apiContentBlock{
				Type:      "tool_result",
				ToolUseID: v.CallID,
				Content:   []apiContentBlock{{Type: "text", Text: string(v.Output)}},
				IsError:   v.IsError,
			})
		default:
			return nil, nil, fmt.Errorf("unsupported item %T", it)
		}
	}
	return system, result, nil
}

func convertTools(tools []relay.Tool) []apiTool {
	if len(tools) == 0 {
		return nil
	}
	result := make([]apiTool, len(tools))
	for i, t := range tools {
		schema := t.Parameters
		if len(schema) == 0 {
			schema = json.RawMessage(`{"type":"object","properties":{}}`)
		}
		result[i] = apiTool{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: schema,
		}
	}
	return result
}

func parseHTTPError(resp *http.Response) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("anthropic: HTTP %d (failed to read body: %v): %w", resp.StatusCode, err, relay.ErrProvider)
	}
	var apiErr sseError
	if err := json.Unmarshal(body, &apiErr); err != nil || apiErr.Error.Message == "" {
		return fmt.Errorf("anthropic: HTTP %d: %s: %w", resp.StatusCode, strings.TrimSpace(string(body)), relay.ErrProvider)
	}
	return classify(apiErr.Error)
}

// classify maps an API error to the relay error taxonomy. The API reports an
// oversized prompt as an invalid_request_error, so the message decides.
func classify(e sseErrorDetail) error {
	msg := strings.ToLower(e.Message)
	if strings.Contains(msg, "prompt is too long") || strings.Contains(msg, "context window") {
		return fmt.Errorf("anthropic: %s: %w", e.Message, relay.ErrContextOverflow)
	}
	return fmt.Errorf("anthropic: %s: %s: %w", e.Type, e.Message, relay.ErrProvider)
}
