package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fwojciec/relay"
	"google.golang.org/genai"
)

// Interface compliance check.
var _ relay.Provider = (*Client)(nil)

// Client implements [relay.Provider] for the Google Gemini API.
type Client struct {
	client *genai.Client
	model  string
}

// Option configures a [Client].
type Option func(*Client)

// WithModel sets the model used when a request does not name one.
func WithModel(model string) Option {
	return func(c *Client) { c.model = model }
}

// New creates a new Gemini [Client] with the given API key and options.
func New(ctx context.Context, apiKey string, opts ...Option) (*Client, error) {
	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: %w", err)
	}
	c := &Client{
		client: gc,
		model:  defaultModel,
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// Stream sends a streaming request to the Gemini API and returns a
// [relay.Stream] that emits semantic events.
func (c *Client) Stream(ctx context.Context, req relay.Request) (relay.Stream, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("gemini: %w", err)
	}
	model := req.Model
	if model == "" {
		model = c.model
	}

	contents, system := ConvertItems(req.History)
	config := buildConfig(req, system)

	iter := c.client.Models.GenerateContentStream(ctx, model, contents, config)
	return NewStreamFromIter(ctx, iter), nil
}

func buildConfig(req relay.Request, system string) *genai.GenerateContentConfig {
	maxTokens := req.MaxOutputTokens
	if maxTokens == 0 {
		maxTokens = defaultMaxTokens
	}

	config := &genai.GenerateContentConfig{
		MaxOutputTokens: int32(maxTokens),
		Tools:           ConvertTools(req.Tools),
	}

	instructions := joinNonEmpty(system, req.Instructions)
	if instructions != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: instructions}},
		}
	}
	return config
}

func joinNonEmpty(parts ...string) string {
	var kept []string
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "\n\n")
}

// ConvertItems converts relay history items to genai Contents. System
// messages are returned separately as the system instruction text.
// Consecutive tool calls share one model turn and consecutive tool results
// share one user turn.
// Exported for testing.
func ConvertItems(items []relay.Item) ([]*genai.Content, string) {
	var result []*genai.Content
	var system []string
	names := make(map[string]string)

	appendPart := func(role string, part *genai.Part, merge func(*genai.Part) bool) {
		if n := len(result); n > 0 && result[n-1].Role == role && merge(result[n-1].Parts[0]) {
			result[n-1].Parts = append(result[n-1].Parts, part)
			return
		}
		result = append(result, &genai.Content{Role: role, Parts: []*genai.Part{part}})
	}
	isCall := func(p *genai.Part) bool { return p.FunctionCall != nil }
	isResponse := func(p *genai.Part) bool { return p.FunctionResponse != nil }

	for _, it := range items {
		switch v := it.(type) {
		case relay.SystemMessage:
			system = append(system, v.Content)
		case relay.UserMessage:
			result = append(result, &genai.Content{Role: "user", Parts: []*genai.Part{{Text: v.Content}}})
		case relay.AssistantMessage:
			result = append(result, &genai.Content{Role: "model", Parts: []*genai.Part{{Text: v.Content}}})
		case relay.ToolCall:
			names[v.ID] = v.Name
			var args map[string]any
			_ = json.Unmarshal(v.Arguments, &args)
			appendPart("model", &genai.Part{
				FunctionCall:     &genai.FunctionCall{ID: v.ID, Name: v.Name, Args: args},
				ThoughtSignature: signature(v.Signature),
			}, isCall)
		case relay.ToolResult:
			appendPart("user", &genai.Part{
				FunctionResponse: &genai.FunctionResponse{
					ID:       v.CallID,
					Name:     names[v.CallID],
					Response: responseMap(v),
				},
			}, isResponse)
		}
	}
	return result, strings.Join(system, "\n\n")
}

func signature(s string) []byte {
	if s == "" {
		return nil
	}
	return []byte(s)
}

// responseMap wraps a tool output in the object shape Gemini requires.
func responseMap(r relay.ToolResult) map[string]any {
	var output any
	if err := json.Unmarshal(r.Output, &output); err != nil {
		output = string(r.Output)
	}
	if r.IsError {
		return map[string]any{"error": output}
	}
	return map[string]any{"output": output}
}

// ConvertTools converts relay Tools to genai Tools.
// Exported for testing.
func ConvertTools(tools []relay.Tool) []*genai.Tool {
	if len(tools) == 0 {
		return nil
	}
	decls := make([]*genai.FunctionDeclaration, len(tools))
	for i, t := range tools {
		var schema map[string]any
		_ = json.Unmarshal(t.Parameters, &schema)
		decls[i] = &genai.FunctionDeclaration{
			Name:                 t.Name,
			Description:          t.Description,
			ParametersJsonSchema: schema,
		}
	}
	return []*genai.Tool{{FunctionDeclarations: decls}}
}
