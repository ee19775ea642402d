// Package openai implements [relay.Provider] for the OpenAI Responses API.
//
// Requests are streamed over SSE. When a continuation token is present only
// the items appended since that response are sent, and the server replays the
// rest of the conversation from its stored state.
package openai

import "encoding/json"

const (
	defaultBaseURL = "https://api.openai.com"
	defaultModel   = "gpt-4.1-mini"
	responsesPath  = "/v1/responses"

	codeContextLengthExceeded = "context_length_exceeded"
)

// apiRequest is the JSON body sent to the Responses API.
type apiRequest struct {
	Model              string         `json:"model"`
	Instructions       string         `json:"instructions,omitempty"`
	Input              []apiInputItem `json:"input"`
	Tools              []apiTool      `json:"tools,omitempty"`
	PreviousResponseID string         `json:"previous_response_id,omitempty"`
	MaxOutputTokens    int            `json:"max_output_tokens,omitempty"`
	Stream             bool           `json:"stream"`
	Store              bool           `json:"store"`
}

// apiInputItem is one entry of the request input. Different fields are
// populated depending on Type.
type apiInputItem struct {
	Type string `json:"type"`

	// message
	Role    string `json:"role,omitempty"`
	Content string `json:"content,omitempty"`

	// function_call, function_call_output
	CallID    string `json:"call_id,omitempty"`
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`
	Output    string `json:"output,omitempty"`
}

type apiTool struct {
	Type        string          `json:"type"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

type apiError struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type apiErrorResponse struct {
	Error apiError `json:"error"`
}

// SSE payloads. Only the fields the stream consumes are declared.

type sseEnvelope struct {
	Type string `json:"type"`
}

type sseResponse struct {
	Response struct {
		ID    string    `json:"id"`
		Error *apiError `json:"error"`
		Usage *struct {
			InputTokens  int `json:"input_tokens"`
			OutputTokens int `json:"output_tokens"`
		} `json:"usage"`
		IncompleteDetails *struct {
			Reason string `json:"reason"`
		} `json:"incomplete_details"`
	} `json:"response"`
}

type sseOutputItem struct {
	OutputIndex int `json:"output_index"`
	Item        struct {
		Type      string `json:"type"`
		ID        string `json:"id"`
		CallID    string `json:"call_id"`
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"item"`
}

type sseTextDelta struct {
	ItemID string `json:"item_id"`
	Delta  string `json:"delta"`
}

type sseArgumentsDelta struct {
	ItemID string `json:"item_id"`
	Delta  string `json:"delta"`
}

type sseArgumentsDone struct {
	ItemID    string `json:"item_id"`
	Arguments string `json:"arguments"`
}

type sseError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
