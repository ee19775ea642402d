package builtin

import (
	"context"
	"encoding/json"
	"strings"
	"unicode/utf8"

	"github.com/fwojciec/relay"
	"github.com/fwojciec/relay/dispatch"
)

type wordCountArgs struct {
	Text string `json:"text"`
}

type wordCountResult struct {
	Words      int `json:"words"`
	Characters int `json:"characters"`
	Lines      int `json:"lines"`
}

// WordCount returns the word_count tool. It is not published to guests.
func WordCount() relay.ToolDefinition {
	return relay.ToolDefinition{
		Tool: relay.Tool{
			Name:        "word_count",
			Description: "Count the words, characters and lines of a text.",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"text": {
						"type": "string",
						"description": "Text to measure"
					}
				},
				"required": ["text"]
			}`),
		},
		Handler: dispatch.Typed(func(_ context.Context, a wordCountArgs) (wordCountResult, error) {
			lines := 0
			if a.Text != "" {
				lines = strings.Count(a.Text, "\n") + 1
			}
			return wordCountResult{
				Words:      len(strings.Fields(a.Text)),
				Characters: utf8.RuneCountInString(a.Text),
				Lines:      lines,
			}, nil
		}),
	}
}
