package history

import (
	"unicode/utf8"

	"github.com/fwojciec/relay"
)

// charsPerToken is the ratio used by Chars. It overestimates for English
// text and code, so truncation errs toward dropping one group too many.
const charsPerToken = 4

// Estimator estimates the token count of a piece of text.
type Estimator interface {
	EstimateTokens(text string) int
}

// EstimatorFunc adapts a function to Estimator.
type EstimatorFunc func(text string) int

// EstimateTokens calls f.
func (f EstimatorFunc) EstimateTokens(text string) int { return f(text) }

// Chars estimates one token per four characters, rounded up.
var Chars Estimator = EstimatorFunc(func(text string) int {
	n := utf8.RuneCountInString(text)
	return (n + charsPerToken - 1) / charsPerToken
})

// Text returns the text of an item that counts toward the token budget.
func Text(it relay.Item) string {
	switch v := it.(type) {
	case relay.SystemMessage:
		return v.Content
	case relay.UserMessage:
		return v.Content
	case relay.AssistantMessage:
		return v.Content
	case relay.ToolCall:
		return v.Name + string(v.Arguments)
	case relay.ToolResult:
		return string(v.Output)
	default:
		return ""
	}
}

// Tokens returns the estimated token count of items. A nil estimator means
// Chars.
func Tokens(items []relay.Item, est Estimator) int {
	if est == nil {
		est = Chars
	}
	total := 0
	for _, it := range items {
		total += est.EstimateTokens(Text(it))
	}
	return total
}
