package chat

import (
	"strings"
	"unicode/utf8"
)

// Complexity is a coarse estimate of how much reasoning a message needs.
type Complexity string

const (
	Simple  Complexity = "simple"
	Complex Complexity = "complex"
)

const (
	complexRunes = 280
	complexLines = 4
)

var complexKeywords = []string{
	"analyze",
	"analyse",
	"compare",
	"explain why",
	"step by step",
	"plan",
	"summarize",
	"summarise",
	"recommend",
	"trade-off",
	"tradeoff",
}

// Classify estimates the complexity of a user message from its length, line
// count and keywords.
func Classify(text string) Complexity {
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) >= complexRunes {
		return Complex
	}
	if strings.Count(text, "\n")+1 >= complexLines {
		return Complex
	}
	lower := strings.ToLower(text)
	for _, kw := range complexKeywords {
		if strings.Contains(lower, kw) {
			return Complex
		}
	}
	return Simple
}
