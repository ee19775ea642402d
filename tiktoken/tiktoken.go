// Package tiktoken estimates token counts with a BPE tokenizer.
package tiktoken

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

// DefaultEncoding is the encoding used by GPT-4 class models.
const DefaultEncoding = "cl100k_base"

// Estimator counts tokens exactly for one encoding. It satisfies
// history.Estimator and is safe for concurrent use.
type Estimator struct {
	enc *tiktoken.Tiktoken
}

// New loads the named encoding. An empty name selects DefaultEncoding.
// Loading may download the vocabulary on first use.
func New(encoding string) (*Estimator, error) {
	if encoding == "" {
		encoding = DefaultEncoding
	}
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("load encoding %q: %w", encoding, err)
	}
	return &Estimator{enc: enc}, nil
}

// EstimateTokens returns the number of tokens in text.
func (e *Estimator) EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	return len(e.enc.Encode(text, nil, nil))
}
