// Package token approximates the cost of a text payload against external
// service limits.
package token

import "github.com/tiktoken-go/tokenizer"

// CharsPerToken is the heuristic ratio used when no codec is available.
// Holds for both Russian and English prose.
const CharsPerToken = 4

// Estimator counts tokens with tiktoken, falling back to a character
// heuristic when encoding is unavailable.
type Estimator struct {
	codec tokenizer.Codec
}

func NewEstimator() *Estimator {
	codec, err := tokenizer.Get(tokenizer.Cl100kBase)
	if err != nil {
		return &Estimator{}
	}
	return &Estimator{codec: codec}
}

// Count returns the estimated token count of text.
func (e *Estimator) Count(text string) int {
	if text == "" {
		return 0
	}
	if e.codec != nil {
		if ids, _, err := e.codec.Encode(text); err == nil {
			return len(ids)
		}
	}
	return len([]rune(text)) / CharsPerToken
}

// CharBudget converts a token budget into an approximate character budget.
func CharBudget(tokens int) int {
	return tokens * CharsPerToken
}
