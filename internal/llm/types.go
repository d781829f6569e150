// Package llm provides the text generation backends.
package llm

import "context"

// Request is one generation call.
type Request struct {
	Prompt      string
	MaxTokens   int
	Temperature float64
}

// Generator produces text for a prompt. Implementations classify their
// failures so the caller can decide whether to retry.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
	Name() string
}
