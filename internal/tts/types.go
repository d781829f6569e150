// Package tts provides the speech synthesis backends.
package tts

import "context"

// Request is one synthesis call.
type Request struct {
	Text    string
	Voice   string
	Emotion string
	Speed   float64
	Lang    string
}

// Synthesizer renders text to encoded audio. Implementations classify their
// failures so the caller can decide whether to retry.
type Synthesizer interface {
	Synthesize(ctx context.Context, req Request) ([]byte, error)
	Name() string
}
