// Package stt provides the audio transcription backends.
package stt

import "context"

// Recognizer turns an audio file into a transcript.
type Recognizer interface {
	Transcribe(ctx context.Context, audioPath string) (string, error)
	Name() string
}
