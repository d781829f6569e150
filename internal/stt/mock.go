package stt

import (
	"context"
	"fmt"
	"path/filepath"
)

// MockRecognizer returns a fixed transcript, for development and tests.
type MockRecognizer struct {
	// Transcript, when set, is returned verbatim.
	Transcript string

	// Err, when set, is returned for every request.
	Err error
}

func (r *MockRecognizer) Name() string { return "mock" }

func (r *MockRecognizer) Transcribe(_ context.Context, audioPath string) (string, error) {
	if r.Err != nil {
		return "", r.Err
	}
	if r.Transcript != "" {
		return r.Transcript, nil
	}
	return fmt.Sprintf("Mock transcript of %s.", filepath.Base(audioPath)), nil
}
