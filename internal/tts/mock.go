package tts

import (
	"context"
	"fmt"
	"sync/atomic"
)

// MockSynthesizer returns a deterministic fake audio payload. Useful for
// development and pipeline tests. The dispatcher calls it from several
// goroutines, so the call counter is atomic.
type MockSynthesizer struct {
	// Err, when set, is returned for every request.
	Err error

	calls atomic.Int64
}

func (s *MockSynthesizer) Name() string { return "mock" }

func (s *MockSynthesizer) Synthesize(_ context.Context, req Request) ([]byte, error) {
	s.calls.Add(1)
	if s.Err != nil {
		return nil, s.Err
	}
	return []byte(fmt.Sprintf("MOCK-AUDIO voice=%s chars=%d", req.Voice, len(req.Text))), nil
}

// Calls reports how many requests the mock has served.
func (s *MockSynthesizer) Calls() int { return int(s.calls.Load()) }
