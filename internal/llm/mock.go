package llm

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
)

// MockGenerator is a deterministic generator for development and tests. It
// echoes a bounded slice of the prompt so pipelines produce inspectable
// output without network access. The call counter is atomic so the mock is
// safe under concurrent callers.
type MockGenerator struct {
	// Response, when set, is returned verbatim for every request.
	Response string

	// Err, when set, is returned for every request.
	Err error

	calls atomic.Int64
}

func (g *MockGenerator) Name() string { return "mock" }

func (g *MockGenerator) Generate(_ context.Context, req Request) (string, error) {
	n := g.calls.Add(1)
	if g.Err != nil {
		return "", g.Err
	}
	if g.Response != "" {
		return g.Response, nil
	}
	head := req.Prompt
	if len(head) > 200 {
		head = head[:200]
	}
	head = strings.ReplaceAll(head, "\n", " ")
	return fmt.Sprintf("Generated passage %d. %s", n, head), nil
}

// Calls reports how many requests the mock has served.
func (g *MockGenerator) Calls() int { return int(g.calls.Load()) }
