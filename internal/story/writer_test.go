package story

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/narralabs/narra-core/internal/config"
	"github.com/narralabs/narra-core/internal/expander"
	"github.com/narralabs/narra-core/internal/invoker"
	"github.com/narralabs/narra-core/internal/progress"
	"github.com/narralabs/narra-core/internal/token"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testPolicy() invoker.Policy {
	return invoker.Policy{
		MaxAttempts:     2,
		AttemptTimeout:  time.Second,
		MaxElapsed:      5 * time.Second,
		InitialInterval: time.Millisecond,
	}
}

func textConfig() config.TextConfig {
	return config.TextConfig{
		Provider:       "mock",
		Model:          "test-model",
		MaxInputTokens: 100, // 400 chars
		OverlapTokens:  10,  // 40 chars
		TargetWords:    200,
	}
}

// heuristic estimator: 4 chars per token
func testEstimator() *token.Estimator {
	return &token.Estimator{}
}

func newWriter(call invoker.CallFunc[string], cfg config.TextConfig) *Writer {
	inv := invoker.New(call, invoker.StringCodec{}, nil, testPolicy(), testLogger())
	w := NewWriter(inv, testEstimator(), cfg, nil, testLogger())
	w.interChunkPause = 0
	return w
}

func TestWriteShortTranscriptSingleCall(t *testing.T) {
	calls := 0
	w := newWriter(func(ctx context.Context, req invoker.Request) (string, error) {
		calls++
		return "a short generated story.", nil
	}, textConfig())

	story, err := w.Write(context.Background(), "short transcript.", "retell", progress.Discard)
	if err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if calls != 1 {
		t.Fatalf("short transcript must use one call, got %d", calls)
	}
	if story.ChunkCount != 1 {
		t.Fatalf("expected 1 chunk, got %d", story.ChunkCount)
	}
	if story.Text != "a short generated story." {
		t.Fatalf("unexpected text %q", story.Text)
	}
}

func TestWriteLongTranscriptChunksInOrder(t *testing.T) {
	transcript := strings.Repeat("A transcript sentence goes right here. ", 40) // ~1560 chars, 4 chunks
	var prompts []string
	w := newWriter(func(ctx context.Context, req invoker.Request) (string, error) {
		prompts = append(prompts, req.Prompt)
		return fmt.Sprintf("Output piece %d with several generated words.", len(prompts)), nil
	}, textConfig())

	story, err := w.Write(context.Background(), transcript, "retell", progress.Discard)
	if err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if story.ChunkCount < 2 {
		t.Fatalf("expected multiple chunks, got %d", story.ChunkCount)
	}
	if !strings.Contains(prompts[0], "part 1 of") {
		t.Fatalf("first prompt missing position marker: %q", prompts[0])
	}
	if strings.Contains(prompts[0], "Context from the previous part") {
		t.Fatalf("first prompt must not carry a summary")
	}
	for i := 1; i < len(prompts); i++ {
		if !strings.Contains(prompts[i], "Context from the previous part") {
			t.Fatalf("prompt %d missing the carried summary", i)
		}
	}
	for i := 1; i <= story.ChunkCount; i++ {
		if !strings.Contains(story.Text, fmt.Sprintf("Output piece %d", i)) {
			t.Fatalf("merged story missing piece %d", i)
		}
	}
}

func TestWriteChunkFailureAbortsRun(t *testing.T) {
	transcript := strings.Repeat("A transcript sentence goes right here. ", 40)
	calls := 0
	w := newWriter(func(ctx context.Context, req invoker.Request) (string, error) {
		calls++
		if calls == 2 {
			return "", invoker.NewServiceError(invoker.KindValidation, "rejected", nil)
		}
		return "fine output.", nil
	}, textConfig())

	_, err := w.Write(context.Background(), transcript, "retell", progress.Discard)
	if err == nil {
		t.Fatalf("expected chunk failure to abort the run")
	}
	if !strings.Contains(err.Error(), "chunk 2") {
		t.Fatalf("error must name the failing chunk: %v", err)
	}
}

func TestWriteEmitsChunkProgress(t *testing.T) {
	transcript := strings.Repeat("A transcript sentence goes right here. ", 40)
	w := newWriter(func(ctx context.Context, req invoker.Request) (string, error) {
		return "chunk output.", nil
	}, textConfig())

	var events []progress.Event
	sink := progress.Func(func(e progress.Event, msg string) {
		events = append(events, e)
	})
	story, err := w.Write(context.Background(), transcript, "retell", sink)
	if err != nil {
		t.Fatalf("write failed: %v", err)
	}
	chunkEvents := 0
	for _, e := range events {
		if e == progress.EventChunkComplete {
			chunkEvents++
		}
	}
	if chunkEvents != story.ChunkCount {
		t.Fatalf("expected %d chunk events, got %d", story.ChunkCount, chunkEvents)
	}
}

func TestWriteExpandsShortStory(t *testing.T) {
	cfg := textConfig()
	cfg.TargetWords = 1000

	gen := func(ctx context.Context, req invoker.Request) (string, error) {
		if strings.Contains(req.Prompt, "additional words") {
			return "appended continuation text.", nil
		}
		return "a very short story.", nil
	}
	inv := invoker.New(gen, invoker.StringCodec{}, nil, testPolicy(), testLogger())
	exp := expander.New(func(ctx context.Context, p string) (string, error) {
		return inv.Invoke(ctx, invoker.Request{Prompt: p, Model: cfg.Model})
	}, 0, testLogger())
	w := NewWriter(inv, testEstimator(), cfg, exp, testLogger())
	w.interChunkPause = 0

	story, err := w.Write(context.Background(), "short transcript.", "retell", progress.Discard)
	if err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if !strings.HasSuffix(story.Text, "appended continuation text.") {
		t.Fatalf("expected expansion to append, got %q", story.Text)
	}
}

func TestWriteExpandEventTracksCustomThreshold(t *testing.T) {
	cfg := textConfig()
	cfg.TargetWords = 10

	gen := func(ctx context.Context, req invoker.Request) (string, error) {
		if strings.Contains(req.Prompt, "additional words") {
			t.Errorf("expansion must not run above its threshold")
		}
		return "one two three four five six seven eight.", nil
	}
	inv := invoker.New(gen, invoker.StringCodec{}, nil, testPolicy(), testLogger())
	// Eight of ten words is under the default trigger but over this one.
	exp := expander.New(func(ctx context.Context, p string) (string, error) {
		return inv.Invoke(ctx, invoker.Request{Prompt: p, Model: cfg.Model})
	}, 0.5, testLogger())
	w := NewWriter(inv, testEstimator(), cfg, exp, testLogger())
	w.interChunkPause = 0

	var events []progress.Event
	sink := progress.Func(func(e progress.Event, msg string) {
		events = append(events, e)
	})

	story, err := w.Write(context.Background(), "short transcript.", "retell", sink)
	if err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if story.Text != "one two three four five six seven eight." {
		t.Fatalf("text must stay unexpanded, got %q", story.Text)
	}
	for _, e := range events {
		if e == progress.EventExpandStart {
			t.Fatalf("expand event fired above the expander's threshold")
		}
	}
}

func TestWriteCancelledBetweenChunks(t *testing.T) {
	transcript := strings.Repeat("A transcript sentence goes right here. ", 40)
	ctx, cancel := context.WithCancel(context.Background())

	w := newWriter(func(ctx context.Context, req invoker.Request) (string, error) {
		cancel()
		return "output.", nil
	}, textConfig())
	w.interChunkPause = time.Millisecond
	w.pause = func(ctx context.Context, d time.Duration) error { return ctx.Err() }

	if _, err := w.Write(ctx, transcript, "retell", progress.Discard); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
