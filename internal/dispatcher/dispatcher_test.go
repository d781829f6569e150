package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/narralabs/narra-core/internal/segmenter"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func makeSegments(n int) []segmenter.Segment {
	segments := make([]segmenter.Segment, n)
	for i := range segments {
		segments[i] = segmenter.Segment{Text: fmt.Sprintf("segment %d", i), Index: i}
	}
	return segments
}

func TestRunOrderedUnderRandomLatency(t *testing.T) {
	d := New(5, 0, testLogger())
	segments := makeSegments(10)

	results, err := d.Run(context.Background(), segments, func(ctx context.Context, seg segmenter.Segment) (string, error) {
		time.Sleep(time.Duration(rand.Intn(10)) * time.Millisecond)
		return fmt.Sprintf("audio/speech_%04d.mp3", seg.Index), nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 10 {
		t.Fatalf("expected 10 results, got %d", len(results))
	}
	for i, r := range results {
		if r.Index != i {
			t.Fatalf("result %d carries index %d", i, r.Index)
		}
		if r.Path != fmt.Sprintf("audio/speech_%04d.mp3", i) {
			t.Fatalf("result %d has path %q", i, r.Path)
		}
	}
}

func TestRunBoundsConcurrency(t *testing.T) {
	d := New(3, 0, testLogger())
	var active, peak int32

	_, err := d.Run(context.Background(), makeSegments(12), func(ctx context.Context, seg segmenter.Segment) (string, error) {
		n := atomic.AddInt32(&active, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt32(&active, -1)
		return "p", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := atomic.LoadInt32(&peak); got > 3 {
		t.Fatalf("concurrency exceeded the bound: %d", got)
	}
}

func TestRunRetriesFailedSegmentOnce(t *testing.T) {
	d := New(5, 0, testLogger())
	var mu sync.Mutex
	attempts := map[int]int{}

	results, err := d.Run(context.Background(), makeSegments(3), func(ctx context.Context, seg segmenter.Segment) (string, error) {
		mu.Lock()
		attempts[seg.Index]++
		n := attempts[seg.Index]
		mu.Unlock()
		if seg.Index == 1 && n == 1 {
			return "", errors.New("transient")
		}
		return "path", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if attempts[1] != 2 {
		t.Fatalf("expected 2 attempts for segment 1, got %d", attempts[1])
	}
	if results[1].Failed {
		t.Fatalf("retried segment must succeed")
	}
}

func TestRunMarksPermanentFailureAndContinues(t *testing.T) {
	d := New(2, 0, testLogger())

	results, err := d.Run(context.Background(), makeSegments(4), func(ctx context.Context, seg segmenter.Segment) (string, error) {
		if seg.Index == 1 {
			return "", errors.New("always fails")
		}
		return "path", nil
	})
	if err != nil {
		t.Fatalf("one bad segment must not abort the run: %v", err)
	}
	if !results[1].Failed || results[1].Error == "" {
		t.Fatalf("segment 1 must be marked failed with its error")
	}
	for _, i := range []int{0, 2, 3} {
		if results[i].Failed {
			t.Fatalf("segment %d should have succeeded", i)
		}
	}
}

func TestRunPausesBetweenGroupsOnly(t *testing.T) {
	d := New(2, 100*time.Millisecond, testLogger())
	pauses := 0
	d.pause = func(ctx context.Context, dur time.Duration) error {
		pauses++
		if dur != 100*time.Millisecond {
			t.Fatalf("unexpected pause duration %v", dur)
		}
		return nil
	}

	if _, err := d.Run(context.Background(), makeSegments(6), func(ctx context.Context, seg segmenter.Segment) (string, error) {
		return "p", nil
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Three groups of two mean two pauses, never one after the last group.
	if pauses != 2 {
		t.Fatalf("expected 2 pauses, got %d", pauses)
	}
}

func TestRunHonorsCancellationBetweenGroups(t *testing.T) {
	d := New(1, 0, testLogger())
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	_, err := d.Run(ctx, makeSegments(5), func(ctx context.Context, seg segmenter.Segment) (string, error) {
		calls++
		cancel()
		return "p", nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected the run to stop after the first group, got %d calls", calls)
	}
}

func TestRunCancelledDuringFinalGroup(t *testing.T) {
	d := New(2, 0, testLogger())
	ctx, cancel := context.WithCancel(context.Background())

	results, err := d.Run(ctx, makeSegments(2), func(ctx context.Context, seg segmenter.Segment) (string, error) {
		cancel()
		return "", ctx.Err()
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("cancellation in the last group must surface as an error, got results=%v err=%v", results, err)
	}
}

func TestRunEmptySegments(t *testing.T) {
	d := New(5, 0, testLogger())
	results, err := d.Run(context.Background(), nil, func(ctx context.Context, seg segmenter.Segment) (string, error) {
		t.Fatalf("process must not run without segments")
		return "", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected no results, got %d", len(results))
	}
}
