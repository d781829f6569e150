// Package dispatcher fans segment synthesis out over bounded worker groups
// and collects an ordered result set.
package dispatcher

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/narralabs/narra-core/internal/manifest"
	"github.com/narralabs/narra-core/internal/segmenter"
)

// ProcessFunc synthesizes one segment and returns the path of the stored
// audio artifact.
type ProcessFunc func(ctx context.Context, seg segmenter.Segment) (string, error)

// Dispatcher runs segments in groups of at most Parallelism, pausing between
// groups to stay under service rate limits.
type Dispatcher struct {
	parallelism int
	batchPause  time.Duration
	logger      *slog.Logger

	// pause is replaceable in tests.
	pause func(ctx context.Context, d time.Duration) error
}

// New builds a Dispatcher. Parallelism below one is clamped to one.
func New(parallelism int, batchPause time.Duration, logger *slog.Logger) *Dispatcher {
	if parallelism < 1 {
		parallelism = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		parallelism: parallelism,
		batchPause:  batchPause,
		logger:      logger.With(slog.String("component", "dispatcher")),
		pause:       sleepCtx,
	}
}

// Run processes every segment and returns one result per segment in the
// original index order. A segment that fails gets one synchronous retry after
// its group completes; a second failure marks the result failed without
// aborting the remaining groups. Cancellation is honored between groups.
func (d *Dispatcher) Run(ctx context.Context, segments []segmenter.Segment, process ProcessFunc) ([]manifest.Result, error) {
	results := make([]manifest.Result, len(segments))

	for offset := 0; offset < len(segments); offset += d.parallelism {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		end := offset + d.parallelism
		if end > len(segments) {
			end = len(segments)
		}
		group := segments[offset:end]

		d.logger.Info("dispatching group",
			slog.Int("first", group[0].Index),
			slog.Int("size", len(group)))

		errs := make([]error, len(group))
		var wg sync.WaitGroup
		for i, seg := range group {
			wg.Add(1)
			go func(i int, seg segmenter.Segment) {
				defer wg.Done()
				path, err := process(ctx, seg)
				if err != nil {
					errs[i] = err
					return
				}
				results[offset+i] = manifest.Result{Index: seg.Index, Path: path}
			}(i, seg)
		}
		wg.Wait()

		// One synchronous retry per failed segment, after the group has
		// settled.
		for i, seg := range group {
			if errs[i] == nil {
				continue
			}
			d.logger.Warn("segment failed, retrying once",
				slog.Int("segment", seg.Index),
				slog.String("error", errs[i].Error()))
			path, err := process(ctx, seg)
			if err != nil {
				d.logger.Error("segment failed permanently",
					slog.Int("segment", seg.Index),
					slog.String("error", err.Error()))
				results[offset+i] = manifest.Result{Index: seg.Index, Failed: true, Error: err.Error()}
				continue
			}
			results[offset+i] = manifest.Result{Index: seg.Index, Path: path}
		}

		if end < len(segments) && d.batchPause > 0 {
			if err := d.pause(ctx, d.batchPause); err != nil {
				return nil, err
			}
		}
	}

	// Cancellation during the last group must surface as an error, not as a
	// batch of failed segments.
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
