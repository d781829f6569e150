// Package story turns a transcript into a long-form document by generating
// overlapping chunks sequentially and merging the results.
package story

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/narralabs/narra-core/internal/chunker"
	"github.com/narralabs/narra-core/internal/config"
	"github.com/narralabs/narra-core/internal/expander"
	"github.com/narralabs/narra-core/internal/invoker"
	"github.com/narralabs/narra-core/internal/merger"
	"github.com/narralabs/narra-core/internal/progress"
	"github.com/narralabs/narra-core/internal/prompt"
	"github.com/narralabs/narra-core/internal/token"
)

// DefaultInterChunkPause spaces sequential generation calls apart.
const DefaultInterChunkPause = 2 * time.Second

// Story is the finished document.
type Story struct {
	Text       string
	WordCount  int
	ChunkCount int
}

// Writer drives chunked generation. Chunks are generated strictly in order
// because each prompt carries a summary of the previous output.
type Writer struct {
	invoke   *invoker.Invoker[string]
	est      *token.Estimator
	cfg      config.TextConfig
	expander *expander.Expander
	logger   *slog.Logger

	interChunkPause time.Duration
	pause           func(ctx context.Context, d time.Duration) error
}

// NewWriter builds a Writer. The expander may be nil to skip length
// enforcement.
func NewWriter(inv *invoker.Invoker[string], est *token.Estimator, cfg config.TextConfig, exp *expander.Expander, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{
		invoke:          inv,
		est:             est,
		cfg:             cfg,
		expander:        exp,
		logger:          logger.With(slog.String("component", "story")),
		interChunkPause: DefaultInterChunkPause,
		pause:           sleepCtx,
	}
}

// Write produces the document. Short transcripts go through a single call;
// longer ones are split into overlapping chunks processed in order, each
// prompt carrying the target word budget and a summary of the previous
// output. Any chunk failure aborts the run.
func (w *Writer) Write(ctx context.Context, transcript, basePrompt string, sink progress.Sink) (Story, error) {
	if sink == nil {
		sink = progress.Discard
	}

	tokens := w.est.Count(transcript)
	if tokens <= w.cfg.MaxInputTokens {
		return w.writeSingle(ctx, transcript, basePrompt, sink)
	}

	chunks, err := chunker.Split(transcript, chunker.Config{
		MaxChunkChars: token.CharBudget(w.cfg.MaxInputTokens),
		OverlapChars:  token.CharBudget(w.cfg.OverlapTokens),
	})
	if err != nil {
		return Story{}, fmt.Errorf("story: split transcript: %w", err)
	}

	w.logger.Info("transcript split for generation",
		slog.Int("tokens", tokens),
		slog.Int("chunks", len(chunks)))

	outputs := make([]string, 0, len(chunks))
	wordsSoFar := 0
	summary := ""
	for _, c := range chunks {
		target := prompt.TargetWordsForChunk(w.cfg.TargetWords, wordsSoFar, len(chunks), c.Index)
		p := prompt.BuildChunkPrompt(basePrompt, prompt.Context{
			ChunkIndex:      c.Index,
			TotalChunks:     len(chunks),
			PreviousSummary: summary,
			TargetWords:     target,
		})

		out, err := w.invoke.Invoke(ctx, invoker.Request{
			Payload: c.Text,
			Prompt:  p,
			Model:   w.cfg.Model,
		})
		if err != nil {
			return Story{}, fmt.Errorf("story: chunk %d of %d: %w", c.Index+1, len(chunks), err)
		}

		outputs = append(outputs, out)
		wordsSoFar += prompt.WordCount(out)
		summary = prompt.ExtractSummary(out, prompt.SummaryMaxChars)

		sink.OnEvent(progress.EventChunkComplete,
			fmt.Sprintf("chunk %d/%d, %d words so far", c.Index+1, len(chunks), wordsSoFar))
		w.logger.Info("chunk generated",
			slog.Int("chunk", c.Index+1),
			slog.Int("total", len(chunks)),
			slog.Int("words_so_far", wordsSoFar))

		if c.Index < len(chunks)-1 && w.interChunkPause > 0 {
			if err := w.pause(ctx, w.interChunkPause); err != nil {
				return Story{}, err
			}
		}
	}

	merged := merger.Merge(outputs)
	return w.finish(ctx, merged, basePrompt, len(chunks), sink)
}

func (w *Writer) writeSingle(ctx context.Context, transcript, basePrompt string, sink progress.Sink) (Story, error) {
	p := prompt.BuildChunkPrompt(basePrompt, prompt.Context{
		ChunkIndex:  0,
		TotalChunks: 1,
		TargetWords: w.cfg.TargetWords,
	})
	out, err := w.invoke.Invoke(ctx, invoker.Request{
		Payload: transcript,
		Prompt:  p,
		Model:   w.cfg.Model,
	})
	if err != nil {
		return Story{}, fmt.Errorf("story: generate: %w", err)
	}
	sink.OnEvent(progress.EventChunkComplete, "single pass complete")
	return w.finish(ctx, out, basePrompt, 1, sink)
}

func (w *Writer) finish(ctx context.Context, text, basePrompt string, chunkCount int, sink progress.Sink) (Story, error) {
	if w.expander != nil {
		before := prompt.WordCount(text)
		if float64(before) < w.expander.Threshold()*float64(w.cfg.TargetWords) {
			sink.OnEvent(progress.EventExpandStart,
				fmt.Sprintf("%d of %d words, expanding", before, w.cfg.TargetWords))
		}
		expanded, err := w.expander.Expand(ctx, text, basePrompt, w.cfg.TargetWords)
		if err != nil {
			return Story{}, err
		}
		text = expanded
	}
	return Story{
		Text:       text,
		WordCount:  prompt.WordCount(text),
		ChunkCount: chunkCount,
	}, nil
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
