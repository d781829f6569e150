// Package expander lengthens a finished document when it falls short of the
// requested word target.
package expander

import (
	"context"
	"log/slog"
	"strings"

	"github.com/narralabs/narra-core/internal/prompt"
)

const (
	// DefaultThreshold is the fraction of the target below which expansion
	// kicks in.
	DefaultThreshold = 0.9

	// TailContextChars is how much of the document tail accompanies the
	// expansion request as context.
	TailContextChars = 3000
)

// GenerateFunc produces additional text for the given prompt.
type GenerateFunc func(ctx context.Context, p string) (string, error)

// Expander appends generated material to documents that miss their target.
type Expander struct {
	generate  GenerateFunc
	threshold float64
	logger    *slog.Logger
}

// New builds an Expander. A zero threshold means DefaultThreshold.
func New(generate GenerateFunc, threshold float64, logger *slog.Logger) *Expander {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Expander{
		generate:  generate,
		threshold: threshold,
		logger:    logger.With(slog.String("component", "expander")),
	}
}

// Threshold reports the fraction of the target below which expansion runs.
func (e *Expander) Threshold() float64 { return e.threshold }

// Expand returns the text unchanged when it already reaches the threshold of
// targetWords. Otherwise it requests one continuation and appends it. The
// pass runs at most once; a failed expansion keeps the shorter text rather
// than failing the run.
func (e *Expander) Expand(ctx context.Context, text, basePrompt string, targetWords int) (string, error) {
	if targetWords <= 0 {
		return text, nil
	}
	words := prompt.WordCount(text)
	if float64(words) >= e.threshold*float64(targetWords) {
		return text, nil
	}

	needed := targetWords - words
	e.logger.Info("document short of target, expanding",
		slog.Int("words", words),
		slog.Int("target", targetWords),
		slog.Int("needed", needed))

	addition, err := e.generate(ctx, prompt.BuildExpansionPrompt(basePrompt, tail(text), needed))
	if err != nil {
		if ctx.Err() != nil {
			return text, ctx.Err()
		}
		e.logger.Warn("expansion failed, keeping shorter text",
			slog.String("error", err.Error()))
		return text, nil
	}
	addition = strings.TrimSpace(addition)
	if addition == "" {
		return text, nil
	}
	return text + "\n\n" + addition, nil
}

func tail(text string) string {
	runes := []rune(text)
	if len(runes) <= TailContextChars {
		return text
	}
	return string(runes[len(runes)-TailContextChars:])
}
