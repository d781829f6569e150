package tts

import (
	"context"
	"log/slog"

	"github.com/narralabs/narra-core/internal/cache"
	"github.com/narralabs/narra-core/internal/config"
	"github.com/narralabs/narra-core/internal/invoker"
)

// Invoker runs synthesis calls through the retry and caching layer. The
// configured voice rides on every request as the model identifier, so cache
// keys distinguish voices and a voice change never serves stale audio.
type Invoker struct {
	inv   *invoker.Invoker[[]byte]
	voice string
}

// NewInvoker wraps a synthesizer in the retry and caching layer.
func NewInvoker(syn Synthesizer, cfg config.SpeechConfig, retry config.RetryConfig, store cache.Store, logger *slog.Logger) *Invoker {
	call := func(ctx context.Context, req invoker.Request) ([]byte, error) {
		return syn.Synthesize(ctx, Request{
			Text:    req.Payload,
			Voice:   req.Model,
			Emotion: cfg.Emotion,
			Speed:   cfg.Speed,
			Lang:    cfg.Language,
		})
	}
	policy := invoker.PolicyFromConfig(retry, cfg.TimeoutSeconds)
	return &Invoker{
		inv:   invoker.New(call, invoker.BytesCodec{}, store, policy, logger),
		voice: cfg.Voice,
	}
}

// Synthesize produces audio for one segment of text.
func (i *Invoker) Synthesize(ctx context.Context, text string) ([]byte, error) {
	return i.inv.Invoke(ctx, invoker.Request{Payload: text, Model: i.voice})
}
