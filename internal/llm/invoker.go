package llm

import (
	"context"
	"log/slog"

	"github.com/narralabs/narra-core/internal/cache"
	"github.com/narralabs/narra-core/internal/config"
	"github.com/narralabs/narra-core/internal/invoker"
)

// NewInvoker wraps a generator in the retry and caching layer. The request
// payload is the source material and the prompt carries the instructions;
// both feed the cache key.
func NewInvoker(gen Generator, cfg config.TextConfig, retry config.RetryConfig, store cache.Store, logger *slog.Logger) *invoker.Invoker[string] {
	call := func(ctx context.Context, req invoker.Request) (string, error) {
		p := req.Prompt
		if req.Payload != "" {
			p += "\n\nSource material:\n" + req.Payload
		}
		return gen.Generate(ctx, Request{
			Prompt:      p,
			MaxTokens:   cfg.MaxOutputTokens,
			Temperature: cfg.Temperature,
		})
	}
	policy := invoker.PolicyFromConfig(retry, cfg.TimeoutSeconds)
	return invoker.New(call, invoker.StringCodec{}, store, policy, logger)
}
