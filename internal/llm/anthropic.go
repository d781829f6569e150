package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/narralabs/narra-core/internal/config"
	"github.com/narralabs/narra-core/internal/invoker"
)

// AnthropicGenerator generates text through the Anthropic Messages API.
type AnthropicGenerator struct {
	client anthropic.Client
	model  string
	logger *slog.Logger
}

// NewAnthropicGenerator builds a generator from the text service section.
func NewAnthropicGenerator(cfg config.TextConfig, logger *slog.Logger) (*AnthropicGenerator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("llm: anthropic api key required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AnthropicGenerator{
		client: anthropic.NewClient(option.WithAPIKey(cfg.APIKey)),
		model:  cfg.Model,
		logger: logger.With(slog.String("component", "llm.anthropic")),
	}, nil
}

func (g *AnthropicGenerator) Name() string { return "anthropic" }

func (g *AnthropicGenerator) Generate(ctx context.Context, req Request) (string, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(g.model),
		MaxTokens: int64(req.MaxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
	}
	if req.Temperature > 0 {
		params.Temperature = anthropic.Float(req.Temperature)
	}

	resp, err := g.client.Messages.New(ctx, params)
	if err != nil {
		return "", classifyAnthropicError(err)
	}
	if len(resp.Content) == 0 {
		return "", invoker.NewServiceError(invoker.KindUnknown, "empty response content", nil)
	}
	return resp.Content[0].Text, nil
}

// classifyAnthropicError maps API failures onto the retry taxonomy.
func classifyAnthropicError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return invoker.NewServiceError(invoker.KindTimeout, "anthropic request timed out", err)
	}
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == 401 || apiErr.StatusCode == 403:
			return invoker.NewServiceError(invoker.KindAuth, "anthropic auth rejected", err)
		case apiErr.StatusCode == 400 || apiErr.StatusCode == 422:
			return invoker.NewServiceError(invoker.KindValidation, "anthropic rejected request", err)
		case apiErr.StatusCode == 429:
			return invoker.NewServiceError(invoker.KindRateLimit, "anthropic rate limited", err)
		case apiErr.StatusCode >= 500:
			return invoker.NewServiceError(invoker.KindUnavailable, "anthropic unavailable", err)
		}
	}
	return invoker.NewServiceError(invoker.KindUnknown, "anthropic request failed", err)
}
