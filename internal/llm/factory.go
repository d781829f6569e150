package llm

import (
	"fmt"
	"log/slog"

	"github.com/narralabs/narra-core/internal/config"
)

// NewGenerator builds the generator named by the text service section.
func NewGenerator(cfg config.TextConfig, logger *slog.Logger) (Generator, error) {
	switch cfg.Provider {
	case "mock":
		return &MockGenerator{}, nil
	case "anthropic":
		return NewAnthropicGenerator(cfg, logger)
	default:
		return nil, fmt.Errorf("llm: unknown provider %q", cfg.Provider)
	}
}
