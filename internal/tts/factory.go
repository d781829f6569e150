package tts

import (
	"fmt"
	"log/slog"

	"github.com/narralabs/narra-core/internal/config"
)

// NewSynthesizer builds the synthesizer named by the speech service section.
func NewSynthesizer(cfg config.SpeechConfig, logger *slog.Logger) (Synthesizer, error) {
	switch cfg.Provider {
	case "mock":
		return &MockSynthesizer{}, nil
	case "http":
		return NewHTTPSynthesizer(cfg, logger)
	case "exec":
		return NewExecSynthesizer(cfg, logger)
	default:
		return nil, fmt.Errorf("tts: unknown provider %q", cfg.Provider)
	}
}
