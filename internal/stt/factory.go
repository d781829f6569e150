package stt

import (
	"fmt"
	"log/slog"

	"github.com/narralabs/narra-core/internal/config"
)

// NewRecognizer builds the recognizer named by the transcribe section.
func NewRecognizer(cfg config.TranscribeConfig, logger *slog.Logger) (Recognizer, error) {
	switch cfg.Mode {
	case "mock":
		return &MockRecognizer{}, nil
	case "exec":
		return NewExecRecognizer(cfg, logger)
	default:
		return nil, fmt.Errorf("stt: unknown mode %q", cfg.Mode)
	}
}
