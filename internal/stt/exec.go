package stt

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"

	shellwords "github.com/mattn/go-shellwords"

	"github.com/narralabs/narra-core/internal/config"
	"github.com/narralabs/narra-core/internal/invoker"
)

// ExecRecognizer shells out to a local transcription command such as a
// whisper CLI. The command line may reference {file} and {lang}; the
// transcript is expected on stdout.
type ExecRecognizer struct {
	argv   []string
	lang   string
	logger *slog.Logger
}

// NewExecRecognizer parses the configured command line once at startup.
func NewExecRecognizer(cfg config.TranscribeConfig, logger *slog.Logger) (*ExecRecognizer, error) {
	if cfg.Command == "" {
		return nil, fmt.Errorf("stt: exec command required")
	}
	argv, err := shellwords.Parse(cfg.Command)
	if err != nil {
		return nil, fmt.Errorf("stt: parse exec command: %w", err)
	}
	if len(argv) == 0 {
		return nil, fmt.Errorf("stt: exec command is empty after parsing")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ExecRecognizer{
		argv:   argv,
		lang:   cfg.Language,
		logger: logger.With(slog.String("component", "stt.exec")),
	}, nil
}

func (r *ExecRecognizer) Name() string { return "exec" }

func (r *ExecRecognizer) Transcribe(ctx context.Context, audioPath string) (string, error) {
	argv := make([]string, len(r.argv))
	for i, arg := range r.argv {
		arg = strings.ReplaceAll(arg, "{file}", audioPath)
		arg = strings.ReplaceAll(arg, "{lang}", r.lang)
		argv[i] = arg
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", invoker.NewServiceError(invoker.KindTimeout, "transcription command timed out", err)
		}
		return "", invoker.NewServiceError(invoker.KindUnavailable,
			fmt.Sprintf("transcription command failed: %s", strings.TrimSpace(stderr.String())), err)
	}

	transcript := strings.TrimSpace(stdout.String())
	if transcript == "" {
		return "", invoker.NewServiceError(invoker.KindUnknown, "transcription produced no text", nil)
	}
	return transcript, nil
}
