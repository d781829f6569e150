package tts

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"

	shellwords "github.com/mattn/go-shellwords"

	"github.com/narralabs/narra-core/internal/config"
	"github.com/narralabs/narra-core/internal/invoker"
)

// ExecSynthesizer shells out to a local synthesis command. The command line
// may reference {voice}, {speed} and {lang}; the text arrives on stdin and
// the audio is expected on stdout.
type ExecSynthesizer struct {
	argv   []string
	logger *slog.Logger
}

// NewExecSynthesizer parses the configured command line once at startup.
func NewExecSynthesizer(cfg config.SpeechConfig, logger *slog.Logger) (*ExecSynthesizer, error) {
	if cfg.Command == "" {
		return nil, fmt.Errorf("tts: exec command required")
	}
	argv, err := shellwords.Parse(cfg.Command)
	if err != nil {
		return nil, fmt.Errorf("tts: parse exec command: %w", err)
	}
	if len(argv) == 0 {
		return nil, fmt.Errorf("tts: exec command is empty after parsing")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ExecSynthesizer{
		argv:   argv,
		logger: logger.With(slog.String("component", "tts.exec")),
	}, nil
}

func (s *ExecSynthesizer) Name() string { return "exec" }

func (s *ExecSynthesizer) Synthesize(ctx context.Context, req Request) ([]byte, error) {
	argv := make([]string, len(s.argv))
	for i, arg := range s.argv {
		arg = strings.ReplaceAll(arg, "{voice}", req.Voice)
		arg = strings.ReplaceAll(arg, "{speed}", strconv.FormatFloat(req.Speed, 'f', -1, 64))
		arg = strings.ReplaceAll(arg, "{lang}", req.Lang)
		argv[i] = arg
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Stdin = strings.NewReader(req.Text)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, invoker.NewServiceError(invoker.KindTimeout, "synthesis command timed out", err)
		}
		return nil, invoker.NewServiceError(invoker.KindUnavailable,
			fmt.Sprintf("synthesis command failed: %s", strings.TrimSpace(stderr.String())), err)
	}
	if stdout.Len() == 0 {
		return nil, invoker.NewServiceError(invoker.KindUnknown, "synthesis command produced no audio", nil)
	}
	return stdout.Bytes(), nil
}
