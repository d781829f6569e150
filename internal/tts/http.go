package tts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/narralabs/narra-core/internal/config"
	"github.com/narralabs/narra-core/internal/invoker"
)

// HTTPSynthesizer posts form-encoded synthesis requests to a SpeechKit-style
// endpoint and returns the encoded audio body.
type HTTPSynthesizer struct {
	endpoint string
	apiKey   string
	folderID string
	client   *http.Client
	logger   *slog.Logger
}

// NewHTTPSynthesizer builds a synthesizer from the speech service section.
// The attempt deadline comes from the caller's context, so the embedded
// client carries no timeout of its own.
func NewHTTPSynthesizer(cfg config.SpeechConfig, logger *slog.Logger) (*HTTPSynthesizer, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("tts: http endpoint required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("tts: http api key required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPSynthesizer{
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		folderID: cfg.FolderID,
		client:   &http.Client{},
		logger:   logger.With(slog.String("component", "tts.http")),
	}, nil
}

func (s *HTTPSynthesizer) Name() string { return "http" }

func (s *HTTPSynthesizer) Synthesize(ctx context.Context, req Request) ([]byte, error) {
	form := url.Values{}
	form.Set("text", req.Text)
	form.Set("voice", req.Voice)
	form.Set("format", "mp3")
	if req.Emotion != "" {
		form.Set("emotion", req.Emotion)
	}
	if req.Speed > 0 {
		form.Set("speed", strconv.FormatFloat(req.Speed, 'f', -1, 64))
	}
	if req.Lang != "" {
		form.Set("lang", req.Lang)
	}
	if s.folderID != "" {
		form.Set("folderId", s.folderID)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint,
		strings.NewReader(form.Encode()))
	if err != nil {
		return nil, invoker.NewServiceError(invoker.KindValidation, "build synthesis request", err)
	}
	httpReq.Header.Set("Authorization", "Api-Key "+s.apiKey)
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, invoker.NewServiceError(invoker.KindTimeout, "synthesis request timed out", err)
		}
		return nil, invoker.NewServiceError(invoker.KindUnavailable, "synthesis request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, classifyStatus(resp.StatusCode, string(body))
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, invoker.NewServiceError(invoker.KindUnavailable, "read synthesis response", err)
	}
	if len(audio) == 0 {
		return nil, invoker.NewServiceError(invoker.KindUnknown, "empty audio response", nil)
	}
	return audio, nil
}

func classifyStatus(status int, body string) error {
	msg := fmt.Sprintf("synthesis status %d: %s", status, body)
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return invoker.NewServiceError(invoker.KindAuth, msg, nil)
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		return invoker.NewServiceError(invoker.KindValidation, msg, nil)
	case status == http.StatusTooManyRequests:
		return invoker.NewServiceError(invoker.KindRateLimit, msg, nil)
	case status >= 500:
		return invoker.NewServiceError(invoker.KindUnavailable, msg, nil)
	}
	return invoker.NewServiceError(invoker.KindUnknown, msg, nil)
}
