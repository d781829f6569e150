package tts

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/narralabs/narra-core/internal/config"
	"github.com/narralabs/narra-core/internal/invoker"
)

func speechConfig(endpoint string) config.SpeechConfig {
	return config.SpeechConfig{
		Provider: "http",
		Endpoint: endpoint,
		APIKey:   "test-key",
		FolderID: "folder-1",
	}
}

func TestHTTPSynthesizeSuccess(t *testing.T) {
	var gotAuth, gotVoice, gotFolder string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		gotVoice = r.PostFormValue("voice")
		gotFolder = r.PostFormValue("folderId")
		w.Write([]byte("audio-bytes"))
	}))
	defer srv.Close()

	s, err := NewHTTPSynthesizer(speechConfig(srv.URL), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	audio, err := s.Synthesize(context.Background(), Request{Text: "hello", Voice: "alena", Speed: 1.0})
	if err != nil {
		t.Fatalf("synthesize failed: %v", err)
	}
	if string(audio) != "audio-bytes" {
		t.Fatalf("unexpected audio %q", audio)
	}
	if gotAuth != "Api-Key test-key" {
		t.Fatalf("unexpected auth header %q", gotAuth)
	}
	if gotVoice != "alena" || gotFolder != "folder-1" {
		t.Fatalf("form fields not forwarded: voice=%q folder=%q", gotVoice, gotFolder)
	}
}

func TestHTTPSynthesizeClassifiesStatuses(t *testing.T) {
	cases := []struct {
		status int
		kind   invoker.Kind
	}{
		{http.StatusUnauthorized, invoker.KindAuth},
		{http.StatusBadRequest, invoker.KindValidation},
		{http.StatusTooManyRequests, invoker.KindRateLimit},
		{http.StatusInternalServerError, invoker.KindUnavailable},
	}
	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
		}))
		s, err := NewHTTPSynthesizer(speechConfig(srv.URL), nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		_, err = s.Synthesize(context.Background(), Request{Text: "x", Voice: "v"})
		srv.Close()
		var svcErr *invoker.ServiceError
		if !errors.As(err, &svcErr) {
			t.Fatalf("status %d: expected service error, got %v", tc.status, err)
		}
		if svcErr.Kind != tc.kind {
			t.Fatalf("status %d: expected kind %s, got %s", tc.status, tc.kind, svcErr.Kind)
		}
	}
}

func TestHTTPSynthesizeEmptyBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	s, err := NewHTTPSynthesizer(speechConfig(srv.URL), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := s.Synthesize(context.Background(), Request{Text: "x", Voice: "v"}); err == nil {
		t.Fatalf("expected error for empty audio body")
	}
}

func TestNewHTTPSynthesizerRequiresCredentials(t *testing.T) {
	if _, err := NewHTTPSynthesizer(config.SpeechConfig{Endpoint: "http://x"}, nil); err == nil {
		t.Fatalf("expected error without api key")
	}
	if _, err := NewHTTPSynthesizer(config.SpeechConfig{APIKey: "k"}, nil); err == nil {
		t.Fatalf("expected error without endpoint")
	}
}
