package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/narralabs/narra-core/internal/artifacts"
	"github.com/narralabs/narra-core/internal/bus"
	"github.com/narralabs/narra-core/internal/config"
	"github.com/narralabs/narra-core/internal/dispatcher"
	"github.com/narralabs/narra-core/internal/invoker"
	"github.com/narralabs/narra-core/internal/jobstore"
	"github.com/narralabs/narra-core/internal/natsserver"
	"github.com/narralabs/narra-core/internal/pipeline"
	"github.com/narralabs/narra-core/internal/protocol"
	"github.com/narralabs/narra-core/internal/session"
	"github.com/narralabs/narra-core/internal/story"
	"github.com/narralabs/narra-core/internal/stt"
	"github.com/narralabs/narra-core/internal/token"
	"github.com/narralabs/narra-core/internal/tts"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startBus(t *testing.T) *bus.Client {
	t.Helper()
	srv, err := natsserver.Start(config.BusConfig{Embedded: true, Port: -1}, testLogger())
	if err != nil {
		t.Fatalf("start embedded nats: %v", err)
	}
	t.Cleanup(srv.Shutdown)

	client, err := bus.Connect(context.Background(), config.BusConfig{
		Servers:        []string{srv.ClientURL()},
		ConnectTimeout: 2000,
	}, testLogger())
	if err != nil {
		t.Fatalf("connect bus: %v", err)
	}
	t.Cleanup(client.Close)
	return client
}

func testPipeline(t *testing.T, jobs *jobstore.Store) *pipeline.Pipeline {
	t.Helper()
	policy := invoker.Policy{
		MaxAttempts:     2,
		AttemptTimeout:  time.Second,
		MaxElapsed:      5 * time.Second,
		InitialInterval: time.Millisecond,
	}
	textInv := invoker.New(func(ctx context.Context, req invoker.Request) (string, error) {
		return "A generated story with enough words to voice.", nil
	}, invoker.StringCodec{}, nil, policy, testLogger())
	writer := story.NewWriter(textInv, &token.Estimator{}, config.TextConfig{
		Model:          "m",
		MaxInputTokens: 100_000,
		OverlapTokens:  1000,
		TargetWords:    5,
	}, nil, testLogger())

	speechInv := tts.NewInvoker(&tts.MockSynthesizer{},
		config.SpeechConfig{Voice: "alena", TimeoutSeconds: 1},
		config.RetryConfig{MaxAttempts: 2, MaxElapsedSeconds: 5},
		nil, testLogger())

	store, err := artifacts.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("artifact store: %v", err)
	}
	return pipeline.New(
		&stt.MockRecognizer{},
		writer,
		speechInv,
		dispatcher.New(2, 0, testLogger()),
		store,
		jobs,
		nil,
		5000,
		testLogger(),
	)
}

func TestSubmitRunsJobAndPublishesResult(t *testing.T) {
	client := startBus(t)
	jobs, err := jobstore.Open(context.Background(),
		config.JobStoreConfig{Path: filepath.Join(t.TempDir(), "jobs.db")}, testLogger())
	if err != nil {
		t.Fatalf("job store: %v", err)
	}
	defer jobs.Close()

	sessions := session.NewStore(nil)
	svc := NewService(context.Background(), client, testPipeline(t, jobs), jobs, sessions, testLogger())
	if err := svc.Start(); err != nil {
		t.Fatalf("start service: %v", err)
	}
	defer svc.Close()
	if !svc.Healthy() {
		t.Fatalf("service must be healthy after start")
	}

	results := make(chan protocol.JobResult, 1)
	sub, err := client.Conn().Subscribe(protocol.SubjectJobResult, func(msg *nats.Msg) {
		var res protocol.JobResult
		if err := json.Unmarshal(msg.Data, &res); err == nil {
			results <- res
		}
	})
	if err != nil {
		t.Fatalf("subscribe results: %v", err)
	}
	defer sub.Drain()

	progressCount := make(chan struct{}, 64)
	psub, err := client.Conn().Subscribe(protocol.SubjectProgress, func(msg *nats.Msg) {
		progressCount <- struct{}{}
	})
	if err != nil {
		t.Fatalf("subscribe progress: %v", err)
	}
	defer psub.Drain()

	req := protocol.JobRequest{
		JobID:      "job-bus-1",
		UserID:     "u1",
		SessionID:  "s1",
		Transcript: "Source transcript text for the bus test.",
		Prompt:     "retell",
	}
	data, _ := json.Marshal(req)
	if err := client.Conn().Publish(protocol.SubjectJobSubmit, data); err != nil {
		t.Fatalf("publish job: %v", err)
	}

	select {
	case res := <-results:
		if res.JobID != "job-bus-1" {
			t.Fatalf("unexpected job id %q", res.JobID)
		}
		if res.Status != jobstore.StatusCompleted {
			t.Fatalf("expected completed, got %q (%s)", res.Status, res.Error)
		}
		if res.WordCount == 0 || res.SegmentCount == 0 {
			t.Fatalf("result missing counts: %+v", res)
		}
	case <-time.After(10 * time.Second):
		t.Fatalf("timed out waiting for job result")
	}

	select {
	case <-progressCount:
	case <-time.After(time.Second):
		t.Fatalf("expected at least one progress update on the bus")
	}

	if sessions.Len() != 0 {
		t.Fatalf("session must be removed after the job finishes")
	}

	stored, err := jobs.GetJob(context.Background(), "job-bus-1")
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if stored.Status != jobstore.StatusCompleted {
		t.Fatalf("job store status %q", stored.Status)
	}
}

func TestSubmitRejectsEmptySource(t *testing.T) {
	client := startBus(t)
	svc := NewService(context.Background(), client, testPipeline(t, nil), nil, nil, testLogger())
	if err := svc.Start(); err != nil {
		t.Fatalf("start service: %v", err)
	}
	defer svc.Close()

	results := make(chan protocol.JobResult, 1)
	sub, _ := client.Conn().Subscribe(protocol.SubjectJobResult, func(msg *nats.Msg) {
		var res protocol.JobResult
		json.Unmarshal(msg.Data, &res)
		results <- res
	})
	defer sub.Drain()

	data, _ := json.Marshal(protocol.JobRequest{Prompt: "retell"})
	client.Conn().Publish(protocol.SubjectJobSubmit, data)

	select {
	case res := <-results:
		t.Fatalf("sourceless request must be dropped, got %+v", res)
	case <-time.After(500 * time.Millisecond):
	}
}

func TestSubmitDuplicateSessionRejected(t *testing.T) {
	client := startBus(t)
	sessions := session.NewStore(nil)
	sessions.Begin("u1", "s1", "other-job")

	jobs, err := jobstore.Open(context.Background(),
		config.JobStoreConfig{Path: filepath.Join(t.TempDir(), "jobs.db")}, testLogger())
	if err != nil {
		t.Fatalf("job store: %v", err)
	}
	defer jobs.Close()

	svc := NewService(context.Background(), client, testPipeline(t, jobs), jobs, sessions, testLogger())
	if err := svc.Start(); err != nil {
		t.Fatalf("start service: %v", err)
	}
	defer svc.Close()

	results := make(chan protocol.JobResult, 1)
	sub, _ := client.Conn().Subscribe(protocol.SubjectJobResult, func(msg *nats.Msg) {
		var res protocol.JobResult
		json.Unmarshal(msg.Data, &res)
		results <- res
	})
	defer sub.Drain()

	data, _ := json.Marshal(protocol.JobRequest{
		JobID:      "job-dup",
		UserID:     "u1",
		SessionID:  "s1",
		Transcript: "text",
		Prompt:     "retell",
	})
	client.Conn().Publish(protocol.SubjectJobSubmit, data)

	select {
	case res := <-results:
		if res.Status != jobstore.StatusFailed {
			t.Fatalf("expected failed result, got %q", res.Status)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for rejection result")
	}

	// The rejection must not leave a dangling pending row behind.
	if _, err := jobs.GetJob(context.Background(), "job-dup"); !errors.Is(err, jobstore.ErrJobNotFound) {
		t.Fatalf("rejected submission must not create a job record, got %v", err)
	}
}
