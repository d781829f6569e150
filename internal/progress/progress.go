// Package progress delivers human-readable lifecycle notifications for a job.
// Sinks are fire-and-forget: a failing sink never aborts the pipeline.
package progress

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/narralabs/narra-core/internal/bus"
	"github.com/narralabs/narra-core/internal/protocol"
)

// Event names a pipeline lifecycle stage.
type Event string

const (
	EventDownloadStart      Event = "download_start"
	EventDownloadComplete   Event = "download_complete"
	EventTranscribeStart    Event = "transcribe_start"
	EventTranscribeComplete Event = "transcribe_complete"
	EventProcessStart       Event = "process_start"
	EventChunkComplete      Event = "chunk_complete"
	EventProcessComplete    Event = "process_complete"
	EventExpandStart        Event = "expand_start"
	EventSpeechStart        Event = "speech_start"
	EventSpeechComplete     Event = "speech_complete"
	EventUploadStart        Event = "upload_start"
	EventUploadComplete     Event = "upload_complete"
	EventPipelineComplete   Event = "pipeline_complete"
	EventPipelineError      Event = "pipeline_error"
)

// Sink receives lifecycle events for a single job.
type Sink interface {
	OnEvent(event Event, message string)
}

// Func adapts a plain function to the Sink interface.
type Func func(event Event, message string)

func (f Func) OnEvent(event Event, message string) { f(event, message) }

// Discard is a Sink that drops every event.
var Discard Sink = Func(func(Event, string) {})

// LogSink records events through slog.
type LogSink struct {
	jobID  string
	logger *slog.Logger
}

func NewLogSink(jobID string, logger *slog.Logger) *LogSink {
	return &LogSink{jobID: jobID, logger: logger.With(slog.String("component", "progress"))}
}

func (s *LogSink) OnEvent(event Event, message string) {
	s.logger.Info(message, slog.String("job_id", s.jobID), slog.String("event", string(event)))
}

// BusSink publishes events on the NATS bus. Publish failures are logged and
// swallowed.
type BusSink struct {
	jobID  string
	bus    *bus.Client
	logger *slog.Logger
	clock  func() time.Time
}

func NewBusSink(jobID string, busClient *bus.Client, logger *slog.Logger) *BusSink {
	return &BusSink{
		jobID:  jobID,
		bus:    busClient,
		logger: logger.With(slog.String("component", "progress")),
		clock:  time.Now,
	}
}

func (s *BusSink) OnEvent(event Event, message string) {
	update := protocol.ProgressUpdate{
		JobID:     s.jobID,
		Event:     string(event),
		Message:   message,
		Timestamp: s.clock().UTC(),
	}
	data, err := json.Marshal(update)
	if err != nil {
		s.logger.Warn("failed to marshal progress update", slog.String("error", err.Error()))
		return
	}
	if err := s.bus.Conn().Publish(protocol.SubjectProgress, data); err != nil {
		s.logger.Warn("failed to publish progress update", slog.String("error", err.Error()))
	}
}

// Multi fans an event out to several sinks.
type Multi []Sink

func (m Multi) OnEvent(event Event, message string) {
	for _, s := range m {
		if s != nil {
			s.OnEvent(event, message)
		}
	}
}
