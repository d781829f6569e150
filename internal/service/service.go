// Package service exposes the pipeline over the bus: it accepts job
// submissions, tracks sessions and announces terminal results.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/narralabs/narra-core/internal/bus"
	"github.com/narralabs/narra-core/internal/jobstore"
	"github.com/narralabs/narra-core/internal/pipeline"
	"github.com/narralabs/narra-core/internal/plan"
	"github.com/narralabs/narra-core/internal/progress"
	"github.com/narralabs/narra-core/internal/protocol"
	"github.com/narralabs/narra-core/internal/session"
)

// Service subscribes to job submissions and runs each job through the
// pipeline.
type Service struct {
	bus      *bus.Client
	pipeline *pipeline.Pipeline
	jobs     *jobstore.Store
	sessions *session.Store
	sub      *nats.Subscription
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	ready    bool
	logger   *slog.Logger
	clock    func() time.Time
}

// NewService wires the job service. The job store may be nil.
func NewService(parent context.Context, busClient *bus.Client, p *pipeline.Pipeline, jobs *jobstore.Store, sessions *session.Store, logger *slog.Logger) *Service {
	ctx, cancel := context.WithCancel(parent)
	return &Service{
		bus:      busClient,
		pipeline: p,
		jobs:     jobs,
		sessions: sessions,
		ctx:      ctx,
		cancel:   cancel,
		logger:   logger.With(slog.String("component", "job-service")),
		clock:    time.Now,
	}
}

func (s *Service) Start() error {
	sub, err := s.bus.Conn().Subscribe(protocol.SubjectJobSubmit, s.handleSubmit)
	if err != nil {
		return fmt.Errorf("subscribe job submissions: %w", err)
	}
	s.sub = sub
	s.ready = true
	return nil
}

func (s *Service) Close() {
	s.cancel()
	if s.sub != nil {
		_ = s.sub.Drain()
	}
	s.wg.Wait()
}

func (s *Service) Healthy() bool {
	return s.ready
}

func (s *Service) handleSubmit(msg *nats.Msg) {
	var req protocol.JobRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		s.logger.Warn("failed to decode job request", slog.String("error", err.Error()))
		return
	}
	if req.SourceURL == "" && req.AudioPath == "" && req.Transcript == "" {
		s.logger.Warn("job request names no source material")
		return
	}
	if req.JobID == "" {
		req.JobID = uuid.NewString()
	}

	job := pipeline.Job{
		JobID:      req.JobID,
		UserID:     req.UserID,
		SessionID:  req.SessionID,
		SourceURL:  req.SourceURL,
		AudioPath:  req.AudioPath,
		Transcript: req.Transcript,
		Prompt:     req.Prompt,
		Plan:       planFor(req),
	}

	// The session guard runs before anything is persisted so a rejected
	// submission leaves no job row behind.
	if s.sessions != nil && job.UserID != "" {
		if _, err := s.sessions.Begin(job.UserID, job.SessionID, job.JobID); err != nil {
			if errors.Is(err, session.ErrExists) {
				s.logger.Warn("rejecting job, session already active",
					slog.String("user", job.UserID), slog.String("session", job.SessionID))
				s.publishResult(protocol.JobResult{
					JobID:     job.JobID,
					Status:    jobstore.StatusFailed,
					Error:     "session already active",
					Timestamp: s.clock().UTC(),
				})
				return
			}
			s.logger.Warn("session begin failed", slog.String("error", err.Error()))
		}
	}

	if s.jobs != nil {
		if err := s.jobs.CreateJob(s.ctx, jobstore.Job{
			JobID:     job.JobID,
			UserID:    job.UserID,
			SessionID: job.SessionID,
			SourceURL: job.SourceURL,
		}); err != nil {
			s.logger.Error("failed to create job record",
				slog.String("job", job.JobID), slog.String("error", err.Error()))
			if s.sessions != nil && job.UserID != "" {
				_ = s.sessions.End(job.UserID, job.SessionID)
			}
			return
		}
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runJob(job)
	}()
}

func (s *Service) runJob(job pipeline.Job) {
	defer func() {
		if s.sessions != nil && job.UserID != "" {
			if err := s.sessions.End(job.UserID, job.SessionID); err != nil &&
				!errors.Is(err, session.ErrNotFound) {
				s.logger.Warn("session end failed", slog.String("error", err.Error()))
			}
		}
	}()

	sink := progress.Multi{
		progress.NewLogSink(job.JobID, s.logger),
		progress.NewBusSink(job.JobID, s.bus, s.logger),
	}

	res, err := s.pipeline.Run(s.ctx, job, sink)
	result := protocol.JobResult{
		JobID:     job.JobID,
		Timestamp: s.clock().UTC(),
	}
	if err != nil {
		result.Status = jobstore.StatusFailed
		result.Error = err.Error()
		s.publishResult(result)
		return
	}

	result.Status = jobstore.StatusCompleted
	if res.FailedSegments > 0 {
		result.Status = jobstore.StatusCompletedWithGaps
	}
	result.WordCount = res.Story.WordCount
	result.SegmentCount = res.SegmentCount
	result.FailedSegments = res.FailedSegments
	s.publishResult(result)
}

func (s *Service) publishResult(result protocol.JobResult) {
	data, err := json.Marshal(result)
	if err != nil {
		s.logger.Warn("failed to marshal job result", slog.String("error", err.Error()))
		return
	}
	if err := s.bus.Conn().Publish(protocol.SubjectJobResult, data); err != nil {
		s.logger.Warn("failed to publish job result", slog.String("error", err.Error()))
	}
}

// planFor derives the step list from the request: explicit steps win,
// otherwise the source material decides.
func planFor(req protocol.JobRequest) plan.Plan {
	if len(req.Steps) > 0 {
		steps := make([]plan.Step, 0, len(req.Steps))
		for _, s := range req.Steps {
			steps = append(steps, plan.Step{Type: plan.StepType(s)})
		}
		if p, err := plan.New(steps); err == nil {
			return p
		}
	}
	if req.Transcript != "" {
		return plan.TextOnly()
	}
	if req.AudioPath != "" {
		p, _ := plan.New([]plan.Step{
			{Type: plan.StepTranscribe},
			{Type: plan.StepWriteStory},
			{Type: plan.StepGenerateSpeech},
		})
		return p
	}
	return plan.Default()
}
