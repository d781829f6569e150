// Package pipeline orchestrates one job from source material to narrated
// audio artifacts.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/narralabs/narra-core/internal/artifacts"
	"github.com/narralabs/narra-core/internal/dispatcher"
	"github.com/narralabs/narra-core/internal/jobstore"
	"github.com/narralabs/narra-core/internal/manifest"
	"github.com/narralabs/narra-core/internal/plan"
	"github.com/narralabs/narra-core/internal/progress"
	"github.com/narralabs/narra-core/internal/segmenter"
	"github.com/narralabs/narra-core/internal/story"
	"github.com/narralabs/narra-core/internal/stt"
	"github.com/narralabs/narra-core/internal/tts"
)

// Job is one processing request.
type Job struct {
	JobID     string
	UserID    string
	SessionID string

	// SourceURL names remote media for jobs that start from a download.
	SourceURL string

	// AudioPath points at local audio for jobs that start at transcription.
	AudioPath string

	// Transcript carries existing text for jobs that skip transcription.
	Transcript string

	// Prompt is the base instruction for the story writer.
	Prompt string

	Plan plan.Plan
}

// Result summarizes a finished run.
type Result struct {
	JobID          string
	Story          story.Story
	SegmentCount   int
	FailedSegments int
	ManifestPath   string
}

// Media covers the optional remote-media steps. A nil Media skips them.
type Media interface {
	Download(ctx context.Context, url string) (string, error)
	ExtractAudio(ctx context.Context, mediaPath string) (string, error)
	Upload(ctx context.Context, artifactDir string) error
}

// Pipeline wires the stages together.
type Pipeline struct {
	recognizer stt.Recognizer
	writer     *story.Writer
	speech     *tts.Invoker
	dispatch   *dispatcher.Dispatcher
	store      *artifacts.Store
	jobs       *jobstore.Store
	media      Media

	maxSegmentChars int
	logger          *slog.Logger
	clock           func() time.Time
}

// New builds a Pipeline. The job store and media provider may be nil.
func New(
	recognizer stt.Recognizer,
	writer *story.Writer,
	speech *tts.Invoker,
	dispatch *dispatcher.Dispatcher,
	store *artifacts.Store,
	jobs *jobstore.Store,
	media Media,
	maxSegmentChars int,
	logger *slog.Logger,
) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		recognizer:      recognizer,
		writer:          writer,
		speech:          speech,
		dispatch:        dispatch,
		store:           store,
		jobs:            jobs,
		media:           media,
		maxSegmentChars: maxSegmentChars,
		logger:          logger.With(slog.String("component", "pipeline")),
		clock:           time.Now,
	}
}

// Run executes the job's plan. Story generation failures abort the run;
// individual segment failures are recorded in the manifest and the result.
func (p *Pipeline) Run(ctx context.Context, job Job, sink progress.Sink) (Result, error) {
	if sink == nil {
		sink = progress.Discard
	}
	if job.Plan.Len() == 0 {
		job.Plan = plan.Default()
	}

	res, err := p.run(ctx, job, sink)
	if err != nil {
		sink.OnEvent(progress.EventPipelineError, err.Error())
		p.recordStatus(ctx, job.JobID, jobstore.StatusFailed, err.Error())
		return Result{}, err
	}

	status := jobstore.StatusCompleted
	if res.FailedSegments > 0 {
		status = jobstore.StatusCompletedWithGaps
	}
	p.recordStatus(ctx, job.JobID, status, "")
	sink.OnEvent(progress.EventPipelineComplete,
		fmt.Sprintf("%d words, %d segments, %d failed", res.Story.WordCount, res.SegmentCount, res.FailedSegments))
	return res, nil
}

func (p *Pipeline) run(ctx context.Context, job Job, sink progress.Sink) (Result, error) {
	p.recordStatus(ctx, job.JobID, jobstore.StatusRunning, "")

	mediaPath := ""
	audioPath := job.AudioPath
	transcript := job.Transcript
	var st story.Story
	var results []manifest.Result
	manifestPath := ""

	for _, step := range job.Plan.Steps() {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		p.logStage(ctx, job.JobID, string(step.Type))

		switch step.Type {
		case plan.StepDownload:
			if p.media == nil {
				p.logger.Info("no media provider, skipping download", slog.String("job", job.JobID))
				continue
			}
			sink.OnEvent(progress.EventDownloadStart, job.SourceURL)
			path, err := p.media.Download(ctx, job.SourceURL)
			if err != nil {
				return Result{}, fmt.Errorf("download: %w", err)
			}
			mediaPath = path
			sink.OnEvent(progress.EventDownloadComplete, path)

		case plan.StepExtractAudio:
			if p.media == nil || mediaPath == "" {
				continue
			}
			path, err := p.media.ExtractAudio(ctx, mediaPath)
			if err != nil {
				return Result{}, fmt.Errorf("extract audio: %w", err)
			}
			audioPath = path

		case plan.StepTranscribe:
			if transcript != "" {
				continue
			}
			if audioPath == "" {
				return Result{}, fmt.Errorf("transcribe: no audio available")
			}
			sink.OnEvent(progress.EventTranscribeStart, audioPath)
			text, err := p.recognizer.Transcribe(ctx, audioPath)
			if err != nil {
				return Result{}, fmt.Errorf("transcribe: %w", err)
			}
			transcript = text
			if _, err := p.store.WriteTranscript(job.JobID, transcript); err != nil {
				return Result{}, err
			}
			sink.OnEvent(progress.EventTranscribeComplete,
				fmt.Sprintf("%d chars", len(transcript)))

		case plan.StepWriteStory:
			if transcript == "" {
				return Result{}, fmt.Errorf("write story: no transcript available")
			}
			sink.OnEvent(progress.EventProcessStart, "")
			generated, err := p.writer.Write(ctx, transcript, job.Prompt, sink)
			if err != nil {
				return Result{}, err
			}
			st = generated
			if _, err := p.store.WriteStory(job.JobID, st.Text); err != nil {
				return Result{}, err
			}
			sink.OnEvent(progress.EventProcessComplete,
				fmt.Sprintf("%d words in %d chunks", st.WordCount, st.ChunkCount))

		case plan.StepGenerateSpeech:
			if st.Text == "" {
				return Result{}, fmt.Errorf("generate speech: no story available")
			}
			sink.OnEvent(progress.EventSpeechStart, "")
			segments, err := segmenter.Split(st.Text, p.maxSegmentChars)
			if err != nil {
				return Result{}, fmt.Errorf("segment story: %w", err)
			}
			results, err = p.dispatch.Run(ctx, segments, func(ctx context.Context, seg segmenter.Segment) (string, error) {
				audio, err := p.speech.Synthesize(ctx, seg.Text)
				if err != nil {
					return "", err
				}
				return p.store.WriteSegment(job.JobID, seg.Index, audio)
			})
			if err != nil {
				return Result{}, err
			}
			manifestPath = p.store.ManifestPath(job.JobID)
			if err := manifest.Write(manifestPath, results); err != nil {
				return Result{}, err
			}
			sink.OnEvent(progress.EventSpeechComplete,
				fmt.Sprintf("%d segments, %d failed", len(results), manifest.FailedCount(results)))

		case plan.StepUpload:
			if p.media == nil {
				p.logger.Info("no media provider, skipping upload", slog.String("job", job.JobID))
				continue
			}
			sink.OnEvent(progress.EventUploadStart, "")
			dir, err := p.store.JobDir(job.JobID)
			if err != nil {
				return Result{}, err
			}
			if err := p.media.Upload(ctx, dir); err != nil {
				return Result{}, fmt.Errorf("upload: %w", err)
			}
			sink.OnEvent(progress.EventUploadComplete, dir)
		}
	}

	failed := manifest.FailedCount(results)
	if _, err := p.store.WriteMetadata(job.JobID, artifacts.Metadata{
		JobID:          job.JobID,
		SourceURL:      job.SourceURL,
		WordCount:      st.WordCount,
		SegmentCount:   len(results),
		FailedSegments: failed,
		CompletedAt:    p.clock().UTC(),
	}); err != nil {
		return Result{}, err
	}
	p.recordCounts(ctx, job.JobID, st.WordCount, len(results), failed)

	return Result{
		JobID:          job.JobID,
		Story:          st,
		SegmentCount:   len(results),
		FailedSegments: failed,
		ManifestPath:   manifestPath,
	}, nil
}

func (p *Pipeline) recordStatus(ctx context.Context, jobID, status, errText string) {
	if p.jobs == nil {
		return
	}
	if err := p.jobs.UpdateStatus(ctx, jobID, status, errText); err != nil {
		p.logger.Warn("job status update failed",
			slog.String("job", jobID), slog.String("error", err.Error()))
	}
}

func (p *Pipeline) recordCounts(ctx context.Context, jobID string, words, segments, failed int) {
	if p.jobs == nil {
		return
	}
	if err := p.jobs.RecordCounts(ctx, jobID, words, segments, failed); err != nil {
		p.logger.Warn("job counts update failed",
			slog.String("job", jobID), slog.String("error", err.Error()))
	}
}

func (p *Pipeline) logStage(ctx context.Context, jobID, stage string) {
	if p.jobs == nil {
		return
	}
	if err := p.jobs.AppendLog(ctx, jobID, stage, "started"); err != nil {
		p.logger.Warn("job stage log failed",
			slog.String("job", jobID), slog.String("error", err.Error()))
	}
}
