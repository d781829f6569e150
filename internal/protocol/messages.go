package protocol

import "time"

// ProgressUpdate is broadcast on the bus whenever a job crosses a stage boundary.
type ProgressUpdate struct {
	JobID     string    `json:"job_id"`
	Event     string    `json:"event"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// JobResult announces a terminal job state.
type JobResult struct {
	JobID          string    `json:"job_id"`
	Status         string    `json:"status"`
	WordCount      int       `json:"word_count,omitempty"`
	SegmentCount   int       `json:"segment_count,omitempty"`
	FailedSegments int       `json:"failed_segments,omitempty"`
	Error          string    `json:"error,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// JobRequest submits a processing job over the bus. Exactly one of
// SourceURL, AudioPath or Transcript names the source material.
type JobRequest struct {
	JobID      string   `json:"job_id,omitempty"`
	UserID     string   `json:"user_id,omitempty"`
	SessionID  string   `json:"session_id,omitempty"`
	SourceURL  string   `json:"source_url,omitempty"`
	AudioPath  string   `json:"audio_path,omitempty"`
	Transcript string   `json:"transcript,omitempty"`
	Prompt     string   `json:"prompt"`
	Steps      []string `json:"steps,omitempty"`
}

const (
	SubjectJobSubmit = "narra.job.submit"
	SubjectProgress  = "narra.job.progress"
	SubjectJobResult = "narra.job.result"
)
