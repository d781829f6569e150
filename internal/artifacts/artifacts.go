// Package artifacts lays out job outputs on disk: the generated story, the
// audio segments, the segment manifest and the run metadata.
package artifacts

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Metadata summarizes a finished run, written next to the artifacts.
type Metadata struct {
	JobID          string    `json:"job_id"`
	SourceURL      string    `json:"source_url,omitempty"`
	WordCount      int       `json:"word_count"`
	SegmentCount   int       `json:"segment_count"`
	FailedSegments int       `json:"failed_segments"`
	CompletedAt    time.Time `json:"completed_at"`
}

// Store writes job artifacts under a root directory, one subdirectory per
// job.
type Store struct {
	root string
}

// NewStore creates the root directory if needed.
func NewStore(root string) (*Store, error) {
	if root == "" {
		return nil, fmt.Errorf("artifacts: root dir required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("artifacts: create root: %w", err)
	}
	return &Store{root: root}, nil
}

// JobDir returns the job's directory, creating it and its audio subdirectory.
func (s *Store) JobDir(jobID string) (string, error) {
	dir := filepath.Join(s.root, jobID)
	if err := os.MkdirAll(filepath.Join(dir, "audio"), 0o755); err != nil {
		return "", fmt.Errorf("artifacts: create job dir: %w", err)
	}
	return dir, nil
}

// WriteStory stores the generated document.
func (s *Store) WriteStory(jobID, text string) (string, error) {
	dir, err := s.JobDir(jobID)
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, "story.txt")
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return "", fmt.Errorf("artifacts: write story: %w", err)
	}
	return path, nil
}

// WriteTranscript stores the source transcript.
func (s *Store) WriteTranscript(jobID, text string) (string, error) {
	dir, err := s.JobDir(jobID)
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, "transcript.txt")
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return "", fmt.Errorf("artifacts: write transcript: %w", err)
	}
	return path, nil
}

// SegmentPath names the audio file for one segment index.
func (s *Store) SegmentPath(jobID string, index int) string {
	return filepath.Join(s.root, jobID, "audio", fmt.Sprintf("speech_%04d.mp3", index))
}

// WriteSegment stores one synthesized audio segment and returns its path.
func (s *Store) WriteSegment(jobID string, index int, audio []byte) (string, error) {
	if _, err := s.JobDir(jobID); err != nil {
		return "", err
	}
	path := s.SegmentPath(jobID, index)
	if err := os.WriteFile(path, audio, 0o644); err != nil {
		return "", fmt.Errorf("artifacts: write segment %d: %w", index, err)
	}
	return path, nil
}

// ManifestPath names the segment manifest file for a job.
func (s *Store) ManifestPath(jobID string) string {
	return filepath.Join(s.root, jobID, "speech_order.txt")
}

// WriteMetadata stores the run summary as JSON.
func (s *Store) WriteMetadata(jobID string, meta Metadata) (string, error) {
	dir, err := s.JobDir(jobID)
	if err != nil {
		return "", err
	}
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return "", fmt.Errorf("artifacts: marshal metadata: %w", err)
	}
	path := filepath.Join(dir, "metadata.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("artifacts: write metadata: %w", err)
	}
	return path, nil
}
