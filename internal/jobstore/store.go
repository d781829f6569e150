// Package jobstore persists job records and their stage logs in SQLite so
// runs survive restarts and remain inspectable.
package jobstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/narralabs/narra-core/internal/config"
	_ "modernc.org/sqlite"
)

// Job statuses. Jobs move pending -> running -> one of the terminal states.
const (
	StatusPending           = "pending"
	StatusRunning           = "running"
	StatusCompleted         = "completed"
	StatusCompletedWithGaps = "completed_with_gaps"
	StatusFailed            = "failed"
)

var ErrJobNotFound = errors.New("jobstore: job not found")

// Job is one processing run.
type Job struct {
	JobID          string
	UserID         string
	SessionID      string
	SourceURL      string
	Status         string
	WordCount      int
	SegmentCount   int
	FailedSegments int
	Error          string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// LogEntry is one recorded stage transition for a job.
type LogEntry struct {
	ID        int64
	JobID     string
	Stage     string
	Message   string
	CreatedAt time.Time
}

// Store wraps the SQLite-backed job database.
type Store struct {
	db    *sql.DB
	cfg   config.JobStoreConfig
	log   *slog.Logger
	clock func() time.Time
}

// Open initializes the job store according to config.
func Open(ctx context.Context, cfg config.JobStoreConfig, log *slog.Logger) (*Store, error) {
	dir := filepath.Dir(cfg.Path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)", cfg.Path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	s := &Store{db: db, cfg: cfg, log: log, clock: time.Now}

	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}

	if cfg.VacuumOnStart {
		if _, err := s.db.ExecContext(ctx, "VACUUM"); err != nil {
			log.Warn("job store vacuum failed", slog.String("error", err.Error()))
		}
	}

	if err := s.Prune(ctx); err != nil {
		log.Warn("job store prune on start failed", slog.String("error", err.Error()))
	}

	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	ddl := `
CREATE TABLE IF NOT EXISTS jobs (
    job_id TEXT PRIMARY KEY,
    user_id TEXT,
    session_id TEXT,
    source_url TEXT,
    status TEXT NOT NULL,
    word_count INTEGER NOT NULL DEFAULT 0,
    segment_count INTEGER NOT NULL DEFAULT 0,
    failed_segments INTEGER NOT NULL DEFAULT 0,
    error TEXT,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS job_logs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    job_id TEXT NOT NULL,
    stage TEXT NOT NULL,
    message TEXT,
    created_at TIMESTAMP NOT NULL,
    FOREIGN KEY(job_id) REFERENCES jobs(job_id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_jobs_created ON jobs(created_at);
CREATE INDEX IF NOT EXISTS idx_job_logs_job_created ON job_logs(job_id, created_at);
`
	_, err := s.db.ExecContext(ctx, ddl)
	return err
}

// Close releases underlying resources.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// CreateJob inserts a new pending job.
func (s *Store) CreateJob(ctx context.Context, job Job) error {
	now := s.clock().UTC()
	if job.Status == "" {
		job.Status = StatusPending
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO jobs(job_id, user_id, session_id, source_url, status, created_at, updated_at)
		 VALUES(?, ?, ?, ?, ?, ?, ?)`,
		job.JobID, job.UserID, job.SessionID, job.SourceURL, job.Status, now, now)
	return err
}

// UpdateStatus moves a job to a new status, recording the error text for
// failed runs.
func (s *Store) UpdateStatus(ctx context.Context, jobID, status, errText string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, error = ?, updated_at = ? WHERE job_id = ?`,
		status, errText, s.clock().UTC(), jobID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrJobNotFound
	}
	return nil
}

// RecordCounts stores the output metrics of a finished run.
func (s *Store) RecordCounts(ctx context.Context, jobID string, words, segments, failed int) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET word_count = ?, segment_count = ?, failed_segments = ?, updated_at = ?
		 WHERE job_id = ?`,
		words, segments, failed, s.clock().UTC(), jobID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrJobNotFound
	}
	return nil
}

// AppendLog records a stage transition for the job.
func (s *Store) AppendLog(ctx context.Context, jobID, stage, message string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO job_logs(job_id, stage, message, created_at) VALUES(?, ?, ?, ?)`,
		jobID, stage, message, s.clock().UTC())
	return err
}

// GetJob fetches one job by id.
func (s *Store) GetJob(ctx context.Context, jobID string) (Job, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT job_id, user_id, session_id, source_url, status, word_count, segment_count,
		        failed_segments, COALESCE(error, ''), created_at, updated_at
		 FROM jobs WHERE job_id = ?`, jobID)
	var job Job
	var created, updated string
	err := row.Scan(&job.JobID, &job.UserID, &job.SessionID, &job.SourceURL, &job.Status,
		&job.WordCount, &job.SegmentCount, &job.FailedSegments, &job.Error, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return Job{}, ErrJobNotFound
	}
	if err != nil {
		return Job{}, err
	}
	if ts, err := time.Parse(time.RFC3339Nano, created); err == nil {
		job.CreatedAt = ts
	}
	if ts, err := time.Parse(time.RFC3339Nano, updated); err == nil {
		job.UpdatedAt = ts
	}
	return job, nil
}

// ListLogs retrieves up to limit log entries for a job ordered ascending.
func (s *Store) ListLogs(ctx context.Context, jobID string, limit int) ([]LogEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, job_id, stage, COALESCE(message, ''), created_at
		 FROM job_logs WHERE job_id = ? ORDER BY created_at ASC, id ASC LIMIT ?`, jobID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []LogEntry
	for rows.Next() {
		var e LogEntry
		var created string
		if err := rows.Scan(&e.ID, &e.JobID, &e.Stage, &e.Message, &created); err != nil {
			return nil, err
		}
		if ts, err := time.Parse(time.RFC3339Nano, created); err == nil {
			e.CreatedAt = ts
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Prune applies configured retention.
func (s *Store) Prune(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if s.cfg.RetentionDays > 0 {
		cutoff := s.clock().Add(-time.Duration(s.cfg.RetentionDays) * 24 * time.Hour)
		if _, err = tx.ExecContext(ctx, `DELETE FROM jobs WHERE created_at < ?`, cutoff.UTC()); err != nil {
			return err
		}
	}
	if s.cfg.MaxJobs > 0 {
		_, err = tx.ExecContext(ctx, `DELETE FROM jobs WHERE job_id IN (
			SELECT job_id FROM jobs ORDER BY created_at DESC LIMIT -1 OFFSET ?
		)`, s.cfg.MaxJobs)
		if err != nil {
			return err
		}
	}
	err = tx.Commit()
	return err
}
