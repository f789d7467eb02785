package job

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	_ "modernc.org/sqlite"

	"cadence/internal/config"
	"cadence/internal/services"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is the current schema version. Bump this when the schema
// changes; existing databases with another version are rejected.
const schemaVersion = 1

// ErrSchemaMismatch indicates the database schema version doesn't match the
// expected version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

// ErrNotFound indicates no job exists with the requested ID.
var ErrNotFound = errors.New("job not found")

// Store manages job persistence backed by SQLite. The workspace lock keeps
// two renderers from sharing one database.
type Store struct {
	db   *sql.DB
	path string
	lock *flock.Flock
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// Open initializes or connects to the job database under the work dir.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	lock := flock.New(filepath.Join(cfg.Paths.WorkDir, "cadence.lock"))
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire workspace lock: %w", err)
	}
	if !ok {
		return nil, errors.New("another cadence instance is using this workspace")
	}

	dbPath := filepath.Join(cfg.Paths.WorkDir, "jobs.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		_ = lock.Unlock()
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			_ = lock.Unlock()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath, lock: lock}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		_ = lock.Unlock()
		return nil, err
	}
	return store, nil
}

// Close releases the database and the workspace lock.
func (s *Store) Close() error {
	err := s.db.Close()
	if s.lock != nil {
		if unlockErr := s.lock.Unlock(); err == nil {
			err = unlockErr
		}
	}
	return err
}

// Path returns the database file location.
func (s *Store) Path() string { return s.path }

func (s *Store) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}

	if tableExists == 0 {
		return s.createSchema(ctx)
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (delete %s to reset)",
			ErrSchemaMismatch, version, schemaVersion, s.path)
	}
	return nil
}

func (s *Store) createSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

func (s *Store) execWithRetry(ctx context.Context, query string, args ...any) error {
	return retryOnBusy(ctx, func() error {
		_, err := s.db.ExecContext(ctx, query, args...)
		return err
	})
}

const jobColumns = `id, status, audio_path, cues_path, background_path, output_path,
frames_expected, frames_encoded, used_fallback, error_kind, error_message,
failed_frame, created_at, updated_at`

// Create inserts a new queued job.
func (s *Store) Create(ctx context.Context, job *Job) error {
	now := time.Now().UTC()
	job.CreatedAt = now
	job.UpdatedAt = now
	if job.Status == "" {
		job.Status = StatusQueued
	}
	if job.FailedFrame == 0 {
		job.FailedFrame = -1
	}
	return s.execWithRetry(ctx,
		`INSERT INTO jobs (`+jobColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID, string(job.Status), job.AudioPath, job.CuesPath, job.BackgroundPath,
		job.OutputPath, job.FramesExpected, job.FramesEncoded, boolToInt(job.UsedFallback),
		job.ErrorKind, job.ErrorMessage, job.FailedFrame, job.CreatedAt, job.UpdatedAt,
	)
}

// Get loads one job by ID.
func (s *Store) Get(ctx context.Context, id string) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return job, err
}

// List returns jobs ordered newest first.
func (s *Store) List(ctx context.Context) ([]*Job, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+jobColumns+` FROM jobs ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// Transition moves a job to the next status, enforcing the forward path.
func (s *Store) Transition(ctx context.Context, job *Job, to Status) error {
	if _, ok := statusSet[to]; !ok {
		return services.Wrap(services.ErrValidation, "job", "transition",
			fmt.Sprintf("unknown status %q", to), nil)
	}
	if !transitionAllowed(job.Status, to) {
		return services.Wrap(services.ErrValidation, "job", "transition",
			fmt.Sprintf("cannot move %s from %s to %s", job.ID, job.Status, to), nil)
	}
	now := time.Now().UTC()
	err := s.execWithRetry(ctx,
		`UPDATE jobs SET status = ?, updated_at = ? WHERE id = ?`,
		string(to), now, job.ID)
	if err != nil {
		return err
	}
	job.Status = to
	job.UpdatedAt = now
	return nil
}

// UpdateProgress persists the frame counters and output path.
func (s *Store) UpdateProgress(ctx context.Context, job *Job) error {
	now := time.Now().UTC()
	err := s.execWithRetry(ctx,
		`UPDATE jobs SET frames_expected = ?, frames_encoded = ?, used_fallback = ?,
		 output_path = ?, updated_at = ? WHERE id = ?`,
		job.FramesExpected, job.FramesEncoded, boolToInt(job.UsedFallback),
		job.OutputPath, now, job.ID)
	if err != nil {
		return err
	}
	job.UpdatedAt = now
	return nil
}

// MarkFailed records the terminal failure with its classified kind.
func (s *Store) MarkFailed(ctx context.Context, job *Job, kind services.ErrorKind, message string, failedFrame int64) error {
	now := time.Now().UTC()
	err := s.execWithRetry(ctx,
		`UPDATE jobs SET status = ?, error_kind = ?, error_message = ?, failed_frame = ?,
		 updated_at = ? WHERE id = ?`,
		string(StatusFailed), string(kind), message, failedFrame, now, job.ID)
	if err != nil {
		return err
	}
	job.Status = StatusFailed
	job.ErrorKind = string(kind)
	job.ErrorMessage = message
	job.FailedFrame = failedFrame
	job.UpdatedAt = now
	return nil
}

// RecoverStale fails any job left in a processing state by a previous run.
func (s *Store) RecoverStale(ctx context.Context) (int64, error) {
	states := make([]string, 0, len(processingStatuses))
	for status := range processingStatuses {
		states = append(states, "'"+string(status)+"'")
	}
	var count int64
	err := retryOnBusy(ctx, func() error {
		res, err := s.db.ExecContext(ctx,
			`UPDATE jobs SET status = ?, error_kind = ?, error_message = ?, updated_at = ?
			 WHERE status IN (`+strings.Join(states, ",")+`)`,
			string(StatusFailed), string(services.KindCancelled), InterruptedReason, time.Now().UTC())
		if err != nil {
			return err
		}
		count, err = res.RowsAffected()
		return err
	})
	return count, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*Job, error) {
	var (
		job      Job
		status   string
		fallback int
	)
	err := row.Scan(&job.ID, &status, &job.AudioPath, &job.CuesPath, &job.BackgroundPath,
		&job.OutputPath, &job.FramesExpected, &job.FramesEncoded, &fallback,
		&job.ErrorKind, &job.ErrorMessage, &job.FailedFrame, &job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		return nil, err
	}
	job.Status = Status(status)
	job.UsedFallback = fallback != 0
	return &job, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
