package jobs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"reelforge/internal/config"
	"reelforge/internal/services"
)

// Store manages render history backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

const jobColumns = "id, title, project_path, source_path, output_path, status, frames_rendered, frames_total, progress, error_kind, error_message, archive_path, created_at, updated_at, started_at, finished_at"

// Open initializes or connects to the job database and applies migrations.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(cfg.JobDatabasePath())
}

// OpenPath opens the database at an explicit path.
func OpenPath(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
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
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.applyMigrations(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// Create records a pending render.
func (s *Store) Create(ctx context.Context, job NewJob) (*Job, error) {
	if strings.TrimSpace(job.OutputPath) == "" {
		return nil, services.Wrap(services.ErrValidation, "jobs", "create", "output path is required", nil)
	}
	id := uuid.NewString()
	timestamp := formatTime(time.Now())
	if err := s.execWithoutResultRetry(
		ctx,
		`INSERT INTO render_jobs (
            id, title, project_path, source_path, output_path, status,
            frames_rendered, frames_total, progress, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, 0, 0, 0, ?, ?)`,
		id,
		job.Title,
		job.ProjectPath,
		job.SourcePath,
		job.OutputPath,
		StatusPending,
		timestamp,
		timestamp,
	); err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}
	return s.Get(ctx, id)
}

// MarkRendering moves a pending job into rendering with its frame total.
func (s *Store) MarkRendering(ctx context.Context, id string, framesTotal int) error {
	now := formatTime(time.Now())
	return s.transition(ctx, id, "mark rendering",
		`UPDATE render_jobs SET status = ?, frames_total = ?, started_at = ?, updated_at = ? WHERE id = ? AND status = ?`,
		StatusRendering, framesTotal, now, now, id, StatusPending)
}

// UpdateProgress records frames written so far.
func (s *Store) UpdateProgress(ctx context.Context, id string, framesRendered int, progress float64) error {
	return s.transition(ctx, id, "update progress",
		`UPDATE render_jobs SET frames_rendered = ?, progress = ?, updated_at = ? WHERE id = ? AND status = ?`,
		framesRendered, clampProgress(progress), formatTime(time.Now()), id, StatusRendering)
}

// Complete marks a rendering job as finished.
func (s *Store) Complete(ctx context.Context, id string, archivePath string) error {
	now := formatTime(time.Now())
	return s.transition(ctx, id, "complete",
		`UPDATE render_jobs SET status = ?, frames_rendered = frames_total, progress = 1, archive_path = ?, finished_at = ?, updated_at = ? WHERE id = ? AND status = ?`,
		StatusCompleted, nullableString(archivePath), now, now, id, StatusRendering)
}

// Fail records a terminal error. Pending and rendering jobs can fail.
func (s *Store) Fail(ctx context.Context, id string, cause error) error {
	message := "unknown error"
	if cause != nil {
		message = cause.Error()
	}
	now := formatTime(time.Now())
	return s.transition(ctx, id, "fail",
		`UPDATE render_jobs SET status = ?, error_kind = ?, error_message = ?, finished_at = ?, updated_at = ? WHERE id = ? AND status IN (?, ?)`,
		StatusFailed, nullableString(services.Kind(cause)), message, now, now, id, StatusPending, StatusRendering)
}

func (s *Store) transition(ctx context.Context, id, operation, query string, args ...any) error {
	res, err := s.execWithRetry(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", operation, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		job, getErr := s.Get(ctx, id)
		if getErr != nil {
			return getErr
		}
		return services.Wrap(services.ErrValidation, "jobs", operation, fmt.Sprintf("job %s is %s", id, job.Status), nil)
	}
	return nil
}

// Get fetches a job by id or unique id prefix.
func (s *Store) Get(ctx context.Context, id string) (*Job, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, services.Wrap(services.ErrValidation, "jobs", "get", "job id is required", nil)
	}
	prefix := id + "%"
	if strings.ContainsAny(id, "%_") {
		prefix = id
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+jobColumns+` FROM render_jobs WHERE id = ? OR id LIKE ? ORDER BY id = ? DESC LIMIT 2`, id, prefix, id)
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	defer rows.Close()

	var matches []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		matches = append(matches, job)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	switch {
	case len(matches) == 0:
		return nil, services.Wrap(services.ErrNotFound, "jobs", "get", fmt.Sprintf("job %s", id), nil)
	case matches[0].ID == id || len(matches) == 1:
		return matches[0], nil
	default:
		return nil, services.Wrap(services.ErrValidation, "jobs", "get", fmt.Sprintf("job id prefix %s is ambiguous", id), nil)
	}
}

// List returns jobs filtered by status set (or all jobs when no status is
// provided), newest first.
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Job, error) {
	query := `SELECT ` + jobColumns + ` FROM render_jobs`
	args := make([]any, 0, len(statuses))
	if len(statuses) > 0 {
		query += ` WHERE status IN (` + makePlaceholders(len(statuses)) + `)`
		for _, status := range statuses {
			args = append(args, status)
		}
	}
	query += ` ORDER BY created_at DESC, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var out []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, job)
	}
	return out, rows.Err()
}

// Stats returns a count of jobs grouped by status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM render_jobs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("job stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

// Clear removes finished jobs with the given statuses, or every terminal job
// when none are provided. In-flight jobs are never removed.
func (s *Store) Clear(ctx context.Context, statuses ...Status) (int64, error) {
	if len(statuses) == 0 {
		statuses = []Status{StatusCompleted, StatusFailed}
	}
	args := make([]any, 0, len(statuses))
	for _, status := range statuses {
		if !status.IsTerminal() {
			return 0, services.Wrap(services.ErrValidation, "jobs", "clear", fmt.Sprintf("cannot clear %s jobs", status), nil)
		}
		args = append(args, status)
	}
	res, err := s.execWithRetry(ctx, `DELETE FROM render_jobs WHERE status IN (`+makePlaceholders(len(args))+`)`, args...)
	if err != nil {
		return 0, fmt.Errorf("clear jobs: %w", err)
	}
	return res.RowsAffected()
}

// ResetStuck fails jobs left pending or rendering by a process that exited
// without finishing them.
func (s *Store) ResetStuck(ctx context.Context) (int64, error) {
	now := formatTime(time.Now())
	res, err := s.execWithRetry(
		ctx,
		`UPDATE render_jobs
         SET status = ?, error_kind = 'render', error_message = ?, finished_at = ?, updated_at = ?
         WHERE status IN (?, ?)`,
		StatusFailed, CrashReason, now, now,
		StatusPending, StatusRendering,
	)
	if err != nil {
		return 0, fmt.Errorf("reset stuck jobs: %w", err)
	}
	return res.RowsAffected()
}

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		job          Job
		status       string
		errorKind    sql.NullString
		errorMessage sql.NullString
		archivePath  sql.NullString
		createdRaw   string
		updatedRaw   string
		startedRaw   sql.NullString
		finishedRaw  sql.NullString
	)
	if err := scanner.Scan(
		&job.ID,
		&job.Title,
		&job.ProjectPath,
		&job.SourcePath,
		&job.OutputPath,
		&status,
		&job.FramesRendered,
		&job.FramesTotal,
		&job.Progress,
		&errorKind,
		&errorMessage,
		&archivePath,
		&createdRaw,
		&updatedRaw,
		&startedRaw,
		&finishedRaw,
	); err != nil {
		return nil, fmt.Errorf("scan job: %w", err)
	}
	job.Status = Status(status)
	job.ErrorKind = errorKind.String
	job.ErrorMessage = errorMessage.String
	job.ArchivePath = archivePath.String
	if t, err := parseTimeString(createdRaw); err == nil {
		job.CreatedAt = t
	}
	if t, err := parseTimeString(updatedRaw); err == nil {
		job.UpdatedAt = t
	}
	if startedRaw.Valid {
		if t, err := parseTimeString(startedRaw.String); err == nil {
			job.StartedAt = &t
		}
	}
	if finishedRaw.Valid {
		if t, err := parseTimeString(finishedRaw.String); err == nil {
			job.FinishedAt = &t
		}
	}
	return &job, nil
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

func (s *Store) execWithRetry(ctx context.Context, query string, args ...any) (sql.Result, error) {
	var (
		res     sql.Result
		execErr error
	)
	if err := retryOnBusy(ctx, func() error {
		res, execErr = s.db.ExecContext(ctx, query, args...)
		return execErr
	}); err != nil {
		return nil, err
	}
	return res, nil
}

func (s *Store) execWithoutResultRetry(ctx context.Context, query string, args ...any) error {
	return retryOnBusy(ctx, func() error {
		_, err := s.db.ExecContext(ctx, query, args...)
		return err
	})
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func clampProgress(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", count), ",")
}
