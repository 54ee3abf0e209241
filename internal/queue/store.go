package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"mocap/internal/config"
)

// Store manages trial persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the queue database and applies migrations.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(filepath.Join(cfg.Paths.DataDir, "queue.db"))
}

// OpenPath opens the queue database at an explicit path.
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
func (s *Store) Path() string { return s.path }

// Enqueue inserts a new pending trial and mints its UUID.
func (s *Store) Enqueue(ctx context.Context, session, name, activity string) (*Trial, error) {
	if session == "" || name == "" {
		return nil, errors.New("session and trial name are required")
	}
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	trialID := uuid.NewString()

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO trials (trial_id, session, name, activity, status, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?)`,
		trialID, session, name, nullableString(activity), StatusPending, timestamp, timestamp)
	if err != nil {
		return nil, fmt.Errorf("insert trial: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

// GetByID fetches a trial by row identifier; nil when absent.
func (s *Store) GetByID(ctx context.Context, id int64) (*Trial, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+trialColumns+` FROM trials WHERE id = ?`, id)
	trial, err := scanTrial(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get trial: %w", err)
	}
	return trial, nil
}

// GetByTrialID fetches a trial by its UUID; nil when absent.
func (s *Store) GetByTrialID(ctx context.Context, trialID string) (*Trial, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+trialColumns+` FROM trials WHERE trial_id = ?`, trialID)
	trial, err := scanTrial(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get trial by uuid: %w", err)
	}
	return trial, nil
}

// NextPending returns the oldest pending trial, or nil when the queue is
// drained.
func (s *Store) NextPending(ctx context.Context) (*Trial, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+trialColumns+` FROM trials WHERE status = ? ORDER BY created_at, id LIMIT 1`,
		StatusPending)
	trial, err := scanTrial(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("next pending: %w", err)
	}
	return trial, nil
}

// MarkProcessing transitions a pending trial to processing. Returns false
// when the trial was not pending, so two pollers cannot claim the same row.
func (s *Store) MarkProcessing(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE trials SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		StatusProcessing, now(), id, StatusPending)
	if err != nil {
		return false, fmt.Errorf("mark processing: %w", err)
	}
	affected, err := res.RowsAffected()
	return affected > 0, err
}

// MarkCompleted finishes a trial and records its exported output path.
func (s *Store) MarkCompleted(ctx context.Context, id int64, outputPath string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE trials SET status = ?, output_path = ?, error_user = NULL, error_dev = NULL,
             error_kind = NULL, updated_at = ? WHERE id = ?`,
		StatusCompleted, nullableString(outputPath), now(), id)
	if err != nil {
		return fmt.Errorf("mark completed: %w", err)
	}
	return nil
}

// MarkFailed finishes a trial with the two-part error payload.
func (s *Store) MarkFailed(ctx context.Context, id int64, kind, userMsg, devMsg string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE trials SET status = ?, error_kind = ?, error_user = ?, error_dev = ?, updated_at = ?
         WHERE id = ?`,
		StatusFailed, nullableString(kind), nullableString(userMsg), nullableString(devMsg), now(), id)
	if err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	return nil
}

// ResetStuckProcessing returns processing trials to pending; used on daemon
// startup after an unclean shutdown.
func (s *Store) ResetStuckProcessing(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE trials SET status = ?, updated_at = ? WHERE status = ?`,
		StatusPending, now(), StatusProcessing)
	if err != nil {
		return 0, fmt.Errorf("reset stuck trials: %w", err)
	}
	return res.RowsAffected()
}

// RetryFailed moves failed trials back to pending, clearing their payloads.
func (s *Store) RetryFailed(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE trials SET status = ?, error_user = NULL, error_dev = NULL, error_kind = NULL,
             updated_at = ? WHERE status = ?`,
		StatusPending, now(), StatusFailed)
	if err != nil {
		return 0, fmt.Errorf("retry failed trials: %w", err)
	}
	return res.RowsAffected()
}

// List returns trials filtered by status set (or everything when no status
// is given), oldest first.
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Trial, error) {
	query := `SELECT ` + trialColumns + ` FROM trials`
	args := make([]any, 0, len(statuses))
	if len(statuses) > 0 {
		query += ` WHERE status IN (` + placeholders(len(statuses)) + `)`
		for _, status := range statuses {
			args = append(args, status)
		}
	}
	query += ` ORDER BY created_at, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list trials: %w", err)
	}
	defer rows.Close()

	var trials []*Trial
	for rows.Next() {
		trial, err := scanTrial(rows)
		if err != nil {
			return nil, err
		}
		trials = append(trials, trial)
	}
	return trials, rows.Err()
}

// Stats returns a count of trials grouped by status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM trials GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("queue stats: %w", err)
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

// Remove deletes a trial by identifier.
func (s *Store) Remove(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM trials WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete trial: %w", err)
	}
	affected, err := res.RowsAffected()
	return affected > 0, err
}

// Clear removes trials matching the statuses, or everything when none given.
func (s *Store) Clear(ctx context.Context, statuses ...Status) (int64, error) {
	query := `DELETE FROM trials`
	args := make([]any, 0, len(statuses))
	if len(statuses) > 0 {
		query += ` WHERE status IN (` + placeholders(len(statuses)) + `)`
		for _, status := range statuses {
			args = append(args, status)
		}
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("clear queue: %w", err)
	}
	return res.RowsAffected()
}

const trialColumns = "id, trial_id, session, name, activity, status, error_kind, error_user, error_dev, output_path, created_at, updated_at"

func scanTrial(scanner interface{ Scan(dest ...any) error }) (*Trial, error) {
	var (
		trial      Trial
		statusStr  string
		activity   sql.NullString
		errorKind  sql.NullString
		errorUser  sql.NullString
		errorDev   sql.NullString
		outputPath sql.NullString
		createdRaw string
		updatedRaw string
	)
	if err := scanner.Scan(
		&trial.ID, &trial.TrialID, &trial.Session, &trial.Name, &activity,
		&statusStr, &errorKind, &errorUser, &errorDev, &outputPath,
		&createdRaw, &updatedRaw,
	); err != nil {
		return nil, err
	}
	trial.Status = Status(statusStr)
	trial.Activity = activity.String
	trial.ErrorKind = errorKind.String
	trial.ErrorUser = errorUser.String
	trial.ErrorDev = errorDev.String
	trial.OutputPath = outputPath.String
	if t, err := time.Parse(time.RFC3339Nano, createdRaw); err == nil {
		trial.CreatedAt = t
	}
	if t, err := time.Parse(time.RFC3339Nano, updatedRaw); err == nil {
		trial.UpdatedAt = t
	}
	return &trial, nil
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func placeholders(count int) string {
	out := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			out = append(out, ',')
		}
		out = append(out, '?')
	}
	return string(out)
}
