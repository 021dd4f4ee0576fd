package publish

import (
	"context"
	"database/sql"
	"time"

	"github.com/easelhq/easel/errors"
)

// dueBatchLimit caps how many due schedules one publisher run processes.
// Remaining records are picked up by the next run.
const dueBatchLimit = 100

// Store handles persistence of scheduled publications.
//
// Terminal transitions (MarkPublished, MarkFailed) are conditional on the
// record still being pending, so overlapping publisher runs cannot both
// record the same publication.
type Store struct {
	db *sql.DB
}

// NewStore creates a new scheduled publication store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Create inserts a new scheduled publication.
func (s *Store) Create(ctx context.Context, sp *ScheduledPublication) error {
	query := `
		INSERT INTO scheduled_publications (
			id, content_id, scheduled_at, status, published_at,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	var publishedAt interface{}
	if sp.PublishedAt != nil {
		publishedAt = sp.PublishedAt.UTC().Format(time.RFC3339)
	}

	_, err := s.db.ExecContext(ctx, query,
		sp.ID,
		sp.ContentID,
		sp.ScheduledAt.UTC().Format(time.RFC3339),
		sp.Status,
		publishedAt,
		sp.CreatedAt.UTC().Format(time.RFC3339),
		sp.UpdatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return errors.Mark(errors.Wrap(err, "create scheduled publication"), errors.ErrStoreUnavailable)
	}

	return nil
}

// Get retrieves a scheduled publication by ID.
func (s *Store) Get(ctx context.Context, id string) (*ScheduledPublication, error) {
	query := selectColumns + ` WHERE id = ?`

	sp, err := scanSchedule(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.NewNotFoundError("scheduled publication %s", id)
		}
		return nil, errors.Mark(errors.Wrapf(err, "get scheduled publication %s", id), errors.ErrStoreUnavailable)
	}

	return sp, nil
}

// FindPendingByContent returns the pending schedule for a content record, or
// nil if none exists. At most one pending schedule may exist per content;
// the scheduler enforces this through this lookup.
func (s *Store) FindPendingByContent(ctx context.Context, contentID string) (*ScheduledPublication, error) {
	query := selectColumns + ` WHERE content_id = ? AND status = ? LIMIT 1`

	sp, err := scanSchedule(s.db.QueryRowContext(ctx, query, contentID, StatusPending))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.Mark(errors.Wrapf(err, "find pending schedule for content %s", contentID), errors.ErrStoreUnavailable)
	}

	return sp, nil
}

// ListDue returns pending schedules whose scheduled_at is at or before now,
// oldest first. Limited per batch; the next run picks up the remainder.
func (s *Store) ListDue(ctx context.Context, now time.Time) ([]*ScheduledPublication, error) {
	query := selectColumns + `
		WHERE status = ? AND scheduled_at <= ?
		ORDER BY scheduled_at ASC
		LIMIT ?
	`

	rows, err := s.db.QueryContext(ctx, query, StatusPending, now.UTC().Format(time.RFC3339), dueBatchLimit)
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "list due schedules"), errors.ErrStoreUnavailable)
	}
	defer rows.Close()

	return collectSchedules(rows)
}

// List returns schedules ordered by scheduled time, soonest first.
// Status narrows the result when non-empty.
func (s *Store) List(ctx context.Context, status string) ([]*ScheduledPublication, error) {
	query := selectColumns
	var args []interface{}
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY scheduled_at ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "list schedules"), errors.ErrStoreUnavailable)
	}
	defer rows.Close()

	return collectSchedules(rows)
}

// Reschedule updates scheduled_at on a still-pending schedule.
// Returns ErrNotFound if the record does not exist or is no longer pending.
func (s *Store) Reschedule(ctx context.Context, id string, at time.Time) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE scheduled_publications
		SET scheduled_at = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`, at.UTC().Format(time.RFC3339), time.Now().UTC().Format(time.RFC3339), id, StatusPending)
	if err != nil {
		return errors.Mark(errors.Wrapf(err, "reschedule %s", id), errors.ErrStoreUnavailable)
	}

	return s.requirePendingRow(result, id)
}

// MarkPublished transitions a pending schedule to published and records the
// publication time. Returns false with no error when the record was no
// longer pending: a concurrent run already resolved it, and the caller
// should skip the item rather than report a failure.
func (s *Store) MarkPublished(ctx context.Context, id string, at time.Time) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE scheduled_publications
		SET status = ?, published_at = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`, StatusPublished, at.UTC().Format(time.RFC3339), time.Now().UTC().Format(time.RFC3339), id, StatusPending)
	if err != nil {
		return false, errors.Mark(errors.Wrapf(err, "mark schedule %s published", id), errors.ErrStoreUnavailable)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "rows affected")
	}
	return n > 0, nil
}

// MarkFailed transitions a pending schedule to failed. Best effort: a record
// that is no longer pending is left as is.
func (s *Store) MarkFailed(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE scheduled_publications
		SET status = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`, StatusFailed, time.Now().UTC().Format(time.RFC3339), id, StatusPending)
	if err != nil {
		return errors.Mark(errors.Wrapf(err, "mark schedule %s failed", id), errors.ErrStoreUnavailable)
	}
	return nil
}

// Delete removes a scheduled publication. Cancellation only applies to
// pending schedules; resolved records are kept as history.
func (s *Store) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM scheduled_publications WHERE id = ? AND status = ?
	`, id, StatusPending)
	if err != nil {
		return errors.Mark(errors.Wrapf(err, "delete schedule %s", id), errors.ErrStoreUnavailable)
	}

	return s.requirePendingRow(result, id)
}

// requirePendingRow converts a zero-row pending-conditional write into
// ErrNotFound. A schedule that exists but is already published or failed is
// rejected the same way a missing one is, not silently ignored.
func (s *Store) requirePendingRow(result sql.Result, id string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "rows affected")
	}
	if n == 0 {
		return errors.NewNotFoundError("pending scheduled publication %s", id)
	}
	return nil
}

const selectColumns = `
	SELECT id, content_id, scheduled_at, status, published_at,
	       created_at, updated_at
	FROM scheduled_publications`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSchedule(row rowScanner) (*ScheduledPublication, error) {
	var sp ScheduledPublication
	var scheduledAt, createdAt, updatedAt string
	var publishedAt sql.NullString

	err := row.Scan(
		&sp.ID,
		&sp.ContentID,
		&scheduledAt,
		&sp.Status,
		&publishedAt,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if sp.ScheduledAt, err = time.Parse(time.RFC3339, scheduledAt); err != nil {
		return nil, errors.Wrapf(err, "parse scheduled_at for schedule %s", sp.ID)
	}
	if sp.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return nil, errors.Wrapf(err, "parse created_at for schedule %s", sp.ID)
	}
	if sp.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return nil, errors.Wrapf(err, "parse updated_at for schedule %s", sp.ID)
	}
	if publishedAt.Valid {
		t, err := time.Parse(time.RFC3339, publishedAt.String)
		if err != nil {
			return nil, errors.Wrapf(err, "parse published_at for schedule %s", sp.ID)
		}
		sp.PublishedAt = &t
	}

	return &sp, nil
}

func collectSchedules(rows *sql.Rows) ([]*ScheduledPublication, error) {
	var schedules []*ScheduledPublication
	for rows.Next() {
		sp, err := scanSchedule(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan schedule")
		}
		schedules = append(schedules, sp)
	}
	return schedules, rows.Err()
}
