package content

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/easelhq/easel/errors"
)

// Store handles persistence of content records.
//
// Status mutations always use conditional writes keyed on the expected prior
// status: the store is shared with other collaborators and never assumes
// exclusive ownership of a record.
type Store struct {
	db *sql.DB
}

// NewStore creates a new content store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Filter narrows List results. Zero values mean no restriction.
type Filter struct {
	Status Status
	Type   Type
	Limit  int
}

// Create inserts a new content record.
func (s *Store) Create(ctx context.Context, c *Content) error {
	query := `
		INSERT INTO contents (
			id, title, description, type, media, tags, status,
			scheduled_at, published_at, view_count, engagement_score,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	media, err := marshalList(c.Media)
	if err != nil {
		return errors.Wrap(err, "marshal media")
	}
	tags, err := marshalList(c.Tags)
	if err != nil {
		return errors.Wrap(err, "marshal tags")
	}

	_, err = s.db.ExecContext(ctx, query,
		c.ID,
		c.Title,
		c.Description,
		string(c.Type),
		media,
		tags,
		string(c.Status),
		nullTime(c.ScheduledAt),
		nullTime(c.PublishedAt),
		c.ViewCount,
		c.EngagementScore,
		c.CreatedAt.UTC().Format(time.RFC3339),
		c.UpdatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return errors.Mark(errors.Wrap(err, "create content"), errors.ErrStoreUnavailable)
	}

	return nil
}

// Get retrieves a content record by ID.
func (s *Store) Get(ctx context.Context, id string) (*Content, error) {
	query := `
		SELECT id, title, description, type, media, tags, status,
		       scheduled_at, published_at, view_count, engagement_score,
		       created_at, updated_at
		FROM contents
		WHERE id = ?
	`

	c, err := scanContent(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.NewNotFoundError("content %s", id)
		}
		return nil, errors.Mark(errors.Wrapf(err, "get content %s", id), errors.ErrStoreUnavailable)
	}

	return c, nil
}

// List returns content records matching the filter, newest first.
func (s *Store) List(ctx context.Context, f Filter) ([]*Content, error) {
	query := `
		SELECT id, title, description, type, media, tags, status,
		       scheduled_at, published_at, view_count, engagement_score,
		       created_at, updated_at
		FROM contents
	`

	var conds []string
	var args []interface{}
	if f.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, string(f.Status))
	}
	if f.Type != "" {
		conds = append(conds, "type = ?")
		args = append(args, string(f.Type))
	}
	for i, cond := range conds {
		if i == 0 {
			query += " WHERE " + cond
		} else {
			query += " AND " + cond
		}
	}
	query += " ORDER BY created_at DESC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "list contents"), errors.ErrStoreUnavailable)
	}
	defer rows.Close()

	var contents []*Content
	for rows.Next() {
		c, err := scanContent(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan content")
		}
		contents = append(contents, c)
	}

	return contents, rows.Err()
}

// Update persists the authoring fields of a content record: title,
// description, media, and tags. Status fields are mutated only through the
// conditional operations below.
func (s *Store) Update(ctx context.Context, c *Content) error {
	media, err := marshalList(c.Media)
	if err != nil {
		return errors.Wrap(err, "marshal media")
	}
	tags, err := marshalList(c.Tags)
	if err != nil {
		return errors.Wrap(err, "marshal tags")
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE contents
		SET title = ?, description = ?, media = ?, tags = ?, updated_at = ?
		WHERE id = ?
	`, c.Title, c.Description, media, tags, time.Now().UTC().Format(time.RFC3339), c.ID)
	if err != nil {
		return errors.Mark(errors.Wrapf(err, "update content %s", c.ID), errors.ErrStoreUnavailable)
	}

	return s.requireRow(result, c.ID)
}

// UpdateStatus conditionally moves a content record from one status to
// another. Returns ErrNotFound if the record does not exist, ErrConflict if
// its status no longer matches from.
func (s *Store) UpdateStatus(ctx context.Context, id string, from, to Status) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE contents
		SET status = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`, string(to), time.Now().UTC().Format(time.RFC3339), id, string(from))
	if err != nil {
		return errors.Mark(errors.Wrapf(err, "update status of content %s", id), errors.ErrStoreUnavailable)
	}

	return s.requireConditionalRow(ctx, result, id, from)
}

// SetSchedule conditionally moves a content record from one status to
// another while recording its scheduled publication time.
func (s *Store) SetSchedule(ctx context.Context, id string, from, to Status, at time.Time) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE contents
		SET status = ?, scheduled_at = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`, string(to), at.UTC().Format(time.RFC3339), time.Now().UTC().Format(time.RFC3339), id, string(from))
	if err != nil {
		return errors.Mark(errors.Wrapf(err, "set schedule on content %s", id), errors.ErrStoreUnavailable)
	}

	return s.requireConditionalRow(ctx, result, id, from)
}

// ClearSchedule conditionally moves a content record from one status to
// another while clearing its scheduled publication time.
func (s *Store) ClearSchedule(ctx context.Context, id string, from, to Status) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE contents
		SET status = ?, scheduled_at = NULL, updated_at = ?
		WHERE id = ? AND status = ?
	`, string(to), time.Now().UTC().Format(time.RFC3339), id, string(from))
	if err != nil {
		return errors.Mark(errors.Wrapf(err, "clear schedule on content %s", id), errors.ErrStoreUnavailable)
	}

	return s.requireConditionalRow(ctx, result, id, from)
}

// SetScheduledAt updates only the scheduled publication time. Used by
// reschedule, which leaves status fields untouched.
func (s *Store) SetScheduledAt(ctx context.Context, id string, at time.Time) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE contents
		SET scheduled_at = ?, updated_at = ?
		WHERE id = ?
	`, at.UTC().Format(time.RFC3339), time.Now().UTC().Format(time.RFC3339), id)
	if err != nil {
		return errors.Mark(errors.Wrapf(err, "set scheduled_at on content %s", id), errors.ErrStoreUnavailable)
	}

	return s.requireRow(result, id)
}

// ClearScheduledAt nulls only the scheduled publication time, leaving
// status untouched. Used when a schedule resolves as failed: the schedule
// record is no longer pending, so the content must not advertise a pending
// time either.
func (s *Store) ClearScheduledAt(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE contents
		SET scheduled_at = NULL, updated_at = ?
		WHERE id = ?
	`, time.Now().UTC().Format(time.RFC3339), id)
	if err != nil {
		return errors.Mark(errors.Wrapf(err, "clear scheduled_at on content %s", id), errors.ErrStoreUnavailable)
	}

	return s.requireRow(result, id)
}

// MarkPublished conditionally moves a content record from the given status
// to published, sets published_at, and clears scheduled_at. published_at is
// written exactly once: the conditional write cannot match an
// already-published record.
func (s *Store) MarkPublished(ctx context.Context, id string, from Status, at time.Time) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE contents
		SET status = ?, published_at = ?, scheduled_at = NULL, updated_at = ?
		WHERE id = ? AND status = ?
	`, string(StatusPublished), at.UTC().Format(time.RFC3339), time.Now().UTC().Format(time.RFC3339), id, string(from))
	if err != nil {
		return errors.Mark(errors.Wrapf(err, "mark content %s published", id), errors.ErrStoreUnavailable)
	}

	return s.requireConditionalRow(ctx, result, id, from)
}

// Delete removes a content record. The lifecycle core never calls this; it
// exists for the authoring surface.
func (s *Store) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM contents WHERE id = ?`, id)
	if err != nil {
		return errors.Mark(errors.Wrapf(err, "delete content %s", id), errors.ErrStoreUnavailable)
	}

	return s.requireRow(result, id)
}

// IncrementViewCount adds one view to a content record.
func (s *Store) IncrementViewCount(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE contents SET view_count = view_count + 1, updated_at = ? WHERE id = ?
	`, time.Now().UTC().Format(time.RFC3339), id)
	if err != nil {
		return errors.Mark(errors.Wrapf(err, "increment view count of content %s", id), errors.ErrStoreUnavailable)
	}

	return s.requireRow(result, id)
}

// AddEngagement adds delta to a content record's engagement score.
func (s *Store) AddEngagement(ctx context.Context, id string, delta float64) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE contents SET engagement_score = engagement_score + ?, updated_at = ? WHERE id = ?
	`, delta, time.Now().UTC().Format(time.RFC3339), id)
	if err != nil {
		return errors.Mark(errors.Wrapf(err, "add engagement to content %s", id), errors.ErrStoreUnavailable)
	}

	return s.requireRow(result, id)
}

// requireRow converts a zero-row unconditional update into ErrNotFound.
func (s *Store) requireRow(result sql.Result, id string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "rows affected")
	}
	if n == 0 {
		return errors.NewNotFoundError("content %s", id)
	}
	return nil
}

// requireConditionalRow distinguishes the two ways a conditional status
// write can match zero rows: the record is missing (ErrNotFound) or its
// status changed under us (ErrConflict). The precondition is rejected, never
// overwritten.
func (s *Store) requireConditionalRow(ctx context.Context, result sql.Result, id string, expected Status) error {
	n, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "rows affected")
	}
	if n > 0 {
		return nil
	}

	var current string
	err = s.db.QueryRowContext(ctx, `SELECT status FROM contents WHERE id = ?`, id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return errors.NewNotFoundError("content %s", id)
	}
	if err != nil {
		return errors.Mark(errors.Wrapf(err, "read status of content %s", id), errors.ErrStoreUnavailable)
	}
	return errors.Wrapf(errors.ErrConflict,
		"content %s is %s, expected %s", id, current, expected)
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanContent(row rowScanner) (*Content, error) {
	var c Content
	var contentType, status, createdAt, updatedAt string
	var media, tags, scheduledAt, publishedAt sql.NullString

	err := row.Scan(
		&c.ID,
		&c.Title,
		&c.Description,
		&contentType,
		&media,
		&tags,
		&status,
		&scheduledAt,
		&publishedAt,
		&c.ViewCount,
		&c.EngagementScore,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	c.Type = Type(contentType)
	c.Status = Status(status)

	if c.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return nil, errors.Wrapf(err, "parse created_at for content %s", c.ID)
	}
	if c.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return nil, errors.Wrapf(err, "parse updated_at for content %s", c.ID)
	}
	if c.ScheduledAt, err = parseNullTime(scheduledAt); err != nil {
		return nil, errors.Wrapf(err, "parse scheduled_at for content %s", c.ID)
	}
	if c.PublishedAt, err = parseNullTime(publishedAt); err != nil {
		return nil, errors.Wrapf(err, "parse published_at for content %s", c.ID)
	}

	if media.Valid {
		if err := json.Unmarshal([]byte(media.String), &c.Media); err != nil {
			return nil, errors.Wrapf(err, "unmarshal media for content %s", c.ID)
		}
	}
	if tags.Valid {
		if err := json.Unmarshal([]byte(tags.String), &c.Tags); err != nil {
			return nil, errors.Wrapf(err, "unmarshal tags for content %s", c.ID)
		}
	}

	return &c, nil
}

func marshalList(list []string) (interface{}, error) {
	if len(list) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(list)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func nullTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

func parseNullTime(s sql.NullString) (*time.Time, error) {
	if !s.Valid {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
