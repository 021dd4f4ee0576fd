package publish

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/easelhq/easel/content"
	"github.com/easelhq/easel/errors"
	easeltest "github.com/easelhq/easel/internal/testing"
)

func newTestScheduler(t *testing.T) (*Scheduler, *content.Store, *Store, *sql.DB) {
	t.Helper()
	database := easeltest.CreateTestDB(t)
	contents := content.NewStore(database)
	schedules := NewStore(database)
	return NewScheduler(contents, schedules), contents, schedules, database
}

func createDraft(t *testing.T, contents *content.Store) *content.Content {
	t.Helper()
	c := content.New("Scheduled launch", "", content.TypePost)
	require.NoError(t, contents.Create(context.Background(), c))
	return c
}

func TestSchedule(t *testing.T) {
	scheduler, contents, _, _ := newTestScheduler(t)
	ctx := context.Background()

	c := createDraft(t, contents)
	at := time.Now().Add(time.Hour).UTC().Truncate(time.Second)

	sp, err := scheduler.Schedule(ctx, c.ID, at)
	require.NoError(t, err)
	assert.Equal(t, c.ID, sp.ContentID)
	assert.Equal(t, StatusPending, sp.Status)
	assert.True(t, sp.ScheduledAt.Equal(at))
	assert.Nil(t, sp.PublishedAt)

	// The content moved into review with its scheduled time recorded.
	got, err := contents.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, content.StatusPendingApproval, got.Status)
	require.NotNil(t, got.ScheduledAt)
	assert.True(t, got.ScheduledAt.Equal(at))
}

func TestScheduleRejectsSecondPending(t *testing.T) {
	scheduler, contents, _, _ := newTestScheduler(t)
	ctx := context.Background()

	c := createDraft(t, contents)
	_, err := scheduler.Schedule(ctx, c.ID, time.Now().Add(time.Hour))
	require.NoError(t, err)

	_, err = scheduler.Schedule(ctx, c.ID, time.Now().Add(2*time.Hour))
	require.Error(t, err)
	assert.True(t, errors.IsConflict(err))
}

func TestScheduleRejectsNonDraft(t *testing.T) {
	scheduler, contents, _, _ := newTestScheduler(t)
	ctx := context.Background()

	c := content.New("Already approved", "", content.TypePost)
	c.Status = content.StatusApproved
	require.NoError(t, contents.Create(ctx, c))

	_, err := scheduler.Schedule(ctx, c.ID, time.Now().Add(time.Hour))
	require.Error(t, err)
	assert.True(t, errors.IsInvalidTransition(err))
}

func TestScheduleMissingContent(t *testing.T) {
	scheduler, _, _, _ := newTestScheduler(t)

	_, err := scheduler.Schedule(context.Background(), "no-such-content", time.Now())
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestSchedulePastInstantAccepted(t *testing.T) {
	scheduler, contents, schedules, _ := newTestScheduler(t)
	ctx := context.Background()

	c := createDraft(t, contents)
	at := time.Now().Add(-time.Hour)

	sp, err := scheduler.Schedule(ctx, c.ID, at)
	require.NoError(t, err)

	// A past instant is immediately due.
	due, err := schedules.ListDue(ctx, time.Now())
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, sp.ID, due[0].ID)
}

func TestCancelRestoresDraft(t *testing.T) {
	scheduler, contents, schedules, _ := newTestScheduler(t)
	ctx := context.Background()

	c := createDraft(t, contents)
	sp, err := scheduler.Schedule(ctx, c.ID, time.Now().Add(time.Hour))
	require.NoError(t, err)

	require.NoError(t, scheduler.Cancel(ctx, sp.ID))

	got, err := contents.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, content.StatusDraft, got.Status)
	assert.Nil(t, got.ScheduledAt)

	_, err = schedules.Get(ctx, sp.ID)
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestCancelResolvedSchedule(t *testing.T) {
	scheduler, contents, schedules, _ := newTestScheduler(t)
	ctx := context.Background()

	c := createDraft(t, contents)
	sp, err := scheduler.Schedule(ctx, c.ID, time.Now().Add(-time.Minute))
	require.NoError(t, err)

	won, err := schedules.MarkPublished(ctx, sp.ID, time.Now())
	require.NoError(t, err)
	require.True(t, won)

	err = scheduler.Cancel(ctx, sp.ID)
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestReschedule(t *testing.T) {
	scheduler, contents, _, _ := newTestScheduler(t)
	ctx := context.Background()

	c := createDraft(t, contents)
	sp, err := scheduler.Schedule(ctx, c.ID, time.Now().Add(time.Hour))
	require.NoError(t, err)

	newAt := time.Now().Add(48 * time.Hour).UTC().Truncate(time.Second)
	moved, err := scheduler.Reschedule(ctx, sp.ID, newAt)
	require.NoError(t, err)
	assert.True(t, moved.ScheduledAt.Equal(newAt))
	assert.Equal(t, StatusPending, moved.Status)

	// Both records agree on the new instant.
	got, err := contents.Get(ctx, c.ID)
	require.NoError(t, err)
	require.NotNil(t, got.ScheduledAt)
	assert.True(t, got.ScheduledAt.Equal(newAt))
	assert.Equal(t, content.StatusPendingApproval, got.Status)
}

func TestRescheduleResolvedSchedule(t *testing.T) {
	scheduler, contents, schedules, _ := newTestScheduler(t)
	ctx := context.Background()

	c := createDraft(t, contents)
	sp, err := scheduler.Schedule(ctx, c.ID, time.Now().Add(-time.Minute))
	require.NoError(t, err)

	require.NoError(t, schedules.MarkFailed(ctx, sp.ID))

	_, err = scheduler.Reschedule(ctx, sp.ID, time.Now().Add(time.Hour))
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestScheduleRollsBackContentOnCreateFailure(t *testing.T) {
	scheduler, contents, _, database := newTestScheduler(t)
	ctx := context.Background()

	c := createDraft(t, contents)

	// Block the schedule insert so the write after the content update fails.
	_, err := database.ExecContext(ctx, `
		CREATE TRIGGER block_schedule_insert BEFORE INSERT ON scheduled_publications
		BEGIN SELECT RAISE(ABORT, 'schedule writes disabled'); END
	`)
	require.NoError(t, err)

	_, err = scheduler.Schedule(ctx, c.ID, time.Now().Add(time.Hour))
	require.Error(t, err)

	// The content update is compensated: back to draft with no pending time.
	got, err := contents.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, content.StatusDraft, got.Status)
	assert.Nil(t, got.ScheduledAt)

	// With the block lifted, scheduling the same content works normally.
	_, err = database.ExecContext(ctx, `DROP TRIGGER block_schedule_insert`)
	require.NoError(t, err)
	_, err = scheduler.Schedule(ctx, c.ID, time.Now().Add(time.Hour))
	require.NoError(t, err)
}

func TestCancelRollsBackContentOnDeleteFailure(t *testing.T) {
	scheduler, contents, schedules, database := newTestScheduler(t)
	ctx := context.Background()

	c := createDraft(t, contents)
	at := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	sp, err := scheduler.Schedule(ctx, c.ID, at)
	require.NoError(t, err)

	_, err = database.ExecContext(ctx, `
		CREATE TRIGGER block_schedule_delete BEFORE DELETE ON scheduled_publications
		BEGIN SELECT RAISE(ABORT, 'schedule writes disabled'); END
	`)
	require.NoError(t, err)

	err = scheduler.Cancel(ctx, sp.ID)
	require.Error(t, err)

	// The content reset is compensated: still in review with its time intact.
	got, err := contents.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, content.StatusPendingApproval, got.Status)
	require.NotNil(t, got.ScheduledAt)
	assert.True(t, got.ScheduledAt.Equal(at))

	// The schedule record is untouched and still pending.
	gotSp, err := schedules.Get(ctx, sp.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, gotSp.Status)
	assert.True(t, gotSp.ScheduledAt.Equal(at))
}

func TestRescheduleRollsBackScheduleOnContentFailure(t *testing.T) {
	scheduler, _, schedules, _ := newTestScheduler(t)
	ctx := context.Background()

	// A schedule whose content record is gone: the schedule-side move
	// succeeds, the content-side update cannot.
	at := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	sp := NewScheduledPublication("deleted-content", at)
	require.NoError(t, schedules.Create(ctx, sp))

	_, err := scheduler.Reschedule(ctx, sp.ID, time.Now().Add(48*time.Hour))
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))

	// The schedule record is compensated back onto its original instant.
	got, err := schedules.Get(ctx, sp.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, got.Status)
	assert.True(t, got.ScheduledAt.Equal(at))
}

func TestApproveReject(t *testing.T) {
	scheduler, contents, _, _ := newTestScheduler(t)
	ctx := context.Background()

	c := createDraft(t, contents)
	_, err := scheduler.Schedule(ctx, c.ID, time.Now().Add(time.Hour))
	require.NoError(t, err)

	require.NoError(t, scheduler.Approve(ctx, c.ID))
	got, err := contents.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, content.StatusApproved, got.Status)

	// Approved content cannot be rejected; review is over.
	err = scheduler.Reject(ctx, c.ID)
	require.Error(t, err)
	assert.True(t, errors.IsInvalidTransition(err))
}
