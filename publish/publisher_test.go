package publish

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/easelhq/easel/content"
	"github.com/easelhq/easel/errors"
	easeltest "github.com/easelhq/easel/internal/testing"
	"github.com/easelhq/easel/internal/util"
)

type recordingBroadcaster struct {
	published []string
	failed    []string
}

func (r *recordingBroadcaster) BroadcastPublished(sp *ScheduledPublication, contentID string) {
	r.published = append(r.published, sp.ID)
}

func (r *recordingBroadcaster) BroadcastPublishFailed(sp *ScheduledPublication, reason string) {
	r.failed = append(r.failed, sp.ID)
}

func newTestPublisher(t *testing.T) (*Publisher, *content.Store, *Store, *recordingBroadcaster) {
	t.Helper()
	database := easeltest.CreateTestDB(t)
	contents := content.NewStore(database)
	schedules := NewStore(database)
	broadcaster := &recordingBroadcaster{}
	return NewPublisher(contents, schedules, broadcaster), contents, schedules, broadcaster
}

// createApprovedScheduled seeds an approved content record with a pending
// schedule due at the given instant.
func createApprovedScheduled(t *testing.T, contents *content.Store, schedules *Store, at time.Time) (*content.Content, *ScheduledPublication) {
	t.Helper()
	ctx := context.Background()

	c := content.New("Due post", "", content.TypePost)
	c.Status = content.StatusApproved
	c.ScheduledAt = util.Ptr(at)
	require.NoError(t, contents.Create(ctx, c))

	sp := NewScheduledPublication(c.ID, at)
	require.NoError(t, schedules.Create(ctx, sp))
	return c, sp
}

func TestRunPublishesDueSchedule(t *testing.T) {
	publisher, contents, schedules, broadcaster := newTestPublisher(t)
	ctx := context.Background()

	c, sp := createApprovedScheduled(t, contents, schedules, time.Now().Add(-time.Minute))

	now := time.Now().UTC().Truncate(time.Second)
	report, err := publisher.Run(ctx, now)
	require.NoError(t, err)
	require.Equal(t, 1, report.Processed)
	require.Len(t, report.Results, 1)
	assert.Equal(t, sp.ID, report.Results[0].ID)
	assert.Equal(t, c.ID, report.Results[0].ContentID)
	assert.Equal(t, ResultSuccess, report.Results[0].Status)
	assert.Empty(t, report.Results[0].Error)

	gotContent, err := contents.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, content.StatusPublished, gotContent.Status)
	require.NotNil(t, gotContent.PublishedAt)
	assert.True(t, gotContent.PublishedAt.Equal(now))
	assert.Nil(t, gotContent.ScheduledAt)

	gotSchedule, err := schedules.Get(ctx, sp.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPublished, gotSchedule.Status)
	require.NotNil(t, gotSchedule.PublishedAt)
	assert.True(t, gotSchedule.PublishedAt.Equal(now))

	assert.Equal(t, []string{sp.ID}, broadcaster.published)
	assert.Empty(t, broadcaster.failed)
}

func TestRunIgnoresFutureSchedules(t *testing.T) {
	publisher, contents, schedules, _ := newTestPublisher(t)

	createApprovedScheduled(t, contents, schedules, time.Now().Add(time.Hour))

	report, err := publisher.Run(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, 0, report.Processed)
	assert.Empty(t, report.Results)
}

func TestRunIsIdempotent(t *testing.T) {
	publisher, contents, schedules, _ := newTestPublisher(t)
	ctx := context.Background()

	c, sp := createApprovedScheduled(t, contents, schedules, time.Now().Add(-time.Minute))

	first, err := publisher.Run(ctx, time.Now())
	require.NoError(t, err)
	require.Equal(t, 1, first.Processed)

	afterFirst, err := contents.Get(ctx, c.ID)
	require.NoError(t, err)
	require.NotNil(t, afterFirst.PublishedAt)

	// The schedule is resolved; a second run sees nothing due.
	second, err := publisher.Run(ctx, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 0, second.Processed)

	// A run still holding the stale pending record loses the conditional
	// write and skips the item instead of failing or double-publishing.
	result := publisher.publishOne(ctx, sp, time.Now())
	assert.Equal(t, ResultSkipped, result.Status)

	afterSkip, err := contents.Get(ctx, c.ID)
	require.NoError(t, err)
	require.NotNil(t, afterSkip.PublishedAt)
	assert.True(t, afterSkip.PublishedAt.Equal(*afterFirst.PublishedAt))
}

func TestRunIsolatesFailingItems(t *testing.T) {
	publisher, contents, schedules, broadcaster := newTestPublisher(t)
	ctx := context.Background()

	healthy, healthySp := createApprovedScheduled(t, contents, schedules, time.Now().Add(-2*time.Minute))

	// A schedule whose content no longer exists fails its item only.
	orphan := NewScheduledPublication("deleted-content", time.Now().Add(-time.Minute))
	require.NoError(t, schedules.Create(ctx, orphan))

	report, err := publisher.Run(ctx, time.Now())
	require.NoError(t, err)
	require.Equal(t, 2, report.Processed)

	outcomes := map[string]ItemResult{}
	for _, result := range report.Results {
		outcomes[result.ID] = result
	}

	assert.Equal(t, ResultSuccess, outcomes[healthySp.ID].Status)
	assert.Equal(t, ResultFailed, outcomes[orphan.ID].Status)
	assert.NotEmpty(t, outcomes[orphan.ID].Error)

	gotContent, err := contents.Get(ctx, healthy.ID)
	require.NoError(t, err)
	assert.Equal(t, content.StatusPublished, gotContent.Status)

	// The failed schedule is recorded, not deleted.
	gotOrphan, err := schedules.Get(ctx, orphan.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, gotOrphan.Status)
	assert.Nil(t, gotOrphan.PublishedAt)

	assert.Equal(t, []string{healthySp.ID}, broadcaster.published)
	assert.Equal(t, []string{orphan.ID}, broadcaster.failed)
}

func TestRunFailsUnapprovedContent(t *testing.T) {
	publisher, contents, schedules, _ := newTestPublisher(t)
	ctx := context.Background()

	// Scheduled but never approved: still in review when it comes due.
	at := time.Now().Add(-time.Minute)
	c := content.New("Unreviewed post", "", content.TypePost)
	c.Status = content.StatusPendingApproval
	c.ScheduledAt = util.Ptr(at)
	require.NoError(t, contents.Create(ctx, c))

	sp := NewScheduledPublication(c.ID, at)
	require.NoError(t, schedules.Create(ctx, sp))

	report, err := publisher.Run(ctx, time.Now())
	require.NoError(t, err)
	require.Equal(t, 1, report.Processed)
	assert.Equal(t, ResultFailed, report.Results[0].Status)
	assert.Contains(t, report.Results[0].Error, "pending_approval -> published")

	gotContent, err := contents.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, content.StatusPendingApproval, gotContent.Status)
	assert.Nil(t, gotContent.PublishedAt)
	// No pending schedule remains, so the content carries no pending time.
	assert.Nil(t, gotContent.ScheduledAt)

	gotSchedule, err := schedules.Get(ctx, sp.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, gotSchedule.Status)
}

func TestRunAlreadyPublishedContentIsNoOp(t *testing.T) {
	publisher, contents, schedules, _ := newTestPublisher(t)
	ctx := context.Background()

	publishedAt := time.Now().Add(-time.Hour).UTC().Truncate(time.Second)
	c := content.New("Old post", "", content.TypePost)
	c.Status = content.StatusPublished
	c.PublishedAt = util.Ptr(publishedAt)
	require.NoError(t, contents.Create(ctx, c))

	sp := NewScheduledPublication(c.ID, time.Now().Add(-time.Minute))
	require.NoError(t, schedules.Create(ctx, sp))

	report, err := publisher.Run(ctx, time.Now())
	require.NoError(t, err)
	require.Equal(t, 1, report.Processed)
	assert.Equal(t, ResultSuccess, report.Results[0].Status)

	// The original publication time never changes.
	gotContent, err := contents.Get(ctx, c.ID)
	require.NoError(t, err)
	require.NotNil(t, gotContent.PublishedAt)
	assert.True(t, gotContent.PublishedAt.Equal(publishedAt))
}

// cancellingBroadcaster cancels the run's context as soon as the first
// item publishes, simulating shutdown arriving mid-batch.
type cancellingBroadcaster struct {
	cancel context.CancelFunc
}

func (b *cancellingBroadcaster) BroadcastPublished(sp *ScheduledPublication, contentID string) {
	b.cancel()
}

func (b *cancellingBroadcaster) BroadcastPublishFailed(sp *ScheduledPublication, reason string) {}

func TestRunCancelledMidBatchReportsPartialWork(t *testing.T) {
	database := easeltest.CreateTestDB(t)
	contents := content.NewStore(database)
	schedules := NewStore(database)

	createApprovedScheduled(t, contents, schedules, time.Now().Add(-2*time.Minute))
	createApprovedScheduled(t, contents, schedules, time.Now().Add(-time.Minute))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	publisher := NewPublisher(contents, schedules, &cancellingBroadcaster{cancel: cancel})

	report, err := publisher.Run(ctx, time.Now())
	require.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, report)

	// The item resolved before cancellation is counted, not lost.
	require.Len(t, report.Results, 1)
	assert.Equal(t, 1, report.Processed)
	assert.Equal(t, ResultSuccess, report.Results[0].Status)
}

func TestRunReportsStoreFailure(t *testing.T) {
	database, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer database.Close()

	mock.ExpectQuery("SELECT id, content_id").
		WillReturnError(assert.AnError)

	publisher := NewPublisher(content.NewStore(database), NewStore(database), nil)

	_, err = publisher.Run(context.Background(), time.Now())
	require.Error(t, err)
	assert.True(t, errors.IsStoreUnavailable(err))
	require.NoError(t, mock.ExpectationsWereMet())
}
