package publish

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/easelhq/easel/content"
	easeltest "github.com/easelhq/easel/internal/testing"
)

func TestTickerPublishesDueSchedule(t *testing.T) {
	database := easeltest.CreateTestDB(t)
	contents := content.NewStore(database)
	schedules := NewStore(database)
	ctx := context.Background()

	c := content.New("Ticker post", "", content.TypePost)
	c.Status = content.StatusApproved
	require.NoError(t, contents.Create(ctx, c))
	sp := NewScheduledPublication(c.ID, time.Now().Add(-time.Minute))
	require.NoError(t, schedules.Create(ctx, sp))

	publisher := NewPublisher(contents, schedules, nil)
	ticker := NewTicker(publisher, schedules, TickerConfig{Interval: 10 * time.Millisecond})
	ticker.Start()
	defer ticker.Stop()

	require.Eventually(t, func() bool {
		got, err := schedules.Get(ctx, sp.ID)
		return err == nil && got.Status == StatusPublished
	}, 2*time.Second, 10*time.Millisecond)

	gotContent, err := contents.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, content.StatusPublished, gotContent.Status)
}

func TestTickerStopIsIdempotentWithNoWork(t *testing.T) {
	database := easeltest.CreateTestDB(t)
	schedules := NewStore(database)
	publisher := NewPublisher(content.NewStore(database), schedules, nil)

	ticker := NewTicker(publisher, schedules, DefaultTickerConfig())
	ticker.Start()
	ticker.Stop()
}
