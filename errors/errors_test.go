package errors

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSentinelHelpers(t *testing.T) {
	assert.True(t, IsNotFound(NewNotFoundError("content %s", "abc")))
	assert.True(t, IsInvalidTransition(Wrapf(ErrInvalidTransition, "draft -> published")))
	assert.True(t, IsConflict(Wrap(ErrConflict, "schedule exists")))
	assert.False(t, IsNotFound(New("some other error")))
}

func TestMarkPreservesCauseAndAddsSentinel(t *testing.T) {
	cause := New("disk I/O error")
	err := Mark(Wrap(cause, "list due schedules"), ErrStoreUnavailable)

	assert.True(t, IsStoreUnavailable(err))
	assert.Contains(t, err.Error(), "disk I/O error")
	assert.Contains(t, err.Error(), "list due schedules")
}

func TestWrapfKeepsChain(t *testing.T) {
	err := Wrapf(ErrNotFound, "content %s", "abc")
	assert.True(t, Is(err, ErrNotFound))
	assert.Contains(t, err.Error(), "content abc")
}
