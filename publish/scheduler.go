package publish

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/easelhq/easel/content"
	"github.com/easelhq/easel/errors"
	"github.com/easelhq/easel/logger"
)

// Scheduler is the client-facing scheduling service. Its operations keep the
// owning content record's status consistent with the schedule record across
// the two stores, compensating on partial failure so no intermediate state
// is left observable.
//
// The scheduler holds no state of its own; every current-state question is a
// store read.
type Scheduler struct {
	contents  *content.Store
	schedules *Store
	logger    *zap.SugaredLogger
}

// NewScheduler creates a scheduling service over the two stores.
func NewScheduler(contents *content.Store, schedules *Store) *Scheduler {
	return &Scheduler{
		contents:  contents,
		schedules: schedules,
		logger:    logger.ComponentLogger("publish.scheduler"),
	}
}

// Schedule creates a pending publication for a draft content record at the
// given instant and moves the content to pending_approval.
//
// A past instant is accepted: the schedule is simply due immediately and the
// next publisher run picks it up. A content record that already has a
// pending schedule is rejected with ErrConflict; a content record that is
// not in draft fails the status transition with ErrInvalidTransition.
func (s *Scheduler) Schedule(ctx context.Context, contentID string, at time.Time) (*ScheduledPublication, error) {
	c, err := s.contents.Get(ctx, contentID)
	if err != nil {
		return nil, err
	}

	existing, err := s.schedules.FindPendingByContent(ctx, contentID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, errors.Wrapf(errors.ErrConflict,
			"content %s already has pending schedule %s", contentID, existing.ID)
	}

	next, err := content.Transition(c, content.StatusPendingApproval)
	if err != nil {
		return nil, err
	}

	if err := s.contents.SetSchedule(ctx, c.ID, c.Status, next.Status, at); err != nil {
		return nil, err
	}

	sp := NewScheduledPublication(contentID, at)
	if err := s.schedules.Create(ctx, sp); err != nil {
		// Compensate: the content-side update succeeded but the schedule
		// record did not. Roll the content back to its prior state before
		// surfacing the error.
		if rbErr := s.contents.ClearSchedule(ctx, c.ID, next.Status, c.Status); rbErr != nil {
			s.logger.Errorw("Rollback after schedule creation failure also failed",
				logger.FieldContentID, c.ID,
				logger.FieldError, rbErr,
			)
		}
		return nil, err
	}

	// Read-after-write confirmation: return what the store now holds.
	created, err := s.schedules.Get(ctx, sp.ID)
	if err != nil {
		return nil, err
	}

	s.logger.Infow("Publication scheduled",
		logger.FieldScheduleID, created.ID,
		logger.FieldContentID, contentID,
		logger.FieldScheduledAt, created.ScheduledAt,
	)
	return created, nil
}

// Cancel withdraws a pending schedule: the content returns to draft with its
// scheduled_at cleared and the schedule record is deleted. An
// already-published or already-failed schedule is rejected with ErrNotFound,
// not silently ignored.
func (s *Scheduler) Cancel(ctx context.Context, scheduleID string) error {
	sp, err := s.schedules.Get(ctx, scheduleID)
	if err != nil {
		return err
	}
	if sp.Status != StatusPending {
		return errors.NewNotFoundError("pending scheduled publication %s (status %s)", scheduleID, sp.Status)
	}

	c, err := s.contents.Get(ctx, sp.ContentID)
	if err != nil {
		return err
	}
	if c.Status == content.StatusPublished {
		return errors.Wrapf(errors.ErrConflict, "content %s is already published", c.ID)
	}

	// Cancellation resets the lifecycle: this is the one edit that does not
	// go through the forward transition table.
	if err := s.contents.ClearSchedule(ctx, c.ID, c.Status, content.StatusDraft); err != nil {
		return err
	}

	if err := s.schedules.Delete(ctx, scheduleID); err != nil {
		// Compensate: restore the content's prior status and schedule time.
		if c.ScheduledAt != nil {
			if rbErr := s.contents.SetSchedule(ctx, c.ID, content.StatusDraft, c.Status, *c.ScheduledAt); rbErr != nil {
				s.logger.Errorw("Rollback after cancel failure also failed",
					logger.FieldContentID, c.ID,
					logger.FieldError, rbErr,
				)
			}
		}
		return err
	}

	s.logger.Infow("Publication cancelled",
		logger.FieldScheduleID, scheduleID,
		logger.FieldContentID, sp.ContentID,
	)
	return nil
}

// Reschedule moves a pending schedule to a new instant, updating
// scheduled_at on both the schedule record and the content record. Status
// fields are untouched. A non-pending schedule is rejected with ErrNotFound.
func (s *Scheduler) Reschedule(ctx context.Context, scheduleID string, newAt time.Time) (*ScheduledPublication, error) {
	sp, err := s.schedules.Get(ctx, scheduleID)
	if err != nil {
		return nil, err
	}
	if sp.Status != StatusPending {
		return nil, errors.NewNotFoundError("pending scheduled publication %s (status %s)", scheduleID, sp.Status)
	}

	if err := s.schedules.Reschedule(ctx, scheduleID, newAt); err != nil {
		return nil, err
	}

	if err := s.contents.SetScheduledAt(ctx, sp.ContentID, newAt); err != nil {
		// Compensate: put the schedule record back on its old instant.
		if rbErr := s.schedules.Reschedule(ctx, scheduleID, sp.ScheduledAt); rbErr != nil {
			s.logger.Errorw("Rollback after reschedule failure also failed",
				logger.FieldScheduleID, scheduleID,
				logger.FieldError, rbErr,
			)
		}
		return nil, err
	}

	updated, err := s.schedules.Get(ctx, scheduleID)
	if err != nil {
		return nil, err
	}

	s.logger.Infow("Publication rescheduled",
		logger.FieldScheduleID, scheduleID,
		logger.FieldContentID, sp.ContentID,
		logger.FieldScheduledAt, updated.ScheduledAt,
	)
	return updated, nil
}

// Approve moves a pending_approval content record to approved. Scheduled
// content must be approved before its scheduled instant or the publisher
// will fail the item.
func (s *Scheduler) Approve(ctx context.Context, contentID string) error {
	return s.review(ctx, contentID, content.StatusApproved)
}

// Reject moves a pending_approval content record to rejected.
func (s *Scheduler) Reject(ctx context.Context, contentID string) error {
	return s.review(ctx, contentID, content.StatusRejected)
}

func (s *Scheduler) review(ctx context.Context, contentID string, target content.Status) error {
	c, err := s.contents.Get(ctx, contentID)
	if err != nil {
		return err
	}

	next, err := content.Transition(c, target)
	if err != nil {
		return err
	}

	return s.contents.UpdateStatus(ctx, c.ID, c.Status, next.Status)
}
