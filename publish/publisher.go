package publish

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/easelhq/easel/content"
	"github.com/easelhq/easel/errors"
	"github.com/easelhq/easel/logger"
)

// Item outcome values reported by the publisher job.
const (
	ResultSuccess = "success"
	ResultFailed  = "failed"
	// ResultSkipped marks an item another publisher run resolved first.
	// Not an error: the publication happened exactly once, just not here.
	ResultSkipped = "skipped"
)

// ItemResult is the outcome of one scheduled publication in a batch.
type ItemResult struct {
	ID        string `json:"id"`
	ContentID string `json:"content_id"`
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
}

// Report summarizes one publisher run.
type Report struct {
	Processed int          `json:"processed"`
	Results   []ItemResult `json:"results"`
}

// Broadcaster receives publication events as the publisher resolves items.
// Defined here so the server package can subscribe without a dependency
// cycle.
type Broadcaster interface {
	BroadcastPublished(sp *ScheduledPublication, contentID string)
	BroadcastPublishFailed(sp *ScheduledPublication, reason string)
}

// Publisher is the recurring batch job that promotes due pending schedules
// to published content. It is stateless: everything it knows it reads from
// the two stores on each run, so runs may overlap or retry safely.
//
// Within one item the content record is always written before the schedule
// record, so a crash between the two writes leaves the schedule pending and
// safe to retry, never published against stale content.
type Publisher struct {
	contents    *content.Store
	schedules   *Store
	broadcaster Broadcaster
	logger      *zap.SugaredLogger
}

// NewPublisher creates a publisher job over the two stores.
// broadcaster may be nil.
func NewPublisher(contents *content.Store, schedules *Store, broadcaster Broadcaster) *Publisher {
	return &Publisher{
		contents:    contents,
		schedules:   schedules,
		broadcaster: broadcaster,
		logger:      logger.ComponentLogger("publish.publisher"),
	}
}

// RunOnce executes one batch against the current clock.
func (p *Publisher) RunOnce(ctx context.Context) (*Report, error) {
	return p.Run(ctx, time.Now())
}

// Run executes one batch: every pending schedule due at now is promoted
// independently. A failing item is marked failed and never blocks the rest
// of the batch; the run itself fails only if the due query cannot be
// performed.
func (p *Publisher) Run(ctx context.Context, now time.Time) (*Report, error) {
	due, err := p.schedules.ListDue(ctx, now)
	if err != nil {
		return nil, errors.Wrap(err, "list due schedules")
	}

	report := &Report{Results: make([]ItemResult, 0, len(due))}
	for _, sp := range due {
		select {
		case <-ctx.Done():
			report.Processed = len(report.Results)
			return report, ctx.Err()
		default:
		}

		result := p.publishOne(ctx, sp, now)
		report.Results = append(report.Results, result)

		switch result.Status {
		case ResultSuccess:
			p.logger.Infow("Published",
				logger.FieldScheduleID, result.ID,
				logger.FieldContentID, result.ContentID,
				logger.FieldPublishedAt, now,
			)
		case ResultSkipped:
			p.logger.Debugw("Schedule already resolved elsewhere",
				logger.FieldScheduleID, result.ID,
				logger.FieldContentID, result.ContentID,
			)
		case ResultFailed:
			p.logger.Warnw("Publication failed",
				logger.FieldScheduleID, result.ID,
				logger.FieldContentID, result.ContentID,
				logger.FieldError, result.Error,
			)
		}
	}

	report.Processed = len(report.Results)
	return report, nil
}

// publishOne promotes a single due schedule. Content first, then the
// schedule record, both via conditional writes.
func (p *Publisher) publishOne(ctx context.Context, sp *ScheduledPublication, now time.Time) ItemResult {
	result := ItemResult{ID: sp.ID, ContentID: sp.ContentID}

	if err := p.publishContent(ctx, sp.ContentID, now); err != nil {
		return p.failItem(ctx, sp, result, err)
	}

	won, err := p.schedules.MarkPublished(ctx, sp.ID, now)
	if err != nil {
		return p.failItem(ctx, sp, result, err)
	}
	if !won {
		// A concurrent run resolved this schedule between our due query and
		// the conditional write. Exactly one run records the publication.
		result.Status = ResultSkipped
		return result
	}

	result.Status = ResultSuccess
	if p.broadcaster != nil {
		p.broadcaster.BroadcastPublished(sp, sp.ContentID)
	}
	return result
}

// publishContent transitions the content record to published. An
// already-published content is an idempotent no-op: its published_at was set
// by whichever run got there first and never changes again.
func (p *Publisher) publishContent(ctx context.Context, contentID string, now time.Time) error {
	c, err := p.contents.Get(ctx, contentID)
	if err != nil {
		return err
	}

	if c.Status == content.StatusPublished {
		return nil
	}

	if _, err := content.Transition(c, content.StatusPublished); err != nil {
		return err
	}

	err = p.contents.MarkPublished(ctx, c.ID, c.Status, now)
	if errors.IsConflict(err) {
		// The status moved under us. If it moved to published, another run
		// beat us to the same transition and the item is still a success
		// from the content's point of view.
		current, getErr := p.contents.Get(ctx, contentID)
		if getErr == nil && current.Status == content.StatusPublished {
			return nil
		}
	}
	return err
}

// failItem marks the schedule failed, best effort. If even that write fails
// the record stays pending and the next run retries it. The content's
// scheduled_at is cleared alongside: a failed schedule is no longer pending,
// so the content must not carry one.
func (p *Publisher) failItem(ctx context.Context, sp *ScheduledPublication, result ItemResult, cause error) ItemResult {
	result.Status = ResultFailed
	result.Error = cause.Error()

	if err := p.schedules.MarkFailed(ctx, sp.ID); err != nil {
		p.logger.Warnw("Could not mark schedule failed; leaving pending for retry",
			logger.FieldScheduleID, sp.ID,
			logger.FieldError, err,
		)
	} else if err := p.contents.ClearScheduledAt(ctx, sp.ContentID); err != nil && !errors.IsNotFound(err) {
		p.logger.Warnw("Could not clear scheduled_at on failed content",
			logger.FieldContentID, sp.ContentID,
			logger.FieldError, err,
		)
	}

	if p.broadcaster != nil {
		p.broadcaster.BroadcastPublishFailed(sp, result.Error)
	}
	return result
}
