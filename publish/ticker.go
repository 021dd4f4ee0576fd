package publish

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/easelhq/easel/db"
	"github.com/easelhq/easel/logger"
)

// Ticker triggers the publisher job on a fixed interval. The job itself is
// stateless; the ticker only owns the clock and the loop.
type Ticker struct {
	publisher *Publisher
	schedules *Store
	interval  time.Duration
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	logger    *zap.SugaredLogger

	mu              sync.Mutex
	lastTickAt      time.Time
	ticksSinceStart int64
}

// TickerConfig contains configuration for the publisher ticker
type TickerConfig struct {
	Interval time.Duration // How often to run the publisher job (default: 30 seconds)
}

// DefaultTickerConfig returns sensible defaults
func DefaultTickerConfig() TickerConfig {
	return TickerConfig{
		Interval: 30 * time.Second,
	}
}

// NewTicker creates a publisher ticker.
func NewTicker(publisher *Publisher, schedules *Store, cfg TickerConfig) *Ticker {
	return NewTickerWithContext(context.Background(), publisher, schedules, cfg)
}

// NewTickerWithContext creates a ticker with a parent context
func NewTickerWithContext(ctx context.Context, publisher *Publisher, schedules *Store, cfg TickerConfig) *Ticker {
	tickerCtx, cancel := context.WithCancel(ctx)

	return &Ticker{
		publisher: publisher,
		schedules: schedules,
		interval:  cfg.Interval,
		ctx:       tickerCtx,
		cancel:    cancel,
		logger:    logger.ComponentLogger("publish.ticker"),
	}
}

// Start begins the ticker loop
func (t *Ticker) Start() {
	t.wg.Add(1)
	go t.run()
	t.logger.Infow("Publisher ticker started", "interval", t.interval)
}

// Stop gracefully stops the ticker. The in-flight run, if any, completes.
func (t *Ticker) Stop() {
	t.cancel()
	t.wg.Wait()
	t.logger.Infow("Publisher ticker stopped")
}

// run is the main ticker loop
func (t *Ticker) run() {
	defer t.wg.Done()

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-t.ctx.Done():
			return
		case tickTime := <-ticker.C:
			t.mu.Lock()
			t.lastTickAt = tickTime
			t.ticksSinceStart++
			t.mu.Unlock()

			t.logUpcoming(tickTime)

			report, err := t.publisher.Run(t.ctx, tickTime)
			if err != nil {
				if db.IsDatabaseClosed(err) {
					// Shutdown races the tick; the loop is about to be
					// cancelled anyway.
					return
				}
				// Per-item failures are inside the report; this is the due
				// query itself failing. Log, do not stop the loop.
				t.logger.Warnw("Publisher tick error", logger.FieldError, err)
				continue
			}

			if report.Processed > 0 {
				t.logger.Infow("Publisher batch complete",
					logger.FieldBatchSize, report.Processed,
				)
			}
		}
	}
}

// logUpcoming logs time until the next pending schedule, if any.
func (t *Ticker) logUpcoming(now time.Time) {
	pending, err := t.schedules.List(t.ctx, StatusPending)
	if err != nil {
		t.logger.Warnw("Failed to read pending schedules", logger.FieldError, err)
		return
	}
	if len(pending) == 0 {
		return
	}

	next := pending[0]
	timeUntil := next.ScheduledAt.Sub(now)
	if timeUntil < 0 {
		timeUntil = 0
	}

	t.logger.Debugw("Next scheduled publication",
		logger.FieldScheduleID, next.ID,
		logger.FieldContentID, next.ContentID,
		"in", timeUntil.Round(time.Second),
		"pending", len(pending),
	)
}
