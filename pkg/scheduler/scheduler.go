// Package scheduler resumes waiting executions and runs the daily date
// trigger sweep.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/leadflowhq/leadflow/pkg/flow"
	"github.com/leadflowhq/leadflow/pkg/persistence"
)

// DefaultInterval is how often waiting executions are polled.
const DefaultInterval = 1 * time.Minute

// DefaultSweepSpec runs the date trigger sweep every morning at 08:00.
const DefaultSweepSpec = "0 8 * * *"

// Scheduler owns its ticker and cron and exposes Start/Stop. It is
// constructed once by the composition root; there is no package-level state.
type Scheduler struct {
	persistence persistence.Persistence
	runner      *flow.Runner
	matcher     *flow.Matcher
	logger      *slog.Logger

	interval  time.Duration
	sweepSpec string

	ticker  *time.Ticker
	cron    *cron.Cron
	done    chan bool
	started bool
	mu      sync.Mutex
	now     func() time.Time
}

type Option func(*Scheduler)

// WithInterval overrides the waiting-execution poll interval.
func WithInterval(interval time.Duration) Option {
	return func(s *Scheduler) {
		s.interval = interval
	}
}

// WithSweepSpec overrides the cron spec of the date trigger sweep.
func WithSweepSpec(spec string) Option {
	return func(s *Scheduler) {
		s.sweepSpec = spec
	}
}

func NewScheduler(p persistence.Persistence, runner *flow.Runner, matcher *flow.Matcher, logger *slog.Logger, opts ...Option) *Scheduler {
	scheduler := &Scheduler{
		persistence: p,
		runner:      runner,
		matcher:     matcher,
		logger:      logger.With("module", "flow_scheduler"),
		interval:    DefaultInterval,
		sweepSpec:   DefaultSweepSpec,
		now:         time.Now,
	}

	for _, opt := range opts {
		opt(scheduler)
	}

	return scheduler
}

// Start processes due executions once immediately, then on every tick until
// Stop is called or the context is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	s.logger.InfoContext(ctx, "Starting flow scheduler", "interval", s.interval)

	if s.matcher != nil {
		s.cron = cron.New()

		_, err := s.cron.AddFunc(s.sweepSpec, func() {
			s.matcher.RunDateSweep(ctx)
		})
		if err != nil {
			return fmt.Errorf("invalid date sweep cron spec %q: %w", s.sweepSpec, err)
		}

		s.cron.Start()
	}

	s.ticker = time.NewTicker(s.interval)
	s.done = make(chan bool)
	s.started = true

	go s.poll(ctx)

	s.ProcessDueExecutions(ctx)

	return nil
}

// Stop gracefully shuts the scheduler down.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}

	s.logger.InfoContext(ctx, "Stopping flow scheduler")

	s.ticker.Stop()

	if s.cron != nil {
		s.cron.Stop()
	}

	select {
	case s.done <- true:
	default:
	}

	s.started = false

	return nil
}

func (s *Scheduler) poll(ctx context.Context) {
	for {
		select {
		case <-s.done:
			return
		case <-ctx.Done():
			return
		case <-s.ticker.C:
			s.ProcessDueExecutions(ctx)
		}
	}
}

// ProcessDueExecutions resumes every waiting execution whose wait has
// elapsed. Failures are logged per item so one bad execution does not abort
// the batch.
func (s *Scheduler) ProcessDueExecutions(ctx context.Context) {
	now := s.now()

	due, err := s.persistence.Executions().Due(ctx, now)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to query due executions", "error", err)

		return
	}

	if len(due) == 0 {
		return
	}

	s.logger.InfoContext(ctx, "Processing due executions", "count", len(due))

	for _, execution := range due {
		err := s.runner.Run(ctx, execution.FlowID, execution.LeadID)
		if err != nil {
			s.logger.ErrorContext(ctx, "Failed to resume execution",
				"execution_id", execution.ID,
				"flow_id", execution.FlowID,
				"lead_id", execution.LeadID,
				"error", err)
		}
	}
}
