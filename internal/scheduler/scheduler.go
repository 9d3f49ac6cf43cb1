// Package scheduler triggers periodic retraining on a cron schedule.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Veraticus/dispatch/internal/common"
	"github.com/Veraticus/dispatch/internal/engine"
	"github.com/robfig/cron/v3"
)

// Trainer runs one training job.
type Trainer interface {
	Train(ctx context.Context) (*engine.Result, error)
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLocation evaluates schedules in loc instead of the local time zone.
func WithLocation(loc *time.Location) Option {
	return func(s *Scheduler) {
		s.location = loc
	}
}

// WithRetry sets the backoff applied to each scheduled run.
func WithRetry(opts common.RetryOptions) Option {
	return func(s *Scheduler) {
		s.retry = opts
	}
}

// Scheduler retrains on a cron schedule. Overlapping ticks are skipped.
type Scheduler struct {
	trainer  Trainer
	cron     *cron.Cron
	location *time.Location
	ctx      context.Context
	cancel   context.CancelFunc
	retry    common.RetryOptions
	mu       sync.Mutex
	entryID  cron.EntryID
	started  bool
}

// New creates a scheduler for trainer.
func New(trainer Trainer, opts ...Option) *Scheduler {
	s := &Scheduler{
		trainer:  trainer,
		location: time.Local,
		retry:    common.RetryOptions{MaxAttempts: 3, InitialDelay: time.Second},
	}
	for _, opt := range opts {
		opt(s)
	}

	logger := slogAdapter{}
	s.cron = cron.New(
		cron.WithLocation(s.location),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	s.ctx, s.cancel = context.WithCancel(context.Background())

	return s
}

// Schedule installs spec, replacing any previous schedule. spec uses the
// standard five-field cron syntax or a descriptor such as "@hourly".
func (s *Scheduler) Schedule(spec string) error {
	if _, err := cron.ParseStandard(spec); err != nil {
		return fmt.Errorf("%w: retrain schedule %q: %w", common.ErrInvalidConfig, spec, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.entryID != 0 {
		s.cron.Remove(s.entryID)
	}

	entryID, err := s.cron.AddFunc(spec, func() {
		if err := s.RunOnce(s.ctx); err != nil {
			slog.Error("Scheduled retrain failed", "schedule", spec, "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("add cron job: %w", err)
	}
	s.entryID = entryID

	slog.Info("Retraining scheduled", "schedule", spec)
	return nil
}

// RunOnce trains with retries. A run that collides with one already in
// flight is skipped rather than retried.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	err := common.WithRetry(ctx, func() error {
		_, err := s.trainer.Train(ctx)
		return err
	}, s.retry)

	if errors.Is(err, common.ErrTrainingInProgress) {
		slog.Info("Skipping scheduled retrain, training already in progress")
		return nil
	}
	return err
}

// Next returns the next activation time. It is zero until the scheduler has
// started with a schedule installed.
func (s *Scheduler) Next() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.entryID == 0 {
		return time.Time{}
	}
	return s.cron.Entry(s.entryID).Next
}

// Start begins running scheduled jobs.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		s.cron.Start()
		s.started = true
	}
}

// Stop halts the scheduler, cancels an in-flight run and waits for it to
// return or for ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cancel()
	if !s.started {
		return nil
	}
	s.started = false

	select {
	case <-s.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// slogAdapter routes cron's logging through slog.
type slogAdapter struct{}

func (slogAdapter) Info(msg string, keysAndValues ...any) {
	slog.Debug("cron: "+msg, keysAndValues...)
}

func (slogAdapter) Error(err error, msg string, keysAndValues ...any) {
	slog.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
