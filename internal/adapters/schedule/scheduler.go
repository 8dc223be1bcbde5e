// Package schedule runs named batch jobs on cron expressions.
package schedule

import (
	"context"
	"fmt"
	"sync"
	"time"

	rcron "github.com/robfig/cron/v3"

	"github.com/okian/whisper/pkg/logger"
	"github.com/okian/whisper/pkg/metrics"
)

const stopTimeout = 30 * time.Second

// Job is one unit of scheduled work.
type Job func(ctx context.Context) error

// Scheduler wraps a cron runner. Overlapping runs of the same job are skipped.
type Scheduler struct {
	mu         sync.Mutex
	cron       *rcron.Cron
	entries    map[string]rcron.EntryID
	jobs       map[string]Job
	location   *time.Location
	jobTimeout time.Duration
	logger     logger.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a stopped scheduler.
func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		entries:  make(map[string]rcron.EntryID),
		jobs:     make(map[string]Job),
		location: time.UTC,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("scheduler")
	}

	bridge := cronLogger{l: s.logger}
	s.cron = rcron.New(
		rcron.WithLocation(s.location),
		rcron.WithLogger(bridge),
		rcron.WithChain(rcron.Recover(bridge), rcron.SkipIfStillRunning(bridge)),
	)
	s.ctx, s.cancel = context.WithCancel(context.Background())
	return s
}

// Add registers job under name with a standard five-field spec or a
// descriptor such as "@daily" or "@every 1h".
func (s *Scheduler) Add(name, spec string, job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateJob, name)
	}
	id, err := s.cron.AddFunc(spec, func() { s.run(name, job) })
	if err != nil {
		return fmt.Errorf("%w: %s %q: %w", ErrInvalidSchedule, name, spec, err)
	}
	s.entries[name] = id
	s.jobs[name] = job
	return nil
}

// Next returns the next activation of name.
func (s *Scheduler) Next(name string) (time.Time, error) {
	s.mu.Lock()
	id, ok := s.entries[name]
	s.mu.Unlock()
	if !ok {
		return time.Time{}, fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	e := s.cron.Entry(id)
	if e.Next.IsZero() && e.Schedule != nil {
		return e.Schedule.Next(time.Now().In(s.location)), nil
	}
	return e.Next, nil
}

// RunNow executes name synchronously, outside the schedule.
func (s *Scheduler) RunNow(name string) error {
	s.mu.Lock()
	job, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	return s.run(name, job)
}

func (s *Scheduler) run(name string, job Job) error {
	ctx := s.ctx
	if s.jobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.jobTimeout)
		defer cancel()
	}

	start := time.Now()
	s.logger.Info(ctx, "scheduled job started", logger.String("job", name))
	err := job(ctx)
	elapsed := time.Since(start)
	if err != nil {
		metrics.RecordErrorByComponent("scheduler", name)
		s.logger.Error(ctx, "scheduled job failed",
			logger.String("job", name),
			logger.Any("elapsed", elapsed),
			logger.Error(err),
		)
		return fmt.Errorf("job %s: %w", name, err)
	}
	s.logger.Info(ctx, "scheduled job finished",
		logger.String("job", name),
		logger.Any("elapsed", elapsed),
	)
	return nil
}

// Start begins firing jobs in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info(s.ctx, "scheduler started", logger.Int("jobs", len(s.cron.Entries())))
}

// Stop cancels running jobs' context and waits for them to return.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.cancel()
	done := s.cron.Stop()

	ctx, cancel := context.WithTimeout(ctx, stopTimeout)
	defer cancel()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		s.logger.Warn(ctx, "scheduler stop timed out")
		return fmt.Errorf("scheduler stop: %w", ctx.Err())
	}
}

// cronLogger adapts logger.Logger to the cron.Logger interface.
type cronLogger struct {
	l logger.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debug(context.Background(), "cron: "+msg, fields(keysAndValues)...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Error(context.Background(), "cron: "+msg, append(fields(keysAndValues), logger.Error(err))...)
}

func fields(kv []any) []logger.Field {
	out := make([]logger.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		out = append(out, logger.Any(fmt.Sprint(kv[i]), kv[i+1]))
	}
	return out
}
