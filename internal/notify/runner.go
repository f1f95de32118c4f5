package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
)

const leaseName = "windowed_job"

// Cadences and batch size used when RunnerConfig leaves them empty.
const (
	DefaultTickSpec    = "0 * * * *"
	DefaultCleanupSpec = "0 3 * * *"
	DefaultBatchLimit  = 200
)

type runState int32

const (
	stateIdle runState = iota
	stateRunning
)

// WindowedJob is the batch the runner triggers on every tick.
type WindowedJob interface {
	Run(ctx context.Context, now time.Time, limit int) (Result, error)
}

// CleanupJob is the retention pass the runner triggers daily.
type CleanupJob interface {
	Run(ctx context.Context, now time.Time) (CleanupResult, error)
}

// RunnerConfig holds runner cadences (standard 5-field cron, evaluated in UTC)
// and the batch limit for each windowed tick.
type RunnerConfig struct {
	TickSpec    string
	CleanupSpec string
	BatchLimit  int
}

// Option configures a Runner.
type Option func(*Runner)

// WithLease makes every windowed tick also hold a storage-backed lease, so
// that at most one process runs the batch at a time.
func WithLease(l Lease, holder string, ttl time.Duration) Option {
	return func(r *Runner) {
		r.lease = l
		r.holder = holder
		r.leaseTTL = ttl
	}
}

// Runner invokes the windowed job and the cleanup job on independent cron
// cadences. Windowed ticks never overlap: a tick that finds a previous one
// still running is dropped, not queued.
type Runner struct {
	mu       sync.Mutex
	windowed WindowedJob
	cleanup  CleanupJob
	cfg      RunnerConfig
	parser   cron.Parser
	logger   *slog.Logger
	now      func() time.Time

	state atomic.Int32

	lease    Lease
	holder   string
	leaseTTL time.Duration

	ctx  context.Context
	cron *cron.Cron
	wg   sync.WaitGroup
}

// NewRunner validates the cadences and creates a stopped runner.
func NewRunner(windowed WindowedJob, cleanup CleanupJob, cfg RunnerConfig, logger *slog.Logger, opts ...Option) (*Runner, error) {
	if cfg.TickSpec == "" {
		cfg.TickSpec = DefaultTickSpec
	}
	if cfg.CleanupSpec == "" {
		cfg.CleanupSpec = DefaultCleanupSpec
	}
	if cfg.BatchLimit == 0 {
		cfg.BatchLimit = DefaultBatchLimit
	}
	if cfg.BatchLimit < 0 {
		return nil, fmt.Errorf("new runner: %w: %d", ErrInvalidLimit, cfg.BatchLimit)
	}

	r := &Runner{
		windowed: windowed,
		cleanup:  cleanup,
		cfg:      cfg,
		parser:   cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
		logger:   logger,
		now:      time.Now,
		ctx:      context.Background(),
	}
	for _, opt := range opts {
		opt(r)
	}

	if _, err := r.parser.Parse(cfg.TickSpec); err != nil {
		return nil, fmt.Errorf("parse tick spec %q: %w", cfg.TickSpec, err)
	}
	if _, err := r.parser.Parse(cfg.CleanupSpec); err != nil {
		return nil, fmt.Errorf("parse cleanup spec %q: %w", cfg.CleanupSpec, err)
	}
	return r, nil
}

// Start registers both cadences and fires one windowed tick immediately to
// catch up on anything that came due while the process was down. Jobs run
// with a context detached from ctx's cancellation so that shutdown never
// interrupts a batch midway.
func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cron != nil {
		return errors.New("runner already started")
	}
	r.ctx = context.WithoutCancel(ctx)

	c := cron.New(
		cron.WithParser(r.parser),
		cron.WithLocation(time.UTC),
		cron.WithLogger(cronLogger{r.logger}),
		cron.WithChain(cron.Recover(cronLogger{r.logger})),
	)
	if _, err := c.AddFunc(r.cfg.TickSpec, func() { r.Tick(r.ctx) }); err != nil {
		return fmt.Errorf("add windowed job: %w", err)
	}
	if _, err := c.AddFunc(r.cfg.CleanupSpec, func() { r.RunCleanup(r.ctx) }); err != nil {
		return fmt.Errorf("add cleanup job: %w", err)
	}
	r.cron = c
	c.Start()

	r.logger.Info("runner started", "tick_spec", r.cfg.TickSpec, "cleanup_spec", r.cfg.CleanupSpec, "batch_limit", r.cfg.BatchLimit)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.Tick(r.ctx)
	}()
	return nil
}

// Stop halts both cadences and waits for in-flight jobs to finish.
func (r *Runner) Stop() {
	r.mu.Lock()
	c := r.cron
	r.cron = nil
	r.mu.Unlock()

	if c != nil {
		<-c.Stop().Done()
	}
	r.wg.Wait()
	r.logger.Info("runner stopped")
}

// Running reports whether a windowed tick is in flight.
func (r *Runner) Running() bool {
	return runState(r.state.Load()) == stateRunning
}

// Tick runs one windowed batch unless one is already running. The boolean
// result is false when the tick was skipped.
func (r *Runner) Tick(ctx context.Context) (Result, bool) {
	if !r.state.CompareAndSwap(int32(stateIdle), int32(stateRunning)) {
		r.logger.Warn("windowed job still running, skipping tick")
		return Result{}, false
	}
	defer r.state.Store(int32(stateIdle))

	if r.lease != nil {
		ok, err := r.lease.Acquire(ctx, leaseName, r.holder, r.now().UTC(), r.leaseTTL)
		if err != nil {
			r.logger.Error("acquire runner lease", "error", err)
			return Result{}, false
		}
		if !ok {
			r.logger.Info("runner lease held elsewhere, skipping tick", "holder", r.holder)
			return Result{}, false
		}
		defer func() {
			if err := r.lease.Release(ctx, leaseName, r.holder); err != nil {
				r.logger.Error("release runner lease", "error", err)
			}
		}()
	}

	start := r.now().UTC()
	r.logger.Info("windowed job started", "started_at", start, "limit", r.cfg.BatchLimit)

	res, err := r.windowed.Run(ctx, start, r.cfg.BatchLimit)
	end := r.now().UTC()
	if err != nil {
		r.logger.Error("windowed job failed", "started_at", start, "finished_at", end, "duration", end.Sub(start), "error", err)
		return res, true
	}

	r.logger.Info("windowed job finished",
		"started_at", start,
		"finished_at", end,
		"duration", end.Sub(start),
		"due", res.Due,
		"processed", res.Processed,
		"failed", res.Failed,
		"skipped", res.Skipped,
	)
	return res, true
}

// RunCleanup runs one retention pass.
func (r *Runner) RunCleanup(ctx context.Context) {
	start := r.now().UTC()
	res, err := r.cleanup.Run(ctx, start)
	if err != nil {
		r.logger.Error("cleanup job failed", "started_at", start, "duration", r.now().Sub(start), "error", err)
		return
	}
	r.logger.Info("cleanup job finished",
		"started_at", start,
		"duration", r.now().Sub(start),
		"deleted_notifications", res.DeletedNotifications,
		"deleted_schedules", res.DeletedSchedules,
	)
}

// cronLogger adapts slog to the cron.Logger interface.
type cronLogger struct {
	l *slog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debug("cron: "+msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
