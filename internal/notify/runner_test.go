package notify

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dukerupert/mealplan/internal/logging"
)

// Specs that never fire during a test run.
const idleSpec = "0 0 1 1 *"

// gatedJob blocks each Run until release is closed. started is buffered so
// tests that never read it do not block.
type gatedJob struct {
	calls   atomic.Int32
	limit   atomic.Int32
	started chan struct{}
	release chan struct{}
	err     error
}

func newGatedJob() *gatedJob {
	return &gatedJob{started: make(chan struct{}, 16), release: make(chan struct{})}
}

func (g *gatedJob) Run(ctx context.Context, now time.Time, limit int) (Result, error) {
	g.calls.Add(1)
	g.limit.Store(int32(limit))
	g.started <- struct{}{}
	<-g.release
	return Result{Due: 1, Processed: 1}, g.err
}

type countingCleanup struct {
	calls atomic.Int32
	err   error
}

func (c *countingCleanup) Run(ctx context.Context, now time.Time) (CleanupResult, error) {
	c.calls.Add(1)
	return CleanupResult{}, c.err
}

type fakeLease struct {
	mu       sync.Mutex
	grant    bool
	err      error
	acquired int
	released int
}

func (l *fakeLease) Acquire(ctx context.Context, name, holder string, now time.Time, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return false, l.err
	}
	if l.grant {
		l.acquired++
	}
	return l.grant, nil
}

func (l *fakeLease) Release(ctx context.Context, name, holder string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.released++
	return nil
}

func waitStarted(t *testing.T, g *gatedJob) {
	t.Helper()
	select {
	case <-g.started:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for job to start")
	}
}

func newTestRunner(t *testing.T, job WindowedJob, opts ...Option) *Runner {
	t.Helper()
	r, err := NewRunner(job, &countingCleanup{}, RunnerConfig{TickSpec: idleSpec, CleanupSpec: idleSpec}, logging.Discard(), opts...)
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}
	return r
}

func TestTickSkipsWhileRunning(t *testing.T) {
	job := newGatedJob()
	r := newTestRunner(t, job)
	ctx := context.Background()

	done := make(chan bool)
	go func() {
		_, ran := r.Tick(ctx)
		done <- ran
	}()
	waitStarted(t, job)

	if !r.Running() {
		t.Error("expected runner to report running")
	}
	if _, ran := r.Tick(ctx); ran {
		t.Error("expected overlapping tick to be skipped")
	}

	close(job.release)
	if ran := <-done; !ran {
		t.Error("expected first tick to run")
	}
	if got := job.calls.Load(); got != 1 {
		t.Errorf("calls = %d, want 1", got)
	}
	if r.Running() {
		t.Error("expected runner to be idle after tick")
	}

	// A later tick runs again.
	if _, ran := r.Tick(ctx); !ran {
		t.Error("expected tick after idle to run")
	}
	if got := job.calls.Load(); got != 2 {
		t.Errorf("calls = %d, want 2", got)
	}
}

func TestTickReturnsToIdleOnError(t *testing.T) {
	job := newGatedJob()
	job.err = errors.New("select failed")
	close(job.release)
	r := newTestRunner(t, job)

	if _, ran := r.Tick(context.Background()); !ran {
		t.Error("expected tick to run")
	}
	if r.Running() {
		t.Error("expected runner to be idle after failed tick")
	}
	if _, ran := r.Tick(context.Background()); !ran {
		t.Error("expected next tick to run after failure")
	}
}

func TestTickDefaultBatchLimit(t *testing.T) {
	job := newGatedJob()
	close(job.release)
	r := newTestRunner(t, job)

	r.Tick(context.Background())

	if got := job.limit.Load(); got != DefaultBatchLimit {
		t.Errorf("limit = %d, want %d", got, DefaultBatchLimit)
	}
}

func TestStartFiresImmediateTick(t *testing.T) {
	job := newGatedJob()
	r := newTestRunner(t, job)

	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitStarted(t, job)

	if err := r.Start(context.Background()); err == nil {
		t.Error("expected second start to fail")
	}

	stopped := make(chan struct{})
	go func() {
		r.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
		t.Fatal("stop returned while a tick was in flight")
	case <-time.After(50 * time.Millisecond):
	}

	close(job.release)
	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for stop")
	}
	if got := job.calls.Load(); got != 1 {
		t.Errorf("calls = %d, want 1", got)
	}
}

func TestTickLeaseDenied(t *testing.T) {
	job := newGatedJob()
	lease := &fakeLease{grant: false}
	r := newTestRunner(t, job, WithLease(lease, "holder-a", time.Minute))

	if _, ran := r.Tick(context.Background()); ran {
		t.Error("expected tick to be skipped without the lease")
	}
	if got := job.calls.Load(); got != 0 {
		t.Errorf("calls = %d, want 0", got)
	}
	if r.Running() {
		t.Error("expected runner to be idle")
	}
}

func TestTickLeaseError(t *testing.T) {
	job := newGatedJob()
	lease := &fakeLease{err: errors.New("db locked")}
	r := newTestRunner(t, job, WithLease(lease, "holder-a", time.Minute))

	if _, ran := r.Tick(context.Background()); ran {
		t.Error("expected tick to be skipped on lease error")
	}
	if got := job.calls.Load(); got != 0 {
		t.Errorf("calls = %d, want 0", got)
	}
}

func TestTickLeaseReleased(t *testing.T) {
	job := newGatedJob()
	close(job.release)
	lease := &fakeLease{grant: true}
	r := newTestRunner(t, job, WithLease(lease, "holder-a", time.Minute))

	if _, ran := r.Tick(context.Background()); !ran {
		t.Fatal("expected tick to run with the lease")
	}
	if lease.acquired != 1 || lease.released != 1 {
		t.Errorf("acquired = %d, released = %d, want 1 and 1", lease.acquired, lease.released)
	}
}

func TestRunCleanup(t *testing.T) {
	cleanup := &countingCleanup{err: errors.New("locked")}
	r, err := NewRunner(newGatedJob(), cleanup, RunnerConfig{}, logging.Discard())
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}

	r.RunCleanup(context.Background())
	if got := cleanup.calls.Load(); got != 1 {
		t.Errorf("cleanup calls = %d, want 1", got)
	}
}

func TestNewRunnerValidation(t *testing.T) {
	job := newGatedJob()
	cleanup := &countingCleanup{}

	if _, err := NewRunner(job, cleanup, RunnerConfig{TickSpec: "every hour"}, logging.Discard()); err == nil {
		t.Error("expected error for bad tick spec")
	}
	if _, err := NewRunner(job, cleanup, RunnerConfig{CleanupSpec: "61 * * * *"}, logging.Discard()); err == nil {
		t.Error("expected error for bad cleanup spec")
	}
	if _, err := NewRunner(job, cleanup, RunnerConfig{BatchLimit: -1}, logging.Discard()); !errors.Is(err, ErrInvalidLimit) {
		t.Errorf("err = %v, want ErrInvalidLimit", err)
	}

	r, err := NewRunner(job, cleanup, RunnerConfig{TickSpec: "@hourly"}, logging.Discard())
	if err != nil {
		t.Fatalf("new runner with descriptor: %v", err)
	}
	if r.cfg.CleanupSpec != DefaultCleanupSpec {
		t.Errorf("cleanup spec = %q, want %q", r.cfg.CleanupSpec, DefaultCleanupSpec)
	}
}
