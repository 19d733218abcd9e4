package reconciler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/charlesng35/ovpnhub/internal/cache"
	"github.com/charlesng35/ovpnhub/pkg/logger"
)

const (
	defaultInterval = 60 * time.Second
	defaultTimeout  = 10 * time.Second

	// LeaseKey names the cross-replica lease taken for every cycle.
	LeaseKey = "reconciler:cycle"
)

var (
	// ErrCycleRunning is returned by RunNow when a cycle is already in flight.
	ErrCycleRunning = errors.New("reconciler: a cycle is already running")
	// ErrLeaseHeld means another replica owns the cycle lease.
	ErrLeaseHeld = errors.New("reconciler: cycle lease held by another replica")
)

// Runner executes one reconciliation pass.
type Runner interface {
	RunCycle(ctx context.Context) (CycleResult, error)
}

// Scheduler drives a Runner on a fixed interval. Ticks that fire while a cycle is
// still running are skipped, never queued.
type Scheduler struct {
	runner   Runner
	cron     *cron.Cron
	interval time.Duration
	timeout  time.Duration
	locker   cache.Locker
	leaseTTL time.Duration
	log      *zap.Logger

	running sync.Mutex

	mu      sync.Mutex
	base    context.Context
	cancel  context.CancelFunc
	started bool
	last    *LastRun
}

// LastRun records the outcome of the most recent cycle.
type LastRun struct {
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
	Result    CycleResult   `json:"result"`
	Error     string        `json:"error,omitempty"`
}

// SchedulerOption customises the Scheduler.
type SchedulerOption func(*Scheduler)

// WithInterval sets the polling interval. Non-positive values keep the 60s default.
func WithInterval(interval time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		if interval > 0 {
			s.interval = interval
		}
	}
}

// WithStopTimeout bounds how long Stop waits for an in-flight cycle.
func WithStopTimeout(timeout time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		if timeout > 0 {
			s.timeout = timeout
		}
	}
}

// WithLocker requires a cross-replica lease before each cycle.
func WithLocker(locker cache.Locker, ttl time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		s.locker = locker
		s.leaseTTL = ttl
	}
}

// NewScheduler constructs a scheduler for the runner.
func NewScheduler(runner Runner, opts ...SchedulerOption) (*Scheduler, error) {
	if runner == nil {
		return nil, errors.New("reconciler: runner is required")
	}

	s := &Scheduler{
		runner:   runner,
		interval: defaultInterval,
		timeout:  defaultTimeout,
		log:      logger.WithModule("reconciler"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.leaseTTL <= 0 {
		s.leaseTTL = s.interval
	}

	s.cron = cron.New(
		cron.WithLogger(cron.DiscardLogger),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	s.base, s.cancel = context.WithCancel(context.Background())
	return s, nil
}

// Start schedules the periodic cycle.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.base.Err() != nil {
		return errors.New("reconciler: scheduler already stopped")
	}
	if _, err := s.cron.AddFunc(fmt.Sprintf("@every %s", s.interval), s.tick); err != nil {
		return fmt.Errorf("reconciler: schedule cycle: %w", err)
	}
	s.cron.Start()
	s.started = true
	s.log.Info("reconciler scheduled", zap.Duration("interval", s.interval))
	return nil
}

// Stop cancels any in-flight cycle and waits at most the stop timeout for it to return.
func (s *Scheduler) Stop() {
	s.cancel()

	stopped := s.cron.Stop()
	select {
	case <-stopped.Done():
	case <-time.After(s.timeout):
		s.log.Warn("reconcile cycle did not stop in time")
	}
}

// RunNow executes one cycle immediately unless one is already running.
func (s *Scheduler) RunNow(ctx context.Context) (CycleResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if !s.running.TryLock() {
		return CycleResult{}, ErrCycleRunning
	}
	defer s.running.Unlock()

	ctx, cancel := mergeCancel(ctx, s.base)
	defer cancel()
	return s.run(ctx)
}

// LastRun returns the most recent cycle outcome, or nil before the first cycle.
func (s *Scheduler) LastRun() *LastRun {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.last == nil {
		return nil
	}
	copied := *s.last
	return &copied
}

// Interval reports the configured polling interval.
func (s *Scheduler) Interval() time.Duration {
	return s.interval
}

func (s *Scheduler) tick() {
	if s.base.Err() != nil {
		return
	}
	if !s.running.TryLock() {
		s.log.Debug("previous cycle still running; tick skipped")
		return
	}
	defer s.running.Unlock()

	if _, err := s.run(s.base); err != nil && !errors.Is(err, ErrLeaseHeld) {
		var unavailable *SourceUnavailableError
		if !errors.As(err, &unavailable) {
			s.log.Error("reconcile cycle failed", zap.Error(err))
		}
	}
}

func (s *Scheduler) run(ctx context.Context) (CycleResult, error) {
	if s.locker != nil {
		lease, ok, err := s.locker.Acquire(ctx, LeaseKey, s.leaseTTL)
		if err != nil {
			return CycleResult{}, fmt.Errorf("reconciler: acquire lease: %w", err)
		}
		if !ok {
			s.log.Debug("cycle lease held elsewhere; skipping")
			return CycleResult{}, ErrLeaseHeld
		}
		defer func() {
			if err := lease.Release(context.Background()); err != nil && !errors.Is(err, cache.ErrLeaseNotHeld) {
				s.log.Warn("release cycle lease", zap.Error(err))
			}
		}()
	}

	started := time.Now()
	result, err := s.runner.RunCycle(ctx)

	last := &LastRun{StartedAt: started, Duration: time.Since(started), Result: result}
	if err != nil {
		last.Error = err.Error()
	}
	s.mu.Lock()
	s.last = last
	s.mu.Unlock()

	return result, err
}

// mergeCancel derives a context from ctx that is also cancelled when other is done.
func mergeCancel(ctx, other context.Context) (context.Context, context.CancelFunc) {
	merged, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(other, cancel)
	return merged, func() {
		stop()
		cancel()
	}
}
