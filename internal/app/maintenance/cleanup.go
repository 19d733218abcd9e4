package maintenance

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/charlesng35/ovpnhub/internal/monitoring"
	"github.com/charlesng35/ovpnhub/pkg/logger"
)

const (
	// JobLeaseCleanup names the expired lease purge in logs and metrics.
	JobLeaseCleanup = "lease_cleanup"

	defaultLeaseSpec = "@hourly"
)

// LeasePurger deletes lease rows whose TTL has passed.
type LeasePurger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// Cleaner coordinates background maintenance tasks. Today that is purging expired
// reconciler lease rows left behind by replicas that stopped without releasing them.
type Cleaner struct {
	leases  LeasePurger
	cron    *cron.Cron
	now     func() time.Time
	log     *zap.Logger
	timeout time.Duration

	leaseSchedule string
}

// Option customises the Cleaner.
type Option func(*Cleaner)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(cleaner *Cleaner) {
		if c != nil {
			cleaner.cron = c
		}
	}
}

// WithNow overrides the clock used to time job runs.
func WithNow(now func() time.Time) Option {
	return func(cleaner *Cleaner) {
		if now != nil {
			cleaner.now = now
		}
	}
}

// WithLeaseSchedule overrides the cron schedule for lease cleanup.
func WithLeaseSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.leaseSchedule = spec
		}
	}
}

// WithJobTimeout bounds each scheduled job run.
func WithJobTimeout(timeout time.Duration) Option {
	return func(cleaner *Cleaner) {
		if timeout > 0 {
			cleaner.timeout = timeout
		}
	}
}

// NewCleaner constructs a Cleaner. A nil purger disables lease cleanup, which is the
// case when leases live in Redis and expire on their own.
func NewCleaner(leases LeasePurger, opts ...Option) *Cleaner {
	cleaner := &Cleaner{
		leases:        leases,
		now:           time.Now,
		timeout:       time.Minute,
		leaseSchedule: defaultLeaseSpec,
		log:           logger.WithModule("maintenance"),
	}

	for _, opt := range opts {
		opt(cleaner)
	}

	if cleaner.cron == nil {
		cleaner.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}
	return cleaner
}

// Enabled reports whether any cleanup job is configured.
func (c *Cleaner) Enabled() bool {
	return c.leases != nil
}

// Start registers cleanup jobs with the cron scheduler and launches it if at least one cleanup is enabled.
func (c *Cleaner) Start() error {
	if !c.Enabled() {
		return nil
	}

	if _, err := c.cron.AddFunc(c.leaseSchedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
		defer cancel()
		if err := c.cleanupLeases(ctx); err != nil {
			c.log.Warn("lease cleanup failed", zap.Error(err))
		}
	}); err != nil {
		return fmt.Errorf("maintenance: schedule %s: %w", JobLeaseCleanup, err)
	}

	c.cron.Start()
	return nil
}

// Stop halts the underlying scheduler, waiting for any running jobs to complete.
func (c *Cleaner) Stop() context.Context {
	if c.cron == nil {
		return context.Background()
	}
	return c.cron.Stop()
}

// RunOnce executes all configured cleanup routines sequentially. Primarily used in tests
// and at startup.
func (c *Cleaner) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var errs error
	if c.leases != nil {
		errs = multierr.Append(errs, c.cleanupLeases(ctx))
	}
	return errs
}

func (c *Cleaner) cleanupLeases(ctx context.Context) error {
	start := c.now()
	removed, err := c.leases.PurgeExpired(ctx)
	elapsed := c.now().Sub(start)
	if err != nil {
		monitoring.RecordMaintenanceRun(JobLeaseCleanup, "failure", err.Error(), elapsed)
		return fmt.Errorf("maintenance: %s: %w", JobLeaseCleanup, err)
	}

	monitoring.RecordMaintenanceRun(JobLeaseCleanup, "success", "", elapsed)
	if removed > 0 {
		c.log.Info("expired leases purged", zap.Int64("removed", removed))
	}
	return nil
}
