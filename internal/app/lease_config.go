package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"

	"github.com/charlesng35/ovpnhub/internal/cache"
)

const defaultLeaseCleanupSchedule = "@hourly"

// LeaseSettings is the resolved coordination setup for reconcile cycles.
type LeaseSettings struct {
	// UseRedis selects the Redis lease store; the database table is the fallback.
	UseRedis        bool
	Redis           cache.RedisConfig
	TTL             time.Duration
	CleanupSchedule string
}

// LeaseSettings resolves where reconcile leases live and for how long. An unset
// TTL follows the reconcile interval.
func (c *Config) LeaseSettings() LeaseSettings {
	ttl := c.Reconciler.LeaseTTL
	if ttl <= 0 {
		ttl = c.Reconciler.Interval
	}
	schedule := strings.TrimSpace(c.Maintenance.LeaseCleanupSchedule)
	if schedule == "" {
		schedule = defaultLeaseCleanupSchedule
	}
	redis := c.Cache.Redis
	return LeaseSettings{
		UseRedis: redis.Enabled,
		Redis: cache.RedisConfig{
			Address:  strings.TrimSpace(redis.Address),
			Username: strings.TrimSpace(redis.Username),
			Password: redis.Password,
			DB:       redis.DB,
			TLS:      redis.TLS,
			Timeout:  redis.Timeout,
		},
		TTL:             ttl,
		CleanupSchedule: schedule,
	}
}

func (c *Config) validateLease() error {
	var errs error
	redis := c.Cache.Redis
	if redis.Enabled && strings.TrimSpace(redis.Address) == "" {
		errs = multierr.Append(errs, errors.New("cache.redis.address is required when redis is enabled"))
	}
	if redis.DB < 0 {
		errs = multierr.Append(errs, fmt.Errorf("cache.redis.db %d must not be negative", redis.DB))
	}
	if c.Reconciler.LeaseTTL < 0 {
		errs = multierr.Append(errs, errors.New("reconciler.lease_ttl must not be negative"))
	}
	settings := c.LeaseSettings()
	if c.Reconciler.Enabled && c.Reconciler.Timeout > 0 && settings.TTL > 0 && settings.TTL <= c.Reconciler.Timeout {
		errs = multierr.Append(errs, fmt.Errorf("reconciler.lease_ttl %s must exceed reconciler.timeout %s", settings.TTL, c.Reconciler.Timeout))
	}
	if _, err := cron.ParseStandard(settings.CleanupSchedule); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("maintenance.lease_cleanup_schedule: %w", err))
	}
	return errs
}
