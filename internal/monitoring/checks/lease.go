package checks

import (
	"context"

	"github.com/charlesng35/ovpnhub/internal/monitoring"
)

// Lease backend names reported by the lease probe and the readiness runtime state.
const (
	LeaseBackendRedis    = "redis"
	LeaseBackendDatabase = "database"
)

// RedisPinger is satisfied by cache.RedisLocker.
type RedisPinger interface {
	Ping(ctx context.Context) error
}

// Lease reports on the store that serialises reconcile cycles across replicas.
// With redisConfigured and no pinger, startup fell back to database leases, which
// is degraded. A failing Redis ping is degraded too: profiles keep rendering from
// stored state while cycles stall.
func Lease(redis RedisPinger, redisConfigured bool) monitoring.Check {
	return monitoring.NewCheck("lease", func(ctx context.Context) monitoring.ProbeResult {
		switch {
		case redis != nil:
			if err := redis.Ping(ctx); err != nil {
				return monitoring.ProbeResult{Status: monitoring.StatusDegraded, Details: "redis lease store: " + err.Error()}
			}
			return monitoring.ProbeResult{Status: monitoring.StatusUp, Details: LeaseBackendRedis}
		case redisConfigured:
			return monitoring.ProbeResult{Status: monitoring.StatusDegraded, Details: "redis unreachable at startup; using database leases"}
		default:
			return monitoring.ProbeResult{Status: monitoring.StatusUp, Details: LeaseBackendDatabase}
		}
	})
}
