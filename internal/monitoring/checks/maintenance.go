package checks

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/charlesng35/ovpnhub/internal/app/maintenance"
	"github.com/charlesng35/ovpnhub/internal/monitoring"
)

// staleRuns is how many missed activations make the lease cleanup stale.
const staleRuns = 2

// LeaseCleanup watches the expired lease purge. The staleness window is derived
// from its cron schedule: two missed activations degrade the probe and a failed
// last run marks it down.
func LeaseCleanup(schedule string) (monitoring.Check, error) {
	parsed, err := cron.ParseStandard(schedule)
	if err != nil {
		return monitoring.Check{}, fmt.Errorf("checks: lease cleanup schedule %q: %w", schedule, err)
	}
	registered := time.Now()
	first := parsed.Next(registered)
	maxAge := staleRuns * parsed.Next(first).Sub(first)

	return monitoring.NewCheck("maintenance", func(ctx context.Context) monitoring.ProbeResult {
		now := time.Now()
		job, ok := leaseCleanupJob(monitoring.Snapshot())
		switch {
		case !ok || job.TotalRuns == 0:
			if now.After(first.Add(maxAge)) {
				return monitoring.ProbeResult{Status: monitoring.StatusDegraded, Details: maintenance.JobLeaseCleanup + ": never ran"}
			}
			return monitoring.ProbeResult{Status: monitoring.StatusUp, Details: maintenance.JobLeaseCleanup + ": pending first run"}
		case job.ConsecutiveFailures > 0:
			return monitoring.ProbeResult{
				Status:  monitoring.StatusDown,
				Details: fmt.Sprintf("%s: %d consecutive failures: %s", job.Job, job.ConsecutiveFailures, job.LastError),
			}
		case now.Sub(job.LastRunAt) > maxAge:
			return monitoring.ProbeResult{
				Status:  monitoring.StatusDegraded,
				Details: job.Job + ": last run " + job.LastRunAt.UTC().Format(time.RFC3339),
			}
		}
		return monitoring.ProbeResult{Status: monitoring.StatusUp}
	}), nil
}

func leaseCleanupJob(summary monitoring.Summary) (monitoring.MaintenanceJobSummary, bool) {
	for _, job := range summary.Maintenance.Jobs {
		if job.Job == maintenance.JobLeaseCleanup {
			return job, true
		}
	}
	return monitoring.MaintenanceJobSummary{}, false
}
