package checks

import (
	"context"
	"fmt"
	"time"

	"github.com/charlesng35/ovpnhub/internal/monitoring"
)

const failureThreshold = 3

// Reconciler reports degraded when the session source has failed several cycles in a
// row or no cycle has succeeded within staleAfter. Stale device state never blocks
// profile delivery, so the probe never reports down.
func Reconciler(enabled bool, staleAfter time.Duration) monitoring.Check {
	return monitoring.NewCheck("reconciler", func(ctx context.Context) monitoring.ProbeResult {
		start := time.Now()
		if !enabled {
			return monitoring.ProbeResult{Status: monitoring.StatusUp, Details: "reconciler disabled", Duration: time.Since(start)}
		}

		summary := monitoring.Snapshot().Reconciler
		switch {
		case summary.TotalCycles == 0:
			return monitoring.ProbeResult{Status: monitoring.StatusUp, Details: "pending first cycle", Duration: time.Since(start)}
		case summary.ConsecutiveFailures >= failureThreshold:
			return monitoring.ProbeResult{
				Status:   monitoring.StatusDegraded,
				Details:  fmt.Sprintf("%d consecutive failed cycles: %s", summary.ConsecutiveFailures, summary.LastError),
				Duration: time.Since(start),
			}
		case staleAfter > 0 && !summary.LastSuccessAt.IsZero() && time.Since(summary.LastSuccessAt) > staleAfter:
			return monitoring.ProbeResult{
				Status:   monitoring.StatusDegraded,
				Details:  "last successful cycle at " + summary.LastSuccessAt.UTC().Format(time.RFC3339),
				Duration: time.Since(start),
			}
		}
		return monitoring.ProbeResult{Status: monitoring.StatusUp, Duration: time.Since(start)}
	})
}
