package monitoring

import (
	"time"

	"github.com/charlesng35/ovpnhub/internal/reconciler"
)

// Summary surfaces aggregated monitoring data for administrative dashboards.
type Summary struct {
	GeneratedAt time.Time          `json:"generated_at"`
	Reconciler  ReconcilerSummary  `json:"reconciler"`
	Profiles    ProfileSummary     `json:"profiles"`
	Maintenance MaintenanceSummary `json:"maintenance"`
}

type ReconcilerSummary struct {
	TotalCycles         uint64                 `json:"total_cycles"`
	ConsecutiveFailures uint64                 `json:"consecutive_failures"`
	LastOutcome         string                 `json:"last_outcome,omitempty"`
	LastError           string                 `json:"last_error,omitempty"`
	LastRunAt           time.Time              `json:"last_run_at"`
	LastSuccessAt       time.Time              `json:"last_success_at"`
	LastDuration        time.Duration          `json:"last_duration"`
	LastResult          reconciler.CycleResult `json:"last_result"`
}

type ProfileSummary struct {
	Rendered uint64 `json:"rendered"`
	Failed   uint64 `json:"failed"`
}

type MaintenanceSummary struct {
	Jobs []MaintenanceJobSummary `json:"jobs"`
}

type MaintenanceJobSummary struct {
	Job                 string        `json:"job"`
	LastStatus          string        `json:"last_status"`
	LastRunAt           time.Time     `json:"last_run_at"`
	LastDuration        time.Duration `json:"last_duration"`
	LastError           string        `json:"last_error,omitempty"`
	ConsecutiveFailures uint64        `json:"consecutive_failures"`
	ConsecutiveSuccess  uint64        `json:"consecutive_success"`
	LastSuccessAt       time.Time     `json:"last_success_at"`
	TotalRuns           uint64        `json:"total_runs"`
}

// Snapshot returns a point-in-time summary from the current module when configured.
func Snapshot() Summary {
	return ensureModule().Summary()
}
