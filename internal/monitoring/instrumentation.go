package monitoring

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/charlesng35/ovpnhub/internal/reconciler"
)

// Reconcile cycle outcomes used as metric labels.
const (
	CycleSuccess           = "success"
	CyclePartial           = "partial"
	CycleSourceUnavailable = "source_unavailable"
	CycleCancelled         = "cancelled"
)

// ObserveAPILatency captures the HTTP request latency for the supplied route.
func ObserveAPILatency(method, path, status string, duration time.Duration) {
	module := ensureModule()
	if module == nil {
		return
	}
	if duration < 0 {
		duration = 0
	}
	method = strings.ToUpper(strings.TrimSpace(method))
	if method == "" {
		method = "UNKNOWN"
	}
	path = sanitizePath(path)
	if path == "" {
		path = "unknown"
	}
	status = strings.TrimSpace(status)
	if status == "" {
		status = "unknown"
	}
	module.metrics.apiLatency.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// CycleObserver exports reconciliation outcomes. It satisfies reconciler.Observer.
type CycleObserver struct{}

// ObserveCycle implements reconciler.Observer.
func (CycleObserver) ObserveCycle(result reconciler.CycleResult, elapsed time.Duration, err error) {
	RecordReconcileCycle(result, classifyCycle(err), errorMessage(err), elapsed)
}

func classifyCycle(err error) string {
	var unavailable *reconciler.SourceUnavailableError
	switch {
	case err == nil:
		return CycleSuccess
	case errors.As(err, &unavailable):
		return CycleSourceUnavailable
	case errors.Is(err, context.Canceled):
		return CycleCancelled
	default:
		return CyclePartial
	}
}

// RecordReconcileCycle updates cycle counters, device change counters and the summary.
func RecordReconcileCycle(result reconciler.CycleResult, outcome, message string, duration time.Duration) {
	module := ensureModule()
	if module == nil {
		return
	}
	if duration < 0 {
		duration = 0
	}
	outcome = normalizeLabel(outcome)

	module.metrics.reconcileCycles.WithLabelValues(outcome).Inc()
	module.metrics.reconcileDuration.Observe(duration.Seconds())
	for change, count := range map[string]int{
		"created":     result.Created,
		"updated":     result.Updated,
		"deactivated": result.Deactivated,
		"skipped":     result.Skipped,
		"failed":      result.Failed,
	} {
		if count > 0 {
			module.metrics.reconcileDevices.WithLabelValues(change).Add(float64(count))
		}
	}
	if outcome == CycleSuccess {
		module.metrics.reconcileLastSuccess.SetToCurrentTime()
	}
	module.stats.reconcile.record(result, outcome, message, duration)
}

// RecordProfileRender counts a profile render and its latency.
func RecordProfileRender(result string, duration time.Duration) {
	module := ensureModule()
	if module == nil {
		return
	}
	if duration < 0 {
		duration = 0
	}
	label := normalizeLabel(result)
	module.metrics.profileRenders.WithLabelValues(label).Inc()
	module.metrics.profileRenderLatency.Observe(duration.Seconds())
	module.stats.recordProfile(label)
}

// RecordMaintenanceRun captures maintenance job execution metrics.
func RecordMaintenanceRun(job, result, message string, duration time.Duration) {
	module := ensureModule()
	if module == nil {
		return
	}
	job = strings.TrimSpace(job)
	if job == "" {
		job = "unknown"
	}
	label := normalizeLabel(result)
	module.metrics.maintenanceRuns.WithLabelValues(job, label).Inc()
	module.metrics.maintenanceDuration.WithLabelValues(job).Observe(duration.Seconds())
	if label == "success" {
		module.metrics.maintenanceLastRun.WithLabelValues(job).SetToCurrentTime()
	}
	module.stats.maintenanceEntry(job).record(label, message, duration)
}

func errorMessage(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func normalizeLabel(value string) string {
	value = strings.TrimSpace(strings.ToLower(value))
	if value == "" {
		return "unknown"
	}
	return value
}

func sanitizePath(path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return ""
	}
	path = strings.Trim(path, "/")
	path = strings.ReplaceAll(path, " ", "_")
	if path == "" {
		return "root"
	}
	return path
}
