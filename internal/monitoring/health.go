package monitoring

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

const defaultProbeTimeout = 3 * time.Second

// ProbeStatus encodes the outcome of a health probe.
type ProbeStatus string

const (
	StatusUp       ProbeStatus = "up"
	StatusDegraded ProbeStatus = "degraded"
	StatusDown     ProbeStatus = "down"
)

func (s ProbeStatus) severity() int {
	switch s {
	case StatusDown:
		return 2
	case StatusDegraded:
		return 1
	default:
		return 0
	}
}

// Worse returns the more severe of two statuses.
func Worse(a, b ProbeStatus) ProbeStatus {
	if b.severity() > a.severity() {
		return b
	}
	return a
}

// ProbeResult captures a single dependency check outcome.
type ProbeResult struct {
	Component string        `json:"component"`
	Status    ProbeStatus   `json:"status"`
	Details   string        `json:"details,omitempty"`
	Duration  time.Duration `json:"duration"`
}

// RuntimeState describes how this replica coordinates reconciliation. Readiness
// reports carry it next to the probe results.
type RuntimeState struct {
	LeaseBackend        string     `json:"lease_backend,omitempty"`
	ReconcilerEnabled   bool       `json:"reconciler_enabled"`
	LastCycleAt         *time.Time `json:"last_cycle_at,omitempty"`
	LastCycleOutcome    string     `json:"last_cycle_outcome,omitempty"`
	LastSuccessAt       *time.Time `json:"last_success_at,omitempty"`
	ConsecutiveFailures uint64     `json:"consecutive_failures"`
}

// HealthReport aggregates probe results for a liveness or readiness evaluation.
type HealthReport struct {
	Success   bool          `json:"success"`
	Status    ProbeStatus   `json:"status"`
	CheckedAt time.Time     `json:"checked_at"`
	Checks    []ProbeResult `json:"checks"`
	Runtime   *RuntimeState `json:"runtime,omitempty"`
}

// Check is a named dependency probe.
type Check struct {
	Name string
	Run  func(ctx context.Context) ProbeResult
}

// NewCheck constructs a health check. A nil function always reports down.
func NewCheck(name string, fn func(ctx context.Context) ProbeResult) Check {
	if fn == nil {
		fn = func(context.Context) ProbeResult {
			return ProbeResult{Status: StatusDown, Details: "probe not implemented"}
		}
	}
	return Check{Name: name, Run: fn}
}

// HealthManager runs liveness and readiness probes. Readiness probes run
// concurrently, each bounded by the probe timeout.
type HealthManager struct {
	mu        sync.RWMutex
	liveness  []Check
	readiness []Check
	timeout   time.Duration

	leaseBackend      string
	reconcilerEnabled bool
	stats             *statStore
}

// NewHealthManager constructs an empty health manager without runtime state.
func NewHealthManager() *HealthManager {
	return newHealthManager(nil, defaultProbeTimeout)
}

func newHealthManager(stats *statStore, timeout time.Duration) *HealthManager {
	if timeout <= 0 {
		timeout = defaultProbeTimeout
	}
	return &HealthManager{stats: stats, timeout: timeout}
}

// SetRuntime records the active lease backend and whether this replica reconciles.
func (m *HealthManager) SetRuntime(leaseBackend string, reconcilerEnabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.leaseBackend = leaseBackend
	m.reconcilerEnabled = reconcilerEnabled
}

// RegisterLiveness adds a liveness probe, replacing any probe with the same name.
func (m *HealthManager) RegisterLiveness(check Check) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.liveness = upsertCheck(m.liveness, check)
}

// RegisterReadiness adds a readiness probe, replacing any probe with the same name.
func (m *HealthManager) RegisterReadiness(check Check) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readiness = upsertCheck(m.readiness, check)
}

func upsertCheck(list []Check, check Check) []Check {
	if check.Name == "" || check.Run == nil {
		return list
	}
	for i := range list {
		if list[i].Name == check.Name {
			list[i] = check
			return list
		}
	}
	return append(list, check)
}

// EvaluateLiveness executes all liveness probes.
func (m *HealthManager) EvaluateLiveness(ctx context.Context) HealthReport {
	m.mu.RLock()
	checks := append([]Check(nil), m.liveness...)
	m.mu.RUnlock()
	return m.evaluate(ctx, checks)
}

// EvaluateReadiness executes all readiness probes and attaches the runtime state.
func (m *HealthManager) EvaluateReadiness(ctx context.Context) HealthReport {
	m.mu.RLock()
	checks := append([]Check(nil), m.readiness...)
	m.mu.RUnlock()

	report := m.evaluate(ctx, checks)
	report.Runtime = m.runtime()
	return report
}

func (m *HealthManager) runtime() *RuntimeState {
	m.mu.RLock()
	state := &RuntimeState{LeaseBackend: m.leaseBackend, ReconcilerEnabled: m.reconcilerEnabled}
	m.mu.RUnlock()

	if m.stats == nil || !state.ReconcilerEnabled {
		return state
	}
	summary := m.stats.reconcile.snapshot()
	state.LastCycleOutcome = summary.LastOutcome
	state.ConsecutiveFailures = summary.ConsecutiveFailures
	if !summary.LastRunAt.IsZero() {
		at := summary.LastRunAt.UTC()
		state.LastCycleAt = &at
	}
	if !summary.LastSuccessAt.IsZero() {
		at := summary.LastSuccessAt.UTC()
		state.LastSuccessAt = &at
	}
	return state
}

func (m *HealthManager) evaluate(ctx context.Context, checks []Check) HealthReport {
	if ctx == nil {
		ctx = context.Background()
	}
	results := make([]ProbeResult, len(checks))

	var wg sync.WaitGroup
	for i, check := range checks {
		wg.Add(1)
		go func(i int, check Check) {
			defer wg.Done()
			probeCtx, cancel := context.WithTimeout(ctx, m.timeout)
			defer cancel()
			results[i] = runCheck(probeCtx, check)
		}(i, check)
	}
	wg.Wait()

	report := HealthReport{Status: StatusUp, CheckedAt: time.Now().UTC(), Checks: results}
	for _, result := range results {
		report.Status = Worse(report.Status, result.Status)
	}
	report.Success = report.Status == StatusUp
	return report
}

func runCheck(ctx context.Context, check Check) (result ProbeResult) {
	start := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			result = ProbeResult{Status: StatusDown, Details: fmt.Sprintf("probe panicked: %v", rec)}
		}
		result.Component = check.Name
		if result.Status == "" {
			result.Status = StatusDown
		}
		if result.Duration <= 0 {
			result.Duration = time.Since(start)
		}
	}()
	return check.Run(ctx)
}

// ResultFromError turns a probe error into a result. Timeouts and cancellations
// report degraded; any other error reports down.
func ResultFromError(err error, started time.Time) ProbeResult {
	duration := time.Since(started)
	if err == nil {
		return ProbeResult{Status: StatusUp, Duration: duration}
	}
	status := StatusDown
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		status = StatusDegraded
	}
	return ProbeResult{Status: status, Details: err.Error(), Duration: duration}
}
