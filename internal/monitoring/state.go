package monitoring

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/charlesng35/ovpnhub/internal/reconciler"
)

type statStore struct {
	profileSuccess atomic.Uint64
	profileFailure atomic.Uint64

	reconcile   reconcileStats
	maintenance sync.Map // string -> *maintenanceStats
}

func newStatStore() *statStore {
	return &statStore{}
}

func (s *statStore) summary() Summary {
	return Summary{
		GeneratedAt: time.Now(),
		Reconciler:  s.reconcile.snapshot(),
		Profiles: ProfileSummary{
			Rendered: s.profileSuccess.Load(),
			Failed:   s.profileFailure.Load(),
		},
		Maintenance: MaintenanceSummary{
			Jobs: s.cloneMaintenance(),
		},
	}
}

func (s *statStore) recordProfile(result string) {
	if result == "success" {
		s.profileSuccess.Add(1)
		return
	}
	s.profileFailure.Add(1)
}

func (s *statStore) cloneMaintenance() []MaintenanceJobSummary {
	summaries := []MaintenanceJobSummary{}
	s.maintenance.Range(func(key, value any) bool {
		summaries = append(summaries, value.(*maintenanceStats).snapshot(key.(string)))
		return true
	})
	return summaries
}

func (s *statStore) maintenanceEntry(job string) *maintenanceStats {
	if value, ok := s.maintenance.Load(job); ok {
		return value.(*maintenanceStats)
	}
	actual, _ := s.maintenance.LoadOrStore(job, &maintenanceStats{})
	return actual.(*maintenanceStats)
}

type reconcileStats struct {
	mu                  sync.Mutex
	totalCycles         uint64
	consecutiveFailures uint64
	lastOutcome         string
	lastError           string
	lastRunAt           time.Time
	lastSuccessAt       time.Time
	lastDuration        time.Duration
	lastResult          reconciler.CycleResult
}

func (r *reconcileStats) record(result reconciler.CycleResult, outcome, message string, duration time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	r.totalCycles++
	r.lastOutcome = outcome
	r.lastError = message
	r.lastRunAt = now
	r.lastDuration = duration
	r.lastResult = result
	if outcome == CycleSuccess {
		r.consecutiveFailures = 0
		r.lastSuccessAt = now
		return
	}
	r.consecutiveFailures++
}

func (r *reconcileStats) snapshot() ReconcilerSummary {
	r.mu.Lock()
	defer r.mu.Unlock()

	return ReconcilerSummary{
		TotalCycles:         r.totalCycles,
		ConsecutiveFailures: r.consecutiveFailures,
		LastOutcome:         r.lastOutcome,
		LastError:           r.lastError,
		LastRunAt:           r.lastRunAt,
		LastSuccessAt:       r.lastSuccessAt,
		LastDuration:        r.lastDuration,
		LastResult:          r.lastResult,
	}
}

type maintenanceStats struct {
	lastStatus           atomic.Value // string
	lastError            atomic.Value // string
	lastRun              atomic.Int64 // unix nano
	lastDuration         atomic.Int64 // nanoseconds
	consecutiveFailures  atomic.Uint64
	totalRuns            atomic.Uint64
	lastSuccessfulRun    atomic.Int64
	consecutiveSuccesses atomic.Uint64
}

func (m *maintenanceStats) snapshot(job string) MaintenanceJobSummary {
	status, _ := m.lastStatus.Load().(string)
	errMsg, _ := m.lastError.Load().(string)

	return MaintenanceJobSummary{
		Job:                 job,
		LastStatus:          status,
		LastRunAt:           time.Unix(0, m.lastRun.Load()),
		LastDuration:        time.Duration(m.lastDuration.Load()),
		LastError:           errMsg,
		ConsecutiveFailures: m.consecutiveFailures.Load(),
		ConsecutiveSuccess:  m.consecutiveSuccesses.Load(),
		LastSuccessAt:       time.Unix(0, m.lastSuccessfulRun.Load()),
		TotalRuns:           m.totalRuns.Load(),
	}
}

func (m *maintenanceStats) record(result, message string, duration time.Duration) {
	if duration < 0 {
		duration = 0
	}
	now := time.Now()
	m.lastStatus.Store(result)
	m.lastError.Store(message)
	m.lastRun.Store(now.UnixNano())
	m.lastDuration.Store(int64(duration))
	m.totalRuns.Add(1)

	if result == "success" {
		m.consecutiveFailures.Store(0)
		m.consecutiveSuccesses.Add(1)
		m.lastSuccessfulRun.Store(now.UnixNano())
		return
	}
	m.consecutiveFailures.Add(1)
	m.consecutiveSuccesses.Store(0)
}
