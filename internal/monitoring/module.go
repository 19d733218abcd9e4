package monitoring

import (
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const defaultNamespace = "ovpnhub"

// Options control monitoring module configuration.
type Options struct {
	// Namespace prefixes every metric name. Defaults to "ovpnhub".
	Namespace string
	// ProbeTimeout bounds each readiness probe. Defaults to 3s.
	ProbeTimeout time.Duration

	DisableGoCollector      bool
	DisableProcessCollector bool
}

// Module owns the reconciler, profile and maintenance collectors, the summary
// counters behind /api/monitoring/summary and the health manager.
type Module struct {
	registry *prometheus.Registry
	metrics  *collectors
	stats    *statStore
	health   *HealthManager
}

// NewModule registers the collectors on a private registry so tests and
// multiple servers in one process never collide.
func NewModule(opts Options) (*Module, error) {
	namespace := opts.Namespace
	if namespace == "" {
		namespace = defaultNamespace
	}

	registry := prometheus.NewRegistry()
	var runtimeCollectors []prometheus.Collector
	if !opts.DisableGoCollector {
		runtimeCollectors = append(runtimeCollectors, prometheus.NewGoCollector())
	}
	if !opts.DisableProcessCollector {
		runtimeCollectors = append(runtimeCollectors, prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	}

	metrics := newCollectors(namespace)
	for _, collector := range append(runtimeCollectors, metrics.all()...) {
		if err := registry.Register(collector); err != nil {
			return nil, fmt.Errorf("monitoring: register collector: %w", err)
		}
	}

	stats := newStatStore()
	return &Module{
		registry: registry,
		metrics:  metrics,
		stats:    stats,
		health:   newHealthManager(stats, opts.ProbeTimeout),
	}, nil
}

// Handler serves the module's registry in the Prometheus exposition format.
func (m *Module) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Health exposes the liveness and readiness manager.
func (m *Module) Health() *HealthManager {
	if m == nil {
		return nil
	}
	return m.health
}

// Summary returns this module's counters.
func (m *Module) Summary() Summary {
	if m == nil {
		return Summary{GeneratedAt: time.Now()}
	}
	return m.stats.summary()
}

var globalModule atomic.Pointer[Module]

// SetModule installs the process-wide module used by the Record* helpers and
// the reconciler's CycleObserver. A nil module is ignored.
func SetModule(module *Module) {
	if module != nil {
		globalModule.Store(module)
	}
}

func ensureModule() *Module {
	return globalModule.Load()
}
