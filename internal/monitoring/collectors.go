package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
)

type collectors struct {
	apiLatency           *prometheus.HistogramVec
	reconcileCycles      *prometheus.CounterVec
	reconcileDuration    prometheus.Histogram
	reconcileDevices     *prometheus.CounterVec
	reconcileLastSuccess prometheus.Gauge
	profileRenders       *prometheus.CounterVec
	profileRenderLatency prometheus.Histogram
	maintenanceRuns      *prometheus.CounterVec
	maintenanceDuration  *prometheus.HistogramVec
	maintenanceLastRun   *prometheus.GaugeVec
}

func newCollectors(namespace string) *collectors {
	buckets := prometheus.DefBuckets
	cycleBuckets := []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30}

	return &collectors{
		apiLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "api_latency_seconds",
				Help:      "API endpoint latency",
				Buckets:   buckets,
			},
			[]string{"method", "path", "status"},
		),
		reconcileCycles: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reconcile_cycles_total",
				Help:      "Reconciliation cycles grouped by outcome",
			},
			[]string{"result"},
		),
		reconcileDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "reconcile_cycle_duration_seconds",
				Help:      "Duration of reconciliation cycles including the session poll",
				Buckets:   cycleBuckets,
			},
		),
		reconcileDevices: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reconcile_device_changes_total",
				Help:      "Device rows touched by reconciliation grouped by change",
			},
			[]string{"change"},
		),
		reconcileLastSuccess: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "reconcile_last_success_timestamp",
				Help:      "Timestamp of the last fully successful cycle (seconds since epoch)",
			},
		),
		profileRenders: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "profile_renders_total",
				Help:      "Client profile renders grouped by result",
			},
			[]string{"result"},
		),
		profileRenderLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "profile_render_latency_seconds",
				Help:      "Time spent rendering a client profile",
				Buckets:   buckets,
			},
		),
		maintenanceRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "maintenance_runs_total",
				Help:      "Maintenance job executions",
			},
			[]string{"job", "result"},
		),
		maintenanceDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "maintenance_duration_seconds",
				Help:      "Maintenance job duration",
				Buckets:   buckets,
			},
			[]string{"job"},
		),
		maintenanceLastRun: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "maintenance_last_success_timestamp",
				Help:      "Timestamp of the last successful maintenance run (seconds since epoch)",
			},
			[]string{"job"},
		),
	}
}

func (c *collectors) all() []prometheus.Collector {
	return []prometheus.Collector{
		c.apiLatency,
		c.reconcileCycles,
		c.reconcileDuration,
		c.reconcileDevices,
		c.reconcileLastSuccess,
		c.profileRenders,
		c.profileRenderLatency,
		c.maintenanceRuns,
		c.maintenanceDuration,
		c.maintenanceLastRun,
	}
}
