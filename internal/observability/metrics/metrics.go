package metrics

import "github.com/prometheus/client_golang/prometheus"

// SyncMetrics exposes counters/gauges for the appointment sync subsystem.
type SyncMetrics struct {
	drainPasses      *prometheus.CounterVec
	drainedOps       prometheus.Counter
	queueDepth       prometheus.Gauge
	resolverAttempts *prometheus.CounterVec
	endpointRescans  prometheus.Counter
}

func NewSyncMetrics(reg prometheus.Registerer) *SyncMetrics {
	m := &SyncMetrics{
		drainPasses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "telemed",
			Subsystem: "sync",
			Name:      "drain_passes_total",
			Help:      "Drain passes by outcome",
		}, []string{"outcome"}),
		drainedOps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "telemed",
			Subsystem: "sync",
			Name:      "drained_operations_total",
			Help:      "Pending operations confirmed by the backend",
		}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "telemed",
			Subsystem: "sync",
			Name:      "pending_queue_depth",
			Help:      "Current number of unconfirmed status changes",
		}),
		resolverAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "telemed",
			Subsystem: "resolver",
			Name:      "attempts_total",
			Help:      "Endpoint attempts by outcome class",
		}, []string{"outcome"}),
		endpointRescans: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "telemed",
			Subsystem: "resolver",
			Name:      "rescans_total",
			Help:      "Full candidate scans after a resolved endpoint failed or was absent",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.drainPasses, m.drainedOps, m.queueDepth, m.resolverAttempts, m.endpointRescans)
	return m
}

func (m *SyncMetrics) ObserveDrainPass(outcome string) {
	if m == nil {
		return
	}
	m.drainPasses.WithLabelValues(outcome).Inc()
}

func (m *SyncMetrics) ObserveDrainedOp() {
	if m == nil {
		return
	}
	m.drainedOps.Inc()
}

func (m *SyncMetrics) SetQueueDepth(n int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(n))
}

func (m *SyncMetrics) ObserveResolverAttempt(outcome string) {
	if m == nil {
		return
	}
	m.resolverAttempts.WithLabelValues(outcome).Inc()
}

func (m *SyncMetrics) ObserveEndpointRescan() {
	if m == nil {
		return
	}
	m.endpointRescans.Inc()
}
