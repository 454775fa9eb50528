package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestSyncMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewSyncMetrics(reg)
	m.ObserveDrainPass("complete")
	m.ObserveDrainedOp()
	m.SetQueueDepth(2)
	m.ObserveResolverAttempt("resolved_hit")
	m.ObserveEndpointRescan()
}

func TestSyncMetricsNilSafe(t *testing.T) {
	var m *SyncMetrics
	m.ObserveDrainPass("stopped")
	m.ObserveDrainedOp()
	m.SetQueueDepth(0)
	m.ObserveResolverAttempt("exhausted")
	m.ObserveEndpointRescan()
}
