// Package metrics exposes the engine's Prometheus instrumentation: the
// drop-oldest counter spec.md §5 requires, plus connection and heartbeat
// gauges. Scoped down from the pack's WebSocket server metrics (see
// adred-codev-ws_poc/go-server/internal/metrics) to what this engine's
// single-connection model actually produces.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics implements transport.Recorder against a Prometheus registry.
type Metrics struct {
	eventsDropped    prometheus.Counter
	connectionActive prometheus.Gauge
	heartbeatsTotal  prometheus.Counter
	lastHeartbeat    prometheus.Gauge
}

// New registers the engine's metrics against reg. Pass
// prometheus.NewRegistry() for an isolated registry, or
// prometheus.DefaultRegisterer to publish on the default /metrics handler.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		eventsDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "tvchart_events_dropped_total",
			Help: "Total dispatched events dropped due to a slow subscriber (drop-oldest policy).",
		}),
		connectionActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "tvchart_connection_active",
			Help: "1 if the chart session's WebSocket connection is currently established, 0 otherwise.",
		}),
		heartbeatsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "tvchart_heartbeats_total",
			Help: "Total frames (heartbeat or any other traffic) received on the socket.",
		}),
		lastHeartbeat: factory.NewGauge(prometheus.GaugeOpts{
			Name: "tvchart_last_heartbeat_unixtime",
			Help: "Unix timestamp of the last heartbeat (or any frame) observed on the socket.",
		}),
	}
}

// IncDrop implements transport.Recorder.
func (m *Metrics) IncDrop() {
	m.eventsDropped.Inc()
}

// SetConnected implements transport.Recorder.
func (m *Metrics) SetConnected(connected bool) {
	if connected {
		m.connectionActive.Set(1)
		return
	}
	m.connectionActive.Set(0)
}

// ObserveHeartbeat implements transport.Recorder. Called on every frame
// the reader loop receives, not only heartbeat frames, since any traffic
// resets the idle timer that heartbeats exist to satisfy.
func (m *Metrics) ObserveHeartbeat() {
	m.heartbeatsTotal.Inc()
	m.lastHeartbeat.Set(float64(time.Now().Unix()))
}
