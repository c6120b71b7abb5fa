package relay

import "github.com/prometheus/client_golang/prometheus"

// Prometheus metric namespace/subsystem, grouped the way Collector types
// elsewhere in the retrieval pack group theirs.
const (
	namespace = "gbapk_relay"
	subsystem = "session"
)

// Label names.
const (
	labelOutcome = "outcome"
	labelReason  = "reason"
	labelKind    = "kind"
)

// Metrics holds every Prometheus metric the relay exposes on /metrics.
// None of it changes observable protocol behavior — it is pure
// instrumentation layered over the operations in spec.md §4.
type Metrics struct {
	SessionsConnected prometheus.Gauge
	AdmissionOutcomes *prometheus.CounterVec
	PacketsRelayed    *prometheus.CounterVec
	FramesDropped     *prometheus.CounterVec
	Disconnects       *prometheus.CounterVec
	PingLatencyMs     prometheus.Histogram
	WalkablePairs     prometheus.Gauge
	NotWalkablePairs  prometheus.Gauge
}

// NewMetrics creates and registers every relay metric against reg. If reg
// is nil, prometheus.NewRegistry() is used (a fresh, unshared registry —
// safe to construct repeatedly in tests without double-registration
// panics against the global DefaultRegisterer).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	m := &Metrics{
		SessionsConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "connected",
			Help:      "Number of currently registered sessions.",
		}),
		AdmissionOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "admission_outcomes_total",
			Help:      "Admission attempts by outcome (ok, reconnect, deny_malformed, deny_version, deny_bad_chars, deny_unsupported_game, deny_name_taken, deny_full).",
		}, []string{labelOutcome}),
		PacketsRelayed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "packets_relayed_total",
			Help:      "Packets relayed by kind (position, directed, exit, replay, control).",
		}, []string{labelKind}),
		FramesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "frames_dropped_total",
			Help:      "Inbound frames dropped by reason (short_frame, bad_terminator, unknown_recipient, bad_pong_timestamp).",
		}, []string{labelReason}),
		Disconnects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "disconnects_total",
			Help:      "Session teardowns by reason (io_error, missed_pongs, reconnect_replaced, backpressure, shutdown).",
		}, []string{labelReason}),
		PingLatencyMs: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "ping_latency_ms",
			Help:      "Measured ping/pong round-trip latency in milliseconds.",
			Buckets:   []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 9999},
		}),
		WalkablePairs: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "adjacency",
			Name:      "walkable_pairs",
			Help:      "Number of map pairs currently marked walkable.",
		}),
		NotWalkablePairs: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "adjacency",
			Name:      "not_walkable_pairs",
			Help:      "Number of map pairs permanently marked non-walkable.",
		}),
	}

	reg.MustRegister(
		m.SessionsConnected,
		m.AdmissionOutcomes,
		m.PacketsRelayed,
		m.FramesDropped,
		m.Disconnects,
		m.PingLatencyMs,
		m.WalkablePairs,
		m.NotWalkablePairs,
	)
	return m
}
