package client

import (
	"sentinel-guard/internal/model"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type StreamMetrics struct {
	// Stream metrics
	EventsTotal     *prometheus.CounterVec
	EventsBySource  *prometheus.CounterVec
	DecodeFailures  prometheus.Counter
	Reconnects      prometheus.Counter
	ConnectionState prometheus.Gauge

	// Alert metrics
	AlertCounter *prometheus.CounterVec

	// Poller metrics
	PollDuration *prometheus.HistogramVec
	PollErrors   *prometheus.CounterVec
}

// NewStreamMetrics registers the collectors with reg. Passing nil uses the
// default registerer.
func NewStreamMetrics(reg prometheus.Registerer) *StreamMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &StreamMetrics{
		EventsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sentinel_ids_events_total",
				Help: "Total number of threat events received from the IDS stream",
			},
			[]string{"risk_level", "attack_type"},
		),

		EventsBySource: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sentinel_ids_events_by_source_total",
				Help: "Total number of threat events by source IP",
			},
			[]string{"source_ip"},
		),

		DecodeFailures: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "sentinel_ids_decode_failures_total",
				Help: "Total number of stream frames that could not be decoded",
			},
		),

		Reconnects: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "sentinel_ids_reconnects_total",
				Help: "Total number of scheduled stream reconnects",
			},
		),

		ConnectionState: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "sentinel_ids_connection_state",
				Help: "Stream connection state (0 disconnected, 1 connecting, 2 connected, 3 closing)",
			},
		),

		AlertCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sentinel_alerts_total",
				Help: "Total number of alerts raised by watcher rules",
			},
			[]string{"severity", "type"},
		),

		PollDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sentinel_poll_duration_seconds",
				Help:    "Duration of poller fetches",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"poller"},
		),

		PollErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sentinel_poll_errors_total",
				Help: "Total number of failed poller fetches",
			},
			[]string{"poller"},
		),
	}
}

func (m *StreamMetrics) RecordEvent(event model.ThreatEvent) {
	if m == nil {
		return
	}
	m.EventsTotal.WithLabelValues(string(event.RiskLevel), event.Type).Inc()
	m.EventsBySource.WithLabelValues(event.SourceIP).Inc()
}

func (m *StreamMetrics) RecordDecodeFailure() {
	if m == nil {
		return
	}
	m.DecodeFailures.Inc()
}

func (m *StreamMetrics) RecordReconnect() {
	if m == nil {
		return
	}
	m.Reconnects.Inc()
}

func (m *StreamMetrics) SetState(state StreamState) {
	if m == nil {
		return
	}
	m.ConnectionState.Set(float64(state))
}

func (m *StreamMetrics) RecordAlert(severity, alertType string) {
	if m == nil {
		return
	}
	m.AlertCounter.WithLabelValues(severity, alertType).Inc()
}

func (m *StreamMetrics) RecordPoll(poller string, seconds float64, err error) {
	if m == nil {
		return
	}
	m.PollDuration.WithLabelValues(poller).Observe(seconds)
	if err != nil {
		m.PollErrors.WithLabelValues(poller).Inc()
	}
}
