package handlers

import (
	"net/http"
	"strconv"
	"time"

	"sentinel-guard/internal/ids"
	"sentinel-guard/internal/model"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// alertsIngestedMetric is also the series the trend endpoint queries when a
// Prometheus server scrapes this process.
const alertsIngestedMetric = "sentinel_server_alerts_ingested_total"

// Metrics holds the mock backend's Prometheus collectors.
type Metrics struct {
	AlertsIngested  *prometheus.CounterVec
	ThreatActions   *prometheus.CounterVec
	CommandsQueued  prometheus.Counter
	RequestDuration *prometheus.HistogramVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		AlertsIngested: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: alertsIngestedMetric,
				Help: "IDS alerts stored by the backend",
			},
			[]string{"type", "risk"},
		),
		ThreatActions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sentinel_server_threat_actions_total",
				Help: "Threat block/unblock/resolve actions handled",
			},
			[]string{"action"},
		),
		CommandsQueued: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "sentinel_server_agent_commands_queued_total",
				Help: "Agent commands pushed to host queues",
			},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sentinel_server_request_duration_seconds",
				Help:    "API request latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route", "method", "code"},
		),
	}
}

// ObserveAlert counts a stored alert.
func (m *Metrics) ObserveAlert(alert model.ThreatAlert) {
	if m == nil {
		return
	}
	scope, _ := ids.Parse(alert.ImpactScope)
	m.AlertsIngested.WithLabelValues(scope.AttackType, string(model.RiskFromLevel(alert.ThreatLevel))).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Middleware records request latency per route template.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := "unmatched"
		if current := mux.CurrentRoute(r); current != nil {
			if tmpl, err := current.GetPathTemplate(); err == nil {
				route = tmpl
			}
		}
		m.RequestDuration.WithLabelValues(route, r.Method, strconv.Itoa(rec.status)).
			Observe(time.Since(start).Seconds())
	})
}
