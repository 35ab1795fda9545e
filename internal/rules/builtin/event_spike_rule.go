package builtin

import (
	"context"
	"fmt"
	"sync"
	"time"

	"sentinel-guard/internal/model"

	prommodel "github.com/prometheus/common/model"
	"github.com/sirupsen/logrus"
)

// EventSpikeQuery is the per-second rate of decoded IDS events.
const EventSpikeQuery = `sum(rate(sentinel_ids_events_total[1m]))`

// EventSpikeRule compares the IDS event rate reported by Prometheus with a
// baseline learned over the first minute and fires when it exceeds
// threshold times the baseline.
type EventSpikeRule struct {
	name          string
	enabled       bool
	severity      string
	threshold     float64
	prometheusAPI PrometheusQueryClient
	baseline      float64
	baselineStart time.Time
	baselineRates []float64
	window        time.Duration
	logger        *logrus.Logger
	mu            sync.Mutex
	interval      time.Duration
	alertEmitter  func(*model.Alert)
}

type PrometheusQueryClient interface {
	Query(ctx context.Context, query string, timeout time.Duration) (prommodel.Value, error)
}

func NewEventSpikeRule(enabled bool, severity string, threshold float64, promClient PrometheusQueryClient, logger *logrus.Logger) *EventSpikeRule {
	if threshold <= 0 {
		threshold = 3.0
	}
	return &EventSpikeRule{
		name:          "event_spike",
		enabled:       enabled,
		severity:      severity,
		threshold:     threshold,
		prometheusAPI: promClient,
		window:        time.Minute,
		logger:        logger,
		interval:      10 * time.Second,
	}
}

func (r *EventSpikeRule) SetAlertEmitter(emitter func(*model.Alert)) {
	r.alertEmitter = emitter
}

func (r *EventSpikeRule) SetInterval(interval time.Duration) {
	if interval > 0 {
		r.interval = interval
	}
}

func (r *EventSpikeRule) Name() string {
	return r.name
}

func (r *EventSpikeRule) IsEnabled() bool {
	return r.enabled && r.prometheusAPI != nil
}

func (r *EventSpikeRule) Start(ctx context.Context) {
	if !r.IsEnabled() {
		return
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Infof("[Event Spike] Starting periodic checks from Prometheus (interval: %v)", r.interval)

	for {
		select {
		case <-ticker.C:
			if alert := r.Check(ctx); alert != nil && r.alertEmitter != nil {
				r.alertEmitter(alert)
			}
		case <-ctx.Done():
			r.logger.Info("[Event Spike] Stopping periodic checks")
			return
		}
	}
}

// Evaluate is a no-op; the rule works from Prometheus on its own timer.
func (r *EventSpikeRule) Evaluate(ctx context.Context, event *model.ThreatEvent) *model.Alert {
	return nil
}

// Check runs one query and returns an alert when the rate spikes.
func (r *EventSpikeRule) Check(ctx context.Context) *model.Alert {
	result, err := r.prometheusAPI.Query(ctx, EventSpikeQuery, 10*time.Second)
	if err != nil {
		r.logger.Errorf("[Event Spike] Failed to query Prometheus: %v", err)
		return nil
	}

	vector, ok := result.(prommodel.Vector)
	if !ok || len(vector) == 0 {
		r.logger.Debug("[Event Spike] No data from Prometheus")
		return nil
	}
	currentRate := float64(vector[0].Value)

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.baseline <= 0 {
		now := time.Now()
		if r.baselineStart.IsZero() {
			r.baselineStart = now
			r.baselineRates = []float64{currentRate}
			r.logger.Infof("[Event Spike] Starting baseline collection (%s) | Rate: %.2f events/sec", r.window, currentRate)
			return nil
		}
		if now.Sub(r.baselineStart) < r.window {
			r.baselineRates = append(r.baselineRates, currentRate)
			return nil
		}

		sum := 0.0
		for _, rate := range r.baselineRates {
			sum += rate
		}
		r.baseline = sum / float64(len(r.baselineRates))
		r.baselineRates = nil
		r.baselineStart = time.Time{}
		r.logger.Infof("[Event Spike] Baseline calculated: %.2f events/sec", r.baseline)
		return nil
	}

	multiplier := currentRate / r.baseline
	r.logger.Debugf("[Event Spike] Current rate: %.2f events/sec | Baseline: %.2f | Multiplier: %.2fx", currentRate, r.baseline, multiplier)

	if multiplier <= r.threshold {
		return nil
	}

	alert := &model.Alert{
		Type:      r.name,
		Severity:  r.severity,
		Message:   fmt.Sprintf("IDS event rate spike: %.2fx baseline (%.2f events/sec vs %.2f baseline)", multiplier, currentRate, r.baseline),
		Timestamp: time.Now(),
	}
	r.logger.Warnf("Event Spike Rule Alert: %s", alert.Message)
	return alert
}

// SetBaseline seeds the baseline, skipping the learning window.
func (r *EventSpikeRule) SetBaseline(rate float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.baseline = rate
}
