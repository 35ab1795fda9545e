package builtin

import (
	"context"
	"fmt"
	"sync"
	"time"

	"sentinel-guard/internal/model"

	"github.com/sirupsen/logrus"
)

// SourceBurstRule fires when one source IP produces at least threshold
// events inside a sliding window. After firing, the source is quiet for
// one window so a sustained burst raises one alert per window.
type SourceBurstRule struct {
	name      string
	enabled   bool
	severity  string
	threshold int
	window    time.Duration
	seen      map[string][]time.Time
	lastAlert map[string]time.Time
	logger    *logrus.Logger
	mu        sync.Mutex
	now       func() time.Time
}

func NewSourceBurstRule(enabled bool, severity string, threshold int, window time.Duration, logger *logrus.Logger) *SourceBurstRule {
	if threshold <= 0 {
		threshold = 10
	}
	if window <= 0 {
		window = time.Minute
	}
	return &SourceBurstRule{
		name:      "source_burst",
		enabled:   enabled,
		severity:  severity,
		threshold: threshold,
		window:    window,
		seen:      make(map[string][]time.Time),
		lastAlert: make(map[string]time.Time),
		logger:    logger,
		now:       time.Now,
	}
}

func (r *SourceBurstRule) Name() string {
	return r.name
}

func (r *SourceBurstRule) IsEnabled() bool {
	return r.enabled
}

func (r *SourceBurstRule) Evaluate(ctx context.Context, event *model.ThreatEvent) *model.Alert {
	if !r.enabled || event == nil || event.SourceIP == "" {
		return nil
	}

	now := r.now()
	cutoff := now.Add(-r.window)

	r.mu.Lock()
	defer r.mu.Unlock()

	stamps := r.seen[event.SourceIP]
	kept := stamps[:0]
	for _, ts := range stamps {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	kept = append(kept, now)
	r.seen[event.SourceIP] = kept

	r.prune(cutoff)

	if len(kept) < r.threshold {
		return nil
	}
	if last, ok := r.lastAlert[event.SourceIP]; ok && now.Sub(last) < r.window {
		return nil
	}
	r.lastAlert[event.SourceIP] = now

	alert := &model.Alert{
		Type:      r.name,
		Severity:  r.severity,
		SourceIP:  event.SourceIP,
		Message:   fmt.Sprintf("Source %s produced %d threat events within %s (latest: %s)", event.SourceIP, len(kept), r.window, event.Type),
		Timestamp: now,
		Event:     event,
	}
	r.logger.Warnf("Source Burst Rule Alert: %s", alert.Message)
	return alert
}

// prune drops sources with no events in the window. Caller holds mu.
func (r *SourceBurstRule) prune(cutoff time.Time) {
	for ip, stamps := range r.seen {
		if len(stamps) == 0 || !stamps[len(stamps)-1].After(cutoff) {
			delete(r.seen, ip)
		}
	}
	for ip, ts := range r.lastAlert {
		if !ts.After(cutoff) {
			delete(r.lastAlert, ip)
		}
	}
}
