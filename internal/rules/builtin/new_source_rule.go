package builtin

import (
	"context"
	"fmt"
	"sync"
	"time"

	"sentinel-guard/internal/ids"
	"sentinel-guard/internal/model"

	"github.com/sirupsen/logrus"
)

// NewSourceRule detects the first attack from a source against a target
type NewSourceRule struct {
	name        string
	enabled     bool
	severity    string
	knownSource map[string]map[string]bool // targetIP -> sourceIP -> true
	logger      *logrus.Logger
	mu          sync.RWMutex
}

// NewNewSourceRule creates a new source rule
func NewNewSourceRule(enabled bool, severity string, logger *logrus.Logger) *NewSourceRule {
	return &NewSourceRule{
		name:        "new_source",
		enabled:     enabled,
		severity:    severity,
		knownSource: make(map[string]map[string]bool),
		logger:      logger,
	}
}

// Name returns the rule name
func (r *NewSourceRule) Name() string {
	return r.name
}

// IsEnabled returns whether the rule is enabled
func (r *NewSourceRule) IsEnabled() bool {
	return r.enabled
}

// Evaluate evaluates the rule against an event
func (r *NewSourceRule) Evaluate(ctx context.Context, event *model.ThreatEvent) *model.Alert {
	if !r.enabled || event == nil {
		return nil
	}
	// placeholder addresses mean the scope was unparseable
	if event.SourceIP == ids.UnknownIP || event.TargetIP == ids.UnknownIP {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.knownSource[event.TargetIP] == nil {
		r.knownSource[event.TargetIP] = make(map[string]bool)
	}

	if r.knownSource[event.TargetIP][event.SourceIP] {
		return nil
	}
	r.knownSource[event.TargetIP][event.SourceIP] = true

	alert := &model.Alert{
		Type:      r.name,
		Severity:  r.severity,
		SourceIP:  event.SourceIP,
		Message:   fmt.Sprintf("New attack source for %s: %s (%s)", event.TargetIP, event.SourceIP, event.Type),
		Timestamp: time.Now(),
		Event:     event,
	}

	r.logger.Infof("New Source Rule Alert: %s", alert.Message)
	return alert
}

// Known reports how many distinct sources have been seen for target.
func (r *NewSourceRule) Known(target string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.knownSource[target])
}
