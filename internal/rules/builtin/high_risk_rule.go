package builtin

import (
	"context"
	"fmt"
	"time"

	"sentinel-guard/internal/model"

	"github.com/sirupsen/logrus"
)

// HighRiskRule fires for every event at or above a risk level.
type HighRiskRule struct {
	name      string
	enabled   bool
	severity  string
	threshold model.RiskLevel
	logger    *logrus.Logger
}

func NewHighRiskRule(enabled bool, severity string, threshold model.RiskLevel, logger *logrus.Logger) *HighRiskRule {
	if threshold.Rank() == 0 {
		threshold = model.RiskHigh
	}
	return &HighRiskRule{
		name:      "high_risk",
		enabled:   enabled,
		severity:  severity,
		threshold: threshold,
		logger:    logger,
	}
}

func (r *HighRiskRule) Name() string {
	return r.name
}

func (r *HighRiskRule) IsEnabled() bool {
	return r.enabled
}

func (r *HighRiskRule) Evaluate(ctx context.Context, event *model.ThreatEvent) *model.Alert {
	if !r.enabled || event == nil {
		return nil
	}
	if event.RiskLevel.Rank() < r.threshold.Rank() {
		return nil
	}

	alert := &model.Alert{
		Type:      r.name,
		Severity:  r.severity,
		SourceIP:  event.SourceIP,
		Message:   fmt.Sprintf("%s risk %s attack: %s -> %s", event.RiskLevel, event.Type, event.SourceIP, event.TargetIP),
		Timestamp: time.Now(),
		Event:     event,
	}
	r.logger.Debugf("High Risk Rule Alert: %s", alert.Message)
	return alert
}
