package builtin

import (
	"context"
	"fmt"
	"strings"
	"time"

	"sentinel-guard/internal/model"

	"github.com/sirupsen/logrus"
)

// AttackWatchlistRule fires when the attack type contains one of the
// watched keywords, case-insensitively.
type AttackWatchlistRule struct {
	name     string
	enabled  bool
	severity string
	keywords []string
	logger   *logrus.Logger
}

func NewAttackWatchlistRule(enabled bool, severity string, keywords []string, logger *logrus.Logger) *AttackWatchlistRule {
	normalized := make([]string, 0, len(keywords))
	for _, k := range keywords {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			normalized = append(normalized, k)
		}
	}
	return &AttackWatchlistRule{
		name:     "attack_watchlist",
		enabled:  enabled,
		severity: severity,
		keywords: normalized,
		logger:   logger,
	}
}

func (r *AttackWatchlistRule) Name() string {
	return r.name
}

func (r *AttackWatchlistRule) IsEnabled() bool {
	return r.enabled && len(r.keywords) > 0
}

func (r *AttackWatchlistRule) Evaluate(ctx context.Context, event *model.ThreatEvent) *model.Alert {
	if !r.IsEnabled() || event == nil {
		return nil
	}

	attack := strings.ToLower(event.Type)
	for _, keyword := range r.keywords {
		if !strings.Contains(attack, keyword) {
			continue
		}
		alert := &model.Alert{
			Type:      r.name,
			Severity:  r.severity,
			SourceIP:  event.SourceIP,
			Message:   fmt.Sprintf("Watched attack %q from %s against %s", event.Type, event.SourceIP, event.TargetIP),
			Timestamp: time.Now(),
			Event:     event,
		}
		r.logger.Debugf("Attack Watchlist Rule Alert: %s (keyword %s)", alert.Message, keyword)
		return alert
	}
	return nil
}
