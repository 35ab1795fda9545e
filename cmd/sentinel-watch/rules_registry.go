package main

import (
	"time"

	"sentinel-guard/internal/client"
	"sentinel-guard/internal/model"
	"sentinel-guard/internal/rules"
	"sentinel-guard/internal/rules/builtin"
	"sentinel-guard/internal/utils"

	"github.com/sirupsen/logrus"
)

// registerBuiltinRules registers the enabled rules from the YAML rules list.
// event_spike needs Prometheus and is skipped without it.
func registerBuiltinRules(engine *rules.Engine, config *utils.Config, logger *logrus.Logger, promClient *client.PrometheusClient) {
	for _, ruleConfig := range config.Rules {
		if !ruleConfig.Enabled {
			continue
		}

		switch ruleConfig.Name {
		case "high_risk":
			level, ok := model.ParseRiskLevel(rules.StringThreshold(ruleConfig, "min_risk", string(model.RiskHigh)))
			if !ok {
				logger.Warnf("Rule %s: unknown min_risk, using High", ruleConfig.Name)
				level = model.RiskHigh
			}
			engine.RegisterRule(builtin.NewHighRiskRule(true, ruleConfig.Severity, level, logger))

		case "source_burst":
			count := int(rules.Threshold(ruleConfig, 5, "count"))
			window := time.Duration(rules.Threshold(ruleConfig, 60, "window_seconds")) * time.Second
			engine.RegisterRule(builtin.NewSourceBurstRule(true, ruleConfig.Severity, count, window, logger))
			logger.Infof("Rule %s: %d events per %s", ruleConfig.Name, count, window)

		case "attack_watchlist":
			engine.RegisterRule(builtin.NewAttackWatchlistRule(true, ruleConfig.Severity, ruleConfig.Keywords, logger))

		case "new_source":
			engine.RegisterRule(builtin.NewNewSourceRule(true, ruleConfig.Severity, logger))

		case "event_spike":
			if promClient == nil {
				logger.Warnf("Rule %s needs prometheus.url, skipping", ruleConfig.Name)
				continue
			}
			multiplier := rules.Threshold(ruleConfig, 3.0, "multiplier")
			spike := builtin.NewEventSpikeRule(true, ruleConfig.Severity, multiplier, promClient, logger)
			if seconds := rules.Threshold(ruleConfig, 0, "interval_seconds"); seconds > 0 {
				spike.SetInterval(time.Duration(seconds) * time.Second)
			}
			engine.RegisterRule(spike)
			logger.Infof("Rule %s: threshold %.2fx", ruleConfig.Name, multiplier)

		default:
			logger.Warnf("Unknown rule type: %s", ruleConfig.Name)
		}
	}
}
