package main

import (
	"context"
	"io"
	"testing"

	"sentinel-guard/internal/model"
	"sentinel-guard/internal/rules"
	"sentinel-guard/internal/utils"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestRegisterBuiltinRules(t *testing.T) {
	config := utils.GetDefaultConfig()
	config.Rules = []model.Rule{
		{Name: "high_risk", Enabled: true, Severity: "HIGH", Thresholds: map[string]interface{}{"min_risk": "medium"}},
		{Name: "source_burst", Enabled: true, Severity: "MEDIUM", Thresholds: map[string]interface{}{"count": 2, "window_seconds": 30}},
		{Name: "attack_watchlist", Enabled: true, Severity: "LOW", Keywords: []string{"sql"}},
		{Name: "new_source", Enabled: false, Severity: "LOW"},
		{Name: "event_spike", Enabled: true, Severity: "HIGH"},
		{Name: "made_up", Enabled: true},
	}

	engine := rules.NewEngine(quietLogger())
	registerBuiltinRules(engine, config, quietLogger(), nil)

	var names []string
	for _, r := range engine.Rules() {
		names = append(names, r.Name())
	}
	assert.Equal(t, []string{"high_risk", "source_burst", "attack_watchlist"}, names)

	event := &model.ThreatEvent{ID: "1", Type: "SQL Injection", SourceIP: "10.0.0.1", TargetIP: "10.0.0.2", RiskLevel: model.RiskMedium}
	first := engine.Evaluate(context.Background(), event)
	require.Len(t, first, 2)
	second := engine.Evaluate(context.Background(), event)
	assert.Len(t, second, 3)
}

func TestRegisterAlertNotifiers_Disabled(t *testing.T) {
	config := utils.GetDefaultConfig()
	config.Alerting.Enabled = false

	engine := rules.NewEngine(quietLogger())
	closeAll := registerAlertNotifiers(engine, config, quietLogger())
	closeAll()

	engine.EmitAlert(model.Alert{Type: "high_risk", Severity: "HIGH"})
	select {
	case a := <-engine.GetAlertChannel():
		assert.Equal(t, "high_risk", a.Type)
	default:
		t.Fatal("alert was not emitted")
	}
}
