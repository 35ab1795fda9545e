package builtin

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"sentinel-guard/internal/model"

	prommodel "github.com/prometheus/common/model"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func event(src, dst, attack string, risk model.RiskLevel) *model.ThreatEvent {
	return &model.ThreatEvent{ID: "T", SourceIP: src, TargetIP: dst, Type: attack, RiskLevel: risk, Status: model.StatusPending}
}

func TestHighRiskRule(t *testing.T) {
	ctx := context.Background()
	rule := NewHighRiskRule(true, "HIGH", model.RiskHigh, quietLogger())

	assert.Nil(t, rule.Evaluate(ctx, event("1.1.1.1", "2.2.2.2", "XSS", model.RiskMedium)))

	alert := rule.Evaluate(ctx, event("1.1.1.1", "2.2.2.2", "DDoS", model.RiskHigh))
	require.NotNil(t, alert)
	assert.Equal(t, "high_risk", alert.Type)
	assert.Equal(t, "HIGH", alert.Severity)
	assert.Equal(t, "1.1.1.1", alert.SourceIP)

	medium := NewHighRiskRule(true, "MEDIUM", model.RiskMedium, quietLogger())
	assert.NotNil(t, medium.Evaluate(ctx, event("1.1.1.1", "2.2.2.2", "XSS", model.RiskMedium)))
	assert.Nil(t, medium.Evaluate(ctx, event("1.1.1.1", "2.2.2.2", "XSS", model.RiskLow)))

	disabled := NewHighRiskRule(false, "HIGH", model.RiskLow, quietLogger())
	assert.Nil(t, disabled.Evaluate(ctx, event("1.1.1.1", "2.2.2.2", "DDoS", model.RiskHigh)))
}

func TestSourceBurstRule(t *testing.T) {
	ctx := context.Background()
	rule := NewSourceBurstRule(true, "HIGH", 3, time.Minute, quietLogger())
	clock := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	rule.now = func() time.Time { return clock }

	e := event("6.6.6.6", "10.0.0.1", "Port Scan", model.RiskLow)
	assert.Nil(t, rule.Evaluate(ctx, e))
	clock = clock.Add(10 * time.Second)
	assert.Nil(t, rule.Evaluate(ctx, e))
	// another source does not count towards the burst
	assert.Nil(t, rule.Evaluate(ctx, event("7.7.7.7", "10.0.0.1", "Port Scan", model.RiskLow)))

	clock = clock.Add(10 * time.Second)
	alert := rule.Evaluate(ctx, e)
	require.NotNil(t, alert)
	assert.Equal(t, "source_burst", alert.Type)
	assert.Equal(t, "6.6.6.6", alert.SourceIP)

	// suppressed for the rest of the window
	clock = clock.Add(time.Second)
	assert.Nil(t, rule.Evaluate(ctx, e))
}

func TestSourceBurstRule_WindowExpires(t *testing.T) {
	ctx := context.Background()
	rule := NewSourceBurstRule(true, "HIGH", 2, time.Minute, quietLogger())
	clock := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	rule.now = func() time.Time { return clock }

	e := event("6.6.6.6", "10.0.0.1", "Port Scan", model.RiskLow)
	assert.Nil(t, rule.Evaluate(ctx, e))
	clock = clock.Add(2 * time.Minute)
	assert.Nil(t, rule.Evaluate(ctx, e))
}

func TestAttackWatchlistRule(t *testing.T) {
	ctx := context.Background()
	rule := NewAttackWatchlistRule(true, "MEDIUM", []string{" sql ", "ransom"}, quietLogger())

	assert.NotNil(t, rule.Evaluate(ctx, event("1.1.1.1", "2.2.2.2", "SQL Injection", model.RiskMedium)))
	assert.Nil(t, rule.Evaluate(ctx, event("1.1.1.1", "2.2.2.2", "DDoS", model.RiskHigh)))

	empty := NewAttackWatchlistRule(true, "MEDIUM", nil, quietLogger())
	assert.False(t, empty.IsEnabled())
}

func TestNewSourceRule(t *testing.T) {
	ctx := context.Background()
	rule := NewNewSourceRule(true, "LOW", quietLogger())

	assert.NotNil(t, rule.Evaluate(ctx, event("1.1.1.1", "10.0.0.1", "XSS", model.RiskLow)))
	assert.Nil(t, rule.Evaluate(ctx, event("1.1.1.1", "10.0.0.1", "XSS", model.RiskLow)))
	assert.NotNil(t, rule.Evaluate(ctx, event("1.1.1.1", "10.0.0.2", "XSS", model.RiskLow)))
	assert.Nil(t, rule.Evaluate(ctx, event("0.0.0.0", "10.0.0.2", "XSS", model.RiskLow)))
	assert.Equal(t, 1, rule.Known("10.0.0.1"))
}

type fakeQuery struct {
	rate float64
	err  error
}

func (f *fakeQuery) Query(ctx context.Context, query string, timeout time.Duration) (prommodel.Value, error) {
	if f.err != nil {
		return nil, f.err
	}
	return prommodel.Vector{&prommodel.Sample{Value: prommodel.SampleValue(f.rate)}}, nil
}

func TestEventSpikeRule(t *testing.T) {
	ctx := context.Background()
	q := &fakeQuery{rate: 1}
	rule := NewEventSpikeRule(true, "HIGH", 3, q, quietLogger())
	rule.SetBaseline(1)

	q.rate = 2
	assert.Nil(t, rule.Check(ctx))

	q.rate = 5
	alert := rule.Check(ctx)
	require.NotNil(t, alert)
	assert.Equal(t, "event_spike", alert.Type)

	q.err = errors.New("prometheus down")
	assert.Nil(t, rule.Check(ctx))
}

func TestEventSpikeRule_LearnsBaseline(t *testing.T) {
	ctx := context.Background()
	q := &fakeQuery{rate: 100}
	rule := NewEventSpikeRule(true, "HIGH", 3, q, quietLogger())
	rule.window = 0

	assert.Nil(t, rule.Check(ctx)) // starts learning
	assert.Nil(t, rule.Check(ctx)) // window over, baseline set
	assert.Nil(t, rule.Check(ctx)) // 1x baseline
	q.rate = 1000
	assert.NotNil(t, rule.Check(ctx))
}

func TestEventSpikeRule_DisabledWithoutPrometheus(t *testing.T) {
	rule := NewEventSpikeRule(true, "HIGH", 3, nil, quietLogger())
	assert.False(t, rule.IsEnabled())
}
