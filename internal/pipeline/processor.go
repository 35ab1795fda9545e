package pipeline

import (
	"context"
	"strings"
	"sync"
	"time"

	"sentinel-guard/internal/ids"
	"sentinel-guard/internal/model"
	"sentinel-guard/internal/rules"
)

// Processor receives threat events, normalizes them, evaluates rules and
// keeps running stream statistics.
type Processor struct {
	engine *rules.Engine

	mu    sync.Mutex
	stats model.StreamStats
}

// NewProcessor creates a new processor instance
func NewProcessor(engine *rules.Engine) *Processor {
	return &Processor{
		engine: engine,
		stats:  model.StreamStats{ByRisk: make(map[model.RiskLevel]int64)},
	}
}

// Process normalizes an event and evaluates rules against it. Rules emit
// their alerts through the engine.
func (p *Processor) Process(ctx context.Context, event *model.ThreatEvent) []model.Alert {
	if event == nil {
		return nil
	}

	normalized := p.normalize(*event)

	p.mu.Lock()
	p.stats.TotalEvents++
	p.stats.ByRisk[normalized.RiskLevel]++
	p.stats.LastEvent = time.Now()
	p.mu.Unlock()

	return p.engine.Evaluate(ctx, &normalized)
}

// RecordDecodeFailure counts a frame that never became an event.
func (p *Processor) RecordDecodeFailure() {
	p.mu.Lock()
	p.stats.DecodeFailures++
	p.mu.Unlock()
}

// RecordReconnect counts a stream reconnect.
func (p *Processor) RecordReconnect() {
	p.mu.Lock()
	p.stats.Reconnects++
	p.mu.Unlock()
}

func (p *Processor) Stats() model.StreamStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := p.stats
	out.ByRisk = make(map[model.RiskLevel]int64, len(p.stats.ByRisk))
	for k, v := range p.stats.ByRisk {
		out.ByRisk[k] = v
	}
	return out
}

// normalize trims fields and fills placeholders so rules never see blanks.
func (p *Processor) normalize(event model.ThreatEvent) model.ThreatEvent {
	event.SourceIP = strings.TrimSpace(event.SourceIP)
	event.TargetIP = strings.TrimSpace(event.TargetIP)
	event.Type = strings.TrimSpace(event.Type)

	if event.SourceIP == "" {
		event.SourceIP = ids.UnknownIP
	}
	if event.TargetIP == "" {
		event.TargetIP = ids.UnknownIP
	}
	if event.Type == "" {
		event.Type = ids.UnknownAttack
	}
	if event.RiskLevel.Rank() == 0 {
		event.RiskLevel = model.RiskMedium
	}
	if event.Status == "" {
		event.Status = model.StatusPending
	}
	return event
}
