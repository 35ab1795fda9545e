package stream

import (
	"context"
	"math/rand"
	"sync/atomic"
	"time"

	"sentinel-guard/api/internal/storage"
	"sentinel-guard/internal/model"

	"github.com/sirupsen/logrus"
)

// Sink receives each generated alert after it has been stored.
type Sink interface {
	Broadcast(alert model.ThreatAlert)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(alert model.ThreatAlert)

func (f SinkFunc) Broadcast(alert model.ThreatAlert) {
	f(alert)
}

// Generator produces demo IDS alerts at a fixed interval, stores them and
// pushes them to the stream.
type Generator struct {
	store    *storage.Storage
	sink     Sink
	interval time.Duration
	rand     *rand.Rand
	logger   *logrus.Logger
	running  atomic.Bool
	emitted  atomic.Int64
}

func NewGenerator(store *storage.Storage, sink Sink, interval time.Duration, seed int64, logger *logrus.Logger) *Generator {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &Generator{
		store:    store,
		sink:     sink,
		interval: interval,
		rand:     rand.New(rand.NewSource(seed)),
		logger:   logger,
	}
}

// Run emits alerts until ctx is cancelled.
func (g *Generator) Run(ctx context.Context) {
	ticker := time.NewTicker(g.interval)
	defer ticker.Stop()

	g.running.Store(true)
	defer g.running.Store(false)
	g.logger.Infof("Mock IDS generator started (interval: %v)", g.interval)

	for {
		select {
		case <-ctx.Done():
			g.logger.Info("Mock IDS generator stopped")
			return
		case <-ticker.C:
			g.Emit()
		}
	}
}

// Emit stores and broadcasts a single random alert.
func (g *Generator) Emit() model.ThreatAlert {
	alert := g.store.Ingest(storage.RandomAlert(g.rand))
	if g.sink != nil {
		g.sink.Broadcast(alert)
	}
	g.emitted.Add(1)
	g.logger.Debugf("Generated alert %s: %s", alert.ThreatID, alert.ImpactScope)
	return alert
}

func (g *Generator) Running() bool {
	return g.running.Load()
}

func (g *Generator) Emitted() int64 {
	return g.emitted.Load()
}
