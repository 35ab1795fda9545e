package poller

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Intervals used by the dashboard views.
const (
	HostStatusInterval = 3 * time.Second
	ProcessInterval    = 5 * time.Second
	DashboardInterval  = 10 * time.Second
	TracingInterval    = 10 * time.Second
)

// FetchFunc loads one snapshot.
type FetchFunc[T any] func(ctx context.Context) (T, error)

// Recorder observes every fetch. *client.StreamMetrics satisfies it.
type Recorder interface {
	RecordPoll(poller string, seconds float64, err error)
}

// Poller fetches on a fixed interval and keeps the latest successful
// snapshot. Fetches are serialized rather than fired on every tick: ticks
// that arrive while a fetch is running are dropped, so a slow backend sees
// at most one request in flight per poller.
type Poller[T any] struct {
	name     string
	interval time.Duration
	fetch    FetchFunc[T]
	logger   *logrus.Logger
	recorder Recorder

	mu       sync.RWMutex
	snapshot T
	updated  time.Time
	lastErr  error
	hasValue bool

	subMu       sync.Mutex
	subscribers []chan T
}

func New[T any](name string, interval time.Duration, fetch FetchFunc[T], logger *logrus.Logger) *Poller[T] {
	return &Poller[T]{
		name:     name,
		interval: interval,
		fetch:    fetch,
		logger:   logger,
	}
}

// WithRecorder attaches a fetch observer.
func (p *Poller[T]) WithRecorder(r Recorder) *Poller[T] {
	p.recorder = r
	return p
}

func (p *Poller[T]) Name() string {
	return p.name
}

// Snapshot returns the latest value, when it was fetched and whether any
// fetch has succeeded yet.
func (p *Poller[T]) Snapshot() (T, time.Time, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.snapshot, p.updated, p.hasValue
}

func (p *Poller[T]) LastError() error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastErr
}

// Subscribe returns a channel receiving each new snapshot. Slow readers
// miss updates rather than block the poller.
func (p *Poller[T]) Subscribe() <-chan T {
	ch := make(chan T, 1)
	p.subMu.Lock()
	p.subscribers = append(p.subscribers, ch)
	p.subMu.Unlock()
	return ch
}

// Run fetches immediately and then on every tick until ctx is done.
func (p *Poller[T]) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.Refresh(ctx)
	for {
		select {
		case <-ctx.Done():
			p.closeSubscribers()
			return
		case <-ticker.C:
			p.Refresh(ctx)
		}
	}
}

// Refresh performs one fetch and replaces the snapshot on success. On
// failure the previous snapshot is kept.
func (p *Poller[T]) Refresh(ctx context.Context) error {
	start := time.Now()
	value, err := p.fetch(ctx)
	if p.recorder != nil {
		p.recorder.RecordPoll(p.name, time.Since(start).Seconds(), err)
	}

	p.mu.Lock()
	p.lastErr = err
	if err == nil {
		p.snapshot = value
		p.updated = time.Now()
		p.hasValue = true
	}
	p.mu.Unlock()

	if err != nil {
		if ctx.Err() == nil && p.logger != nil {
			p.logger.Warnf("Poller %s fetch failed: %v", p.name, err)
		}
		return err
	}

	p.subMu.Lock()
	for _, ch := range p.subscribers {
		select {
		case ch <- value:
		default:
		}
	}
	p.subMu.Unlock()
	return nil
}

func (p *Poller[T]) closeSubscribers() {
	p.subMu.Lock()
	defer p.subMu.Unlock()
	for _, ch := range p.subscribers {
		close(ch)
	}
	p.subscribers = nil
}
