package poller

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

type countingRecorder struct {
	mu     sync.Mutex
	calls  int
	errors int
}

func (r *countingRecorder) RecordPoll(_ string, _ float64, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if err != nil {
		r.errors++
	}
}

func TestPoller_ReplacesSnapshot(t *testing.T) {
	var n atomic.Int64
	p := New("counter", 20*time.Millisecond, func(ctx context.Context) (int64, error) {
		return n.Add(1), nil
	}, quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	require.Eventually(t, func() bool {
		v, _, ok := p.Snapshot()
		return ok && v >= 3
	}, 2*time.Second, 5*time.Millisecond)
}

func TestPoller_KeepsLastSnapshotOnError(t *testing.T) {
	fail := errors.New("backend down")
	calls := 0
	p := New("flaky", time.Hour, func(ctx context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "first", nil
		}
		return "", fail
	}, quietLogger())

	rec := &countingRecorder{}
	p.WithRecorder(rec)

	require.NoError(t, p.Refresh(context.Background()))
	require.ErrorIs(t, p.Refresh(context.Background()), fail)

	v, updated, ok := p.Snapshot()
	assert.True(t, ok)
	assert.Equal(t, "first", v)
	assert.False(t, updated.IsZero())
	assert.ErrorIs(t, p.LastError(), fail)
	assert.Equal(t, 2, rec.calls)
	assert.Equal(t, 1, rec.errors)
}

func TestPoller_NeverOverlaps(t *testing.T) {
	var running, maxRunning atomic.Int64
	p := New("slow", 5*time.Millisecond, func(ctx context.Context) (int, error) {
		cur := running.Add(1)
		for {
			prev := maxRunning.Load()
			if cur <= prev || maxRunning.CompareAndSwap(prev, cur) {
				break
			}
		}
		time.Sleep(30 * time.Millisecond)
		running.Add(-1)
		return 0, nil
	}, quietLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	p.Run(ctx)

	assert.EqualValues(t, 1, maxRunning.Load())
}

func TestPoller_Subscribe(t *testing.T) {
	p := New("sub", time.Hour, func(ctx context.Context) (string, error) {
		return "snap", nil
	}, quietLogger())
	ch := p.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	select {
	case v := <-ch:
		assert.Equal(t, "snap", v)
	case <-time.After(time.Second):
		t.Fatal("no snapshot delivered")
	}

	cancel()
	<-done
	_, open := <-ch
	assert.False(t, open)
}

func TestPoller_IndependentPollers(t *testing.T) {
	var a, b atomic.Int64
	pa := New("a", 10*time.Millisecond, func(ctx context.Context) (int64, error) { return a.Add(1), nil }, quietLogger())
	pb := New("b", 10*time.Millisecond, func(ctx context.Context) (int64, error) {
		b.Add(1)
		return 0, errors.New("always failing")
	}, quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go pa.Run(ctx)
	go pb.Run(ctx)

	require.Eventually(t, func() bool { return a.Load() >= 3 && b.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
	_, _, ok := pb.Snapshot()
	assert.False(t, ok)
}
