package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"sentinel-guard/internal/model"
	"sentinel-guard/internal/session"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeIDS struct {
	srv         *httptest.Server
	connections atomic.Int64
	mu          sync.Mutex
	auths       []model.AuthMessage
	// behaviour for each accepted connection
	serve func(conn *websocket.Conn)
}

func newFakeIDS(t *testing.T, serve func(conn *websocket.Conn)) *fakeIDS {
	t.Helper()
	f := &fakeIDS{serve: serve}
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		f.connections.Add(1)

		var auth model.AuthMessage
		if err := conn.ReadJSON(&auth); err != nil {
			return
		}
		f.mu.Lock()
		f.auths = append(f.auths, auth)
		f.mu.Unlock()

		f.serve(conn)
	}))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeIDS) url() string {
	return "ws" + strings.TrimPrefix(f.srv.URL, "http")
}

func newTestStream(url string, sess *session.Session, metrics *StreamMetrics) *StreamClient {
	return NewStreamClient(StreamConfig{
		URL:               url,
		ReconnectInterval: 100 * time.Millisecond,
		HandshakeTimeout:  time.Second,
	}, sess, quietLogger(), metrics)
}

func gatherValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)

	var total float64
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if m.GetCounter() != nil {
				total += m.GetCounter().GetValue()
			}
			if m.GetGauge() != nil {
				total += m.GetGauge().GetValue()
			}
		}
	}
	return total
}

// holdOpen keeps the connection until the client goes away.
func holdOpen(conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func TestStreamClient_AuthAndDecode(t *testing.T) {
	ids := newFakeIDS(t, func(conn *websocket.Conn) {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`not json`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"id":1,"threatId":"T-9","threatLevel":2,"impactScope":"9.9.9.9:1 -> 10.0.0.1:22 | Brute Force","occurTime":"2025-02-02T02:02:02"}`))
		holdOpen(conn)
	})

	sess := session.New()
	require.NoError(t, sess.Set("tok", nil))
	reg := prometheus.NewRegistry()
	metrics := NewStreamMetrics(reg)
	c := newTestStream(ids.url(), sess, metrics)

	events := make(chan model.ThreatEvent, 4)
	var statuses []bool
	var statusMu sync.Mutex
	require.NoError(t, c.Connect(context.Background(), func(e model.ThreatEvent) { events <- e }, func(up bool) {
		statusMu.Lock()
		statuses = append(statuses, up)
		statusMu.Unlock()
	}))

	select {
	case e := <-events:
		assert.Equal(t, "T-9", e.ID)
		assert.Equal(t, "Brute Force", e.Type)
		assert.Equal(t, "9.9.9.9", e.SourceIP)
		assert.Equal(t, model.RiskMedium, e.RiskLevel)
	case <-time.After(3 * time.Second):
		t.Fatal("no event received")
	}

	assert.Equal(t, StateConnected, c.State())
	assert.Equal(t, float64(1), gatherValue(t, reg, "sentinel_ids_decode_failures_total"))

	c.Disconnect()
	assert.Equal(t, StateDisconnected, c.State())

	ids.mu.Lock()
	require.Len(t, ids.auths, 1)
	assert.Equal(t, model.AuthMessage{Type: "AUTH", Token: "tok"}, ids.auths[0])
	ids.mu.Unlock()

	statusMu.Lock()
	assert.Equal(t, []bool{true, false}, statuses)
	statusMu.Unlock()
}

func TestStreamClient_ReconnectsAfterServerClose(t *testing.T) {
	ids := newFakeIDS(t, func(conn *websocket.Conn) {
		// close right away with a normal closure
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))
	})

	c := newTestStream(ids.url(), nil, nil)
	require.NoError(t, c.Connect(context.Background(), nil, nil))
	defer c.Disconnect()

	require.Eventually(t, func() bool { return ids.connections.Load() >= 3 }, 3*time.Second, 10*time.Millisecond)
}

func TestStreamClient_WaitsFixedDelay(t *testing.T) {
	var mu sync.Mutex
	var stamps []time.Time
	ids := newFakeIDS(t, func(conn *websocket.Conn) {
		mu.Lock()
		stamps = append(stamps, time.Now())
		mu.Unlock()
	})

	c := newTestStream(ids.url(), nil, nil)
	require.NoError(t, c.Connect(context.Background(), nil, nil))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(stamps) >= 2
	}, 3*time.Second, 10*time.Millisecond)
	c.Disconnect()

	mu.Lock()
	defer mu.Unlock()
	assert.GreaterOrEqual(t, stamps[1].Sub(stamps[0]), 90*time.Millisecond)
}

func TestStreamClient_ReconnectsWhenDialFails(t *testing.T) {
	// nothing listens here once the server is closed
	srv := httptest.NewServer(http.NotFoundHandler())
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	srv.Close()

	c := newTestStream(url, nil, nil)
	require.NoError(t, c.Connect(context.Background(), nil, nil))
	defer c.Disconnect()

	require.Eventually(t, func() bool { return c.Attempts() >= 3 }, 3*time.Second, 10*time.Millisecond)
}

func TestStreamClient_NoReconnectAfterDisconnect(t *testing.T) {
	ids := newFakeIDS(t, func(conn *websocket.Conn) {})

	c := newTestStream(ids.url(), nil, nil)
	require.NoError(t, c.Connect(context.Background(), nil, nil))

	require.Eventually(t, func() bool { return c.Attempts() >= 1 }, 3*time.Second, 5*time.Millisecond)
	// Disconnect while a reconnect may be pending.
	c.Disconnect()
	attempts := c.Attempts()
	time.Sleep(50 * time.Millisecond)
	connections := ids.connections.Load()

	time.Sleep(400 * time.Millisecond)
	assert.Equal(t, attempts, c.Attempts())
	assert.Equal(t, connections, ids.connections.Load())
	assert.Equal(t, StateDisconnected, c.State())
}

func TestStreamClient_ContextCancelStops(t *testing.T) {
	ids := newFakeIDS(t, holdOpen)

	c := newTestStream(ids.url(), nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, c.Connect(ctx, nil, nil))
	require.Eventually(t, func() bool { return c.State() == StateConnected }, 3*time.Second, 5*time.Millisecond)

	cancel()
	require.Eventually(t, func() bool { return c.State() == StateDisconnected }, 3*time.Second, 5*time.Millisecond)
	assert.EqualValues(t, 1, c.Attempts())
}

func TestStreamClient_ConnectTwice(t *testing.T) {
	ids := newFakeIDS(t, holdOpen)

	c := newTestStream(ids.url(), nil, nil)
	require.NoError(t, c.Connect(context.Background(), nil, nil))
	defer c.Disconnect()

	assert.ErrorIs(t, c.Connect(context.Background(), nil, nil), ErrAlreadyConnected)
}

func TestStreamClient_DisconnectIdle(t *testing.T) {
	c := newTestStream(DefaultStreamURL, nil, nil)
	assert.NotPanics(t, c.Disconnect)
	assert.Equal(t, StateDisconnected, c.State())
}

func TestStreamClient_DisconnectFromHandler(t *testing.T) {
	ids := newFakeIDS(t, func(conn *websocket.Conn) {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"id":1,"threatId":"T-1","threatLevel":3,"impactScope":"1.1.1.1:1 -> 10.0.0.1:80 | DDoS","occurTime":"2025-02-02T02:02:02"}`))
		holdOpen(conn)
	})

	c := newTestStream(ids.url(), nil, nil)
	returned := make(chan struct{})
	require.NoError(t, c.Connect(context.Background(), func(model.ThreatEvent) {
		c.Disconnect()
		close(returned)
	}, nil))

	select {
	case <-returned:
	case <-time.After(3 * time.Second):
		t.Fatalf("Disconnect inside the event handler did not return; state=%s", c.State())
	}

	require.Eventually(t, func() bool { return c.State() == StateDisconnected }, 3*time.Second, 5*time.Millisecond)
	time.Sleep(300 * time.Millisecond)
	assert.EqualValues(t, 1, c.Attempts())
	assert.EqualValues(t, 1, ids.connections.Load())
}

func TestStreamClient_DisconnectFromStatusHandler(t *testing.T) {
	ids := newFakeIDS(t, holdOpen)

	c := newTestStream(ids.url(), nil, nil)
	require.NoError(t, c.Connect(context.Background(), nil, func(up bool) {
		if up {
			c.Disconnect()
		}
	}))

	require.Eventually(t, func() bool { return c.State() == StateDisconnected && c.Attempts() == 1 }, 3*time.Second, 5*time.Millisecond)
	time.Sleep(300 * time.Millisecond)
	assert.EqualValues(t, 1, c.Attempts())
}
