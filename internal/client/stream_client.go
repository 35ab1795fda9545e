package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"sentinel-guard/internal/ids"
	"sentinel-guard/internal/model"
	"sentinel-guard/internal/session"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	DefaultStreamURL         = "ws://localhost:8081/ids/stream"
	DefaultReconnectInterval = 3 * time.Second
	DefaultHandshakeTimeout  = 10 * time.Second
	DefaultPingInterval      = 30 * time.Second
)

var ErrAlreadyConnected = errors.New("stream client already running")

type StreamState int32

const (
	StateDisconnected StreamState = iota
	StateConnecting
	StateConnected
	StateClosing
)

func (s StreamState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateClosing:
		return "closing"
	default:
		return "unknown"
	}
}

type StreamConfig struct {
	URL               string
	ReconnectInterval time.Duration
	HandshakeTimeout  time.Duration
	// PingInterval of zero disables keepalive pings and read deadlines.
	PingInterval time.Duration
}

// EventHandler receives decoded threat events. StatusHandler receives true
// when a connection opens and false when it closes. Both are called from
// the client's connection goroutine and may call Disconnect.
type (
	EventHandler  func(model.ThreatEvent)
	StatusHandler func(connected bool)
)

// StreamClient keeps one WebSocket connection to the IDS stream open,
// reconnecting after a fixed delay until Disconnect is called.
type StreamClient struct {
	cfg     StreamConfig
	session *session.Session
	logger  *logrus.Logger
	metrics *StreamMetrics
	decoder *ids.Decoder
	dialer  *websocket.Dialer

	mu     sync.Mutex
	state  StreamState
	cancel context.CancelFunc
	done   chan struct{}

	attempts atomic.Int64
	// callbacks counts handlers currently running on the loop goroutine.
	callbacks atomic.Int32

	onDecodeError func(error)
	onReconnect   func()
}

func NewStreamClient(cfg StreamConfig, sess *session.Session, logger *logrus.Logger, metrics *StreamMetrics) *StreamClient {
	if cfg.URL == "" {
		cfg.URL = DefaultStreamURL
	}
	if cfg.ReconnectInterval <= 0 {
		cfg.ReconnectInterval = DefaultReconnectInterval
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if sess == nil {
		sess = session.New()
	}
	return &StreamClient{
		cfg:     cfg,
		session: sess,
		logger:  logger,
		metrics: metrics,
		decoder: &ids.Decoder{},
		dialer: &websocket.Dialer{
			HandshakeTimeout: cfg.HandshakeTimeout,
		},
		state: StateDisconnected,
	}
}

// OnDecodeError registers a callback for frames that fail to decode. Call
// before Connect.
func (c *StreamClient) OnDecodeError(fn func(error)) {
	c.onDecodeError = fn
}

// OnReconnect registers a callback run each time a reconnect is scheduled.
// Call before Connect.
func (c *StreamClient) OnReconnect(fn func()) {
	c.onReconnect = fn
}

func (c *StreamClient) State() StreamState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Attempts returns how many connection attempts have been started.
func (c *StreamClient) Attempts() int64 {
	return c.attempts.Load()
}

func (c *StreamClient) setState(state StreamState) {
	c.mu.Lock()
	// Closing is only left by the loop exiting.
	if c.state == StateClosing && state != StateDisconnected {
		c.mu.Unlock()
		return
	}
	c.state = state
	c.mu.Unlock()
	c.metrics.SetState(state)
}

// Connect starts the connection loop in the background. It returns
// ErrAlreadyConnected if the loop is already running.
func (c *StreamClient) Connect(ctx context.Context, onEvent EventHandler, onStatus StatusHandler) error {
	c.mu.Lock()
	if c.done != nil {
		c.mu.Unlock()
		return ErrAlreadyConnected
	}
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	c.cancel = cancel
	c.done = done
	c.mu.Unlock()

	if onEvent == nil {
		onEvent = func(model.ThreatEvent) {}
	}
	if onStatus == nil {
		onStatus = func(bool) {}
	}

	c.logger.Infof("Connecting to IDS stream: %s", c.cfg.URL)
	go func() {
		defer close(done)
		defer cancel()
		c.loop(ctx, onEvent, onStatus)
		c.mu.Lock()
		c.cancel = nil
		c.done = nil
		c.mu.Unlock()
		c.setState(StateDisconnected)
	}()
	return nil
}

// Disconnect stops reconnecting, closes the socket and waits for the
// connection loop to exit. It is safe to call when not connected. Called
// from a handler, it returns without waiting and the loop exits once the
// handler returns.
func (c *StreamClient) Disconnect() {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	if cancel == nil {
		c.mu.Unlock()
		return
	}
	c.state = StateClosing
	c.mu.Unlock()
	c.metrics.SetState(StateClosing)

	cancel()
	if c.callbacks.Load() == 0 {
		<-done
	}
	c.logger.Info("IDS stream disconnected")
}

// invoke runs a user handler, marking the loop as busy so a re-entrant
// Disconnect does not wait on itself.
func (c *StreamClient) invoke(fn func()) {
	c.callbacks.Add(1)
	defer c.callbacks.Add(-1)
	fn()
}

func (c *StreamClient) loop(ctx context.Context, onEvent EventHandler, onStatus StatusHandler) {
	for {
		if ctx.Err() != nil {
			return
		}

		c.setState(StateConnecting)
		c.attempts.Add(1)

		if err := c.connectOnce(ctx, onEvent, onStatus); err != nil && ctx.Err() == nil {
			c.logger.Warnf("IDS stream connection error: %v", err)
		}

		c.setState(StateDisconnected)
		c.invoke(func() { onStatus(false) })

		if ctx.Err() != nil {
			return
		}

		c.metrics.RecordReconnect()
		if c.onReconnect != nil {
			c.invoke(c.onReconnect)
		}
		c.logger.Infof("Reconnecting to IDS stream in %s", c.cfg.ReconnectInterval)

		timer := time.NewTimer(c.cfg.ReconnectInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// connectOnce dials, authenticates and reads until the connection fails.
func (c *StreamClient) connectOnce(ctx context.Context, onEvent EventHandler, onStatus StatusHandler) error {
	conn, _, err := c.dialer.DialContext(ctx, c.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("failed to dial %s: %w", c.cfg.URL, err)
	}

	var closeOnce sync.Once
	closeConn := func() {
		closeOnce.Do(func() {
			deadline := time.Now().Add(time.Second)
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
			conn.Close()
		})
	}
	stop := context.AfterFunc(ctx, closeConn)
	defer func() {
		stop()
		closeConn()
	}()

	auth := model.AuthMessage{Type: model.AuthMessageType, Token: c.session.Token()}
	conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	if err := conn.WriteJSON(auth); err != nil {
		return fmt.Errorf("failed to send auth message: %w", err)
	}
	conn.SetWriteDeadline(time.Time{})

	c.setState(StateConnected)
	c.logger.Info("IDS stream connected, live feed enabled")
	c.invoke(func() { onStatus(true) })
	if ctx.Err() != nil {
		return nil
	}

	if c.cfg.PingInterval > 0 {
		readWait := 2 * c.cfg.PingInterval
		conn.SetReadDeadline(time.Now().Add(readWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(readWait))
		})

		pingDone := make(chan struct{})
		defer close(pingDone)
		go c.pingLoop(conn, pingDone)
	}

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Infof("IDS stream closed by server: %v", err)
				return nil
			}
			return fmt.Errorf("read failed: %w", err)
		}
		if messageType != websocket.TextMessage {
			continue
		}

		event, err := c.decoder.Decode(data)
		if err != nil {
			c.metrics.RecordDecodeFailure()
			if c.onDecodeError != nil {
				c.invoke(func() { c.onDecodeError(err) })
			}
			c.logger.Warnf("Dropping undecodable IDS frame: %v", err)
			continue
		}
		c.metrics.RecordEvent(event)
		c.invoke(func() { onEvent(event) })
	}
}

func (c *StreamClient) pingLoop(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(10*time.Second)); err != nil {
				c.logger.Debugf("Ping failed: %v", err)
				return
			}
		}
	}
}
