package livesync

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/askwave/liveqa/internal/models"
)

// State is the channel connection state.
type State int32

const (
	StateConnecting State = iota
	StateOpen
	StateClosed
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

const (
	defaultPingInterval = 30 * time.Second
	initialBackoff      = time.Second
	maxBackoff          = 30 * time.Second
	channelWriteWait    = 10 * time.Second

	// livenessProbe is sent as a plain text frame while the connection is
	// open; the matching ack must be filtered before JSON decoding.
	livenessProbe = "ping"
	livenessAck   = "pong"

	closeReason = "Component unmounting"
)

// TransportError is returned when the persistent connection cannot be
// established or drops unexpectedly.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }
func (e *TransportError) Unwrap() error { return e.Err }

// Channel maintains one persistent WebSocket connection to an event's live
// update stream. Decoded events are handed to the handler in delivery
// order, on a single goroutine. After an unexpected drop the channel
// redials with capped backoff and invokes the reconnect hook, whose job is
// to resynchronize state that pushes may have skipped while disconnected.
type Channel struct {
	url          string
	handler      func(models.LiveEvent)
	onReconnect  func()
	logger       *zap.Logger
	dialer       *websocket.Dialer
	pingInterval time.Duration
	reconnect    bool

	state     atomic.Int32
	mu        sync.Mutex
	conn      *websocket.Conn
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// ChannelOption configures a Channel.
type ChannelOption func(*Channel)

// WithChannelLogger attaches a logger.
func WithChannelLogger(logger *zap.Logger) ChannelOption {
	return func(c *Channel) { c.logger = logger }
}

// WithPingInterval overrides the liveness probe interval (default 30s).
func WithPingInterval(d time.Duration) ChannelOption {
	return func(c *Channel) { c.pingInterval = d }
}

// WithOnReconnect sets the hook invoked after every successful redial.
func WithOnReconnect(fn func()) ChannelOption {
	return func(c *Channel) { c.onReconnect = fn }
}

// WithoutReconnect disables automatic redialing; the channel fails on the
// first unexpected drop.
func WithoutReconnect() ChannelOption {
	return func(c *Channel) { c.reconnect = false }
}

// NewChannel creates a channel for the given ws:// or wss:// URL. Events are
// delivered to handler.
func NewChannel(url string, handler func(models.LiveEvent), opts ...ChannelOption) *Channel {
	c := &Channel{
		url:          url,
		handler:      handler,
		logger:       zap.NewNop(),
		dialer:       websocket.DefaultDialer,
		pingInterval: defaultPingInterval,
		reconnect:    true,
		done:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start dials the stream and begins consuming in the background. A failed
// first dial is returned to the caller; later drops are handled by the
// reconnect loop. ctx governs the whole connection lifetime including
// redials, so pass one that lives as long as the channel should.
func (c *Channel) Start(ctx context.Context) error {
	c.state.Store(int32(StateConnecting))
	conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		c.state.Store(int32(StateFailed))
		return &TransportError{Op: "dial " + c.url, Err: err}
	}
	c.setConn(conn)
	c.state.Store(int32(StateOpen))
	c.logger.Debug("channel open", zap.String("url", c.url))

	c.wg.Add(1)
	go c.run(ctx, conn)
	return nil
}

// State returns the current connection state.
func (c *Channel) State() State {
	return State(c.state.Load())
}

// Close tears the channel down: the heartbeat stops first, then a normal
// closure frame (1000) goes out. Safe to call more than once.
func (c *Channel) Close() {
	c.closeOnce.Do(func() {
		close(c.done)

		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()
		if conn != nil {
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, closeReason)
			_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(channelWriteWait))
			_ = conn.Close()
		}
		c.state.Store(int32(StateClosed))
	})
	c.wg.Wait()
	// The redial loop may have stored StateConnecting after the store above;
	// with all goroutines drained the final word is Closed.
	c.state.Store(int32(StateClosed))
}

func (c *Channel) run(ctx context.Context, conn *websocket.Conn) {
	defer c.wg.Done()
	for {
		hbStop := make(chan struct{})
		c.wg.Add(1)
		go c.heartbeat(conn, hbStop)

		err := c.readLoop(conn)
		close(hbStop)
		_ = conn.Close()

		if c.closing() {
			return
		}
		if !c.reconnect {
			c.state.Store(int32(StateFailed))
			c.logger.Warn("channel failed", zap.Error(err))
			return
		}
		c.logger.Warn("channel dropped, reconnecting", zap.Error(err))

		next, ok := c.redial(ctx)
		if !ok {
			// A redial abandoned by Close must not overwrite StateClosed.
			if !c.closing() {
				c.state.Store(int32(StateFailed))
			}
			return
		}
		conn = next
		c.setConn(conn)
		c.state.Store(int32(StateOpen))
		c.logger.Info("channel reconnected", zap.String("url", c.url))
		if c.onReconnect != nil {
			c.onReconnect()
		}
	}
}

// readLoop consumes inbound frames until the connection errors. Liveness
// acks never reach the JSON decoder, and a single undecodable message is
// dropped without closing the connection.
func (c *Channel) readLoop(conn *websocket.Conn) error {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		if string(data) == livenessAck {
			continue
		}
		var ev models.LiveEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			c.logger.Warn("drop undecodable message", zap.Error(err), zap.ByteString("payload", data))
			continue
		}
		c.handler(ev)
	}
}

func (c *Channel) heartbeat(conn *websocket.Conn, stop <-chan struct{}) {
	defer c.wg.Done()
	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-c.done:
			return
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(channelWriteWait))
			if err := conn.WriteMessage(websocket.TextMessage, []byte(livenessProbe)); err != nil {
				return
			}
		}
	}
}

func (c *Channel) redial(ctx context.Context) (*websocket.Conn, bool) {
	backoff := initialBackoff
	for {
		c.state.Store(int32(StateConnecting))
		select {
		case <-c.done:
			return nil, false
		case <-ctx.Done():
			return nil, false
		case <-time.After(backoff):
		}
		conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
		if err == nil {
			return conn, true
		}
		c.logger.Warn("redial failed", zap.Error(err), zap.Duration("backoff", backoff))
		if backoff *= 2; backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

func (c *Channel) setConn(conn *websocket.Conn) {
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
}

func (c *Channel) closing() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}
