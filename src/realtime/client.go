// Package realtime implements the chat client transport: one live WebSocket,
// automatic reconnect with capped exponential backoff after unclean closes,
// dispatch of inbound frames by type tag and typed chat command helpers.
//
// A Client is meant to be shared by the whole application. Handlers run on
// the read goroutine of the current socket, one frame at a time, in delivery
// order.
package realtime

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/orchestra-mcp/realtime/config"
	"github.com/orchestra-mcp/realtime/src/metrics"
	"github.com/orchestra-mcp/realtime/src/transport"
	"github.com/orchestra-mcp/realtime/src/types"
	"github.com/rs/zerolog"
)

// Client owns at most one live socket at a time.
type Client struct {
	cfg      *config.ClientConfig
	dialer   types.Dialer
	logger   zerolog.Logger
	clock    Clock
	metrics  *metrics.Client
	onError  func(error)
	registry *Registry

	mu        sync.Mutex
	conn      types.Conn
	connected bool
	state     types.ConnState
	token     string
	endpoint  string
	attempts  int
	timer     Timer
	// epoch changes on every Connect and Disconnect so stale dials, timers
	// and read loops can tell they were superseded.
	epoch uint64
}

// Option customizes a Client.
type Option func(*Client)

// WithClock replaces the timer source.
func WithClock(clock Clock) Option {
	return func(c *Client) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// WithMetrics records client activity on m.
func WithMetrics(m *metrics.Client) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithErrorHandler receives MalformedFrameError and HandlerError values.
func WithErrorHandler(fn func(error)) Option {
	return func(c *Client) {
		c.onError = fn
	}
}

// New creates a Client. A nil cfg uses config.DefaultClientConfig.
func New(cfg *config.ClientConfig, dialer types.Dialer, logger zerolog.Logger, opts ...Option) *Client {
	if cfg == nil {
		cfg = config.DefaultClientConfig()
	}
	c := &Client{
		cfg:      cfg,
		dialer:   dialer,
		logger:   logger.With().Str("component", "realtime-client").Logger(),
		clock:    systemClock{},
		registry: NewRegistry(),
		state:    types.StateIdle,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect opens a socket to endpoint with token as the query credential and
// returns once it is open. An empty endpoint uses the configured one. A socket
// already held is closed first. Token and endpoint are kept for automatic
// reconnects.
func (c *Client) Connect(ctx context.Context, token, endpoint string) error {
	_, err := c.connect(ctx, token, endpoint)
	return err
}

func (c *Client) connect(ctx context.Context, token, endpoint string) (uint64, error) {
	if endpoint == "" {
		endpoint = c.cfg.Endpoint
	}
	target, err := transport.WithToken(endpoint, token)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrConnect, err)
	}

	c.mu.Lock()
	prev := c.conn
	c.conn = nil
	c.connected = false
	c.stopTimerLocked()
	c.epoch++
	epoch := c.epoch
	c.token = token
	c.endpoint = endpoint
	c.state = types.StateConnecting
	c.mu.Unlock()

	if prev != nil {
		_ = prev.Close()
		c.metrics.SetConnected(false)
		c.notifyDisconnect(localClose)
	}

	c.logger.Debug().Str("endpoint", endpoint).Msg("connecting")
	conn, err := c.dialer.Dial(ctx, target)

	c.mu.Lock()
	if c.epoch != epoch {
		c.mu.Unlock()
		if conn != nil {
			_ = conn.Close()
		}
		return epoch, ErrSuperseded
	}
	if err != nil {
		c.state = types.StateClosed
		c.mu.Unlock()
		return epoch, fmt.Errorf("%w: %w", ErrConnect, err)
	}
	c.conn = conn
	c.connected = true
	c.state = types.StateOpen
	c.attempts = 0
	c.mu.Unlock()

	c.metrics.SetConnected(true)
	c.logger.Info().Str("endpoint", endpoint).Msg("connected")

	go c.readLoop(conn)
	return epoch, nil
}

// localClose is reported to onDisconnect when the client itself closes the
// socket. The read loop of that socket is superseded and reports nothing.
var localClose = types.CloseEvent{Code: types.CloseNormal, Reason: "closed locally", WasClean: true}

// Disconnect cancels any pending reconnect and closes the socket, notifying
// onDisconnect if one was held. It is idempotent and no reconnect is
// scheduled afterwards.
func (c *Client) Disconnect() {
	c.mu.Lock()
	c.epoch++
	c.stopTimerLocked()
	conn := c.conn
	c.conn = nil
	c.connected = false
	c.state = types.StateIdle
	c.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
		c.metrics.SetConnected(false)
		c.logger.Info().Msg("disconnected")
		c.notifyDisconnect(localClose)
	}
}

// IsConnected reports whether the client holds a socket that is open right now.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected && c.conn != nil && c.conn.Open()
}

// State returns the lifecycle state.
func (c *Client) State() types.ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Attempts returns the number of reconnects scheduled since the last open.
func (c *Client) Attempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempts
}

// AddEventListener registers h for tag, replacing any earlier handler.
// EventDisconnect takes a DisconnectHandler; use AddDisconnectListener.
func (c *Client) AddEventListener(tag EventType, h FrameHandler) error {
	if tag == "" || tag == EventDisconnect {
		return fmt.Errorf("%w: %q", ErrReservedTag, tag)
	}
	c.registry.Set(tag, h)
	return nil
}

// On registers h for frames of type ft.
func (c *Client) On(ft types.FrameType, h FrameHandler) error {
	return c.AddEventListener(ForFrame(ft), h)
}

// AddDisconnectListener registers the handler invoked whenever the socket
// closes, clean or not, including closes made by Disconnect and Connect.
func (c *Client) AddDisconnectListener(h DisconnectHandler) {
	c.registry.SetDisconnect(h)
}

// RemoveEventListener removes the handler for tag.
func (c *Client) RemoveEventListener(tag EventType) {
	c.registry.Remove(tag)
}

func (c *Client) readLoop(conn types.Conn) {
	for {
		data, err := conn.ReadMessage()
		if err != nil {
			c.handleClose(conn, err)
			return
		}
		if !c.current(conn) {
			return
		}
		c.dispatch(data)
	}
}

func (c *Client) current(conn types.Conn) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn == conn
}

func (c *Client) handleClose(conn types.Conn, err error) {
	var ev *types.CloseEvent
	if !errors.As(err, &ev) {
		ev = &types.CloseEvent{Code: types.CloseAbnormal, Reason: err.Error()}
	}

	c.mu.Lock()
	if c.conn != conn {
		// Replaced by Connect or dropped by Disconnect, which already notified.
		c.mu.Unlock()
		return
	}
	c.conn = nil
	c.connected = false
	c.state = types.StateClosed
	var delay time.Duration
	retry := !ev.WasClean && c.attempts < c.cfg.MaxReconnectAttempts
	if retry {
		delay = c.scheduleLocked()
	}
	attempts := c.attempts
	c.mu.Unlock()

	_ = conn.Close()
	c.metrics.SetConnected(false)

	log := c.logger.Info()
	if !ev.WasClean {
		log = c.logger.Warn()
	}
	log.Int("code", ev.Code).
		Str("reason", ev.Reason).
		Bool("clean", ev.WasClean).
		Msg("socket closed")
	if retry {
		c.logger.Info().Int("attempt", attempts).Dur("delay", delay).Msg("reconnect scheduled")
	} else if !ev.WasClean {
		c.logger.Warn().Int("attempts", attempts).Msg("reconnect attempts exhausted")
	}

	c.notifyDisconnect(*ev)
}

func (c *Client) notifyDisconnect(ev types.CloseEvent) {
	h := c.registry.Disconnect()
	if h == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			c.report(&HandlerError{Tag: EventDisconnect, Err: fmt.Errorf("panic: %v", r)})
		}
	}()
	h(ev)
}

// scheduleLocked counts an attempt and arms the reconnect timer. c.mu must be held.
func (c *Client) scheduleLocked() time.Duration {
	c.attempts++
	delay := Backoff(c.attempts, c.cfg.ReconnectBaseDelay, c.cfg.ReconnectMaxDelay)
	c.stopTimerLocked()
	epoch := c.epoch
	c.timer = c.clock.AfterFunc(delay, func() { c.reconnect(epoch) })
	c.metrics.ReconnectScheduled()
	return delay
}

func (c *Client) stopTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

// reconnect runs on the timer. A failed dial schedules the next attempt while
// the cap allows, so an expired token ends in a bounded number of tries.
func (c *Client) reconnect(epoch uint64) {
	c.mu.Lock()
	if c.epoch != epoch || c.state != types.StateClosed {
		c.mu.Unlock()
		return
	}
	c.timer = nil
	token, endpoint := c.token, c.endpoint
	attempt := c.attempts
	c.mu.Unlock()

	ctx := context.Background()
	if c.cfg.HandshakeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.HandshakeTimeout)
		defer cancel()
	}

	c.logger.Info().Int("attempt", attempt).Msg("reconnecting")
	dialEpoch, err := c.connect(ctx, token, endpoint)
	if err == nil || errors.Is(err, ErrSuperseded) {
		return
	}
	c.logger.Warn().Err(err).Int("attempt", attempt).Msg("reconnect failed")

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.epoch != dialEpoch || c.state != types.StateClosed {
		return
	}
	if c.attempts >= c.cfg.MaxReconnectAttempts {
		c.logger.Warn().Int("attempts", c.attempts).Msg("reconnect attempts exhausted")
		return
	}
	delay := c.scheduleLocked()
	c.logger.Info().Int("attempt", c.attempts).Dur("delay", delay).Msg("reconnect scheduled")
}

func (c *Client) report(err error) {
	c.logger.Error().Err(err).Msg("event handling failed")
	if c.onError != nil {
		c.onError(err)
	}
}
