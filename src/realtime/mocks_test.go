package realtime

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/orchestra-mcp/realtime/config"
	"github.com/orchestra-mcp/realtime/src/types"
	"github.com/rs/zerolog"
)

// mockConn implements types.Conn without a real socket.
type mockConn struct {
	mu      sync.Mutex
	written [][]byte
	frames  chan []byte
	closeCh chan *types.CloseEvent
	open    atomic.Bool
	closed  bool
}

func newMockConn() *mockConn {
	c := &mockConn{
		frames:  make(chan []byte, 16),
		closeCh: make(chan *types.CloseEvent, 1),
	}
	c.open.Store(true)
	return c
}

func (m *mockConn) ReadMessage() ([]byte, error) {
	select {
	case f := <-m.frames:
		return f, nil
	case ev := <-m.closeCh:
		m.open.Store(false)
		return nil, ev
	}
}

func (m *mockConn) WriteMessage(data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	m.written = append(m.written, cp)
	return nil
}

func (m *mockConn) Open() bool { return m.open.Load() }

func (m *mockConn) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	m.open.Store(false)
	select {
	case m.closeCh <- &types.CloseEvent{Code: types.CloseNormal, Reason: "closed locally", WasClean: true}:
	default:
	}
	return nil
}

// drop simulates the server or network closing the socket.
func (m *mockConn) drop(clean bool) {
	ev := &types.CloseEvent{Code: types.CloseAbnormal, Reason: "network down", WasClean: false}
	if clean {
		ev = &types.CloseEvent{Code: types.CloseNormal, Reason: "bye", WasClean: true}
	}
	m.closeCh <- ev
}

func (m *mockConn) push(frame string) {
	m.frames <- []byte(frame)
}

func (m *mockConn) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func (m *mockConn) getWritten() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.written))
	for i, w := range m.written {
		out[i] = string(w)
	}
	return out
}

// mockDialer hands out mockConns and records dialed URLs.
type mockDialer struct {
	mu    sync.Mutex
	urls  []string
	conns []*mockConn
	fail  error
	gate  chan struct{}
}

func (d *mockDialer) Dial(ctx context.Context, url string) (types.Conn, error) {
	d.mu.Lock()
	d.urls = append(d.urls, url)
	gate := d.gate
	fail := d.fail
	d.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if fail != nil {
		return nil, fail
	}

	conn := newMockConn()
	d.mu.Lock()
	d.conns = append(d.conns, conn)
	d.mu.Unlock()
	return conn, nil
}

func (d *mockDialer) setFail(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fail = err
}

func (d *mockDialer) last() *mockConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.conns) == 0 {
		return nil
	}
	return d.conns[len(d.conns)-1]
}

func (d *mockDialer) dialedURLs() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.urls...)
}

// fakeClock records timers and fires them on demand.
type fakeClock struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

type fakeTimer struct {
	clock   *fakeClock
	delay   time.Duration
	fn      func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, delay: d, fn: f}
	c.timers = append(c.timers, t)
	return t
}

// pending returns timers that were neither stopped nor fired.
func (c *fakeClock) pending() []*fakeTimer {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			out = append(out, t)
		}
	}
	return out
}

func (c *fakeClock) scheduled() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]time.Duration, len(c.timers))
	for i, t := range c.timers {
		out[i] = t.delay
	}
	return out
}

// fire runs t synchronously, as the runtime would on expiry.
func (c *fakeClock) fire(t *fakeTimer) {
	c.mu.Lock()
	t.fired = true
	c.mu.Unlock()
	t.fn()
}

const testEndpoint = "ws://chat.test/ws/chat/"

type harness struct {
	client *Client
	dialer *mockDialer
	clock  *fakeClock
	errs   chan error
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	cfg := config.DefaultClientConfig()
	cfg.Endpoint = testEndpoint
	h := &harness{
		dialer: &mockDialer{},
		clock:  &fakeClock{},
		errs:   make(chan error, 16),
	}
	h.client = New(cfg, h.dialer, zerolog.Nop(),
		WithClock(h.clock),
		WithErrorHandler(func(err error) { h.errs <- err }),
	)
	t.Cleanup(h.client.Disconnect)
	return h
}

func (h *harness) connect(t *testing.T) *mockConn {
	t.Helper()
	if err := h.client.Connect(context.Background(), "tok1", ""); err != nil {
		t.Fatalf("connect: %v", err)
	}
	return h.dialer.last()
}
