// Package hub is the relay side of the chat socket: it tracks connections,
// their thread subscriptions and the command handlers, and fans frames out
// to the subscribers of a thread.
package hub

import (
	"sync"

	"github.com/orchestra-mcp/realtime/src/metrics"
	"github.com/orchestra-mcp/realtime/src/types"
	"github.com/rs/zerolog"
)

// MessageBridge publishes thread frames to other relay instances.
// Defined here to avoid circular imports with the bridge package.
type MessageBridge interface {
	Publish(threadID int64, frame []byte) error
	Available() bool
}

// Hub manages all relay connections and thread subscriptions.
type Hub struct {
	clients map[string]*Client
	threads map[int64]map[string]bool // thread -> set of client IDs

	register   chan *Client
	unregister chan *Client
	incoming   chan types.Envelope
	localCast  chan broadcastMsg // frames from the bridge, never re-published

	handlers  map[types.CommandName]types.CommandHandler
	onConnect []func(*Client)
	onDisconn []func(*Client)

	bridge     MessageBridge
	metrics    *metrics.Relay
	sendBuffer int
	mu         sync.RWMutex
	logger     zerolog.Logger
	done       chan struct{}
	stopOnce   sync.Once
}

type broadcastMsg struct {
	threadID int64
	frame    []byte
	except   string
}

// Option customizes a Hub.
type Option func(*Hub)

// WithMetrics records hub activity on m.
func WithMetrics(m *metrics.Relay) Option {
	return func(h *Hub) { h.metrics = m }
}

// WithSendBuffer sets the per-connection outbound buffer size.
func WithSendBuffer(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.sendBuffer = n
		}
	}
}

// New creates a new Hub instance.
func New(logger zerolog.Logger, opts ...Option) *Hub {
	h := &Hub{
		clients:    make(map[string]*Client),
		threads:    make(map[int64]map[string]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		incoming:   make(chan types.Envelope, 256),
		localCast:  make(chan broadcastMsg, 256),
		handlers:   make(map[types.CommandName]types.CommandHandler),
		sendBuffer: 256,
		logger:     logger.With().Str("component", "hub").Logger(),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// SetBridge attaches a cross-instance bridge to the hub.
// When set, thread broadcasts are also forwarded to other instances.
func (h *Hub) SetBridge(b MessageBridge) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.bridge = b
}

// BroadcastToLocal delivers a frame from the bridge to local subscribers only.
// It does not re-publish, preventing loops between instances.
func (h *Hub) BroadcastToLocal(threadID int64, frame []byte) {
	select {
	case h.localCast <- broadcastMsg{threadID: threadID, frame: frame}:
	case <-h.done:
	}
}

// Run starts the hub event loop. Call in a goroutine.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		case env := <-h.incoming:
			h.handleCommand(env)
		case bm := <-h.localCast:
			h.broadcastToThread(bm)
		case <-h.done:
			return
		}
	}
}

// Stop halts the hub event loop. Safe to call more than once.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

// Register queues a client for registration.
func (h *Hub) Register(c *Client) {
	select {
	case h.register <- c:
	case <-h.done:
	}
}

// Unregister queues a client for removal.
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// CloseAll closes every registered connection with the given close code.
func (h *Hub) CloseAll(code int, reason string) {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		if cw, ok := c.conn.(interface{ CloseWith(int, string) error }); ok {
			_ = cw.CloseWith(code, reason)
		} else {
			_ = c.conn.Close()
		}
		c.Close()
	}
}

func (h *Hub) addClient(c *Client) {
	h.mu.Lock()
	h.clients[c.ID] = c
	callbacks := append([]func(*Client){}, h.onConnect...)
	h.mu.Unlock()

	h.metrics.ConnectionAdded()
	h.logger.Info().Str("client_id", c.ID).Str("user_id", c.UserID).Msg("client registered")

	for _, cb := range callbacks {
		cb(c)
	}
}

func (h *Hub) removeClient(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c.ID]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c.ID)

	// Remove from all thread subscriptions.
	for id, subs := range h.threads {
		delete(subs, c.ID)
		if len(subs) == 0 {
			delete(h.threads, id)
		}
	}
	callbacks := append([]func(*Client){}, h.onDisconn...)
	h.mu.Unlock()

	c.Close()
	h.metrics.ConnectionRemoved()
	h.logger.Info().Str("client_id", c.ID).Msg("client unregistered")

	for _, cb := range callbacks {
		cb(c)
	}
}
