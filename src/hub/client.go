package hub

import (
	"sort"
	"sync"
	"time"

	"github.com/orchestra-mcp/realtime/src/types"
)

type pinger interface {
	Ping() error
}

// Client wraps a relay-side WebSocket connection and manages message flow.
type Client struct {
	ID          string
	UserID      string
	UserAgent   string
	conn        types.Conn
	hub         *Hub
	Send        chan []byte
	connectedAt time.Time
	threads     map[int64]bool
	mu          sync.RWMutex
	done        chan struct{}
	closed      bool
}

// NewClient creates a new connection wrapper for userID.
func NewClient(id, userID string, conn types.Conn, h *Hub) *Client {
	return &Client{
		ID:          id,
		UserID:      userID,
		conn:        conn,
		hub:         h,
		Send:        make(chan []byte, h.sendBuffer),
		connectedAt: time.Now(),
		threads:     make(map[int64]bool),
		done:        make(chan struct{}),
	}
}

// Info returns metadata about this client.
func (c *Client) Info() types.ClientInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()

	threads := make([]int64, 0, len(c.threads))
	for id := range c.threads {
		threads = append(threads, id)
	}
	sort.Slice(threads, func(i, j int) bool { return threads[i] < threads[j] })
	return types.ClientInfo{
		ID:          c.ID,
		UserID:      c.UserID,
		ConnectedAt: c.connectedAt,
		Threads:     threads,
		UserAgent:   c.UserAgent,
	}
}

func (c *Client) addThread(id int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.threads[id] = true
}

func (c *Client) removeThread(id int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.threads, id)
}

// InThread reports whether the client joined thread id.
func (c *Client) InThread(id int64) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.threads[id]
}

// ReadPump reads commands from the socket and routes them to the hub.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	for {
		data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		cmd, err := types.DecodeCommand(data)
		if err != nil {
			c.hub.sendError(c.ID, "", err.Error())
			continue
		}
		env := types.Envelope{
			ConnID:     c.ID,
			UserID:     c.UserID,
			Command:    cmd.Command,
			Data:       cmd.Data,
			ReceivedAt: time.Now(),
		}
		select {
		case c.hub.incoming <- env:
		case <-c.hub.done:
			return
		}
	}
}

// WritePump writes queued frames to the socket and pings it every pingInterval.
func (c *Client) WritePump(pingInterval time.Duration) {
	defer c.conn.Close()

	var ping <-chan time.Time
	p, canPing := c.conn.(pinger)
	if canPing && pingInterval > 0 {
		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()
		ping = ticker.C
	}

	for {
		select {
		case frame, ok := <-c.Send:
			if !ok {
				return
			}
			if err := c.conn.WriteMessage(frame); err != nil {
				return
			}
		case <-ping:
			if err := p.Ping(); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

// Close signals the client to stop its pumps.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.done)
	}
}
