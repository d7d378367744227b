package transport

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fasthttp/websocket"
	"github.com/orchestra-mcp/realtime/src/types"
)

// Conn wraps a fasthttp/websocket connection to satisfy types.Conn.
// Writes are serialized; the library allows one concurrent writer.
type Conn struct {
	ws           *websocket.Conn
	writeTimeout time.Duration
	readTimeout  time.Duration

	writeMu   sync.Mutex
	open      atomic.Bool
	local     atomic.Bool
	closeOnce sync.Once
}

// NewConn adapts ws. A zero timeout disables the corresponding deadline.
func NewConn(ws *websocket.Conn, writeTimeout, readTimeout time.Duration) *Conn {
	c := &Conn{ws: ws, writeTimeout: writeTimeout, readTimeout: readTimeout}
	c.open.Store(true)
	if readTimeout > 0 {
		ws.SetPingHandler(func(data string) error {
			c.extendRead()
			err := ws.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(time.Second))
			if errors.Is(err, websocket.ErrCloseSent) {
				return nil
			}
			return err
		})
		ws.SetPongHandler(func(string) error {
			c.extendRead()
			return nil
		})
	}
	return c
}

func (c *Conn) extendRead() {
	if c.readTimeout > 0 {
		_ = c.ws.SetReadDeadline(time.Now().Add(c.readTimeout))
	}
}

// ReadMessage returns the next data frame. Any failure is reported as a
// *types.CloseEvent and leaves the connection not open.
func (c *Conn) ReadMessage() ([]byte, error) {
	c.extendRead()
	_, data, err := c.ws.ReadMessage()
	if err != nil {
		c.open.Store(false)
		return nil, c.closeEvent(err)
	}
	return data, nil
}

func (c *Conn) closeEvent(err error) *types.CloseEvent {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		return &types.CloseEvent{
			Code:     ce.Code,
			Reason:   ce.Text,
			WasClean: ce.Code != websocket.CloseAbnormalClosure,
		}
	}
	if c.local.Load() {
		return &types.CloseEvent{Code: types.CloseNormal, Reason: "closed locally", WasClean: true}
	}
	return &types.CloseEvent{Code: types.CloseAbnormal, Reason: err.Error(), WasClean: false}
}

// WriteMessage writes data as a single text frame.
func (c *Conn) WriteMessage(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.writeTimeout > 0 {
		_ = c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

// Ping sends a ping control frame.
func (c *Conn) Ping() error {
	return c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.pingDeadline()))
}

func (c *Conn) pingDeadline() time.Duration {
	if c.writeTimeout > 0 {
		return c.writeTimeout
	}
	return 10 * time.Second
}

// Open reports whether the socket is still usable.
func (c *Conn) Open() bool {
	return c.open.Load()
}

// Close performs the closing handshake with a normal status and releases the socket.
func (c *Conn) Close() error {
	return c.CloseWith(types.CloseNormal, "")
}

// CloseWith closes the socket with the given status code and reason.
func (c *Conn) CloseWith(code int, reason string) error {
	var err error
	c.closeOnce.Do(func() {
		c.local.Store(true)
		c.open.Store(false)
		msg := websocket.FormatCloseMessage(code, reason)
		_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		err = c.ws.Close()
	})
	return err
}
