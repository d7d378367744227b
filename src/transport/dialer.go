package transport

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/fasthttp/websocket"
	"github.com/orchestra-mcp/realtime/config"
	"github.com/orchestra-mcp/realtime/src/types"
)

// Dialer opens client connections with fasthttp/websocket.
type Dialer struct {
	dialer       websocket.Dialer
	writeTimeout time.Duration
	readTimeout  time.Duration
}

// DialerOption customizes a Dialer.
type DialerOption func(*Dialer)

// WithNetDial replaces the network dial function, e.g. with an in-memory listener.
func WithNetDial(fn func(network, addr string) (net.Conn, error)) DialerOption {
	return func(d *Dialer) {
		d.dialer.NetDial = fn
	}
}

// NewDialer builds a Dialer from the client configuration.
func NewDialer(cfg *config.ClientConfig, opts ...DialerOption) *Dialer {
	d := &Dialer{
		dialer: websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: cfg.HandshakeTimeout,
		},
		writeTimeout: cfg.WriteTimeout,
		readTimeout:  cfg.ReadTimeout,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dial connects to url and returns once the handshake has completed.
func (d *Dialer) Dial(ctx context.Context, url string) (types.Conn, error) {
	ws, resp, err := d.dialer.DialContext(ctx, url, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (status %d)", redact(url), err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", redact(url), err)
	}
	return NewConn(ws, d.writeTimeout, d.readTimeout), nil
}
