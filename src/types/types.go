package types

import (
	"context"
	"fmt"
)

// Conn abstracts a WebSocket connection for testability.
type Conn interface {
	// ReadMessage blocks for the next text frame. When the socket closes the
	// returned error is a *CloseEvent.
	ReadMessage() ([]byte, error)
	WriteMessage(data []byte) error
	// Open reports whether the socket is still in its open ready state.
	Open() bool
	Close() error
}

// Dialer opens client connections.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// WebSocket close codes used by this module.
const (
	CloseNormal        = 1000
	CloseGoingAway     = 1001
	ClosePolicy        = 1008
	CloseTryAgainLater = 1013
	CloseAbnormal      = 1006
)

// CloseEvent describes how a socket was closed.
// WasClean is true when a closing handshake completed.
type CloseEvent struct {
	Code     int    `json:"code"`
	Reason   string `json:"reason"`
	WasClean bool   `json:"was_clean"`
}

func (e *CloseEvent) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("socket closed (code %d, clean=%t)", e.Code, e.WasClean)
	}
	return fmt.Sprintf("socket closed (code %d, clean=%t): %s", e.Code, e.WasClean, e.Reason)
}

// ConnState is the lifecycle state of a client connection.
type ConnState int

const (
	StateIdle ConnState = iota
	StateConnecting
	StateOpen
	StateClosed
)

func (s ConnState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}
