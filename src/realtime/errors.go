package realtime

import (
	"errors"
	"fmt"

	"github.com/orchestra-mcp/realtime/src/types"
)

var (
	// ErrNotConnected is returned by SendCommand and every helper while the
	// client has no open socket. Nothing is buffered.
	ErrNotConnected = errors.New("realtime: not connected")
	// ErrConnect wraps transport failures returned by Connect.
	ErrConnect = errors.New("realtime: connect failed")
	// ErrSuperseded is returned by Connect when Disconnect or another Connect
	// ran while the dial was in flight.
	ErrSuperseded     = errors.New("realtime: connect superseded")
	ErrUnknownCommand = errors.New("realtime: unknown command")
	ErrReservedTag    = errors.New("realtime: reserved event tag")
)

// MalformedFrameError reports an inbound frame that was dropped before dispatch.
type MalformedFrameError struct {
	Reason string
	Data   []byte
}

func (e *MalformedFrameError) Error() string {
	return fmt.Sprintf("realtime: malformed frame: %s", e.Reason)
}

// HandlerError reports a handler that returned an error or panicked.
type HandlerError struct {
	Tag  EventType
	Type types.FrameType
	Err  error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("realtime: %s handler for %q frame: %v", e.Tag, e.Type, e.Err)
}

func (e *HandlerError) Unwrap() error { return e.Err }
