package realtime

import (
	"fmt"

	"github.com/orchestra-mcp/realtime/src/types"
	"github.com/tidwall/gjson"
)

// dispatch parses one frame and runs its handlers. Nothing escapes: parse
// failures and handler failures are reported and the read loop goes on.
func (c *Client) dispatch(data []byte) {
	frame, err := parseFrame(data)
	if err != nil {
		c.metrics.FrameDropped("malformed")
		c.report(err)
		return
	}
	if frame.Type == "" {
		c.metrics.FrameReceived("untyped")
	} else {
		c.metrics.FrameReceived(string(frame.Type))
	}

	tag := ForFrame(frame.Type)
	if frame.Type != "" && !tag.reserved() {
		if h, ok := c.registry.Handler(tag); ok {
			c.invoke(tag, h, frame)
		}
	}
	if h, ok := c.registry.Handler(EventMessage); ok {
		c.invoke(EventMessage, h, frame)
	}
}

func (c *Client) invoke(tag EventType, h FrameHandler, frame types.Frame) {
	if err := safeCall(h, frame); err != nil {
		c.metrics.FrameDropped("handler")
		c.report(&HandlerError{Tag: tag, Type: frame.Type, Err: err})
	}
}

func safeCall(h FrameHandler, frame types.Frame) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return h(frame)
}

// parseFrame accepts any valid JSON. A frame that is not an object or has no
// string type gets an empty Type and only reaches onMessage.
func parseFrame(data []byte) (types.Frame, error) {
	if !gjson.ValidBytes(data) {
		return types.Frame{}, &MalformedFrameError{Reason: "invalid json", Data: data}
	}
	raw := make([]byte, len(data))
	copy(raw, data)
	frame := types.Frame{Raw: raw}

	root := gjson.ParseBytes(data)
	if typ := root.Get("type"); root.IsObject() && typ.Type == gjson.String {
		frame.Type = types.FrameType(typ.Str)
	}
	return frame, nil
}
