package realtime

import (
	"sync"

	"github.com/orchestra-mcp/realtime/src/types"
)

// EventType keys the handler registry. Frame tags share the namespace with
// the two reserved tags below.
type EventType string

const (
	// EventMessage fires for every parsed frame, after the type-specific handler.
	EventMessage EventType = "onMessage"
	// EventDisconnect fires whenever the live socket closes.
	EventDisconnect EventType = "onDisconnect"
)

// ForFrame returns the registry tag for frames of type ft.
func ForFrame(ft types.FrameType) EventType {
	return EventType(ft)
}

func (t EventType) reserved() bool {
	return t == EventMessage || t == EventDisconnect
}

// FrameHandler handles one inbound frame.
type FrameHandler func(frame types.Frame) error

// DisconnectHandler receives the close event of the live socket.
type DisconnectHandler func(event types.CloseEvent)

// Registry holds at most one handler per tag. A later registration replaces
// the earlier one. Safe for use while a dispatch is running.
type Registry struct {
	mu         sync.RWMutex
	frames     map[EventType]FrameHandler
	disconnect DisconnectHandler
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{frames: make(map[EventType]FrameHandler)}
}

// Set registers h for tag. A nil handler removes the entry.
func (r *Registry) Set(tag EventType, h FrameHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if h == nil {
		delete(r.frames, tag)
		return
	}
	r.frames[tag] = h
}

// SetDisconnect registers the disconnect handler. A nil handler removes it.
func (r *Registry) SetDisconnect(h DisconnectHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.disconnect = h
}

// Remove deletes the handler registered for tag.
func (r *Registry) Remove(tag EventType) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if tag == EventDisconnect {
		r.disconnect = nil
		return
	}
	delete(r.frames, tag)
}

// Handler returns the handler registered for tag.
func (r *Registry) Handler(tag EventType) (FrameHandler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.frames[tag]
	return h, ok
}

// Disconnect returns the disconnect handler, or nil.
func (r *Registry) Disconnect() DisconnectHandler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.disconnect
}

// Tags returns the registered frame tags.
func (r *Registry) Tags() []EventType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tags := make([]EventType, 0, len(r.frames))
	for tag := range r.frames {
		tags = append(tags, tag)
	}
	return tags
}
