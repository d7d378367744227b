package hub

import (
	"github.com/orchestra-mcp/realtime/src/types"
)

// RegisterHandler registers the handler for a command, replacing any earlier one.
func (h *Hub) RegisterHandler(cmd types.CommandName, handler types.CommandHandler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handlers[cmd] = handler
}

// OnConnection registers a callback for new connections.
func (h *Hub) OnConnection(cb func(*Client)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onConnect = append(h.onConnect, cb)
}

// OnDisconnection registers a callback for disconnections.
func (h *Hub) OnDisconnection(cb func(*Client)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onDisconn = append(h.onDisconn, cb)
}

// ConnectedClients returns a list of connected client IDs.
func (h *Hub) ConnectedClients() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ids := make([]string, 0, len(h.clients))
	for id := range h.clients {
		ids = append(ids, id)
	}
	return ids
}

// ClientInfo returns info for a connected client, or nil.
func (h *Hub) ClientInfo(clientID string) *types.ClientInfo {
	h.mu.RLock()
	client, ok := h.clients[clientID]
	h.mu.RUnlock()
	if !ok {
		return nil
	}
	info := client.Info()
	return &info
}

// Threads returns thread IDs with their subscriber counts.
func (h *Hub) Threads() map[int64]int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	result := make(map[int64]int, len(h.threads))
	for id, subs := range h.threads {
		result[id] = len(subs)
	}
	return result
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
