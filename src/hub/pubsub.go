package hub

import (
	"encoding/json"

	"github.com/orchestra-mcp/realtime/src/types"
)

func (h *Hub) handleCommand(env types.Envelope) {
	h.mu.RLock()
	handler, ok := h.handlers[env.Command]
	h.mu.RUnlock()

	if !ok {
		h.logger.Debug().Str("command", string(env.Command)).Msg("no handler")
		h.metrics.CommandHandled(string(env.Command), "unknown")
		h.sendError(env.ConnID, env.Command, "unknown command")
		return
	}
	if err := handler(env); err != nil {
		h.logger.Warn().Err(err).
			Str("command", string(env.Command)).
			Str("client_id", env.ConnID).
			Msg("command rejected")
		h.metrics.CommandHandled(string(env.Command), "error")
		h.sendError(env.ConnID, env.Command, err.Error())
		return
	}
	h.metrics.CommandHandled(string(env.Command), "ok")
}

func (h *Hub) sendError(clientID string, cmd types.CommandName, message string) {
	frame, err := json.Marshal(types.ErrorFrame{Type: types.FrameError, Command: cmd, Message: message})
	if err != nil {
		return
	}
	h.SendToClient(clientID, frame)
}

func (h *Hub) broadcastToThread(bm broadcastMsg) {
	h.mu.RLock()
	subs, ok := h.threads[bm.threadID]
	if !ok {
		h.mu.RUnlock()
		return
	}
	// Copy subscriber IDs to avoid holding lock during sends.
	ids := make([]string, 0, len(subs))
	for id := range subs {
		if id != bm.except {
			ids = append(ids, id)
		}
	}
	h.mu.RUnlock()

	for _, id := range ids {
		h.SendToClient(id, bm.frame)
	}
}

// publishToBridge forwards a frame to the bridge if one is attached.
func (h *Hub) publishToBridge(bm broadcastMsg) {
	h.mu.RLock()
	b := h.bridge
	h.mu.RUnlock()

	if b == nil || !b.Available() {
		return
	}
	if err := b.Publish(bm.threadID, bm.frame); err != nil {
		h.logger.Error().Err(err).Msg("bridge publish failed")
	}
}

// Publish sends a frame to every local subscriber of a thread except the
// connection named by except, and to the bridge. Remote instances deliver
// to all their subscribers.
func (h *Hub) Publish(threadID int64, frame []byte, except string) {
	bm := broadcastMsg{threadID: threadID, frame: frame, except: except}
	h.publishToBridge(bm)
	h.broadcastToThread(bm)
}

// Subscribe adds a client to a thread.
func (h *Hub) Subscribe(threadID int64, clientID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	client, ok := h.clients[clientID]
	if !ok {
		return false
	}
	if h.threads[threadID] == nil {
		h.threads[threadID] = make(map[string]bool)
	}
	h.threads[threadID][clientID] = true
	client.addThread(threadID)
	return true
}

// Unsubscribe removes a client from a thread.
func (h *Hub) Unsubscribe(threadID int64, clientID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs, ok := h.threads[threadID]
	if !ok || !subs[clientID] {
		return false
	}
	delete(subs, clientID)
	if len(subs) == 0 {
		delete(h.threads, threadID)
	}
	if c, ok := h.clients[clientID]; ok {
		c.removeThread(threadID)
	}
	return true
}

// IsSubscribed reports whether clientID joined threadID.
func (h *Hub) IsSubscribed(threadID int64, clientID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.threads[threadID][clientID]
}

// SendToClient queues a frame for one connection. A full buffer drops the frame.
func (h *Hub) SendToClient(clientID string, frame []byte) bool {
	h.mu.RLock()
	client, ok := h.clients[clientID]
	h.mu.RUnlock()
	if !ok {
		return false
	}
	select {
	case client.Send <- frame:
		return true
	default:
		h.metrics.Dropped()
		h.logger.Warn().Str("client_id", clientID).Msg("send buffer full, dropping")
		return false
	}
}
