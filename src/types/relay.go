package types

import (
	"encoding/json"
	"time"
)

// Envelope is a command received by the relay, tagged with its origin.
type Envelope struct {
	ConnID     string          `json:"conn_id"`
	UserID     string          `json:"user_id"`
	Command    CommandName     `json:"command"`
	Data       json.RawMessage `json:"data"`
	ReceivedAt time.Time       `json:"received_at"`
}

// CommandHandler handles one command on the relay.
type CommandHandler func(env Envelope) error

// ClientInfo holds metadata about a connected WebSocket client.
type ClientInfo struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	ConnectedAt time.Time `json:"connected_at"`
	Threads     []int64   `json:"threads"`
	UserAgent   string    `json:"user_agent,omitempty"`
}
