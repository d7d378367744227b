package config

import (
	"os"
	"strconv"
	"strings"
)

// SocketConfig holds relay server configuration.
type SocketConfig struct {
	Addr            string `json:"addr"`
	MaxConnections  int    `json:"max_connections"`
	PingInterval    int    `json:"ping_interval_seconds"`
	WriteTimeout    int    `json:"write_timeout_seconds"`
	ReadBufferSize  int    `json:"read_buffer_size"`
	WriteBufferSize int    `json:"write_buffer_size"`
	SendBufferSize  int    `json:"send_buffer_size"`
	// AllowedOrigins lists browser origins besides the relay's own host that
	// may open the chat socket. "*" allows any origin.
	AllowedOrigins []string `json:"allowed_origins"`
}

// DefaultConfig returns the default relay configuration.
func DefaultConfig() *SocketConfig {
	return &SocketConfig{
		Addr:            ":8080",
		MaxConnections:  1000,
		PingInterval:    30,
		WriteTimeout:    10,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		SendBufferSize:  256,
	}
}

// SocketConfigFromEnv overlays SOCKET_* environment variables on the defaults.
// Unparseable values are ignored.
func SocketConfigFromEnv() *SocketConfig {
	cfg := DefaultConfig()

	if addr := os.Getenv("SOCKET_ADDR"); addr != "" {
		cfg.Addr = addr
	}
	envInt("SOCKET_MAX_CONNECTIONS", &cfg.MaxConnections)
	envInt("SOCKET_PING_INTERVAL", &cfg.PingInterval)
	envInt("SOCKET_WRITE_TIMEOUT", &cfg.WriteTimeout)
	envInt("SOCKET_READ_BUFFER_SIZE", &cfg.ReadBufferSize)
	envInt("SOCKET_WRITE_BUFFER_SIZE", &cfg.WriteBufferSize)
	envInt("SOCKET_SEND_BUFFER_SIZE", &cfg.SendBufferSize)
	for _, origin := range strings.Split(os.Getenv("SOCKET_ALLOWED_ORIGINS"), ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			cfg.AllowedOrigins = append(cfg.AllowedOrigins, origin)
		}
	}
	return cfg
}

func envInt(key string, dst *int) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	if n, err := strconv.Atoi(v); err == nil && n > 0 {
		*dst = n
	}
}
