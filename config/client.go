package config

import (
	"os"
	"time"
)

// ClientConfig holds realtime client settings.
type ClientConfig struct {
	Endpoint             string        `json:"endpoint"`
	MaxReconnectAttempts int           `json:"max_reconnect_attempts"`
	ReconnectBaseDelay   time.Duration `json:"reconnect_base_delay"`
	ReconnectMaxDelay    time.Duration `json:"reconnect_max_delay"`
	HandshakeTimeout     time.Duration `json:"handshake_timeout"`
	WriteTimeout         time.Duration `json:"write_timeout"`
	// ReadTimeout bounds silence on the socket; pings from the server reset it.
	ReadTimeout time.Duration `json:"read_timeout"`
}

// DefaultClientConfig returns the reconnect policy of the chat client:
// five attempts at 5s, 10s, 20s, 40s and 60s.
func DefaultClientConfig() *ClientConfig {
	return &ClientConfig{
		Endpoint:             "ws://localhost:8080/ws/chat/",
		MaxReconnectAttempts: 5,
		ReconnectBaseDelay:   5 * time.Second,
		ReconnectMaxDelay:    60 * time.Second,
		HandshakeTimeout:     10 * time.Second,
		WriteTimeout:         10 * time.Second,
		ReadTimeout:          90 * time.Second,
	}
}

// ClientConfigFromEnv overlays REALTIME_* environment variables on the defaults.
func ClientConfigFromEnv() *ClientConfig {
	cfg := DefaultClientConfig()

	if ep := os.Getenv("REALTIME_ENDPOINT"); ep != "" {
		cfg.Endpoint = ep
	}
	envInt("REALTIME_MAX_RECONNECT_ATTEMPTS", &cfg.MaxReconnectAttempts)
	envDuration("REALTIME_RECONNECT_BASE_DELAY", &cfg.ReconnectBaseDelay)
	envDuration("REALTIME_RECONNECT_MAX_DELAY", &cfg.ReconnectMaxDelay)
	envDuration("REALTIME_HANDSHAKE_TIMEOUT", &cfg.HandshakeTimeout)
	envDuration("REALTIME_WRITE_TIMEOUT", &cfg.WriteTimeout)
	envDuration("REALTIME_READ_TIMEOUT", &cfg.ReadTimeout)
	if cfg.ReconnectMaxDelay < cfg.ReconnectBaseDelay {
		cfg.ReconnectMaxDelay = cfg.ReconnectBaseDelay
	}
	return cfg
}

func envDuration(key string, dst *time.Duration) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	if d, err := time.ParseDuration(v); err == nil && d > 0 {
		*dst = d
	}
}
