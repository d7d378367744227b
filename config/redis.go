package config

import "os"

// RedisConfig holds connection settings for the relay's Redis bridge and
// shared message ID counter.
type RedisConfig struct {
	// URL is a redis:// URL. When it parses it overrides Addr, Password and DB.
	URL      string `json:"url"`
	Addr     string `json:"addr"`
	Password string `json:"-"`
	DB       int    `json:"db"`
	// Prefix namespaces every key and channel the relay touches.
	Prefix string `json:"prefix"`
}

// DefaultRedisConfig returns the local development settings.
func DefaultRedisConfig() *RedisConfig {
	return &RedisConfig{
		Addr:   "localhost:6379",
		Prefix: "realtime:chat:",
	}
}

// RedisConfigFromEnv overlays REDIS_* environment variables on the defaults.
func RedisConfigFromEnv() *RedisConfig {
	cfg := DefaultRedisConfig()

	cfg.URL = os.Getenv("REDIS_URL")
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Addr = addr
	}
	cfg.Password = os.Getenv("REDIS_PASSWORD")
	envInt("REDIS_DB", &cfg.DB)
	if prefix := os.Getenv("REDIS_CHAT_PREFIX"); prefix != "" {
		cfg.Prefix = prefix
	}
	return cfg
}
