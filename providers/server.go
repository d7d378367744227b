// Package providers assembles the reference relay: hub, chat service,
// optional Redis bridge and the fasthttp server in front of them.
package providers

import (
	"context"
	"net"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/orchestra-mcp/realtime/config"
	"github.com/orchestra-mcp/realtime/src/bridge"
	"github.com/orchestra-mcp/realtime/src/hub"
	"github.com/orchestra-mcp/realtime/src/metrics"
	"github.com/orchestra-mcp/realtime/src/service"
	"github.com/orchestra-mcp/realtime/src/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp"
)

// Server is the relay process.
type Server struct {
	cfg      *config.SocketConfig
	redisCfg *config.RedisConfig
	registry *prometheus.Registry
	base     zerolog.Logger
	logger   zerolog.Logger

	hub    *hub.Hub
	chat   *service.Chat
	bridge bridge.Bridge
	app    *fiber.App
	http   *fasthttp.Server
}

// Option customizes a Server.
type Option func(*Server)

// WithRedis enables the cross-instance bridge and the shared message ID sequence.
func WithRedis(cfg *config.RedisConfig) Option {
	return func(s *Server) { s.redisCfg = cfg }
}

// WithRegistry registers relay metrics on reg and serves it at /metrics.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(s *Server) { s.registry = reg }
}

// NewServer wires the relay components. Nothing runs until Start.
func NewServer(cfg *config.SocketConfig, logger zerolog.Logger, opts ...Option) *Server {
	s := &Server{
		cfg:    cfg,
		base:   logger,
		logger: logger.With().Str("component", "relay").Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.registry == nil {
		s.registry = prometheus.NewRegistry()
	}

	s.hub = hub.New(logger,
		hub.WithMetrics(metrics.NewRelay(s.registry)),
		hub.WithSendBuffer(cfg.SendBufferSize),
	)
	s.app = fiber.New()
	s.registerRoutes(s.app)
	s.http = &fasthttp.Server{
		Handler:         s.Handler(),
		Name:            "realtime-relay",
		ReadBufferSize:  4096,
		CloseOnShutdown: true,
	}
	return s
}

// Hub returns the relay hub.
func (s *Server) Hub() *hub.Hub { return s.hub }

// Chat returns the chat service. It is nil before Start.
func (s *Server) Chat() *service.Chat { return s.chat }

// Start runs the hub and attaches the Redis bridge when configured.
func (s *Server) Start() {
	go s.hub.Run()

	// Attempt Redis bridge connection (non-fatal if unavailable).
	var ids service.Sequence
	if rb := s.initBridge(); rb != nil {
		ids = bridge.NewRedisSequence(rb.Client(), s.redisCfg.Prefix)
	}
	s.chat = service.New(s.hub, ids, s.base)
	s.logger.Info().Bool("bridge", s.bridge != nil).Msg("relay started")
}

// initBridge tries to start the Redis pub/sub bridge.
// If Redis is not reachable, the hub runs in standalone mode.
func (s *Server) initBridge() *bridge.RedisBridge {
	if s.redisCfg == nil {
		return nil
	}
	rb := bridge.NewRedisBridge(s.redisCfg, s.hub, s.base)
	if err := rb.Start(); err != nil {
		s.logger.Warn().Err(err).Msg("redis bridge unavailable, running standalone")
		_ = rb.Stop()
		return nil
	}

	s.bridge = rb
	s.hub.SetBridge(rb)
	s.logger.Info().Str("redis_addr", s.redisCfg.Addr).Msg("redis bridge connected")
	return rb
}

// ListenAndServe serves on the configured address until Shutdown.
func (s *Server) ListenAndServe() error {
	s.logger.Info().Str("addr", s.cfg.Addr).Msg("listening")
	return s.http.ListenAndServe(s.cfg.Addr)
}

// Serve serves on ln until Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	return s.http.Serve(ln)
}

// Shutdown closes every socket with 1001, stops the listener, the bridge
// and the hub.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.CloseAll(types.CloseGoingAway, "server shutting down")
	err := s.http.ShutdownWithContext(ctx)

	if s.bridge != nil {
		if berr := s.bridge.Stop(); berr != nil {
			s.logger.Error().Err(berr).Msg("bridge stop error")
		}
		s.bridge = nil
	}
	s.hub.Stop()
	return err
}

func (s *Server) pingInterval() time.Duration {
	return time.Duration(s.cfg.PingInterval) * time.Second
}

func (s *Server) writeTimeout() time.Duration {
	return time.Duration(s.cfg.WriteTimeout) * time.Second
}
