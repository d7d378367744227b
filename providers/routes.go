package providers

import (
	"strings"

	"github.com/fasthttp/websocket"
	"github.com/google/uuid"
	"github.com/orchestra-mcp/realtime/src/hub"
	"github.com/orchestra-mcp/realtime/src/transport"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

// MetricsPath serves the Prometheus registry.
const MetricsPath = "/metrics"

// userNamespace derives stable user IDs from tokens.
var userNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("realtime/chat-user"))

// Handler returns the root fasthttp handler. The chat socket is upgraded on
// the raw request because fiber v3 does not expose *fasthttp.RequestCtx.
func (s *Server) Handler() fasthttp.RequestHandler {
	metricsHandler := fasthttpadaptor.NewFastHTTPHandler(
		promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}),
	)
	api := s.app.Handler()

	return func(ctx *fasthttp.RequestCtx) {
		switch string(ctx.Path()) {
		case transport.ChatPath, strings.TrimSuffix(transport.ChatPath, "/"):
			s.handleUpgrade(ctx)
		case MetricsPath:
			metricsHandler(ctx)
		default:
			api(ctx)
		}
	}
}

// UserID maps a connection token to the user it identifies.
func UserID(token string) string {
	return uuid.NewSHA1(userNamespace, []byte(token)).String()
}

func (s *Server) upgrader() *websocket.FastHTTPUpgrader {
	return &websocket.FastHTTPUpgrader{
		ReadBufferSize:  s.cfg.ReadBufferSize,
		WriteBufferSize: s.cfg.WriteBufferSize,
		CheckOrigin:     s.checkOrigin,
	}
}

// checkOrigin admits requests without an Origin header (non-browser
// clients), same-host origins and the configured allow-list.
func (s *Server) checkOrigin(ctx *fasthttp.RequestCtx) bool {
	origin := ctx.Request.Header.Peek("Origin")
	if len(origin) == 0 {
		return true
	}
	for _, allowed := range s.cfg.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, string(origin)) {
			return true
		}
	}
	var uri fasthttp.URI
	if err := uri.Parse(nil, origin); err != nil {
		return false
	}
	return strings.EqualFold(string(uri.Host()), string(ctx.Host()))
}

func (s *Server) handleUpgrade(ctx *fasthttp.RequestCtx) {
	if !websocket.FastHTTPIsWebSocketUpgrade(ctx) {
		ctx.SetStatusCode(fasthttp.StatusUpgradeRequired)
		ctx.SetContentType("application/json")
		ctx.SetBodyString(`{"error":"upgrade_required","message":"WebSocket upgrade required"}`)
		return
	}
	token := string(ctx.QueryArgs().Peek("token"))
	if token == "" {
		ctx.SetStatusCode(fasthttp.StatusUnauthorized)
		ctx.SetContentType("application/json")
		ctx.SetBodyString(`{"error":"unauthorized","message":"token query parameter required"}`)
		return
	}
	if s.hub.ClientCount() >= s.cfg.MaxConnections {
		ctx.SetStatusCode(fasthttp.StatusServiceUnavailable)
		ctx.SetContentType("application/json")
		ctx.SetBodyString(`{"error":"capacity","message":"too many connections"}`)
		return
	}

	clientID := uuid.NewString()
	userID := UserID(token)
	userAgent := string(ctx.UserAgent())
	h := s.hub
	ping := s.pingInterval()
	write := s.writeTimeout()

	err := s.upgrader().Upgrade(ctx, func(ws *websocket.Conn) {
		conn := transport.NewConn(ws, write, 2*ping)
		client := hub.NewClient(clientID, userID, conn, h)
		client.UserAgent = userAgent
		h.Register(client)
		go client.WritePump(ping)
		client.ReadPump()
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("websocket upgrade failed")
	}
}
