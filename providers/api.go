package providers

import (
	"sort"
	"strconv"

	"github.com/gofiber/fiber/v3"
	"github.com/orchestra-mcp/realtime/src/transport"
	"github.com/orchestra-mcp/realtime/src/types"
	"github.com/tidwall/gjson"
)

func (s *Server) registerRoutes(r fiber.Router) {
	r.Get("/healthz", s.handleHealth)
	r.Get("/ws/info", s.handleInfo)
	r.Get("/ws/clients", s.handleClients)
	r.Get("/ws/threads", s.handleThreads)
	r.Post("/ws/threads/:id/order-status", s.handleOrderStatus)
}

func (s *Server) handleHealth(c fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

func (s *Server) handleInfo(c fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"websocket": true,
		"endpoint":  transport.ChatPath,
		"clients":   s.hub.ClientCount(),
		"threads":   len(s.hub.Threads()),
		"bridge":    s.bridge != nil && s.bridge.Available(),
	})
}

func (s *Server) handleClients(c fiber.Ctx) error {
	ids := s.hub.ConnectedClients()
	sort.Strings(ids)
	infos := make([]types.ClientInfo, 0, len(ids))
	for _, id := range ids {
		if info := s.hub.ClientInfo(id); info != nil {
			infos = append(infos, *info)
		}
	}
	return c.JSON(fiber.Map{"clients": infos, "count": len(infos)})
}

func (s *Server) handleThreads(c fiber.Ctx) error {
	threads := s.hub.Threads()
	result := make([]fiber.Map, 0, len(threads))
	for id, count := range threads {
		result = append(result, fiber.Map{"thread_id": id, "subscribers": count})
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i]["thread_id"].(int64) < result[j]["thread_id"].(int64)
	})
	return c.JSON(fiber.Map{"threads": result, "count": len(result)})
}

// handleOrderStatus lets the order backend push status changes into a thread.
// Body: {"order_id": 1, "status": "shipped"}.
func (s *Server) handleOrderStatus(c fiber.Ctx) error {
	threadID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || threadID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid thread id"})
	}
	if s.chat == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "relay not started"})
	}
	body := c.Body()
	if !gjson.ValidBytes(body) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid json"})
	}
	orderID := gjson.GetBytes(body, "order_id").Int()
	status := gjson.GetBytes(body, "status").String()
	if err := s.chat.PublishOrderStatus(threadID, orderID, status); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"published": true, "thread_id": threadID})
}
