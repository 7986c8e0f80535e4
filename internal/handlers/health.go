package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
)

// HealthHandler handles health check requests
type HealthHandler struct {
	upstreams  map[string]bool
	cacheSize  func() int
	mirrorPing func(ctx context.Context) error
}

// NewHealthHandler creates a new health handler. upstreams maps each upstream
// name to whether its credential or URL is configured. mirrorPing may be nil
// when the cache has no mirror.
func NewHealthHandler(upstreams map[string]bool, cacheSize func() int, mirrorPing func(ctx context.Context) error) *HealthHandler {
	return &HealthHandler{upstreams: upstreams, cacheSize: cacheSize, mirrorPing: mirrorPing}
}

// Handle responds with server health status
func (h *HealthHandler) Handle(c *fiber.Ctx) error {
	status := "healthy"
	for _, ok := range h.upstreams {
		if !ok {
			// Still serving: generative endpoints degrade to fallback data
			status = "degraded"
			break
		}
	}

	body := fiber.Map{
		"status":        status,
		"upstreams":     h.upstreams,
		"cache_entries": h.cacheSize(),
		"timestamp":     time.Now().Format(time.RFC3339),
	}

	if h.mirrorPing != nil {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()
		if err := h.mirrorPing(ctx); err != nil {
			body["cache_mirror"] = "unavailable"
			body["status"] = "degraded"
		} else {
			body["cache_mirror"] = "ok"
		}
	}

	return c.JSON(body)
}
