package handlers

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"

	"astrohub/internal/services"
	"astrohub/internal/upstream"
)

// ErrorResponse is the body of every non-2xx response
type ErrorResponse struct {
	Code   string `json:"code"`
	Detail string `json:"detail"`
}

func errorResponse(c *fiber.Ctx, status int, code, detail string) error {
	return c.Status(status).JSON(ErrorResponse{Code: code, Detail: detail})
}

func badRequest(c *fiber.Ctx, detail string) error {
	return errorResponse(c, fiber.StatusBadRequest, "BAD_REQUEST", detail)
}

// upstreamError maps a typed upstream failure onto a status and stable code.
// Missing credentials are server misconfiguration, everything else is a bad gateway.
func upstreamError(c *fiber.Ctx, err error) error {
	kind := upstream.KindOf(err)

	status := fiber.StatusBadGateway
	switch {
	case kind == upstream.KindCredentialMissing:
		status = fiber.StatusInternalServerError
	case errors.Is(err, services.ErrCompletionUnavailable):
		return errorResponse(c, fiber.StatusServiceUnavailable, "COMPLETION_UNAVAILABLE", "The assistant is unavailable right now. Please try again later.")
	}

	log.Printf("❌ [API] %s %s failed: %v", c.Method(), c.Path(), err)
	return errorResponse(c, status, kind.Code(), err.Error())
}
