package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
)

// RequestIDLocal is the fiber.Ctx locals key holding the request ID
const RequestIDLocal = "request_id"

// RequestID tags every request with an X-Request-ID, reusing the client's when present
func RequestID() fiber.Handler {
	return requestid.New(requestid.Config{
		Header:     fiber.HeaderXRequestID,
		Generator:  uuid.NewString,
		ContextKey: RequestIDLocal,
	})
}
