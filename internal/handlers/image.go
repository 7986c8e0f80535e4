package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"
)

// ImageProvider resolves a query to an image URL and never fails
type ImageProvider interface {
	Resolve(ctx context.Context, query string) string
}

// ImageHandler exposes image resolution for clients that render their own cards
type ImageHandler struct {
	images ImageProvider
}

// NewImageHandler creates a new image handler
func NewImageHandler(images ImageProvider) *ImageHandler {
	return &ImageHandler{images: images}
}

// Image returns an image URL for the query
// GET /api/image?query=
func (h *ImageHandler) Image(c *fiber.Ctx) error {
	var q ImageQuery
	if err := c.QueryParser(&q); err != nil {
		return badRequest(c, "Invalid query parameters")
	}
	trimFields(&q.Query)
	if err := validate.Struct(q); err != nil {
		return badRequest(c, validationMessage(err))
	}

	return c.JSON(fiber.Map{
		"query":    q.Query,
		"imageUrl": h.images.Resolve(c.UserContext(), q.Query),
	})
}
