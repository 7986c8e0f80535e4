package handlers

import (
	"context"
	"encoding/json"

	"github.com/gofiber/fiber/v2"

	"astrohub/internal/models"
)

// FeedProvider serves the factual feeds
type FeedProvider interface {
	APOD(ctx context.Context) (*models.APOD, error)
	SpaceWeather(ctx context.Context, lat, lon string) (json.RawMessage, error)
}

// FeedHandler exposes the NASA and seeing forecast feeds. Failures surface as
// typed errors; no data is ever made up.
type FeedHandler struct {
	feeds FeedProvider
}

// NewFeedHandler creates a new feed handler
func NewFeedHandler(feeds FeedProvider) *FeedHandler {
	return &FeedHandler{feeds: feeds}
}

// APOD returns NASA's Astronomy Picture of the Day
// GET /api/nasa/apod
func (h *FeedHandler) APOD(c *fiber.Ctx) error {
	apod, err := h.feeds.APOD(c.UserContext())
	if err != nil {
		return upstreamError(c, err)
	}
	return c.JSON(apod)
}

// SpaceWeather returns the astronomical seeing forecast for the caller's location
// GET /api/space-weather (X-Latitude, X-Longitude headers)
func (h *FeedHandler) SpaceWeather(c *fiber.Ctx) error {
	var coords CoordinatesHeaders
	if err := c.ReqHeaderParser(&coords); err != nil {
		return badRequest(c, "Longitude and Latitude are required")
	}
	trimFields(&coords.Latitude, &coords.Longitude)
	if err := validate.Struct(coords); err != nil {
		return badRequest(c, validationMessage(err))
	}

	body, err := h.feeds.SpaceWeather(c.UserContext(), coords.Latitude, coords.Longitude)
	if err != nil {
		return upstreamError(c, err)
	}

	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.Send(body)
}
