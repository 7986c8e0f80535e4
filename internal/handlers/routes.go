package handlers

import (
	"github.com/gofiber/fiber/v2"

	"astrohub/internal/middleware"
)

// Handlers groups every HTTP handler of the service
type Handlers struct {
	Datasets *DatasetHandler
	Feeds    *FeedHandler
	Chat     *ChatHandler
	Images   *ImageHandler
	Health   *HealthHandler
}

// Register mounts all routes on app
func (h *Handlers) Register(app *fiber.App, rl *middleware.RateLimitConfig) {
	app.Get("/health", h.Health.Handle)

	api := app.Group("/api", middleware.APIRateLimiter(rl))

	api.Get("/nasa/apod", h.Feeds.APOD)
	api.Get("/space-weather", h.Feeds.SpaceWeather)

	api.Get("/astronauts", h.Datasets.Astronauts)
	api.Post("/search-astronauts", h.Datasets.SearchAstronauts)
	api.Post("/astronaut-details", h.Datasets.AstronautDetails)
	api.Get("/missions", h.Datasets.Missions)
	api.Get("/quiz", h.Datasets.Quiz)
	api.Get("/memory-cards", h.Datasets.MemoryCards)
	api.Get("/nasa/stats", h.Datasets.Stats)
	api.Get("/articles", h.Datasets.Articles)
	api.Get("/image", h.Images.Image)

	api.Post("/chat", middleware.ChatRateLimiter(rl), h.Chat.Chat)
}
