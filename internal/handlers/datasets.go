package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"astrohub/internal/models"
	"astrohub/internal/services"
)

// DataSourceHeader reports which acquisition stage produced a dataset response
const DataSourceHeader = "X-Data-Source"

// DatasetAcquirer is the fallback chain orchestrator
type DatasetAcquirer interface {
	Acquire(ctx context.Context, req models.DatasetRequest) services.Result
}

// StatsProvider builds the combined stats payload
type StatsProvider interface {
	Stats(ctx context.Context) (*models.Stats, services.Source)
}

// DatasetHandler serves the generative datasets. These endpoints never fail
// on upstream errors; degraded data is visible only through X-Data-Source.
type DatasetHandler struct {
	acquirer DatasetAcquirer
	stats    StatsProvider
}

// NewDatasetHandler creates a new dataset handler
func NewDatasetHandler(acquirer DatasetAcquirer, stats StatsProvider) *DatasetHandler {
	return &DatasetHandler{acquirer: acquirer, stats: stats}
}

// Astronauts returns the astronaut list
// GET /api/astronauts
func (h *DatasetHandler) Astronauts(c *fiber.Ctx) error {
	return h.list(c, models.DatasetRequest{Dataset: models.DatasetAstronauts})
}

// SearchAstronauts returns astronauts matching a name, nationality or agency
// POST /api/search-astronauts
func (h *DatasetHandler) SearchAstronauts(c *fiber.Ctx) error {
	var req SearchRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	trimFields(&req.Query)
	if err := validate.Struct(req); err != nil {
		return badRequest(c, validationMessage(err))
	}

	return h.list(c, models.DatasetRequest{Dataset: models.DatasetAstronautSearch, Query: req.Query})
}

// AstronautDetails returns the biography object of one astronaut
// POST /api/astronaut-details
func (h *DatasetHandler) AstronautDetails(c *fiber.Ctx) error {
	var req DetailsRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	trimFields(&req.Name)
	if err := validate.Struct(req); err != nil {
		return badRequest(c, validationMessage(err))
	}

	result := h.acquirer.Acquire(c.UserContext(), models.DatasetRequest{Dataset: models.DatasetAstronautDetails, Name: req.Name})
	c.Set(DataSourceHeader, string(result.Source))
	if len(result.Records) == 0 {
		return c.JSON(fiber.Map{})
	}

	details := result.Records[0]
	delete(details, "name")
	return c.JSON(details)
}

// Missions returns the space mission list
// GET /api/missions
func (h *DatasetHandler) Missions(c *fiber.Ctx) error {
	return h.list(c, models.DatasetRequest{Dataset: models.DatasetMissions})
}

// Quiz returns the quiz questions
// GET /api/quiz
func (h *DatasetHandler) Quiz(c *fiber.Ctx) error {
	return h.list(c, models.DatasetRequest{Dataset: models.DatasetQuiz})
}

// Articles returns articles for a date or a search query
// GET /api/articles?date=YYYY-MM-DD or ?query=
func (h *DatasetHandler) Articles(c *fiber.Ctx) error {
	var q ArticlesQuery
	if err := c.QueryParser(&q); err != nil {
		return badRequest(c, "Invalid query parameters")
	}
	trimFields(&q.Date, &q.Query)
	if err := validate.Struct(q); err != nil {
		return badRequest(c, validationMessage(err))
	}

	return h.list(c, models.DatasetRequest{Dataset: models.DatasetArticles, Date: q.Date, Query: q.Query})
}

// Stats returns generated spaceflight figures plus NEO feed asteroid data
// GET /api/nasa/stats
func (h *DatasetHandler) Stats(c *fiber.Ctx) error {
	stats, source := h.stats.Stats(c.UserContext())
	c.Set(DataSourceHeader, string(source))
	return c.JSON(stats)
}

// MemoryCards returns the memory game cards in random order
// GET /api/memory-cards
func (h *DatasetHandler) MemoryCards(c *fiber.Ctx) error {
	return c.JSON(services.MemoryCards())
}

func (h *DatasetHandler) list(c *fiber.Ctx, req models.DatasetRequest) error {
	result := h.acquirer.Acquire(c.UserContext(), req)
	c.Set(DataSourceHeader, string(result.Source))
	if result.Records == nil {
		return c.JSON([]models.Record{})
	}
	return c.JSON(result.Records)
}
