package services

import (
	"context"
	"log"

	"golang.org/x/sync/errgroup"

	"astrohub/internal/models"
)

// StatsService combines generated spaceflight figures with the NEO feed
type StatsService struct {
	orchestrator *Orchestrator
	feeds        *FeedService
}

// NewStatsService creates the stats service
func NewStatsService(orchestrator *Orchestrator, feeds *FeedService) *StatsService {
	return &StatsService{orchestrator: orchestrator, feeds: feeds}
}

// Stats never fails. asteroid_data is null when the NEO feed is unavailable.
func (s *StatsService) Stats(ctx context.Context) (*models.Stats, Source) {
	var (
		generated Result
		asteroids *models.AsteroidData
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		generated = s.orchestrator.Acquire(gctx, models.DatasetRequest{Dataset: models.DatasetStats})
		return nil
	})
	g.Go(func() error {
		data, err := s.feeds.AsteroidData(gctx)
		if err != nil {
			log.Printf("⚠️  [STATS] Asteroid data unavailable: %v", err)
			return nil
		}
		asteroids = data
		return nil
	})
	_ = g.Wait()

	stats := &models.Stats{AsteroidData: asteroids}
	if len(generated.Records) > 0 {
		stats.LaunchesByYear = generated.Records[0]["launches_by_year"]
		stats.MissionsByType = generated.Records[0]["missions_by_type"]
	}
	return stats, generated.Source
}
