package services

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"astrohub/internal/cache"
	"astrohub/internal/models"
	"astrohub/internal/upstream"
)

// NASAFeed is the read-only NASA data source
type NASAFeed interface {
	APOD(ctx context.Context) (*models.APOD, error)
	NEOFeed(ctx context.Context, start, end string) (*models.NEOFeed, error)
}

// WeatherFeed is the read-only seeing forecast source
type WeatherFeed interface {
	Forecast(ctx context.Context, lat, lon string) (json.RawMessage, error)
}

// FeedService serves the factual feeds. Failures are returned as typed
// errors and are never replaced with made-up data.
type FeedService struct {
	nasa    NASAFeed
	weather WeatherFeed
	cache   *cache.Cache
	metrics *Metrics
	now     func() time.Time
}

// NewFeedService creates the feed service
func NewFeedService(nasa NASAFeed, weather WeatherFeed, c *cache.Cache) *FeedService {
	return &FeedService{
		nasa:    nasa,
		weather: weather,
		cache:   c,
		metrics: GetMetrics(),
		now:     time.Now,
	}
}

// APOD returns today's Astronomy Picture of the Day
func (s *FeedService) APOD(ctx context.Context) (*models.APOD, error) {
	key := "nasa_apod_" + s.now().UTC().Format("2006-01-02")

	var cached models.APOD
	if s.cache.Get(ctx, key, &cached) {
		return &cached, nil
	}

	apod, err := s.nasa.APOD(ctx)
	if err != nil {
		s.recordError("apod", err)
		return nil, err
	}

	if err := s.cache.Set(ctx, key, apod, 0); err != nil {
		log.Printf("⚠️  [FEEDS] Failed to cache APOD: %v", err)
	}
	return apod, nil
}

// SpaceWeather returns the seeing forecast for the coordinates unchanged
func (s *FeedService) SpaceWeather(ctx context.Context, lat, lon string) (json.RawMessage, error) {
	body, err := s.weather.Forecast(ctx, lat, lon)
	if err != nil {
		s.recordError("space_weather", err)
		return nil, err
	}
	return body, nil
}

// AsteroidData summarizes near-earth objects approaching since yesterday
func (s *FeedService) AsteroidData(ctx context.Context) (*models.AsteroidData, error) {
	today := s.now().UTC()
	start := today.AddDate(0, 0, -1).Format("2006-01-02")
	end := today.Format("2006-01-02")
	key := "neo_feed_" + start

	var cached models.AsteroidData
	if s.cache.Get(ctx, key, &cached) {
		return &cached, nil
	}

	feed, err := s.nasa.NEOFeed(ctx, start, end)
	if err != nil {
		s.recordError("neo_feed", err)
		return nil, err
	}

	data := &models.AsteroidData{
		Count:   feed.ElementCount,
		Details: feed.NearEarthObjects[start],
	}
	if data.Details == nil {
		data.Details = []json.RawMessage{}
	}

	if err := s.cache.Set(ctx, key, data, 0); err != nil {
		log.Printf("⚠️  [FEEDS] Failed to cache NEO feed: %v", err)
	}
	return data, nil
}

func (s *FeedService) recordError(feed string, err error) {
	code := upstream.KindOf(err).Code()
	s.metrics.RecordFeedError(feed, code)
	log.Printf("❌ [FEEDS] %s failed (%s): %v", feed, code, err)
}
