package upstream

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"time"
)

const weatherService = "space-weather"

// WeatherClient proxies the astronomical seeing forecast feed
type WeatherClient struct {
	baseURL string
	client  *http.Client
}

// NewWeatherClient creates a weather feed client for baseURL
func NewWeatherClient(baseURL string, timeout time.Duration) *WeatherClient {
	return &WeatherClient{
		baseURL: baseURL,
		client:  NewHTTPClient(timeout),
	}
}

// Configured reports whether the base URL is set
func (c *WeatherClient) Configured() bool {
	return c.baseURL != ""
}

// Forecast returns the feed's JSON for the given coordinates unchanged
func (c *WeatherClient) Forecast(ctx context.Context, lat, lon string) (json.RawMessage, error) {
	if c.baseURL == "" {
		return nil, MissingCredential(weatherService, "WEATHER_BASE_URL")
	}

	q := url.Values{}
	q.Set("lon", lon)
	q.Set("lat", lat)
	q.Set("ac", "0")
	q.Set("unit", "metric")
	q.Set("output", "json")
	q.Set("tzshift", "0")

	var body json.RawMessage
	if err := getJSON(ctx, c.client, weatherService, c.baseURL+"?"+q.Encode(), nil, &body); err != nil {
		return nil, asFeedFailure(err)
	}
	return body, nil
}
