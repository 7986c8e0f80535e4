package upstream

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"astrohub/internal/models"
)

const (
	DefaultAPODURL    = "https://api.nasa.gov/planetary/apod"
	DefaultNEOFeedURL = "https://api.nasa.gov/neo/rest/v1/feed"

	nasaService = "nasa"
)

// NASAClient reads the Astronomy Picture of the Day and the near-earth-object feed
type NASAClient struct {
	apiKey     string
	apodURL    string
	neoFeedURL string
	client     *http.Client
	now        func() time.Time
}

// NewNASAClient creates a NASA feed client. Empty URLs use the public endpoints.
func NewNASAClient(apiKey, apodURL, neoFeedURL string, timeout time.Duration) *NASAClient {
	if apodURL == "" {
		apodURL = DefaultAPODURL
	}
	if neoFeedURL == "" {
		neoFeedURL = DefaultNEOFeedURL
	}
	return &NASAClient{
		apiKey:     apiKey,
		apodURL:    apodURL,
		neoFeedURL: neoFeedURL,
		client:     NewHTTPClient(timeout),
		now:        time.Now,
	}
}

// Configured reports whether the API key is set
func (c *NASAClient) Configured() bool {
	return c.apiKey != ""
}

// APOD fetches today's Astronomy Picture of the Day, filling defaults for
// fields the feed omits
func (c *NASAClient) APOD(ctx context.Context) (*models.APOD, error) {
	if c.apiKey == "" {
		return nil, MissingCredential(nasaService, "NASA_API_KEY")
	}

	q := url.Values{}
	q.Set("api_key", c.apiKey)

	var apod models.APOD
	if err := getJSON(ctx, c.client, nasaService, c.apodURL+"?"+q.Encode(), nil, &apod); err != nil {
		return nil, asFeedFailure(err)
	}

	if apod.Date == "" {
		apod.Date = c.now().Format("2006-01-02")
	}
	if apod.MediaType == "" {
		apod.MediaType = "image"
	}
	if apod.Title == "" {
		apod.Title = "Astronomy Picture of the Day"
	}
	if apod.HDURL == "" {
		apod.HDURL = apod.URL
	}
	return &apod, nil
}

// NEOFeed fetches near-earth objects approaching between start and end (YYYY-MM-DD)
func (c *NASAClient) NEOFeed(ctx context.Context, start, end string) (*models.NEOFeed, error) {
	if c.apiKey == "" {
		return nil, MissingCredential(nasaService, "NASA_API_KEY")
	}

	q := url.Values{}
	q.Set("start_date", start)
	q.Set("end_date", end)
	q.Set("api_key", c.apiKey)

	var feed models.NEOFeed
	if err := getJSON(ctx, c.client, nasaService, c.neoFeedURL+"?"+q.Encode(), nil, &feed); err != nil {
		return nil, asFeedFailure(err)
	}
	return &feed, nil
}
