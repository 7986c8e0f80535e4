package upstream

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"
)

const (
	DefaultPixabayURL = "https://pixabay.com/api/"

	pixabayService = "pixabay"
)

// ErrNoImage means the search succeeded but returned no hits
var ErrNoImage = errors.New("no image found")

// PixabayClient searches Pixabay for science photos
type PixabayClient struct {
	apiKey  string
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
}

type pixabayResponse struct {
	Total int `json:"total"`
	Hits  []struct {
		WebformatURL string `json:"webformatURL"`
	} `json:"hits"`
}

// NewPixabayClient creates an image search client paced at ratePerSec requests per second
func NewPixabayClient(apiKey, baseURL string, timeout time.Duration, ratePerSec float64) *PixabayClient {
	if baseURL == "" {
		baseURL = DefaultPixabayURL
	}
	if ratePerSec <= 0 {
		ratePerSec = 1.5
	}
	return &PixabayClient{
		apiKey:  apiKey,
		baseURL: baseURL,
		client:  NewHTTPClient(timeout),
		limiter: rate.NewLimiter(rate.Limit(ratePerSec), int(ratePerSec*4)+1),
	}
}

// Configured reports whether the API key is set
func (c *PixabayClient) Configured() bool {
	return c.apiKey != ""
}

// Search returns the first hit's web-format URL for query, or ErrNoImage
func (c *PixabayClient) Search(ctx context.Context, query string) (string, error) {
	if c.apiKey == "" {
		return "", MissingCredential(pixabayService, "PIXABAY_API_KEY")
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return "", ClassifyError(pixabayService, err)
	}

	q := url.Values{}
	q.Set("key", c.apiKey)
	q.Set("q", query)
	q.Set("image_type", "photo")
	q.Set("category", "science")
	q.Set("orientation", "horizontal")
	q.Set("safesearch", "true")

	var resp pixabayResponse
	if err := getJSON(ctx, c.client, pixabayService, c.baseURL+"?"+q.Encode(), nil, &resp); err != nil {
		return "", err
	}

	for _, hit := range resp.Hits {
		if hit.WebformatURL != "" {
			return hit.WebformatURL, nil
		}
	}
	return "", ErrNoImage
}
