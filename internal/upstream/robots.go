package upstream

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/temoto/robotstxt"
)

const (
	defaultCrawlDelay = 1 * time.Second
	maxCrawlDelay     = 10 * time.Second
)

// RobotsChecker fetches and caches robots.txt per origin
type RobotsChecker struct {
	cache     *gocache.Cache
	userAgent string
	client    *http.Client
}

// NewRobotsChecker creates a robots.txt checker
func NewRobotsChecker(userAgent string, client *http.Client) *RobotsChecker {
	return &RobotsChecker{
		cache:     gocache.New(24*time.Hour, 1*time.Hour),
		userAgent: userAgent,
		client:    client,
	}
}

// CanFetch reports whether pageURL may be fetched and the crawl delay to honor.
// Missing or unreadable robots.txt files allow everything.
func (rc *RobotsChecker) CanFetch(ctx context.Context, pageURL *url.URL) (bool, time.Duration) {
	origin := pageURL.Scheme + "://" + pageURL.Host

	if cached, found := rc.cache.Get(origin); found {
		return rc.test(cached.(*robotstxt.RobotsData), pageURL)
	}

	data, err := rc.fetch(ctx, origin)
	if err != nil {
		return true, defaultCrawlDelay
	}

	rc.cache.Set(origin, data, gocache.DefaultExpiration)
	return rc.test(data, pageURL)
}

func (rc *RobotsChecker) fetch(ctx context.Context, origin string) (*robotstxt.RobotsData, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, origin+"/robots.txt", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", rc.userAgent)

	resp, err := rc.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("robots.txt returned %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1*1024*1024)) // Max 1MB
	if err != nil {
		return nil, err
	}
	return robotstxt.FromBytes(body)
}

func (rc *RobotsChecker) test(data *robotstxt.RobotsData, pageURL *url.URL) (bool, time.Duration) {
	group := data.FindGroup(rc.userAgent)
	path := pageURL.EscapedPath()
	if path == "" {
		path = "/"
	}

	delay := defaultCrawlDelay
	if group.CrawlDelay > 0 {
		delay = group.CrawlDelay
		if delay > maxCrawlDelay {
			delay = maxCrawlDelay
		}
	}
	return group.Test(path), delay
}
