package upstream

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/markusmobius/go-trafilatura"
	"golang.org/x/time/rate"
)

const (
	scraperService       = "scraper"
	maxScrapeBodySize    = 10 * 1024 * 1024 // 10MB
	maxConcurrentScrapes = 4
	summaryLength        = 320
)

// ScrapedArticle is the main content extracted from one news page
type ScrapedArticle struct {
	Title   string
	Summary string
	Link    string
	Date    time.Time
}

// ArticleScraper extracts article metadata from web pages with trafilatura
type ArticleScraper struct {
	client            *http.Client
	robots            *RobotsChecker
	domainLimiters    sync.Map // map[string]*rate.Limiter
	semaphore         chan struct{}
	allowPrivateHosts bool
}

// NewArticleScraper creates a scraper with the given per-page timeout
func NewArticleScraper(timeout time.Duration) *ArticleScraper {
	client := NewHTTPClient(timeout)
	return &ArticleScraper{
		client:    client,
		robots:    NewRobotsChecker(defaultUserAgent, client),
		semaphore: make(chan struct{}, maxConcurrentScrapes),
	}
}

// Scrape fetches pageURL and extracts its title, summary and publication date
func (s *ArticleScraper) Scrape(ctx context.Context, pageURL string) (*ScrapedArticle, error) {
	parsed, err := s.validateURL(pageURL)
	if err != nil {
		return nil, &Error{Service: scraperService, Kind: KindBadRequest, Message: err.Error()}
	}

	allowed, crawlDelay := s.robots.CanFetch(ctx, parsed)
	if !allowed {
		return nil, &Error{Service: scraperService, Kind: KindBadRequest, Message: "blocked by robots.txt: " + pageURL}
	}

	if err := s.domainLimiter(parsed.Host, crawlDelay).Wait(ctx); err != nil {
		return nil, ClassifyError(scraperService, err)
	}

	select {
	case s.semaphore <- struct{}{}:
		defer func() { <-s.semaphore }()
	case <-ctx.Done():
		return nil, ClassifyError(scraperService, ctx.Err())
	}

	body, err := s.fetch(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	result, err := trafilatura.Extract(bytes.NewReader(body), trafilatura.Options{OriginalURL: parsed})
	if err != nil {
		return nil, &Error{Service: scraperService, Kind: KindTransient, Message: "failed to extract content", Cause: err}
	}
	if result == nil || (result.ContentText == "" && result.Metadata.Title == "") {
		return nil, &Error{Service: scraperService, Kind: KindTransient, Message: "no content extracted from " + pageURL}
	}

	summary := strings.TrimSpace(result.Metadata.Description)
	if summary == "" {
		summary = summarize(result.ContentText, summaryLength)
	}

	article := &ScrapedArticle{
		Title:   strings.TrimSpace(result.Metadata.Title),
		Summary: summary,
		Link:    pageURL,
		Date:    result.Metadata.Date,
	}
	if article.Title == "" {
		article.Title = summarize(result.ContentText, 80)
	}

	log.Printf("✅ [SCRAPER] Extracted article from %s (%d chars)", pageURL, len(result.ContentText))
	return article, nil
}

func (s *ArticleScraper) fetch(ctx context.Context, pageURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, &Error{Service: scraperService, Kind: KindBadRequest, Message: "failed to create request", Cause: err}
	}
	req.Header.Set("User-Agent", defaultUserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, ClassifyError(scraperService, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyLength))
		return nil, ClassifyHTTPError(scraperService, resp.StatusCode, resp.Header, string(snippet))
	}

	contentType := strings.ToLower(resp.Header.Get("Content-Type"))
	if !strings.Contains(contentType, "text/html") && !strings.Contains(contentType, "application/xhtml+xml") {
		return nil, &Error{Service: scraperService, Kind: KindBadRequest, Message: "unsupported content type: " + contentType}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxScrapeBodySize))
	if err != nil {
		return nil, ClassifyError(scraperService, err)
	}
	if len(data) >= maxScrapeBodySize {
		return nil, &Error{Service: scraperService, Kind: KindBadRequest, Message: "response body too large"}
	}
	return data, nil
}

// validateURL rejects non-HTTP schemes and private hosts
func (s *ArticleScraper) validateURL(rawURL string) (*url.URL, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL format: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("only HTTP/HTTPS URLs are supported, got: %s", parsed.Scheme)
	}
	if s.allowPrivateHosts {
		return parsed, nil
	}

	hostname := strings.ToLower(parsed.Hostname())
	if hostname == "localhost" || hostname == "127.0.0.1" || hostname == "::1" {
		return nil, fmt.Errorf("localhost URLs are not allowed")
	}

	privatePrefixes := []string{
		"192.168.", "10.", "172.16.", "172.17.", "172.18.", "172.19.",
		"172.20.", "172.21.", "172.22.", "172.23.", "172.24.", "172.25.",
		"172.26.", "172.27.", "172.28.", "172.29.", "172.30.", "172.31.",
		"169.254.", // Link-local
		"fd",       // IPv6 private
	}
	for _, prefix := range privatePrefixes {
		if strings.HasPrefix(hostname, prefix) {
			return nil, fmt.Errorf("private IP addresses are not allowed")
		}
	}
	return parsed, nil
}

// domainLimiter returns the per-domain limiter, derived from the crawl delay on first use
func (s *ArticleScraper) domainLimiter(domain string, crawlDelay time.Duration) *rate.Limiter {
	if limiter, ok := s.domainLimiters.Load(domain); ok {
		return limiter.(*rate.Limiter)
	}

	perSecond := 1.0 / crawlDelay.Seconds()
	if perSecond > 5.0 {
		perSecond = 5.0
	}
	if perSecond < 0.2 {
		perSecond = 0.2
	}

	actual, _ := s.domainLimiters.LoadOrStore(domain, rate.NewLimiter(rate.Limit(perSecond), 1))
	return actual.(*rate.Limiter)
}

// summarize cuts text at a word boundary near maxLen
func summarize(text string, maxLen int) string {
	text = strings.Join(strings.Fields(text), " ")
	if len(text) <= maxLen {
		return text
	}
	cut := strings.LastIndex(text[:maxLen], " ")
	if cut <= 0 {
		cut = maxLen
	}
	return strings.TrimSpace(text[:cut]) + "..."
}
