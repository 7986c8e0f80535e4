package services

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"
	"unicode"

	"golang.org/x/sync/singleflight"

	"astrohub/internal/cache"
	"astrohub/internal/upstream"
)

const (
	imageCachePrefix   = "pixabay_"
	placeholderPattern = "https://picsum.photos/seed/%s/400/225"
	defaultImageSeed   = "space"
	maxSlugLength      = 60
)

// ImageSearcher finds an image URL for a free-text query
type ImageSearcher interface {
	Search(ctx context.Context, query string) (string, error)
}

// ImageResolver turns a query into an image URL and never fails:
// cached URL, then image search, then a deterministic placeholder
type ImageResolver struct {
	searcher ImageSearcher
	cache    *cache.Cache
	timeout  time.Duration
	group    singleflight.Group
	metrics  *Metrics
}

// NewImageResolver creates a resolver. searcher may be nil when no image
// search is configured; every query then resolves to a placeholder.
func NewImageResolver(searcher ImageSearcher, c *cache.Cache, timeout time.Duration) *ImageResolver {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ImageResolver{
		searcher: searcher,
		cache:    c,
		timeout:  timeout,
		metrics:  GetMetrics(),
	}
}

// Resolve returns an image URL for query. Search misses and failures yield
// the placeholder, which is cached like a hit.
func (r *ImageResolver) Resolve(ctx context.Context, query string) string {
	query = normalizeQuery(query)
	key := imageCachePrefix + query

	var url string
	if r.cache.Get(ctx, key, &url) && url != "" {
		r.metrics.RecordImageResolution("cache")
		return url
	}

	v, _, _ := r.group.Do(key, func() (any, error) {
		url, source := r.search(ctx, query)
		r.metrics.RecordImageResolution(source)
		if ctx.Err() != nil {
			// Caller gave up; a placeholder here says nothing about the query
			return url, nil
		}
		if err := r.cache.Set(ctx, key, url, 0); err != nil {
			log.Printf("⚠️  [IMAGES] Failed to cache image for %q: %v", query, err)
		}
		return url, nil
	})
	return v.(string)
}

// Peek returns the cached URL for query or its placeholder, without any network call
func (r *ImageResolver) Peek(ctx context.Context, query string) string {
	query = normalizeQuery(query)

	var url string
	if r.cache.Get(ctx, imageCachePrefix+query, &url) && url != "" {
		return url
	}
	return PlaceholderURL(query)
}

func (r *ImageResolver) search(ctx context.Context, query string) (string, string) {
	if r.searcher == nil || query == "" {
		return PlaceholderURL(query), "placeholder"
	}

	searchCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	url, err := r.searcher.Search(searchCtx, query)
	if err == nil && url != "" {
		return url, "search"
	}

	switch {
	case errors.Is(err, upstream.ErrNoImage):
		log.Printf("🖼️  [IMAGES] No results for %q, using placeholder", query)
	case upstream.KindOf(err) == upstream.KindCredentialMissing:
		// Expected when PIXABAY_API_KEY is unset
	default:
		log.Printf("⚠️  [IMAGES] Search failed for %q, using placeholder: %v", query, err)
	}
	return PlaceholderURL(query), "placeholder"
}

// PlaceholderURL derives a stable placeholder image from the query
func PlaceholderURL(query string) string {
	return strings.Replace(placeholderPattern, "%s", slugify(query), 1)
}

// slugify lower-cases the query and joins alphanumeric runs with dashes
func slugify(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if b.Len() > 0 && !dash {
			b.WriteByte('-')
			dash = true
		}
	}

	slug := strings.Trim(b.String(), "-")
	if len(slug) > maxSlugLength {
		slug = strings.TrimRight(slug[:maxSlugLength], "-")
	}
	if slug == "" {
		return defaultImageSeed
	}
	return slug
}

func normalizeQuery(q string) string {
	return strings.ToLower(strings.Join(strings.Fields(q), " "))
}
