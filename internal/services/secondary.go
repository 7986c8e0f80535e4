package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"astrohub/internal/catalog"
	"astrohub/internal/models"
	"astrohub/internal/upstream"
)

var (
	errNoSourceList = errors.New("source list not cached")
	errNoMatches    = errors.New("no matching records")
)

// secondary runs the dataset's lower-quality strategy. Results are not cached.
func (o *Orchestrator) secondary(ctx context.Context, ds *catalog.Dataset, req models.DatasetRequest) (models.Records, error) {
	spec := ds.Spec()

	var records models.Records
	var err error
	switch spec.Secondary.Kind {
	case models.SecondaryFilterCached:
		records, err = o.filterCached(ctx, ds, req)
	case models.SecondaryDeriveDetails:
		records, err = o.deriveDetails(ctx, ds, req)
	case models.SecondaryScrape:
		records, err = o.scrapeArticles(ctx, ds, req)
	default:
		return nil, fmt.Errorf("no secondary strategy for %s", spec.Dataset)
	}
	if err != nil {
		return nil, err
	}

	if spec.Image != nil && spec.Image.Mode == models.EnrichSync {
		o.resolveImages(ctx, ds, records)
	} else {
		o.peekImages(ctx, ds, records)
	}
	return records, nil
}

// filterCached narrows a cached broader list by the request's search text.
// When the broader list was never cached this strategy has nothing to offer.
func (o *Orchestrator) filterCached(ctx context.Context, ds *catalog.Dataset, req models.DatasetRequest) (models.Records, error) {
	spec := ds.Spec()

	var source models.Records
	if !o.cache.Get(ctx, spec.Secondary.From, &source) {
		return nil, errNoSourceList
	}

	matched := filterRecords(source, req.SearchText(), spec.FilterFields)
	if len(matched) == 0 {
		return nil, errNoMatches
	}
	if spec.Count > 0 && len(matched) > spec.Count {
		matched = matched[:spec.Count]
	}
	return matched, nil
}

// deriveDetails builds a details object from the matching cached list record
func (o *Orchestrator) deriveDetails(ctx context.Context, ds *catalog.Dataset, req models.DatasetRequest) (models.Records, error) {
	spec := ds.Spec()

	var source models.Records
	if !o.cache.Get(ctx, spec.Secondary.From, &source) {
		return nil, errNoSourceList
	}

	name := strings.TrimSpace(req.Name)
	for _, rec := range source {
		if !strings.EqualFold(strings.TrimSpace(rec.String("name")), name) {
			continue
		}
		return models.Records{detailsFromListing(rec)}, nil
	}
	return nil, errNoMatches
}

func detailsFromListing(rec models.Record) models.Record {
	name := rec.String("name")
	agency := rec.String("space_agency")
	status := rec.String("current_status")

	var missions []string
	if list, ok := rec["notable_missions"].([]any); ok {
		for _, m := range list {
			if s, ok := m.(string); ok && s != "" {
				missions = append(missions, s)
			}
		}
	}

	bio := fmt.Sprintf("%s is a %s astronaut", name, rec.String("nationality"))
	if agency != "" {
		bio += " with " + agency
	}
	if status != "" {
		bio += ", currently " + status
	}
	bio += "."

	first := "Details about the first mission are not available."
	extra := "No further information is available."
	if len(missions) > 0 {
		first = fmt.Sprintf("%s flew first on %s.", name, missions[0])
		extra = "Notable missions: " + strings.Join(missions, ", ") + "."
	}

	return models.Record{
		"biography":      bio,
		"firstMission":   first,
		"family":         fmt.Sprintf("No family information is available for %s.", name),
		"additionalInfo": extra,
	}
}

// scrapeArticles extracts articles from the configured source pages
func (o *Orchestrator) scrapeArticles(ctx context.Context, ds *catalog.Dataset, req models.DatasetRequest) (models.Records, error) {
	if o.articles == nil || len(o.config.ArticleSourceURLs) == 0 {
		return nil, errNoSourceList
	}
	spec := ds.Spec()

	scraped := make([]models.Record, len(o.config.ArticleSourceURLs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.config.EnrichConcurrency)
	for i, pageURL := range o.config.ArticleSourceURLs {
		i, pageURL := i, pageURL
		g.Go(func() error {
			article, err := o.articles.Scrape(gctx, pageURL)
			if err != nil {
				log.Printf("⚠️  [SCRAPER] Skipping %s: %v", pageURL, err)
				return nil
			}
			scraped[i] = o.articleRecord(article, req)
			return nil
		})
	}
	_ = g.Wait()

	var records models.Records
	for _, rec := range scraped {
		if rec != nil {
			records = append(records, rec)
		}
	}
	if q := strings.TrimSpace(req.Query); q != "" {
		records = filterRecords(records, q, spec.FilterFields)
	}
	if len(records) == 0 {
		return nil, errNoMatches
	}
	if spec.Count > 0 && len(records) > spec.Count {
		records = records[:spec.Count]
	}
	return records, nil
}

func (o *Orchestrator) articleRecord(a *upstream.ScrapedArticle, req models.DatasetRequest) models.Record {
	date := a.Date
	if date.IsZero() && req.Date != "" {
		if d, err := time.Parse("2006-01-02", req.Date); err == nil {
			date = d
		}
	}
	if date.IsZero() {
		date = o.now()
	}

	return models.Record{
		"title":   a.Title,
		"summary": a.Summary,
		"link":    a.Link,
		"date":    date.Format("2006-01-02"),
	}
}

// filterRecords keeps records where every search term appears, case-insensitively,
// in at least one of fields. String-array fields match on any element.
func filterRecords(records models.Records, text string, fields []string) models.Records {
	terms := strings.Fields(strings.ToLower(text))
	if len(terms) == 0 {
		return records
	}

	var out models.Records
	for _, rec := range records {
		haystack := searchableText(rec, fields)
		all := true
		for _, term := range terms {
			if !strings.Contains(haystack, term) {
				all = false
				break
			}
		}
		if all {
			out = append(out, rec)
		}
	}
	return out
}

func searchableText(rec models.Record, fields []string) string {
	var b strings.Builder
	for _, f := range fields {
		switch v := rec[f].(type) {
		case string:
			b.WriteString(strings.ToLower(v))
			b.WriteByte('\n')
		case []any:
			for _, e := range v {
				if s, ok := e.(string); ok {
					b.WriteString(strings.ToLower(s))
					b.WriteByte('\n')
				}
			}
		}
	}
	return b.String()
}
