package services

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"astrohub/internal/cache"
	"astrohub/internal/catalog"
	"astrohub/internal/completion"
	"astrohub/internal/logging"
	"astrohub/internal/models"
	"astrohub/internal/schema"
	"astrohub/internal/upstream"
)

// Source names the acquisition stage that produced a result
type Source string

const (
	SourceCache     Source = "cache"
	SourceGenerated Source = "generated"
	SourceSecondary Source = "secondary"
	SourceFallback  Source = "fallback"
)

// Result is what Acquire hands back: records plus the stage that produced them
type Result struct {
	Records models.Records
	Source  Source
}

// TextCompleter is the resilient completion caller
type TextCompleter interface {
	Complete(ctx context.Context, req completion.Request) (string, error)
}

// ArticleSource extracts articles from web pages for the scrape strategy
type ArticleSource interface {
	Scrape(ctx context.Context, pageURL string) (*upstream.ScrapedArticle, error)
}

// OrchestratorConfig tunes the acquisition pipeline
type OrchestratorConfig struct {
	GenerationEnabled bool          // false when the completion credential is missing
	GenerationTimeout time.Duration // outer bound on the whole GENERATE stage
	EnrichmentTimeout time.Duration // bound on deferred image enrichment
	EnrichConcurrency int           // image lookups in flight per batch
	ArticleSourceURLs []string      // pages consulted by the scrape strategy
}

// Orchestrator drives CACHE_CHECK -> GENERATE -> SECONDARY -> FALLBACK per dataset
type Orchestrator struct {
	catalog  *catalog.Catalog
	cache    *cache.Cache
	caller   TextCompleter
	images   *ImageResolver
	articles ArticleSource
	config   OrchestratorConfig
	metrics  *Metrics

	group      singleflight.Group
	background sync.WaitGroup
	now        func() time.Time
}

// NewOrchestrator wires the pipeline. articles may be nil when scraping is disabled.
func NewOrchestrator(cat *catalog.Catalog, c *cache.Cache, caller TextCompleter, images *ImageResolver, articles ArticleSource, cfg OrchestratorConfig) *Orchestrator {
	if cfg.GenerationTimeout <= 0 {
		cfg.GenerationTimeout = 90 * time.Second
	}
	if cfg.EnrichmentTimeout <= 0 {
		cfg.EnrichmentTimeout = 2 * time.Minute
	}
	if cfg.EnrichConcurrency <= 0 {
		cfg.EnrichConcurrency = 4
	}

	if !cfg.GenerationEnabled {
		log.Printf("⚠️  [ORCHESTRATOR] Completion credential missing, generative datasets will use secondary and fallback data")
	}

	return &Orchestrator{
		catalog:  cat,
		cache:    c,
		caller:   caller,
		images:   images,
		articles: articles,
		config:   cfg,
		metrics:  GetMetrics(),
		now:      time.Now,
	}
}

// Acquire returns records for req. It never fails: when every other stage
// fails the embedded fallback set is returned.
func (o *Orchestrator) Acquire(ctx context.Context, req models.DatasetRequest) Result {
	start := time.Now()

	ds, ok := o.catalog.Get(req.Dataset)
	if !ok {
		slog.Error("unknown dataset requested", "dataset", req.Dataset)
		return Result{Records: models.Records{}, Source: SourceFallback}
	}

	key, err := ds.CacheKey(req)
	if err != nil {
		slog.Error("failed to render cache key", "dataset", req.Dataset, "error", err)
	}
	logger := logging.WithDataset(string(req.Dataset), key)

	result := o.acquire(ctx, ds, req, key, err == nil, logger)

	o.metrics.RecordAcquisition(string(req.Dataset), string(result.Source), time.Since(start).Seconds())
	logger.Debug("acquisition finished", "source", result.Source, "records", len(result.Records), "duration", time.Since(start))
	return result
}

func (o *Orchestrator) acquire(ctx context.Context, ds *catalog.Dataset, req models.DatasetRequest, key string, keyed bool, logger *slog.Logger) Result {
	name := string(ds.Name())

	// CACHE_CHECK
	if keyed {
		var cached models.Records
		if o.cache.Get(ctx, key, &cached) && len(cached) > 0 {
			return Result{Records: cached, Source: SourceCache}
		}
	}

	// GENERATE
	switch {
	case !o.config.GenerationEnabled:
		o.metrics.RecordStageFailure(name, "generate", upstream.KindCredentialMissing.String())
		logger.Debug("generation skipped: completion credential missing")
	case !keyed:
		o.metrics.RecordStageFailure(name, "generate", "cache_key")
	default:
		records, err := o.generateShared(ctx, ds, req, key)
		if err == nil {
			return Result{Records: records, Source: SourceGenerated}
		}
		o.metrics.RecordStageFailure(name, "generate", failureReason(err))
		logger.Warn("generation failed, trying secondary", "error", err)
	}

	// SECONDARY
	if ds.Spec().Secondary.Kind != models.SecondaryNone {
		records, err := o.secondary(ctx, ds, req)
		if err == nil {
			return Result{Records: records, Source: SourceSecondary}
		}
		o.metrics.RecordStageFailure(name, "secondary", failureReason(err))
		logger.Info("secondary strategy unavailable, using fallback", "error", err)
	}

	// FALLBACK
	return Result{Records: o.fallback(ctx, ds, req), Source: SourceFallback}
}

// generateShared collapses concurrent generations of the same key into one
func (o *Orchestrator) generateShared(ctx context.Context, ds *catalog.Dataset, req models.DatasetRequest, key string) (models.Records, error) {
	v, err, shared := o.group.Do(key, func() (any, error) {
		// Detached so one caller disconnecting does not fail the others
		genCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.config.GenerationTimeout)
		defer cancel()
		return o.generate(genCtx, ds, req, key)
	})
	if err != nil {
		return nil, err
	}
	records := v.(models.Records)
	if shared {
		return records.Clone(), nil
	}
	return records, nil
}

// generate calls the completion service, validates, enriches and caches
func (o *Orchestrator) generate(ctx context.Context, ds *catalog.Dataset, req models.DatasetRequest, key string) (models.Records, error) {
	spec := ds.Spec()

	prompt, err := ds.Prompt(req)
	if err != nil {
		return nil, err
	}

	var records models.Records
	var lastErr error
	for attempt := 1; attempt <= spec.GenerationAttempts; attempt++ {
		text, err := o.caller.Complete(ctx, completion.Request{
			Prompt:      prompt,
			Models:      spec.Models,
			MaxAttempts: spec.MaxAttempts,
			MaxTokens:   spec.MaxTokens,
			Temperature: spec.Temperature,
		})
		if err != nil {
			return nil, err
		}

		records, lastErr = schema.ParseAndValidate(text, ds.Schema())
		if lastErr == nil {
			break
		}
		o.metrics.RecordValidationError(string(spec.Dataset), failureReason(lastErr))
		slog.Warn("completion rejected by validator", "dataset", spec.Dataset, "attempt", attempt, "error", lastErr)
	}
	if lastErr != nil {
		return nil, lastErr
	}

	mode := models.EnrichSync
	if spec.Image != nil {
		mode = spec.Image.Mode
	}
	if mode == models.EnrichAsync {
		o.peekImages(ctx, ds, records)
	} else {
		o.resolveImages(ctx, ds, records)
	}

	if err := o.cache.Set(ctx, key, records, 0); err != nil {
		return nil, err
	}
	if mode == models.EnrichAsync {
		o.enrichLater(ds, key, records.Clone())
	}

	log.Printf("✅ [ORCHESTRATOR] Generated %d %s records", len(records), spec.Dataset)
	return records, nil
}

// resolveImages fills the image field of every record, blocking until done
func (o *Orchestrator) resolveImages(ctx context.Context, ds *catalog.Dataset, records models.Records) {
	spec := ds.Spec()
	if spec.Image == nil {
		return
	}

	urls := make([]string, len(records))
	g := new(errgroup.Group)
	g.SetLimit(o.config.EnrichConcurrency)
	for i, rec := range records {
		i, query := i, ds.ImageQuery(rec)
		g.Go(func() error {
			urls[i] = o.images.Resolve(ctx, query)
			return nil
		})
	}
	_ = g.Wait()

	for i, rec := range records {
		rec[spec.Image.Field] = urls[i]
	}
}

// peekImages fills the image field from the image cache or placeholders only
func (o *Orchestrator) peekImages(ctx context.Context, ds *catalog.Dataset, records models.Records) {
	spec := ds.Spec()
	if spec.Image == nil {
		return
	}
	for _, rec := range records {
		if s, _ := rec[spec.Image.Field].(string); s != "" {
			continue
		}
		rec[spec.Image.Field] = o.images.Peek(ctx, ds.ImageQuery(rec))
	}
}

// enrichLater resolves images after the response has shipped and swaps them
// into the cached list. Callers' copies are never touched.
func (o *Orchestrator) enrichLater(ds *catalog.Dataset, key string, snapshot models.Records) {
	spec := ds.Spec()
	name := string(spec.Dataset)

	o.background.Add(1)
	go func() {
		defer o.background.Done()

		ctx, cancel := context.WithTimeout(context.Background(), o.config.EnrichmentTimeout)
		defer cancel()

		queries := make([]string, len(snapshot))
		for i, rec := range snapshot {
			queries[i] = ds.ImageQuery(rec)
		}
		o.resolveImages(ctx, ds, snapshot)

		var cell models.Records
		changed, err := o.cache.Mutate(ctx, key, &cell, func() bool {
			updated := false
			for i := range cell {
				if i >= len(snapshot) || ds.ImageQuery(cell[i]) != queries[i] {
					continue
				}
				url := snapshot[i].String(spec.Image.Field)
				if url != "" && cell[i].String(spec.Image.Field) != url {
					cell[i][spec.Image.Field] = url
					updated = true
				}
			}
			return updated
		})

		switch {
		case err != nil:
			o.metrics.RecordBackgroundEnrichment(name, "error")
			log.Printf("⚠️  [ORCHESTRATOR] Deferred enrichment of %s failed: %v", key, err)
		case changed:
			o.metrics.RecordBackgroundEnrichment(name, "updated")
			log.Printf("🖼️  [ORCHESTRATOR] Deferred enrichment updated %s", key)
		default:
			o.metrics.RecordBackgroundEnrichment(name, "unchanged")
		}
	}()
}

// Wait blocks until deferred enrichment tasks finish or ctx is done
func (o *Orchestrator) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		o.background.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// fallback returns the embedded records filtered by the request's search
// text; zero matches return the full set. Never cached.
func (o *Orchestrator) fallback(ctx context.Context, ds *catalog.Dataset, req models.DatasetRequest) models.Records {
	spec := ds.Spec()
	records := ds.Fallback()

	if text := req.SearchText(); text != "" && len(spec.FilterFields) > 0 {
		if matched := filterRecords(records, text, spec.FilterFields); len(matched) > 0 {
			records = matched
		}
	}
	if spec.Shape == models.ShapeObject && len(records) > 1 {
		records = records[:1]
	}

	o.peekImages(ctx, ds, records)
	return records
}

// failureReason maps a stage error onto a short metric label
func failureReason(err error) string {
	switch {
	case errors.Is(err, schema.ErrEmptyResponse):
		return "empty"
	case errors.Is(err, schema.ErrMalformedJSON):
		return "malformed"
	case errors.Is(err, schema.ErrSchemaViolation):
		return "schema"
	case errors.Is(err, errNoSourceList):
		return "no_source"
	case errors.Is(err, errNoMatches):
		return "no_matches"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return upstream.KindOf(err).String()
	}
}
