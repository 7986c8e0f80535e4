package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"astrohub/internal/cache"
	"astrohub/internal/catalog"
	"astrohub/internal/completion"
	"astrohub/internal/models"
	"astrohub/internal/upstream"
)

const twoAstronauts = `[
  {"name": "Neil Armstrong", "nationality": "American", "space_agency": "NASA", "notable_missions": ["Apollo 11"], "current_status": "Deceased"},
  {"name": "Kalpana Chawla", "nationality": "Indian-American", "space_agency": "NASA", "notable_missions": ["STS-87", "STS-107"], "current_status": "deceased"}
]`

// fakeCompleter replays responses in order, repeating the last one
type fakeCompleter struct {
	mu        sync.Mutex
	calls     int32
	responses []string
	err       error
	started   chan struct{}
	release   chan struct{}
}

func (f *fakeCompleter) Complete(ctx context.Context, req completion.Request) (string, error) {
	n := atomic.AddInt32(&f.calls, 1)
	if f.started != nil && n == 1 {
		close(f.started)
	}
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if f.err != nil {
		return "", f.err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	idx := int(n) - 1
	if idx >= len(f.responses) {
		idx = len(f.responses) - 1
	}
	return f.responses[idx], nil
}

func (f *fakeCompleter) Calls() int {
	return int(atomic.LoadInt32(&f.calls))
}

type fakeSearcher struct {
	calls int32
	err   error
}

func (f *fakeSearcher) Search(ctx context.Context, query string) (string, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.err != nil {
		return "", f.err
	}
	return "https://images.test/" + strings.ReplaceAll(query, " ", "+"), nil
}

type fakeArticles struct {
	articles map[string]*upstream.ScrapedArticle
}

func (f *fakeArticles) Scrape(ctx context.Context, pageURL string) (*upstream.ScrapedArticle, error) {
	a, ok := f.articles[pageURL]
	if !ok {
		return nil, fmt.Errorf("fetch %s: 404", pageURL)
	}
	return a, nil
}

type testEnv struct {
	orchestrator *Orchestrator
	cache        *cache.Cache
	completer    *fakeCompleter
	searcher     *fakeSearcher
}

func newTestEnv(t *testing.T, completer *fakeCompleter, enabled bool) *testEnv {
	t.Helper()

	cat, err := catalog.Load("", catalog.Defaults{
		Models:             []string{"model-a"},
		MaxAttempts:        1,
		GenerationAttempts: 2,
	})
	require.NoError(t, err)

	c := cache.New(time.Hour, nil)
	searcher := &fakeSearcher{}
	images := NewImageResolver(searcher, c, time.Second)

	o := NewOrchestrator(cat, c, completer, images, nil, OrchestratorConfig{
		GenerationEnabled: enabled,
		GenerationTimeout: 5 * time.Second,
		EnrichmentTimeout: 5 * time.Second,
	})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = o.Wait(ctx)
	})

	return &testEnv{orchestrator: o, cache: c, completer: completer, searcher: searcher}
}

func names(records models.Records) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.String("name"))
	}
	return out
}

func TestAcquire_GeneratesOnceThenServesCache(t *testing.T) {
	env := newTestEnv(t, &fakeCompleter{responses: []string{twoAstronauts}}, true)
	ctx := context.Background()
	req := models.DatasetRequest{Dataset: models.DatasetAstronauts}

	first := env.orchestrator.Acquire(ctx, req)
	require.Equal(t, SourceGenerated, first.Source)
	assert.Equal(t, []string{"Neil Armstrong", "Kalpana Chawla"}, names(first.Records))
	assert.Equal(t, "deceased", first.Records[0]["current_status"])
	require.NoError(t, env.orchestrator.Wait(ctx))

	second := env.orchestrator.Acquire(ctx, req)
	assert.Equal(t, SourceCache, second.Source)
	assert.Equal(t, names(first.Records), names(second.Records))
	assert.Equal(t, 1, env.completer.Calls())
}

func TestAcquire_AsyncEnrichmentUpdatesCacheOnly(t *testing.T) {
	env := newTestEnv(t, &fakeCompleter{responses: []string{twoAstronauts}}, true)
	ctx := context.Background()

	delivered := env.orchestrator.Acquire(ctx, models.DatasetRequest{Dataset: models.DatasetAstronauts})
	require.Equal(t, SourceGenerated, delivered.Source)

	placeholder := PlaceholderURL("neil armstrong astronaut")
	assert.Equal(t, placeholder, delivered.Records[0]["image_url"])

	require.NoError(t, env.orchestrator.Wait(ctx))

	var cached models.Records
	require.True(t, env.cache.Get(ctx, "astronauts_list", &cached))
	assert.Equal(t, "https://images.test/neil+armstrong+astronaut", cached[0]["image_url"])
	assert.Equal(t, "https://images.test/kalpana+chawla+astronaut", cached[1]["image_url"])

	// the copy handed to the caller is never rewritten
	assert.Equal(t, placeholder, delivered.Records[0]["image_url"])
}

func TestAcquire_RegeneratesAfterValidationFailure(t *testing.T) {
	env := newTestEnv(t, &fakeCompleter{responses: []string{"I cannot do that.", twoAstronauts}}, true)

	result := env.orchestrator.Acquire(context.Background(), models.DatasetRequest{Dataset: models.DatasetAstronauts})
	assert.Equal(t, SourceGenerated, result.Source)
	assert.Equal(t, 2, env.completer.Calls())
}

func TestAcquire_FallbackAfterRepeatedValidationFailure(t *testing.T) {
	env := newTestEnv(t, &fakeCompleter{responses: []string{`[{"name": 1}]`}}, true)
	ctx := context.Background()

	result := env.orchestrator.Acquire(ctx, models.DatasetRequest{Dataset: models.DatasetQuiz})
	assert.Equal(t, SourceFallback, result.Source)
	assert.Len(t, result.Records, 10)
	assert.Equal(t, 2, env.completer.Calls())

	var cached models.Records
	assert.False(t, env.cache.Get(ctx, "quiz_questions", &cached), "fallback data is never cached")
}

func TestAcquire_AuthFailureFallsBackWithFullListOnNoMatches(t *testing.T) {
	completer := &fakeCompleter{err: &upstream.Error{Service: "completion", Kind: upstream.KindAuthFailure, StatusCode: 401}}
	env := newTestEnv(t, completer, true)

	result := env.orchestrator.Acquire(context.Background(), models.DatasetRequest{
		Dataset: models.DatasetAstronautSearch,
		Query:   "zzzz-no-such-astronaut",
	})

	require.Equal(t, SourceFallback, result.Source)
	assert.Len(t, result.Records, 20)
	for _, rec := range result.Records {
		assert.NotEmpty(t, rec.String("image_url"))
	}
}

func TestAcquire_FallbackFilteredBySearchText(t *testing.T) {
	env := newTestEnv(t, &fakeCompleter{}, false)

	result := env.orchestrator.Acquire(context.Background(), models.DatasetRequest{
		Dataset: models.DatasetAstronautSearch,
		Query:   "armstrong",
	})

	require.Equal(t, SourceFallback, result.Source)
	assert.Equal(t, []string{"Neil Armstrong"}, names(result.Records))
	assert.Equal(t, 0, env.completer.Calls())
	assert.Equal(t, int32(0), atomic.LoadInt32(&env.searcher.calls), "fallback never searches images")
}

func TestAcquire_SecondaryFiltersCachedList(t *testing.T) {
	env := newTestEnv(t, &fakeCompleter{}, false)
	ctx := context.Background()

	require.NoError(t, env.cache.Set(ctx, "astronauts_list", models.Records{
		{"name": "Neil Armstrong", "nationality": "American", "space_agency": "NASA", "notable_missions": []any{"Apollo 11"}, "current_status": "deceased"},
		{"name": "Rakesh Sharma", "nationality": "Indian", "space_agency": "ISRO", "notable_missions": []any{"Soyuz T-11"}, "current_status": "retired"},
	}, 0))

	result := env.orchestrator.Acquire(ctx, models.DatasetRequest{Dataset: models.DatasetAstronautSearch, Query: "isro"})
	require.Equal(t, SourceSecondary, result.Source)
	assert.Equal(t, []string{"Rakesh Sharma"}, names(result.Records))

	var cached models.Records
	assert.False(t, env.cache.Get(ctx, "astronaut_search_isro", &cached), "secondary results are not cached")
}

func TestAcquire_DeriveDetailsFromCachedList(t *testing.T) {
	env := newTestEnv(t, &fakeCompleter{}, false)
	ctx := context.Background()

	require.NoError(t, env.cache.Set(ctx, "astronauts_list", models.Records{
		{"name": "Sunita Williams", "nationality": "American", "space_agency": "NASA", "notable_missions": []any{"Expedition 14", "Expedition 32"}, "current_status": "active"},
	}, 0))

	result := env.orchestrator.Acquire(ctx, models.DatasetRequest{Dataset: models.DatasetAstronautDetails, Name: "sunita williams"})
	require.Equal(t, SourceSecondary, result.Source)
	require.Len(t, result.Records, 1)
	assert.Contains(t, result.Records[0].String("biography"), "Sunita Williams")
	assert.Contains(t, result.Records[0].String("firstMission"), "Expedition 14")
}

func TestAcquire_DetailsFallbackWithoutMatchIsGeneric(t *testing.T) {
	env := newTestEnv(t, &fakeCompleter{}, false)

	result := env.orchestrator.Acquire(context.Background(), models.DatasetRequest{Dataset: models.DatasetAstronautDetails, Name: "Unknown Person"})
	require.Equal(t, SourceFallback, result.Source)
	require.Len(t, result.Records, 1)
	assert.NotEmpty(t, result.Records[0].String("biography"))
}

func TestAcquire_ScrapeSecondaryResolvesImagesSynchronously(t *testing.T) {
	env := newTestEnv(t, &fakeCompleter{}, false)
	env.orchestrator.articles = &fakeArticles{articles: map[string]*upstream.ScrapedArticle{
		"https://news.test/mars": {Title: "Mars Sample Return", Summary: "Rovers cache samples", Link: "https://news.test/mars"},
		"https://news.test/moon": {Title: "Artemis Update", Summary: "Lunar landers", Link: "https://news.test/moon"},
	}}
	env.orchestrator.config.ArticleSourceURLs = []string{"https://news.test/mars", "https://news.test/moon", "https://news.test/gone"}

	result := env.orchestrator.Acquire(context.Background(), models.DatasetRequest{Dataset: models.DatasetArticles, Query: "mars", Date: "2024-03-01"})
	require.Equal(t, SourceSecondary, result.Source)
	require.Len(t, result.Records, 1)
	assert.Equal(t, "Mars Sample Return", result.Records[0]["title"])
	assert.Equal(t, "2024-03-01", result.Records[0]["date"])
	assert.Equal(t, "https://images.test/mars+sample+return", result.Records[0]["imageUrl"])
}

func TestAcquire_ConcurrentCallersShareOneGeneration(t *testing.T) {
	completer := &fakeCompleter{
		responses: []string{twoAstronauts},
		started:   make(chan struct{}),
		release:   make(chan struct{}),
	}
	env := newTestEnv(t, completer, true)
	ctx := context.Background()

	const callers = 5
	results := make([]Result, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = env.orchestrator.Acquire(ctx, models.DatasetRequest{Dataset: models.DatasetAstronauts})
		}(i)
	}

	<-completer.started
	time.Sleep(100 * time.Millisecond)
	close(completer.release)
	wg.Wait()

	assert.Equal(t, 1, completer.Calls())
	for _, r := range results {
		assert.Equal(t, []string{"Neil Armstrong", "Kalpana Chawla"}, names(r.Records))
	}

	// shared results are independent copies
	results[0].Records[0]["name"] = "changed"
	for _, r := range results[1:] {
		assert.Equal(t, "Neil Armstrong", r.Records[0]["name"])
	}
}

func TestAcquire_CallerCancellationDoesNotAbortGeneration(t *testing.T) {
	completer := &fakeCompleter{
		responses: []string{twoAstronauts},
		started:   make(chan struct{}),
		release:   make(chan struct{}),
	}
	env := newTestEnv(t, completer, true)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan Result, 1)
	go func() {
		done <- env.orchestrator.Acquire(ctx, models.DatasetRequest{Dataset: models.DatasetAstronauts})
	}()

	<-completer.started
	cancel()
	close(completer.release)
	<-done

	var cached models.Records
	assert.True(t, env.cache.Get(context.Background(), "astronauts_list", &cached))
	assert.Len(t, cached, 2)
}

func TestFailureReason(t *testing.T) {
	assert.Equal(t, "no_source", failureReason(errNoSourceList))
	assert.Equal(t, "timeout", failureReason(fmt.Errorf("wrapped: %w", context.DeadlineExceeded)))
	assert.Equal(t, "auth_failure", failureReason(&upstream.Error{Kind: upstream.KindAuthFailure}))
	assert.Equal(t, "transient_transport", failureReason(errors.New("boom")))
}
