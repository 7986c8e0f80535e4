package upstream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const articlePage = `<!DOCTYPE html>
<html lang="en">
<head>
<title>Europa Clipper Begins Its Long Cruise</title>
<meta property="og:title" content="Europa Clipper Begins Its Long Cruise">
<meta name="description" content="NASA's Europa Clipper spacecraft has started its six-year journey to Jupiter's icy moon.">
<meta property="article:published_time" content="2024-10-15T10:00:00Z">
</head>
<body>
<article>
<h1>Europa Clipper Begins Its Long Cruise</h1>
<p>NASA's Europa Clipper spacecraft lifted off aboard a Falcon Heavy rocket and has started its six-year journey toward Jupiter. Once there, it will perform dozens of close flybys of the moon Europa to study its ice shell and the ocean believed to lie beneath.</p>
<p>Mission scientists expect the spacecraft to measure the thickness of the ice, map the surface composition and search for plumes of water vapor. The data will help determine whether Europa could support life as we know it.</p>
<p>The spacecraft carries nine science instruments and a gravity experiment. Its solar arrays span more than thirty meters, making it the largest spacecraft NASA has ever built for a planetary mission.</p>
</article>
</body>
</html>`

func newScraperServer(t *testing.T, robots string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		if robots == "" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(robots))
	})
	mux.HandleFunc("/news/europa", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(articlePage))
	})
	mux.HandleFunc("/feed.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func newTestScraper() *ArticleScraper {
	s := NewArticleScraper(5 * time.Second)
	s.allowPrivateHosts = true
	return s
}

func TestArticleScraper_Extracts(t *testing.T) {
	server := newScraperServer(t, "")

	article, err := newTestScraper().Scrape(context.Background(), server.URL+"/news/europa")
	require.NoError(t, err)
	assert.Contains(t, article.Title, "Europa Clipper")
	assert.NotEmpty(t, article.Summary)
	assert.Equal(t, server.URL+"/news/europa", article.Link)
}

func TestArticleScraper_RespectsRobots(t *testing.T) {
	server := newScraperServer(t, "User-agent: *\nDisallow: /news/\n")

	_, err := newTestScraper().Scrape(context.Background(), server.URL+"/news/europa")
	require.Error(t, err)
	assert.Equal(t, KindBadRequest, KindOf(err))
	assert.Contains(t, err.Error(), "robots.txt")
}

func TestArticleScraper_RejectsNonHTML(t *testing.T) {
	server := newScraperServer(t, "")

	_, err := newTestScraper().Scrape(context.Background(), server.URL+"/feed.json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported content type")
}

func TestArticleScraper_RejectsPrivateHosts(t *testing.T) {
	s := NewArticleScraper(time.Second)
	for _, u := range []string{"http://localhost/a", "http://192.168.1.5/a", "ftp://example.com/a"} {
		_, err := s.Scrape(context.Background(), u)
		require.Error(t, err, u)
		assert.Equal(t, KindBadRequest, KindOf(err), u)
	}
}

func TestSummarize(t *testing.T) {
	assert.Equal(t, "short text", summarize("  short \n text ", 50))

	long := strings.Repeat("word ", 40)
	got := summarize(long, 23)
	assert.True(t, strings.HasSuffix(got, "..."))
	assert.LessOrEqual(t, len(got), 26)
}
