package upstream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNASAClient_APODDefaults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "demo", r.URL.Query().Get("api_key"))
		_, _ = w.Write([]byte(`{"title":"Pillars of Creation","url":"https://apod.example/p.jpg","explanation":"..."}`))
	}))
	defer server.Close()

	client := NewNASAClient("demo", server.URL, "", 5*time.Second)
	client.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }

	apod, err := client.APOD(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Pillars of Creation", apod.Title)
	assert.Equal(t, "2024-05-01", apod.Date)
	assert.Equal(t, "image", apod.MediaType)
	assert.Equal(t, "https://apod.example/p.jpg", apod.HDURL)
}

func TestNASAClient_FeedFailures(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":{"code":"API_KEY_INVALID"}}`))
	}))
	defer server.Close()

	client := NewNASAClient("bad", server.URL, server.URL, 5*time.Second)

	_, err := client.APOD(context.Background())
	var upErr *Error
	require.ErrorAs(t, err, &upErr)
	assert.Equal(t, KindFeedFailure, upErr.Kind)
	assert.Equal(t, "UPSTREAM_FEED_FAILURE", upErr.Code())
	assert.Equal(t, http.StatusForbidden, upErr.StatusCode)

	_, err = NewNASAClient("", "", "", time.Second).NEOFeed(context.Background(), "2024-05-01", "2024-05-02")
	assert.Equal(t, KindCredentialMissing, KindOf(err))
}

func TestNASAClient_NEOFeed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "2024-05-01", r.URL.Query().Get("start_date"))
		assert.Equal(t, "2024-05-02", r.URL.Query().Get("end_date"))
		_, _ = w.Write([]byte(`{"element_count":3,"near_earth_objects":{"2024-05-01":[{"id":"1"},{"id":"2"}],"2024-05-02":[{"id":"3"}]}}`))
	}))
	defer server.Close()

	feed, err := NewNASAClient("demo", "", server.URL, 5*time.Second).NEOFeed(context.Background(), "2024-05-01", "2024-05-02")
	require.NoError(t, err)
	assert.Equal(t, 3, feed.ElementCount)
	assert.Len(t, feed.NearEarthObjects["2024-05-01"], 2)
}

func TestWeatherClient_Forecast(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "12.9", q.Get("lat"))
		assert.Equal(t, "77.5", q.Get("lon"))
		assert.Equal(t, "metric", q.Get("unit"))
		assert.Equal(t, "json", q.Get("output"))
		_, _ = w.Write([]byte(`{"product":"astro","dataseries":[{"timepoint":3,"seeing":2}]}`))
	}))
	defer server.Close()

	body, err := NewWeatherClient(server.URL, 5*time.Second).Forecast(context.Background(), "12.9", "77.5")
	require.NoError(t, err)
	assert.JSONEq(t, `{"product":"astro","dataseries":[{"timepoint":3,"seeing":2}]}`, string(body))

	_, err = NewWeatherClient("", time.Second).Forecast(context.Background(), "1", "2")
	assert.Equal(t, KindCredentialMissing, KindOf(err))
}

func TestPixabayClient_Search(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "science", q.Get("category"))
		assert.Equal(t, "true", q.Get("safesearch"))
		switch q.Get("q") {
		case "saturn":
			_, _ = w.Write([]byte(`{"total":2,"hits":[{"webformatURL":"https://cdn.example/saturn.jpg"},{"webformatURL":"https://cdn.example/other.jpg"}]}`))
		case "broken":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			_, _ = w.Write([]byte(`{"total":0,"hits":[]}`))
		}
	}))
	defer server.Close()

	client := NewPixabayClient("key", server.URL, 5*time.Second, 100)
	ctx := context.Background()

	url, err := client.Search(ctx, "saturn")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example/saturn.jpg", url)

	_, err = client.Search(ctx, "nothing here")
	assert.ErrorIs(t, err, ErrNoImage)

	_, err = client.Search(ctx, "broken")
	assert.Equal(t, KindTransient, KindOf(err))

	_, err = NewPixabayClient("", server.URL, time.Second, 1).Search(ctx, "saturn")
	assert.Equal(t, KindCredentialMissing, KindOf(err))
}
