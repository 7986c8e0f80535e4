package cache_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"astrohub/internal/cache"
	"astrohub/internal/models"
)

type fakeMirror struct {
	mu      sync.Mutex
	entries map[string][]byte
	failing bool
	sets    int
}

func newFakeMirror() *fakeMirror {
	return &fakeMirror{entries: map[string][]byte{}}
}

func (m *fakeMirror) Get(_ context.Context, key string) ([]byte, time.Duration, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing {
		return nil, 0, false, errors.New("connection refused")
	}
	data, ok := m.entries[key]
	return data, time.Minute, ok, nil
}

func (m *fakeMirror) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sets++
	if m.failing {
		return errors.New("connection refused")
	}
	m.entries[key] = value
	return nil
}

func TestCache_GetReturnsIndependentCopies(t *testing.T) {
	ctx := context.Background()
	c := cache.New(time.Hour, nil)

	require.NoError(t, c.Set(ctx, "missions_list", models.Records{{"mission_name": "Apollo 11"}}, 0))

	var first models.Records
	require.True(t, c.Get(ctx, "missions_list", &first))
	first[0]["mission_name"] = "changed by caller"

	var second models.Records
	require.True(t, c.Get(ctx, "missions_list", &second))
	assert.Equal(t, "Apollo 11", second[0]["mission_name"])
}

func TestCache_MissingKey(t *testing.T) {
	c := cache.New(time.Hour, nil)

	var out models.Records
	assert.False(t, c.Get(context.Background(), "never_set", &out))
}

func TestCache_ExpiryAndSweep(t *testing.T) {
	ctx := context.Background()
	c := cache.New(time.Hour, nil)

	require.NoError(t, c.Set(ctx, "short", "value", 20*time.Millisecond))
	require.NoError(t, c.Set(ctx, "long", "value", 0))

	time.Sleep(60 * time.Millisecond)

	var out string
	assert.False(t, c.Get(ctx, "short", &out), "expired entries are absent")
	assert.Equal(t, 2, c.Len(), "reads do not evict")

	c.Sweep()
	assert.Equal(t, 1, c.Len())
	assert.True(t, c.Get(ctx, "long", &out))
}

func TestCache_Mutate(t *testing.T) {
	ctx := context.Background()
	c := cache.New(time.Hour, nil)

	require.NoError(t, c.Set(ctx, "astronauts_list", models.Records{{"name": "Yuri Gagarin", "image_url": "placeholder"}}, 0))

	var delivered models.Records
	require.True(t, c.Get(ctx, "astronauts_list", &delivered))

	var cell models.Records
	changed, err := c.Mutate(ctx, "astronauts_list", &cell, func() bool {
		cell[0]["image_url"] = "https://cdn.example/gagarin.jpg"
		return true
	})
	require.NoError(t, err)
	assert.True(t, changed)

	var after models.Records
	require.True(t, c.Get(ctx, "astronauts_list", &after))
	assert.Equal(t, "https://cdn.example/gagarin.jpg", after[0]["image_url"])
	assert.Equal(t, "placeholder", delivered[0]["image_url"], "a delivered response never changes")
}

func TestCache_MutateSkipsAbsentAndDeclined(t *testing.T) {
	ctx := context.Background()
	c := cache.New(time.Hour, nil)

	var cell models.Records
	changed, err := c.Mutate(ctx, "absent", &cell, func() bool {
		t.Fatal("fn must not run for absent keys")
		return true
	})
	require.NoError(t, err)
	assert.False(t, changed)

	require.NoError(t, c.Set(ctx, "quiz_questions", models.Records{{"question": "q"}}, 0))
	changed, err = c.Mutate(ctx, "quiz_questions", &cell, func() bool {
		cell[0]["question"] = "discarded"
		return false
	})
	require.NoError(t, err)
	assert.False(t, changed)

	var out models.Records
	require.True(t, c.Get(ctx, "quiz_questions", &out))
	assert.Equal(t, "q", out[0]["question"])
}

func TestCache_ConcurrentMutateIsSerialized(t *testing.T) {
	ctx := context.Background()
	c := cache.New(time.Hour, nil)
	require.NoError(t, c.Set(ctx, "counter", 0, 0))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var n int
			_, err := c.Mutate(ctx, "counter", &n, func() bool {
				n++
				return true
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	var n int
	require.True(t, c.Get(ctx, "counter", &n))
	assert.Equal(t, 50, n)
}

func TestCache_MirrorBackfill(t *testing.T) {
	ctx := context.Background()
	mirror := newFakeMirror()

	writer := cache.New(time.Hour, mirror)
	require.NoError(t, writer.Set(ctx, "pixabay_mars", "https://cdn.example/mars.jpg", 0))
	assert.Equal(t, 1, mirror.sets)

	reader := cache.New(time.Hour, mirror)
	assert.Equal(t, 0, reader.Len())

	var url string
	require.True(t, reader.Get(ctx, "pixabay_mars", &url))
	assert.Equal(t, "https://cdn.example/mars.jpg", url)
	assert.Equal(t, 1, reader.Len(), "mirror hits are backfilled locally")
}

func TestCache_MirrorFailuresAreIgnored(t *testing.T) {
	ctx := context.Background()
	mirror := newFakeMirror()
	mirror.failing = true

	c := cache.New(time.Hour, mirror)
	require.NoError(t, c.Set(ctx, "missions_list", models.Records{{"mission_name": "Artemis I"}}, 0))

	var out models.Records
	require.True(t, c.Get(ctx, "missions_list", &out))
	assert.Equal(t, "Artemis I", out[0]["mission_name"])

	assert.False(t, c.Get(ctx, "unknown", &out))
}
