package nameindex

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poku-e/pokenav/internal/resource"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// gatedFetcher blocks every fetch until release is closed.
type gatedFetcher struct {
	calls   atomic.Int32
	release chan struct{}
	body    []byte
	err     error
}

func (g *gatedFetcher) Fetch(ctx context.Context, name string) ([]byte, error) {
	g.calls.Add(1)
	<-g.release
	return g.body, g.err
}

func TestLoaderCoalescesConcurrentCallers(t *testing.T) {
	f := &gatedFetcher{release: make(chan struct{}), body: []byte(starters)}
	l := NewLoader(f, "data/pokedex.json", quietLogger())

	const n = 16
	results := make([]*Index, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = l.Load(context.Background())
		}(i)
	}

	require.Eventually(t, func() bool { return f.calls.Load() == 1 }, time.Second, time.Millisecond)
	close(f.release)
	wg.Wait()

	assert.Equal(t, int32(1), f.calls.Load())
	assert.Equal(t, 1, l.Fetches())
	for _, r := range results {
		assert.Same(t, results[0], r)
	}
	assert.Equal(t, 3, results[0].Len())

	// Later calls are served from the cache.
	assert.Same(t, results[0], l.Load(context.Background()))
	assert.Equal(t, int32(1), f.calls.Load())
}

func TestLoaderFailureResolvesEmptyAndIsFinal(t *testing.T) {
	var calls atomic.Int32
	f := resource.FetcherFunc(func(ctx context.Context, name string) ([]byte, error) {
		calls.Add(1)
		return nil, errors.Join(resource.ErrUnavailable, errors.New("404"))
	})
	l := NewLoader(f, "data/pokedex.json", quietLogger())

	idx := l.Load(context.Background())
	require.NotNil(t, idx)
	assert.Equal(t, 0, idx.Len())
	assert.True(t, l.Loaded())

	l.Load(context.Background())
	assert.Equal(t, int32(1), calls.Load())
}

func TestLoaderMalformedResolvesEmpty(t *testing.T) {
	f := resource.FetcherFunc(func(ctx context.Context, name string) ([]byte, error) {
		return []byte(`["not", "an", "object"]`), nil
	})
	l := NewLoader(f, "data/pokedex.json", quietLogger())

	idx := l.Load(context.Background())
	assert.Equal(t, 0, idx.Len())
}

func TestLoaderTrailingCommaResolvesEmpty(t *testing.T) {
	f := resource.FetcherFunc(func(ctx context.Context, name string) ([]byte, error) {
		return []byte(`{"Bulbasaur": {}, "Ivysaur": {},}`), nil
	})
	l := NewLoader(f, "data/pokedex.json", quietLogger())

	assert.Equal(t, 0, l.Load(context.Background()).Len())
	assert.True(t, l.Loaded())
}

func TestLoaderCallerCancelDoesNotCancelSharedFetch(t *testing.T) {
	f := &gatedFetcher{release: make(chan struct{}), body: []byte(starters)}
	l := NewLoader(f, "data/pokedex.json", quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan *Index)
	go func() { done <- l.Load(ctx) }()

	require.Eventually(t, func() bool { return f.calls.Load() == 1 }, time.Second, time.Millisecond)
	cancel()
	assert.Equal(t, 0, (<-done).Len())

	close(f.release)
	require.Eventually(t, l.Loaded, time.Second, time.Millisecond)
	assert.Equal(t, 3, l.Load(context.Background()).Len())
	assert.Equal(t, int32(1), f.calls.Load())
}

func TestLoaderPreload(t *testing.T) {
	f := &gatedFetcher{release: make(chan struct{}), body: []byte(starters)}
	close(f.release)
	l := NewLoader(f, "data/pokedex.json", quietLogger())

	assert.False(t, l.Loaded())
	l.Preload(context.Background())
	require.Eventually(t, l.Loaded, time.Second, time.Millisecond)
	assert.Equal(t, 1, l.Fetches())
}
