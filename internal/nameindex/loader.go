package nameindex

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/poku-e/pokenav/internal/resource"
)

// Loader fetches the name index at most once and shares it with every caller.
//
// Callers arriving while the fetch is in flight wait for it instead of
// issuing their own. A failed fetch resolves to an empty index and is cached
// like a success; there are no retries.
type Loader struct {
	fetcher resource.Fetcher
	name    string
	logger  *slog.Logger

	group   singleflight.Group
	mu      sync.RWMutex
	idx     *Index
	fetches atomic.Int64
}

func NewLoader(fetcher resource.Fetcher, name string, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{fetcher: fetcher, name: name, logger: logger.With("component", "nameindex")}
}

// Load returns the cached index, fetching it on first demand. It never fails:
// unavailable or malformed data yields an empty index.
func (l *Loader) Load(ctx context.Context) *Index {
	if idx := l.cached(); idx != nil {
		return idx
	}
	// The shared fetch must not die with whichever caller happened to start it.
	shared := context.WithoutCancel(ctx)
	ch := l.group.DoChan("index", func() (any, error) {
		if idx := l.cached(); idx != nil {
			return idx, nil
		}
		idx := l.fetch(shared)
		l.mu.Lock()
		l.idx = idx
		l.mu.Unlock()
		return idx, nil
	})
	select {
	case res := <-ch:
		return res.Val.(*Index)
	case <-ctx.Done():
		return Empty()
	}
}

// Preload starts loading in the background.
func (l *Loader) Preload(ctx context.Context) {
	go l.Load(context.WithoutCancel(ctx))
}

// Loaded reports whether a load has resolved, successfully or not.
func (l *Loader) Loaded() bool { return l.cached() != nil }

// Fetches reports how many times the underlying resource was requested.
func (l *Loader) Fetches() int { return int(l.fetches.Load()) }

func (l *Loader) cached() *Index {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.idx
}

func (l *Loader) fetch(ctx context.Context) *Index {
	l.fetches.Add(1)
	b, err := l.fetcher.Fetch(ctx, l.name)
	if err != nil {
		l.logger.Warn("name index unavailable, search disabled", "resource", l.name, "error", err)
		return Empty()
	}
	idx, err := Parse(b)
	if err != nil {
		l.logger.Warn("name index malformed, search disabled", "resource", l.name, "error", err)
		return Empty()
	}
	l.logger.Info("name index loaded", "resource", l.name, "names", idx.Len())
	return idx
}
