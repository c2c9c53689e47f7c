// Package search runs the header's search box: debounced substring matching
// over the name index, the results panel and navigation to detail pages.
package search

import (
	"context"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/poku-e/pokenav/internal/nameindex"
)

const (
	DefaultDelay      = 120 * time.Millisecond
	DefaultDetailPage = "pokemon.html"
)

// View is the page side of a search box: the results panel and the browser
// location. Calls are serialised by the controller.
type View interface {
	Render(names []string)
	// Hide closes the panel; clear also drops the rendered rows.
	Hide(clear bool)
	Navigate(url string)
}

// IndexSource hands out the name index. *nameindex.Loader satisfies it.
type IndexSource interface {
	Load(ctx context.Context) *nameindex.Index
}

// State of the results panel.
type State int

const (
	Hidden State = iota
	Visible
)

func (s State) String() string {
	if s == Visible {
		return "visible"
	}
	return "hidden"
}

type Options struct {
	Delay      time.Duration
	Limit      int
	DetailPage string
	Clock      Clock
	Logger     *slog.Logger
}

// DetailURL builds the detail page link for a Pokémon name.
func DetailURL(page, name string) string {
	if page == "" {
		page = DefaultDetailPage
	}
	sep := "?"
	if strings.Contains(page, "?") {
		sep = "&"
	}
	return page + sep + url.Values{"name": {name}}.Encode()
}

// Controller owns one search box. Keystrokes are debounced: each call to
// OnQueryChanged replaces the pending evaluation, and only the last one runs.
type Controller struct {
	src    IndexSource
	view   View
	opts   Options
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	timer   Timer
	gen     uint64
	results []string
	state   State
	closed  bool
}

func NewController(src IndexSource, view View, opts Options) *Controller {
	if opts.Delay <= 0 {
		opts.Delay = DefaultDelay
	}
	if opts.Limit <= 0 || opts.Limit > nameindex.MaxMatches {
		opts.Limit = nameindex.MaxMatches
	}
	if opts.DetailPage == "" {
		opts.DetailPage = DefaultDetailPage
	}
	if opts.Clock == nil {
		opts.Clock = RealClock
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		src:    src,
		view:   view,
		opts:   opts,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// OnQueryChanged schedules an evaluation of raw after the quiet period,
// cancelling any evaluation still pending.
func (c *Controller) OnQueryChanged(raw string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	if c.timer != nil {
		c.timer.Stop()
	}
	c.gen++
	gen := c.gen
	c.timer = c.opts.Clock.AfterFunc(c.opts.Delay, func() { c.evaluate(gen, raw) })
}

func (c *Controller) evaluate(gen uint64, raw string) {
	q := nameindex.NormalizeQuery(raw)
	var matches []string
	if q != "" {
		matches = c.src.Load(c.ctx).Match(q, c.opts.Limit)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || gen != c.gen {
		// A later keystroke owns the panel now.
		return
	}
	c.timer = nil
	c.logger.Debug("search evaluated", "query", q, "matches", len(matches))
	if len(matches) == 0 {
		c.results = nil
		c.hideLocked(true)
		return
	}
	c.results = matches
	c.state = Visible
	c.view.Render(append([]string(nil), matches...))
}

// OnEnter follows the first rendered result, or the raw text when there is
// none.
func (c *Controller) OnEnter(raw string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	if len(c.results) > 0 {
		c.navigateLocked(c.results[0])
		return
	}
	if t := strings.TrimSpace(raw); t != "" {
		c.navigateLocked(t)
	}
}

// OnSelect follows a clicked result row.
func (c *Controller) OnSelect(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || name == "" {
		return
	}
	c.navigateLocked(name)
}

// OnOutsideClick closes the panel after a click outside the input and the
// results. The rendered rows stay, so Enter still picks the first one.
func (c *Controller) OnOutsideClick() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.state == Hidden {
		return
	}
	c.hideLocked(false)
}

// Close drops any pending evaluation. Events after Close are ignored.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.dropPendingLocked()
	c.cancel()
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Results returns the rendered rows, visible or not.
func (c *Controller) Results() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.results...)
}

func (c *Controller) hideLocked(clear bool) {
	c.state = Hidden
	c.view.Hide(clear)
}

// dropPendingLocked stops the pending evaluation and invalidates one that
// has already fired but not yet taken the lock.
func (c *Controller) dropPendingLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.gen++
}

func (c *Controller) navigateLocked(name string) {
	c.dropPendingLocked()
	target := DetailURL(c.opts.DetailPage, name)
	c.logger.Debug("search navigate", "name", name, "url", target)
	c.view.Navigate(target)
}
