package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poku-e/pokenav/internal/header"
	"github.com/poku-e/pokenav/internal/nameindex"
	"github.com/poku-e/pokenav/internal/resource"
	"github.com/poku-e/pokenav/internal/search"
)

func testSite() fstest.MapFS {
	return fstest.MapFS{
		"index.html":        {Data: []byte(`<!doctype html><html><body><h1>Dex</h1></body></html>`)},
		"moves.html":        {Data: []byte(`<!doctype html><html><body><h1>Moves</h1></body></html>`)},
		"header.html":       {Data: []byte(`<header id="site-header" data-height="60"><a id="nav-pokedex">P</a><a id="nav-moves">M</a><input id="pokemon-search"/><div id="search-results"></div></header>`)},
		"data/pokedex.json": {Data: []byte(`{"Charmander":{},"Charizard":{},"Squirtle":{}}`)},
		"css/site.css":      {Data: []byte(`body{margin:0}`)},
	}
}

func newTestServer(t *testing.T, site fstest.MapFS) *Server {
	t.Helper()
	return newTestServerWithLogger(t, site, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func newTestServerWithLogger(t *testing.T, site fstest.MapFS, logger *slog.Logger) *Server {
	t.Helper()
	fetcher := resource.FetcherFunc(func(ctx context.Context, name string) ([]byte, error) {
		b, err := fs.ReadFile(site, name)
		if err != nil {
			return nil, resource.ErrUnavailable
		}
		return b, nil
	})
	installer := header.NewInstaller(fetcher, header.DefaultOptions(), logger)
	loader := nameindex.NewLoader(fetcher, "data/pokedex.json", logger)
	cfg := Config{Addr: ":0", Fragment: "header.html", Search: search.Options{Limit: 15}}
	return New(cfg, site, installer, loader, logger)
}

func get(t *testing.T, s *Server, target string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
	return w
}

func TestHealthCheck(t *testing.T) {
	w := get(t, newTestServer(t, testSite()), "/healthz")
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestPageGetsHeader(t *testing.T) {
	s := newTestServer(t, testSite())

	w := get(t, s, "/moves.html")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")

	doc, err := goquery.NewDocumentFromReader(w.Body)
	require.NoError(t, err)
	assert.Equal(t, 1, doc.Find("#site-header").Length())
	assert.True(t, doc.Find("#nav-moves").HasClass("active"))
	assert.Equal(t, "Moves", doc.Find("h1").Text())
	style, _ := doc.Find("body").Attr("style")
	assert.Equal(t, "padding-top: 68px;", style)
}

func TestRootServesIndex(t *testing.T) {
	w := get(t, newTestServer(t, testSite()), "/")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `id="site-header"`)
	assert.Contains(t, w.Body.String(), "<h1>Dex</h1>")
}

func TestFragmentAndAssetsServedRaw(t *testing.T) {
	s := newTestServer(t, testSite())

	w := get(t, s, "/header.html")
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "pokenav-bootstrap")

	w = get(t, s, "/css/site.css")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "body{margin:0}", w.Body.String())
}

func TestMissingPage(t *testing.T) {
	w := get(t, newTestServer(t, testSite()), "/trainers.html")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPageWithoutFragmentUsesFallback(t *testing.T) {
	site := testSite()
	delete(site, "header.html")

	w := get(t, newTestServer(t, site), "/index.html")
	require.Equal(t, http.StatusOK, w.Code)

	doc, err := goquery.NewDocumentFromReader(w.Body)
	require.NoError(t, err)
	assert.Equal(t, "true", doc.Find("#site-header").AttrOr("data-fallback", ""))
	assert.True(t, doc.Find("#nav-pokedex").HasClass("active"))
}

func TestSearchAPI(t *testing.T) {
	s := newTestServer(t, testSite())

	w := get(t, s, "/api/search?q=CHAR")
	require.Equal(t, http.StatusOK, w.Code)

	var resp searchResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "char", resp.Query)
	assert.Equal(t, []string{"Charmander", "Charizard"}, resp.Results)

	w = get(t, s, "/api/search?q=char&limit=1")
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, []string{"Charmander"}, resp.Results)

	w = get(t, s, "/api/search?q=%20%20")
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Empty(t, resp.Results)
	assert.True(t, strings.Contains(w.Body.String(), `"results":[]`))

	w = get(t, s, "/api/search?q=char&limit=x")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSearchAPIWithoutIndex(t *testing.T) {
	site := testSite()
	delete(site, "data/pokedex.json")
	s := newTestServer(t, site)

	w := get(t, s, "/api/search?q=char")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"results":[]`)

	w = get(t, s, "/api/names")
	var body map[string]int
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 0, body["count"])
	assert.Equal(t, 1, body["fetches"])
}

func TestStaticScript(t *testing.T) {
	w := get(t, newTestServer(t, testSite()), "/static/pokenav.js")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "WebSocket")
}

func TestRequestsLogThroughSlog(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	s := newTestServerWithLogger(t, testSite(), logger)

	w := get(t, s, "/healthz")
	require.Equal(t, http.StatusOK, w.Code)

	var entry map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var e map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &e), line)
		if e["msg"] == "request" {
			entry = e
		}
	}
	require.NotNil(t, entry, buf.String())
	assert.Equal(t, "server", entry["component"])
	assert.Equal(t, "/healthz", entry["path"])
	assert.Equal(t, float64(http.StatusOK), entry["status"])
}

func TestShutdownBeforeStart(t *testing.T) {
	s := newTestServer(t, testSite())
	require.NoError(t, s.Shutdown(context.Background()))

	done := make(chan error, 1)
	go func() { done <- s.Start() }()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Start kept serving after Shutdown")
	}
}
