package resource

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirFetcher(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "data"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "data", "pokedex.json"), []byte(`{"Pikachu":{}}`), 0o644))

	f := NewDirFetcher(dir)

	b, err := f.Fetch(context.Background(), "data/pokedex.json")
	require.NoError(t, err)
	assert.Equal(t, `{"Pikachu":{}}`, string(b))

	b, err = f.Fetch(context.Background(), "/data/pokedex.json")
	require.NoError(t, err)
	assert.NotEmpty(t, b)

	_, err = f.Fetch(context.Background(), "header.html")
	assert.ErrorIs(t, err, ErrUnavailable)

	_, err = f.Fetch(context.Background(), "../etc/passwd")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestHTTPFetcher(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/site/header.html":
			w.Write([]byte(`<header id="site-header"></header>`))
		default:
			http.Error(w, "nope", http.StatusNotFound)
		}
	}))
	defer srv.Close()

	f, err := NewHTTPFetcher(srv.URL+"/site", 5*time.Second)
	require.NoError(t, err)

	b, err := f.Fetch(context.Background(), "header.html")
	require.NoError(t, err)
	assert.Contains(t, string(b), "site-header")

	_, err = f.Fetch(context.Background(), "data/pokedex.json")
	require.ErrorIs(t, err, ErrUnavailable)
	assert.Contains(t, err.Error(), "404")
}

func TestNewHTTPFetcherRejectsScheme(t *testing.T) {
	_, err := NewHTTPFetcher("ftp://example.com", time.Second)
	assert.Error(t, err)
}
