// Package server serves a static Pokédex site with the shared header
// installed on every page, plus the name search API and live sessions.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/poku-e/pokenav/internal/header"
	"github.com/poku-e/pokenav/internal/live"
	"github.com/poku-e/pokenav/internal/nameindex"
	"github.com/poku-e/pokenav/internal/nav"
	"github.com/poku-e/pokenav/internal/search"
)

// Config holds server configuration.
type Config struct {
	Addr     string
	AllowAll bool // allow all CORS origins
	// Fragment is served untouched even though it is an .html file.
	Fragment string
	Search   search.Options
}

// Server wires the page rewriter, the shared name index and the live
// search endpoint into one router.
type Server struct {
	cfg        Config
	pages      fs.FS
	installer  *header.Installer
	loader     *nameindex.Loader
	logger     *slog.Logger
	router     chi.Router
	httpServer *http.Server
}

func New(cfg Config, pages fs.FS, installer *header.Installer, loader *nameindex.Loader, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:       cfg,
		pages:     pages,
		installer: installer,
		loader:    loader,
		logger:    logger.With("component", "server"),
	}
	s.router = s.buildRouter()
	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestLogger(&slogFormatter{logger: s.logger}))
	r.Use(middleware.Recoverer)

	corsOpts := cors.Options{
		AllowedOrigins: []string{"http://localhost:*", "http://127.0.0.1:*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}
	if s.cfg.AllowAll {
		corsOpts.AllowedOrigins = []string{"*"}
	}
	r.Use(cors.Handler(corsOpts))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Websocket sessions outlive any request timeout.
	r.Handle("/live", live.NewHandler(s.loader, s.cfg.Search, s.cfg.AllowAll, s.logger))
	r.Handle("/static/pokenav.js", live.ScriptHandler())

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(30 * time.Second))
		r.Get("/api/search", s.handleSearch)
		r.Get("/api/names", s.handleNames)
		r.Get("/*", s.handlePage)
	})
	return r
}

// Router returns the chi router for registering additional routes.
func (s *Server) Router() chi.Router { return s.router }

// Start begins listening on the configured address and preloads the index.
// A Shutdown that ran first makes Start return nil at once.
func (s *Server) Start() error {
	s.loader.Preload(context.Background())

	s.logger.Info("pokenav listening", "addr", s.cfg.Addr)
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

type searchResponse struct {
	Query   string   `json:"query"`
	Results []string `json:"results"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	limit := s.cfg.Search.Limit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}

	resp := searchResponse{Query: nameindex.NormalizeQuery(q), Results: []string{}}
	if resp.Query != "" {
		if m := s.loader.Load(r.Context()).Match(resp.Query, limit); m != nil {
			resp.Results = m
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleNames(w http.ResponseWriter, r *http.Request) {
	idx := s.loader.Load(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"count":   idx.Len(),
		"fetches": s.loader.Fetches(),
	})
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(path.Clean("/"+r.URL.Path), "/")
	if name == "" || strings.HasSuffix(r.URL.Path, "/") {
		name = path.Join(name, nav.HomePage)
	}
	if !strings.EqualFold(path.Ext(name), ".html") || name == s.cfg.Fragment {
		http.FileServer(http.FS(s.pages)).ServeHTTP(w, r)
		return
	}

	b, err := fs.ReadFile(s.pages, name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			http.NotFound(w, r)
			return
		}
		s.logger.Error("read page", "page", name, "error", err)
		http.Error(w, "read error", http.StatusInternalServerError)
		return
	}

	page := nav.PageName(name)
	var buf bytes.Buffer
	if _, err := s.installer.InstallHTML(r.Context(), bytes.NewReader(b), &buf, page); err != nil {
		// The page is still usable without a header.
		s.logger.Warn("install header", "page", name, "error", err)
		buf.Reset()
		buf.Write(b)
	}
	s.loader.Preload(r.Context())

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := w.Write(buf.Bytes()); err != nil {
		s.logger.Debug("write page", "page", name, "error", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(true)
	if err := enc.Encode(v); err != nil {
		slog.Error("encode JSON response", "error", err)
	}
}
