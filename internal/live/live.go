// Package live connects a page's search box to a server-side search
// controller over a websocket.
package live

import (
	"bytes"
	"embed"
	"encoding/json"
	"html/template"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/poku-e/pokenav/internal/search"
)

//go:embed static/pokenav.js
var staticFS embed.FS

// Script is the bootstrap script pages load to open a live session.
func Script() []byte {
	b, _ := staticFS.ReadFile("static/pokenav.js")
	return b
}

// ScriptHandler serves Script as JavaScript.
func ScriptHandler() http.Handler {
	body := Script()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/javascript; charset=utf-8")
		w.Header().Set("Cache-Control", "public, max-age=300")
		w.Write(body)
	})
}

var rowsTmpl = template.Must(template.New("rows").Parse(
	`{{range .}}<div class="search-result" role="option" tabindex="-1" data-name="{{.}}">{{.}}</div>{{end}}`))

// RenderRows renders one result row per name.
func RenderRows(names []string) (string, error) {
	var buf bytes.Buffer
	if err := rowsTmpl.Execute(&buf, names); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Event is sent by the page.
type Event struct {
	Type  string `json:"type"` // input, enter, select, outside
	Value string `json:"value,omitempty"`
	Name  string `json:"name,omitempty"`
}

// Command is sent to the page.
type Command struct {
	Op      string   `json:"op"` // ready, render, hide, navigate
	Session string   `json:"session,omitempty"`
	HTML    string   `json:"html,omitempty"`
	Results []string `json:"results,omitempty"`
	Clear   bool     `json:"clear,omitempty"`
	URL     string   `json:"url,omitempty"`
}

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 4096
)

type Handler struct {
	src      search.IndexSource
	opts     search.Options
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

// NewHandler serves live sessions. Each connection gets its own controller;
// all of them share src. Unless allowAllOrigins is set, only same-origin and
// local http origins may connect.
func NewHandler(src search.IndexSource, opts search.Options, allowAllOrigins bool, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	check := LocalOrigin
	if allowAllOrigins {
		check = func(*http.Request) bool { return true }
	}
	return &Handler{
		src:      src,
		opts:     opts,
		logger:   logger.With("component", "live"),
		upgrader: websocket.Upgrader{CheckOrigin: check},
	}
}

// LocalOrigin accepts requests without an Origin header, from the serving
// host itself, or from http://localhost and http://127.0.0.1 on any port.
func LocalOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if strings.EqualFold(u.Host, r.Host) {
		return true
	}
	if u.Scheme != "http" {
		return false
	}
	switch u.Hostname() {
	case "localhost", "127.0.0.1":
		return true
	}
	return false
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade", "origin", r.Header.Get("Origin"), "error", err)
		return
	}
	defer conn.Close()
	conn.SetReadLimit(maxMessageSize)

	s := &session{id: uuid.NewString(), conn: conn}
	s.logger = h.logger.With("session", s.id)

	opts := h.opts
	opts.Logger = s.logger
	ctrl := search.NewController(h.src, s, opts)
	defer ctrl.Close()

	s.logger.Debug("session opened", "remote", r.RemoteAddr)
	s.send(Command{Op: "ready", Session: s.id})

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("websocket read", "error", err)
			}
			s.logger.Debug("session closed")
			return
		}

		var ev Event
		if err := json.Unmarshal(msg, &ev); err != nil {
			s.logger.Debug("invalid event", "error", err)
			continue
		}
		dispatch(ctrl, ev, s.logger)
	}
}

func dispatch(ctrl *search.Controller, ev Event, logger *slog.Logger) {
	switch ev.Type {
	case "input":
		ctrl.OnQueryChanged(ev.Value)
	case "enter":
		ctrl.OnEnter(ev.Value)
	case "select":
		ctrl.OnSelect(ev.Name)
	case "outside":
		ctrl.OnOutsideClick()
	default:
		logger.Debug("unknown event", "type", ev.Type)
	}
}

// session is the search.View of one connection.
type session struct {
	id     string
	conn   *websocket.Conn
	logger *slog.Logger
	mu     sync.Mutex
}

func (s *session) Render(names []string) {
	rows, err := RenderRows(names)
	if err != nil {
		s.logger.Error("render rows", "error", err)
		return
	}
	s.send(Command{Op: "render", HTML: rows, Results: names})
}

func (s *session) Hide(clear bool) {
	s.send(Command{Op: "hide", Clear: clear})
}

func (s *session) Navigate(url string) {
	s.send(Command{Op: "navigate", URL: url})
}

func (s *session) send(cmd Command) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := s.conn.WriteJSON(cmd); err != nil {
		s.logger.Debug("websocket write", "op", cmd.Op, "error", err)
	}
}
