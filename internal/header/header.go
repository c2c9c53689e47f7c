// Package header installs the shared site header at the top of a page.
package header

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/poku-e/pokenav/internal/nav"
	"github.com/poku-e/pokenav/internal/resource"
)

// DOM ids the header and the live search script agree on.
const (
	HeaderID  = "site-header"
	InputID   = "pokemon-search"
	ResultsID = "search-results"
	ScriptID  = "pokenav-bootstrap"
)

// ErrNoBody is returned for documents without a <body> element.
var ErrNoBody = errors.New("document has no body")

type Options struct {
	// Fragment is the header resource, e.g. "header.html".
	Fragment string
	// Height is used when the fragment root carries no data-height.
	Height int
	// Margin is added to the header height to get the body's top padding.
	Margin int
	// ScriptSrc is the bootstrap script wired into every page.
	ScriptSrc string
	// LiveEndpoint is where the script opens its search session.
	LiveEndpoint string
	// Brand is the fallback header's home link text.
	Brand string
}

func DefaultOptions() Options {
	return Options{
		Fragment:     "header.html",
		Height:       64,
		Margin:       8,
		ScriptSrc:    "/static/pokenav.js",
		LiveEndpoint: "/live",
		Brand:        "Pokédex",
	}
}

// Result describes what Install did to a page.
type Result struct {
	Existing   bool
	Fallback   bool
	Height     int
	PaddingTop int
	Active     nav.LinkID
}

type Installer struct {
	fetcher resource.Fetcher
	opts    Options
	logger  *slog.Logger
}

func NewInstaller(fetcher resource.Fetcher, opts Options, logger *slog.Logger) *Installer {
	def := DefaultOptions()
	if opts.Fragment == "" {
		opts.Fragment = def.Fragment
	}
	if opts.Height <= 0 {
		opts.Height = def.Height
	}
	if opts.Margin <= 0 {
		opts.Margin = def.Margin
	}
	if opts.ScriptSrc == "" {
		opts.ScriptSrc = def.ScriptSrc
	}
	if opts.LiveEndpoint == "" {
		opts.LiveEndpoint = def.LiveEndpoint
	}
	if opts.Brand == "" {
		opts.Brand = def.Brand
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Installer{fetcher: fetcher, opts: opts, logger: logger.With("component", "header")}
}

// Install puts the header at the top of doc's body. A page that already has
// a header only gets its active link recomputed.
func (in *Installer) Install(ctx context.Context, doc *goquery.Document, pageName string) (Result, error) {
	if doc.Find("#"+HeaderID).Length() > 0 {
		return Result{Existing: true, Active: nav.SetActive(doc, pageName)}, nil
	}
	body := doc.Find("body").First()
	if body.Length() == 0 {
		return Result{}, ErrNoBody
	}

	var res Result
	root, err := in.loadFragment(ctx)
	if err != nil {
		in.logger.Warn("header fragment unavailable, using built-in header", "fragment", in.opts.Fragment, "page", pageName, "error", err)
		root, err = in.fallback()
		if err != nil {
			return Result{}, fmt.Errorf("build fallback header: %w", err)
		}
		res.Fallback = true
	}
	body.PrependNodes(root)

	hdr := doc.Find("#" + HeaderID).First()
	if hdr.Length() == 0 {
		// Fragment root uses another id; take the node we inserted.
		hdr = body.Children().First()
	}
	res.Height = in.headerHeight(hdr)
	res.PaddingTop = ensurePadding(body, res.Height+in.opts.Margin)

	in.wireSearch(doc, body)
	res.Active = nav.SetActive(doc, pageName)
	return res, nil
}

// InstallHTML parses a page from r, installs the header and renders it to w.
func (in *Installer) InstallHTML(ctx context.Context, r io.Reader, w io.Writer, pageName string) (Result, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return Result{}, fmt.Errorf("parse page %s: %w", pageName, err)
	}
	res, err := in.Install(ctx, doc, pageName)
	if err != nil {
		return res, err
	}
	if err := html.Render(w, doc.Nodes[0]); err != nil {
		return res, fmt.Errorf("render page %s: %w", pageName, err)
	}
	return res, nil
}

func (in *Installer) loadFragment(ctx context.Context) (*html.Node, error) {
	b, err := in.fetcher.Fetch(ctx, in.opts.Fragment)
	if err != nil {
		return nil, err
	}
	return parseRoot(b)
}

var bodyContext = &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}

// parseRoot returns the first element of an HTML fragment, detached.
func parseRoot(b []byte) (*html.Node, error) {
	nodes, err := html.ParseFragment(bytes.NewReader(b), bodyContext)
	if err != nil {
		return nil, fmt.Errorf("parse header fragment: %w", err)
	}
	for _, n := range nodes {
		if n.Type == html.ElementNode {
			return n, nil
		}
	}
	return nil, errors.New("header fragment has no root element")
}

var fallbackTmpl = template.Must(template.New("fallback").Parse(`<header id="site-header" class="site-header" data-fallback="true">
<a class="brand" href="index.html">{{.Brand}}</a>
<nav class="site-nav">
{{- range .Links}}
<a id="{{.ID}}" href="{{.Href}}">{{.Label}}</a>
{{- end}}
</nav>
<div class="site-search">
<input id="pokemon-search" type="search" placeholder="Search Pokémon…" autocomplete="off" aria-controls="search-results"/>
<div id="search-results" class="search-results" role="listbox" hidden aria-hidden="true"></div>
</div>
</header>`))

type fallbackLink struct {
	ID, Href, Label string
}

var fallbackLinks = []fallbackLink{
	{nav.Info.ElementID(), "info.html", "Info"},
	{nav.Pokedex.ElementID(), "index.html", "Pokédex"},
	{nav.Moves.ElementID(), "moves.html", "Moves"},
	{nav.Locations.ElementID(), "locations.html", "Locations"},
	{nav.Abilities.ElementID(), "abilities.html", "Abilities"},
}

func (in *Installer) fallback() (*html.Node, error) {
	var buf bytes.Buffer
	err := fallbackTmpl.Execute(&buf, struct {
		Brand string
		Links []fallbackLink
	}{in.opts.Brand, fallbackLinks})
	if err != nil {
		return nil, err
	}
	return parseRoot(buf.Bytes())
}

func (in *Installer) headerHeight(hdr *goquery.Selection) int {
	if v, ok := hdr.Attr("data-height"); ok {
		if h, err := strconv.Atoi(strings.TrimSuffix(strings.TrimSpace(v), "px")); err == nil && h > 0 {
			return h
		}
	}
	return in.opts.Height
}

// paddingTopRe matches a whole padding-top declaration, not the tail of
// scroll-padding-top and the like.
var paddingTopRe = regexp.MustCompile(`(?i)(?:^|;)\s*padding-top\s*:\s*([0-9]+(?:\.[0-9]+)?)px\s*;?`)

// ensurePadding raises the body's inline padding-top to at least target
// pixels and returns the resulting value.
func ensurePadding(body *goquery.Selection, target int) int {
	style, _ := body.Attr("style")
	if m := paddingTopRe.FindStringSubmatchIndex(style); m != nil {
		cur, _ := strconv.ParseFloat(style[m[2]:m[3]], 64)
		if int(cur) >= target {
			return int(cur)
		}
		head := style[:m[0]]
		if style[m[0]] == ';' {
			head += ";"
		}
		style = head + style[m[1]:]
	}
	style = strings.TrimSpace(style)
	if style != "" && !strings.HasSuffix(style, ";") {
		style += ";"
	}
	if style != "" {
		style += " "
	}
	body.SetAttr("style", fmt.Sprintf("%spadding-top: %dpx;", style, target))
	return target
}

// wireSearch hides the results panel, points the input at the live endpoint
// and adds the bootstrap script once.
func (in *Installer) wireSearch(doc *goquery.Document, body *goquery.Selection) {
	doc.Find("#"+ResultsID).SetAttr("hidden", "").SetAttr("aria-hidden", "true")
	doc.Find("#"+InputID).SetAttr("data-live", in.opts.LiveEndpoint)
	if doc.Find("#"+ScriptID).Length() > 0 {
		return
	}
	script := &html.Node{
		Type:     html.ElementNode,
		Data:     "script",
		DataAtom: atom.Script,
		Attr: []html.Attribute{
			{Key: "id", Val: ScriptID},
			{Key: "src", Val: in.opts.ScriptSrc},
			{Key: "defer"},
		},
	}
	body.AppendNodes(script)
}
