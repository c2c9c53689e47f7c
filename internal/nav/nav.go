// Package nav decides which header navigation link is highlighted for a page.
package nav

import (
	"path"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// LinkID names one of the header's navigation links.
type LinkID string

const (
	Info      LinkID = "info"
	Pokedex   LinkID = "pokedex"
	Moves     LinkID = "moves"
	Locations LinkID = "locations"
	Abilities LinkID = "abilities"
)

// AllLinks lists every link in header order.
var AllLinks = []LinkID{Info, Pokedex, Moves, Locations, Abilities}

// HomePage is used when a path has no file name.
const HomePage = "index.html"

// ActiveClass marks the highlighted link.
const ActiveClass = "active"

// ElementID returns the DOM id of the link, e.g. "nav-moves".
func (id LinkID) ElementID() string { return "nav-" + string(id) }

// rules are checked in order; the first matching prefix wins.
var rules = []struct {
	link     LinkID
	prefixes []string
}{
	{Info, []string{"info"}},
	{Pokedex, []string{"pokedex", "index", "pokemon"}},
	{Moves, []string{"moves", "move-descriptions"}},
	{Locations, []string{"locations", "trainers", "encounters"}},
	{Abilities, []string{"abilities"}},
}

// PageName returns the last segment of a URL path, or HomePage when empty.
func PageName(p string) string {
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	if p == "" || strings.HasSuffix(p, "/") {
		return HomePage
	}
	name := path.Base(p)
	if name == "." || name == "/" {
		return HomePage
	}
	return name
}

// Resolve maps a page file name to its link. Unknown pages fall back to Pokedex.
func Resolve(pageName string) LinkID {
	if pageName == "" {
		pageName = HomePage
	}
	name := strings.ToLower(pageName)
	for _, r := range rules {
		for _, p := range r.prefixes {
			if strings.HasPrefix(name, p) {
				return r.link
			}
		}
	}
	return Pokedex
}

// SetActive clears the marker from every nav link in doc and sets it on the
// one resolved for pageName. Links missing from doc are skipped.
func SetActive(doc *goquery.Document, pageName string) LinkID {
	active := Resolve(pageName)
	for _, id := range AllLinks {
		sel := doc.Find("#" + id.ElementID())
		if sel.Length() == 0 {
			continue
		}
		sel.RemoveClass(ActiveClass).RemoveAttr("aria-current")
		if id == active {
			sel.AddClass(ActiveClass).SetAttr("aria-current", "page")
		}
	}
	return active
}
