// Package nameindex holds the Pokémon display-name index used by search and
// the loader that fetches it once per session.
package nameindex

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/buger/jsonparser"
)

// MaxMatches caps every match list.
const MaxMatches = 15

// ErrMalformed is returned when the data resource is not a JSON object.
var ErrMalformed = errors.New("malformed name index")

// Index maps display names to opaque records, in the key order of the source
// document. It is read-only once built.
type Index struct {
	names   []string
	lowered []string
	records map[string]json.RawMessage
}

// Empty returns an index with no names.
func Empty() *Index {
	return &Index{records: map[string]json.RawMessage{}}
}

// Parse reads a JSON object whose top-level keys are display names.
func Parse(data []byte) (*Index, error) {
	// ObjectEach tolerates trailing commas and trailing bytes.
	if !json.Valid(data) {
		return nil, fmt.Errorf("%w: invalid JSON", ErrMalformed)
	}
	idx := Empty()
	err := jsonparser.ObjectEach(data, func(key, value []byte, typ jsonparser.ValueType, _ int) error {
		name, err := jsonparser.ParseString(key)
		if err != nil {
			return fmt.Errorf("key %q: %w", key, err)
		}
		raw := value
		if typ == jsonparser.String {
			// ObjectEach strips the quotes from string values.
			raw = make([]byte, 0, len(value)+2)
			raw = append(raw, '"')
			raw = append(raw, value...)
			raw = append(raw, '"')
		} else {
			raw = append([]byte(nil), value...)
		}
		idx.add(name, raw)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return idx, nil
}

// FromNames builds an index with null records, preserving order.
func FromNames(names ...string) *Index {
	idx := Empty()
	for _, n := range names {
		idx.add(n, json.RawMessage("null"))
	}
	return idx
}

func (x *Index) add(name string, raw json.RawMessage) {
	if _, dup := x.records[name]; !dup {
		x.names = append(x.names, name)
		x.lowered = append(x.lowered, strings.ToLower(name))
	}
	x.records[name] = raw
}

func (x *Index) Len() int { return len(x.names) }

// Names returns a copy of the names in index order.
func (x *Index) Names() []string {
	out := make([]string, len(x.names))
	copy(out, x.names)
	return out
}

// Lookup returns the raw record stored for name.
func (x *Index) Lookup(name string) (json.RawMessage, bool) {
	raw, ok := x.records[name]
	return raw, ok
}

// Match returns up to limit names whose lower-cased form contains the
// trimmed, lower-cased query, in index order. A limit <= 0 means MaxMatches.
// An empty query matches nothing.
func (x *Index) Match(query string, limit int) []string {
	q := NormalizeQuery(query)
	if q == "" {
		return nil
	}
	if limit <= 0 || limit > MaxMatches {
		limit = MaxMatches
	}
	var out []string
	for i, lc := range x.lowered {
		if !strings.Contains(lc, q) {
			continue
		}
		out = append(out, x.names[i])
		if len(out) == limit {
			break
		}
	}
	return out
}

// NormalizeQuery trims and lower-cases raw search box text.
func NormalizeQuery(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}
