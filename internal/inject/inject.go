// Package inject rewrites a static site on disk so every page carries the
// shared header, for hosting without the pokenav server.
package inject

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/poku-e/pokenav/internal/header"
	"github.com/poku-e/pokenav/internal/nav"
)

// DefaultPattern selects the pages to rewrite.
const DefaultPattern = "**/*.html"

type Options struct {
	SiteDir string
	OutDir  string
	Pattern string
	// Skip lists site-relative paths copied untouched, e.g. the header fragment.
	Skip []string
	// Progress is called after each page.
	Progress func(done, total int, page string)
}

type Summary struct {
	Pages     int
	Fallbacks int
	Skipped   int
}

// Pages lists the site-relative pages matched by pattern, sorted.
func Pages(fsys fs.FS, pattern string) ([]string, error) {
	if pattern == "" {
		pattern = DefaultPattern
	}
	ms, err := doublestar.Glob(fsys, pattern)
	if err != nil {
		return nil, fmt.Errorf("glob %q: %w", pattern, err)
	}
	sort.Strings(ms)
	return ms, nil
}

// Run installs the header into every matched page under SiteDir and writes
// the result to the same relative path under OutDir.
func Run(ctx context.Context, in *header.Installer, opts Options) (Summary, error) {
	var sum Summary
	if opts.SiteDir == "" || opts.OutDir == "" {
		return sum, fmt.Errorf("site and out directories are required")
	}
	siteFS := os.DirFS(opts.SiteDir)
	pages, err := Pages(siteFS, opts.Pattern)
	if err != nil {
		return sum, err
	}
	skip := make(map[string]bool, len(opts.Skip))
	for _, s := range opts.Skip {
		skip[path.Clean(s)] = true
	}

	for i, page := range pages {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		src, err := fs.ReadFile(siteFS, page)
		if err != nil {
			return sum, fmt.Errorf("read %s: %w", page, err)
		}

		out := src
		if skip[page] {
			sum.Skipped++
		} else {
			var buf bytes.Buffer
			res, err := in.InstallHTML(ctx, bytes.NewReader(src), &buf, nav.PageName(page))
			if err != nil {
				return sum, fmt.Errorf("install header in %s: %w", page, err)
			}
			if res.Fallback {
				sum.Fallbacks++
			}
			sum.Pages++
			out = buf.Bytes()
		}

		dst := filepath.Join(opts.OutDir, filepath.FromSlash(page))
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return sum, err
		}
		if err := writeFileAtomic(dst, out); err != nil {
			return sum, fmt.Errorf("write %s: %w", dst, err)
		}
		if opts.Progress != nil {
			opts.Progress(i+1, len(pages), page)
		}
	}
	return sum, nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
