package pyext

import (
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"
	"shanhu.io/misc/errcode"
	"shanhu.io/misc/strutil"
)

// DefaultSourcePatterns selects every C++ translation unit in the tree.
var DefaultSourcePatterns = []string{"**/*.cpp"}

type pathMatcher struct {
	globs []glob.Glob
}

func newPathMatcher(patterns []string) (*pathMatcher, error) {
	m := new(pathMatcher)
	for _, p := range patterns {
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, errcode.Annotatef(err, "compile pattern %q", p)
		}
		m.globs = append(m.globs, g)

		// "**/x" also selects x at the root of the tree.
		if rest := strings.TrimPrefix(p, "**/"); rest != p {
			g, err := glob.Compile(rest, '/')
			if err != nil {
				return nil, errcode.Annotatef(err, "compile pattern %q", rest)
			}
			m.globs = append(m.globs, g)
		}
	}
	return m, nil
}

func (m *pathMatcher) match(name string) bool {
	for _, g := range m.globs {
		if g.Match(name) {
			return true
		}
	}
	return false
}

// DiscoverSources walks root and returns the slash-separated relative paths
// of all regular files matching one of include and none of exclude. Any
// directory in skipDirs (absolute or relative to root) is not descended.
// The result is sorted and free of duplicates.
func DiscoverSources(root string, include, exclude, skipDirs []string) ([]string, error) {
	if len(include) == 0 {
		include = DefaultSourcePatterns
	}
	inc, err := newPathMatcher(include)
	if err != nil {
		return nil, errcode.Annotate(err, "include patterns")
	}
	exc, err := newPathMatcher(exclude)
	if err != nil {
		return nil, errcode.Annotate(err, "exclude patterns")
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, errcode.Annotatef(err, "resolve %q", root)
	}

	skip := make(map[string]bool)
	for _, d := range skipDirs {
		if d == "" {
			continue
		}
		if !filepath.IsAbs(d) {
			d = filepath.Join(absRoot, d)
		}
		skip[filepath.Clean(d)] = true
	}

	found := make(map[string]bool)
	walk := func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p != absRoot && skip[p] {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(absRoot, p)
		if err != nil {
			return errcode.Annotatef(err, "relative path of %q", p)
		}
		name := filepath.ToSlash(rel)
		if inc.match(name) && !exc.match(name) {
			found[name] = true
		}
		return nil
	}

	if err := filepath.WalkDir(absRoot, walk); err != nil {
		return nil, errcode.Annotatef(err, "walk %q", root)
	}
	return strutil.SortedList(found), nil
}
