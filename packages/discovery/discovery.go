// Package discovery finds test files under a root directory and maps
// them to module refs. Discovery is one-shot; the watch loop re-runs
// it on every cycle so refs are always recomputed from disk.
package discovery

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/watchcat-dev/watchcat/packages/modref"
)

// TestFile pairs a discovered file with its module ref.
type TestFile struct {
	// Path is the file's path relative to the discovery root.
	Path string
	// Ref is the symbolic module identifier derived from Path.
	Ref modref.Ref
}

// FindFiles returns the paths under root matching pattern, relative
// to root and sorted. Patterns support doublestar globs such as
// "**/*_test.cljs".
func FindFiles(root, pattern string) ([]string, error) {
	if _, err := os.Stat(root); err != nil {
		return nil, fmt.Errorf("discovery root: %w", err)
	}
	matches, err := doublestar.Glob(os.DirFS(root), pattern)
	if err != nil {
		return nil, fmt.Errorf("matching %q: %w", pattern, err)
	}
	sort.Strings(matches)
	return matches, nil
}

// Discover finds every test file under root matching pattern and
// derives its module ref by stripping suffix.
func Discover(root, pattern, suffix string) ([]TestFile, error) {
	paths, err := FindFiles(root, pattern)
	if err != nil {
		return nil, err
	}

	files := make([]TestFile, 0, len(paths))
	for _, p := range paths {
		ref := modref.FromPath(p, 0, suffix)
		if ref == "" {
			continue
		}
		files = append(files, TestFile{Path: p, Ref: ref})
	}
	return files, nil
}

// Refs extracts just the module refs from discovered files.
func Refs(files []TestFile) []modref.Ref {
	refs := make([]modref.Ref, len(files))
	for i, f := range files {
		refs[i] = f.Ref
	}
	return refs
}

// RefForPath maps a changed path to its module ref, returning false
// when the path lies outside root or does not carry the test suffix.
func RefForPath(path, root, suffix string) (modref.Ref, bool) {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", false
	}
	if !strings.HasSuffix(rel, suffix) {
		return "", false
	}
	return modref.FromPath(rel, 0, suffix), true
}
