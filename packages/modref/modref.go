// Package modref maps test file paths to the symbolic module refs the
// scripting environment loads. The mapping is a pure function:
// directory segments become namespace segments joined by ".",
// underscores become hyphens and the test-file suffix is stripped.
package modref

import (
	"path/filepath"
	"strings"
)

// Ref names a loadable unit of test code, e.g. "foo.bar-baz-test".
type Ref string

// String returns the ref as a plain string.
func (r Ref) String() string {
	return string(r)
}

// FromPath maps a file path to a module ref by dropping prefixDepth
// leading path segments (the project-relative test-root prefix) and
// stripping suffix. An empty result means the path was nothing but
// prefix.
//
// FromPath(".joyride/src/test/foo/bar_baz_test.cljs", 3, ".cljs")
// yields "foo.bar-baz-test".
func FromPath(path string, prefixDepth int, suffix string) Ref {
	segments := strings.Split(filepath.ToSlash(filepath.Clean(path)), "/")
	if prefixDepth >= len(segments) {
		return ""
	}
	segments = segments[prefixDepth:]

	last := len(segments) - 1
	segments[last] = strings.TrimSuffix(segments[last], suffix)

	ns := strings.Join(segments, ".")
	ns = strings.ReplaceAll(ns, "_", "-")
	return Ref(ns)
}

// FromPathInRoot maps a path that lives under root, deriving the
// prefix depth from root's own segment count. It is the form the
// orchestrator uses: the test root comes from configuration, not from
// counting segments by hand.
func FromPathInRoot(path, root, suffix string) Ref {
	root = filepath.ToSlash(filepath.Clean(root))
	depth := 0
	if root != "." && root != "/" && root != "" {
		depth = len(strings.Split(root, "/"))
	}
	return FromPath(path, depth, suffix)
}
