package modref

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromPath(t *testing.T) {
	tests := []struct {
		name        string
		path        string
		prefixDepth int
		suffix      string
		want        Ref
	}{
		{
			name:        "joyride style test path",
			path:        ".joyride/src/test/foo/bar_baz_test.cljs",
			prefixDepth: 3,
			suffix:      ".cljs",
			want:        "foo.bar-baz-test",
		},
		{
			name:        "nested namespaces",
			path:        "test/app/util/string_helpers_test.cljs",
			prefixDepth: 1,
			suffix:      ".cljs",
			want:        "app.util.string-helpers-test",
		},
		{
			name:        "no prefix to drop",
			path:        "core_test.cljs",
			prefixDepth: 0,
			suffix:      ".cljs",
			want:        "core-test",
		},
		{
			name:        "prefix swallows whole path",
			path:        "a/b",
			prefixDepth: 2,
			suffix:      ".cljs",
			want:        "",
		},
		{
			name:        "different suffix untouched",
			path:        "test/foo_test.lua",
			prefixDepth: 1,
			suffix:      ".cljs",
			want:        "foo-test.lua",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FromPath(tt.path, tt.prefixDepth, tt.suffix))
		})
	}
}

func TestFromPathInRoot(t *testing.T) {
	assert.Equal(t, Ref("foo.bar-baz-test"),
		FromPathInRoot(".joyride/src/test/foo/bar_baz_test.cljs", ".joyride/src/test", ".cljs"))

	assert.Equal(t, Ref("smoke-test"),
		FromPathInRoot("smoke_test.cljs", ".", ".cljs"))
}

func TestFromPathIsDeterministic(t *testing.T) {
	a := FromPath("test/a/b_test.cljs", 1, ".cljs")
	b := FromPath("test/a/b_test.cljs", 1, ".cljs")
	assert.Equal(t, a, b)
}
