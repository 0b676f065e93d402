package resolver

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGlobFilter_ShouldInstrument(t *testing.T) {
	f := NewGlobFilter("/app", []string{"src/**"}, []string{"src/**/*.test.js", "dist/**"})

	tests := []struct {
		name string
		path string
		want bool
	}{
		{name: "included file", path: "/app/src/index.js", want: true},
		{name: "nested included file", path: "/app/src/lib/util.js", want: true},
		{name: "excluded test file", path: "/app/src/lib/util.test.js", want: false},
		{name: "excluded directory", path: "/app/dist/bundle.js", want: false},
		{name: "outside include patterns", path: "/app/tools/gen.js", want: false},
		{name: "outside the root", path: "/elsewhere/a.js", want: false},
		{name: "node builtin", path: "node:fs", want: false},
		{name: "non-file url", path: "https://example.com/a.js", want: false},
		{name: "relative path inside include", path: "src/a.js", want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, f.ShouldInstrument(tt.path))
		})
	}
}

func TestGlobFilter_NoIncludesMeansEverything(t *testing.T) {
	f := NewGlobFilter("/app", nil, []string{"**/*.spec.js"})

	assert.True(t, f.ShouldInstrument("/app/anything/here.js"))
	assert.False(t, f.ShouldInstrument("/app/anything/here.spec.js"))
}

func TestGlobFilter_GoStyleWildcard(t *testing.T) {
	f := NewGlobFilter("/app", []string{"./src/..."}, nil)
	assert.True(t, f.ShouldInstrument("/app/src/deep/file.js"))
}

func TestGlobFilter_Files(t *testing.T) {
	root := t.TempDir()
	mustWrite := func(rel string) {
		t.Helper()
		full := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte("// x\n"), 0o644))
	}
	mustWrite("src/a.js")
	mustWrite("src/b.mjs")
	mustWrite("src/b.test.js")
	mustWrite("src/readme.md")
	mustWrite("node_modules/dep/index.js")
	mustWrite(".hidden/c.js")

	f := NewGlobFilter(root, nil, []string{"**/*.test.js"})

	files, err := f.Files(root)
	require.NoError(t, err)

	rel := make([]string, 0, len(files))
	for _, file := range files {
		r, err := filepath.Rel(root, file)
		require.NoError(t, err)
		rel = append(rel, filepath.ToSlash(r))
	}
	assert.ElementsMatch(t, []string{"src/a.js", "src/b.mjs"}, rel)
}

func TestGlobFilter_FilesMissingRoot(t *testing.T) {
	f := NewGlobFilter(filepath.Join(t.TempDir(), "missing"), nil, nil)
	_, err := f.Files("")
	require.Error(t, err)
}
