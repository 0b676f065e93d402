package istanbul

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/v8cov/internal/v8"
)

// Four lines of four bytes each, newline separated: offsets 0-4, 5-9, 10-14,
// 15-19.
const fixtureSource = "AAAA\nBBBB\nCCCC\nDDDD\n"

func writeFixture(t *testing.T) (dir, path string) {
	t.Helper()
	dir = t.TempDir()
	path = filepath.Join(dir, "script.js")
	require.NoError(t, os.WriteFile(path, []byte(fixtureSource), 0o644))
	return dir, path
}

func TestConverter_Convert_LineCounts(t *testing.T) {
	_, path := writeFixture(t)

	fns := []v8.FunctionCoverage{
		{FunctionName: "", IsBlockCoverage: false, Ranges: []v8.CoverageRange{{StartOffset: 0, EndOffset: 20, Count: 1}}},
		{FunctionName: "cond", IsBlockCoverage: true, Ranges: []v8.CoverageRange{
			{StartOffset: 5, EndOffset: 9, Count: 2},
			{StartOffset: 5, EndOffset: 7, Count: 0},
		}},
		{FunctionName: "miss", IsBlockCoverage: true, Ranges: []v8.CoverageRange{{StartOffset: 10, EndOffset: 20, Count: 0}}},
	}

	fc, err := Converter{}.Convert(path, fns, nil)
	require.NoError(t, err)

	assert.Equal(t, path, fc.Path)
	require.Len(t, fc.S, 4)
	assert.Equal(t, 1, fc.S["0"], "line covered only by the whole-script range")
	assert.Equal(t, 0, fc.S["1"], "inner zero block overrides the function count")
	assert.Equal(t, 0, fc.S["2"])
	assert.Equal(t, 0, fc.S["3"])

	require.Len(t, fc.F, 3)
	assert.Equal(t, "(anonymous_0)", fc.FnMap["0"].Name)
	assert.Equal(t, 1, fc.F["0"])
	assert.Equal(t, "cond", fc.FnMap["1"].Name)
	assert.Equal(t, 2, fc.F["1"])
	assert.Equal(t, 0, fc.F["2"])

	require.Len(t, fc.B, 1, "only nested block ranges become branches")
	assert.Equal(t, []int{0}, fc.B["0"])
	assert.Equal(t, 2, fc.BranchMap["0"].Line)
}

func TestConverter_Convert_WrapperLength(t *testing.T) {
	_, path := writeFixture(t)

	// Offsets recorded as if a 5-byte wrapper preceded the source.
	fns := []v8.FunctionCoverage{
		{FunctionName: "", Ranges: []v8.CoverageRange{{StartOffset: 5, EndOffset: 25, Count: 3}}},
	}

	fc, err := Converter{WrapperLength: 5}.Convert(path, fns, nil)
	require.NoError(t, err)

	for key := range fc.S {
		assert.Equal(t, 3, fc.S[key], "statement %s", key)
	}
}

func TestConverter_Convert_PlaceholderSourceFromLineLengths(t *testing.T) {
	entry := &v8.SourceMapEntry{LineLengths: []int{8, 3}}

	fns := []v8.FunctionCoverage{
		{FunctionName: "", Ranges: []v8.CoverageRange{{StartOffset: 0, EndOffset: 13, Count: 2}}},
	}

	// The script path does not exist on disk; line lengths alone must do.
	fc, err := Converter{}.Convert("/no/such/file.js", fns, entry)
	require.NoError(t, err)

	require.Len(t, fc.S, 2)
	assert.Equal(t, 2, fc.S["0"])
	assert.Equal(t, 2, fc.S["1"])
	assert.Equal(t, 8, fc.StatementMap["0"].End.Column)
	assert.Equal(t, 3, fc.StatementMap["1"].End.Column)
}

func TestConverter_Convert_MissingSourceFails(t *testing.T) {
	_, err := Converter{}.Convert("/no/such/file.js", nil, nil)
	require.Error(t, err)
}

func TestConverter_ResolvePath(t *testing.T) {
	t.Run("bare path resolved against root", func(t *testing.T) {
		got := Converter{ResolveRoot: "/app"}.ResolvePath("src/a.js", nil)
		assert.Equal(t, "/app/src/a.js", got)
	})

	t.Run("source map redirects to original source", func(t *testing.T) {
		data, err := json.Marshal(v8.SourceMap{Version: 3, Sources: []string{"a.ts"}})
		require.NoError(t, err)
		entry := &v8.SourceMapEntry{Data: data}

		got := Converter{ResolveRoot: "/app"}.ResolvePath("/app/dist/a.js", entry)
		assert.Equal(t, "/app/dist/a.ts", got)
	})

	t.Run("file url source", func(t *testing.T) {
		data, err := json.Marshal(v8.SourceMap{Version: 3, Sources: []string{"file:///app/src/a.ts"}})
		require.NoError(t, err)
		entry := &v8.SourceMapEntry{Data: data}

		got := Converter{}.ResolvePath("/app/dist/a.js", entry)
		assert.Equal(t, "/app/src/a.ts", got)
	})

	t.Run("undecodable map falls back to script path", func(t *testing.T) {
		entry := &v8.SourceMapEntry{Data: json.RawMessage(`{broken`)}
		got := Converter{}.ResolvePath("/app/dist/a.js", entry)
		assert.Equal(t, "/app/dist/a.js", got)
	})
}

func TestConverter_Zero(t *testing.T) {
	_, path := writeFixture(t)

	fc, err := Converter{}.Zero(path)
	require.NoError(t, err)

	require.Len(t, fc.S, 4)
	for key, count := range fc.S {
		assert.Zero(t, count, "statement %s", key)
	}
	assert.Equal(t, []int{0}, fc.B["0"])
	assert.Equal(t, 0, fc.F["0"])
}

func TestSourceText(t *testing.T) {
	st := newSourceText(fixtureSource)

	assert.Equal(t, 4, st.lineCount())
	assert.Equal(t, []int{4, 4, 4, 4}, st.lineLengths())
	assert.Equal(t, 0, st.lineAt(0))
	assert.Equal(t, 0, st.lineAt(4))
	assert.Equal(t, 1, st.lineAt(5))
	assert.Equal(t, 3, st.lineAt(19))

	loc := st.locate(7)
	assert.Equal(t, 2, loc.Line)
	assert.Equal(t, 2, loc.Column)
}
