package v8

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeDump(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestLoader_Load_ValidDumps(t *testing.T) {
	dir := t.TempDir()
	writeDump(t, dir, "coverage-100-1.json", `{"result":[{"url":"file:///app/a.js","functions":[]}]}`)
	writeDump(t, dir, "coverage-101-1.json", `{"result":[{"url":"file:///app/b.js","functions":[]}]}`)

	dumps, err := Loader{}.Load(dir)

	require.NoError(t, err)
	require.Len(t, dumps, 2)
}

func TestLoader_Load_SkipsMalformedFiles(t *testing.T) {
	dir := t.TempDir()
	writeDump(t, dir, "coverage-100-1.json", `{"result":[{"url":"file:///app/a.js","functions":[]}]}`)
	writeDump(t, dir, "coverage-101-1.json", `{not json`)
	writeDump(t, dir, "coverage-102-1.json", `{"unrelated":true}`)

	dumps, err := Loader{}.Load(dir)

	require.NoError(t, err)
	assert.Len(t, dumps, 1, "only the valid dump should survive")
}

func TestLoader_Load_IgnoresNonJSONEntries(t *testing.T) {
	dir := t.TempDir()
	writeDump(t, dir, "notes.txt", "not a dump")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.json"), 0o755))

	dumps, err := Loader{}.Load(dir)

	require.NoError(t, err)
	assert.Empty(t, dumps)
}

func TestLoader_Load_MissingDirectoryIsFatal(t *testing.T) {
	_, err := Loader{}.Load(filepath.Join(t.TempDir(), "does-not-exist"))
	require.Error(t, err)
}

func TestLoader_Load_ParsesSourceMapCache(t *testing.T) {
	dir := t.TempDir()
	writeDump(t, dir, "coverage-100-1.json", `{
		"result":[{"url":"file:///app/a.js","functions":[]}],
		"source-map-cache":{
			"file:///app/a.js":{"lineLengths":[10,20],"data":{"version":3,"sources":["a.ts"],"mappings":""}}
		}
	}`)

	dumps, err := Loader{}.Load(dir)

	require.NoError(t, err)
	require.Len(t, dumps, 1)
	entry, ok := dumps[0].SourceMapCache["file:///app/a.js"]
	require.True(t, ok)
	assert.Equal(t, []int{10, 20}, entry.LineLengths)

	sm, err := entry.DecodeSourceMap()
	require.NoError(t, err)
	require.NotNil(t, sm)
	assert.Equal(t, []string{"a.ts"}, sm.Sources)
}
