package pathutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileURLToPath(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		want    string
		wantErr bool
	}{
		{name: "absolute path", url: "file:///app/src/index.js", want: "/app/src/index.js"},
		{name: "percent encoded", url: "file:///app/with%20space.js", want: "/app/with space.js"},
		{name: "localhost host", url: "file://localhost/app/a.js", want: "/app/a.js"},
		{name: "trailing dot segments", url: "file:///app/./src/../a.js", want: "/app/a.js"},
		{name: "not a file url", url: "https://example.com/a.js", wantErr: true},
		{name: "remote host", url: "file://remote/app/a.js", wantErr: true},
		{name: "empty", url: "", wantErr: true},
		{name: "no path", url: "file://", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FileURLToPath(tt.url)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFileURLToPath_MatchesBarePath(t *testing.T) {
	fromURL, err := FileURLToPath("file:///app/src/index.js")
	require.NoError(t, err)
	assert.Equal(t, Resolve("/ignored", "/app/src/index.js"), fromURL,
		"a file URL and the equivalent bare path must produce the same key")
}

func TestResolve(t *testing.T) {
	assert.Equal(t, "/app/a.js", Resolve("/app", "a.js"))
	assert.Equal(t, "/elsewhere/a.js", Resolve("/app", "/elsewhere/a.js"))
	assert.Equal(t, "a.js", Resolve("", "a.js"))
}

func TestIsFileURL(t *testing.T) {
	assert.True(t, IsFileURL("file:///a.js"))
	assert.False(t, IsFileURL("/a.js"))
	assert.False(t, IsFileURL("https://example.com"))
}
