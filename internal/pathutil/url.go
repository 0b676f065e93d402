package pathutil

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
)

// Conversion errors.
var (
	ErrNotFileURL = errors.New("not a file:// URL")
	ErrEmptyURL   = errors.New("url cannot be empty")
)

// IsFileURL reports whether raw uses the file:// scheme.
func IsFileURL(raw string) bool {
	return strings.HasPrefix(raw, "file://")
}

// FileURLToPath converts a file:// URL to a cleaned filesystem path.
// Percent-encoding is decoded and Windows drive URLs (file:///C:/dir) lose
// their leading slash.
func FileURLToPath(raw string) (string, error) {
	if raw == "" {
		return "", ErrEmptyURL
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse url %q: %w", raw, err)
	}
	if u.Scheme != "file" {
		return "", fmt.Errorf("%w: %q", ErrNotFileURL, raw)
	}
	if u.Host != "" && u.Host != "localhost" {
		return "", fmt.Errorf("unsupported host %q in %q", u.Host, raw)
	}
	p := u.Path
	if p == "" {
		return "", fmt.Errorf("no path in %q", raw)
	}
	if len(p) > 1 && filepath.VolumeName(p[1:]) != "" {
		p = p[1:]
	}
	return filepath.Clean(filepath.FromSlash(p)), nil
}

// Resolve returns the absolute, cleaned form of p. Relative paths are
// resolved against root.
func Resolve(root, p string) string {
	clean := filepath.Clean(p)
	if filepath.IsAbs(clean) {
		return clean
	}
	if root == "" {
		return clean
	}
	return filepath.Join(root, clean)
}
