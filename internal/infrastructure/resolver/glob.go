// Package resolver decides which files participate in a coverage report.
package resolver

import (
	"os"
	"path"
	"path/filepath"
	"strings"
)

// defaultExtensions are the script extensions enumerated in all-files mode.
var defaultExtensions = []string{".js", ".mjs", ".cjs"}

// GlobFilter is an include/exclude filter over files beneath a resolve root.
// Include patterns are optional (empty means everything); exclude patterns
// win over include patterns. Patterns are slash-separated and may use a
// single "**" segment for recursive matching.
type GlobFilter struct {
	root       string
	include    []string
	exclude    []string
	extensions []string
}

// Option configures the filter.
type Option func(*GlobFilter)

// WithExtensions overrides the extensions considered during enumeration.
func WithExtensions(exts ...string) Option {
	return func(f *GlobFilter) {
		f.extensions = exts
	}
}

// NewGlobFilter creates a filter rooted at root.
func NewGlobFilter(root string, include, exclude []string, opts ...Option) *GlobFilter {
	if root == "" {
		root, _ = os.Getwd()
	}
	f := &GlobFilter{
		root:       filepath.Clean(root),
		include:    normalizePatterns(include),
		exclude:    normalizePatterns(exclude),
		extensions: defaultExtensions,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// ShouldInstrument reports whether a script path (or URL) participates in the
// report. Non-filesystem URLs such as node: builtins never participate.
func (f *GlobFilter) ShouldInstrument(p string) bool {
	rel, ok := f.relative(p)
	if !ok {
		return false
	}
	if matchesAny(f.exclude, rel) {
		return false
	}
	if len(f.include) == 0 {
		return true
	}
	return matchesAny(f.include, rel)
}

// Files enumerates every file under root that passes the filter and carries a
// known script extension. Hidden directories and dependency trees are not
// descended into.
func (f *GlobFilter) Files(root string) ([]string, error) {
	if root == "" {
		root = f.root
	}
	var files []string
	err := filepath.Walk(root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		base := filepath.Base(p)
		if info.IsDir() {
			if p != root && (strings.HasPrefix(base, ".") || base == "node_modules" || base == "vendor") {
				return filepath.SkipDir
			}
			return nil
		}
		if !f.hasScriptExtension(base) {
			return nil
		}
		if !f.ShouldInstrument(p) {
			return nil
		}
		files = append(files, p)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

// relative rewrites p into a slash-separated path relative to the root.
func (f *GlobFilter) relative(p string) (string, bool) {
	if strings.Contains(p, "://") {
		return "", false
	}
	// node:fs and friends carry a scheme but no filesystem location.
	if strings.Contains(p, ":") && !filepath.IsAbs(p) {
		return "", false
	}
	clean := filepath.Clean(p)
	if filepath.IsAbs(clean) {
		rel, err := filepath.Rel(f.root, clean)
		if err != nil || strings.HasPrefix(rel, "..") {
			return "", false
		}
		return filepath.ToSlash(rel), true
	}
	return filepath.ToSlash(clean), true
}

func (f *GlobFilter) hasScriptExtension(name string) bool {
	for _, ext := range f.extensions {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}

func matchesAny(patterns []string, rel string) bool {
	for _, pattern := range patterns {
		if matchPattern(pattern, rel) {
			return true
		}
	}
	return false
}

// matchPattern matches a slash-separated relative path against one pattern.
// A "**" segment matches any number of directories.
func matchPattern(pattern, rel string) bool {
	if ok, _ := path.Match(pattern, rel); ok {
		return true
	}
	if !strings.Contains(pattern, "**") {
		return false
	}
	parts := strings.SplitN(pattern, "**", 2)
	prefix := strings.TrimSuffix(parts[0], "/")
	suffix := strings.TrimPrefix(parts[1], "/")

	if prefix != "" && rel != prefix && !strings.HasPrefix(rel, prefix+"/") {
		return false
	}
	if suffix == "" {
		return true
	}
	if ok, _ := path.Match(suffix, path.Base(rel)); ok {
		return true
	}
	return rel == suffix || strings.HasSuffix(rel, "/"+suffix)
}

// normalizePatterns converts Go-style "dir/..." wildcards to "dir/**" and
// strips leading "./" so config patterns stay ergonomic.
func normalizePatterns(patterns []string) []string {
	out := make([]string, 0, len(patterns))
	for _, pattern := range patterns {
		pattern = strings.TrimPrefix(pattern, "./")
		if strings.HasSuffix(pattern, "/...") {
			pattern = strings.TrimSuffix(pattern, "/...") + "/**"
		}
		out = append(out, pattern)
	}
	return out
}
