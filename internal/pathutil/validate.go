// Package pathutil provides utilities for safe path handling.
package pathutil

import (
	"errors"
	"path/filepath"
	"strings"
)

// Validation errors.
var (
	ErrEmptyPath = errors.New("path cannot be empty")
	ErrNullBytes = errors.New("path contains null bytes")
)

// ValidatePath cleans a path and rejects obviously unsafe input before it is
// handed to the filesystem. Symlinks are resolved when the target exists so
// the same file always validates to the same path.
func ValidatePath(path string) (string, error) {
	if path == "" {
		return "", ErrEmptyPath
	}

	cleaned := filepath.Clean(path)
	if strings.Contains(cleaned, "\x00") {
		return "", ErrNullBytes
	}

	// Paths that do not exist yet still validate; callers create files in
	// cleaned locations.
	realPath, err := filepath.EvalSymlinks(cleaned)
	if err != nil {
		return cleaned, nil
	}
	return realPath, nil
}
