// Package history persists per-run coverage totals to a JSON file.
package history

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"

	"github.com/felixgeelhaar/v8cov/internal/domain"
)

// DefaultMaxEntries bounds how many recorded runs are kept.
const DefaultMaxEntries = 100

// FileStore stores recorded runs in a single JSON file. Appends take an
// exclusive file lock so concurrent report processes do not lose entries.
type FileStore struct {
	Path       string
	MaxEntries int
}

// Load reads the recorded runs. A missing file is an empty history.
func (s *FileStore) Load() (domain.History, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return domain.History{}, nil
		}
		return domain.History{}, err
	}

	var h domain.History
	if err := json.Unmarshal(data, &h); err != nil {
		return domain.History{}, err
	}

	return h, nil
}

// Save writes the full history, creating parent directories as needed.
func (s *FileStore) Save(h domain.History) error {
	dir := filepath.Dir(s.Path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return err
	}

	data, err := json.MarshalIndent(h, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(s.Path, data, 0o600)
}

// Append records one run under the file lock, trimming the oldest entries
// past the configured bound.
func (s *FileStore) Append(entry domain.HistoryEntry) error {
	lock, err := s.acquireLock()
	if err != nil {
		return err
	}
	defer lock.release()

	h, err := s.Load()
	if err != nil {
		return err
	}

	h.Entries = append(h.Entries, entry)

	max := s.MaxEntries
	if max == 0 {
		max = DefaultMaxEntries
	}
	if len(h.Entries) > max {
		h.Entries = h.Entries[len(h.Entries)-max:]
	}

	return s.Save(h)
}
