package v8

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Loader reads raw process dumps from a coverage directory.
type Loader struct {
	Log *slog.Logger
}

// Load parses every *.json file in dir. A file that cannot be read or does
// not parse as a process dump is logged and skipped; one bad file never
// aborts the run. An unreadable directory is a configuration error and is
// returned to the caller.
func (l Loader) Load(dir string) ([]ProcessCoverage, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read coverage directory %s: %w", dir, err)
	}

	var dumps []ProcessCoverage
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		raw, err := os.ReadFile(path) // #nosec G304 - path comes from a directory listing
		if err != nil {
			l.warn("skipping unreadable coverage dump", path, err)
			continue
		}
		dump, err := parseDump(raw)
		if err != nil {
			l.warn("skipping malformed coverage dump", path, err)
			continue
		}
		dumps = append(dumps, dump)
	}
	return dumps, nil
}

// parseDump validates the dump schema up front so later stages never probe
// record shapes.
func parseDump(raw []byte) (ProcessCoverage, error) {
	var dump ProcessCoverage
	if err := json.Unmarshal(raw, &dump); err != nil {
		return ProcessCoverage{}, err
	}
	if dump.Result == nil {
		return ProcessCoverage{}, fmt.Errorf("dump has no result array")
	}
	return dump, nil
}

func (l Loader) warn(msg, path string, err error) {
	if l.Log == nil {
		return
	}
	l.Log.Warn(msg, "file", path, "error", err)
}
