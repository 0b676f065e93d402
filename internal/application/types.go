// Package application wires the aggregation engine together: it owns the
// ports infrastructure implements and the service that turns raw process
// dumps into one coverage map.
package application

import (
	"io"

	"github.com/felixgeelhaar/v8cov/internal/domain"
	"github.com/felixgeelhaar/v8cov/internal/v8"
)

// OutputFormat selects how a report is rendered.
type OutputFormat string

const (
	OutputText OutputFormat = "text"
	OutputJSON OutputFormat = "json"
)

// Watermark is a low/high percentage pair a renderer uses to color-code
// coverage. The engine only carries it through.
type Watermark struct {
	Low  float64 `yaml:"low" json:"low"`
	High float64 `yaml:"high" json:"high"`
}

// Watermarks holds one watermark per metric.
type Watermarks struct {
	Statements Watermark `yaml:"statements" json:"statements"`
	Branches   Watermark `yaml:"branches" json:"branches"`
	Functions  Watermark `yaml:"functions" json:"functions"`
}

// DefaultWatermarks mirrors the conventional 50/80 renderer bands.
func DefaultWatermarks() Watermarks {
	w := Watermark{Low: 50, High: 80}
	return Watermarks{Statements: w, Branches: w, Functions: w}
}

// Config is the resolved configuration for one aggregation run.
type Config struct {
	// ResolveRoot anchors relative script paths and the all-files walk.
	ResolveRoot string
	// TempDirectory is where the instrumented runtime wrote its dumps.
	TempDirectory string
	Include       []string
	Exclude       []string
	Reporter      OutputFormat
	Watermarks    Watermarks
	// All synthesizes zero records for discovered files that never ran.
	All bool
	// OmitRelative drops script entries whose path is not absolute.
	OmitRelative bool
	// WrapperLength is subtracted from byte offsets during conversion.
	WrapperLength int
}

// DumpLoader reads raw process dumps from a coverage directory.
type DumpLoader interface {
	Load(dir string) ([]v8.ProcessCoverage, error)
}

// InclusionFilter decides which paths participate in the report and can
// enumerate all matching files under a root.
type InclusionFilter interface {
	ShouldInstrument(path string) bool
	Files(root string) ([]string, error)
}

// ScriptConverter turns merged byte-offset script coverage into per-file
// records.
type ScriptConverter interface {
	// ResolvePath reports the path a script's coverage will be keyed by,
	// after source-map resolution.
	ResolvePath(scriptPath string, entry *v8.SourceMapEntry) string
	Convert(scriptPath string, fns []v8.FunctionCoverage, entry *v8.SourceMapEntry) (*domain.FileCoverage, error)
	// Zero produces the all-zero record for a file that never executed.
	Zero(path string) (*domain.FileCoverage, error)
}

// Reporter renders a result. Implementations are external collaborators; the
// engine never inspects what they produce.
type Reporter interface {
	Write(w io.Writer, result Result, format OutputFormat) error
}

// HistoryStore persists per-run coverage totals.
type HistoryStore interface {
	Load() (domain.History, error)
	Append(entry domain.HistoryEntry) error
}

// FileResult is one file's tallies, precomputed for renderers.
type FileResult struct {
	File       string      `json:"file"`
	Statements domain.Stat `json:"statements"`
	Branches   domain.Stat `json:"branches"`
	Functions  domain.Stat `json:"functions"`
}

// Result is what reaches a renderer: the raw map plus derived tallies and
// the configured watermarks.
type Result struct {
	Map        domain.CoverageMap `json:"-"`
	Files      []FileResult       `json:"files"`
	Totals     domain.Summary     `json:"totals"`
	Watermarks Watermarks         `json:"watermarks"`
}

// BuildResult derives renderer-facing tallies from a coverage map.
func BuildResult(covMap domain.CoverageMap, marks Watermarks) Result {
	result := Result{Map: covMap, Watermarks: marks}
	for _, path := range covMap.Paths() {
		sum := covMap[path].Summary()
		result.Files = append(result.Files, FileResult{
			File:       path,
			Statements: sum.Statements,
			Branches:   sum.Branches,
			Functions:  sum.Functions,
		})
	}
	result.Totals = covMap.Summary()
	return result
}

// ReportOptions controls the Report operation.
type ReportOptions struct {
	// Record appends the run's totals to the history store.
	Record  bool
	History HistoryStore
}
