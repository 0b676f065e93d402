// Package istanbul converts merged byte-offset script coverage into
// Istanbul-style file records.
package istanbul

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/felixgeelhaar/v8cov/internal/domain"
	"github.com/felixgeelhaar/v8cov/internal/pathutil"
	"github.com/felixgeelhaar/v8cov/internal/v8"
)

// Converter builds per-file coverage records from merged script coverage.
// WrapperLength is subtracted from every byte offset to compensate for the
// module wrapper the runtime prepends to scripts before instrumenting them.
type Converter struct {
	ResolveRoot   string
	WrapperLength int
}

// ResolvePath returns the absolute path a script's coverage will be reported
// under. When a cached source map names an original source, the record is
// keyed by that source instead of the compiled script.
func (c Converter) ResolvePath(scriptPath string, entry *v8.SourceMapEntry) string {
	resolved := pathutil.Resolve(c.ResolveRoot, scriptPath)
	src := mappedSource(entry)
	if src == "" {
		return resolved
	}
	if pathutil.IsFileURL(src) {
		if p, err := pathutil.FileURLToPath(src); err == nil {
			return pathutil.Resolve(c.ResolveRoot, p)
		}
		return resolved
	}
	if filepath.IsAbs(src) {
		return filepath.Clean(src)
	}
	return filepath.Join(filepath.Dir(resolved), filepath.FromSlash(src))
}

// Convert translates one merged script record into a file record.
func (c Converter) Convert(scriptPath string, fns []v8.FunctionCoverage, entry *v8.SourceMapEntry) (*domain.FileCoverage, error) {
	source, err := c.loadSource(pathutil.Resolve(c.ResolveRoot, scriptPath), entry)
	if err != nil {
		return nil, err
	}
	sc := &scriptConverter{
		path:          c.ResolvePath(scriptPath, entry),
		source:        source,
		wrapperLength: c.WrapperLength,
	}
	sc.applyCoverage(fns)
	return sc.fileCoverage()
}

// Zero loads a never-executed file and produces its all-zero record.
func (c Converter) Zero(path string) (*domain.FileCoverage, error) {
	resolved := pathutil.Resolve(c.ResolveRoot, path)
	source, err := c.loadSource(resolved, nil)
	if err != nil {
		return nil, err
	}
	return domain.ZeroFileCoverage(resolved, source.lineLengths())
}

// loadSource prefers the cached line-length metadata over disk: when the
// source-map cache retained lineLengths, a placeholder source with matching
// line boundaries stands in for the original text.
func (c Converter) loadSource(path string, entry *v8.SourceMapEntry) (*sourceText, error) {
	if entry != nil && len(entry.LineLengths) > 0 {
		return newSourceText(placeholderSource(entry.LineLengths)), nil
	}
	clean, err := pathutil.ValidatePath(path)
	if err != nil {
		return nil, fmt.Errorf("invalid script path: %w", err)
	}
	raw, err := os.ReadFile(clean) // #nosec G304 - path is validated above
	if err != nil {
		return nil, fmt.Errorf("read script source %s: %w", path, err)
	}
	return newSourceText(string(raw)), nil
}

func mappedSource(entry *v8.SourceMapEntry) string {
	if entry == nil {
		return ""
	}
	sm, err := entry.DecodeSourceMap()
	if err != nil || sm == nil || len(sm.Sources) == 0 {
		return ""
	}
	src := sm.Sources[0]
	if src != "" && sm.SourceRoot != "" && !pathutil.IsFileURL(src) && !filepath.IsAbs(src) {
		src = sm.SourceRoot + "/" + src
	}
	return src
}

// scriptConverter accumulates coverage for one script before emitting the
// Istanbul record.
type scriptConverter struct {
	path          string
	source        *sourceText
	wrapperLength int

	lineCounts []int
	fns        []fnRecord
	branches   []branchRecord
}

type fnRecord struct {
	meta  domain.FnMeta
	count int
}

type branchRecord struct {
	meta  domain.BranchMeta
	count int
}

// applyCoverage folds function coverage into per-line counts. Ranges are
// applied in order, so nested block ranges overwrite the count their
// enclosing range assigned to the lines they span.
func (sc *scriptConverter) applyCoverage(fns []v8.FunctionCoverage) {
	if sc.lineCounts == nil {
		sc.lineCounts = make([]int, sc.source.lineCount())
	}
	for i, fn := range fns {
		if len(fn.Ranges) == 0 {
			continue
		}
		root := fn.Ranges[0]
		rootStart, rootEnd := sc.adjust(root.StartOffset), sc.adjust(root.EndOffset)
		name := fn.FunctionName
		if name == "" {
			name = "(anonymous_" + strconv.Itoa(i) + ")"
		}
		loc := sc.source.locateRange(rootStart, rootEnd)
		sc.fns = append(sc.fns, fnRecord{
			meta:  domain.FnMeta{Name: name, Decl: loc, Loc: loc, Line: loc.Start.Line},
			count: root.Count,
		})

		for ri, r := range fn.Ranges {
			start, end := sc.adjust(r.StartOffset), sc.adjust(r.EndOffset)
			sc.setLineCounts(start, end, r.Count)
			if ri > 0 && fn.IsBlockCoverage {
				blockLoc := sc.source.locateRange(start, end)
				sc.branches = append(sc.branches, branchRecord{
					meta: domain.BranchMeta{
						Type:      "branch",
						Loc:       blockLoc,
						Locations: []domain.Range{blockLoc},
						Line:      blockLoc.Start.Line,
					},
					count: r.Count,
				})
			}
		}
	}
}

func (sc *scriptConverter) adjust(offset int) int {
	offset -= sc.wrapperLength
	if offset < 0 {
		return 0
	}
	if offset > sc.source.size {
		return sc.source.size
	}
	return offset
}

func (sc *scriptConverter) setLineCounts(start, end, count int) {
	if end <= start {
		return
	}
	for i := sc.source.lineAt(start); i < len(sc.lineCounts); i++ {
		line := sc.source.lines[i]
		if line.start >= end {
			break
		}
		if line.end > start {
			sc.lineCounts[i] = count
		}
	}
}

func (sc *scriptConverter) fileCoverage() (*domain.FileCoverage, error) {
	fc, err := domain.NewFileCoverage(sc.path)
	if err != nil {
		return nil, err
	}
	if sc.lineCounts == nil {
		sc.lineCounts = make([]int, sc.source.lineCount())
	}
	for i, count := range sc.lineCounts {
		key := strconv.Itoa(i)
		line := sc.source.lines[i]
		fc.StatementMap[key] = domain.Range{
			Start: domain.Location{Line: i + 1, Column: 0},
			End:   domain.Location{Line: i + 1, Column: line.end - line.start},
		}
		fc.S[key] = count
	}
	for i, fn := range sc.fns {
		key := strconv.Itoa(i)
		fc.FnMap[key] = fn.meta
		fc.F[key] = fn.count
	}
	for i, branch := range sc.branches {
		key := strconv.Itoa(i)
		fc.BranchMap[key] = branch.meta
		fc.B[key] = []int{branch.count}
	}
	return fc, nil
}
