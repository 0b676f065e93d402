// Package domain contains the core coverage model: Istanbul-style per-file
// records and the coverage map they merge into.
package domain

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
)

// Domain errors.
var (
	ErrEmptyPath    = errors.New("file path cannot be empty")
	ErrPathMismatch = errors.New("cannot merge coverage for different paths")
)

// Location is a line/column position within a source file. Lines are 1-based,
// columns are 0-based, matching the Istanbul convention.
type Location struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// Range is a start/end location pair.
type Range struct {
	Start Location `json:"start"`
	End   Location `json:"end"`
}

// FnMeta describes one function in a file's function map.
type FnMeta struct {
	Name string `json:"name"`
	Decl Range  `json:"decl"`
	Loc  Range  `json:"loc"`
	Line int    `json:"line"`
}

// BranchMeta describes one branch in a file's branch map.
type BranchMeta struct {
	Type      string  `json:"type"`
	Loc       Range   `json:"loc"`
	Locations []Range `json:"locations"`
	Line      int     `json:"line"`
}

// FileCoverage is the per-file coverage record: statement, branch and
// function hit counts keyed by index, plus the metadata maps describing what
// each index refers to. Keys are decimal strings ("0", "1", ...) so the JSON
// serialization matches the Istanbul coverage-map shape consumed by report
// renderers.
type FileCoverage struct {
	Path         string                `json:"path"`
	StatementMap map[string]Range      `json:"statementMap"`
	S            map[string]int        `json:"s"`
	FnMap        map[string]FnMeta     `json:"fnMap"`
	F            map[string]int        `json:"f"`
	BranchMap    map[string]BranchMeta `json:"branchMap"`
	B            map[string][]int      `json:"b"`
}

// NewFileCoverage returns an empty record for path.
func NewFileCoverage(path string) (*FileCoverage, error) {
	if path == "" {
		return nil, ErrEmptyPath
	}
	return &FileCoverage{
		Path:         path,
		StatementMap: make(map[string]Range),
		S:            make(map[string]int),
		FnMap:        make(map[string]FnMeta),
		F:            make(map[string]int),
		BranchMap:    make(map[string]BranchMeta),
		B:            make(map[string][]int),
	}, nil
}

// ZeroFileCoverage constructs an unambiguous all-zero record for a file that
// was never executed. One statement per line is forced to zero, and the
// branch and function maps each hold a single fabricated zero entry: an empty
// branch or function map would be read as 100% by renderers.
func ZeroFileCoverage(path string, lineLengths []int) (*FileCoverage, error) {
	fc, err := NewFileCoverage(path)
	if err != nil {
		return nil, err
	}
	for i, length := range lineLengths {
		key := strconv.Itoa(i)
		fc.StatementMap[key] = Range{
			Start: Location{Line: i + 1, Column: 0},
			End:   Location{Line: i + 1, Column: length},
		}
		fc.S[key] = 0
	}
	whole := Range{
		Start: Location{Line: 1, Column: 0},
		End:   Location{Line: len(lineLengths), Column: 0},
	}
	if n := len(lineLengths); n > 0 {
		whole.End.Column = lineLengths[n-1]
	}
	fc.BranchMap["0"] = BranchMeta{Type: "branch", Loc: whole, Locations: []Range{whole}, Line: 1}
	fc.B["0"] = []int{0}
	fc.FnMap["0"] = FnMeta{Name: "(empty-report)", Decl: whole, Loc: whole, Line: 1}
	fc.F["0"] = 0
	return fc, nil
}

// Merge folds other into fc, summing hit counts for shared keys and adopting
// unseen keys wholesale. Both records must describe the same path. Counts are
// monotonically non-decreasing under Merge, and merging is commutative and
// associative on counts.
func (fc *FileCoverage) Merge(other *FileCoverage) error {
	if other == nil {
		return nil
	}
	if fc.Path != other.Path {
		return fmt.Errorf("%w: %s vs %s", ErrPathMismatch, fc.Path, other.Path)
	}
	for key, count := range other.S {
		if _, ok := fc.S[key]; !ok {
			fc.StatementMap[key] = other.StatementMap[key]
		}
		fc.S[key] += count
	}
	for key, count := range other.F {
		if _, ok := fc.F[key]; !ok {
			fc.FnMap[key] = other.FnMap[key]
		}
		fc.F[key] += count
	}
	for key, counts := range other.B {
		existing, ok := fc.B[key]
		if !ok {
			fc.BranchMap[key] = other.BranchMap[key]
			fc.B[key] = append([]int(nil), counts...)
			continue
		}
		for i, count := range counts {
			if i < len(existing) {
				existing[i] += count
			} else {
				existing = append(existing, count)
			}
		}
		fc.B[key] = existing
	}
	return nil
}

// Stat is a covered/total pair for one metric.
type Stat struct {
	Covered int `json:"covered"`
	Total   int `json:"total"`
}

// Percent returns the covered percentage, rounded to one decimal place.
// A metric with no entries counts as fully covered, matching renderer
// conventions.
func (s Stat) Percent() float64 {
	if s.Total == 0 {
		return 100
	}
	return math.Round(float64(s.Covered)/float64(s.Total)*1000) / 10
}

// Summary aggregates the three metrics of a record or a whole map.
type Summary struct {
	Statements Stat `json:"statements"`
	Branches   Stat `json:"branches"`
	Functions  Stat `json:"functions"`
}

func (s *Summary) add(other Summary) {
	s.Statements.Covered += other.Statements.Covered
	s.Statements.Total += other.Statements.Total
	s.Branches.Covered += other.Branches.Covered
	s.Branches.Total += other.Branches.Total
	s.Functions.Covered += other.Functions.Covered
	s.Functions.Total += other.Functions.Total
}

// Summary computes covered/total tallies for the record.
func (fc *FileCoverage) Summary() Summary {
	var sum Summary
	for _, count := range fc.S {
		sum.Statements.Total++
		if count > 0 {
			sum.Statements.Covered++
		}
	}
	for _, count := range fc.F {
		sum.Functions.Total++
		if count > 0 {
			sum.Functions.Covered++
		}
	}
	for _, counts := range fc.B {
		for _, count := range counts {
			sum.Branches.Total++
			if count > 0 {
				sum.Branches.Covered++
			}
		}
	}
	return sum
}

// CoverageMap is the aggregation result: one record per absolute file path.
type CoverageMap map[string]*FileCoverage

// Merge inserts fc, summing into an existing record for the same path.
func (m CoverageMap) Merge(fc *FileCoverage) error {
	if fc == nil {
		return nil
	}
	existing, ok := m[fc.Path]
	if !ok {
		m[fc.Path] = fc
		return nil
	}
	return existing.Merge(fc)
}

// MergeMap folds every record of other into m.
func (m CoverageMap) MergeMap(other CoverageMap) error {
	for _, fc := range other {
		if err := m.Merge(fc); err != nil {
			return err
		}
	}
	return nil
}

// Paths returns the map's keys in sorted order.
func (m CoverageMap) Paths() []string {
	paths := make([]string, 0, len(m))
	for path := range m {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

// Summary tallies all records in the map.
func (m CoverageMap) Summary() Summary {
	var sum Summary
	for _, fc := range m {
		sum.add(fc.Summary())
	}
	return sum
}
