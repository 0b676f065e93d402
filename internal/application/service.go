package application

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/felixgeelhaar/v8cov/internal/domain"
	"github.com/felixgeelhaar/v8cov/internal/pathutil"
	"github.com/felixgeelhaar/v8cov/internal/v8"
)

// Service is the aggregation engine. One instance performs at most one
// aggregation: the resulting coverage map is memoized because downstream
// consumers commonly request it more than once per run and the aggregation
// is disk- and CPU-expensive.
type Service struct {
	Config    Config
	Loader    DumpLoader
	Filter    InclusionFilter
	Converter ScriptConverter
	Reporter  Reporter
	Log       *slog.Logger
	Out       io.Writer

	once   sync.Once
	covMap domain.CoverageMap
	covErr error
}

// CoverageMap aggregates all process dumps into one coverage map. Repeated
// calls on the same instance return the first computation.
func (s *Service) CoverageMap(ctx context.Context) (domain.CoverageMap, error) {
	s.once.Do(func() {
		s.covMap, s.covErr = s.aggregate(ctx)
	})
	return s.covMap, s.covErr
}

// Report aggregates and hands the result to the configured reporter.
func (s *Service) Report(ctx context.Context, opts ReportOptions) error {
	covMap, err := s.CoverageMap(ctx)
	if err != nil {
		return err
	}
	result := BuildResult(covMap, s.Config.Watermarks)
	if opts.Record && opts.History != nil {
		entry := domain.EntryFromSummary(result.Totals, len(covMap), time.Now())
		if err := opts.History.Append(entry); err != nil {
			s.logger().Warn("recording coverage history failed", "error", err)
		}
	}
	return s.Reporter.Write(s.Out, result, s.Config.Reporter)
}

// aggregate runs the full pipeline: load, normalize, merge, convert with
// two-phase bridge handling, then zero-fill in all-files mode. Per-item
// failures are logged and skipped; only structural failures propagate.
func (s *Service) aggregate(ctx context.Context) (domain.CoverageMap, error) {
	dumps, err := s.Loader.Load(s.Config.TempDirectory)
	if err != nil {
		return nil, err
	}

	// Any dump might be the first to observe a module's source map, so the
	// whole cache is assembled before any conversion happens.
	smCache := make(map[string]v8.SourceMapEntry)
	normalized := make([]v8.ProcessCoverage, 0, len(dumps))
	for _, dump := range dumps {
		s.absorbSourceMaps(smCache, dump)
		normalized = append(normalized, s.normalize(dump))
	}
	merged := v8.MergeProcessCovs(normalized)

	var discovered map[string]bool
	if s.Config.All {
		files, err := s.Filter.Files(s.Config.ResolveRoot)
		if err != nil {
			return nil, fmt.Errorf("enumerate files under %s: %w", s.Config.ResolveRoot, err)
		}
		discovered = make(map[string]bool, len(files))
		for _, file := range files {
			discovered[pathutil.Resolve(s.Config.ResolveRoot, file)] = false
		}
	}

	covMap := domain.CoverageMap{}
	var mu sync.Mutex

	// Phase 1: convert and merge real scripts, counting non-bridge records
	// per resolved path. Bridge records are deferred.
	type deferredBridge struct {
		scriptPath   string
		resolvedPath string
		functions    []v8.FunctionCoverage
		entry        *v8.SourceMapEntry
	}
	realCount := make(map[string]int)
	var bridges []deferredBridge

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for _, script := range merged.Result {
		entry := lookupSourceMap(smCache, script.URL)
		resolved := s.Converter.ResolvePath(script.URL, entry)
		if discovered != nil {
			// Seen means a script resolved here, whether or not its
			// coverage ends up applied.
			discovered[resolved] = true
		}
		if script.IsInteropBridge() {
			bridges = append(bridges, deferredBridge{
				scriptPath:   script.URL,
				resolvedPath: resolved,
				functions:    script.Functions,
				entry:        entry,
			})
			continue
		}
		realCount[resolved]++

		script := script
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			fc, err := s.Converter.Convert(script.URL, script.Functions, entry)
			if err != nil {
				s.logger().Error("skipping script coverage", "url", script.URL, "error", err)
				return nil
			}
			mu.Lock()
			defer mu.Unlock()
			return covMap.Merge(fc)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Phase 2: a bridge's coverage survives only when it is the sole
	// representation of its path; otherwise it would double-count the real
	// module it wraps.
	for _, bridge := range bridges {
		if realCount[bridge.resolvedPath] > 0 {
			continue
		}
		fc, err := s.Converter.Convert(bridge.scriptPath, bridge.functions, bridge.entry)
		if err != nil {
			s.logger().Error("skipping bridge coverage", "url", bridge.scriptPath, "error", err)
			continue
		}
		if err := covMap.Merge(fc); err != nil {
			return nil, err
		}
	}

	// Zero-fill: discovered files no script ever resolved to are reported
	// as unambiguously unexecuted.
	for path, seen := range discovered {
		if seen {
			continue
		}
		fc, err := s.Converter.Zero(path)
		if err != nil {
			s.logger().Error("skipping empty record", "file", path, "error", err)
			continue
		}
		if err := covMap.Merge(fc); err != nil {
			return nil, err
		}
	}

	return covMap, nil
}

// normalize rewrites file:// script URLs to paths and drops entries the
// inclusion filter or the omit-relative policy rejects. Surviving entries
// keep their original order.
func (s *Service) normalize(dump v8.ProcessCoverage) v8.ProcessCoverage {
	out := v8.ProcessCoverage{Result: make([]v8.ScriptCoverage, 0, len(dump.Result))}
	for _, script := range dump.Result {
		if pathutil.IsFileURL(script.URL) {
			p, err := pathutil.FileURLToPath(script.URL)
			if err != nil {
				s.logger().Warn("skipping script with unusable url", "url", script.URL, "error", err)
				continue
			}
			script.URL = p
		}
		if !s.Filter.ShouldInstrument(script.URL) {
			continue
		}
		if s.Config.OmitRelative && !filepath.IsAbs(script.URL) {
			continue
		}
		out.Result = append(out.Result, script)
	}
	return out
}

// absorbSourceMaps folds a dump's source-map cache into the run-wide cache,
// keyed by normalized path where possible. Last write wins per key.
func (s *Service) absorbSourceMaps(cache map[string]v8.SourceMapEntry, dump v8.ProcessCoverage) {
	for key, entry := range dump.SourceMapCache {
		if pathutil.IsFileURL(key) {
			if p, err := pathutil.FileURLToPath(key); err == nil {
				key = p
			}
		}
		cache[key] = entry
	}
}

func lookupSourceMap(cache map[string]v8.SourceMapEntry, scriptPath string) *v8.SourceMapEntry {
	if entry, ok := cache[scriptPath]; ok {
		return &entry
	}
	return nil
}

func (s *Service) logger() *slog.Logger {
	if s.Log != nil {
		return s.Log
	}
	return slog.Default()
}
