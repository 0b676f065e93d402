// Package cli is the command surface of v8cov.
package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/felixgeelhaar/v8cov/internal/application"
	"github.com/felixgeelhaar/v8cov/internal/domain"
	"github.com/felixgeelhaar/v8cov/internal/infrastructure/badge"
	"github.com/felixgeelhaar/v8cov/internal/infrastructure/config"
	"github.com/felixgeelhaar/v8cov/internal/infrastructure/history"
	"github.com/felixgeelhaar/v8cov/internal/infrastructure/istanbul"
	"github.com/felixgeelhaar/v8cov/internal/infrastructure/report"
	"github.com/felixgeelhaar/v8cov/internal/infrastructure/resolver"
	"github.com/felixgeelhaar/v8cov/internal/infrastructure/watcher"
	"github.com/felixgeelhaar/v8cov/internal/infrastructure/wizard"
	"github.com/felixgeelhaar/v8cov/internal/v8"
)

// Engine is what the commands need from the application layer. Each
// invocation builds a fresh instance because aggregation results are
// memoized per instance.
type Engine interface {
	CoverageMap(ctx context.Context) (domain.CoverageMap, error)
	Report(ctx context.Context, opts application.ReportOptions) error
}

// ServiceFactory builds the engine for one aggregation run.
type ServiceFactory func(cfg application.Config, out io.Writer, log *slog.Logger) Engine

var initWizard = wizard.Run

func Run(args []string, stdout, stderr io.Writer, build ServiceFactory) int {
	if len(args) < 2 {
		usage(stderr)
		return 2
	}

	ctx := context.Background()

	switch args[1] {
	case "report":
		fs := flag.NewFlagSet("report", flag.ExitOnError)
		flags := reportFlags(fs)
		record := fs.Bool("record", false, "Append this run's totals to the history file")
		historyPath := fs.String("history", ".v8cov/history.json", "History file path")
		_ = fs.Parse(args[2:])

		cfg, err := resolveConfig(flags, fs)
		if err != nil {
			return exitCode(err, 2, stderr)
		}

		opts := application.ReportOptions{}
		if *record {
			opts.Record = true
			opts.History = &history.FileStore{Path: *historyPath}
		}
		svc := build(cfg, stdout, buildLogger(flags.logFile, stderr))
		return exitCode(svc.Report(ctx, opts), 1, stderr)
	case "watch":
		fs := flag.NewFlagSet("watch", flag.ExitOnError)
		flags := reportFlags(fs)
		debounce := fs.Duration("debounce", 500*time.Millisecond, "How long to wait for dump writes to settle")
		_ = fs.Parse(args[2:])

		cfg, err := resolveConfig(flags, fs)
		if err != nil {
			return exitCode(err, 2, stderr)
		}
		return runWatch(ctx, stdout, stderr, build, cfg, buildLogger(flags.logFile, stderr), *debounce)
	case "clean":
		fs := flag.NewFlagSet("clean", flag.ExitOnError)
		flags := reportFlags(fs)
		_ = fs.Parse(args[2:])

		cfg, err := resolveConfig(flags, fs)
		if err != nil {
			return exitCode(err, 2, stderr)
		}
		removed, err := cleanDumps(cfg.TempDirectory)
		if err != nil {
			return exitCode(err, 3, stderr)
		}
		fmt.Fprintf(stdout, "Removed %d dump(s) from %s\n", removed, cfg.TempDirectory)
		return 0
	case "init":
		fs := flag.NewFlagSet("init", flag.ExitOnError)
		configPath := fs.String("config", config.DefaultFile, "Config file path")
		force := fs.Bool("force", false, "Overwrite existing config file")
		noInteractive := fs.Bool("no-interactive", false, "Skip the interactive init wizard")
		_ = fs.Parse(args[2:])

		cfg := defaultConfig()
		if !*noInteractive {
			var confirmed bool
			var err error
			cfg, confirmed, err = initWizard(cfg, stdout, os.Stdin)
			if err != nil {
				return exitCode(err, 5, stderr)
			}
			if !confirmed {
				fmt.Fprintln(stdout, "Init cancelled; no configuration written.")
				return 0
			}
		}
		if err := writeConfigFile(*configPath, cfg, stdout, *force); err != nil {
			return exitCode(err, 2, stderr)
		}
		fmt.Fprintf(stdout, "Configuration written to %s\n", *configPath)
		return 0
	case "badge":
		fs := flag.NewFlagSet("badge", flag.ExitOnError)
		flags := reportFlags(fs)
		output := fs.String("badge-output", "coverage.svg", "Badge file path")
		label := fs.String("label", "coverage", "Badge label text")
		style := fs.String("style", "flat", "Badge style: flat|flat-square")
		_ = fs.Parse(args[2:])

		cfg, err := resolveConfig(flags, fs)
		if err != nil {
			return exitCode(err, 2, stderr)
		}
		svc := build(cfg, stdout, buildLogger(flags.logFile, stderr))
		covMap, err := svc.CoverageMap(ctx)
		if err != nil {
			return exitCode(err, 1, stderr)
		}
		percent := covMap.Summary().Statements.Percent()
		if err := writeBadgeFile(*output, percent, *label, *style, cfg.Watermarks.Statements); err != nil {
			return exitCode(err, 3, stderr)
		}
		fmt.Fprintf(stdout, "Badge written to %s (%.1f%%)\n", *output, percent)
		return 0
	case "version":
		fmt.Fprintf(stdout, "v8cov %s (commit %s, built %s)\n", Version, Commit, Date)
		return 0
	default:
		usage(stderr)
		return 2
	}
}

// BuildService assembles the engine from the concrete infrastructure.
func BuildService(cfg application.Config, out io.Writer, log *slog.Logger) Engine {
	return &application.Service{
		Config: cfg,
		Loader: v8.Loader{Log: log},
		Filter: resolver.NewGlobFilter(cfg.ResolveRoot, cfg.Include, cfg.Exclude),
		Converter: istanbul.Converter{
			ResolveRoot:   cfg.ResolveRoot,
			WrapperLength: cfg.WrapperLength,
		},
		Reporter: report.Writer{},
		Log:      log,
		Out:      out,
	}
}

// reportOverrides carries the flag values shared by the aggregation
// commands until they are merged over the config file.
type reportOverrides struct {
	configPath    string
	tempDir       string
	resolveRoot   string
	output        string
	all           bool
	omitRelative  bool
	wrapperLength int
	include       patternList
	exclude       patternList
	logFile       string
}

func reportFlags(fs *flag.FlagSet) *reportOverrides {
	o := &reportOverrides{}
	fs.StringVar(&o.configPath, "config", config.DefaultFile, "Config file path")
	fs.StringVar(&o.tempDir, "temp-dir", "", "Directory the profiler wrote its dumps to")
	fs.StringVar(&o.resolveRoot, "resolve-root", "", "Root for resolving relative script paths")
	fs.StringVar(&o.output, "o", "", "Output format: text|json")
	fs.StringVar(&o.output, "output", "", "Output format: text|json")
	fs.BoolVar(&o.all, "all", false, "Report never-executed files matching the include patterns")
	fs.BoolVar(&o.omitRelative, "omit-relative", false, "Drop scripts whose path is not absolute")
	fs.IntVar(&o.wrapperLength, "wrapper-length", 0, "Byte length of the module wrapper prefix")
	fs.Var(&o.include, "include", "Glob of files to include (repeatable)")
	fs.Var(&o.exclude, "exclude", "Glob of files to exclude (repeatable)")
	fs.StringVar(&o.logFile, "log-file", "", "Append diagnostics to this file instead of stderr")
	return o
}

// resolveConfig layers explicit flags over the config file over built-in
// defaults.
func resolveConfig(o *reportOverrides, fs *flag.FlagSet) (application.Config, error) {
	cfg := defaultConfig()

	loader := config.Loader{}
	exists, err := loader.Exists(o.configPath)
	if err != nil {
		return application.Config{}, err
	}
	if exists {
		fileCfg, err := loader.Load(o.configPath)
		if err != nil {
			return application.Config{}, fmt.Errorf("load %s: %w", o.configPath, err)
		}
		mergeConfig(&cfg, fileCfg)
	}

	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	if set["temp-dir"] {
		cfg.TempDirectory = o.tempDir
	}
	if set["resolve-root"] {
		cfg.ResolveRoot = o.resolveRoot
	}
	if set["o"] || set["output"] {
		switch o.output {
		case string(application.OutputText), string(application.OutputJSON):
			cfg.Reporter = application.OutputFormat(o.output)
		default:
			return application.Config{}, fmt.Errorf("invalid output format: %s", o.output)
		}
	}
	if set["all"] {
		cfg.All = o.all
	}
	if set["omit-relative"] {
		cfg.OmitRelative = o.omitRelative
	}
	if set["wrapper-length"] {
		cfg.WrapperLength = o.wrapperLength
	}
	if set["include"] {
		cfg.Include = o.include
	}
	if set["exclude"] {
		cfg.Exclude = o.exclude
	}

	if cfg.ResolveRoot == "" {
		wd, err := os.Getwd()
		if err != nil {
			return application.Config{}, err
		}
		cfg.ResolveRoot = wd
	}
	return cfg, nil
}

func defaultConfig() application.Config {
	return application.Config{
		TempDirectory: filepath.Join("coverage", "tmp"),
		Reporter:      application.OutputText,
		Watermarks:    application.DefaultWatermarks(),
	}
}

// mergeConfig copies the file's non-zero settings onto the defaults.
func mergeConfig(dst *application.Config, src application.Config) {
	if src.TempDirectory != "" {
		dst.TempDirectory = src.TempDirectory
	}
	if src.ResolveRoot != "" {
		dst.ResolveRoot = src.ResolveRoot
	}
	if src.Reporter != "" {
		dst.Reporter = src.Reporter
	}
	if len(src.Include) > 0 {
		dst.Include = src.Include
	}
	if len(src.Exclude) > 0 {
		dst.Exclude = src.Exclude
	}
	dst.Watermarks = src.Watermarks
	dst.All = src.All
	dst.OmitRelative = src.OmitRelative
	if src.WrapperLength != 0 {
		dst.WrapperLength = src.WrapperLength
	}
}

// buildLogger sends diagnostics to stderr, or to a rotated file when one is
// configured.
func buildLogger(logFile string, stderr io.Writer) *slog.Logger {
	if logFile == "" {
		return slog.New(slog.NewTextHandler(stderr, nil))
	}
	sink := &lumberjack.Logger{
		Filename:   logFile,
		MaxSize:    10,
		MaxBackups: 3,
		MaxAge:     14,
	}
	return slog.New(slog.NewJSONHandler(sink, nil))
}

// patternList implements flag.Value for repeatable glob flags.
type patternList []string

func (p *patternList) String() string { return strings.Join(*p, ",") }

func (p *patternList) Set(value string) error {
	*p = append(*p, value)
	return nil
}

// cleanDumps removes every dump file in the coverage directory. A missing
// directory counts as already clean.
func cleanDumps(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		if err := os.Remove(filepath.Join(dir, entry.Name())); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

func writeConfigFile(path string, cfg application.Config, stdout io.Writer, force bool) error {
	if path == "-" {
		return config.Write(stdout, cfg)
	}
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config %s already exists", path)
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return config.Write(file, cfg)
}

func writeBadgeFile(path string, percent float64, label, style string, mark application.Watermark) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	badgeStyle := badge.StyleFlat
	if style == "flat-square" {
		badgeStyle = badge.StyleFlatSquare
	}

	return badge.Generate(file, badge.Options{
		Label:     label,
		Percent:   percent,
		Style:     badgeStyle,
		Watermark: mark,
	})
}

func runWatch(ctx context.Context, stdout, stderr io.Writer, build ServiceFactory, cfg application.Config, log *slog.Logger, debounce time.Duration) int {
	w, err := watcher.New(watcher.WithDebounce(debounce))
	if err != nil {
		fmt.Fprintf(stderr, "failed to create watcher: %v\n", err)
		return 3
	}
	defer w.Close()

	if err := w.WatchDir(cfg.TempDirectory); err != nil {
		fmt.Fprintf(stderr, "failed to watch %s: %v\n", cfg.TempDirectory, err)
		return 3
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Fprintln(stdout, "\nStopping watch mode...")
		cancel()
	}()

	fmt.Fprintf(stdout, "Watching %s for new dumps... (Ctrl+C to stop)\n\n", cfg.TempDirectory)

	runReport := func(run int) {
		fmt.Fprintf(stdout, "--- Report #%d at %s ---\n", run, time.Now().Format("15:04:05"))
		// Fresh instance each run: a memoized map would never see new dumps.
		svc := build(cfg, stdout, log)
		if err := svc.Report(ctx, application.ReportOptions{}); err != nil {
			fmt.Fprintf(stderr, "report failed: %v\n", err)
		}
		fmt.Fprintln(stdout)
	}

	run := 1
	runReport(run)

	for range w.Events(ctx) {
		run++
		runReport(run)
	}
	return 0
}

func usage(w io.Writer) {
	fmt.Fprintln(w, `v8cov <command>

Commands:
  report   Merge profiler dumps and print a coverage report
  watch    Re-report whenever new dumps land in the coverage directory
  clean    Delete all dumps from the coverage directory
  badge    Write an SVG badge for the aggregated total
  init     Write a .v8cov.yaml via the interactive wizard
  version  Print version information`)
}

func exitCode(err error, code int, stderr io.Writer) int {
	if err == nil {
		return 0
	}
	fmt.Fprintln(stderr, err)
	return code
}
