// Package report renders an aggregated coverage result as a terminal table
// or as an Istanbul-style JSON coverage map.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	"github.com/felixgeelhaar/v8cov/internal/application"
	"github.com/felixgeelhaar/v8cov/internal/domain"
)

type Writer struct{}

func (Writer) Write(w io.Writer, result application.Result, format application.OutputFormat) error {
	switch format {
	case application.OutputJSON:
		// The JSON reporter emits the coverage map itself, keyed by file
		// path, so downstream Istanbul tooling can consume it directly.
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(result.Map)
	case application.OutputText, "":
		return writeText(w, result)
	default:
		return fmt.Errorf("unsupported output format: %s", format)
	}
}

func writeText(w io.Writer, result application.Result) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "File\tStmts\tBranch\tFuncs")

	colorize := colorEnabled(w)

	for _, f := range result.Files {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			f.File,
			cell(f.Statements, result.Watermarks.Statements, colorize),
			cell(f.Branches, result.Watermarks.Branches, colorize),
			cell(f.Functions, result.Watermarks.Functions, colorize),
		)
	}

	_, _ = fmt.Fprintf(tw, "All files\t%s\t%s\t%s\n",
		cell(result.Totals.Statements, result.Watermarks.Statements, colorize),
		cell(result.Totals.Branches, result.Watermarks.Branches, colorize),
		cell(result.Totals.Functions, result.Watermarks.Functions, colorize),
	)
	return tw.Flush()
}

var (
	highStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#16A34A")).Bold(true)
	midStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#CA8A04")).Bold(true)
	lowStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#DC2626")).Bold(true)
)

func cell(stat domain.Stat, mark application.Watermark, colorize bool) string {
	pct := stat.Percent()
	text := fmt.Sprintf("%.1f%% (%d/%d)", pct, stat.Covered, stat.Total)
	if !colorize {
		return text
	}
	switch {
	case pct >= mark.High:
		return highStyle.Render(text)
	case pct >= mark.Low:
		return midStyle.Render(text)
	default:
		return lowStyle.Render(text)
	}
}

func colorEnabled(w io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(file.Fd()) || isatty.IsCygwinTerminal(file.Fd())
}
