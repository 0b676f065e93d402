// Package wizard drives the interactive setup flow behind v8cov init.
package wizard

import (
	"fmt"
	"io"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/felixgeelhaar/v8cov/internal/application"
)

type (
	wizardState int

	initWizardModel struct {
		state     wizardState
		cfg       application.Config
		cursor    int
		confirmed bool
		aborted   bool
	}
)

const (
	stateIntro wizardState = iota
	stateEdit
	stateConfirm
)

// Rows in the edit view, top to bottom.
const (
	rowReporter = iota
	rowAll
	rowOmitRelative
	rowStatements
	rowBranches
	rowFunctions
	rowCount
)

// Run walks the user through the settings and reports whether they
// confirmed. The returned config is only meaningful when confirmed.
func Run(cfg application.Config, stdout io.Writer, stdin io.Reader) (application.Config, bool, error) {
	return runInitWizard(cfg, stdout, stdin)
}

func runInitWizard(cfg application.Config, stdout io.Writer, stdin io.Reader) (application.Config, bool, error) {
	model := newInitWizardModel(cfg)
	program := tea.NewProgram(model, tea.WithInput(stdin), tea.WithOutput(stdout))
	res, err := program.Run()
	if err != nil {
		return cfg, false, err
	}
	finalModel, ok := res.(*initWizardModel)
	if !ok {
		return cfg, false, fmt.Errorf("unexpected wizard state")
	}
	if finalModel.aborted || !finalModel.confirmed {
		return cfg, false, nil
	}
	return finalModel.cfg, true, nil
}

func newInitWizardModel(cfg application.Config) *initWizardModel {
	if cfg.Reporter == "" {
		cfg.Reporter = application.OutputText
	}
	if cfg.TempDirectory == "" {
		cfg.TempDirectory = "coverage/tmp"
	}
	zero := application.Watermark{}
	if cfg.Watermarks.Statements == zero && cfg.Watermarks.Branches == zero && cfg.Watermarks.Functions == zero {
		cfg.Watermarks = application.DefaultWatermarks()
	}
	return &initWizardModel{state: stateIntro, cfg: cfg}
}

func (m *initWizardModel) Init() tea.Cmd {
	return nil
}

func (m *initWizardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.aborted = true
			return m, tea.Quit
		case "enter":
			switch m.state {
			case stateIntro:
				m.state = stateEdit
			case stateEdit:
				m.state = stateConfirm
			case stateConfirm:
				m.confirmed = true
				return m, tea.Quit
			}
		case "esc":
			if m.state == stateConfirm {
				m.state = stateEdit
			}
		case "up":
			if m.state == stateEdit {
				m.moveCursor(-1)
			}
		case "down":
			if m.state == stateEdit {
				m.moveCursor(1)
			}
		case "left", "-":
			if m.state == stateEdit {
				m.adjustSelection(-5)
			}
		case "right", "+", " ":
			if m.state == stateEdit {
				m.adjustSelection(5)
			}
		}
	}
	return m, nil
}

func (m *initWizardModel) View() string {
	switch m.state {
	case stateIntro:
		return m.viewIntro()
	case stateEdit:
		return m.viewEdit()
	case stateConfirm:
		return m.viewConfirm()
	default:
		return ""
	}
}

func (m *initWizardModel) moveCursor(delta int) {
	m.cursor += delta
	if m.cursor < 0 {
		m.cursor = 0
	}
	if m.cursor > rowCount-1 {
		m.cursor = rowCount - 1
	}
}

// adjustSelection applies the left/right action to the selected row.
// Toggle rows ignore the magnitude; watermark rows move the high band.
func (m *initWizardModel) adjustSelection(delta float64) {
	switch m.cursor {
	case rowReporter:
		if m.cfg.Reporter == application.OutputJSON {
			m.cfg.Reporter = application.OutputText
		} else {
			m.cfg.Reporter = application.OutputJSON
		}
	case rowAll:
		m.cfg.All = !m.cfg.All
	case rowOmitRelative:
		m.cfg.OmitRelative = !m.cfg.OmitRelative
	case rowStatements:
		adjustHigh(&m.cfg.Watermarks.Statements, delta)
	case rowBranches:
		adjustHigh(&m.cfg.Watermarks.Branches, delta)
	case rowFunctions:
		adjustHigh(&m.cfg.Watermarks.Functions, delta)
	}
}

func adjustHigh(mark *application.Watermark, delta float64) {
	mark.High = clamp(mark.High+delta, mark.Low, 100)
}

func (m *initWizardModel) viewIntro() string {
	var b strings.Builder
	fmt.Fprintf(&b, "\nv8cov init wizard\n\n")
	fmt.Fprintf(&b, "This sets up %s for aggregating V8 coverage dumps from %s.\n\n", "a .v8cov.yaml", m.cfg.TempDirectory)
	fmt.Fprintf(&b, "Press Enter to continue, or Ctrl+C to cancel.\n")
	return b.String()
}

func (m *initWizardModel) viewEdit() string {
	var b strings.Builder
	fmt.Fprintf(&b, "\nReview and adjust settings\n\n")
	fmt.Fprintf(&b, "Use ↑/↓ to move, ←/→ or +/- to change values.\n\n")

	rows := []string{
		fmt.Sprintf("reporter: %s", m.cfg.Reporter),
		fmt.Sprintf("include never-executed files: %s", onOff(m.cfg.All)),
		fmt.Sprintf("omit scripts with relative paths: %s", onOff(m.cfg.OmitRelative)),
		fmt.Sprintf("statements high watermark: %.0f%%", m.cfg.Watermarks.Statements.High),
		fmt.Sprintf("branches high watermark: %.0f%%", m.cfg.Watermarks.Branches.High),
		fmt.Sprintf("functions high watermark: %.0f%%", m.cfg.Watermarks.Functions.High),
	}
	for idx, row := range rows {
		indicator := "  "
		if m.cursor == idx {
			indicator = "> "
		}
		fmt.Fprintf(&b, "%s%s\n", indicator, row)
	}
	fmt.Fprintf(&b, "\nEnter to continue, q to cancel.\n")
	return b.String()
}

func (m *initWizardModel) viewConfirm() string {
	var b strings.Builder
	fmt.Fprintf(&b, "\nReady to write configuration\n\n")
	fmt.Fprintf(&b, "Coverage directory: %s\n", m.cfg.TempDirectory)
	fmt.Fprintf(&b, "Reporter: %s\n", m.cfg.Reporter)
	fmt.Fprintf(&b, "Include never-executed files: %s\n", onOff(m.cfg.All))
	fmt.Fprintf(&b, "Omit relative paths: %s\n", onOff(m.cfg.OmitRelative))
	fmt.Fprintf(&b, "Watermarks: statements %.0f/%.0f, branches %.0f/%.0f, functions %.0f/%.0f\n",
		m.cfg.Watermarks.Statements.Low, m.cfg.Watermarks.Statements.High,
		m.cfg.Watermarks.Branches.Low, m.cfg.Watermarks.Branches.High,
		m.cfg.Watermarks.Functions.Low, m.cfg.Watermarks.Functions.High)
	if len(m.cfg.Exclude) > 0 {
		fmt.Fprintf(&b, "\nConfigured exclusions:\n")
		for _, pattern := range m.cfg.Exclude {
			fmt.Fprintf(&b, "  - %s\n", pattern)
		}
	} else {
		fmt.Fprintf(&b, "\nNo exclusions configured.\n")
	}
	fmt.Fprintf(&b, "\nPress Enter to save, Esc to go back, q to cancel.\n")
	return b.String()
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

func clamp(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}
