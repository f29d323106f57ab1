package tui

import (
	"context"
	"fmt"
	"strings"

	"mailferry/internal/export"
	"mailferry/internal/model"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

// RunFunc performs the export, reporting progress through the callback.
// The TUI invokes it once from Init and renders whatever it reports.
type RunFunc func(ctx context.Context, progress func(model.Progress)) (model.RunStatus, model.RunStats, error)

type AppModel struct {
	run     RunFunc
	tracker *export.Tracker

	phase  string
	folder string
	stats  model.RunStats
	status string

	done        bool
	finalStatus model.RunStatus
	Err         error

	spinner spinner.Model
	bar     progress.Model
	width   int

	// Program reference for sending messages from goroutines
	program *tea.Program
}

func NewAppModel(run RunFunc, tracker *export.Tracker) *AppModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	return &AppModel{
		run:     run,
		tracker: tracker,
		phase:   "walk",
		status:  "Connecting...",
		spinner: sp,
		bar:     progress.New(progress.WithDefaultGradient()),
	}
}

// SetProgram stores a reference to the tea.Program so the export goroutine
// can send progress messages back to the Update loop.
func (m *AppModel) SetProgram(p *tea.Program) {
	m.program = p
}

func (m *AppModel) Init() tea.Cmd {
	return tea.Batch(m.exportCmd(), m.spinner.Tick)
}

func (m *AppModel) exportCmd() tea.Cmd {
	return func() tea.Msg {
		status, stats, err := m.run(context.Background(), func(p model.Progress) {
			if m.program != nil {
				m.program.Send(progressMsg(p))
			}
		})
		return doneMsg{status: status, stats: stats, err: err}
	}
}

func (m *AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.bar.Width = msg.Width - 8
		if m.bar.Width > 60 {
			m.bar.Width = 60
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case progressMsg:
		m.phase = msg.Phase
		m.folder = msg.Folder
		m.stats = msg.Stats
		return m, nil

	case doneMsg:
		m.done = true
		m.finalStatus = msg.status
		m.stats = msg.stats
		m.Err = msg.err
		m.status = ""
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m *AppModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q", "esc":
		if m.done {
			return m, tea.Quit
		}
		m.tracker.Cancel()
		m.status = "Stopping after the current message..."
		return m, nil
	case "enter":
		if m.done {
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m *AppModel) View() string {
	if m.done {
		return m.summaryView()
	}

	var b strings.Builder
	b.WriteString("\n  ")
	b.WriteString(m.spinner.View())
	b.WriteString(m.phaseLine())
	b.WriteString("\n\n")

	if m.stats.Total > 0 && m.phase != "walk" {
		done := m.stats.Processed + m.stats.Skipped
		percent := float64(done) / float64(m.stats.Total)
		if percent > 1 {
			percent = 1
		}
		b.WriteString("  ")
		b.WriteString(m.bar.ViewAs(percent))
		b.WriteString("\n\n")
	}

	b.WriteString(fmt.Sprintf("  %d exported  %d failed  %d skipped\n",
		m.stats.Succeeded, m.stats.Failed, m.stats.Skipped))

	if m.status != "" {
		b.WriteString("\n  " + m.status + "\n")
	}
	b.WriteString("\n  q: stop\n")
	return b.String()
}

func (m *AppModel) phaseLine() string {
	switch m.phase {
	case "walk":
		return fmt.Sprintf("Discovering folders... %d found", m.stats.Folders)
	case "export":
		if m.folder != "" {
			return "Exporting " + m.folder
		}
		return "Exporting..."
	default:
		return "Finishing up..."
	}
}

func (m *AppModel) summaryView() string {
	var b strings.Builder
	b.WriteString("\n  ")
	switch {
	case m.Err != nil:
		b.WriteString("Export failed: " + m.Err.Error())
	case m.finalStatus == model.StatusCancelled:
		b.WriteString("Export stopped.")
	case m.finalStatus == model.StatusPartial:
		b.WriteString("Export finished with errors.")
	default:
		b.WriteString("Export complete.")
	}
	b.WriteString("\n\n")
	b.WriteString(fmt.Sprintf("  Folders:   %d\n", m.stats.Folders))
	b.WriteString(fmt.Sprintf("  Exported:  %d\n", m.stats.Succeeded))
	b.WriteString(fmt.Sprintf("  Failed:    %d\n", m.stats.Failed))
	b.WriteString(fmt.Sprintf("  Skipped:   %d\n", m.stats.Skipped))
	b.WriteString("\n  Press q to quit.\n")
	return b.String()
}
