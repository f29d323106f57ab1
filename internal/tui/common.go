package tui

import (
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"
)

// IsTTY returns true if stdout is connected to a terminal.
func IsTTY() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// Run starts the progress TUI and blocks until the export finishes and the
// operator dismisses the summary.
func Run(m *AppModel) error {
	p := tea.NewProgram(m)
	m.SetProgram(p)
	_, err := p.Run()
	return err
}
