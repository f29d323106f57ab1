package tui

import "mailferry/internal/model"

// Async message types for Bubble Tea commands.

type progressMsg model.Progress

type doneMsg struct {
	status model.RunStatus
	stats  model.RunStats
	err    error
}
