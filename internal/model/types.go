package model

import "time"

// Folder is a single mailbox folder discovered during the walk. Folders form
// a tree on the server; Path is the display path from the root joined by "/".
type Folder struct {
	ID       string
	Name     string
	ParentID string // empty for top-level folders
	Path     string
	Total    int // server-reported item count, estimate only
}

// MessageRef is one entry from a folder listing page. Full content is fetched
// separately.
type MessageRef struct {
	ID       string
	FolderID string
}

// Attachment is a fetched attachment body plus the metadata needed to re-emit
// it in the output message.
type Attachment struct {
	ID          string
	Name        string
	ContentType string
	Data        []byte
}

// Message is the full content of one exported item as returned by the remote
// API, before transformation.
type Message struct {
	ID          string
	FolderID    string
	Subject     string
	From        string
	To          []string
	Cc          []string
	Date        time.Time
	ContentType string // "text/plain" or "text/html"
	Body        string
	Attachments []Attachment
}

// RunStatus is the terminal state of an export run.
type RunStatus string

const (
	StatusCompleted RunStatus = "completed"
	StatusPartial   RunStatus = "completed_with_errors"
	StatusCancelled RunStatus = "cancelled"
	StatusFailed    RunStatus = "failed"
)

// RunStats is a point-in-time snapshot of the tracker counters. Processed is
// always Succeeded+Failed; Skipped counts items a previous run already
// exported.
type RunStats struct {
	Folders   int
	Total     int // best-effort estimate from the count query
	Processed int
	Succeeded int
	Failed    int
	Skipped   int
}

// Progress is sent from the export worker to the presentation layer as the
// run advances.
type Progress struct {
	Phase  string // "walk", "export", "done"
	Folder string // display path of the folder being exported
	Stats  RunStats
}
