package export

import (
	"sync"

	"mailferry/internal/model"
)

// Tracker owns the run counters. All mutation happens under one mutex so
// that pool completions and the main worker never race; processed is always
// succeeded+failed.
type Tracker struct {
	mu    sync.Mutex
	stats model.RunStats

	cancelMu  sync.Mutex
	cancelled bool
}

func NewTracker() *Tracker {
	return &Tracker{}
}

// SetTotal records the best-effort item count from the server. Estimate only.
func (t *Tracker) SetTotal(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stats.Total = n
}

func (t *Tracker) AddFolder() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stats.Folders++
}

func (t *Tracker) Succeed() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stats.Succeeded++
	t.stats.Processed++
}

func (t *Tracker) Fail() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stats.Failed++
	t.stats.Processed++
}

func (t *Tracker) Skip() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stats.Skipped++
}

// Stats returns a copy of the current counters.
func (t *Tracker) Stats() model.RunStats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stats
}

// Cancel requests a cooperative stop. The in-flight item finishes; no new
// fetch is started after the next check.
func (t *Tracker) Cancel() {
	t.cancelMu.Lock()
	defer t.cancelMu.Unlock()
	t.cancelled = true
}

func (t *Tracker) Cancelled() bool {
	t.cancelMu.Lock()
	defer t.cancelMu.Unlock()
	return t.cancelled
}
