package core

import (
	"sync"
)

// DefaultHistorySize is how many runs RunHistory keeps when none is configured.
const DefaultHistorySize = 20

// RunHistory keeps the most recent run results in memory, newest last.
// It is safe for concurrent use.
type RunHistory struct {
	mu   sync.RWMutex
	runs []*RunResult
	size int
}

// NewRunHistory returns a history holding at most size runs.
func NewRunHistory(size int) *RunHistory {
	if size <= 0 {
		size = DefaultHistorySize
	}
	return &RunHistory{size: size, runs: make([]*RunResult, 0, size)}
}

// Add records a finished run, evicting the oldest when full.
func (h *RunHistory) Add(r *RunResult) {
	if r == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.runs) == h.size {
		copy(h.runs, h.runs[1:])
		h.runs = h.runs[:h.size-1]
	}
	h.runs = append(h.runs, r)
}

// List returns the runs newest first.
func (h *RunHistory) List() []*RunResult {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]*RunResult, len(h.runs))
	for i, r := range h.runs {
		out[len(h.runs)-1-i] = r
	}
	return out
}

// Get finds a run by id.
func (h *RunHistory) Get(runID string) (*RunResult, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, r := range h.runs {
		if r.RunID == runID {
			return r, true
		}
	}
	return nil, false
}

// Latest returns the most recent run.
func (h *RunHistory) Latest() (*RunResult, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if len(h.runs) == 0 {
		return nil, false
	}
	return h.runs[len(h.runs)-1], true
}

// Len returns the number of runs held.
func (h *RunHistory) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.runs)
}
