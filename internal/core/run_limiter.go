package core

// run_limiter.go guards the drop zone against overlapping batch runs.
//
// Two runs moving files out of the same incoming directory would race on
// every file, so the limiter hands out a single slot. Watch mode waits for
// the slot with Acquire; the HTTP API uses TryAcquire and answers 409 when
// the slot is taken. WaitForDrain lets shutdown wait for the active run.

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrRunInProgress is returned when another run holds the slot.
var ErrRunInProgress = errors.New("classification run already in progress")

// RunLimiter allows one classification run at a time.
type RunLimiter struct {
	slot    chan struct{}
	maxWait time.Duration

	mu      sync.RWMutex
	runID   string
	started time.Time
}

// NewRunLimiter creates a limiter. Acquire waits up to maxWait for the
// slot; a non-positive maxWait makes Acquire fail immediately when busy.
func NewRunLimiter(maxWait time.Duration) *RunLimiter {
	return &RunLimiter{
		slot:    make(chan struct{}, 1),
		maxWait: maxWait,
	}
}

// Acquire takes the slot for runID, waiting up to maxWait.
// The caller MUST call Release() when the run completes (use defer).
func (l *RunLimiter) Acquire(ctx context.Context, runID string) error {
	if l.maxWait <= 0 {
		if !l.TryAcquire(runID) {
			return ErrRunInProgress
		}
		return nil
	}

	waitCtx, cancel := context.WithTimeout(ctx, l.maxWait)
	defer cancel()

	select {
	case l.slot <- struct{}{}:
		l.hold(runID)
		return nil
	case <-waitCtx.Done():
		// Check if original context was cancelled vs timeout
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return ErrRunInProgress
	}
}

// TryAcquire takes the slot without blocking.
func (l *RunLimiter) TryAcquire(runID string) bool {
	select {
	case l.slot <- struct{}{}:
		l.hold(runID)
		return true
	default:
		return false
	}
}

func (l *RunLimiter) hold(runID string) {
	l.mu.Lock()
	l.runID = runID
	l.started = time.Now()
	l.mu.Unlock()
}

// Release frees the slot. Must be called exactly once per successful acquire.
func (l *RunLimiter) Release() {
	l.mu.Lock()
	l.runID = ""
	l.started = time.Time{}
	l.mu.Unlock()

	<-l.slot
}

// Busy reports whether a run holds the slot.
func (l *RunLimiter) Busy() bool {
	return len(l.slot) > 0
}

// WaitForDrain blocks until no run is active or ctx is cancelled.
func (l *RunLimiter) WaitForDrain(ctx context.Context) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		if !l.Busy() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunLimiterStatus is a snapshot of the limiter.
type RunLimiterStatus struct {
	Busy      bool      `json:"busy"`
	RunID     string    `json:"run_id,omitempty"`
	StartedAt time.Time `json:"started_at,omitzero"`
}

// Status returns the current limiter state for monitoring.
func (l *RunLimiter) Status() RunLimiterStatus {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return RunLimiterStatus{
		Busy:      len(l.slot) > 0,
		RunID:     l.runID,
		StartedAt: l.started,
	}
}
