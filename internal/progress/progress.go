// Package progress reports the state of a reconciliation run to polling
// observers. The engine takes a Reporter so tests and parallel harnesses
// do not share hidden state; the process-wide Tracker is wired in only
// at the composition points (CLI and HTTP server).
package progress

import "sync"

// Status of a run as seen by observers.
type Status string

const (
	Idle      Status = "IDLE"
	Running   Status = "RUNNING"
	Completed Status = "COMPLETED"
	Error     Status = "ERROR"
)

// Reporter receives progress updates from a reconciliation run.
type Reporter interface {
	// Start begins a run with the given total unit count.
	Start(total int, message string)
	// Advance records one completed unit and the current phase message.
	Advance(message string)
	// Done marks the run completed with a final message.
	Done(message string)
	// Fail marks the run errored with a user-facing message.
	Fail(message string)
}

// Snapshot is one observed progress state. Current never exceeds Total
// within a run.
type Snapshot struct {
	Status  Status `json:"status"`
	Current int    `json:"current"`
	Total   int    `json:"total"`
	Message string `json:"message"`
}

// Tracker is a mutex-guarded Reporter whose last state remains readable
// after completion until the next run starts. The zero value is an idle
// tracker ready for use.
type Tracker struct {
	mu   sync.Mutex
	snap Snapshot
}

// NewTracker returns an idle Tracker.
func NewTracker() *Tracker {
	return &Tracker{snap: Snapshot{Status: Idle}}
}

func (t *Tracker) Start(total int, message string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snap = Snapshot{Status: Running, Total: total, Message: message}
}

func (t *Tracker) Advance(message string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.snap.Current < t.snap.Total {
		t.snap.Current++
	}
	t.snap.Message = message
}

func (t *Tracker) Done(message string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snap.Status = Completed
	t.snap.Message = message
}

func (t *Tracker) Fail(message string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snap.Status = Error
	t.snap.Message = message
}

// Snapshot returns the last observed state. Advisory only; there is no
// ordering guarantee relative to the writer beyond last-write-wins.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.snap.Status == "" {
		return Snapshot{Status: Idle}
	}
	return t.snap
}

// Reset clears the tracker back to idle, e.g. to dismiss a stale error.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snap = Snapshot{Status: Idle}
}

// Discard is a Reporter that drops every update.
type Discard struct{}

func (Discard) Start(int, string) {}
func (Discard) Advance(string)    {}
func (Discard) Done(string)       {}
func (Discard) Fail(string)       {}
