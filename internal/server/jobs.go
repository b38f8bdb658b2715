package server

import (
	"sync"
	"time"
)

// Run statuses reported by the API.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
	StatusFailed    = "failed"
)

type job struct {
	RunID     string    `json:"run_id"`
	PairID    string    `json:"pair_run_id"` // the other variant of the same backtest
	Status    string    `json:"status"`
	Error     string    `json:"error,omitempty"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at,omitempty"`
}

// jobTracker records the state of backtests started through the API.
// At most one backtest runs at a time; active holds its global run id.
type jobTracker struct {
	mu     sync.RWMutex
	jobs   map[string]*job
	active string
}

func newJobTracker() *jobTracker {
	return &jobTracker{jobs: make(map[string]*job)}
}

// start registers a backtest as running. It returns false while another
// backtest is still running.
func (t *jobTracker) start(globalID, chunkID string, now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.active != "" {
		return false
	}
	t.active = globalID
	t.jobs[globalID] = &job{RunID: globalID, PairID: chunkID, Status: StatusRunning, StartedAt: now}
	t.jobs[chunkID] = &job{RunID: chunkID, PairID: globalID, Status: StatusRunning, StartedAt: now}
	return true
}

func (t *jobTracker) finish(runID, status string, err error, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	j, ok := t.jobs[runID]
	if !ok {
		return
	}
	if j.RunID == t.active || j.PairID == t.active {
		t.active = ""
	}
	j.Status = status
	j.EndedAt = now
	if err != nil {
		j.Error = err.Error()
	}
}

// running returns the global run id of the running backtest, if any.
func (t *jobTracker) running() (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.active, t.active != ""
}

func (t *jobTracker) get(runID string) (job, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	j, ok := t.jobs[runID]
	if !ok {
		return job{}, false
	}
	return *j, true
}
