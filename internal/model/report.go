package model

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Report holds the totals of one process run. It only grows: results and
// summary lines are added, never removed.
type Report struct {
	runID string

	mu          sync.RWMutex
	total       int
	passed      int
	failed      int
	skipped     int
	startedAt   time.Time
	endedAt     time.Time
	summary     []string
	interrupted *ExcInfo
}

// NewReport creates an empty report with a fresh run id.
func NewReport() *Report {
	return &Report{runID: uuid.NewString()}
}

// RunID identifies the run this report belongs to.
func (r *Report) RunID() string {
	return r.runID
}

// AddResult counts result and widens the run's time window.
func (r *Report) AddResult(result Result) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.total++
	switch result.Status() {
	case ScenarioPassed:
		r.passed++
	case ScenarioFailed:
		r.failed++
	case ScenarioSkipped:
		r.skipped++
	}

	if started := result.StartedAt(); !started.IsZero() {
		if r.startedAt.IsZero() || started.Before(r.startedAt) {
			r.startedAt = started
		}
	}
	if ended := result.EndedAt(); !ended.IsZero() {
		if r.endedAt.IsZero() || ended.After(r.endedAt) {
			r.endedAt = ended
		}
	}
}

// AddSummary appends a free-text line contributed by a plugin.
func (r *Report) AddSummary(line string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.summary = append(r.summary, line)
}

// Summary returns the summary lines in insertion order.
func (r *Report) Summary() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.summary...)
}

func (r *Report) Total() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.total
}

func (r *Report) Passed() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.passed
}

func (r *Report) Failed() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.failed
}

func (r *Report) Skipped() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.skipped
}

// StartedAt is the earliest start among added results; zero when none.
func (r *Report) StartedAt() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.startedAt
}

// EndedAt is the latest end among added results; zero when none.
func (r *Report) EndedAt() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.endedAt
}

// Elapsed is the overall run window, zero when either bound is unknown.
func (r *Report) Elapsed() time.Duration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.startedAt.IsZero() || r.endedAt.IsZero() {
		return 0
	}
	return r.endedAt.Sub(r.startedAt)
}

// SetInterrupted records the interrupt that stopped the run.
func (r *Report) SetInterrupted(info *ExcInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.interrupted = info
}

// Interrupted returns the interrupt that stopped the run, or nil when the
// run completed.
func (r *Report) Interrupted() *ExcInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.interrupted
}

func (r *Report) String() string {
	return fmt.Sprintf("Report(total=%d passed=%d failed=%d skipped=%d)",
		r.Total(), r.Passed(), r.Failed(), r.Skipped())
}
