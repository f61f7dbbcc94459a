package model

import (
	"fmt"
	"sync"
	"time"
)

// StepStatus is the lifecycle state of one step execution.
type StepStatus string

const (
	// StepPending indicates the step has not finished yet.
	StepPending StepStatus = "pending"
	// StepPassed marks a step whose body returned without error.
	StepPassed StepStatus = "passed"
	// StepFailed marks a step whose body returned an error or panicked.
	StepFailed StepStatus = "failed"
)

// StepResult records the outcome of executing a single step.
type StepResult struct {
	step *VirtualStep

	mu        sync.RWMutex
	status    StepStatus
	startedAt time.Time
	endedAt   time.Time
	excInfo   *ExcInfo
}

// NewStepResult creates a pending result for step.
func NewStepResult(step *VirtualStep) *StepResult {
	return &StepResult{step: step, status: StepPending}
}

// Step returns the step this result belongs to.
func (r *StepResult) Step() *VirtualStep {
	return r.step
}

// Status returns the current status.
func (r *StepResult) Status() StepStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.status
}

// IsPassed reports whether the step passed.
func (r *StepResult) IsPassed() bool { return r.Status() == StepPassed }

// IsFailed reports whether the step failed.
func (r *StepResult) IsFailed() bool { return r.Status() == StepFailed }

// MarkPassed moves a pending result to passed.
func (r *StepResult) MarkPassed() error {
	return r.transition(StepPassed)
}

// MarkFailed moves a pending result to failed.
func (r *StepResult) MarkFailed() error {
	return r.transition(StepFailed)
}

func (r *StepResult) transition(to StepStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status != StepPending {
		return fmt.Errorf("%w: step %q is %s, cannot become %s", ErrStatusTransition, r.step.Name(), r.status, to)
	}
	r.status = to
	return nil
}

// StartedAt returns the start time; zero when unset.
func (r *StepResult) StartedAt() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.startedAt
}

// SetStartedAt records the start time once.
func (r *StepResult) SetStartedAt(t time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.startedAt.IsZero() {
		return fmt.Errorf("%w: step %q start", ErrTimestampSet, r.step.Name())
	}
	r.startedAt = t
	return nil
}

// EndedAt returns the end time; zero when unset.
func (r *StepResult) EndedAt() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.endedAt
}

// SetEndedAt records the end time once.
func (r *StepResult) SetEndedAt(t time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.endedAt.IsZero() {
		return fmt.Errorf("%w: step %q end", ErrTimestampSet, r.step.Name())
	}
	r.endedAt = t
	return nil
}

// Elapsed is zero until both timestamps are set.
func (r *StepResult) Elapsed() time.Duration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.startedAt.IsZero() || r.endedAt.IsZero() {
		return 0
	}
	return r.endedAt.Sub(r.startedAt)
}

// ExcInfo returns the captured failure, if any.
func (r *StepResult) ExcInfo() *ExcInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.excInfo
}

// SetExcInfo attaches the captured failure.
func (r *StepResult) SetExcInfo(info *ExcInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.excInfo = info
}

func (r *StepResult) String() string {
	return fmt.Sprintf("StepResult(%s, %s)", r.step.Name(), r.Status())
}
