package model

import (
	"fmt"
	"sync"
	"time"
)

// ScenarioStatus is the lifecycle state of one scenario execution.
type ScenarioStatus string

const (
	ScenarioPending ScenarioStatus = "pending"
	ScenarioPassed  ScenarioStatus = "passed"
	ScenarioFailed  ScenarioStatus = "failed"
	ScenarioSkipped ScenarioStatus = "skipped"
)

// Result is the read-only view shared by ScenarioResult and AggregatedResult.
type Result interface {
	Scenario() *VirtualScenario
	Status() ScenarioStatus
	IsPassed() bool
	IsFailed() bool
	IsSkipped() bool
	StartedAt() time.Time
	EndedAt() time.Time
	Elapsed() time.Duration
	StepResults() []*StepResult
	Scope() map[string]any
	Artifacts() []Artifact
}

// ScenarioResult records one execution of one VirtualScenario.
type ScenarioResult struct {
	scenario *VirtualScenario

	mu          sync.RWMutex
	status      ScenarioStatus
	startedAt   time.Time
	endedAt     time.Time
	stepResults []*StepResult
	scope       map[string]any
	artifacts   []Artifact
}

var _ Result = (*ScenarioResult)(nil)

// NewScenarioResult creates a pending result for scenario.
func NewScenarioResult(scenario *VirtualScenario) *ScenarioResult {
	return &ScenarioResult{scenario: scenario, status: ScenarioPending}
}

// Scenario returns the executed scenario.
func (r *ScenarioResult) Scenario() *VirtualScenario {
	return r.scenario
}

// Status returns the current status.
func (r *ScenarioResult) Status() ScenarioStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.status
}

func (r *ScenarioResult) IsPassed() bool  { return r.Status() == ScenarioPassed }
func (r *ScenarioResult) IsFailed() bool  { return r.Status() == ScenarioFailed }
func (r *ScenarioResult) IsSkipped() bool { return r.Status() == ScenarioSkipped }

// MarkPassed moves a pending result to passed.
func (r *ScenarioResult) MarkPassed() error { return r.transition(ScenarioPassed) }

// MarkFailed moves a pending result to failed.
func (r *ScenarioResult) MarkFailed() error { return r.transition(ScenarioFailed) }

// MarkSkipped moves a pending result to skipped.
func (r *ScenarioResult) MarkSkipped() error { return r.transition(ScenarioSkipped) }

func (r *ScenarioResult) transition(to ScenarioStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status != ScenarioPending {
		return fmt.Errorf("%w: scenario %s is %s, cannot become %s", ErrStatusTransition, r.scenario.RelPath(), r.status, to)
	}
	r.status = to
	return nil
}

// StartedAt returns the start time; zero when unset.
func (r *ScenarioResult) StartedAt() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.startedAt
}

// SetStartedAt records the start time once.
func (r *ScenarioResult) SetStartedAt(t time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.startedAt.IsZero() {
		return fmt.Errorf("%w: scenario %s start", ErrTimestampSet, r.scenario.RelPath())
	}
	r.startedAt = t
	return nil
}

// EndedAt returns the end time; zero when unset.
func (r *ScenarioResult) EndedAt() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.endedAt
}

// SetEndedAt records the end time once.
func (r *ScenarioResult) SetEndedAt(t time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.endedAt.IsZero() {
		return fmt.Errorf("%w: scenario %s end", ErrTimestampSet, r.scenario.RelPath())
	}
	r.endedAt = t
	return nil
}

// Elapsed is zero until both timestamps are set.
func (r *ScenarioResult) Elapsed() time.Duration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.startedAt.IsZero() || r.endedAt.IsZero() {
		return 0
	}
	return r.endedAt.Sub(r.startedAt)
}

// AddStepResult appends a finished step result.
func (r *ScenarioResult) AddStepResult(result *StepResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stepResults = append(r.stepResults, result)
}

// StepResults returns the step results in execution order.
func (r *ScenarioResult) StepResults() []*StepResult {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*StepResult(nil), r.stepResults...)
}

// SetScope replaces the diagnostic snapshot of the scenario's final state.
func (r *ScenarioResult) SetScope(scope map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scope = scope
}

// Scope returns the scope snapshot; never nil.
func (r *ScenarioResult) Scope() map[string]any {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.scope == nil {
		return map[string]any{}
	}
	return r.scope
}

// Attach adds a plugin-supplied artifact.
func (r *ScenarioResult) Attach(artifact Artifact) error {
	if artifact == nil {
		return ErrNilArtifact
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.artifacts = append(r.artifacts, artifact)
	return nil
}

// Artifacts returns the attached artifacts in attachment order.
func (r *ScenarioResult) Artifacts() []Artifact {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Artifact(nil), r.artifacts...)
}

func (r *ScenarioResult) String() string {
	return fmt.Sprintf("ScenarioResult(%s, %s)", r.scenario.RelPath(), r.Status())
}

// clone copies every recorded field into a new result for the same scenario.
func (r *ScenarioResult) clone() *ScenarioResult {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return &ScenarioResult{
		scenario:    r.scenario,
		status:      r.status,
		startedAt:   r.startedAt,
		endedAt:     r.endedAt,
		stepResults: append([]*StepResult(nil), r.stepResults...),
		scope:       r.scope,
		artifacts:   append([]Artifact(nil), r.artifacts...),
	}
}

// AggregatedResult is the resolved outcome of a scenario that ran more than
// once. Status, timings, steps, scope and artifacts come from the resolution.
type AggregatedResult struct {
	*ScenarioResult
	results []*ScenarioResult
}

var _ Result = (*AggregatedResult)(nil)

// NewAggregatedResult copies resolution into a new aggregate over results.
// Which result resolves the aggregate is the caller's decision.
func NewAggregatedResult(resolution *ScenarioResult, results []*ScenarioResult) (*AggregatedResult, error) {
	if len(results) == 0 {
		return nil, ErrNoResults
	}
	if resolution == nil {
		return nil, fmt.Errorf("%w: resolution is nil", ErrNoResults)
	}
	return &AggregatedResult{
		ScenarioResult: resolution.clone(),
		results:        append([]*ScenarioResult(nil), results...),
	}, nil
}

// ScenarioResults returns every underlying execution in run order.
func (a *AggregatedResult) ScenarioResults() []*ScenarioResult {
	return append([]*ScenarioResult(nil), a.results...)
}

func (a *AggregatedResult) String() string {
	return fmt.Sprintf("AggregatedResult(%s, %s, runs=%d)", a.scenario.RelPath(), a.Status(), len(a.results))
}
