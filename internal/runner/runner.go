package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alexisbeaulieu97/scenery/internal/events"
	"github.com/alexisbeaulieu97/scenery/internal/logger"
	"github.com/alexisbeaulieu97/scenery/internal/model"
	"github.com/alexisbeaulieu97/scenery/internal/scheduler"
)

// Option customises a Runner.
type Option func(*Runner)

// WithInterrupts replaces the interrupt set. Errors matching any entry via
// errors.Is stop the whole run instead of only failing a step.
func WithInterrupts(interrupts ...error) Option {
	return func(r *Runner) {
		r.interrupts = append([]error(nil), interrupts...)
	}
}

// WithClock sets the time source used for result timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) {
		if now != nil {
			r.now = now
		}
	}
}

// WithLogger sets the runner's logger.
func WithLogger(log *logger.Logger) Option {
	return func(r *Runner) {
		r.logger = log.WithComponent("runner")
	}
}

// Runner drains a scheduler one scenario at a time, executing steps in order
// and firing lifecycle events on the bus.
type Runner struct {
	bus        *events.Bus
	interrupts []error
	now        func() time.Time
	logger     *logger.Logger
}

// New creates a runner firing events on bus.
func New(bus *events.Bus, opts ...Option) *Runner {
	r := &Runner{
		bus:        bus,
		interrupts: DefaultInterrupts(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RunStep executes one step. A step failure is recorded on the returned
// result and only returned as an error when it is interrupt-class. Handler
// errors are always returned; when the step-run handler fails the step does
// not execute and the result is nil.
func (r *Runner) RunStep(ctx context.Context, step *model.VirtualStep, scope *model.Scope) (*model.StepResult, error) {
	result := model.NewStepResult(step)
	if err := r.bus.Fire(ctx, events.StepRunEvent{Result: result}); err != nil {
		return nil, err
	}

	if err := result.SetStartedAt(r.now()); err != nil {
		return result, err
	}
	stepErr := r.call(ctx, step, scope)
	if err := result.SetEndedAt(r.now()); err != nil {
		return result, err
	}

	if stepErr == nil {
		if err := result.MarkPassed(); err != nil {
			return result, err
		}
		return result, r.bus.Fire(ctx, events.StepPassedEvent{Result: result})
	}

	result.SetExcInfo(model.NewExcInfo(stepErr))
	if err := result.MarkFailed(); err != nil {
		return result, err
	}
	if err := r.bus.Fire(ctx, events.StepFailedEvent{Result: result}); err != nil {
		return result, err
	}
	if r.isInterrupt(ctx, stepErr) {
		return result, stepErr
	}
	return result, nil
}

// call invokes the step body. Suspending steps run on their own goroutine and
// are abandoned when ctx is done.
func (r *Runner) call(ctx context.Context, step *model.VirtualStep, scope *model.Scope) error {
	if ctx.Err() != nil {
		return context.Cause(ctx)
	}
	if !step.IsSuspending() {
		return step.Call(ctx, scope)
	}

	done := make(chan error, 1)
	go func() {
		done <- step.Call(ctx, scope)
	}()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return context.Cause(ctx)
	}
}

// RunScenario executes scenario once. Skipped scenarios are reported without
// firing the run event. Steps run in declared order and stop at the first
// failure. The returned error is an interrupt or a handler failure; ordinary
// step failures only show up on the result.
func (r *Runner) RunScenario(ctx context.Context, scenario *model.VirtualScenario) (*model.ScenarioResult, error) {
	result := model.NewScenarioResult(scenario)
	scope := scenario.NewScope()
	result.SetScope(scope.Snapshot())

	if scenario.IsSkipped() {
		if err := result.MarkSkipped(); err != nil {
			return result, err
		}
		return result, r.bus.Fire(ctx, events.ScenarioSkippedEvent{Result: result})
	}

	if err := r.bus.Fire(ctx, events.ScenarioRunEvent{Result: result}); err != nil {
		return result, err
	}
	if err := result.SetStartedAt(r.now()); err != nil {
		return result, err
	}

	log := r.logger.WithContext(ctx).WithFields(map[string]any{"scenario": scenario.RelPath()})
	log.Debug("scenario started")

	for _, step := range scenario.Steps() {
		stepResult, err := r.RunStep(ctx, step, scope)
		if stepResult != nil {
			result.AddStepResult(stepResult)
		}
		if err != nil {
			// The run unwinds; the result is closed but no terminal event fires.
			result.SetScope(scope.Snapshot())
			_ = result.SetEndedAt(r.now())
			if stepResult != nil && stepResult.IsFailed() {
				_ = result.MarkFailed()
			}
			return result, err
		}
		if stepResult.IsFailed() {
			break
		}
	}

	result.SetScope(scope.Snapshot())
	if err := result.SetEndedAt(r.now()); err != nil {
		return result, err
	}

	failed := false
	for _, stepResult := range result.StepResults() {
		if stepResult.IsFailed() {
			failed = true
			break
		}
	}

	if failed {
		if err := result.MarkFailed(); err != nil {
			return result, err
		}
		log.Debug("scenario failed")
		return result, r.bus.Fire(ctx, events.ScenarioFailedEvent{Result: result})
	}
	if err := result.MarkPassed(); err != nil {
		return result, err
	}
	log.Debug("scenario passed")
	return result, r.bus.Fire(ctx, events.ScenarioPassedEvent{Result: result})
}

// Run drains sched and builds the report. Every execution of a scenario is
// collected, and once the scenario is no longer pending its executions are
// resolved through the scheduler, added to the report and announced with a
// ScenarioReportedEvent.
//
// An interrupt stops the loop: completed scenarios are still reported, the
// report is marked interrupted and returned with an *InterruptedError. Any
// other handler error stops the loop the same way and is returned as is.
func (r *Runner) Run(ctx context.Context, sched scheduler.Scheduler) (*model.Report, error) {
	report := model.NewReport()
	pending := newResultGroups()

	var runErr error
	for scenario := range scheduler.Iterate(sched) {
		// Next already removed scenario from the scheduler; it is dropped
		// without a result, like a scenario the interrupt never reached.
		if ctx.Err() != nil {
			runErr = context.Cause(ctx)
			break
		}

		result, err := r.RunScenario(ctx, scenario)
		if err != nil {
			runErr = fmt.Errorf("scenario %s: %w", scenario.RelPath(), err)
			if r.isInterrupt(ctx, err) {
				runErr = err
			}
			break
		}
		pending.add(result)

		if err := r.report(ctx, sched, report, pending, false); err != nil {
			runErr = err
			break
		}
	}

	if runErr == nil {
		return report, r.report(ctx, sched, report, pending, true)
	}

	flushErr := r.report(ctx, sched, report, pending, true)
	if r.isInterrupt(ctx, runErr) {
		report.SetInterrupted(model.NewExcInfo(runErr))
		r.logger.WithContext(ctx).Warn("run was interrupted")
		interrupted := &InterruptedError{Cause: runErr}
		if flushErr != nil {
			return report, errors.Join(interrupted, flushErr)
		}
		return report, interrupted
	}
	if flushErr != nil {
		return report, errors.Join(runErr, flushErr)
	}
	return report, runErr
}

// report resolves every collected scenario that is no longer pending, or all
// of them when force is set.
func (r *Runner) report(ctx context.Context, sched scheduler.Scheduler, report *model.Report, groups *resultGroups, force bool) error {
	for _, id := range groups.ids() {
		if !force && sched.IsPending(id) {
			continue
		}
		resolved, err := sched.AggregateResults(groups.take(id))
		if err != nil {
			return err
		}
		report.AddResult(resolved)
		if err := r.bus.Fire(ctx, events.ScenarioReportedEvent{Result: resolved}); err != nil {
			return err
		}
	}
	return nil
}

// resultGroups collects executions per unique id, keeping first-run order.
type resultGroups struct {
	order   []string
	results map[string][]*model.ScenarioResult
}

func newResultGroups() *resultGroups {
	return &resultGroups{results: make(map[string][]*model.ScenarioResult)}
}

func (g *resultGroups) add(result *model.ScenarioResult) {
	id := result.Scenario().UniqueID()
	if _, ok := g.results[id]; !ok {
		g.order = append(g.order, id)
	}
	g.results[id] = append(g.results[id], result)
}

func (g *resultGroups) ids() []string {
	return append([]string(nil), g.order...)
}

func (g *resultGroups) take(id string) []*model.ScenarioResult {
	results := g.results[id]
	delete(g.results, id)
	for i, existing := range g.order {
		if existing == id {
			g.order = append(g.order[:i:i], g.order[i+1:]...)
			break
		}
	}
	return results
}
