package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/alexisbeaulieu97/scenery/internal/events"
	"github.com/alexisbeaulieu97/scenery/internal/model"
	"github.com/alexisbeaulieu97/scenery/internal/scheduler"
)

// tickingClock advances one second per call.
func tickingClock() func() time.Time {
	var mu sync.Mutex
	current := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		current = current.Add(time.Second)
		return current
	}
}

// eventLog records every fired lifecycle event as "<kind> <subject>".
type eventLog struct {
	entries []string
}

func (l *eventLog) Subscribe(bus *events.Bus) {
	scenarioKinds := []events.Kind{
		events.KindScenarioRun, events.KindScenarioSkipped,
		events.KindScenarioPassed, events.KindScenarioFailed,
	}
	for _, kind := range scenarioKinds {
		bus.Listen(kind, func(_ context.Context, event events.Event) error {
			l.entries = append(l.entries, fmt.Sprintf("%s %s", event.Kind(), scenarioOf(event).Subject()))
			return nil
		})
	}
	for _, kind := range []events.Kind{events.KindStepRun, events.KindStepPassed, events.KindStepFailed} {
		bus.Listen(kind, func(_ context.Context, event events.Event) error {
			l.entries = append(l.entries, fmt.Sprintf("%s %s", event.Kind(), stepOf(event).Name()))
			return nil
		})
	}
	events.Listen(bus, func(_ context.Context, event events.ScenarioReportedEvent) error {
		l.entries = append(l.entries, fmt.Sprintf("%s %s %s", event.Kind(), event.Result.Scenario().Subject(), event.Result.Status()))
		return nil
	})
}

func scenarioOf(event events.Event) *model.VirtualScenario {
	switch e := event.(type) {
	case events.ScenarioRunEvent:
		return e.Result.Scenario()
	case events.ScenarioSkippedEvent:
		return e.Result.Scenario()
	case events.ScenarioPassedEvent:
		return e.Result.Scenario()
	case events.ScenarioFailedEvent:
		return e.Result.Scenario()
	}
	return nil
}

func stepOf(event events.Event) *model.VirtualStep {
	switch e := event.(type) {
	case events.StepRunEvent:
		return e.Result.Step()
	case events.StepPassedEvent:
		return e.Result.Step()
	case events.StepFailedEvent:
		return e.Result.Step()
	}
	return nil
}

func newScenario(t *testing.T, name string, steps ...*model.VirtualStep) *model.VirtualScenario {
	t.Helper()
	scenario, err := model.NewVirtualScenario(model.Definition{
		ProjectDir: "/project",
		Path:       "scenarios/" + name + ".yml",
	}, steps)
	require.NoError(t, err)
	return scenario
}

func passing(name string) *model.VirtualStep {
	return model.NewStep(name, func(context.Context, *model.Scope) error { return nil })
}

func failing(name string, err error) *model.VirtualStep {
	return model.NewStep(name, func(context.Context, *model.Scope) error { return err })
}

func newRunner(t *testing.T, subscribers ...events.Subscriber) (*Runner, *eventLog) {
	t.Helper()
	bus := events.NewBus(nil)
	log := &eventLog{}
	bus.Register(log)
	for _, subscriber := range subscribers {
		bus.Register(subscriber)
	}
	return New(bus, WithClock(tickingClock())), log
}

func newScheduler(t *testing.T, scenarios ...*model.VirtualScenario) *scheduler.Monotonic {
	t.Helper()
	sched, err := scheduler.NewMonotonic(scenarios)
	require.NoError(t, err)
	return sched
}

func TestRunWithoutScenarios(t *testing.T) {
	t.Parallel()

	runner, _ := newRunner(t)
	report, err := runner.Run(context.Background(), newScheduler(t))
	require.NoError(t, err)
	require.Zero(t, report.Total())
	require.Zero(t, report.Passed())
	require.Zero(t, report.Failed())
	require.Zero(t, report.Skipped())
	require.Zero(t, report.Elapsed())
	require.Nil(t, report.Interrupted())
}

func TestRunScenarioStopsAtFirstFailure(t *testing.T) {
	t.Parallel()

	ran := map[string]bool{}
	track := func(name string, err error) *model.VirtualStep {
		return model.NewStep(name, func(context.Context, *model.Scope) error {
			ran[name] = true
			return err
		})
	}
	scenario := newScenario(t, "checkout", track("A", nil), track("B", errors.New("B broke")), track("C", nil))

	runner, log := newRunner(t)
	result, err := runner.RunScenario(context.Background(), scenario)
	require.NoError(t, err)
	require.True(t, result.IsFailed())

	steps := result.StepResults()
	require.Len(t, steps, 2)
	require.True(t, steps[0].IsPassed())
	require.True(t, steps[1].IsFailed())
	require.Equal(t, "B broke", steps[1].ExcInfo().Message())
	require.False(t, ran["C"])

	require.Equal(t, []string{
		"scenario.run checkout",
		"step.run A", "step.passed A",
		"step.run B", "step.failed B",
		"scenario.failed checkout",
	}, log.entries)
}

func TestRunScenarioWithoutStepsPasses(t *testing.T) {
	t.Parallel()

	runner, _ := newRunner(t)
	result, err := runner.RunScenario(context.Background(), newScenario(t, "empty"))
	require.NoError(t, err)
	require.True(t, result.IsPassed())
	require.False(t, result.StartedAt().IsZero())
	require.False(t, result.EndedAt().IsZero())
}

func TestRunScenarioSkipped(t *testing.T) {
	t.Parallel()

	ran := false
	scenario := newScenario(t, "skipped", model.NewStep("A", func(context.Context, *model.Scope) error {
		ran = true
		return nil
	}))
	scenario.Skip("not today")

	runner, log := newRunner(t)
	result, err := runner.RunScenario(context.Background(), scenario)
	require.NoError(t, err)
	require.True(t, result.IsSkipped())
	require.Empty(t, result.StepResults())
	require.False(t, ran)
	require.Equal(t, []string{"scenario.skipped skipped"}, log.entries)
}

func TestRunScenarioCapturesScope(t *testing.T) {
	t.Parallel()

	scenario, err := model.NewVirtualScenario(model.Definition{
		ProjectDir: "/project",
		Path:       "scenarios/scope.yml",
		Init:       func(scope *model.Scope) { scope.Set("user", "alice") },
	}, []*model.VirtualStep{
		model.NewStep("login", func(_ context.Context, scope *model.Scope) error {
			scope.Set("token", "abc")
			return nil
		}),
		failing("check", errors.New("denied")),
	})
	require.NoError(t, err)

	var seen map[string]any
	runner, _ := newRunner(t, hooks(func(bus *events.Bus) {
		events.Listen(bus, func(_ context.Context, event events.ScenarioFailedEvent) error {
			seen = event.Result.Scope()
			return nil
		})
	}))

	result, err := runner.RunScenario(context.Background(), scenario)
	require.NoError(t, err)
	require.Equal(t, map[string]any{"user": "alice", "token": "abc"}, result.Scope())
	require.Equal(t, result.Scope(), seen)
}

func TestRunStepRecoversPanics(t *testing.T) {
	t.Parallel()

	runner, _ := newRunner(t)
	step := model.NewStep("explode", func(context.Context, *model.Scope) error { panic("kaboom") })
	result, err := runner.RunStep(context.Background(), step, model.NewScope())
	require.NoError(t, err)
	require.True(t, result.IsFailed())
	require.Contains(t, result.ExcInfo().Message(), "kaboom")
	require.Equal(t, time.Second, result.Elapsed())
}

func TestRunStepSuspendingHonoursCancellation(t *testing.T) {
	t.Parallel()

	runner, _ := newRunner(t)
	release := make(chan struct{})
	defer close(release)
	started := make(chan struct{})
	step := model.NewSuspendingStep("wait", func(ctx context.Context, _ *model.Scope) error {
		close(started)
		<-release
		return nil
	})

	ctx, cancel := context.WithCancelCause(context.Background())
	go func() {
		<-started
		cancel(ErrInterrupted)
	}()

	result, err := runner.RunStep(ctx, step, model.NewScope())
	require.ErrorIs(t, err, ErrInterrupted)
	require.True(t, result.IsFailed())
	require.ErrorIs(t, result.ExcInfo().Err, ErrInterrupted)
}

func TestRunStepSuspendingPasses(t *testing.T) {
	t.Parallel()

	runner, _ := newRunner(t)
	step := model.NewSuspendingStep("sleep", func(ctx context.Context, scope *model.Scope) error {
		scope.Set("slept", true)
		return nil
	})
	scope := model.NewScope()
	result, err := runner.RunStep(context.Background(), step, scope)
	require.NoError(t, err)
	require.True(t, result.IsPassed())
	slept, ok := scope.Get("slept")
	require.True(t, ok)
	require.Equal(t, true, slept)
}

func TestRunStopsOnInterrupt(t *testing.T) {
	t.Parallel()

	first := newScenario(t, "first", passing("A"))
	second := newScenario(t, "second", passing("A"), failing("B", fmt.Errorf("ctrl-c: %w", ErrInterrupted)), passing("C"))
	third := newScenario(t, "third", passing("A"))

	runner, log := newRunner(t)
	report, err := runner.Run(context.Background(), newScheduler(t, first, second, third))

	var interrupted *InterruptedError
	require.ErrorAs(t, err, &interrupted)
	require.ErrorIs(t, err, ErrInterrupted)
	require.NotNil(t, report)
	require.Equal(t, 1, report.Total())
	require.Equal(t, 1, report.Passed())
	require.NotNil(t, report.Interrupted())

	require.Contains(t, log.entries, "step.failed B")
	require.NotContains(t, log.entries, "step.run C")
	require.NotContains(t, log.entries, "scenario.run third")
	require.NotContains(t, log.entries, "scenario.failed second")
}

func TestRunScenarioReraisesInterrupt(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	scenario := newScenario(t, "cancelled", model.NewStep("A", func(ctx context.Context, _ *model.Scope) error {
		cancel()
		return ctx.Err()
	}), passing("B"))
	runner, _ := newRunner(t)

	result, err := runner.RunScenario(ctx, scenario)
	require.ErrorIs(t, err, context.Canceled)
	require.True(t, result.IsFailed())
	require.Len(t, result.StepResults(), 1)
	require.True(t, result.StepResults()[0].IsFailed())
}

func TestRunCustomInterrupts(t *testing.T) {
	t.Parallel()

	fatal := errors.New("fatal")
	bus := events.NewBus(nil)
	runner := New(bus, WithClock(tickingClock()), WithInterrupts(fatal))

	scenario := newScenario(t, "a", failing("A", context.Canceled))
	result, err := runner.RunScenario(context.Background(), scenario)
	require.NoError(t, err)
	require.True(t, result.IsFailed())

	_, err = runner.RunScenario(context.Background(), newScenario(t, "b", failing("A", fatal)))
	require.ErrorIs(t, err, fatal)
}

func TestRunStopsWhenContextCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancelCause(context.Background())
	first := newScenario(t, "first", model.NewStep("A", func(context.Context, *model.Scope) error {
		cancel(ErrTerminated)
		return nil
	}))
	second := newScenario(t, "second", passing("A"))

	runner, log := newRunner(t)
	report, err := runner.Run(ctx, newScheduler(t, first, second))
	require.ErrorIs(t, err, ErrTerminated)
	require.Equal(t, 1, report.Passed())
	require.Equal(t, 1, report.Total())
	require.NotContains(t, log.entries, "scenario.run second")
	require.NotNil(t, report.Interrupted())
}

func TestRunStepOwnCancellationIsAFailure(t *testing.T) {
	t.Parallel()

	first := newScenario(t, "first", model.NewStep("A", func(ctx context.Context, _ *model.Scope) error {
		inner, cancel := context.WithCancel(ctx)
		cancel()
		return fmt.Errorf("request aborted: %w", inner.Err())
	}))
	second := newScenario(t, "second", passing("A"))

	runner, log := newRunner(t)
	report, err := runner.Run(context.Background(), newScheduler(t, first, second))
	require.NoError(t, err)
	require.Equal(t, 1, report.Failed())
	require.Equal(t, 1, report.Passed())
	require.Nil(t, report.Interrupted())
	require.Contains(t, log.entries, "scenario.run second")
}

func TestRunReportsEachScenarioOnce(t *testing.T) {
	t.Parallel()

	a := newScenario(t, "a", passing("A"))
	b := newScenario(t, "b", failing("A", errors.New("no")))
	c := newScenario(t, "c")
	c.Skip("")

	runner, log := newRunner(t)
	report, err := runner.Run(context.Background(), newScheduler(t, a, b, c))
	require.NoError(t, err)
	require.Equal(t, 3, report.Total())
	require.Equal(t, 1, report.Passed())
	require.Equal(t, 1, report.Failed())
	require.Equal(t, 1, report.Skipped())

	var reported []string
	for _, entry := range log.entries {
		if len(entry) > len("scenario.reported") && entry[:len("scenario.reported")] == "scenario.reported" {
			reported = append(reported, entry)
		}
	}
	require.Equal(t, []string{
		"scenario.reported a passed",
		"scenario.reported b failed",
		"scenario.reported c skipped",
	}, reported)
}

// rerunOnce reschedules every failing scenario a single time.
type rerunOnce struct {
	sched *scheduler.Monotonic
	seen  map[string]bool
}

func (p *rerunOnce) Subscribe(bus *events.Bus) {
	events.Listen(bus, func(_ context.Context, event events.ScenarioFailedEvent) error {
		scenario := event.Result.Scenario()
		if p.seen[scenario.UniqueID()] {
			return nil
		}
		p.seen[scenario.UniqueID()] = true
		return p.sched.Schedule(scenario)
	})
}

func TestRunAggregatesReruns(t *testing.T) {
	t.Parallel()

	attempts := 0
	flaky := newScenario(t, "flaky", model.NewStep("A", func(context.Context, *model.Scope) error {
		attempts++
		if attempts == 1 {
			return errors.New("first attempt fails")
		}
		return nil
	}))
	stable := newScenario(t, "stable", passing("A"))

	sched := newScheduler(t, flaky, stable)
	runner, log := newRunner(t, &rerunOnce{sched: sched, seen: map[string]bool{}})

	report, err := runner.Run(context.Background(), sched)
	require.NoError(t, err)
	require.Equal(t, 2, attempts)
	require.Equal(t, 2, report.Total())
	require.Equal(t, 1, report.Passed())

	// One failure and one pass is a tie, so the failing run resolves it.
	require.Equal(t, 1, report.Failed())
	require.Contains(t, log.entries, "scenario.reported flaky failed")
	require.Contains(t, log.entries, "scenario.reported stable passed")
}

func TestRunPropagatesHandlerErrors(t *testing.T) {
	t.Parallel()

	boom := errors.New("reporter crashed")
	a := newScenario(t, "a", passing("A"))
	b := newScenario(t, "b", passing("A"))

	runner, log := newRunner(t, hooks(func(bus *events.Bus) {
		events.Listen(bus, func(_ context.Context, event events.ScenarioPassedEvent) error {
			return boom
		})
	}))

	report, err := runner.Run(context.Background(), newScheduler(t, a, b))
	require.ErrorIs(t, err, boom)
	var interrupted *InterruptedError
	require.False(t, errors.As(err, &interrupted))
	require.Nil(t, report.Interrupted())
	require.NotContains(t, log.entries, "scenario.run b")
}

func TestRunInterruptFromHandler(t *testing.T) {
	t.Parallel()

	a := newScenario(t, "a", failing("A", errors.New("no")))
	b := newScenario(t, "b", passing("A"))

	failed := false
	runner, _ := newRunner(t, hooks(func(bus *events.Bus) {
		events.Listen(bus, func(_ context.Context, event events.ScenarioReportedEvent) error {
			failed = failed || event.Result.IsFailed()
			return nil
		})
		events.Listen(bus, func(context.Context, events.ScenarioRunEvent) error {
			if failed {
				return ErrInterrupted
			}
			return nil
		})
	}))

	report, err := runner.Run(context.Background(), newScheduler(t, a, b))
	var interrupted *InterruptedError
	require.ErrorAs(t, err, &interrupted)
	require.Equal(t, 1, report.Failed())
	require.Equal(t, 1, report.Total())
}

type hookSubscriber struct {
	attach func(bus *events.Bus)
}

func (h *hookSubscriber) Subscribe(bus *events.Bus) { h.attach(bus) }

func hooks(attach func(bus *events.Bus)) events.Subscriber {
	return &hookSubscriber{attach: attach}
}
