// Package plugintest drives built-in plugins through a real bus, scheduler and
// runner in tests.
package plugintest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"

	"github.com/alexisbeaulieu97/scenery/internal/events"
	"github.com/alexisbeaulieu97/scenery/internal/logger"
	"github.com/alexisbeaulieu97/scenery/internal/model"
	"github.com/alexisbeaulieu97/scenery/internal/plugin"
	"github.com/alexisbeaulieu97/scenery/internal/runner"
	"github.com/alexisbeaulieu97/scenery/internal/scheduler"
	"github.com/alexisbeaulieu97/scenery/internal/storage"
)

// Harness is an activated set of plugins on one bus.
type Harness struct {
	Bus      *events.Bus
	Registry *plugin.Registry
	Store    storage.Store
}

// Option customises a Harness.
type Option func(*options)

type options struct {
	logger *logger.Logger
	store  storage.Store
}

// WithLogger hands log to every plugin.
func WithLogger(log *logger.Logger) Option {
	return func(o *options) { o.logger = log }
}

// WithStore backs plugin storage with store.
func WithStore(store storage.Store) Option {
	return func(o *options) { o.store = store }
}

// Activate registers cfgs and activates them on a fresh bus.
func Activate(t *testing.T, cfgs []*plugin.Config, opts ...Option) *Harness {
	t.Helper()

	o := options{logger: logger.Nop()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.store == nil {
		o.store = storage.NewMemoryStore()
	}

	registry := plugin.NewRegistry(plugin.WithLogger(o.logger), plugin.WithStore(o.store))
	require.NoError(t, registry.Add(cfgs...))
	bus := events.NewBus(nil)
	_, err := registry.Activate(bus)
	require.NoError(t, err)
	return &Harness{Bus: bus, Registry: registry, Store: o.store}
}

// ParseArgs lets plugins declare flags, parses args and announces the result.
func (h *Harness) ParseArgs(ctx context.Context, args ...string) error {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	if err := h.Bus.Fire(ctx, events.ArgParseEvent{Flags: flags}); err != nil {
		return err
	}
	if err := flags.Parse(args); err != nil {
		return err
	}
	return h.Bus.Fire(ctx, events.ArgParsedEvent{Flags: flags})
}

// Run fires startup, drains the scheduler and fires cleanup.
func (h *Harness) Run(ctx context.Context, scenarios ...*model.VirtualScenario) (*model.Report, error) {
	sched, err := scheduler.NewMonotonic(scenarios)
	if err != nil {
		return nil, err
	}
	if err := h.Bus.Fire(ctx, events.StartupEvent{Scheduler: sched}); err != nil {
		return nil, err
	}
	report, runErr := runner.New(h.Bus, runner.WithClock(Clock())).Run(ctx, sched)
	if err := h.Bus.Fire(ctx, events.CleanupEvent{Report: report}); err != nil && runErr == nil {
		runErr = err
	}
	return report, runErr
}

// Clock returns a clock that advances one second per call.
func Clock() func() time.Time {
	var mu sync.Mutex
	current := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		current = current.Add(time.Second)
		return current
	}
}

// Scenario builds a scenario at scenarios/<name>.yml.
func Scenario(t *testing.T, name string, steps ...*model.VirtualStep) *model.VirtualScenario {
	t.Helper()
	scenario, err := model.NewVirtualScenario(model.Definition{
		ProjectDir: "/project",
		Path:       "scenarios/" + name + ".yml",
	}, steps)
	require.NoError(t, err)
	return scenario
}

// Passing is a step that succeeds.
func Passing(name string) *model.VirtualStep {
	return model.NewStep(name, func(context.Context, *model.Scope) error { return nil })
}

// Failing is a step that returns err.
func Failing(name string, err error) *model.VirtualStep {
	return model.NewStep(name, func(context.Context, *model.Scope) error { return err })
}

// Flaky fails its first failures calls and then passes.
func Flaky(name string, failures int, err error) *model.VirtualStep {
	var mu sync.Mutex
	calls := 0
	return model.NewStep(name, func(context.Context, *model.Scope) error {
		mu.Lock()
		defer mu.Unlock()
		calls++
		if calls <= failures {
			return err
		}
		return nil
	})
}

// Reported collects every ScenarioReportedEvent.
type Reported struct {
	Results []model.Result
}

// Subscribe implements events.Subscriber.
func (r *Reported) Subscribe(bus *events.Bus) {
	events.Listen(bus, func(_ context.Context, e events.ScenarioReportedEvent) error {
		r.Results = append(r.Results, e.Result)
		return nil
	})
}
