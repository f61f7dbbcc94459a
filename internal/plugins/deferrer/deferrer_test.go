package deferrerplugin

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/alexisbeaulieu97/scenery/internal/events"
	"github.com/alexisbeaulieu97/scenery/internal/logger"
	"github.com/alexisbeaulieu97/scenery/internal/model"
	"github.com/alexisbeaulieu97/scenery/internal/plugin"
	"github.com/alexisbeaulieu97/scenery/internal/source"
)

var _ source.Deferrer = (*Queue)(nil)

func record(trace *[]string, name string, err error) func(context.Context) error {
	return func(context.Context) error {
		*trace = append(*trace, name)
		return err
	}
}

func activate(t *testing.T, queue *Queue, log *logger.Logger) *events.Bus {
	t.Helper()
	registry := plugin.NewRegistry(plugin.WithLogger(log))
	require.NoError(t, registry.Add(New(queue)))
	bus := events.NewBus(nil)
	_, err := registry.Activate(bus)
	require.NoError(t, err)
	return bus
}

func scenarioResult(t *testing.T) *model.ScenarioResult {
	t.Helper()
	scenario, err := model.NewVirtualScenario(model.Definition{Path: "scenarios/cleanup.yml"}, nil)
	require.NoError(t, err)
	return model.NewScenarioResult(scenario)
}

func TestQueueDrainsLastInFirstOut(t *testing.T) {
	t.Parallel()

	var trace []string
	queue := NewQueue()
	queue.Defer("first", record(&trace, "first", nil))
	queue.Defer("second", record(&trace, "second", errors.New("busy")))
	queue.Defer("third", record(&trace, "third", nil))
	queue.Defer("nil", nil)
	require.Equal(t, 3, queue.Len())

	err := queue.Drain(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "second: busy")
	require.Equal(t, []string{"third", "second", "first"}, trace)
	require.Zero(t, queue.Len())

	require.NoError(t, queue.Drain(context.Background()))
}

func TestQueueReset(t *testing.T) {
	t.Parallel()

	var trace []string
	queue := NewQueue()
	queue.Defer("dropped", record(&trace, "dropped", nil))
	queue.Reset()
	require.NoError(t, queue.Drain(context.Background()))
	require.Empty(t, trace)
}

func TestPluginDrainsOnScenarioEnd(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		end  func(*model.ScenarioResult) events.Event
	}{
		{name: "passed", end: func(r *model.ScenarioResult) events.Event { return events.ScenarioPassedEvent{Result: r} }},
		{name: "failed", end: func(r *model.ScenarioResult) events.Event { return events.ScenarioFailedEvent{Result: r} }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			var trace []string
			queue := NewQueue()
			bus := activate(t, queue, logger.Nop())
			ctx := context.Background()
			result := scenarioResult(t)

			queue.Defer("stale", record(&trace, "stale", nil))
			require.NoError(t, bus.Fire(ctx, events.ScenarioRunEvent{Result: result}))
			queue.Defer("a", record(&trace, "a", nil))
			queue.Defer("b", record(&trace, "b", nil))

			require.NoError(t, bus.Fire(ctx, tc.end(result)))
			require.Equal(t, []string{"b", "a"}, trace)
		})
	}
}

func TestPluginLogsCleanupFailures(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log, err := logger.New(logger.Options{Level: "debug", Writer: &buf})
	require.NoError(t, err)

	var trace []string
	queue := NewQueue()
	bus := activate(t, queue, log)

	queue.Defer("teardown", record(&trace, "teardown", errors.New("gone")))
	require.NoError(t, bus.Fire(context.Background(), events.CleanupEvent{Report: model.NewReport()}))
	require.Equal(t, []string{"teardown"}, trace)
	require.Contains(t, buf.String(), "deferred cleanup failed")
	require.Contains(t, buf.String(), "teardown: gone")
}

func TestPluginDrainsIgnoringCancellation(t *testing.T) {
	t.Parallel()

	queue := NewQueue()
	bus := activate(t, queue, logger.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var sawErr error
	queue.Defer("check", func(ctx context.Context) error {
		sawErr = ctx.Err()
		return nil
	})
	require.NoError(t, bus.Fire(ctx, events.CleanupEvent{Report: model.NewReport()}))
	require.NoError(t, sawErr)
}
