package events

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/alexisbeaulieu97/scenery/internal/logger"
	"github.com/alexisbeaulieu97/scenery/internal/model"
	sceneryerrors "github.com/alexisbeaulieu97/scenery/pkg/errors"
)

type recordingSubscriber struct {
	name  string
	calls *[]string
}

func (s *recordingSubscriber) Subscribe(bus *Bus) {
	bus.Listen(KindStartup, func(context.Context, Event) error {
		*s.calls = append(*s.calls, s.name)
		return nil
	})
}

func TestBusFiresInRegistrationOrder(t *testing.T) {
	t.Parallel()

	bus := NewBus(nil)
	var calls []string
	for _, name := range []string{"first", "second", "third", "fourth"} {
		bus.Register(&recordingSubscriber{name: name, calls: &calls})
	}

	require.NoError(t, bus.Fire(context.Background(), StartupEvent{}))
	require.Equal(t, []string{"first", "second", "third", "fourth"}, calls)
}

func TestBusAwaitsEachHandler(t *testing.T) {
	t.Parallel()

	bus := NewBus(nil)
	var trace []string
	bus.Listen(KindCleanup, func(ctx context.Context, _ Event) error {
		done := make(chan struct{})
		go func() {
			trace = append(trace, "slow")
			close(done)
		}()
		<-done
		return nil
	}).Listen(KindCleanup, func(context.Context, Event) error {
		trace = append(trace, "fast")
		return nil
	})

	require.NoError(t, bus.Fire(context.Background(), CleanupEvent{Report: model.NewReport()}))
	require.Equal(t, []string{"slow", "fast"}, trace)
}

func TestBusPropagatesHandlerErrors(t *testing.T) {
	t.Parallel()

	bus := NewBus(nil)
	boom := errors.New("boom")
	var calls []string
	bus.Listen(KindStartup, func(context.Context, Event) error {
		calls = append(calls, "a")
		return boom
	}).Listen(KindStartup, func(context.Context, Event) error {
		calls = append(calls, "b")
		return nil
	})

	err := bus.Fire(context.Background(), StartupEvent{})
	require.ErrorIs(t, err, boom)
	require.Equal(t, []string{"a"}, calls)
}

func TestBusOnlyDeliversExactKind(t *testing.T) {
	t.Parallel()

	bus := NewBus(nil)
	var kinds []Kind
	record := func(_ context.Context, event Event) error {
		kinds = append(kinds, event.Kind())
		return nil
	}
	bus.Listen(KindScenarioPassed, record).Listen(KindScenarioFailed, record)

	require.NoError(t, bus.Fire(context.Background(), ScenarioRunEvent{}))
	require.NoError(t, bus.Fire(context.Background(), ScenarioFailedEvent{}))
	require.Equal(t, []Kind{KindScenarioFailed}, kinds)
}

func TestBusRegisterIsIdempotent(t *testing.T) {
	t.Parallel()

	bus := NewBus(nil)
	var calls []string
	subscriber := &recordingSubscriber{name: "once", calls: &calls}
	bus.Register(subscriber)
	bus.Register(subscriber)

	require.NoError(t, bus.Fire(context.Background(), StartupEvent{}))
	require.Equal(t, []string{"once"}, calls)
}

func TestBusNamesPluginInHandlerErrors(t *testing.T) {
	t.Parallel()

	bus := NewBus(nil)
	boom := errors.New("boom")
	var calls []string
	bus.RegisterAs("recorder", &recordingSubscriber{name: "named", calls: &calls})
	bus.Listen(KindCleanup, func(context.Context, Event) error { return boom })
	bus.RegisterAs("failing", failingSubscriber{err: boom})

	err := bus.Fire(context.Background(), StartupEvent{})
	require.ErrorIs(t, err, boom)
	var pluginErr *sceneryerrors.PluginError
	require.ErrorAs(t, err, &pluginErr)
	require.Equal(t, "failing", pluginErr.Plugin)
	require.EqualError(t, err, "plugin error [failing]: startup handler: boom")
	require.Equal(t, []string{"named"}, calls)

	err = bus.Fire(context.Background(), CleanupEvent{Report: model.NewReport()})
	require.EqualError(t, err, "cleanup handler: boom")
	require.False(t, errors.As(err, &pluginErr))
}

type failingSubscriber struct {
	err error
}

func (s failingSubscriber) Subscribe(bus *Bus) {
	bus.Listen(KindStartup, func(context.Context, Event) error { return s.err })
}

func TestTypedListen(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log, err := logger.New(logger.Options{Level: "debug", Writer: &buf})
	require.NoError(t, err)

	bus := NewBus(log)
	report := model.NewReport()
	var got *model.Report
	Listen(bus, func(_ context.Context, event CleanupEvent) error {
		got = event.Report
		return nil
	})

	require.NoError(t, bus.Fire(context.Background(), CleanupEvent{Report: report}))
	require.Same(t, report, got)
	require.Contains(t, buf.String(), `"event":"cleanup"`)
}

func TestNilBusIsSafe(t *testing.T) {
	t.Parallel()

	var bus *Bus
	require.NoError(t, bus.Fire(context.Background(), StartupEvent{}))
	require.Nil(t, bus.Listen(KindStartup, nil))
	bus.Register(&recordingSubscriber{})
}
