package rerunnerplugin

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/alexisbeaulieu97/scenery/internal/model"
	"github.com/alexisbeaulieu97/scenery/internal/plugin"
	"github.com/alexisbeaulieu97/scenery/internal/plugins/plugintest"
	sceneryerrors "github.com/alexisbeaulieu97/scenery/pkg/errors"
)

var errFlaky = errors.New("flaky")

func TestRerunsFailedScenarioUntilLimit(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := plugintest.Activate(t, []*plugin.Config{New()})
	reported := &plugintest.Reported{}
	h.Bus.Register(reported)
	require.NoError(t, h.ParseArgs(ctx, "--reruns", "2"))

	broken := plugintest.Scenario(t, "broken", plugintest.Failing("step", errFlaky))
	fine := plugintest.Scenario(t, "fine", plugintest.Passing("step"))

	report, err := h.Run(ctx, broken, fine)
	require.NoError(t, err)
	require.Equal(t, 2, report.Total())
	require.Equal(t, 1, report.Failed())
	require.Equal(t, []string{"# rerun 1 scenario(s), 2 time(s)"}, report.Summary())

	require.Len(t, reported.Results, 2)
	aggregated, ok := reported.Results[1].(*model.AggregatedResult)
	require.True(t, ok)
	require.Equal(t, broken, aggregated.Scenario())
	require.Len(t, aggregated.ScenarioResults(), 3)
}

func TestFlakyScenarioResolvesByMajority(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := plugintest.Activate(t, []*plugin.Config{New()})
	require.NoError(t, h.ParseArgs(ctx, "--reruns", "2"))

	flaky := plugintest.Scenario(t, "flaky", plugintest.Flaky("step", 1, errFlaky))
	report, err := h.Run(ctx, flaky)
	require.NoError(t, err)
	require.Equal(t, 1, report.Passed())
	require.Equal(t, []string{"# rerun 1 scenario(s), 2 time(s)"}, report.Summary())
}

func TestNoRerunsByDefault(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := plugintest.Activate(t, []*plugin.Config{New()})
	require.NoError(t, h.ParseArgs(ctx))

	report, err := h.Run(ctx, plugintest.Scenario(t, "broken", plugintest.Failing("step", errFlaky)))
	require.NoError(t, err)
	require.Equal(t, 1, report.Failed())
	require.Empty(t, report.Summary())
}

func TestConfiguredDefaultApplies(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	cfg := New()
	cfg.Options.(*Options).Reruns = 1
	h := plugintest.Activate(t, []*plugin.Config{cfg})
	require.NoError(t, h.ParseArgs(ctx))

	report, err := h.Run(ctx, plugintest.Scenario(t, "broken", plugintest.Failing("step", errFlaky)))
	require.NoError(t, err)
	require.Equal(t, []string{"# rerun 1 scenario(s), 1 time(s)"}, report.Summary())
}

func TestRejectsInvalidFlags(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		args []string
	}{
		{name: "negative reruns", args: []string{"--reruns", "-1"}},
		{name: "negative delay", args: []string{"--reruns", "1", "--reruns-delay", "-1s"}},
		{name: "delay without reruns", args: []string{"--reruns-delay", "1s"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			h := plugintest.Activate(t, []*plugin.Config{New()})
			err := h.ParseArgs(context.Background(), tc.args...)
			require.Error(t, err)
			require.True(t, sceneryerrors.IsConfigError(err))
		})
	}
}

func TestDelayHonoursCancellation(t *testing.T) {
	t.Parallel()

	stop := errors.New("stop")
	ctx, cancel := context.WithCancelCause(context.Background())
	cancel(stop)

	require.ErrorIs(t, sleepContext(ctx, time.Hour), stop)
	require.NoError(t, sleepContext(context.Background(), time.Millisecond))
}
