package reporterplugin

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/require"

	"github.com/alexisbeaulieu97/scenery/internal/events"
	"github.com/alexisbeaulieu97/scenery/internal/logger"
	"github.com/alexisbeaulieu97/scenery/internal/model"
	"github.com/alexisbeaulieu97/scenery/internal/plugin"
	"github.com/alexisbeaulieu97/scenery/internal/plugins/plugintest"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func at(seconds float64) time.Time {
	return epoch.Add(time.Duration(seconds * float64(time.Second)))
}

func newGolden(t *testing.T) *goldie.Goldie {
	return goldie.New(t,
		goldie.WithFixtureDir("testdata"),
		goldie.WithNameSuffix(".golden"),
	)
}

func scenario(t *testing.T, rel, subject string) *model.VirtualScenario {
	t.Helper()
	s, err := model.NewVirtualScenario(model.Definition{ProjectDir: "/project", Path: rel, Subject: subject}, nil)
	require.NoError(t, err)
	return s
}

func stepResult(t *testing.T, name string, start, end float64, err error) *model.StepResult {
	t.Helper()
	result := model.NewStepResult(model.NewStep(name, nil))
	require.NoError(t, result.SetStartedAt(at(start)))
	require.NoError(t, result.SetEndedAt(at(end)))
	if err != nil {
		require.NoError(t, result.MarkFailed())
		result.SetExcInfo(model.NewExcInfo(err))
		return result
	}
	require.NoError(t, result.MarkPassed())
	return result
}

func scenarioResult(t *testing.T, s *model.VirtualScenario, start, end float64, steps ...*model.StepResult) *model.ScenarioResult {
	t.Helper()
	result := model.NewScenarioResult(s)
	require.NoError(t, result.SetStartedAt(at(start)))
	require.NoError(t, result.SetEndedAt(at(end)))
	failed := false
	for _, step := range steps {
		result.AddStepResult(step)
		failed = failed || step.IsFailed()
	}
	if failed {
		require.NoError(t, result.MarkFailed())
	} else {
		require.NoError(t, result.MarkPassed())
	}
	return result
}

func activate(t *testing.T, out *bytes.Buffer, args ...string) *plugintest.Harness {
	t.Helper()
	h := plugintest.Activate(t, []*plugin.Config{New(out)})
	require.NoError(t, h.ParseArgs(context.Background(), append([]string{"--no-color"}, args...)...))
	return h
}

func fire(t *testing.T, h *plugintest.Harness, report *model.Report, results ...model.Result) {
	t.Helper()
	ctx := context.Background()
	for _, result := range results {
		report.AddResult(result)
		require.NoError(t, h.Bus.Fire(ctx, events.ScenarioReportedEvent{Result: result}))
	}
	require.NoError(t, h.Bus.Fire(ctx, events.CleanupEvent{Report: report}))
}

func TestReporterSummary(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	h := activate(t, &out, "--show-timings", "--show-paths")

	login := scenarioResult(t, scenario(t, "scenarios/auth/login.yml", "log in"), 0, 1,
		stepResult(t, "open session", 0, 1, nil))
	logout := scenarioResult(t, scenario(t, "scenarios/auth/logout.yml", "log out"), 1, 3,
		stepResult(t, "open session", 1, 1.5, nil),
		stepResult(t, "call api", 1.5, 3, errors.New("connection refused")))

	cleanup := scenario(t, "scenarios/cleanup.yml", "cleanup")
	cleanup.Skip("tracked upstream")
	skipped := model.NewScenarioResult(cleanup)
	require.NoError(t, skipped.MarkSkipped())

	report := model.NewReport()
	report.AddSummary("# rerun 1 scenario(s), 2 time(s)")
	fire(t, h, report, login, logout, skipped)

	newGolden(t).Assert(t, "summary", out.Bytes())
}

func TestReporterInterruptedRun(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	h := activate(t, &out)

	login := scenarioResult(t, scenario(t, "scenarios/auth/login.yml", "log in"), 0, 1,
		stepResult(t, "open session", 0, 1, nil))

	report := model.NewReport()
	report.SetInterrupted(model.NewExcInfo(errors.New("interrupted")))
	fire(t, h, report, login)

	newGolden(t).Assert(t, "interrupted", out.Bytes())
}

func TestReporterAggregatedAndScope(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	h := activate(t, &out, "--show-scope")

	s := scenario(t, "scenarios/flaky.yml", "flaky")
	first := scenarioResult(t, s, 0, 1, stepResult(t, "probe", 0, 1, errors.New("timeout")))
	first.SetScope(map[string]any{"token": "abc", "attempt": 1})
	second := scenarioResult(t, s, 1, 2, stepResult(t, "probe", 1, 2, errors.New("timeout")))
	second.SetScope(map[string]any{"token": "def", "attempt": 2})

	aggregated, err := model.NewAggregatedResult(second, []*model.ScenarioResult{first, second})
	require.NoError(t, err)

	fire(t, h, model.NewReport(), aggregated)

	newGolden(t).Assert(t, "aggregated", out.Bytes())
}

func TestReporterLogsStepFailures(t *testing.T) {
	t.Parallel()

	var logs bytes.Buffer
	log, err := logger.New(logger.Options{Level: "debug", Writer: &logs})
	require.NoError(t, err)

	var out bytes.Buffer
	h := plugintest.Activate(t, []*plugin.Config{New(&out)}, plugintest.WithLogger(log))
	require.NoError(t, h.ParseArgs(context.Background(), "--no-color"))

	report, err := h.Run(context.Background(),
		plugintest.Scenario(t, "broken", plugintest.Failing("explode", errors.New("boom"))),
	)
	require.NoError(t, err)
	require.Equal(t, 1, report.Failed())

	require.Contains(t, logs.String(), `"message":"step failed"`)
	require.Contains(t, logs.String(), `"step":"explode"`)
	require.Contains(t, logs.String(), `"component":"reporter"`)
	require.Contains(t, logs.String(), `"message":"run finished"`)
	require.Contains(t, out.String(), " ✗ broken")
	require.Contains(t, out.String(), "|> boom")
}
