package rerunnerplugin

import (
	"context"
	"fmt"
	"time"

	"github.com/alexisbeaulieu97/scenery/internal/events"
	"github.com/alexisbeaulieu97/scenery/internal/logger"
	"github.com/alexisbeaulieu97/scenery/internal/model"
	"github.com/alexisbeaulieu97/scenery/internal/plugin"
	"github.com/alexisbeaulieu97/scenery/internal/scheduler"
	sceneryerrors "github.com/alexisbeaulieu97/scenery/pkg/errors"
)

// Name identifies the plugin in configuration.
const Name = "rerunner"

// Options are the configurable defaults; --reruns and --reruns-delay
// override them.
type Options struct {
	Reruns      int           `yaml:"reruns" validate:"min=0"`
	RerunsDelay time.Duration `yaml:"reruns_delay" validate:"min=0"`
}

type rerunnerPlugin struct {
	opts   Options
	logger *logger.Logger
	sleep  func(ctx context.Context, d time.Duration) error

	scheduler scheduler.Scheduler
	counts    map[string]int
	reruns    int
}

var _ plugin.Plugin = (*rerunnerPlugin)(nil)

// New describes the rerunner plugin.
func New() *plugin.Config {
	return &plugin.Config{
		Name:        Name,
		Description: "Reruns failed scenarios --reruns times and resolves the outcome by majority.",
		Enabled:     true,
		Options:     &Options{},
		Factory: func(cfg *plugin.Config, env plugin.Env) (plugin.Plugin, error) {
			opts, ok := cfg.Options.(*Options)
			if !ok {
				return nil, fmt.Errorf("unexpected options type %T", cfg.Options)
			}
			return &rerunnerPlugin{
				opts:   *opts,
				logger: env.Logger,
				sleep:  sleepContext,
				counts: make(map[string]int),
			}, nil
		},
	}
}

func (p *rerunnerPlugin) Subscribe(bus *events.Bus) {
	events.Listen(bus, p.onArgParse)
	events.Listen(bus, p.onArgParsed)
	events.Listen(bus, func(_ context.Context, e events.StartupEvent) error {
		p.scheduler = e.Scheduler
		return nil
	})
	events.Listen(bus, func(ctx context.Context, e events.ScenarioPassedEvent) error {
		return p.onScenarioEnd(ctx, e.Result)
	})
	events.Listen(bus, func(ctx context.Context, e events.ScenarioFailedEvent) error {
		return p.onScenarioEnd(ctx, e.Result)
	})
	events.Listen(bus, p.onCleanup)
}

func (p *rerunnerPlugin) onArgParse(_ context.Context, e events.ArgParseEvent) error {
	if e.Flags == nil {
		return nil
	}
	e.Flags.Int("reruns", p.opts.Reruns, "number of times to rerun a failed scenario")
	e.Flags.Duration("reruns-delay", p.opts.RerunsDelay, "delay before each rerun")
	return nil
}

func (p *rerunnerPlugin) onArgParsed(_ context.Context, e events.ArgParsedEvent) error {
	if e.Flags == nil {
		return nil
	}
	if reruns, err := e.Flags.GetInt("reruns"); err == nil {
		p.opts.Reruns = reruns
	}
	if delay, err := e.Flags.GetDuration("reruns-delay"); err == nil {
		p.opts.RerunsDelay = delay
	}

	if p.opts.Reruns < 0 {
		return sceneryerrors.NewConfigError("--reruns", fmt.Errorf("must be >= 0, got %d", p.opts.Reruns))
	}
	if p.opts.RerunsDelay < 0 {
		return sceneryerrors.NewConfigError("--reruns-delay", fmt.Errorf("must be >= 0, got %s", p.opts.RerunsDelay))
	}
	if p.opts.RerunsDelay > 0 && p.opts.Reruns == 0 {
		return sceneryerrors.NewConfigError("--reruns-delay", fmt.Errorf("requires --reruns"))
	}
	return nil
}

// onScenarioEnd starts rerunning a scenario on its first failure and then
// keeps rescheduling it until every rerun is spent, whatever the outcome of
// each rerun, so the scheduler resolves over 1+reruns executions.
func (p *rerunnerPlugin) onScenarioEnd(ctx context.Context, result *model.ScenarioResult) error {
	if p.opts.Reruns == 0 || p.scheduler == nil {
		return nil
	}

	scenario := result.Scenario()
	id := scenario.UniqueID()
	done := p.counts[id]
	if done == 0 && !result.IsFailed() {
		return nil
	}
	if done >= p.opts.Reruns {
		return nil
	}

	if p.opts.RerunsDelay > 0 {
		if err := p.sleep(ctx, p.opts.RerunsDelay); err != nil {
			return err
		}
	}
	if err := p.scheduler.Schedule(scenario); err != nil {
		return err
	}
	p.counts[id]++
	p.reruns++

	p.logger.WithFields(map[string]any{
		"scenario": scenario.RelPath(),
		"attempt":  p.counts[id],
	}).Info("rescheduled failed scenario")
	return nil
}

func (p *rerunnerPlugin) onCleanup(_ context.Context, e events.CleanupEvent) error {
	if p.reruns == 0 || e.Report == nil {
		return nil
	}
	e.Report.AddSummary(fmt.Sprintf("# rerun %d scenario(s), %d time(s)", len(p.counts), p.reruns))
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return context.Cause(ctx)
	case <-timer.C:
		return nil
	}
}
