package interrupterplugin

import (
	"context"
	"fmt"

	"github.com/alexisbeaulieu97/scenery/internal/events"
	"github.com/alexisbeaulieu97/scenery/internal/logger"
	"github.com/alexisbeaulieu97/scenery/internal/plugin"
	"github.com/alexisbeaulieu97/scenery/internal/runner"
)

// Name identifies the plugin in configuration.
const Name = "interrupter"

// Options are the configurable defaults; --fail-fast overrides FailFast.
type Options struct {
	FailFast bool `yaml:"fail_fast"`
}

type interrupterPlugin struct {
	opts   Options
	logger *logger.Logger
	failed string
}

var _ plugin.Plugin = (*interrupterPlugin)(nil)

// New describes the interrupter plugin.
func New() *plugin.Config {
	return &plugin.Config{
		Name:        Name,
		Description: "Stops the run after the first failed scenario with --fail-fast.",
		Enabled:     true,
		Options:     &Options{},
		Factory: func(cfg *plugin.Config, env plugin.Env) (plugin.Plugin, error) {
			opts, ok := cfg.Options.(*Options)
			if !ok {
				return nil, fmt.Errorf("unexpected options type %T", cfg.Options)
			}
			return &interrupterPlugin{opts: *opts, logger: env.Logger}, nil
		},
	}
}

func (p *interrupterPlugin) Subscribe(bus *events.Bus) {
	events.Listen(bus, func(_ context.Context, e events.ArgParseEvent) error {
		if e.Flags != nil {
			e.Flags.BoolP("fail-fast", "f", p.opts.FailFast, "stop after the first failed scenario")
		}
		return nil
	})
	events.Listen(bus, func(_ context.Context, e events.ArgParsedEvent) error {
		if e.Flags == nil {
			return nil
		}
		if failFast, err := e.Flags.GetBool("fail-fast"); err == nil {
			p.opts.FailFast = failFast
		}
		return nil
	})
	events.Listen(bus, func(_ context.Context, e events.ScenarioReportedEvent) error {
		if p.opts.FailFast && p.failed == "" && e.Result.IsFailed() {
			p.failed = e.Result.Scenario().RelPath()
		}
		return nil
	})
	events.Listen(bus, func(_ context.Context, e events.ScenarioRunEvent) error {
		if p.failed == "" {
			return nil
		}
		p.logger.WithFields(map[string]any{"failed": p.failed}).Info("fail fast: stopping run")
		return fmt.Errorf("%w: %s failed", runner.ErrInterrupted, p.failed)
	})
}
