package deferrerplugin

import (
	"context"

	"github.com/alexisbeaulieu97/scenery/internal/events"
	"github.com/alexisbeaulieu97/scenery/internal/logger"
	"github.com/alexisbeaulieu97/scenery/internal/plugin"
)

// Name identifies the plugin in configuration.
const Name = "deferrer"

type deferrerPlugin struct {
	queue  *Queue
	logger *logger.Logger
}

var _ plugin.Plugin = (*deferrerPlugin)(nil)

// New describes the deferrer plugin. Scenario steps push cleanup work onto
// queue; the plugin drains it when each scenario ends and once more at
// cleanup for scenarios that never finished.
func New(queue *Queue) *plugin.Config {
	return &plugin.Config{
		Name:        Name,
		Description: "Runs deferred cleanup work after each scenario.",
		Enabled:     true,
		Factory: func(_ *plugin.Config, env plugin.Env) (plugin.Plugin, error) {
			return &deferrerPlugin{queue: queue, logger: env.Logger}, nil
		},
	}
}

func (p *deferrerPlugin) Subscribe(bus *events.Bus) {
	events.Listen(bus, func(context.Context, events.ScenarioRunEvent) error {
		p.queue.Reset()
		return nil
	})
	events.Listen(bus, func(ctx context.Context, e events.ScenarioPassedEvent) error {
		p.drain(ctx, e.Result.Scenario().RelPath())
		return nil
	})
	events.Listen(bus, func(ctx context.Context, e events.ScenarioFailedEvent) error {
		p.drain(ctx, e.Result.Scenario().RelPath())
		return nil
	})
	events.Listen(bus, func(ctx context.Context, _ events.CleanupEvent) error {
		p.drain(ctx, "")
		return nil
	})
}

// drain logs cleanup failures instead of returning them so that one broken
// teardown does not abort the remaining scenarios.
func (p *deferrerPlugin) drain(ctx context.Context, scenario string) {
	pending := p.queue.Len()
	if pending == 0 {
		return
	}
	log := p.logger.WithFields(map[string]any{"deferred": pending})
	if scenario != "" {
		log = log.WithFields(map[string]any{"scenario": scenario})
	}
	if err := p.queue.Drain(context.WithoutCancel(ctx)); err != nil {
		log.Error(err, "deferred cleanup failed")
		return
	}
	log.Debug("deferred cleanup done")
}
