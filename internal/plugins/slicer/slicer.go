package slicerplugin

import (
	"context"
	"fmt"

	"github.com/alexisbeaulieu97/scenery/internal/events"
	"github.com/alexisbeaulieu97/scenery/internal/logger"
	"github.com/alexisbeaulieu97/scenery/internal/plugin"
	sceneryerrors "github.com/alexisbeaulieu97/scenery/pkg/errors"
)

// Name identifies the plugin in configuration.
const Name = "slicer"

// SkipReason is recorded on scenarios outside the current slice.
const SkipReason = "outside of the current slice"

type slicerPlugin struct {
	logger *logger.Logger
	total  int
	index  int
}

var _ plugin.Plugin = (*slicerPlugin)(nil)

// New describes the slicer plugin.
func New() *plugin.Config {
	return &plugin.Config{
		Name:        Name,
		Description: "Splits the scenarios across parallel runs with --slicer-total and --slicer-index.",
		Enabled:     true,
		Factory: func(_ *plugin.Config, env plugin.Env) (plugin.Plugin, error) {
			return &slicerPlugin{logger: env.Logger}, nil
		},
	}
}

func (p *slicerPlugin) Subscribe(bus *events.Bus) {
	events.Listen(bus, func(_ context.Context, e events.ArgParseEvent) error {
		if e.Flags != nil {
			e.Flags.Int("slicer-total", 0, "number of slices the scenarios are split into")
			e.Flags.Int("slicer-index", 0, "zero-based slice to run")
		}
		return nil
	})
	events.Listen(bus, p.onArgParsed)
	events.Listen(bus, p.onStartup)
}

func (p *slicerPlugin) onArgParsed(_ context.Context, e events.ArgParsedEvent) error {
	if e.Flags == nil {
		return nil
	}
	total, _ := e.Flags.GetInt("slicer-total")
	index, _ := e.Flags.GetInt("slicer-index")
	indexSet := e.Flags.Changed("slicer-index")

	switch {
	case total == 0 && !indexSet:
		return nil
	case total <= 0:
		return sceneryerrors.NewConfigError("--slicer-total", fmt.Errorf("must be > 0 when --slicer-index is set, got %d", total))
	case index < 0 || index >= total:
		return sceneryerrors.NewConfigError("--slicer-index", fmt.Errorf("must be in [0, %d), got %d", total, index))
	}
	p.total = total
	p.index = index
	return nil
}

// onStartup skips every scenario outside the slice. Scenarios that are
// already skipped do not count towards the split.
func (p *slicerPlugin) onStartup(_ context.Context, e events.StartupEvent) error {
	if p.total == 0 || e.Scheduler == nil {
		return nil
	}

	position := 0
	sliced := 0
	for _, scenario := range e.Scheduler.Scheduled() {
		if scenario.IsSkipped() {
			continue
		}
		if position%p.total != p.index {
			scenario.Skip(SkipReason)
			sliced++
		}
		position++
	}
	p.logger.WithFields(map[string]any{
		"slice":   fmt.Sprintf("%d/%d", p.index, p.total),
		"skipped": sliced,
	}).Debug("applied slice")
	return nil
}
