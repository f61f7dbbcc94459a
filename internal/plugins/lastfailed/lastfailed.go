package lastfailedplugin

import (
	"context"
	"fmt"
	"sort"

	"github.com/alexisbeaulieu97/scenery/internal/events"
	"github.com/alexisbeaulieu97/scenery/internal/logger"
	"github.com/alexisbeaulieu97/scenery/internal/plugin"
	"github.com/alexisbeaulieu97/scenery/internal/storage"
)

// Name identifies the plugin in configuration.
const Name = "lastfailed"

// StorageKey is where the failed unique ids of the previous run are kept.
const StorageKey = "last_failed"

type lastFailedPlugin struct {
	storage *storage.Handle
	logger  *logger.Logger

	enabled bool
	failed  map[string]struct{}
	// reported holds every id that got a final result in this run.
	reported map[string]struct{}
	// previous is the stored list loaded at startup, nil when none existed.
	previous []string
}

var _ plugin.Plugin = (*lastFailedPlugin)(nil)

// New describes the lastfailed plugin.
func New() *plugin.Config {
	return &plugin.Config{
		Name:        Name,
		Description: "Runs only the scenarios that failed last time with --last-failed.",
		Enabled:     true,
		Factory: func(_ *plugin.Config, env plugin.Env) (plugin.Plugin, error) {
			return &lastFailedPlugin{
				storage: env.Storage,
				logger:  env.Logger,
				failed:   make(map[string]struct{}),
				reported: make(map[string]struct{}),
			}, nil
		},
	}
}

func (p *lastFailedPlugin) Subscribe(bus *events.Bus) {
	events.Listen(bus, func(_ context.Context, e events.ArgParseEvent) error {
		if e.Flags != nil {
			e.Flags.Bool("last-failed", false, "run only the scenarios that failed in the previous run")
		}
		return nil
	})
	events.Listen(bus, func(_ context.Context, e events.ArgParsedEvent) error {
		if e.Flags == nil {
			return nil
		}
		enabled, err := e.Flags.GetBool("last-failed")
		if err == nil {
			p.enabled = enabled
		}
		return nil
	})
	events.Listen(bus, p.onStartup)
	events.Listen(bus, func(_ context.Context, e events.ScenarioReportedEvent) error {
		id := e.Result.Scenario().UniqueID()
		p.reported[id] = struct{}{}
		if e.Result.IsFailed() {
			p.failed[id] = struct{}{}
		}
		return nil
	})
	events.Listen(bus, p.onCleanup)
}

// onStartup loads the stored list and, with --last-failed, narrows the
// scheduler to it. Without a stored list everything runs.
func (p *lastFailedPlugin) onStartup(ctx context.Context, e events.StartupEvent) error {
	var ids []string
	found, err := p.storage.Get(ctx, StorageKey, &ids)
	if err != nil {
		return fmt.Errorf("load %s: %w", StorageKey, err)
	}
	if found {
		p.previous = append([]string{}, ids...)
	}

	if !p.enabled || e.Scheduler == nil {
		return nil
	}
	if !found {
		p.logger.Warn("no previous run recorded; running every scenario")
		return nil
	}

	keep := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		keep[id] = struct{}{}
	}

	ignored := 0
	for _, scenario := range e.Scheduler.Scheduled() {
		if _, ok := keep[scenario.UniqueID()]; ok {
			continue
		}
		if err := e.Scheduler.Ignore(scenario); err != nil {
			return err
		}
		ignored++
	}
	p.logger.WithFields(map[string]any{
		"ignored":  ignored,
		"selected": len(e.Scheduler.Scheduled()),
	}).Info("selected scenarios that failed last time")
	return nil
}

// onCleanup stores the failed ids. An interrupted run keeps the stored
// failures of every scenario it did not get to.
func (p *lastFailedPlugin) onCleanup(ctx context.Context, e events.CleanupEvent) error {
	failed := make(map[string]struct{}, len(p.failed))
	for id := range p.failed {
		failed[id] = struct{}{}
	}

	if e.Report != nil && e.Report.Interrupted() != nil {
		if p.previous == nil && len(failed) == 0 {
			p.logger.Debug("run interrupted before any failure; keeping stored state")
			return nil
		}
		for _, id := range p.previous {
			if _, ok := p.reported[id]; !ok {
				failed[id] = struct{}{}
			}
		}
	}

	ids := make([]string, 0, len(failed))
	for id := range failed {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	if err := p.storage.Put(context.WithoutCancel(ctx), StorageKey, ids); err != nil {
		return fmt.Errorf("save %s: %w", StorageKey, err)
	}
	return nil
}
