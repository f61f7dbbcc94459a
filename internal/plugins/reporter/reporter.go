package reporterplugin

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/alexisbeaulieu97/scenery/internal/events"
	"github.com/alexisbeaulieu97/scenery/internal/logger"
	"github.com/alexisbeaulieu97/scenery/internal/plugin"
)

// Name identifies the plugin in configuration.
const Name = "reporter"

// Options are the configurable defaults; the matching flags override them.
type Options struct {
	ShowTimings bool `yaml:"show_timings"`
	ShowPaths   bool `yaml:"show_paths"`
	ShowScope   bool `yaml:"show_scope"`
	NoColor     bool `yaml:"no_color"`
}

type reporterPlugin struct {
	out     io.Writer
	opts    Options
	logger  *logger.Logger
	printer *printer
}

var _ plugin.Plugin = (*reporterPlugin)(nil)

// New describes the reporter plugin writing to out, or stdout when out is
// nil.
func New(out io.Writer) *plugin.Config {
	if out == nil {
		out = os.Stdout
	}
	return &plugin.Config{
		Name:        Name,
		Description: "Prints every reported scenario and the run summary.",
		Enabled:     true,
		Options:     &Options{},
		Factory: func(cfg *plugin.Config, env plugin.Env) (plugin.Plugin, error) {
			opts, ok := cfg.Options.(*Options)
			if !ok {
				return nil, fmt.Errorf("unexpected options type %T", cfg.Options)
			}
			return &reporterPlugin{out: out, opts: *opts, logger: env.Logger}, nil
		},
	}
}

func (p *reporterPlugin) Subscribe(bus *events.Bus) {
	events.Listen(bus, p.onArgParse)
	events.Listen(bus, p.onArgParsed)
	events.Listen(bus, func(_ context.Context, e events.StartupEvent) error {
		scheduled := 0
		if e.Scheduler != nil {
			scheduled = len(e.Scheduler.Scheduled())
		}
		p.logger.WithFields(map[string]any{"scheduled": scheduled}).Debug("run starting")
		return nil
	})
	events.Listen(bus, func(_ context.Context, e events.ScenarioRunEvent) error {
		scenario := e.Result.Scenario()
		p.logger.WithFields(map[string]any{"scenario": scenario.RelPath(), "hash": scenario.UniqueHash()}).Debug("scenario run")
		return nil
	})
	events.Listen(bus, func(_ context.Context, e events.ScenarioSkippedEvent) error {
		p.logger.WithFields(map[string]any{"scenario": e.Result.Scenario().RelPath()}).Debug("scenario skipped")
		return nil
	})
	events.Listen(bus, func(_ context.Context, e events.StepFailedEvent) error {
		fields := map[string]any{"step": e.Result.Step().Name()}
		var err error
		if info := e.Result.ExcInfo(); info != nil {
			fields["type"] = info.Type
			err = info.Err
		}
		p.logger.WithFields(fields).Error(err, "step failed")
		return nil
	})
	events.Listen(bus, func(_ context.Context, e events.ScenarioReportedEvent) error {
		p.printerFor().scenario(e.Result)
		return nil
	})
	events.Listen(bus, func(_ context.Context, e events.CleanupEvent) error {
		if e.Report == nil {
			return nil
		}
		p.printerFor().summary(e.Report)
		p.logger.WithFields(map[string]any{
			"run_id":  e.Report.RunID(),
			"total":   e.Report.Total(),
			"passed":  e.Report.Passed(),
			"failed":  e.Report.Failed(),
			"skipped": e.Report.Skipped(),
		}).Info("run finished")
		return nil
	})
}

func (p *reporterPlugin) onArgParse(_ context.Context, e events.ArgParseEvent) error {
	if e.Flags == nil {
		return nil
	}
	e.Flags.Bool("show-timings", p.opts.ShowTimings, "show scenario and step durations")
	e.Flags.Bool("show-paths", p.opts.ShowPaths, "show the file of each failed scenario")
	e.Flags.Bool("show-scope", p.opts.ShowScope, "show the scope of each failed scenario")
	e.Flags.Bool("no-color", p.opts.NoColor, "disable colored output")
	return nil
}

func (p *reporterPlugin) onArgParsed(_ context.Context, e events.ArgParsedEvent) error {
	if e.Flags == nil {
		return nil
	}
	for name, target := range map[string]*bool{
		"show-timings": &p.opts.ShowTimings,
		"show-paths":   &p.opts.ShowPaths,
		"show-scope":   &p.opts.ShowScope,
		"no-color":     &p.opts.NoColor,
	} {
		if value, err := e.Flags.GetBool(name); err == nil {
			*target = value
		}
	}
	return nil
}

// printerFor builds the printer lazily so that flags parsed after activation
// are honoured.
func (p *reporterPlugin) printerFor() *printer {
	if p.printer != nil {
		return p.printer
	}
	renderer := lipgloss.NewRenderer(p.out)
	if p.opts.NoColor {
		renderer.SetColorProfile(termenv.Ascii)
	}
	p.printer = &printer{out: p.out, styles: newStyles(renderer), opts: p.opts}
	return p.printer
}
