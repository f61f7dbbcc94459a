package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/pflag"

	"github.com/alexisbeaulieu97/scenery/internal/config"
	"github.com/alexisbeaulieu97/scenery/internal/events"
	"github.com/alexisbeaulieu97/scenery/internal/logger"
	"github.com/alexisbeaulieu97/scenery/internal/model"
	"github.com/alexisbeaulieu97/scenery/internal/plugin"
	deferrerplugin "github.com/alexisbeaulieu97/scenery/internal/plugins/deferrer"
	"github.com/alexisbeaulieu97/scenery/internal/runner"
	"github.com/alexisbeaulieu97/scenery/internal/scheduler"
	"github.com/alexisbeaulieu97/scenery/internal/source"
	"github.com/alexisbeaulieu97/scenery/internal/storage"
	sceneryerrors "github.com/alexisbeaulieu97/scenery/pkg/errors"
)

// Option customises a Service.
type Option func(*Service)

// WithLogger sets the logger used by the lifecycle and handed to plugins.
func WithLogger(log *logger.Logger) Option {
	return func(s *Service) {
		s.logger = log
	}
}

// WithOutput sets where the reporter and command output are written.
func WithOutput(out io.Writer) Option {
	return func(s *Service) {
		if out != nil {
			s.out = out
		}
	}
}

// WithPlugins declares extra plugins after the built-in ones.
func WithPlugins(cfgs ...*plugin.Config) Option {
	return func(s *Service) {
		s.extra = append(s.extra, cfgs...)
	}
}

// WithCommandOutput streams scenario command output to w.
func WithCommandOutput(w io.Writer) Option {
	return func(s *Service) {
		s.commandOutput = w
	}
}

// Service drives one scenery run from configuration to cleanup.
type Service struct {
	logger        *logger.Logger
	out           io.Writer
	commandOutput io.Writer
	extra         []*plugin.Config
}

// NewService constructs a lifecycle service.
func NewService(opts ...Option) *Service {
	s := &Service{out: os.Stdout}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Prepared is a loaded configuration with its configured plugin registry.
type Prepared struct {
	Path     string
	Config   *config.Config
	Registry *plugin.Registry
	Store    storage.Store
	Queue    *deferrerplugin.Queue
}

// Close releases the storage backend.
func (p *Prepared) Close() error {
	if p == nil || p.Store == nil {
		return nil
	}
	return p.Store.Close()
}

// LoadConfig reads path. An empty path falls back to scenery.yaml in the
// working directory, and to the defaults when that file does not exist.
func LoadConfig(path string) (*config.Config, string, error) {
	if path != "" {
		cfg, err := config.ParseConfig(path)
		return cfg, path, err
	}
	if _, err := os.Stat(config.DefaultFileName); err == nil {
		cfg, err := config.ParseConfig(config.DefaultFileName)
		return cfg, config.DefaultFileName, err
	}
	return config.Default(), "", nil
}

// Prepare loads the configuration, opens plugin storage and configures the
// plugin registry. Nothing is activated yet.
func (s *Service) Prepare(configPath string) (*Prepared, error) {
	cfg, path, err := LoadConfig(configPath)
	if err != nil {
		return nil, sceneryerrors.NewConfigError(displayPath(configPath), err)
	}

	settings := cfg.Storage
	if settings.Path != "" && !filepath.IsAbs(settings.Path) {
		settings.Path = filepath.Join(cfg.ProjectDir, settings.Path)
	}
	store, err := storage.Open(settings)
	if err != nil {
		return nil, sceneryerrors.NewConfigError("storage", err)
	}

	queue := deferrerplugin.NewQueue()
	registry := plugin.NewRegistry(
		plugin.WithLogger(s.logger),
		plugin.WithStore(store),
		plugin.WithStrict(cfg.StrictPlugins),
	)
	prepared := &Prepared{Path: path, Config: cfg, Registry: registry, Store: store, Queue: queue}

	if err := registry.Add(Builtins(s.out, queue, s.extra...)...); err != nil {
		_ = prepared.Close()
		return nil, err
	}
	if err := registry.Configure(cfg.Plugins); err != nil {
		_ = prepared.Close()
		return nil, err
	}
	if err := registry.Validate(); err != nil {
		_ = prepared.Close()
		return nil, err
	}

	s.logger.WithFields(map[string]any{
		"config":      displayPath(path),
		"project_dir": cfg.ProjectDir,
		"backend":     cfg.Storage.Backend,
	}).Debug("configuration prepared")
	return prepared, nil
}

// RunRequest configures one run.
type RunRequest struct {
	Prepared *Prepared
	Args     []string
	// Source overrides the YAML scenario source.
	Source source.Source
}

// RunOutcome captures what a run produced. Report is nil when the run failed
// before startup.
type RunOutcome struct {
	Report  *model.Report
	Plugins []plugin.Plugin
}

// Run activates the plugins and walks the lifecycle: config loaded, argument
// parsing, discovery, startup, the run itself and cleanup. Cleanup fires once
// startup has fired, even when the run was interrupted.
func (s *Service) Run(ctx context.Context, req RunRequest) (*RunOutcome, error) {
	prepared := req.Prepared
	if prepared == nil {
		return nil, fmt.Errorf("run request has no prepared configuration")
	}
	log := s.logger.WithContext(ctx)

	bus := events.NewBus(s.logger)
	plugins, err := prepared.Registry.Activate(bus)
	if err != nil {
		return nil, err
	}
	outcome := &RunOutcome{Plugins: plugins}

	if err := bus.Fire(ctx, events.ConfigLoadedEvent{Path: prepared.Path, Config: prepared.Config}); err != nil {
		return outcome, err
	}
	if err := s.parseArgs(ctx, bus, req.Args); err != nil {
		return outcome, err
	}

	src := req.Source
	if src == nil {
		opts := []source.Option{source.WithDeferrer(prepared.Queue), source.WithLogger(s.logger.WithComponent("source"))}
		if s.commandOutput != nil {
			opts = append(opts, source.WithOutput(s.commandOutput))
		}
		src = source.NewYAMLSource(prepared.Config.ProjectDir, prepared.Config.Scenarios, opts...)
	}
	scenarios, err := src.Discover(ctx)
	if err != nil {
		return outcome, err
	}
	sched, err := scheduler.NewMonotonic(scenarios)
	if err != nil {
		return outcome, sceneryerrors.NewConfigError("scenarios", err)
	}
	log.WithFields(map[string]any{"scenarios": len(scenarios)}).Debug("scenarios discovered")

	if err := bus.Fire(ctx, events.StartupEvent{Scheduler: sched}); err != nil {
		return outcome, s.cleanup(ctx, bus, outcome, model.NewReport(), err)
	}

	report, runErr := runner.New(bus, runner.WithLogger(s.logger)).Run(ctx, sched)
	return outcome, s.cleanup(ctx, bus, outcome, report, runErr)
}

func (s *Service) cleanup(ctx context.Context, bus *events.Bus, outcome *RunOutcome, report *model.Report, runErr error) error {
	outcome.Report = report
	if err := bus.Fire(context.WithoutCancel(ctx), events.CleanupEvent{Report: report}); err != nil {
		return errors.Join(runErr, err)
	}
	return runErr
}

func (s *Service) parseArgs(ctx context.Context, bus *events.Bus, args []string) error {
	flags := pflag.NewFlagSet("run", pflag.ContinueOnError)
	flags.SetOutput(s.out)
	flags.SortFlags = false
	if err := bus.Fire(ctx, events.ArgParseEvent{Flags: flags}); err != nil {
		return err
	}
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return err
		}
		return sceneryerrors.NewConfigError("arguments", err)
	}
	return bus.Fire(ctx, events.ArgParsedEvent{Flags: flags})
}

func displayPath(path string) string {
	if path == "" {
		return "<defaults>"
	}
	return path
}
