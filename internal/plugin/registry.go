package plugin

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/alexisbeaulieu97/scenery/internal/config"
	"github.com/alexisbeaulieu97/scenery/internal/events"
	"github.com/alexisbeaulieu97/scenery/internal/logger"
	"github.com/alexisbeaulieu97/scenery/internal/storage"
	sceneryerrors "github.com/alexisbeaulieu97/scenery/pkg/errors"
)

// Option customises a Registry.
type Option func(*Registry)

// WithLogger sets the logger handed to plugins and used for registry output.
func WithLogger(log *logger.Logger) Option {
	return func(r *Registry) {
		r.logger = log
	}
}

// WithStore sets the backend behind every plugin's storage handle.
func WithStore(store storage.Store) Option {
	return func(r *Registry) {
		if store != nil {
			r.store = store
		}
	}
}

// WithStrict rejects unknown plugin sections and unknown option attributes.
func WithStrict(strict bool) Option {
	return func(r *Registry) {
		r.strict = strict
	}
}

// Registry validates plugin descriptors, orders them and activates the
// enabled ones on a bus.
type Registry struct {
	mu      sync.RWMutex
	configs []*Config
	index   map[string]*Config
	active  map[string]Plugin
	strict  bool
	store   storage.Store
	logger  *logger.Logger
}

// NewRegistry returns an empty registry. Without WithStore plugins share an
// in-memory store.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		index:  make(map[string]*Config),
		active: make(map[string]Plugin),
		store:  storage.NewMemoryStore(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Add declares descriptors. Declaration order breaks ordering ties.
func (r *Registry) Add(cfgs ...*Config) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, cfg := range cfgs {
		if cfg == nil {
			return sceneryerrors.NewConfigError("plugins", fmt.Errorf("plugin descriptor is nil"))
		}
		if !config.IsPluginName(cfg.Name) {
			return sceneryerrors.NewConfigError(cfg.Name, ErrInvalidPlugin{Plugin: cfg.Name, Reason: "name must match [a-z][a-z0-9_-]*"})
		}
		if _, exists := r.index[cfg.Name]; exists {
			return sceneryerrors.NewConfigError(cfg.Name, ErrDuplicatePlugin{Name: cfg.Name})
		}
		r.configs = append(r.configs, cfg)
		r.index[cfg.Name] = cfg
	}
	return nil
}

// Configs returns every declared descriptor in declaration order.
func (r *Registry) Configs() []*Config {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*Config(nil), r.configs...)
}

// Get returns the descriptor called name.
func (r *Registry) Get(name string) (*Config, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cfg, ok := r.index[name]
	return cfg, ok
}

// Plugin returns the activated behaviour for name.
func (r *Registry) Plugin(name string) (Plugin, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.active[name]
	return p, ok
}

// Configure applies configuration sections to the declared descriptors.
// Sections naming unknown plugins are an error in strict mode and ignored
// with a warning otherwise.
func (r *Registry) Configure(sections map[string]config.PluginSection) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(sections))
	for name := range sections {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		section := sections[name]
		cfg, ok := r.index[name]
		if !ok {
			if r.strict {
				return sceneryerrors.NewConfigError(name, ErrPluginNotFound{Name: name})
			}
			r.logger.WithFields(map[string]any{"plugin": name}).Warn("ignoring configuration for unknown plugin")
			continue
		}

		if section.Enabled != nil {
			cfg.Enabled = *section.Enabled
		}
		if section.DependsOn != nil {
			cfg.DependsOn = append([]string(nil), section.DependsOn...)
		}
		if section.HasOptions() {
			if cfg.Options == nil {
				return sceneryerrors.NewConfigError(name, ErrInvalidOptions{Plugin: name, Err: fmt.Errorf("plugin takes no options")})
			}
			if err := config.DecodeOptions(section.Options, cfg.Options, r.strict); err != nil {
				return sceneryerrors.NewConfigError(name, ErrInvalidOptions{Plugin: name, Err: err})
			}
		}
		if cfg.Options != nil {
			if err := config.ValidateStruct(cfg.Options); err != nil {
				return sceneryerrors.NewConfigError(name, ErrInvalidOptions{Plugin: name, Err: err})
			}
		}
	}
	return nil
}

// Validate checks every descriptor before anything is activated.
func (r *Registry) Validate() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, err := r.validateLocked()
	return err
}

func (r *Registry) validateLocked() (*DependencyGraph, error) {
	graph := NewDependencyGraph()
	for _, cfg := range r.configs {
		graph.AddNode(cfg.Name)
	}

	for _, cfg := range r.configs {
		if cfg.Factory == nil {
			return nil, sceneryerrors.NewConfigError(cfg.Name, ErrInvalidPlugin{Plugin: cfg.Name, Reason: "no factory"})
		}
		for _, dep := range cfg.DependsOn {
			if dep == cfg.Name {
				return nil, sceneryerrors.NewConfigError(cfg.Name, ErrCircularDependency{Cycle: []string{cfg.Name}})
			}
			target, ok := r.index[dep]
			if !ok {
				return nil, sceneryerrors.NewConfigError(cfg.Name, ErrMissingDependency{Plugin: cfg.Name, Dependency: dep})
			}
			if cfg.Enabled && !target.Enabled {
				return nil, sceneryerrors.NewConfigError(cfg.Name, ErrDisabledDependency{Plugin: cfg.Name, Dependency: dep})
			}
			graph.AddEdge(cfg.Name, dep)
		}
	}

	if cycle := graph.DetectCycles(); len(cycle) > 0 {
		return nil, sceneryerrors.NewConfigError(strings.Join(cycle, ","), ErrCircularDependency{Cycle: cycle})
	}
	return graph, nil
}

// Ordered validates and returns the enabled descriptors with dependencies
// first and declaration order breaking ties.
func (r *Registry) Ordered() ([]*Config, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.orderedLocked()
}

func (r *Registry) orderedLocked() ([]*Config, error) {
	graph, err := r.validateLocked()
	if err != nil {
		return nil, err
	}
	names, err := graph.TopologicalSort()
	if err != nil {
		return nil, sceneryerrors.NewConfigError("plugins", err)
	}

	ordered := make([]*Config, 0, len(names))
	for _, name := range names {
		if cfg := r.index[name]; cfg.Enabled {
			ordered = append(ordered, cfg)
		}
	}
	return ordered, nil
}

// Activate validates the descriptors, instantiates every enabled plugin in
// order and registers it on bus. Nothing is registered when any descriptor
// is invalid.
func (r *Registry) Activate(bus *events.Bus) ([]Plugin, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ordered, err := r.orderedLocked()
	if err != nil {
		return nil, err
	}

	plugins := make([]Plugin, 0, len(ordered))
	for _, cfg := range ordered {
		env := Env{
			Logger:  r.logger.WithComponent(cfg.Name),
			Storage: storage.NewHandle(r.store, cfg.Name),
		}
		p, err := cfg.Factory(cfg, env)
		if err != nil {
			return nil, sceneryerrors.NewConfigError(cfg.Name, err)
		}
		if p == nil {
			return nil, sceneryerrors.NewConfigError(cfg.Name, ErrInvalidPlugin{Plugin: cfg.Name, Reason: "factory returned nil"})
		}
		if _, abstract := p.(*Base); abstract {
			return nil, sceneryerrors.NewConfigError(cfg.Name, ErrInvalidPlugin{Plugin: cfg.Name, Reason: "factory returned the abstract base plugin"})
		}
		plugins = append(plugins, p)
	}

	for i, p := range plugins {
		bus.RegisterAs(ordered[i].Name, p)
		r.active[ordered[i].Name] = p
		r.logger.WithFields(map[string]any{"plugin": ordered[i].Name}).Debug("plugin activated")
	}
	return plugins, nil
}
