package plugin

import (
	"github.com/alexisbeaulieu97/scenery/internal/events"
	"github.com/alexisbeaulieu97/scenery/internal/logger"
	"github.com/alexisbeaulieu97/scenery/internal/storage"
)

// Plugin is the behaviour half of a plugin: it attaches handlers to the bus.
// Instances are created once per run and own only their subscriptions and
// private state.
type Plugin interface {
	events.Subscriber
}

// Base is the abstract plugin. Concrete plugins may embed it for a no-op
// Subscribe, but a factory must never hand back a bare *Base.
type Base struct{}

// Subscribe attaches nothing.
func (*Base) Subscribe(*events.Bus) {}

// Env is what a factory receives besides its descriptor.
type Env struct {
	Logger  *logger.Logger
	Storage *storage.Handle
}

// Factory builds the behaviour for a descriptor.
type Factory func(cfg *Config, env Env) (Plugin, error)

// Config is the static descriptor of a plugin. Options, when set, must be a
// pointer to a struct pre-filled with defaults; configuration overrides are
// decoded into it and its validate tags are enforced.
type Config struct {
	Name        string
	Description string
	Enabled     bool
	DependsOn   []string
	Factory     Factory
	Options     any
}
