package config

import (
	"gopkg.in/yaml.v3"
)

// DefaultFileName is looked up in the working directory when no path is given.
const DefaultFileName = "scenery.yaml"

const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// Config represents the full scenery configuration document.
type Config struct {
	ProjectDir    string                   `yaml:"project_dir,omitempty"`
	Scenarios     []string                 `yaml:"scenarios,omitempty" validate:"omitempty,dive,required"`
	Log           LogSettings              `yaml:"log,omitempty"`
	StrictPlugins bool                     `yaml:"strict_plugins,omitempty"`
	Storage       StorageSettings          `yaml:"storage,omitempty"`
	Plugins       map[string]PluginSection `yaml:"plugins,omitempty" validate:"omitempty,dive,keys,plugin_name,endkeys"`
}

// LogSettings controls the process logger.
type LogSettings struct {
	Level         string `yaml:"level,omitempty" validate:"omitempty,oneof=trace debug info warn error"`
	HumanReadable *bool  `yaml:"human_readable,omitempty"`
}

// StorageSettings selects the key/value backend handed to plugins.
type StorageSettings struct {
	Backend string `yaml:"backend,omitempty" validate:"omitempty,storage_backend"`
	Path    string `yaml:"path,omitempty"`
}

// PluginSection overrides a built-in plugin descriptor. Options stay as a raw
// node until the plugin's own options type decodes them.
type PluginSection struct {
	Enabled   *bool     `yaml:"enabled,omitempty"`
	DependsOn []string  `yaml:"depends_on,omitempty" validate:"omitempty,dive,plugin_name"`
	Options   yaml.Node `yaml:"options,omitempty" validate:"-"`
}

// HasOptions reports whether the section carried an options mapping.
func (p PluginSection) HasOptions() bool {
	return p.Options.Kind != 0
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.ProjectDir == "" {
		c.ProjectDir = "."
	}
	if len(c.Scenarios) == 0 {
		c.Scenarios = []string{"scenarios"}
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = BackendFile
	}
	if c.Storage.Path == "" {
		switch c.Storage.Backend {
		case BackendSQLite:
			c.Storage.Path = ".scenery/state.db"
		case BackendFile:
			c.Storage.Path = ".scenery"
		}
	}
	if c.Plugins == nil {
		c.Plugins = map[string]PluginSection{}
	}
}
