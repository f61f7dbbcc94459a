package plugin

import (
	"fmt"
	"strings"
)

// ErrPluginNotFound is returned when configuration names a plugin that was
// never declared.
type ErrPluginNotFound struct {
	Name string
}

func (e ErrPluginNotFound) Error() string {
	return fmt.Sprintf("plugin '%s' not found in registry\nHint: check the plugin name under 'plugins' in the configuration", e.Name)
}

// ErrDuplicatePlugin is returned when two descriptors share a name.
type ErrDuplicatePlugin struct {
	Name string
}

func (e ErrDuplicatePlugin) Error() string {
	return fmt.Sprintf("plugin '%s' already registered", e.Name)
}

// ErrCircularDependency is returned when a dependency cycle is detected.
type ErrCircularDependency struct {
	Cycle []string
}

func (e ErrCircularDependency) Error() string {
	if len(e.Cycle) == 0 {
		return "circular dependency detected\nHint: review plugin dependencies to remove cycles"
	}

	sequence := append(append([]string{}, e.Cycle...), e.Cycle[0])
	return fmt.Sprintf(
		"circular dependency detected: %s\nHint: break the cycle by removing or refactoring one of the dependencies",
		strings.Join(sequence, " -> "),
	)
}

// ErrMissingDependency is returned when a declared dependency has not been registered.
type ErrMissingDependency struct {
	Plugin     string
	Dependency string
}

func (e ErrMissingDependency) Error() string {
	return fmt.Sprintf(
		"plugin '%s' declares dependency '%s' which is not registered\nHint: register the dependency or remove it from depends_on",
		e.Plugin,
		e.Dependency,
	)
}

// ErrDisabledDependency is returned when an enabled plugin depends on a
// disabled one.
type ErrDisabledDependency struct {
	Plugin     string
	Dependency string
}

func (e ErrDisabledDependency) Error() string {
	return fmt.Sprintf(
		"plugin '%s' is enabled but depends on disabled plugin '%s'\nHint: enable '%s' or disable '%s'",
		e.Plugin,
		e.Dependency,
		e.Dependency,
		e.Plugin,
	)
}

// ErrInvalidPlugin is returned when a descriptor has no real behaviour: no
// factory, or a factory producing nothing or the abstract Base.
type ErrInvalidPlugin struct {
	Plugin string
	Reason string
}

func (e ErrInvalidPlugin) Error() string {
	return fmt.Sprintf("plugin '%s' is not a valid plugin: %s", e.Plugin, e.Reason)
}

// ErrInvalidOptions wraps a failure to decode or validate a plugin's options.
// In strict mode this includes attributes the options type does not declare.
type ErrInvalidOptions struct {
	Plugin string
	Err    error
}

func (e ErrInvalidOptions) Error() string {
	return fmt.Sprintf(
		"plugin '%s' has invalid options: %v\nHint: check for typos in the plugin's options",
		e.Plugin,
		e.Err,
	)
}

func (e ErrInvalidOptions) Unwrap() error {
	return e.Err
}
