package errors

import (
	stdErrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseErrorWrapsUnderlying(t *testing.T) {
	t.Parallel()

	underlying := fmt.Errorf("unexpected token")
	err := NewParseError("scenery.yaml", 12, underlying)

	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
	require.Equal(t, "scenery.yaml", parseErr.Path)
	require.Equal(t, 12, parseErr.Line)
	require.True(t, stdErrors.Is(err, underlying))
	require.Contains(t, err.Error(), "scenery.yaml:12")
}

func TestValidationErrorIncludesField(t *testing.T) {
	t.Parallel()

	err := NewValidationError("storage.backend", "must be one of memory file sqlite", nil)

	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	require.Equal(t, "storage.backend", validationErr.Field)
	require.Contains(t, validationErr.Message, "must be one of")
}

func TestConfigErrorWrapsCause(t *testing.T) {
	t.Parallel()

	underlying := stdErrors.New("dependency 'tagger' is not enabled")
	err := NewConfigError("rerunner", underlying)

	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	require.Equal(t, "rerunner", cfgErr.Subject)
	require.True(t, stdErrors.Is(err, underlying))
	require.Equal(t, "configuration error [rerunner]: dependency 'tagger' is not enabled", err.Error())
}

func TestIsConfigError(t *testing.T) {
	t.Parallel()

	require.True(t, IsConfigError(fmt.Errorf("startup: %w", NewConfigError("", stdErrors.New("x")))))
	require.True(t, IsConfigError(NewParseError("a.yaml", 0, stdErrors.New("bad"))))
	require.True(t, IsConfigError(NewValidationError("log.level", "bad", nil)))
	require.False(t, IsConfigError(NewExecutionError("step", stdErrors.New("boom"))))
	require.False(t, IsConfigError(nil))
}

func TestExecutionErrorIncludesStepContext(t *testing.T) {
	t.Parallel()

	underlying := stdErrors.New("command failed")
	err := NewExecutionError("open_browser", underlying)

	var executionErr *ExecutionError
	require.ErrorAs(t, err, &executionErr)
	require.Equal(t, "open_browser", executionErr.StepID)
	require.True(t, stdErrors.Is(err, underlying))
}

func TestPluginErrorIncludesPluginName(t *testing.T) {
	t.Parallel()

	underlying := stdErrors.New("queue drained twice")
	err := NewPluginError("deferrer", underlying)

	var pluginErr *PluginError
	require.ErrorAs(t, err, &pluginErr)
	require.Equal(t, "deferrer", pluginErr.Plugin)
	require.True(t, stdErrors.Is(err, underlying))
}
