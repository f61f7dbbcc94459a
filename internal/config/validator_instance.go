package config

import (
	"regexp"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validatorOnce sync.Once
	validateInst  *validator.Validate

	pluginNamePattern = regexp.MustCompile(`^[a-z][a-z0-9_-]*$`)
	storageBackends   = map[string]struct{}{BackendMemory: {}, BackendFile: {}, BackendSQLite: {}}
)

// validatorInstance configures and returns the shared validator instance used across the config package.
func validatorInstance() *validator.Validate {
	validatorOnce.Do(func() {
		v := validator.New()

		_ = v.RegisterValidation("plugin_name", func(fl validator.FieldLevel) bool {
			return pluginNamePattern.MatchString(fl.Field().String())
		})

		_ = v.RegisterValidation("storage_backend", func(fl validator.FieldLevel) bool {
			_, ok := storageBackends[fl.Field().String()]
			return ok
		})

		validateInst = v
	})

	return validateInst
}

// GetValidator returns a configured validator instance for use outside the config package.
func GetValidator() *validator.Validate {
	return validatorInstance()
}

// IsPluginName reports whether name is a well-formed plugin name.
func IsPluginName(name string) bool {
	return pluginNamePattern.MatchString(name)
}
