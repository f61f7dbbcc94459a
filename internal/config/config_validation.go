package config

import (
	"fmt"

	sceneryerrors "github.com/alexisbeaulieu97/scenery/pkg/errors"
)

// ValidateConfig performs structural and cross-field validation on an entire configuration.
func ValidateConfig(cfg *Config) error {
	if cfg == nil {
		return sceneryerrors.NewValidationError("config", "configuration is nil", nil)
	}

	v := validatorInstance()
	if err := v.Struct(cfg); err != nil {
		return convertValidationError(err)
	}

	if cfg.Storage.Backend != BackendMemory && cfg.Storage.Path == "" {
		return sceneryerrors.NewValidationError("storage.path", fmt.Sprintf("path is required for the %s backend", cfg.Storage.Backend), nil)
	}

	for name, section := range cfg.Plugins {
		for _, dep := range section.DependsOn {
			if dep == name {
				return sceneryerrors.NewValidationError(fieldForPlugin(name, "depends_on"), "plugin cannot depend on itself", nil)
			}
		}
	}

	return nil
}

// ValidateStruct runs the shared validator over any tagged struct, such as a
// plugin's options.
func ValidateStruct(value any) error {
	if err := validatorInstance().Struct(value); err != nil {
		return convertValidationError(err)
	}
	return nil
}
