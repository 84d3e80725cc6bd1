package config

import (
	"errors"
	"fmt"
)

// =============================================================================
// Error Types
// =============================================================================

var (
	// ErrNoProjectName is returned when neither the deploy config nor the
	// project manifest declares a project name.
	ErrNoProjectName = errors.New("project name not set in deploykit.toml or project.toml")

	// ErrUnsupportedPlatform is returned when the host architecture cannot be
	// normalized to a known Docker platform string.
	ErrUnsupportedPlatform = errors.New("unsupported platform architecture")

	// ErrInvalidPort is returned when the resolved port is not positive.
	ErrInvalidPort = errors.New("deploy port must be greater than zero")

	// ErrInvalidRetention is returned when the artifact retention count is negative.
	ErrInvalidRetention = errors.New("keep_artifacts must not be negative")
)

// ConfigError wraps configuration failures with the field that caused them.
type ConfigError struct {
	Field   string
	Message string
	Err     error
}

func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("config %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("config: %s", e.Message)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// NewConfigError creates a new ConfigError.
func NewConfigError(field, message string, err error) *ConfigError {
	return &ConfigError{
		Field:   field,
		Message: message,
		Err:     err,
	}
}
