package models

import (
	"errors"
	"fmt"
)

// ConfigError indicates a malformed or inconsistent pipeline definition.
// It is fatal: it surfaces before any job is dispatched and no partial run
// is attempted.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return "config error: " + e.Reason
}

// NewConfigError builds a ConfigError with a formatted reason
func NewConfigError(format string, args ...interface{}) *ConfigError {
	return &ConfigError{Reason: fmt.Sprintf(format, args...)}
}

// IsConfigError reports whether err is (or wraps) a ConfigError
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}
