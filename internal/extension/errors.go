package extension

import (
	"errors"
	"fmt"
)

// ConfigurationError reports a descriptor that cannot be registered.
type ConfigurationError struct {
	Slot   string
	Name   string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("extension %q in slot %q: %s", e.Name, e.Slot, e.Reason)
}

// IsConfigurationError reports whether err contains a ConfigurationError.
func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}

// ErrNotFound is returned for unknown slots and names.
var ErrNotFound = errors.New("extension not found")
