package config

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingConfiguration means a required variable is absent or empty.
	ErrMissingConfiguration = errors.New("missing configuration")
	// ErrInvalidConfiguration means a variable is present but malformed.
	ErrInvalidConfiguration = errors.New("invalid configuration")

	errNotAnObject = errors.New("credential payload must be a JSON object")
)

func missing(name string) error {
	return fmt.Errorf("%w: missing required env var: %s", ErrMissingConfiguration, name)
}

func invalid(name string, format string, args ...any) error {
	return fmt.Errorf("%w: env var %s: %s", ErrInvalidConfiguration, name, fmt.Sprintf(format, args...))
}
