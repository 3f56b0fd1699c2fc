package env

import (
	"errors"
	"fmt"
)

// ErrMissingVariable is returned when a required environment variable has no
// value and no fallback applies.
var ErrMissingVariable = errors.New("missing required environment variable")

// MissingError names the variable that was required but absent.
type MissingError struct {
	Name string
}

func (e *MissingError) Error() string {
	return fmt.Sprintf("environment variable %s is required and has no value", e.Name)
}

func (e *MissingError) Unwrap() error {
	return ErrMissingVariable
}
