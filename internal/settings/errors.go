package settings

import (
	"errors"
	"fmt"
)

var (
	// ErrInvariant is wrapped by every invariant violation found during the
	// review phase.
	ErrInvariant = errors.New("settings invariant violated")
	// ErrPipelineConsumed is returned when Run is called on a pipeline that
	// has already run, whatever the outcome.
	ErrPipelineConsumed = errors.New("settings pipeline has already run")
)

// InvariantError reports a review-phase check failure on a specific key.
type InvariantError struct {
	Key    string
	Reason string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("%s: %s", e.Key, e.Reason)
}

func (e *InvariantError) Unwrap() error {
	return ErrInvariant
}
