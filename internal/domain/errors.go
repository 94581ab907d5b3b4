package domain

import (
	"errors"
	"fmt"
)

// ProviderUnavailableError reports an unreachable or failing upstream
// provider. Eligible for one retry with backoff before a stage degrades.
type ProviderUnavailableError struct {
	Provider string
	Cause    error
}

func (e *ProviderUnavailableError) Error() string {
	return fmt.Sprintf("provider %s unavailable: %v", e.Provider, e.Cause)
}

func (e *ProviderUnavailableError) Unwrap() error { return e.Cause }

// InvalidLocationError reports a location name that could not be
// resolved. Fatal for the single request, never retried.
type InvalidLocationError struct {
	Query string
}

func (e *InvalidLocationError) Error() string {
	return fmt.Sprintf("location %q could not be resolved", e.Query)
}

// SchemaViolationError reports generation output that broke the output
// contract. Always recovered internally via fallback templates.
type SchemaViolationError struct {
	Reason string
}

func (e *SchemaViolationError) Error() string {
	return fmt.Sprintf("generation output violates contract: %s", e.Reason)
}

// StageError ties a pipeline failure to the stage where it happened,
// for logs and degraded bundles.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// IsProviderUnavailable reports whether err wraps a
// ProviderUnavailableError.
func IsProviderUnavailable(err error) bool {
	var target *ProviderUnavailableError
	return errors.As(err, &target)
}

// IsInvalidLocation reports whether err wraps an InvalidLocationError.
func IsInvalidLocation(err error) bool {
	var target *InvalidLocationError
	return errors.As(err, &target)
}
