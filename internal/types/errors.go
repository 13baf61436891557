package types

import "fmt"

// InsufficientDataError indicates an entity did not meet a minimum sample
// threshold for the requested computation. Callers decide whether to fall
// back to league averages or surface the error.
type InsufficientDataError struct {
	Entity string
	Scope  string
	Have   int
	Need   int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data for %s (%s): have %d, need %d", e.Entity, e.Scope, e.Have, e.Need)
}

// InvalidProfileError indicates a profile failed structural validation
// before use, such as a rate outside [0, 1] or weights that do not sum to 1.
type InvalidProfileError struct {
	Entity string
	Reason string
}

func (e *InvalidProfileError) Error() string {
	return fmt.Sprintf("invalid profile for %s: %s", e.Entity, e.Reason)
}

// ConfigurationError indicates a rejected configuration value.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error in %s: %s", e.Field, e.Reason)
}

// SimulationAbortedError indicates a run was cancelled before completing the
// requested trial count. The partial result remains available alongside it.
type SimulationAbortedError struct {
	Completed int
	Requested int
}

func (e *SimulationAbortedError) Error() string {
	return fmt.Sprintf("simulation aborted after %d of %d trials", e.Completed, e.Requested)
}
