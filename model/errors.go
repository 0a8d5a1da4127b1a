package model

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration is matched by every *ConfigurationError.
	ErrConfiguration = errors.New("configuration error")

	// ErrAllAlgorithmsFailed is returned by an executor when the primary
	// algorithm and every fallback failed.
	ErrAllAlgorithmsFailed = errors.New("all clustering algorithms failed")
)

// ConfigurationError reports an unknown key or an out-of-range parameter.
// It is surfaced to the caller and never recovered silently.
type ConfigurationError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
}

// Is makes errors.Is(err, ErrConfiguration) true.
func (e *ConfigurationError) Is(target error) bool { return target == ErrConfiguration }

// ConvergenceWarning notes that an iterative algorithm stopped at its
// iteration cap. It is informational: the best iterate is still returned.
type ConvergenceWarning struct {
	Algorithm  Algorithm
	Iterations int
}

func (w *ConvergenceWarning) Error() string {
	return fmt.Sprintf("%s did not converge within %d iterations", w.Algorithm, w.Iterations)
}
