package docluster

import (
	"errors"
	"fmt"

	"github.com/hupe1980/docluster/model"
)

var (
	// ErrConfiguration is matched by every configuration error, including
	// unknown algorithm keys and out-of-range parameters.
	ErrConfiguration = model.ErrConfiguration

	// ErrAllAlgorithmsFailed is never returned by Run; it is logged and the
	// run degrades to a single cluster.
	ErrAllAlgorithmsFailed = model.ErrAllAlgorithmsFailed

	// ErrPanic is returned when the pipeline panics outside an algorithm.
	ErrPanic = errors.New("docluster: pipeline panicked")
)

type (
	// ConfigurationError reports an unknown key or invalid parameter.
	ConfigurationError = model.ConfigurationError
	// ConvergenceWarning reports an algorithm stopped by its iteration cap.
	ConvergenceWarning = model.ConvergenceWarning
)

// AlgorithmError wraps the failure of one algorithm.
//
// The original underlying error can be accessed via errors.Unwrap.
type AlgorithmError struct {
	Algorithm model.Algorithm
	cause     error
}

func (e *AlgorithmError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Algorithm, e.cause)
}

func (e *AlgorithmError) Unwrap() error { return e.cause }

// panicError turns a recovered value into an error.
func panicError(v any) error {
	if err, ok := v.(error); ok {
		return fmt.Errorf("%w: %w", ErrPanic, err)
	}
	return fmt.Errorf("%w: %v", ErrPanic, v)
}
