package metrics

import (
	"errors"
	"fmt"
)

var (
	// ErrDescriptorConflict is returned when a metric name is registered twice
	// with a different kind, label schema or bucket layout.
	ErrDescriptorConflict = errors.New("descriptor conflict")

	// ErrInvalidDescriptor is returned when a descriptor cannot be registered
	// at all (bad name, duplicate label, unsorted buckets, ...).
	ErrInvalidDescriptor = errors.New("invalid descriptor")

	// ErrUnknownMetric is returned when a handle was not produced by the
	// registry it is used with, or is used as the wrong kind.
	ErrUnknownMetric = errors.New("unknown metric")

	// ErrLabelSchemaMismatch is returned when the supplied label names differ
	// from the names fixed at registration.
	ErrLabelSchemaMismatch = errors.New("label schema mismatch")

	// ErrInvalidValue is returned for negative counter deltas, NaN
	// observations and label values outside their enumeration.
	ErrInvalidValue = errors.New("invalid value")
)

// MetricError describes a failed registry operation.
type MetricError struct {
	Op     string // Operation that failed ("register", "increment", "observe", "snapshot")
	Metric string // Descriptor name, empty when not applicable
	Err    error  // Underlying error, wraps one of the sentinel errors
}

// Error implements the error interface.
func (e *MetricError) Error() string {
	if e.Metric == "" {
		return fmt.Sprintf("metrics %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("metrics %s [metric=%s]: %v", e.Op, e.Metric, e.Err)
}

// Unwrap returns the underlying error.
func (e *MetricError) Unwrap() error {
	return e.Err
}

func newMetricError(op, metric string, err error) *MetricError {
	return &MetricError{
		Op:     op,
		Metric: metric,
		Err:    err,
	}
}
