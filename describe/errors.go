package describe

import "errors"

var (
	// ErrInvalidPercentile is returned for a percentile outside 0..100
	ErrInvalidPercentile = errors.New("tabsh: percentile must be between 0 and 100")

	// ErrLabelConflict is returned when a dataset already has a column named like the label column
	ErrLabelConflict = errors.New("tabsh: column name conflicts with the describe label column")

	// ErrNoMethods is returned when a Describer has no statistics to compute
	ErrNoMethods = errors.New("tabsh: describe requires at least one method")
)
