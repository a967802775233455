package engine

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrTableNotFound indicates that no dataset is registered under the name
	ErrTableNotFound = errors.New("tabsh: table not found")

	// ErrEmptyAggregate is the planning error for an aggregation with
	// neither grouping nor aggregate expressions.
	ErrEmptyAggregate = errors.New("tabsh: aggregate requires at least one grouping or aggregate expression")

	// ErrSchemaMismatch indicates that two frames cannot be unioned
	ErrSchemaMismatch = errors.New("tabsh: schema mismatch")

	// ErrInvalidSQL indicates that a query could not be prepared
	ErrInvalidSQL = errors.New("tabsh: invalid SQL")

	// ErrEmptyData indicates that the data source contains no columns
	ErrEmptyData = errors.New("tabsh: empty data source")

	// ErrUnsupportedSource indicates a dataset kind the engine cannot load
	ErrUnsupportedSource = errors.New("tabsh: unsupported source")

	// ErrMissingTable indicates a database source without a source table
	ErrMissingTable = errors.New("tabsh: database source requires a table")

	// ErrInvalidName indicates an empty dataset name
	ErrInvalidName = errors.New("tabsh: dataset name must not be empty")

	// ErrFileNotFound indicates file not found
	ErrFileNotFound = errors.New("tabsh: file not found")
)

// LoadError reports a failed registration. It unwraps to the cause, so
// callers can still match the sentinel errors above with errors.Is.
type LoadError struct {
	Dataset string
	Source  string
	// Stage names the step that failed when it is not the load itself.
	Stage string
	Err   error
}

func (e *LoadError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "tabsh: failed to load %q from %s", e.Dataset, e.Source)
	if e.Stage != "" {
		sb.WriteString(" (" + e.Stage + ")")
	}
	if e.Err != nil {
		sb.WriteString(": " + e.Err.Error())
	}
	return sb.String()
}

func (e *LoadError) Unwrap() error { return e.Err }

// loadFailure returns a constructor of LoadErrors for one registration.
func loadFailure(dataset, source string) func(stage string, err error) error {
	return func(stage string, err error) error {
		return &LoadError{Dataset: dataset, Source: source, Stage: stage, Err: err}
	}
}
