package reports

import "errors"

var (
	// ErrNotFound indicates a missing report (or missing parent for a quick summary).
	ErrNotFound = errors.New("report not found")
	// ErrStorage indicates the report store could not complete an operation.
	ErrStorage = errors.New("report storage unavailable")
	// ErrAssembly indicates a report document could not be generated from the given inputs.
	ErrAssembly = errors.New("report assembly failed")
)
