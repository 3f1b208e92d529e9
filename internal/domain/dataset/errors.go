package dataset

import (
	"errors"
	"fmt"
)

// ErrFormat matches every FormatError via errors.Is.
var ErrFormat = errors.New("unparseable dataset")

// ErrColumnNotFound is returned when a requested column does not exist.
var ErrColumnNotFound = errors.New("column not found")

// ErrNotNumeric is returned when a numeric operation targets a non-numeric column.
var ErrNotNumeric = errors.New("column is not numeric")

var errMissingHeader = errors.New("missing header row")

// FormatError indicates an upload that cannot be parsed as delimited tabular data.
type FormatError struct {
	File string
	Line int // 1-based; 0 when not tied to a line
	Err  error
}

func (e *FormatError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s: line %d: %v", e.File, e.Line, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.File, e.Err)
}

func (e *FormatError) Unwrap() error { return e.Err }

func (e *FormatError) Is(target error) bool { return target == ErrFormat }
