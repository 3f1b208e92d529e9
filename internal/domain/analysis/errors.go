package analysis

import "errors"

var (
	// ErrInvalidResult is returned when a result would break the Success/Failure invariants.
	ErrInvalidResult = errors.New("invalid analysis result")
	// ErrAnalysisFailure marks an analysis that produced a Failure result.
	ErrAnalysisFailure = errors.New("analysis failed")
	// ErrNotApplicable is returned by a predictor when the dataset cannot support predictions.
	ErrNotApplicable = errors.New("predictions not applicable")
)
