package dashboard

import "errors"

var (
	// ErrNoDataset is returned when an action needs an uploaded dataset and the session has none.
	ErrNoDataset = errors.New("no dataset loaded")
	// ErrNoAnalysis is returned when an action needs a successful analysis and the session has none.
	ErrNoAnalysis = errors.New("no analysis available")
	// ErrTooLarge is returned for uploads above the configured limit.
	ErrTooLarge = errors.New("upload too large")
)
