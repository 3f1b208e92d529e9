package analysis

import (
	"context"

	"github.com/bryanwahyu/medreport/internal/domain/dataset"
)

// Engine analyzes a table and returns a Result. A returned error means the engine
// could not run at all; callers map it to a Failure.
type Engine interface {
	Analyze(ctx context.Context, t *dataset.Table, mode Mode) (Result, error)
}

// Generator produces narrative findings for a table.
type Generator interface {
	Findings(ctx context.Context, t *dataset.Table) (Findings, error)
}

// Outcome is what a Predictor reports for a detailed analysis.
type Outcome struct {
	Predictions     Predictions
	Accuracy        float64
	ConfusionMatrix [][]int
}

// Predictor fits and evaluates a model on a table.
type Predictor interface {
	Predict(ctx context.Context, t *dataset.Table) (Outcome, error)
}
