package charts

import (
	"github.com/bryanwahyu/medreport/internal/domain/artifacts"
	"github.com/bryanwahyu/medreport/internal/domain/dataset"
)

// Renderer exposes the chart functions behind one value so callers can depend on an interface.
type Renderer struct{}

func (Renderer) Histogram(t *dataset.Table, column string) (artifacts.Artifact, error) {
	return Histogram(t, column)
}

func (Renderer) Correlation(t *dataset.Table) (artifacts.Artifact, error) {
	return CorrelationHeatmap(dataset.Correlation(t))
}

func (Renderer) Confusion(classes []string, cm [][]int) (artifacts.Artifact, error) {
	return ConfusionHeatmap(classes, cm)
}
