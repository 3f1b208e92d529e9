package charts

import (
	"bytes"
	"errors"
	"fmt"
	"math"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/bryanwahyu/medreport/internal/domain/artifacts"
	"github.com/bryanwahyu/medreport/internal/domain/dataset"
)

// ErrNoData is returned when there is nothing to plot.
var ErrNoData = errors.New("no data to plot")

const (
	contentTypePNG = "image/png"
	histWidth      = 800
	histHeight     = 480
)

var barColor = drawing.ColorFromHex("4c72b0")

// Histogram renders the distribution of a numeric column. An empty column name selects
// the first numeric column.
func Histogram(t *dataset.Table, column string) (artifacts.Artifact, error) {
	c, err := pickColumn(t, column)
	if err != nil {
		return artifacts.Artifact{}, err
	}
	vals := c.Numbers()
	if len(vals) == 0 {
		return artifacts.Artifact{}, fmt.Errorf("%w: %s has no values", ErrNoData, c.Name)
	}

	bins := binCounts(vals)
	maxCount := 0
	bars := make([]chart.Value, len(bins))
	for i, b := range bins {
		if b.count > maxCount {
			maxCount = b.count
		}
		bars[i] = chart.Value{
			Value: float64(b.count),
			Label: fmt.Sprintf("%.3g", b.lo),
			Style: chart.Style{FillColor: barColor, StrokeColor: barColor, StrokeWidth: 1},
		}
	}

	barWidth := (histWidth - 120) / len(bars)
	if barWidth > 60 {
		barWidth = 60
	}
	if barWidth < 4 {
		barWidth = 4
	}
	ch := chart.BarChart{
		Title:      "Distribution of " + c.Name,
		Width:      histWidth,
		Height:     histHeight,
		BarWidth:   barWidth,
		BarSpacing: 2,
		Background: chart.Style{Padding: chart.Box{Top: 48, Left: 16, Right: 16, Bottom: 16}},
		YAxis: chart.YAxis{
			Name:  "count",
			Range: &chart.ContinuousRange{Min: 0, Max: float64(maxCount) * 1.1},
		},
		Bars: bars,
	}

	var buf bytes.Buffer
	if err := ch.Render(chart.PNG, &buf); err != nil {
		return artifacts.Artifact{}, fmt.Errorf("render histogram %s: %w", c.Name, err)
	}
	return artifacts.Artifact{
		Name:        "histogram_" + c.Name + ".png",
		ContentType: contentTypePNG,
		Data:        buf.Bytes(),
	}, nil
}

func pickColumn(t *dataset.Table, name string) (*dataset.Column, error) {
	if name == "" {
		num := t.NumericColumns()
		if len(num) == 0 {
			return nil, fmt.Errorf("%w: no numeric columns", ErrNoData)
		}
		return num[0], nil
	}
	c, ok := t.Column(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", dataset.ErrColumnNotFound, name)
	}
	if c.Kind != dataset.KindNumeric {
		return nil, fmt.Errorf("%w: %s", dataset.ErrNotNumeric, name)
	}
	return c, nil
}

type bin struct {
	lo, hi float64
	count  int
}

// binCounts splits values into Sturges' number of equal-width bins.
// Edges and positions are computed on halves so extreme finite ranges do not overflow.
func binCounts(vals []float64) []bin {
	lo, hi := vals[0], vals[0]
	for _, v := range vals {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	span := hi/2 - lo/2
	if lo == hi || span == 0 || math.IsNaN(span) || math.IsInf(span, 0) {
		return []bin{{lo: lo, hi: hi, count: len(vals)}}
	}
	k := int(math.Ceil(math.Log2(float64(len(vals))) + 1))
	edge := func(i int) float64 {
		t := float64(i) / float64(k)
		return lo*(1-t) + hi*t
	}
	bins := make([]bin, k)
	for i := range bins {
		bins[i].lo = edge(i)
		bins[i].hi = edge(i + 1)
	}
	for _, v := range vals {
		f := (v/2 - lo/2) / span
		i := int(f * float64(k))
		if math.IsNaN(f) || i < 0 {
			i = 0
		}
		if i >= k {
			i = k - 1
		}
		bins[i].count++
	}
	return bins
}
