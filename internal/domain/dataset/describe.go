package dataset

import (
	"math"
	"sort"

	"github.com/montanaflynn/stats"
)

// Summary is the statistical summary of one numeric column.
// Pointer fields are nil when the column has too few values to define them.
type Summary struct {
	Column string   `json:"column"`
	Count  int      `json:"count"`
	Mean   *float64 `json:"mean"`
	Std    *float64 `json:"std"`
	Min    *float64 `json:"min"`
	Q1     *float64 `json:"25%"`
	Median *float64 `json:"50%"`
	Q3     *float64 `json:"75%"`
	Max    *float64 `json:"max"`
}

// Describe summarizes every numeric column of t.
func Describe(t *Table) []Summary {
	cols := t.NumericColumns()
	out := make([]Summary, 0, len(cols))
	for _, c := range cols {
		out = append(out, DescribeColumn(c))
	}
	return out
}

// DescribeColumn summarizes a single column, ignoring missing cells.
func DescribeColumn(c *Column) Summary {
	data := stats.Float64Data(c.Numbers())
	s := Summary{Column: c.Name, Count: data.Len()}
	if s.Count == 0 {
		return s
	}
	s.Mean = ptr(data.Mean())
	s.Min = ptr(data.Min())
	s.Max = ptr(data.Max())
	s.Median = ptr(data.Median())
	if s.Count > 1 {
		s.Std = ptr(data.StandardDeviationSample())
	}

	sorted := append([]float64(nil), data...)
	sort.Float64s(sorted)
	q1, q3 := quantile(sorted, 0.25), quantile(sorted, 0.75)
	s.Q1, s.Q3 = ptr(q1, nil), ptr(q3, nil)
	return s
}

// quantile uses linear interpolation between closest ranks on sorted data.
func quantile(sorted []float64, p float64) float64 {
	pos := p * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	f := pos - float64(lo)
	return sorted[lo]*(1-f) + sorted[hi]*f
}

func ptr(v float64, err error) *float64 {
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
