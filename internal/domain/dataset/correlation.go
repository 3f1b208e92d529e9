package dataset

import (
	"math"
	"sort"

	"github.com/montanaflynn/stats"
)

// CorrelationMatrix holds pairwise Pearson coefficients between numeric columns.
// Values[i][j] is NaN when the pair has fewer than two complete rows or zero variance.
type CorrelationMatrix struct {
	Columns []string
	Values  [][]float64
}

// Pair is one off-diagonal entry of a correlation matrix.
type Pair struct {
	A, B string
	R    float64
}

// Correlation computes the correlation matrix over the numeric columns of t,
// using only rows where both columns of a pair are present.
func Correlation(t *Table) CorrelationMatrix {
	cols := t.NumericColumns()
	m := CorrelationMatrix{
		Columns: make([]string, len(cols)),
		Values:  make([][]float64, len(cols)),
	}
	for i, c := range cols {
		m.Columns[i] = c.Name
		m.Values[i] = make([]float64, len(cols))
	}
	for i := range cols {
		for j := i; j < len(cols); j++ {
			r := pearson(cols[i], cols[j])
			m.Values[i][j] = r
			m.Values[j][i] = r
		}
	}
	return m
}

func pearson(a, b *Column) float64 {
	var xs, ys []float64
	for r := range a.Values {
		if a.Missing[r] || b.Missing[r] {
			continue
		}
		xs = append(xs, a.Values[r])
		ys = append(ys, b.Values[r])
	}
	if len(xs) < 2 {
		return math.NaN()
	}
	r, err := stats.Correlation(xs, ys)
	if err != nil || math.IsNaN(r) || math.IsInf(r, 0) {
		return math.NaN()
	}
	// zero variance yields 0 from the library; treat it as undefined
	if sdx, _ := stats.StandardDeviationPopulation(xs); sdx == 0 {
		return math.NaN()
	}
	if sdy, _ := stats.StandardDeviationPopulation(ys); sdy == 0 {
		return math.NaN()
	}
	return r
}

// TopPairs returns up to n distinct column pairs ordered by absolute coefficient, strongest first.
func (m CorrelationMatrix) TopPairs(n int) []Pair {
	var pairs []Pair
	for i := range m.Columns {
		for j := i + 1; j < len(m.Columns); j++ {
			r := m.Values[i][j]
			if math.IsNaN(r) {
				continue
			}
			pairs = append(pairs, Pair{A: m.Columns[i], B: m.Columns[j], R: r})
		}
	}
	sort.SliceStable(pairs, func(i, j int) bool {
		return math.Abs(pairs[i].R) > math.Abs(pairs[j].R)
	})
	if n >= 0 && len(pairs) > n {
		pairs = pairs[:n]
	}
	return pairs
}
