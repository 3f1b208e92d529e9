package predict

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/bryanwahyu/medreport/internal/domain/analysis"
	"github.com/bryanwahyu/medreport/internal/domain/dataset"
)

const (
	modelName      = "gaussian_naive_bayes"
	minRows        = 10
	maxClasses     = 10
	defaultHoldout = 5
	varianceSmooth = 1e-9
)

// Bayes is a Gaussian naive Bayes classifier evaluated on a deterministic holdout split.
type Bayes struct {
	// Target column; when empty the last column with 2..10 distinct values is used.
	Target string
	// Every TestEvery-th usable row goes to the test set.
	TestEvery int
}

type classModel struct {
	label string
	prior float64
	dists []distuv.Normal
}

func (b *Bayes) Predict(ctx context.Context, t *dataset.Table) (analysis.Outcome, error) {
	target, err := b.pickTarget(t)
	if err != nil {
		return analysis.Outcome{}, err
	}
	var features []*dataset.Column
	for _, c := range t.NumericColumns() {
		if c.Name != target.Name {
			features = append(features, c)
		}
	}
	if len(features) == 0 {
		return analysis.Outcome{}, fmt.Errorf("%w: no numeric feature columns besides %q", analysis.ErrNotApplicable, target.Name)
	}

	every := b.TestEvery
	if every < 2 {
		every = defaultHoldout
	}

	var trainX, testX [][]float64
	var trainY, testY []string
	usable := 0
rows:
	for r := 0; r < t.Records(); r++ {
		if target.Missing[r] {
			continue
		}
		x := make([]float64, len(features))
		for i, f := range features {
			if f.Missing[r] {
				continue rows
			}
			x[i] = f.Values[r]
		}
		y := strings.TrimSpace(target.Raw[r])
		if usable%every == every-1 {
			testX, testY = append(testX, x), append(testY, y)
		} else {
			trainX, trainY = append(trainX, x), append(trainY, y)
		}
		usable++
	}
	if usable < minRows || len(testX) == 0 {
		return analysis.Outcome{}, fmt.Errorf("%w: %d complete rows, need %d", analysis.ErrNotApplicable, usable, minRows)
	}
	if err := ctx.Err(); err != nil {
		return analysis.Outcome{}, err
	}

	classes := sortedClasses(append(append([]string{}, trainY...), testY...))
	models, err := fit(classes, trainX, trainY)
	if err != nil {
		return analysis.Outcome{}, err
	}

	index := make(map[string]int, len(classes))
	for i, c := range classes {
		index[c] = i
	}
	cm := make([][]int, len(classes))
	for i := range cm {
		cm[i] = make([]int, len(classes))
	}
	correct := 0
	for i, x := range testX {
		pred := classify(models, x)
		cm[index[testY[i]]][index[pred]]++
		if pred == testY[i] {
			correct++
		}
	}

	names := make([]string, len(features))
	for i, f := range features {
		names[i] = f.Name
	}
	return analysis.Outcome{
		Predictions: analysis.Predictions{
			Task:      "classification",
			Target:    target.Name,
			Model:     modelName,
			Features:  names,
			Classes:   classes,
			TrainSize: len(trainX),
			TestSize:  len(testX),
		},
		Accuracy:        float64(correct) / float64(len(testX)),
		ConfusionMatrix: cm,
	}, nil
}

func (b *Bayes) pickTarget(t *dataset.Table) (*dataset.Column, error) {
	if b.Target != "" {
		c, ok := t.Column(b.Target)
		if !ok {
			return nil, fmt.Errorf("%w: target column %q not present", analysis.ErrNotApplicable, b.Target)
		}
		if n := distinct(c); n < 2 || n > maxClasses {
			return nil, fmt.Errorf("%w: target %q has %d classes", analysis.ErrNotApplicable, c.Name, n)
		}
		return c, nil
	}
	for i := len(t.Columns) - 1; i >= 0; i-- {
		c := &t.Columns[i]
		if n := distinct(c); n >= 2 && n <= maxClasses {
			return c, nil
		}
	}
	return nil, fmt.Errorf("%w: no categorical target column", analysis.ErrNotApplicable)
}

func distinct(c *dataset.Column) int {
	seen := map[string]struct{}{}
	for i, v := range c.Raw {
		if !c.Missing[i] {
			seen[strings.TrimSpace(v)] = struct{}{}
		}
	}
	return len(seen)
}

// sortedClasses orders labels numerically when they all parse as numbers, lexically otherwise.
func sortedClasses(labels []string) []string {
	set := map[string]struct{}{}
	for _, l := range labels {
		set[l] = struct{}{}
	}
	out := make([]string, 0, len(set))
	numeric := true
	for l := range set {
		out = append(out, l)
		if _, err := strconv.ParseFloat(l, 64); err != nil {
			numeric = false
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if numeric {
			a, _ := strconv.ParseFloat(out[i], 64)
			b, _ := strconv.ParseFloat(out[j], 64)
			return a < b
		}
		return out[i] < out[j]
	})
	return out
}

func fit(classes []string, X [][]float64, y []string) ([]classModel, error) {
	nf := len(X[0])
	byClass := map[string][][]float64{}
	for i, x := range X {
		byClass[y[i]] = append(byClass[y[i]], x)
	}
	if len(byClass) < 2 {
		return nil, fmt.Errorf("%w: training split has a single class", analysis.ErrNotApplicable)
	}

	// smoothing scaled by the largest feature variance
	maxVar := 0.0
	col := make([]float64, len(X))
	for j := 0; j < nf; j++ {
		for i, x := range X {
			col[i] = x[j]
		}
		if v := stat.Variance(col, nil); v > maxVar {
			maxVar = v
		}
	}
	eps := varianceSmooth * maxVar
	if eps == 0 {
		eps = varianceSmooth
	}

	var models []classModel
	for _, label := range classes {
		rows := byClass[label]
		if len(rows) == 0 {
			continue
		}
		m := classModel{label: label, prior: math.Log(float64(len(rows)) / float64(len(X)))}
		vals := make([]float64, len(rows))
		for j := 0; j < nf; j++ {
			for i, x := range rows {
				vals[i] = x[j]
			}
			mean, variance := stat.PopMeanVariance(vals, nil)
			m.dists = append(m.dists, distuv.Normal{Mu: mean, Sigma: math.Sqrt(variance + eps)})
		}
		models = append(models, m)
	}
	return models, nil
}

func classify(models []classModel, x []float64) string {
	best, bestScore := "", math.Inf(-1)
	for _, m := range models {
		score := m.prior
		for j, d := range m.dists {
			score += d.LogProb(x[j])
		}
		if score > bestScore {
			best, bestScore = m.label, score
		}
	}
	return best
}
