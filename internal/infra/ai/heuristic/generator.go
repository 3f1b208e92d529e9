package heuristic

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"sort"

	"github.com/bryanwahyu/medreport/internal/domain/analysis"
	"github.com/bryanwahyu/medreport/internal/domain/dataset"
)

const (
	maxFindings     = 12
	strongCorr      = 0.5
	smallSample     = 30
	missingWarnPct  = 5.0
	outlierWarnPct  = 5.0
	skewStdFraction = 0.5
)

// clinical thresholds keyed by column-name pattern
var thresholds = []struct {
	re    *regexp.Regexp
	limit float64
	label string
}{
	{regexp.MustCompile(`(?i)gluc`), 126, "fasting glucose at or above 126 (diabetic range)"},
	{regexp.MustCompile(`(?i)bmi`), 30, "BMI at or above 30 (obese range)"},
	{regexp.MustCompile(`(?i)(systolic|sys_?bp|sbp|blood_?pressure|trestbps)`), 140, "blood pressure at or above 140 (hypertensive range)"},
	{regexp.MustCompile(`(?i)chol`), 240, "cholesterol at or above 240 (high)"},
	{regexp.MustCompile(`(?i)^age$`), 65, "age 65 or older"},
}

// Generator derives findings from summary statistics when no language model is configured.
type Generator struct{}

func New() *Generator { return &Generator{} }

func (g *Generator) Findings(ctx context.Context, t *dataset.Table) (analysis.Findings, error) {
	if err := ctx.Err(); err != nil {
		return analysis.Findings{}, err
	}
	var f analysis.Findings
	insight := func(format string, args ...any) {
		if len(f.Insights) < maxFindings {
			f.Insights = append(f.Insights, fmt.Sprintf(format, args...))
		}
	}
	risk := func(format string, args ...any) {
		if len(f.RiskFactors) < maxFindings {
			f.RiskFactors = append(f.RiskFactors, fmt.Sprintf(format, args...))
		}
	}

	st := t.Stats()
	insight("The dataset contains %d records across %d features, %d of them numeric.", st.Records, st.Features, st.NumericColumns)
	if st.Records < smallSample {
		risk("Only %d records are available; estimates and any predictions are unreliable at this sample size.", st.Records)
	}

	// data quality
	if st.MissingValues == 0 {
		insight("No missing values were detected.")
	} else {
		insight("%d cells are missing in total.", st.MissingValues)
		for i := range t.Columns {
			c := &t.Columns[i]
			if st.Records == 0 {
				break
			}
			pct := 100 * float64(c.MissingCount()) / float64(st.Records)
			if pct >= missingWarnPct {
				risk("%.1f%% of values in %q are missing, which may bias conclusions drawn from it.", pct, c.Name)
			}
		}
	}

	for _, s := range dataset.Describe(t) {
		if s.Mean == nil || s.Std == nil || s.Median == nil || *s.Std == 0 {
			continue
		}
		if diff := *s.Mean - *s.Median; math.Abs(diff) > skewStdFraction*(*s.Std) {
			dir := "right"
			if diff < 0 {
				dir = "left"
			}
			insight("%s is %s-skewed (mean %.2f vs median %.2f).", s.Column, dir, *s.Mean, *s.Median)
		}
	}

	for _, c := range t.NumericColumns() {
		vals := c.Numbers()
		if n := outliers(vals); len(vals) > 0 {
			if pct := 100 * float64(n) / float64(len(vals)); pct >= outlierWarnPct {
				risk("%s has %d outliers (%.1f%% of values) outside 1.5×IQR.", c.Name, n, pct)
			}
		}
		for _, th := range thresholds {
			if !th.re.MatchString(c.Name) || len(vals) == 0 {
				continue
			}
			above := 0
			for _, v := range vals {
				if v >= th.limit {
					above++
				}
			}
			if above > 0 {
				risk("%.1f%% of records have %s.", 100*float64(above)/float64(len(vals)), th.label)
			}
			break
		}
	}

	for _, p := range dataset.Correlation(t).TopPairs(3) {
		if math.Abs(p.R) < strongCorr {
			break
		}
		dir := "positive"
		if p.R < 0 {
			dir = "negative"
		}
		insight("Strong %s correlation between %s and %s (r = %.2f).", dir, p.A, p.B, p.R)
	}
	return f, nil
}

func outliers(vals []float64) int {
	if len(vals) < 4 {
		return 0
	}
	sorted := append([]float64(nil), vals...)
	sort.Float64s(sorted)
	q := func(p float64) float64 {
		pos := p * float64(len(sorted)-1)
		lo := int(pos)
		if lo+1 >= len(sorted) {
			return sorted[lo]
		}
		return sorted[lo] + (pos-float64(lo))*(sorted[lo+1]-sorted[lo])
	}
	q1, q3 := q(0.25), q(0.75)
	iqr := q3 - q1
	n := 0
	for _, v := range vals {
		if v < q1-1.5*iqr || v > q3+1.5*iqr {
			n++
		}
	}
	return n
}
