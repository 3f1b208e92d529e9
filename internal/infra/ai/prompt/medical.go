package prompt

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/bryanwahyu/medreport/internal/domain/analysis"
	"github.com/bryanwahyu/medreport/internal/domain/dataset"
)

// SystemPrompt provides strict directions and schema for JSON output.
func SystemPrompt() string {
	return `You are a senior clinical data analyst. You must produce one valid JSON object only (no markdown, no commentary) that follows the schema below. Do not include code fences.

Requirements:
- Output must be a single JSON object.
- insights: 3 to 8 short sentences about distributions, relationships and data quality, citing column names.
- risk_factors: columns or patterns that plausibly indicate elevated patient risk, or data issues that threaten conclusions. May be empty.
- Never invent columns that are not in the profile. Do not give individual medical advice.

Schema (example with empty values):
{
  "insights": ["<string>"],
  "risk_factors": ["<string>"]
}`
}

// UserPrompt wraps a dataset profile.
func UserPrompt(profile string) string {
	return fmt.Sprintf("Analyze this dataset profile and respond with the JSON per schema.\n\n%s", profile)
}

// Profile renders a compact text description of t: shape, columns, numeric summaries and strongest correlations.
func Profile(t *dataset.Table) string {
	var b strings.Builder
	st := t.Stats()
	fmt.Fprintf(&b, "Dataset: %s\nRecords: %d\nFeatures: %d\nNumeric columns: %d\nMissing values: %d\n\nColumns:\n",
		t.Name, st.Records, st.Features, st.NumericColumns, st.MissingValues)
	for i := range t.Columns {
		c := &t.Columns[i]
		fmt.Fprintf(&b, "- %s (%s, %d missing)\n", c.Name, c.Kind, c.MissingCount())
	}

	if sums := dataset.Describe(t); len(sums) > 0 {
		b.WriteString("\nSummary (count, mean, std, min, median, max):\n")
		for _, s := range sums {
			fmt.Fprintf(&b, "- %s: %d, %s, %s, %s, %s, %s\n",
				s.Column, s.Count, num(s.Mean), num(s.Std), num(s.Min), num(s.Median), num(s.Max))
		}
	}

	if pairs := dataset.Correlation(t).TopPairs(5); len(pairs) > 0 {
		b.WriteString("\nStrongest correlations:\n")
		for _, p := range pairs {
			fmt.Fprintf(&b, "- %s ~ %s: %.2f\n", p.A, p.B, p.R)
		}
	}
	return b.String()
}

func num(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.3g", *v)
}

// ParseResponse decodes the model reply into findings. Code fences are tolerated.
func ParseResponse(raw string) (analysis.Findings, error) {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	var f analysis.Findings
	if err := json.Unmarshal([]byte(s), &f); err != nil {
		return analysis.Findings{}, fmt.Errorf("failed to decode model reply: %w", err)
	}
	f.Insights = compact(f.Insights)
	f.RiskFactors = compact(f.RiskFactors)
	if len(f.Insights) == 0 && len(f.RiskFactors) == 0 {
		return analysis.Findings{}, fmt.Errorf("model reply has no findings")
	}
	return f, nil
}

func compact(in []string) []string {
	var out []string
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
