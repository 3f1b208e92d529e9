package prompt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/medreport/internal/domain/dataset"
)

func TestParseResponse(t *testing.T) {
	f, err := ParseResponse("```json\n{\"insights\":[\"age skews older\",\" \"],\"risk_factors\":[\"high glucose\"]}\n```")
	require.NoError(t, err)
	assert.Equal(t, []string{"age skews older"}, f.Insights)
	assert.Equal(t, []string{"high glucose"}, f.RiskFactors)
}

func TestParseResponse_Errors(t *testing.T) {
	_, err := ParseResponse("not json")
	assert.Error(t, err)

	_, err = ParseResponse(`{"insights":[],"risk_factors":[""]}`)
	assert.Error(t, err)
}

func TestProfile(t *testing.T) {
	tbl, err := dataset.NewTable("vitals.csv", []string{"hr", "sbp", "ward"}, [][]string{
		{"72", "120", "A"},
		{"88", "135", "B"},
		{"95", "", "A"},
	})
	require.NoError(t, err)

	p := Profile(tbl)
	assert.Contains(t, p, "Records: 3")
	assert.Contains(t, p, "- sbp (numeric, 1 missing)")
	assert.Contains(t, p, "- ward (other, 0 missing)")
	assert.Contains(t, p, "Strongest correlations:")
	assert.Contains(t, UserPrompt(p), p)
}
