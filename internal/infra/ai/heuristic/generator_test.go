package heuristic

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/medreport/internal/domain/dataset"
)

func TestFindings(t *testing.T) {
	header := []string{"age", "glucose", "insulin"}
	var rows [][]string
	for i := 0; i < 40; i++ {
		g := fmt.Sprint(90 + i)
		if i%10 == 0 {
			g = ""
		}
		rows = append(rows, []string{fmt.Sprint(30 + i), g, fmt.Sprint(2 * (30 + i))})
	}
	rows[39][2] = "9000"
	tbl, err := dataset.NewTable("diabetes.csv", header, rows)
	require.NoError(t, err)

	f, err := New().Findings(context.Background(), tbl)
	require.NoError(t, err)

	require.NotEmpty(t, f.Insights)
	assert.Contains(t, f.Insights[0], "40 records across 3 features")
	assert.True(t, anyContains(f.RiskFactors, `of values in "glucose" are missing`), f.RiskFactors)
	assert.True(t, anyContains(f.RiskFactors, "diabetic range"), f.RiskFactors)
	assert.True(t, anyContains(f.Insights, "Strong positive correlation"), f.Insights)
}

func TestFindings_SmallSample(t *testing.T) {
	tbl, err := dataset.NewTable("tiny.csv", []string{"x"}, [][]string{{"1"}, {"2"}})
	require.NoError(t, err)

	f, err := New().Findings(context.Background(), tbl)
	require.NoError(t, err)
	assert.Contains(t, f.Insights, "No missing values were detected.")
	assert.True(t, anyContains(f.RiskFactors, "Only 2 records"))
}

func TestFindings_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	tbl, _ := dataset.NewTable("x.csv", []string{"x"}, nil)
	_, err := New().Findings(ctx, tbl)
	assert.ErrorIs(t, err, context.Canceled)
}

func anyContains(list []string, sub string) bool {
	for _, s := range list {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
