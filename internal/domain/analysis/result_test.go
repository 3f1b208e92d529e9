package analysis

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func f64(v float64) *float64 { return &v }

func detailed() Success {
	return Success{
		Mode:            ModeDetailed,
		Insights:        []string{"glucose is right-skewed"},
		Predictions:     &Predictions{Task: "classification", Target: "outcome", Classes: []string{"0", "1"}},
		Accuracy:        f64(0.82),
		ConfusionMatrix: [][]int{{10, 2}, {1, 7}},
	}
}

func TestNewSuccess_Invariants(t *testing.T) {
	cases := []struct {
		name string
		mod  func(*Success)
		ok   bool
	}{
		{"valid detailed", func(*Success) {}, true},
		{"no findings", func(s *Success) { *s = Success{Mode: ModeBasic} }, false},
		{"accuracy above one", func(s *Success) { s.Accuracy = f64(1.2) }, false},
		{"accuracy below zero", func(s *Success) { s.Accuracy = f64(-0.1) }, false},
		{"accuracy without predictions", func(s *Success) { s.Predictions, s.ConfusionMatrix = nil, nil }, false},
		{"matrix without predictions", func(s *Success) { s.Predictions, s.Accuracy = nil, nil }, false},
		{"non-square matrix", func(s *Success) { s.ConfusionMatrix = [][]int{{1, 2}, {3}} }, false},
		{"negative entry", func(s *Success) { s.ConfusionMatrix = [][]int{{1, -2}, {3, 4}} }, false},
		{"predictions in basic mode", func(s *Success) { s.Mode = ModeBasic }, false},
		{"basic with risk factors only", func(s *Success) {
			*s = Success{Mode: ModeBasic, RiskFactors: []string{"12% of bmi missing"}}
		}, false},
		{"basic with insights", func(s *Success) {
			*s = Success{Mode: ModeBasic, Insights: []string{"bmi is right-skewed"}}
		}, true},
		{"detailed with risk factors only", func(s *Success) {
			*s = Success{Mode: ModeDetailed, RiskFactors: []string{"12% of bmi missing"}}
		}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := detailed()
			tc.mod(&s)
			_, err := NewSuccess(s)
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidResult)
			}
		})
	}
}

func TestNewSuccess_InfersMode(t *testing.T) {
	r, err := NewSuccess(Success{Insights: []string{"x"}})
	require.NoError(t, err)
	assert.Equal(t, ModeBasic, r.Mode())

	s := detailed()
	s.Mode = ""
	r, err = NewSuccess(s)
	require.NoError(t, err)
	assert.Equal(t, ModeDetailed, r.Mode())
}

func TestResultJSON_RoundTrip(t *testing.T) {
	r, err := NewSuccess(detailed())
	require.NoError(t, err)

	data, err := json.Marshal(r)
	require.NoError(t, err)
	assert.NotContains(t, string(data), `"error"`)

	var back Result
	require.NoError(t, json.Unmarshal(data, &back))
	s, ok := back.Success()
	require.True(t, ok)
	assert.Equal(t, detailed(), s)
}

func TestResultJSON_Failure(t *testing.T) {
	data, err := json.Marshal(NewFailure("model timed out"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"error":"model timed out"}`, string(data))

	var back Result
	require.NoError(t, json.Unmarshal(data, &back))
	assert.True(t, back.Failed())
	assert.Equal(t, "model timed out", back.Err())
	_, ok := back.Success()
	assert.False(t, ok)
}

func TestResultJSON_RejectsInvalidStoredObjects(t *testing.T) {
	for _, raw := range []string{
		`{"error":"boom","insights":["x"]}`,
		`{"insights":["x"],"accuracy":0.5}`,
		`{"insights":["x"],"predictions":{"task":"classification"},"accuracy":3}`,
		`{}`,
		`{"mode":"deep","insights":["x"]}`,
		`{"mode":"basic","risk_factors":["x"]}`,
	} {
		var r Result
		err := json.Unmarshal([]byte(raw), &r)
		assert.ErrorIs(t, err, ErrInvalidResult, raw)
	}
}

func TestResultJSON_ZeroIsNull(t *testing.T) {
	data, err := json.Marshal(Result{})
	require.NoError(t, err)
	assert.Equal(t, "null", string(data))

	var r Result
	require.NoError(t, json.Unmarshal([]byte("null"), &r))
	assert.True(t, r.IsZero())
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("Detailed Analysis with Predictions")
	require.NoError(t, err)
	assert.Equal(t, ModeDetailed, m)

	m, err = ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, ModeBasic, m)

	_, err = ParseMode("exhaustive")
	assert.Error(t, err)
}

func TestText(t *testing.T) {
	r, err := NewSuccess(Success{Insights: []string{"a", "b"}, RiskFactors: []string{"c"}})
	require.NoError(t, err)
	assert.Equal(t, "a\nb\nc", r.Text())
}
