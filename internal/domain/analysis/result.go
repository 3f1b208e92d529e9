package analysis

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// Mode selects how deep an analysis goes.
type Mode string

const (
	ModeBasic    Mode = "basic"
	ModeDetailed Mode = "detailed"
)

// ParseMode accepts "basic"/"detailed" as well as the dashboard labels
// "Basic Analysis" and "Detailed Analysis with Predictions".
func ParseMode(s string) (Mode, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	switch {
	case v == "" || v == "basic" || strings.HasPrefix(v, "basic analysis"):
		return ModeBasic, nil
	case v == "detailed" || strings.HasPrefix(v, "detailed analysis"):
		return ModeDetailed, nil
	}
	return "", fmt.Errorf("%w: unknown analysis mode %q", ErrInvalidResult, s)
}

// Predictions describes the outcome of the prediction routine.
type Predictions struct {
	Task      string   `json:"task"`
	Target    string   `json:"target"`
	Model     string   `json:"model"`
	Features  []string `json:"features"`
	Classes   []string `json:"classes"`
	TrainSize int      `json:"train_size"`
	TestSize  int      `json:"test_size"`
}

// Success is the payload of a successful analysis.
type Success struct {
	Mode            Mode
	Insights        []string
	RiskFactors     []string
	Predictions     *Predictions
	Accuracy        *float64
	ConfusionMatrix [][]int
}

// Result is either a Success or a Failure, never both. The zero value is "no result".
type Result struct {
	success *Success
	failure string
}

// NewSuccess validates s and wraps it in a Result.
func NewSuccess(s Success) (Result, error) {
	if s.Mode == "" {
		s.Mode = ModeBasic
		if s.Predictions != nil {
			s.Mode = ModeDetailed
		}
	}
	if err := validate(&s); err != nil {
		return Result{}, err
	}
	return Result{success: &s}, nil
}

// NewFailure builds a Failure result carrying a human-readable message.
func NewFailure(msg string) Result {
	if strings.TrimSpace(msg) == "" {
		msg = "analysis failed"
	}
	return Result{failure: msg}
}

func validate(s *Success) error {
	if s.Mode != ModeBasic && s.Mode != ModeDetailed {
		return fmt.Errorf("%w: unknown mode %q", ErrInvalidResult, s.Mode)
	}
	if len(s.Insights) == 0 && len(s.RiskFactors) == 0 && s.Predictions == nil {
		return fmt.Errorf("%w: success needs insights, risk factors or predictions", ErrInvalidResult)
	}
	if s.Mode == ModeBasic && len(s.Insights) == 0 {
		return fmt.Errorf("%w: basic mode needs at least one insight", ErrInvalidResult)
	}
	if s.Predictions != nil && s.Mode == ModeBasic {
		return fmt.Errorf("%w: predictions require detailed mode", ErrInvalidResult)
	}
	if s.Accuracy != nil {
		if s.Predictions == nil {
			return fmt.Errorf("%w: accuracy without predictions", ErrInvalidResult)
		}
		if a := *s.Accuracy; math.IsNaN(a) || a < 0 || a > 1 {
			return fmt.Errorf("%w: accuracy %v outside [0,1]", ErrInvalidResult, a)
		}
	}
	if s.ConfusionMatrix != nil {
		if s.Predictions == nil {
			return fmt.Errorf("%w: confusion matrix without predictions", ErrInvalidResult)
		}
		n := len(s.ConfusionMatrix)
		for _, row := range s.ConfusionMatrix {
			if len(row) != n {
				return fmt.Errorf("%w: confusion matrix is not square", ErrInvalidResult)
			}
			for _, v := range row {
				if v < 0 {
					return fmt.Errorf("%w: negative confusion matrix entry", ErrInvalidResult)
				}
			}
		}
	}
	return nil
}

// IsZero reports whether r holds neither variant.
func (r Result) IsZero() bool { return r.success == nil && r.failure == "" }

// Failed reports whether r is a Failure.
func (r Result) Failed() bool { return r.failure != "" }

// Err returns the failure message, or "" for a Success.
func (r Result) Err() string { return r.failure }

// Success returns a copy of the success payload.
func (r Result) Success() (Success, bool) {
	if r.success == nil {
		return Success{}, false
	}
	return *r.success, true
}

// Mode returns the mode of a Success, or "" otherwise.
func (r Result) Mode() Mode {
	if r.success == nil {
		return ""
	}
	return r.success.Mode
}

// Findings is the narrative part of a result, as produced by an insight generator.
type Findings struct {
	Insights    []string `json:"insights"`
	RiskFactors []string `json:"risk_factors"`
}

type wireResult struct {
	Mode            Mode         `json:"mode,omitempty"`
	Insights        []string     `json:"insights,omitempty"`
	RiskFactors     []string     `json:"risk_factors,omitempty"`
	Predictions     *Predictions `json:"predictions,omitempty"`
	Accuracy        *float64     `json:"accuracy,omitempty"`
	ConfusionMatrix [][]int      `json:"confusion_matrix,omitempty"`
	Error           *string      `json:"error,omitempty"`
}

func (r Result) MarshalJSON() ([]byte, error) {
	switch {
	case r.failure != "":
		msg := r.failure
		return json.Marshal(wireResult{Error: &msg})
	case r.success != nil:
		s := r.success
		return json.Marshal(wireResult{
			Mode:            s.Mode,
			Insights:        s.Insights,
			RiskFactors:     s.RiskFactors,
			Predictions:     s.Predictions,
			Accuracy:        s.Accuracy,
			ConfusionMatrix: s.ConfusionMatrix,
		})
	}
	return []byte("null"), nil
}

// UnmarshalJSON rejects objects that mix an error with success keys or break the Success invariants.
func (r *Result) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*r = Result{}
		return nil
	}
	var w wireResult
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidResult, err)
	}
	if w.Error != nil {
		if w.Insights != nil || w.RiskFactors != nil || w.Predictions != nil || w.Accuracy != nil || w.ConfusionMatrix != nil {
			return fmt.Errorf("%w: error mixed with success keys", ErrInvalidResult)
		}
		*r = NewFailure(*w.Error)
		return nil
	}
	res, err := NewSuccess(Success{
		Mode:            w.Mode,
		Insights:        w.Insights,
		RiskFactors:     w.RiskFactors,
		Predictions:     w.Predictions,
		Accuracy:        w.Accuracy,
		ConfusionMatrix: w.ConfusionMatrix,
	})
	if err != nil {
		return err
	}
	*r = res
	return nil
}

// Text flattens the findings of r into plain text for search and summaries.
func (r Result) Text() string {
	if r.failure != "" {
		return r.failure
	}
	if r.success == nil {
		return ""
	}
	parts := append(append([]string{}, r.success.Insights...), r.success.RiskFactors...)
	return strings.Join(parts, "\n")
}
