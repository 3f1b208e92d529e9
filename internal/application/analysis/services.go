package analysis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/bryanwahyu/medreport/internal/domain/ai"
	domain "github.com/bryanwahyu/medreport/internal/domain/analysis"
	"github.com/bryanwahyu/medreport/internal/domain/dataset"
)

// Service runs the analysis engine and turns its errors into Failure results.
type Service struct {
	Engine domain.Engine
	// Timeout bounds one engine call; zero means no limit beyond the caller's context.
	Timeout time.Duration
}

func NewService(engine domain.Engine) *Service {
	return &Service{Engine: engine}
}

// Run always returns a non-zero Result. On failure the Result is a Failure and the error
// wraps ErrAnalysisFailure (and the engine's cause, so quota errors stay detectable).
func (s *Service) Run(ctx context.Context, t *dataset.Table, mode domain.Mode) (domain.Result, error) {
	log := zerolog.Ctx(ctx)
	if t == nil {
		res := domain.NewFailure("no dataset loaded")
		return res, fmt.Errorf("%w: %s", domain.ErrAnalysisFailure, res.Err())
	}

	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}
	res, err := s.Engine.Analyze(ctx, t, mode)
	if err != nil {
		log.Error().Err(err).Str("dataset", t.Name).Str("mode", string(mode)).Msg("analysis engine failed")
		return domain.NewFailure(failureMessage(err)), fmt.Errorf("%w: %w", domain.ErrAnalysisFailure, err)
	}
	if res.IsZero() {
		res = domain.NewFailure("engine returned no result")
	}
	if res.Failed() {
		log.Warn().Str("dataset", t.Name).Str("error", res.Err()).Msg("analysis returned failure")
		return res, fmt.Errorf("%w: %s", domain.ErrAnalysisFailure, res.Err())
	}
	log.Info().Str("dataset", t.Name).Str("mode", string(res.Mode())).Msg("analysis completed")
	return res, nil
}

func failureMessage(err error) string {
	switch {
	case errors.Is(err, ai.ErrQuotaExceeded):
		return "AI provider quota exceeded, try again later"
	case errors.Is(err, context.DeadlineExceeded):
		return "analysis timed out"
	}
	return "analysis could not be completed: " + err.Error()
}
