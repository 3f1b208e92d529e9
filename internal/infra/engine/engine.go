package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/bryanwahyu/medreport/internal/domain/ai"
	"github.com/bryanwahyu/medreport/internal/domain/analysis"
	"github.com/bryanwahyu/medreport/internal/domain/dataset"
	"github.com/bryanwahyu/medreport/internal/infra/ai/prompt"
)

// Engine combines an insight generator with an optional predictor.
type Engine struct {
	Generator analysis.Generator
	Predictor analysis.Predictor
}

func New(g analysis.Generator, p analysis.Predictor) *Engine {
	return &Engine{Generator: g, Predictor: p}
}

// Analyze runs the generator and, in detailed mode, the predictor. A predictor that cannot
// apply to the table does not fail the analysis; the result then carries no predictions.
func (e *Engine) Analyze(ctx context.Context, t *dataset.Table, mode analysis.Mode) (analysis.Result, error) {
	log := zerolog.Ctx(ctx)

	findings, err := e.Generator.Findings(ctx, t)
	if err != nil {
		return analysis.Result{}, fmt.Errorf("generate findings: %w", err)
	}
	s := analysis.Success{
		Mode:        mode,
		Insights:    findings.Insights,
		RiskFactors: findings.RiskFactors,
	}

	if mode == analysis.ModeDetailed && e.Predictor != nil {
		out, err := e.Predictor.Predict(ctx, t)
		switch {
		case err == nil:
			p := out.Predictions
			acc := out.Accuracy
			s.Predictions, s.Accuracy, s.ConfusionMatrix = &p, &acc, out.ConfusionMatrix
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return analysis.Result{}, err
		default:
			log.Warn().Err(err).Str("dataset", t.Name).Msg("predictions skipped")
		}
	}
	return analysis.NewSuccess(s)
}

// LLMGenerator asks a language model for findings.
type LLMGenerator struct {
	Client ai.Client
}

func (g *LLMGenerator) Findings(ctx context.Context, t *dataset.Table) (analysis.Findings, error) {
	raw, err := g.Client.Complete(ctx, prompt.SystemPrompt(), prompt.UserPrompt(prompt.Profile(t)))
	if err != nil {
		return analysis.Findings{}, err
	}
	return prompt.ParseResponse(raw)
}
