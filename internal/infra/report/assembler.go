package report

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/bryanwahyu/medreport/internal/domain/analysis"
	"github.com/bryanwahyu/medreport/internal/domain/artifacts"
	"github.com/bryanwahyu/medreport/internal/domain/dataset"
	"github.com/bryanwahyu/medreport/internal/domain/reports"
	"github.com/bryanwahyu/medreport/internal/infra/charts"
)

const contentTypePDF = "application/pdf"

// Assembler renders PDF reports. Sources are read from Uploads and documents written to Reports.
type Assembler struct {
	Uploads artifacts.Area
	Reports artifacts.Area
	Now     func() time.Time
}

func New(uploads, out artifacts.Area) *Assembler {
	return &Assembler{Uploads: uploads, Reports: out, Now: time.Now}
}

// Generate validates the request, renders the document in memory and stores it with a single write.
// Neither the source file nor the result are modified.
func (a *Assembler) Generate(ctx context.Context, req reports.GenerateRequest) (string, error) {
	succ, err := validate(req)
	if err != nil {
		return "", err
	}

	tbl, err := a.loadSource(ctx, req)
	if err != nil {
		return "", err
	}

	sections := reports.SelectSections(req.Format, req.Sections)
	var images []artifacts.Artifact
	if reports.HasSection(sections, reports.SectionVisualizations) {
		if images, err = renderCharts(ctx, tbl, succ); err != nil {
			return "", fmt.Errorf("%w: %v", reports.ErrAssembly, err)
		}
	}

	now := a.Now()
	doc := &document{
		filename:  filepath.Base(req.Filename),
		format:    req.Format,
		generated: now,
		table:     tbl,
		result:    succ,
		images:    images,
	}
	var buf bytes.Buffer
	if err := doc.render(&buf, sections); err != nil {
		return "", fmt.Errorf("%w: %v", reports.ErrAssembly, err)
	}

	name := FileName(req.Filename, req.Format, now)
	path, err := a.Reports.Put(ctx, name, bytes.NewReader(buf.Bytes()), int64(buf.Len()), contentTypePDF)
	if err != nil {
		return "", fmt.Errorf("store %s: %w", name, err)
	}
	zerolog.Ctx(ctx).Info().Str("report", path).Int("bytes", buf.Len()).Msg("report generated")
	return path, nil
}

// FileName follows <stem>_<format>_report_<YYYYMMDD_HHMMSS>.pdf.
func FileName(source string, format reports.Type, at time.Time) string {
	base := filepath.Base(source)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return fmt.Sprintf("%s_%s_report_%s.pdf", stem, format, at.Format("20060102_150405"))
}

func validate(req reports.GenerateRequest) (analysis.Success, error) {
	if req.Format != reports.TypeStandard && req.Format != reports.TypeDetailed {
		return analysis.Success{}, fmt.Errorf("%w: unsupported format %q", reports.ErrAssembly, req.Format)
	}
	if req.Result.Failed() {
		return analysis.Success{}, fmt.Errorf("%w: analysis failed: %s", reports.ErrAssembly, req.Result.Err())
	}
	succ, ok := req.Result.Success()
	if !ok {
		return analysis.Success{}, fmt.Errorf("%w: no analysis result", reports.ErrAssembly)
	}
	if req.Format == reports.TypeDetailed && succ.Mode == analysis.ModeDetailed && succ.Accuracy == nil {
		return analysis.Success{}, fmt.Errorf("%w: detailed analysis has no accuracy", reports.ErrAssembly)
	}
	return succ, nil
}

func (a *Assembler) loadSource(ctx context.Context, req reports.GenerateRequest) (*dataset.Table, error) {
	rc, err := a.Uploads.Open(ctx, req.SourcePath)
	if err != nil {
		if errors.Is(err, artifacts.ErrNotFound) {
			return nil, fmt.Errorf("%w: source %s: %v", reports.ErrAssembly, req.SourcePath, err)
		}
		return nil, err
	}
	defer rc.Close()
	tbl, err := dataset.Parse(req.Filename, rc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", reports.ErrAssembly, err)
	}
	return tbl, nil
}

// renderCharts draws the charts concurrently. Charts without data are left out.
func renderCharts(ctx context.Context, tbl *dataset.Table, succ analysis.Success) ([]artifacts.Artifact, error) {
	slots := make([]artifacts.Artifact, 3)
	g, _ := errgroup.WithContext(ctx)
	g.Go(recovered(func() error {
		a, err := charts.Histogram(tbl, "")
		if errors.Is(err, charts.ErrNoData) {
			return nil
		}
		slots[0] = a
		return err
	}))
	g.Go(recovered(func() error {
		a, err := charts.CorrelationHeatmap(dataset.Correlation(tbl))
		if errors.Is(err, charts.ErrNoData) {
			return nil
		}
		slots[1] = a
		return err
	}))
	if succ.Predictions != nil && succ.ConfusionMatrix != nil {
		g.Go(recovered(func() error {
			a, err := charts.ConfusionHeatmap(succ.Predictions.Classes, succ.ConfusionMatrix)
			if errors.Is(err, charts.ErrNoData) {
				return nil
			}
			slots[2] = a
			return err
		}))
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	var out []artifacts.Artifact
	for _, s := range slots {
		if len(s.Data) > 0 {
			out = append(out, s)
		}
	}
	return out, nil
}

// recovered turns a panic in a chart goroutine into an error.
func recovered(fn func() error) func() error {
	return func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("render chart: panic: %v", r)
			}
		}()
		return fn()
	}
}
