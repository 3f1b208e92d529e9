package dashboard

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/medreport/internal/application"
	appanalysis "github.com/bryanwahyu/medreport/internal/application/analysis"
	appreports "github.com/bryanwahyu/medreport/internal/application/reports"
	"github.com/bryanwahyu/medreport/internal/application/session"
	"github.com/bryanwahyu/medreport/internal/domain/analysis"
	"github.com/bryanwahyu/medreport/internal/domain/dataset"
	"github.com/bryanwahyu/medreport/internal/domain/reports"
	"github.com/bryanwahyu/medreport/internal/infra/charts"
	"github.com/bryanwahyu/medreport/internal/infra/storage"
)

var fixed = time.Date(2025, 3, 4, 10, 0, 0, 0, time.UTC)

type engineFunc func(ctx context.Context, t *dataset.Table, m analysis.Mode) (analysis.Result, error)

func (f engineFunc) Analyze(ctx context.Context, t *dataset.Table, m analysis.Mode) (analysis.Result, error) {
	return f(ctx, t, m)
}

// memRepo is an in-memory reports.Repository.
type memRepo struct {
	reports   []*reports.Report
	summaries  []reports.QuickSummary
	saveErr    error
	summaryErr error
}

func (m *memRepo) Save(_ context.Context, r *reports.Report) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	r.ID = reports.ID(len(m.reports) + 1)
	r.CreatedAt = fixed
	m.reports = append(m.reports, r)
	return nil
}

func (m *memRepo) SaveQuickSummary(_ context.Context, id reports.ID, text string) (*reports.QuickSummary, error) {
	if int(id) < 1 || int(id) > len(m.reports) {
		return nil, reports.ErrNotFound
	}
	qs := reports.QuickSummary{ID: int64(len(m.summaries) + 1), ReportID: id, Text: text, CreatedAt: fixed}
	m.summaries = append(m.summaries, qs)
	return &qs, nil
}

// SaveWithQuickSummary keeps both rows or neither, like the SQL stores.
func (m *memRepo) SaveWithQuickSummary(ctx context.Context, r *reports.Report, text string) (*reports.QuickSummary, error) {
	if m.summaryErr != nil {
		return nil, m.summaryErr
	}
	saved := *r
	if err := m.Save(ctx, &saved); err != nil {
		return nil, err
	}
	*r = saved
	return m.SaveQuickSummary(ctx, r.ID, text)
}

func (m *memRepo) Search(context.Context, string, int) ([]*reports.Report, error) { return m.reports, nil }
func (m *memRepo) Recent(context.Context, int) ([]*reports.Report, error)         { return m.reports, nil }

func (m *memRepo) Get(_ context.Context, id reports.ID) (*reports.Details, error) {
	if int(id) < 1 || int(id) > len(m.reports) {
		return nil, reports.ErrNotFound
	}
	sums, _ := m.Summaries(context.Background(), id)
	return &reports.Details{Report: *m.reports[id-1], Summaries: sums}, nil
}

func (m *memRepo) Summaries(_ context.Context, id reports.ID) ([]reports.QuickSummary, error) {
	var out []reports.QuickSummary
	for _, s := range m.summaries {
		if s.ReportID == id {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memRepo) Stats(context.Context, time.Time) (reports.Stats, error) {
	return reports.Stats{TotalReports: len(m.reports), RecentReports: len(m.reports)}, nil
}

func (m *memRepo) Ping(context.Context) error { return nil }

// fileAssembler writes a small placeholder document so removal can be observed.
type fileAssembler struct {
	svc  *Service
	err  error
	reqs []reports.GenerateRequest
}

func (a *fileAssembler) Generate(ctx context.Context, req reports.GenerateRequest) (string, error) {
	a.reqs = append(a.reqs, req)
	if a.err != nil {
		return "", a.err
	}
	name := fmt.Sprintf("%s_%s_report.pdf", strings.TrimSuffix(req.Filename, ".csv"), req.Format)
	return a.svc.Reports.Put(ctx, name, strings.NewReader("%PDF-1.3"), 8, "application/pdf")
}

type fixture struct {
	svc  *Service
	fs   afero.Fs
	repo *memRepo
	asm  *fileAssembler
	sess *session.Session
}

func basicEngine() engineFunc {
	return func(_ context.Context, t *dataset.Table, m analysis.Mode) (analysis.Result, error) {
		s := analysis.Success{Mode: m, Insights: []string{fmt.Sprintf("%d records", t.Records())}, RiskFactors: []string{"bmi above 30"}}
		if m == analysis.ModeDetailed {
			acc := 0.5
			s.Predictions = &analysis.Predictions{Task: "classification", Target: "outcome", Classes: []string{"0", "1"}}
			s.Accuracy = &acc
			s.ConfusionMatrix = [][]int{{1, 1}, {1, 1}}
		}
		return analysis.NewSuccess(s)
	}
}

func newFixture(t *testing.T, engine analysis.Engine) fixture {
	fs := afero.NewMemMapFs()
	up, err := storage.NewLocalArea(fs, "/data/uploads")
	require.NoError(t, err)
	out, err := storage.NewLocalArea(fs, "/data/reports")
	require.NoError(t, err)

	repo := &memRepo{}
	svc := &Service{
		Uploads:   up,
		Reports:   out,
		Analysis:  appanalysis.NewService(engine),
		Store:     appreports.NewService(repo, application.FixedClock(fixed)),
		Charts:    charts.Renderer{},
		Clock:     application.FixedClock(fixed),
		MaxUpload: 1 << 20,
	}
	asm := &fileAssembler{svc: svc}
	svc.Assembler = asm
	sess, _ := session.NewManager(0).GetOrCreate("")
	return fixture{svc: svc, fs: fs, repo: repo, asm: asm, sess: sess}
}

const sample = "age,glucose,bmi,outcome\n50,148,33.6,1\n31,85,26.6,0\n32,183,23.3,1\n21,89,,0\n33,137,43.1,1\n"

func TestUpload_LoadsIntoSession(t *testing.T) {
	f := newFixture(t, basicEngine())
	ov, err := f.svc.Upload(context.Background(), f.sess, `C:\Users\me\diabetes.csv`, strings.NewReader(sample))
	require.NoError(t, err)

	assert.Equal(t, "diabetes.csv", ov.Filename)
	assert.Equal(t, dataset.Stats{Records: 5, Features: 4, NumericColumns: 4, MissingValues: 1}, ov.Stats)
	assert.Len(t, ov.Preview, 5)
	assert.Equal(t, 1, ov.Columns[2].Missing)

	raw, err := afero.ReadFile(f.fs, "/data/uploads/diabetes.csv")
	require.NoError(t, err)
	assert.Equal(t, sample, string(raw))

	snap := f.sess.Snapshot()
	assert.Equal(t, "/data/uploads/diabetes.csv", snap.UploadPath)
	assert.True(t, snap.HasDataset())
}

func TestUpload_FormatErrorKeepsSession(t *testing.T) {
	f := newFixture(t, basicEngine())
	_, err := f.svc.Upload(context.Background(), f.sess, "good.csv", strings.NewReader(sample))
	require.NoError(t, err)

	_, err = f.svc.Upload(context.Background(), f.sess, "bad.csv", strings.NewReader("a,b\n1,2,3\n"))
	assert.ErrorIs(t, err, dataset.ErrFormat)

	// the raw bytes were still persisted before parsing
	ok, _ := afero.Exists(f.fs, "/data/uploads/bad.csv")
	assert.True(t, ok)
	assert.Equal(t, "good.csv", f.sess.Snapshot().Filename)
}

func TestUpload_Rejects(t *testing.T) {
	f := newFixture(t, basicEngine())
	_, err := f.svc.Upload(context.Background(), f.sess, "notes.txt", strings.NewReader(sample))
	assert.ErrorIs(t, err, dataset.ErrFormat)

	f.svc.MaxUpload = 10
	_, err = f.svc.Upload(context.Background(), f.sess, "big.csv", strings.NewReader(sample))
	assert.ErrorIs(t, err, ErrTooLarge)
	assert.False(t, f.sess.Snapshot().HasDataset())
}

func TestActionsNeedDataset(t *testing.T) {
	f := newFixture(t, basicEngine())
	ctx := context.Background()

	_, err := f.svc.Overview(f.sess)
	assert.ErrorIs(t, err, ErrNoDataset)
	_, err = f.svc.Analyze(ctx, f.sess, analysis.ModeBasic)
	assert.ErrorIs(t, err, ErrNoDataset)
	_, err = f.svc.Histogram(f.sess, "")
	assert.ErrorIs(t, err, ErrNoDataset)
	_, err = f.svc.GenerateReport(ctx, f.sess, GenerateCommand{Format: reports.TypeStandard})
	assert.ErrorIs(t, err, ErrNoDataset)
	_, err = f.svc.Result(f.sess)
	assert.ErrorIs(t, err, ErrNoAnalysis)
}

func TestAnalyze_FailureLeavesSessionUnchanged(t *testing.T) {
	calls := 0
	f := newFixture(t, engineFunc(func(ctx context.Context, tbl *dataset.Table, m analysis.Mode) (analysis.Result, error) {
		calls++
		if calls == 1 {
			return basicEngine()(ctx, tbl, m)
		}
		return analysis.Result{}, errors.New("model offline")
	}))
	ctx := context.Background()
	_, err := f.svc.Upload(ctx, f.sess, "d.csv", strings.NewReader(sample))
	require.NoError(t, err)

	first, err := f.svc.Analyze(ctx, f.sess, analysis.ModeBasic)
	require.NoError(t, err)

	res, err := f.svc.Analyze(ctx, f.sess, analysis.ModeBasic)
	assert.ErrorIs(t, err, analysis.ErrAnalysisFailure)
	assert.True(t, res.Failed())

	kept, err := f.svc.Result(f.sess)
	require.NoError(t, err)
	assert.Equal(t, first, kept)
}

func TestCharts(t *testing.T) {
	f := newFixture(t, basicEngine())
	ctx := context.Background()
	_, err := f.svc.Upload(ctx, f.sess, "d.csv", strings.NewReader(sample))
	require.NoError(t, err)

	h, err := f.svc.Histogram(f.sess, "glucose")
	require.NoError(t, err)
	assert.Equal(t, "image/png", h.ContentType)

	_, err = f.svc.Histogram(f.sess, "nope")
	assert.ErrorIs(t, err, dataset.ErrColumnNotFound)

	c, err := f.svc.CorrelationChart(f.sess)
	require.NoError(t, err)
	assert.NotEmpty(t, c.Data)

	_, err = f.svc.ConfusionChart(f.sess)
	assert.ErrorIs(t, err, ErrNoAnalysis)

	_, err = f.svc.Analyze(ctx, f.sess, analysis.ModeBasic)
	require.NoError(t, err)
	_, err = f.svc.ConfusionChart(f.sess)
	assert.ErrorIs(t, err, ErrNoAnalysis)

	_, err = f.svc.Analyze(ctx, f.sess, analysis.ModeDetailed)
	require.NoError(t, err)
	cm, err := f.svc.ConfusionChart(f.sess)
	require.NoError(t, err)
	assert.Equal(t, "confusion_matrix.png", cm.Name)
}

func loaded(t *testing.T, f fixture, mode analysis.Mode) {
	ctx := context.Background()
	_, err := f.svc.Upload(ctx, f.sess, "diabetes.csv", strings.NewReader(sample))
	require.NoError(t, err)
	_, err = f.svc.Analyze(ctx, f.sess, mode)
	require.NoError(t, err)
}

func TestGenerateReport_SavesRecordAndPreview(t *testing.T) {
	f := newFixture(t, basicEngine())
	loaded(t, f, analysis.ModeBasic)

	gen, err := f.svc.GenerateReport(context.Background(), f.sess, GenerateCommand{
		Format:   reports.TypeStandard,
		Sections: []reports.Section{reports.SectionKeyInsights, reports.SectionExecutiveSummary},
	})
	require.NoError(t, err)

	assert.Equal(t, reports.ID(1), gen.ID)
	assert.Equal(t, "/api/v1/reports/1/download", gen.DownloadURL)
	assert.Equal(t, []reports.Section{reports.SectionExecutiveSummary, reports.SectionKeyInsights}, gen.Sections)
	assert.Contains(t, gen.Preview.Markdown, "Total records analyzed: 5")
	assert.Contains(t, gen.Preview.Markdown, "2025-03-04 10:00:00")
	assert.Contains(t, gen.Preview.HTML, "Report Preview</h2>")

	require.Len(t, f.repo.reports, 1)
	rec := f.repo.reports[0]
	assert.Equal(t, gen.Path, rec.ReportPath)
	assert.Equal(t, reports.TypeStandard, rec.Type)
	assert.Equal(t, reports.Metadata{Rows: 5, Columns: 4, FileType: dataset.TypeCSV}, rec.Metadata)

	require.Len(t, f.asm.reqs, 1)
	assert.Equal(t, "/data/uploads/diabetes.csv", f.asm.reqs[0].SourcePath)
}

func TestGenerateReport_AssemblyErrorSavesNothing(t *testing.T) {
	f := newFixture(t, basicEngine())
	loaded(t, f, analysis.ModeBasic)
	f.asm.err = fmt.Errorf("%w: boom", reports.ErrAssembly)

	_, err := f.svc.GenerateReport(context.Background(), f.sess, GenerateCommand{Format: reports.TypeStandard})
	assert.ErrorIs(t, err, reports.ErrAssembly)
	assert.Empty(t, f.repo.reports)
}

func TestGenerateReport_StoreFailureRemovesDocument(t *testing.T) {
	f := newFixture(t, basicEngine())
	loaded(t, f, analysis.ModeBasic)
	f.repo.saveErr = errors.New("database is locked")

	_, err := f.svc.GenerateReport(context.Background(), f.sess, GenerateCommand{Format: reports.TypeStandard})
	assert.ErrorIs(t, err, reports.ErrStorage)

	entries, err := afero.ReadDir(f.fs, "/data/reports")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestDownload(t *testing.T) {
	f := newFixture(t, basicEngine())
	loaded(t, f, analysis.ModeBasic)
	ctx := context.Background()
	gen, err := f.svc.GenerateReport(ctx, f.sess, GenerateCommand{Format: reports.TypeStandard})
	require.NoError(t, err)

	rc, name, err := f.svc.Download(ctx, gen.ID)
	require.NoError(t, err)
	defer rc.Close()
	data, _ := io.ReadAll(rc)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF")))
	assert.Equal(t, "diabetes_standard_report.pdf", name)

	_, _, err = f.svc.Download(ctx, 42)
	assert.ErrorIs(t, err, reports.ErrNotFound)

	require.NoError(t, f.fs.Remove(gen.Path))
	_, _, err = f.svc.Download(ctx, gen.ID)
	assert.ErrorIs(t, err, reports.ErrNotFound)
}

func TestQuickSummary(t *testing.T) {
	f := newFixture(t, basicEngine())
	out, err := f.svc.QuickSummary(context.Background(), "diabetes.csv", strings.NewReader(sample))
	require.NoError(t, err)

	assert.Equal(t, reports.TypeQuickSummary, out.Report.Type)
	assert.Empty(t, out.Report.ReportPath)
	assert.Equal(t, reports.Metadata{Rows: 5, Columns: 4, FileType: dataset.TypeCSV}, out.Report.Metadata)
	assert.Equal(t, out.Report.ID, out.Summary.ReportID)
	assert.Equal(t, "5 records", out.Summary.Text)
	assert.False(t, f.sess.Snapshot().HasDataset())

	_, _, err = f.svc.Download(context.Background(), out.Report.ID)
	assert.ErrorIs(t, err, reports.ErrNotFound)
}

func TestQuickSummary_FailureSavesNothing(t *testing.T) {
	f := newFixture(t, engineFunc(func(context.Context, *dataset.Table, analysis.Mode) (analysis.Result, error) {
		return analysis.NewFailure("quota"), nil
	}))
	_, err := f.svc.QuickSummary(context.Background(), "diabetes.csv", strings.NewReader(sample))
	assert.ErrorIs(t, err, analysis.ErrAnalysisFailure)
	assert.Empty(t, f.repo.reports)
	assert.Empty(t, f.repo.summaries)
}

func TestQuickSummary_StoreFailureSavesNothing(t *testing.T) {
	f := newFixture(t, basicEngine())
	f.repo.summaryErr = errors.New("disk I/O error")

	_, err := f.svc.QuickSummary(context.Background(), "diabetes.csv", strings.NewReader(sample))
	assert.ErrorIs(t, err, reports.ErrStorage)
	assert.Empty(t, f.repo.reports)
	assert.Empty(t, f.repo.summaries)
}

func TestReset(t *testing.T) {
	f := newFixture(t, basicEngine())
	loaded(t, f, analysis.ModeBasic)
	f.svc.Reset(f.sess)
	_, err := f.svc.Overview(f.sess)
	assert.ErrorIs(t, err, ErrNoDataset)
}

func TestPreviewHelpers(t *testing.T) {
	assert.Equal(t, "1,234,567", thousands(1234567))
	assert.Equal(t, "999", thousands(999))
	assert.Equal(t, "Quick summary", titleCase("quick_summary"))
	assert.Equal(t, `a\_b\*c`, escapeMD("a_b*c"))
}
