package dashboard

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/bryanwahyu/medreport/internal/application"
	appanalysis "github.com/bryanwahyu/medreport/internal/application/analysis"
	appreports "github.com/bryanwahyu/medreport/internal/application/reports"
	"github.com/bryanwahyu/medreport/internal/application/session"
	"github.com/bryanwahyu/medreport/internal/domain/analysis"
	"github.com/bryanwahyu/medreport/internal/domain/artifacts"
	"github.com/bryanwahyu/medreport/internal/domain/dataset"
	"github.com/bryanwahyu/medreport/internal/domain/reports"
)

// DefaultMaxUpload is used when Service.MaxUpload is not set.
const DefaultMaxUpload = 200 << 20

// ChartRenderer port (interface untuk gambar chart)
type ChartRenderer interface {
	Histogram(t *dataset.Table, column string) (artifacts.Artifact, error)
	Correlation(t *dataset.Table) (artifacts.Artifact, error)
	Confusion(classes []string, cm [][]int) (artifacts.Artifact, error)
}

// Service implements the page actions of the dashboard on top of a per-user session.
type Service struct {
	Uploads   artifacts.Area
	Reports   artifacts.Area
	Analysis  *appanalysis.Service
	Store     *appreports.Service
	Assembler reports.Assembler
	Charts    ChartRenderer
	Clock     application.Clock
	MaxUpload int64
}

// Overview is what the data page shows after an upload.
type Overview struct {
	Filename string        `json:"filename"`
	FileType string        `json:"file_type"`
	Stats    dataset.Stats `json:"stats"`
	Columns  []ColumnInfo  `json:"columns"`
	Preview  [][]string    `json:"preview"`
}

type ColumnInfo struct {
	Name    string       `json:"name"`
	Kind    dataset.Kind `json:"kind"`
	Missing int          `json:"missing"`
}

// Generated describes a freshly assembled and saved report.
type Generated struct {
	ID          reports.ID        `json:"id"`
	Path        string            `json:"report_path"`
	Filename    string            `json:"filename"`
	Sections    []reports.Section `json:"sections"`
	DownloadURL string            `json:"download_url"`
	Preview     Preview           `json:"preview"`
}

// QuickSummaryResult is returned by the quick summary flow.
type QuickSummaryResult struct {
	Report  *reports.Report       `json:"report"`
	Summary *reports.QuickSummary `json:"summary"`
}

// GenerateCommand selects the report format and, for the standard format, its sections.
type GenerateCommand struct {
	Format   reports.Type
	Sections []reports.Section
}

func (s *Service) now() application.Clock {
	if s.Clock == nil {
		return application.SystemClock{}
	}
	return s.Clock
}

// Upload stores the raw file, parses it and makes it the session's dataset. A parse
// failure leaves the session untouched.
func (s *Service) Upload(ctx context.Context, sess *session.Session, filename string, r io.Reader) (*Overview, error) {
	name := uploadName(filename)
	path, tbl, err := s.load(ctx, name, r)
	if err != nil {
		return nil, err
	}
	sess.SetDataset(path, name, tbl)
	zerolog.Ctx(ctx).Info().
		Str("session", sess.ID).
		Str("file", name).
		Int("records", tbl.Records()).
		Int("features", tbl.Features()).
		Msg("dataset loaded")
	return overview(name, tbl), nil
}

// uploadName keeps the base name of a client supplied path.
func uploadName(filename string) string {
	return filepath.Base(strings.ReplaceAll(filename, `\`, "/"))
}

// load persists the raw bytes before parsing them.
func (s *Service) load(ctx context.Context, name string, r io.Reader) (string, *dataset.Table, error) {
	if !dataset.Supported(name) {
		return "", nil, &dataset.FormatError{File: name, Err: errors.New("unsupported file type, expected .csv or .xlsx")}
	}
	data, err := readLimited(r, s.maxUpload())
	if err != nil {
		return "", nil, err
	}
	path, err := s.Uploads.Put(ctx, name, bytes.NewReader(data), int64(len(data)), dataset.FileType(name))
	if err != nil {
		return "", nil, fmt.Errorf("save upload %s: %w", name, err)
	}
	tbl, err := dataset.Parse(name, bytes.NewReader(data))
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("file", name).Msg("upload rejected")
		return "", nil, err
	}
	return path, tbl, nil
}

func (s *Service) maxUpload() int64 {
	if s.MaxUpload <= 0 {
		return DefaultMaxUpload
	}
	return s.MaxUpload
}

func readLimited(r io.Reader, max int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, max+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > max {
		return nil, fmt.Errorf("%w: limit is %d bytes", ErrTooLarge, max)
	}
	return data, nil
}

func overview(filename string, t *dataset.Table) *Overview {
	o := &Overview{
		Filename: filename,
		FileType: dataset.FileType(filename),
		Stats:    t.Stats(),
		Preview:  t.Head(5),
	}
	for _, c := range t.Columns {
		o.Columns = append(o.Columns, ColumnInfo{Name: c.Name, Kind: c.Kind, Missing: c.MissingCount()})
	}
	return o
}

func (s *Service) dataset(sess *session.Session) (session.Snapshot, error) {
	snap := sess.Snapshot()
	if !snap.HasDataset() {
		return snap, ErrNoDataset
	}
	return snap, nil
}

func (s *Service) Overview(sess *session.Session) (*Overview, error) {
	snap, err := s.dataset(sess)
	if err != nil {
		return nil, err
	}
	return overview(snap.Filename, snap.Table), nil
}

func (s *Service) Describe(sess *session.Session) ([]dataset.Summary, error) {
	snap, err := s.dataset(sess)
	if err != nil {
		return nil, err
	}
	return dataset.Describe(snap.Table), nil
}

// Analyze runs the engine on the session's dataset. Only a successful result is kept.
func (s *Service) Analyze(ctx context.Context, sess *session.Session, mode analysis.Mode) (analysis.Result, error) {
	snap, err := s.dataset(sess)
	if err != nil {
		return analysis.Result{}, err
	}
	res, err := s.Analysis.Run(ctx, snap.Table, mode)
	if err != nil {
		return res, err
	}
	if !sess.SetResult(snap.Table, res) {
		zerolog.Ctx(ctx).Warn().Str("session", sess.ID).Msg("dataset replaced during analysis, result dropped")
	}
	return res, nil
}

func (s *Service) Result(sess *session.Session) (analysis.Result, error) {
	snap := sess.Snapshot()
	if snap.Result.IsZero() {
		return analysis.Result{}, ErrNoAnalysis
	}
	return snap.Result, nil
}

func (s *Service) Histogram(sess *session.Session, column string) (artifacts.Artifact, error) {
	snap, err := s.dataset(sess)
	if err != nil {
		return artifacts.Artifact{}, err
	}
	return s.Charts.Histogram(snap.Table, column)
}

func (s *Service) CorrelationChart(sess *session.Session) (artifacts.Artifact, error) {
	snap, err := s.dataset(sess)
	if err != nil {
		return artifacts.Artifact{}, err
	}
	return s.Charts.Correlation(snap.Table)
}

func (s *Service) ConfusionChart(sess *session.Session) (artifacts.Artifact, error) {
	res, err := s.Result(sess)
	if err != nil {
		return artifacts.Artifact{}, err
	}
	succ, _ := res.Success()
	if succ.Predictions == nil || len(succ.ConfusionMatrix) == 0 {
		return artifacts.Artifact{}, fmt.Errorf("%w: no confusion matrix in the current analysis", ErrNoAnalysis)
	}
	return s.Charts.Confusion(succ.Predictions.Classes, succ.ConfusionMatrix)
}

// GenerateReport assembles a document from the session state and records it. When the
// record cannot be saved the document is removed again.
func (s *Service) GenerateReport(ctx context.Context, sess *session.Session, cmd GenerateCommand) (*Generated, error) {
	log := zerolog.Ctx(ctx)
	snap, err := s.dataset(sess)
	if err != nil {
		return nil, err
	}
	if snap.Result.IsZero() {
		return nil, ErrNoAnalysis
	}

	path, err := s.Assembler.Generate(ctx, reports.GenerateRequest{
		SourcePath: snap.UploadPath,
		Filename:   snap.Filename,
		Result:     snap.Result,
		Format:     cmd.Format,
		Sections:   cmd.Sections,
	})
	if err != nil {
		return nil, err
	}

	rec := &reports.Report{
		Filename:   snap.Filename,
		ReportPath: path,
		Type:       cmd.Format,
		Analysis:   snap.Result,
		Metadata:   metadata(snap.Filename, snap.Table),
	}
	if err := s.Store.SaveReport(ctx, rec); err != nil {
		if rmErr := s.Reports.Remove(ctx, path); rmErr != nil {
			log.Error().Err(rmErr).Str("report", path).Msg("remove unsaved report")
		}
		return nil, err
	}

	sections := reports.SelectSections(cmd.Format, cmd.Sections)
	log.Info().Int64("report_id", int64(rec.ID)).Str("format", string(cmd.Format)).Msg("report saved")
	return &Generated{
		ID:          rec.ID,
		Path:        path,
		Filename:    filepath.Base(path),
		Sections:    sections,
		DownloadURL: fmt.Sprintf("/api/v1/reports/%d/download", rec.ID),
		Preview: buildPreview(previewInput{
			generated: s.now().Now(),
			filename:  snap.Filename,
			format:    cmd.Format,
			sections:  sections,
			records:   snap.Table.Records(),
			features:  snap.Table.Features(),
			mode:      string(snap.Result.Mode()),
		}),
	}, nil
}

func metadata(filename string, t *dataset.Table) reports.Metadata {
	return reports.Metadata{
		Rows:     t.Records(),
		Columns:  t.Features(),
		FileType: dataset.FileType(filename),
	}
}

// Download opens the document of a saved report. Quick summaries have no document.
func (s *Service) Download(ctx context.Context, id reports.ID) (io.ReadCloser, string, error) {
	d, err := s.Store.Details(ctx, id)
	if err != nil {
		return nil, "", err
	}
	if d.ReportPath == "" {
		return nil, "", fmt.Errorf("%w: report %d has no document", reports.ErrNotFound, id)
	}
	rc, err := s.Reports.Open(ctx, d.ReportPath)
	if errors.Is(err, artifacts.ErrNotFound) {
		return nil, "", fmt.Errorf("%w: %v", reports.ErrNotFound, err)
	}
	if err != nil {
		return nil, "", fmt.Errorf("%w: open report: %w", reports.ErrStorage, err)
	}
	return rc, filepath.Base(d.ReportPath), nil
}

// QuickSummary loads a file outside the session, runs a basic analysis and records the
// insights. A failed analysis or a failed save records nothing.
func (s *Service) QuickSummary(ctx context.Context, filename string, r io.Reader) (*QuickSummaryResult, error) {
	name := uploadName(filename)
	_, tbl, err := s.load(ctx, name, r)
	if err != nil {
		return nil, err
	}
	res, err := s.Analysis.Run(ctx, tbl, analysis.ModeBasic)
	if err != nil {
		return nil, err
	}

	rec := &reports.Report{
		Filename: name,
		Type:     reports.TypeQuickSummary,
		Analysis: res,
		Metadata: metadata(name, tbl),
	}
	qs, err := s.Store.SaveQuickSummaryReport(ctx, rec, summaryText(res))
	if err != nil {
		return nil, err
	}
	return &QuickSummaryResult{Report: rec, Summary: qs}, nil
}

// summaryText joins the insights of a basic result, one per line.
func summaryText(res analysis.Result) string {
	succ, _ := res.Success()
	return strings.Join(succ.Insights, "\n")
}

func (s *Service) History(ctx context.Context, q string, limit int) ([]*reports.Details, error) {
	return s.Store.History(ctx, q, limit)
}

func (s *Service) Details(ctx context.Context, id reports.ID) (*reports.Details, error) {
	return s.Store.Details(ctx, id)
}

func (s *Service) Stats(ctx context.Context) (reports.Stats, error) {
	return s.Store.SummaryStats(ctx)
}

// Reset clears the session's dataset and analysis. Uploaded files stay in the upload area.
func (s *Service) Reset(sess *session.Session) {
	sess.Clear()
}
