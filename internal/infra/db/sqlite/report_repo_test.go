package sqlite

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/bryanwahyu/medreport/internal/domain/analysis"
	"github.com/bryanwahyu/medreport/internal/domain/reports"
)

func newRepo(t *testing.T) (*ReportRepository, *time.Time) {
	ctx := context.Background()
	conn, err := Connect(ctx, filepath.Join(t.TempDir(), "reports.db"))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, Migrate(ctx, conn))

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	r := NewReportRepository(conn)
	r.Now = func() time.Time { return now }
	return r, &now
}

func save(t *testing.T, r *ReportRepository, filename string, insights ...string) *reports.Report {
	res, err := analysis.NewSuccess(analysis.Success{Insights: insights})
	require.NoError(t, err)
	rep := &reports.Report{
		Filename: filename,
		Type:     reports.TypeQuickSummary,
		Analysis: res,
		Metadata: reports.Metadata{Rows: 100, Columns: 5, FileType: "text/csv"},
	}
	require.NoError(t, r.Save(context.Background(), rep))
	return rep
}

func TestRecent_TieBreaksOnID(t *testing.T) {
	r, _ := newRepo(t)
	a := save(t, r, "a.csv", "first")
	b := save(t, r, "b.csv", "second")
	assert.Greater(t, b.ID, a.ID)
	assert.Equal(t, a.CreatedAt, b.CreatedAt)

	out, err := r.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, b.ID, out[0].ID)
	assert.Equal(t, a.ID, out[1].ID)

	out, err = r.Recent(context.Background(), 1)
	require.NoError(t, err)
	assert.Len(t, out, 1)
}

func TestSaveAndGet_RoundTrip(t *testing.T) {
	r, _ := newRepo(t)
	rep := save(t, r, "cohort.csv", "glucose is elevated")

	qs, err := r.SaveQuickSummary(context.Background(), rep.ID, "glucose is elevated")
	require.NoError(t, err)
	assert.Equal(t, rep.ID, qs.ReportID)

	d, err := r.Get(context.Background(), rep.ID)
	require.NoError(t, err)
	assert.Equal(t, "cohort.csv", d.Filename)
	assert.Equal(t, reports.Metadata{Rows: 100, Columns: 5, FileType: "text/csv"}, d.Metadata)
	assert.Equal(t, rep.CreatedAt, d.CreatedAt)
	assert.Equal(t, "glucose is elevated", d.Analysis.Text())
	require.Len(t, d.Summaries, 1)
	assert.Equal(t, "glucose is elevated", d.Summaries[0].Text)
}

func TestSaveQuickSummary_MissingParent(t *testing.T) {
	r, _ := newRepo(t)
	_, err := r.SaveQuickSummary(context.Background(), 999, "orphan")
	assert.ErrorIs(t, err, reports.ErrNotFound)

	out, err := r.Summaries(context.Background(), 999)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestGet_NotFound(t *testing.T) {
	r, _ := newRepo(t)
	_, err := r.Get(context.Background(), 12345)
	assert.ErrorIs(t, err, reports.ErrNotFound)
}

func TestSearch(t *testing.T) {
	r, _ := newRepo(t)
	save(t, r, "diabetes.csv", "BMI correlates with glucose")
	save(t, r, "heart.csv", "cholesterol is high")
	save(t, r, "100%_sample.csv", "plain")

	out, err := r.Search(context.Background(), "GLUCOSE", 0)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "diabetes.csv", out[0].Filename)

	out, err = r.Search(context.Background(), "heart", 0)
	require.NoError(t, err)
	require.Len(t, out, 1)

	out, err = r.Search(context.Background(), "%_", 0)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "100%_sample.csv", out[0].Filename)
}

func TestSearch_IgnoresEncodingOfResult(t *testing.T) {
	r, _ := newRepo(t)
	save(t, r, "cohort.csv", "glucose elevated")

	for _, q := range []string{"insights", "mode", "basic", `"`, ":", "{", "risk_factors"} {
		out, err := r.Search(context.Background(), q, 0)
		require.NoError(t, err)
		assert.Empty(t, out, q)
	}

	out, err := r.Search(context.Background(), "Elevated", 0)
	require.NoError(t, err)
	assert.Len(t, out, 1)
}

func TestSave_SameFilenameGetsDistinctRecords(t *testing.T) {
	r, _ := newRepo(t)
	a := save(t, r, "cohort.csv", "first upload")
	b := save(t, r, "cohort.csv", "second upload")
	assert.NotEqual(t, a.ID, b.ID)

	first, err := r.Get(context.Background(), a.ID)
	require.NoError(t, err)
	second, err := r.Get(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, "cohort.csv", second.Filename)
	assert.Equal(t, "first upload", first.Analysis.Text())
	assert.Equal(t, "second upload", second.Analysis.Text())
}

func TestSaveWithQuickSummary(t *testing.T) {
	r, _ := newRepo(t)
	res, err := analysis.NewSuccess(analysis.Success{Insights: []string{"bmi above 30"}})
	require.NoError(t, err)
	rep := &reports.Report{Filename: "cohort.csv", Type: reports.TypeQuickSummary, Analysis: res}

	qs, err := r.SaveWithQuickSummary(context.Background(), rep, "bmi above 30")
	require.NoError(t, err)
	assert.NotZero(t, rep.ID)
	assert.Equal(t, rep.ID, qs.ReportID)

	d, err := r.Get(context.Background(), rep.ID)
	require.NoError(t, err)
	require.Len(t, d.Summaries, 1)
}

func TestSaveWithQuickSummary_RollsBack(t *testing.T) {
	r, _ := newRepo(t)
	_, err := r.db.Exec(`CREATE TRIGGER reject_summaries BEFORE INSERT ON quick_summaries
BEGIN SELECT RAISE(ABORT, 'summaries disabled'); END;`)
	require.NoError(t, err)

	res, err := analysis.NewSuccess(analysis.Success{Insights: []string{"bmi above 30"}})
	require.NoError(t, err)
	rep := &reports.Report{Filename: "cohort.csv", Type: reports.TypeQuickSummary, Analysis: res}

	_, err = r.SaveWithQuickSummary(context.Background(), rep, "bmi above 30")
	assert.ErrorContains(t, err, "summaries disabled")
	assert.Zero(t, rep.ID)

	out, err := r.Recent(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestConcurrentCallers(t *testing.T) {
	r, _ := newRepo(t)
	res, err := analysis.NewSuccess(analysis.Success{Insights: []string{"shared finding"}})
	require.NoError(t, err)

	const writers = 8
	var g errgroup.Group
	for i := 0; i < writers; i++ {
		name := fmt.Sprintf("batch_%d.csv", i)
		g.Go(func() error {
			return r.Save(context.Background(), &reports.Report{Filename: name, Type: reports.TypeStandard, Analysis: res})
		})
		g.Go(func() error {
			_, err := r.Search(context.Background(), "shared", 0)
			return err
		})
		g.Go(func() error {
			_, err := r.Recent(context.Background(), 5)
			return err
		})
	}
	require.NoError(t, g.Wait())

	out, err := r.Search(context.Background(), "shared", 0)
	require.NoError(t, err)
	require.Len(t, out, writers)
	seen := map[reports.ID]bool{}
	for _, rep := range out {
		seen[rep.ID] = true
	}
	assert.Len(t, seen, writers)
}

func TestStats(t *testing.T) {
	r, now := newRepo(t)
	save(t, r, "old.csv", "x")
	*now = now.Add(48 * time.Hour)
	save(t, r, "new.csv", "y")

	st, err := r.Stats(context.Background(), now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, reports.Stats{TotalReports: 2, RecentReports: 1}, st)
}
