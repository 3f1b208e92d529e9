package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/bryanwahyu/medreport/internal/domain/reports"
	"github.com/bryanwahyu/medreport/internal/infra/db"
)

// foreign_key_violation
const codeForeignKey = "23503"

type ReportRepository struct {
	db  *sqlx.DB
	Now func() time.Time
}

func NewReportRepository(conn *sqlx.DB) *ReportRepository {
	return &ReportRepository{db: conn, Now: time.Now}
}

type reportRow struct {
	ID         int64     `db:"id"`
	Filename   string    `db:"filename"`
	ReportPath string    `db:"report_path"`
	ReportType string    `db:"report_type"`
	Analysis   []byte    `db:"analysis_results"`
	Metadata   []byte    `db:"metadata"`
	CreatedAt  time.Time `db:"created_at"`
}

func (row reportRow) toDomain() (*reports.Report, error) {
	rep := &reports.Report{
		ID:         reports.ID(row.ID),
		Filename:   row.Filename,
		ReportPath: row.ReportPath,
		Type:       reports.Type(row.ReportType),
		CreatedAt:  row.CreatedAt.UTC(),
	}
	if err := db.DecodeColumns(rep, row.Analysis, row.Metadata); err != nil {
		return nil, err
	}
	return rep, nil
}

type summaryRow struct {
	ID        int64     `db:"id"`
	ReportID  int64     `db:"report_id"`
	Text      string    `db:"summary_text"`
	CreatedAt time.Time `db:"created_at"`
}

const reportColumns = `id, filename, report_path, report_type, analysis_results, metadata, created_at`

func (r *ReportRepository) now() time.Time {
	return r.Now().UTC().Truncate(time.Microsecond)
}

func (r *ReportRepository) Save(ctx context.Context, rep *reports.Report) error {
	return r.insertReport(ctx, r.db, rep)
}

func (r *ReportRepository) SaveQuickSummary(ctx context.Context, id reports.ID, text string) (*reports.QuickSummary, error) {
	return r.insertSummary(ctx, r.db, id, text)
}

// SaveWithQuickSummary inserts a report and its first summary in one transaction.
func (r *ReportRepository) SaveWithQuickSummary(ctx context.Context, rep *reports.Report, text string) (*reports.QuickSummary, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	saved := *rep
	if err := r.insertReport(ctx, tx, &saved); err != nil {
		return nil, err
	}
	qs, err := r.insertSummary(ctx, tx, saved.ID, text)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	*rep = saved
	return qs, nil
}

func (r *ReportRepository) insertReport(ctx context.Context, q sqlx.QueryerContext, rep *reports.Report) error {
	const stmt = `
INSERT INTO reports (filename, report_path, report_type, analysis_results, metadata, search_text, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
RETURNING id;`
	analysisJSON, metaJSON, err := db.EncodeColumns(rep)
	if err != nil {
		return err
	}
	created := r.now()
	var id int64
	if err := q.QueryRowxContext(ctx, stmt,
		rep.Filename, rep.ReportPath, string(rep.Type), analysisJSON, metaJSON, db.SearchText(rep), created,
	).Scan(&id); err != nil {
		return err
	}
	rep.ID = reports.ID(id)
	rep.CreatedAt = created
	return nil
}

func (r *ReportRepository) insertSummary(ctx context.Context, q sqlx.QueryerContext, id reports.ID, text string) (*reports.QuickSummary, error) {
	const stmt = `
INSERT INTO quick_summaries (report_id, summary_text, created_at)
VALUES ($1,$2,$3)
RETURNING id;`
	created := r.now()
	var sid int64
	if err := q.QueryRowxContext(ctx, stmt, int64(id), text, created).Scan(&sid); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == codeForeignKey {
			return nil, fmt.Errorf("%w: id %d", reports.ErrNotFound, id)
		}
		return nil, err
	}
	return &reports.QuickSummary{ID: sid, ReportID: id, Text: text, CreatedAt: created}, nil
}

// Search matches the filename or the findings text, case-insensitively.
func (r *ReportRepository) Search(ctx context.Context, query string, limit int) ([]*reports.Report, error) {
	const q = `
SELECT ` + reportColumns + `
FROM reports
WHERE filename ILIKE $1 ESCAPE '\' OR search_text ILIKE $1 ESCAPE '\'
ORDER BY created_at DESC, id DESC
LIMIT $2;`
	return r.list(ctx, q, db.LikePattern(query), db.Limit(limit, db.DefaultSearchLimit))
}

func (r *ReportRepository) Recent(ctx context.Context, limit int) ([]*reports.Report, error) {
	const q = `
SELECT ` + reportColumns + `
FROM reports
ORDER BY created_at DESC, id DESC
LIMIT $1;`
	return r.list(ctx, q, db.Limit(limit, 10))
}

func (r *ReportRepository) list(ctx context.Context, q string, args ...any) ([]*reports.Report, error) {
	var rows []reportRow
	if err := r.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, err
	}
	out := make([]*reports.Report, 0, len(rows))
	for _, row := range rows {
		rep, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, rep)
	}
	return out, nil
}

func (r *ReportRepository) Get(ctx context.Context, id reports.ID) (*reports.Details, error) {
	const q = `SELECT ` + reportColumns + ` FROM reports WHERE id = $1;`
	var row reportRow
	if err := r.db.GetContext(ctx, &row, q, int64(id)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: id %d", reports.ErrNotFound, id)
		}
		return nil, err
	}
	rep, err := row.toDomain()
	if err != nil {
		return nil, err
	}
	sums, err := r.Summaries(ctx, id)
	if err != nil {
		return nil, err
	}
	return &reports.Details{Report: *rep, Summaries: sums}, nil
}

func (r *ReportRepository) Summaries(ctx context.Context, id reports.ID) ([]reports.QuickSummary, error) {
	const q = `
SELECT id, report_id, summary_text, created_at
FROM quick_summaries
WHERE report_id = $1
ORDER BY created_at ASC, id ASC;`
	var rows []summaryRow
	if err := r.db.SelectContext(ctx, &rows, q, int64(id)); err != nil {
		return nil, err
	}
	out := make([]reports.QuickSummary, 0, len(rows))
	for _, s := range rows {
		out = append(out, reports.QuickSummary{ID: s.ID, ReportID: reports.ID(s.ReportID), Text: s.Text, CreatedAt: s.CreatedAt.UTC()})
	}
	return out, nil
}

func (r *ReportRepository) Stats(ctx context.Context, since time.Time) (reports.Stats, error) {
	const q = `
SELECT COUNT(*) AS total_reports,
       COUNT(*) FILTER (WHERE created_at >= $1) AS recent_reports
FROM reports;`
	var st struct {
		Total  int `db:"total_reports"`
		Recent int `db:"recent_reports"`
	}
	if err := r.db.GetContext(ctx, &st, q, since.UTC()); err != nil {
		return reports.Stats{}, err
	}
	return reports.Stats{TotalReports: st.Total, RecentReports: st.Recent}, nil
}

func (r *ReportRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
