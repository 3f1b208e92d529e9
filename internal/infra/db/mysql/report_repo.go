package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/bryanwahyu/medreport/internal/domain/reports"
	"github.com/bryanwahyu/medreport/internal/infra/db"
)

type ReportRepository struct {
	db  *sql.DB
	Now func() time.Time
}

func NewReportRepository(conn *sql.DB) *ReportRepository {
	return &ReportRepository{db: conn, Now: time.Now}
}

const reportColumns = `id, filename, report_path, report_type, analysis_results, metadata, created_at`

func (r *ReportRepository) now() time.Time {
	return r.Now().UTC().Truncate(time.Microsecond)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Save inserts one report row
func (r *ReportRepository) Save(ctx context.Context, rep *reports.Report) error {
	return r.insertReport(ctx, r.db, rep)
}

func (r *ReportRepository) SaveQuickSummary(ctx context.Context, id reports.ID, text string) (*reports.QuickSummary, error) {
	return r.insertSummary(ctx, r.db, id, text)
}

// SaveWithQuickSummary inserts a report and its first summary in one transaction.
func (r *ReportRepository) SaveWithQuickSummary(ctx context.Context, rep *reports.Report, text string) (*reports.QuickSummary, error) {
	tx, err := r.db.BeginTx(ctx, nil)
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

func (r *ReportRepository) insertReport(ctx context.Context, ex execer, rep *reports.Report) error {
	const q = `
INSERT INTO reports (filename, report_path, report_type, analysis_results, metadata, search_text, created_at)
VALUES (?,?,?,?,?,?,?);
`
	analysisJSON, metaJSON, err := db.EncodeColumns(rep)
	if err != nil {
		return err
	}
	created := r.now()
	res, err := ex.ExecContext(ctx, q,
		rep.Filename, rep.ReportPath, string(rep.Type), analysisJSON, metaJSON, db.SearchText(rep), created,
	)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	rep.ID = reports.ID(id)
	rep.CreatedAt = created
	return nil
}

func (r *ReportRepository) insertSummary(ctx context.Context, ex execer, id reports.ID, text string) (*reports.QuickSummary, error) {
	const q = `
INSERT INTO quick_summaries (report_id, summary_text, created_at)
VALUES (?,?,?);
`
	created := r.now()
	res, err := ex.ExecContext(ctx, q, int64(id), text, created)
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, fmt.Errorf("%w: id %d", reports.ErrNotFound, id)
		}
		return nil, err
	}
	sid, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &reports.QuickSummary{ID: sid, ReportID: id, Text: text, CreatedAt: created}, nil
}

// Search by substring on filename or the findings text
func (r *ReportRepository) Search(ctx context.Context, query string, limit int) ([]*reports.Report, error) {
	const q = `
SELECT ` + reportColumns + `
FROM reports
WHERE filename LIKE ? ESCAPE '\\' OR search_text LIKE ? ESCAPE '\\'
ORDER BY created_at DESC, id DESC
LIMIT ?;
`
	pattern := db.LikePattern(query)
	return r.list(ctx, q, pattern, pattern, db.Limit(limit, db.DefaultSearchLimit))
}

// Recent reports, newest first
func (r *ReportRepository) Recent(ctx context.Context, limit int) ([]*reports.Report, error) {
	const q = `
SELECT ` + reportColumns + `
FROM reports
ORDER BY created_at DESC, id DESC
LIMIT ?;
`
	return r.list(ctx, q, db.Limit(limit, 10))
}

func (r *ReportRepository) list(ctx context.Context, q string, args ...any) ([]*reports.Report, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*reports.Report
	for rows.Next() {
		rep, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rep)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanReport(s scanner) (*reports.Report, error) {
	var rep reports.Report
	var id int64
	var typ string
	var analysisJSON, metaJSON []byte
	if err := s.Scan(&id, &rep.Filename, &rep.ReportPath, &typ, &analysisJSON, &metaJSON, &rep.CreatedAt); err != nil {
		return nil, err
	}
	rep.ID = reports.ID(id)
	rep.Type = reports.Type(typ)
	if err := db.DecodeColumns(&rep, analysisJSON, metaJSON); err != nil {
		return nil, err
	}
	return &rep, nil
}

// Get by ID, with quick summaries
func (r *ReportRepository) Get(ctx context.Context, id reports.ID) (*reports.Details, error) {
	const q = `
SELECT ` + reportColumns + `
FROM reports
WHERE id=? LIMIT 1;
`
	rep, err := scanReport(r.db.QueryRowContext(ctx, q, int64(id)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: id %d", reports.ErrNotFound, id)
	}
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
WHERE report_id=?
ORDER BY created_at ASC, id ASC;
`
	rows, err := r.db.QueryContext(ctx, q, int64(id))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []reports.QuickSummary
	for rows.Next() {
		var s reports.QuickSummary
		var rid int64
		if err := rows.Scan(&s.ID, &rid, &s.Text, &s.CreatedAt); err != nil {
			return nil, err
		}
		s.ReportID = reports.ID(rid)
		out = append(out, s)
	}
	return out, rows.Err()
}

// Stats counts all reports and those created since the cutoff
func (r *ReportRepository) Stats(ctx context.Context, since time.Time) (reports.Stats, error) {
	const q = `
SELECT COUNT(*) AS total_reports,
       COALESCE(SUM(CASE WHEN created_at >= ? THEN 1 ELSE 0 END),0) AS recent_reports
FROM reports;
`
	var st reports.Stats
	if err := r.db.QueryRowContext(ctx, q, since.UTC()).Scan(&st.TotalReports, &st.RecentReports); err != nil {
		return reports.Stats{}, err
	}
	return st, nil
}

func (r *ReportRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
