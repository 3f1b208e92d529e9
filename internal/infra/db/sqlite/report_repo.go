package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"

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

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

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
VALUES (?,?,?,?,?,?,?);`
	analysisJSON, metaJSON, err := db.EncodeColumns(rep)
	if err != nil {
		return err
	}
	created := r.Now().UTC()
	res, err := ex.ExecContext(ctx, q,
		rep.Filename, rep.ReportPath, string(rep.Type), string(analysisJSON), string(metaJSON), db.SearchText(rep), created.UnixNano(),
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
VALUES (?,?,?);`
	created := r.Now().UTC()
	res, err := ex.ExecContext(ctx, q, int64(id), text, created.UnixNano())
	if err != nil {
		var se sqlite3.Error
		if errors.As(err, &se) && se.ExtendedCode == sqlite3.ErrConstraintForeignKey {
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

// Search matches the filename or the findings text, never the JSON encoding of the result.
func (r *ReportRepository) Search(ctx context.Context, query string, limit int) ([]*reports.Report, error) {
	// LIKE is case-insensitive for ASCII in SQLite
	const q = `
SELECT ` + reportColumns + `
FROM reports
WHERE filename LIKE ? ESCAPE '\' OR search_text LIKE ? ESCAPE '\'
ORDER BY created_at DESC, id DESC
LIMIT ?;`
	pattern := db.LikePattern(query)
	return r.list(ctx, q, pattern, pattern, db.Limit(limit, db.DefaultSearchLimit))
}

func (r *ReportRepository) Recent(ctx context.Context, limit int) ([]*reports.Report, error) {
	const q = `
SELECT ` + reportColumns + `
FROM reports
ORDER BY created_at DESC, id DESC
LIMIT ?;`
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

func scanReport(s interface{ Scan(...any) error }) (*reports.Report, error) {
	var rep reports.Report
	var id, created int64
	var typ, analysisJSON, metaJSON string
	if err := s.Scan(&id, &rep.Filename, &rep.ReportPath, &typ, &analysisJSON, &metaJSON, &created); err != nil {
		return nil, err
	}
	rep.ID = reports.ID(id)
	rep.Type = reports.Type(typ)
	rep.CreatedAt = time.Unix(0, created).UTC()
	if err := db.DecodeColumns(&rep, []byte(analysisJSON), []byte(metaJSON)); err != nil {
		return nil, err
	}
	return &rep, nil
}

func (r *ReportRepository) Get(ctx context.Context, id reports.ID) (*reports.Details, error) {
	const q = `SELECT ` + reportColumns + ` FROM reports WHERE id = ?;`
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
WHERE report_id = ?
ORDER BY created_at ASC, id ASC;`
	rows, err := r.db.QueryContext(ctx, q, int64(id))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []reports.QuickSummary
	for rows.Next() {
		var s reports.QuickSummary
		var rid, created int64
		if err := rows.Scan(&s.ID, &rid, &s.Text, &created); err != nil {
			return nil, err
		}
		s.ReportID = reports.ID(rid)
		s.CreatedAt = time.Unix(0, created).UTC()
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *ReportRepository) Stats(ctx context.Context, since time.Time) (reports.Stats, error) {
	const q = `
SELECT COUNT(*), COALESCE(SUM(CASE WHEN created_at >= ? THEN 1 ELSE 0 END), 0)
FROM reports;`
	var st reports.Stats
	if err := r.db.QueryRowContext(ctx, q, since.UTC().UnixNano()).Scan(&st.TotalReports, &st.RecentReports); err != nil {
		return reports.Stats{}, err
	}
	return st, nil
}

func (r *ReportRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
