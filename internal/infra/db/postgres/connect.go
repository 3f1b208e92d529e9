package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

func Connect(ctx context.Context, dsn string) (*sqlx.DB, error) {
	ctx2, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	db, err := sqlx.ConnectContext(ctx2, "postgres", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	return db, nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS reports (
  id               BIGSERIAL PRIMARY KEY,
  filename         TEXT        NOT NULL,
  report_path      TEXT        NOT NULL DEFAULT '',
  report_type      TEXT        NOT NULL,
  analysis_results JSONB       NOT NULL,
  metadata         JSONB       NOT NULL,
  search_text      TEXT        NOT NULL DEFAULT '',
  created_at       TIMESTAMPTZ NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_reports_created ON reports (created_at DESC, id DESC)`,
	`CREATE TABLE IF NOT EXISTS quick_summaries (
  id           BIGSERIAL PRIMARY KEY,
  report_id    BIGINT      NOT NULL REFERENCES reports(id),
  summary_text TEXT        NOT NULL,
  created_at   TIMESTAMPTZ NOT NULL
)`,
}

func Migrate(ctx context.Context, db *sqlx.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate step %d: %w", i+1, err)
		}
	}
	return nil
}
