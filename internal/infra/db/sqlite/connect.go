package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// Connect opens (creating if needed) the database file at path with foreign keys enforced.
// SQLite allows one writer, so the pool is capped at a single connection.
func Connect(ctx context.Context, path string) (*sql.DB, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
	}
	q := url.Values{}
	q.Set("_foreign_keys", "on")
	q.Set("_busy_timeout", "5000")
	q.Set("_journal_mode", "WAL")
	db, err := sql.Open("sqlite3", "file:"+path+"?"+q.Encode())
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// created_at is stored as Unix nanoseconds (UTC) so ordering and range filters compare integers.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS reports (
  id               INTEGER PRIMARY KEY AUTOINCREMENT,
  filename         TEXT    NOT NULL,
  report_path      TEXT    NOT NULL DEFAULT '',
  report_type      TEXT    NOT NULL,
  analysis_results TEXT    NOT NULL,
  metadata         TEXT    NOT NULL,
  search_text      TEXT    NOT NULL DEFAULT '',
  created_at       INTEGER NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_reports_created ON reports (created_at DESC, id DESC)`,
	`CREATE TABLE IF NOT EXISTS quick_summaries (
  id           INTEGER PRIMARY KEY AUTOINCREMENT,
  report_id    INTEGER NOT NULL REFERENCES reports(id),
  summary_text TEXT    NOT NULL,
  created_at   INTEGER NOT NULL
)`,
}

func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate step %d: %w", i+1, err)
		}
	}
	return nil
}
