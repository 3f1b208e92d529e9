package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

func Connect(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	// test ping
	ctx2, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx2); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS reports (
  id               BIGINT AUTO_INCREMENT PRIMARY KEY,
  filename         VARCHAR(255)  NOT NULL,
  report_path      VARCHAR(1024) NOT NULL DEFAULT '',
  report_type      VARCHAR(32)   NOT NULL,
  analysis_results JSON          NOT NULL,
  metadata         JSON          NOT NULL,
  search_text      MEDIUMTEXT    NOT NULL,
  created_at       DATETIME(6)   NOT NULL,
  INDEX idx_reports_created (created_at, id)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS quick_summaries (
  id           BIGINT AUTO_INCREMENT PRIMARY KEY,
  report_id    BIGINT      NOT NULL,
  summary_text TEXT        NOT NULL,
  created_at   DATETIME(6) NOT NULL,
  CONSTRAINT fk_quick_summaries_report FOREIGN KEY (report_id) REFERENCES reports(id)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// Migrate creates the report tables if they do not exist. Statements run one at a time
// since the driver does not enable multiStatements.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate step %d: %w", i+1, err)
		}
	}
	return nil
}
