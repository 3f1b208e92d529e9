package reports

import (
	"fmt"
	"time"

	"github.com/bryanwahyu/medreport/internal/domain/analysis"
)

// ID tipe untuk Report, diisi oleh store
type ID int64

// Type enum
type Type string

const (
	TypeQuickSummary Type = "quick_summary"
	TypeStandard     Type = "standard"
	TypeDetailed     Type = "detailed"
)

// ParseType validates a report type string.
func ParseType(s string) (Type, error) {
	switch t := Type(s); t {
	case TypeQuickSummary, TypeStandard, TypeDetailed:
		return t, nil
	}
	return "", fmt.Errorf("unknown report type %q", s)
}

// Metadata value object
type Metadata struct {
	Rows     int    `json:"rows"`
	Columns  int    `json:"columns"`
	FileType string `json:"file_type"`
}

// Aggregate Root: Report. Append-only; ID and CreatedAt are assigned by the store.
type Report struct {
	ID         ID              `json:"id"`
	Filename   string          `json:"filename"`
	ReportPath string          `json:"report_path"`
	Type       Type            `json:"report_type"`
	Analysis   analysis.Result `json:"analysis_results"`
	Metadata   Metadata        `json:"metadata"`
	CreatedAt  time.Time       `json:"created_at"`
}

// QuickSummary is short text bound to exactly one existing Report.
type QuickSummary struct {
	ID        int64     `json:"id"`
	ReportID  ID        `json:"report_id"`
	Text      string    `json:"summary_text"`
	CreatedAt time.Time `json:"created_at"`
}

// Details is a report with its quick summaries, oldest first.
type Details struct {
	Report
	Summaries []QuickSummary `json:"summaries"`
}

// Stats for the history sidebar
type Stats struct {
	TotalReports  int `json:"total_reports"`
	RecentReports int `json:"recent_reports"`
}
