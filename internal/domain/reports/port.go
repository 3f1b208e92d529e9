package reports

import (
	"context"
	"strings"
	"time"

	"github.com/bryanwahyu/medreport/internal/domain/analysis"
)

// Repository port (interface untuk persistence)
type Repository interface {
	// Save inserts r in one statement and fills in r.ID and r.CreatedAt.
	Save(ctx context.Context, r *Report) error
	// SaveQuickSummary returns ErrNotFound when the parent report does not exist.
	SaveQuickSummary(ctx context.Context, id ID, text string) (*QuickSummary, error)
	// SaveWithQuickSummary stores r and its first summary atomically: either both rows exist
	// afterwards or neither does. r.ID and r.CreatedAt are set only on success.
	SaveWithQuickSummary(ctx context.Context, r *Report, text string) (*QuickSummary, error)
	// Search matches q as a substring of the filename or the findings text, newest first.
	Search(ctx context.Context, q string, limit int) ([]*Report, error)
	Recent(ctx context.Context, limit int) ([]*Report, error)
	Get(ctx context.Context, id ID) (*Details, error)
	Summaries(ctx context.Context, id ID) ([]QuickSummary, error)
	Stats(ctx context.Context, since time.Time) (Stats, error)
	Ping(ctx context.Context) error
}

// Section of a generated document.
type Section string

const (
	SectionExecutiveSummary    Section = "Executive Summary"
	SectionDataOverview        Section = "Data Overview"
	SectionKeyInsights         Section = "Key Insights"
	SectionVisualizations      Section = "Visualizations"
	SectionStatisticalAnalysis Section = "Statistical Analysis"
	SectionPredictions         Section = "Predictions"
	SectionRecommendations     Section = "Recommendations"
)

// AllSections in document order.
var AllSections = []Section{
	SectionExecutiveSummary,
	SectionDataOverview,
	SectionKeyInsights,
	SectionVisualizations,
	SectionStatisticalAnalysis,
	SectionPredictions,
	SectionRecommendations,
}

// DefaultSections are used when a standard report names none.
var DefaultSections = []Section{
	SectionExecutiveSummary,
	SectionDataOverview,
	SectionKeyInsights,
	SectionVisualizations,
}

// ParseSection matches a section by its title, case-insensitively.
func ParseSection(s string) (Section, bool) {
	for _, sec := range AllSections {
		if strings.EqualFold(string(sec), strings.TrimSpace(s)) {
			return sec, true
		}
	}
	return "", false
}

// SelectSections keeps document order; the detailed format always carries every section.
func SelectSections(format Type, requested []Section) []Section {
	if format == TypeDetailed {
		return AllSections
	}
	var out []Section
	for _, s := range AllSections {
		if HasSection(requested, s) {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return DefaultSections
	}
	return out
}

func HasSection(list []Section, s Section) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// GenerateRequest is the input of an Assembler.
type GenerateRequest struct {
	SourcePath string
	Filename   string
	Result     analysis.Result
	Format     Type
	Sections   []Section
}

// Assembler port (interface untuk bikin dokumen laporan). Generate returns the artifact path.
type Assembler interface {
	Generate(ctx context.Context, req GenerateRequest) (string, error)
}
