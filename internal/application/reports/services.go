package reports

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bryanwahyu/medreport/internal/application"
	domain "github.com/bryanwahyu/medreport/internal/domain/reports"
)

// RecentWindow is the period counted as "recent" in the sidebar stats.
const RecentWindow = 24 * time.Hour

// DefaultHistory is how many records the history page lists without a query.
const DefaultHistory = 10

type Service struct {
	Repo  domain.Repository
	Clock application.Clock
}

func NewService(repo domain.Repository, clock application.Clock) *Service {
	if clock == nil {
		clock = application.SystemClock{}
	}
	return &Service{Repo: repo, Clock: clock}
}

// storageErr keeps ErrNotFound as is and tags everything else as ErrStorage.
func storageErr(op string, err error) error {
	if err == nil || errors.Is(err, domain.ErrNotFound) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", domain.ErrStorage, op, err)
}

func (s *Service) SaveReport(ctx context.Context, r *domain.Report) error {
	if r.Analysis.IsZero() {
		return fmt.Errorf("save report: empty analysis result")
	}
	return storageErr("save report", s.Repo.Save(ctx, r))
}

func (s *Service) SaveQuickSummary(ctx context.Context, id domain.ID, text string) (*domain.QuickSummary, error) {
	qs, err := s.Repo.SaveQuickSummary(ctx, id, text)
	return qs, storageErr("save quick summary", err)
}

// SaveQuickSummaryReport records a quick summary report together with its summary text.
func (s *Service) SaveQuickSummaryReport(ctx context.Context, r *domain.Report, text string) (*domain.QuickSummary, error) {
	if r.Analysis.IsZero() {
		return nil, fmt.Errorf("save quick summary: empty analysis result")
	}
	qs, err := s.Repo.SaveWithQuickSummary(ctx, r, text)
	return qs, storageErr("save quick summary", err)
}

func (s *Service) Search(ctx context.Context, q string, limit int) ([]*domain.Report, error) {
	out, err := s.Repo.Search(ctx, q, limit)
	return out, storageErr("search reports", err)
}

func (s *Service) Recent(ctx context.Context, limit int) ([]*domain.Report, error) {
	if limit <= 0 {
		limit = DefaultHistory
	}
	out, err := s.Repo.Recent(ctx, limit)
	return out, storageErr("recent reports", err)
}

func (s *Service) Details(ctx context.Context, id domain.ID) (*domain.Details, error) {
	d, err := s.Repo.Get(ctx, id)
	return d, storageErr("report details", err)
}

// History lists reports with their quick summaries: a search when q is set, the most recent otherwise.
func (s *Service) History(ctx context.Context, q string, limit int) ([]*domain.Details, error) {
	var list []*domain.Report
	var err error
	if q != "" {
		list, err = s.Search(ctx, q, limit)
	} else {
		list, err = s.Recent(ctx, limit)
	}
	if err != nil {
		return nil, err
	}
	out := make([]*domain.Details, 0, len(list))
	for _, r := range list {
		sums, err := s.Repo.Summaries(ctx, r.ID)
		if err != nil {
			return nil, storageErr("report summaries", err)
		}
		out = append(out, &domain.Details{Report: *r, Summaries: sums})
	}
	return out, nil
}

func (s *Service) SummaryStats(ctx context.Context) (domain.Stats, error) {
	st, err := s.Repo.Stats(ctx, s.Clock.Now().Add(-RecentWindow))
	return st, storageErr("report stats", err)
}
