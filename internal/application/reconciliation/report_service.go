package reconciliation

import (
	"context"
	"errors"

	"github.com/erp/reconciler/internal/domain/ledger"
	"github.com/erp/reconciler/internal/domain/shared"
	"go.uber.org/zap"
)

// ReportService is the read side of the ledger: listings, summaries and the
// outstanding view. It never writes.
type ReportService struct {
	reports ledger.ReportRepository
	entries ledger.MergedPORepository
	logger  *zap.Logger
}

// NewReportService creates a new ReportService
func NewReportService(reports ledger.ReportRepository, entries ledger.MergedPORepository, logger *zap.Logger) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportService{
		reports: reports,
		entries: entries,
		logger:  logger,
	}
}

// ===================== Ledger =====================

// ListLedger returns a page of ledger entries
func (s *ReportService) ListLedger(ctx context.Context, query LedgerQuery) (*shared.Paginated[LedgerEntryResponse], error) {
	filter := query.filter()
	entries, total, err := s.reports.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	f := filter.Filter.Normalize()
	page := shared.NewPaginated(toLedgerEntryResponses(entries), total, f.Page, f.PageSize)
	return &page, nil
}

// GetLedgerEntry returns one entry by its PO line identifier
func (s *ReportService) GetLedgerEntry(ctx context.Context, poID string) (*LedgerEntryResponse, error) {
	entry, err := s.entries.FindByPoID(ctx, poID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, ErrLedgerEntryNotFound
		}
		return nil, err
	}
	resp := ToLedgerEntryResponse(entry)
	return &resp, nil
}

// ===================== Summaries =====================

// Summary returns the totals of every entry the query matches
func (s *ReportService) Summary(ctx context.Context, query SummaryQuery) (*ledger.Totals, error) {
	totals, err := s.reports.Totals(ctx, query.filter())
	if err != nil {
		return nil, err
	}
	totals = totals.WithGap()
	return &totals, nil
}

// SummaryByProject returns totals per internal project
func (s *ReportService) SummaryByProject(ctx context.Context, query SummaryQuery) ([]ledger.ProjectTotals, error) {
	rows, err := s.reports.TotalsByProject(ctx, query.filter())
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []ledger.ProjectTotals{}
	}
	return rows, nil
}

// SummaryByPeriod returns totals per year, month or week between From and
// To inclusive
func (s *ReportService) SummaryByPeriod(ctx context.Context, query PeriodQuery) ([]ledger.PeriodTotals, error) {
	periods, err := ledger.BuildPeriods(query.Granularity, query.From, *endOfDay(&query.To))
	if err != nil {
		return nil, err
	}
	rows, err := s.reports.TotalsByPeriod(ctx, periods, ledger.SummaryFilter{
		ProjectID: parseOptionalID(query.ProjectID),
	})
	if err != nil {
		return nil, err
	}
	s.logger.Debug("Period summary computed",
		zap.String("granularity", string(query.Granularity)),
		zap.Int("periods", len(periods)),
	)
	return rows, nil
}

// ===================== Outstanding =====================

// RemainingToAccept returns the outstanding entries, largest gap first by
// default, with the gap summed over every matching entry
func (s *ReportService) RemainingToAccept(ctx context.Context, query RemainingQuery) (*RemainingResponse, error) {
	if query.Stage != "" && !query.Stage.IsOutstanding() {
		return nil, ErrInvalidStageFilter
	}

	filter := ledger.RemainingFilter{
		Filter: shared.Filter{
			Page:     query.Page,
			PageSize: query.PageSize,
			OrderBy:  query.OrderBy,
			OrderDir: query.OrderDir,
		},
		Stage:     query.Stage,
		ProjectID: parseOptionalID(query.ProjectID),
	}
	entries, total, gap, err := s.reports.Remaining(ctx, filter)
	if err != nil {
		return nil, err
	}
	f := filter.Filter.Normalize()
	return &RemainingResponse{
		Paginated: shared.NewPaginated(toLedgerEntryResponses(entries), total, f.Page, f.PageSize),
		TotalGap:  gap,
	}, nil
}
