package persistence

import (
	"context"
	"fmt"
	"strings"

	"github.com/erp/reconciler/internal/domain/ledger"
	"github.com/erp/reconciler/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	mergedTable = "merged_purchase_orders"

	// remainingExpr is line value minus accepted AC and PAC, nulls as zero
	remainingExpr = "(line_value - COALESCE(accepted_ac_amount, 0) - COALESCE(accepted_pac_amount, 0))"
)

// GormReportRepository implements ledger.ReportRepository using GORM.
// Every query is plain SQL aggregate syntax shared by postgres and sqlite.
type GormReportRepository struct {
	db *gorm.DB
}

// NewGormReportRepository creates a new GormReportRepository
func NewGormReportRepository(db *gorm.DB) *GormReportRepository {
	return &GormReportRepository{db: db}
}

// List returns a page of ledger entries matching the filter
func (r *GormReportRepository) List(ctx context.Context, filter ledger.LedgerFilter) ([]ledger.MergedPO, int64, error) {
	f := filter.Filter.Normalize()
	query := r.db.WithContext(ctx).Model(&models.MergedPOModel{})
	query = applySummaryFilter(query, ledger.SummaryFilter{
		ProjectID:     filter.ProjectID,
		PublishedFrom: filter.PublishedFrom,
		PublishedTo:   filter.PublishedTo,
	})
	if site := strings.TrimSpace(filter.SiteCode); site != "" {
		query = query.Where("site_code = ?", site)
	}
	if search := strings.TrimSpace(f.Search); search != "" {
		like := "%" + escapeLike(strings.ToLower(search)) + "%"
		query = query.Where(`LOWER(po_id) LIKE ? ESCAPE '\' OR LOWER(site_code) LIKE ? ESCAPE '\' OR LOWER(item_description) LIKE ? ESCAPE '\'`,
			like, like, like)
	}

	query = query.Session(&gorm.Session{})
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	sortField := ValidateSortField(f.OrderBy, LedgerSortFields, "po_id")
	sortOrder := ValidateSortOrder(f.OrderDir)
	var found []models.MergedPOModel
	if err := query.
		Order(fmt.Sprintf("%s %s, po_id ASC", sortField, sortOrder)).
		Offset(f.Offset()).
		Limit(f.PageSize).
		Find(&found).Error; err != nil {
		return nil, 0, err
	}
	return toLedgerEntries(found), total, nil
}

type totalsRow struct {
	EntryCount  int64
	POValue     decimal.NullDecimal
	AcceptedAC  decimal.NullDecimal
	AcceptedPAC decimal.NullDecimal
}

func (row totalsRow) totals() ledger.Totals {
	return ledger.Totals{
		EntryCount:  row.EntryCount,
		POValue:     amount(row.POValue),
		AcceptedAC:  amount(row.AcceptedAC),
		AcceptedPAC: amount(row.AcceptedPAC),
	}.WithGap()
}

const totalsSelect = "COUNT(*) AS entry_count, " +
	"SUM(line_value) AS po_value, " +
	"SUM(COALESCE(accepted_ac_amount, 0)) AS accepted_ac, " +
	"SUM(COALESCE(accepted_pac_amount, 0)) AS accepted_pac"

// Totals sums the ledger under the filter
func (r *GormReportRepository) Totals(ctx context.Context, filter ledger.SummaryFilter) (ledger.Totals, error) {
	var row totalsRow
	query := applySummaryFilter(r.db.WithContext(ctx).Table(mergedTable), filter)
	if err := query.Select(totalsSelect).Scan(&row).Error; err != nil {
		return ledger.Totals{}, err
	}
	return row.totals(), nil
}

// TotalsByProject sums the ledger per internal project, ordered by project name
func (r *GormReportRepository) TotalsByProject(ctx context.Context, filter ledger.SummaryFilter) ([]ledger.ProjectTotals, error) {
	var rows []struct {
		ProjectID   uuid.UUID
		ProjectName string
		EntryCount  int64
		POValue     decimal.NullDecimal
		AcceptedAC  decimal.NullDecimal
		AcceptedPAC decimal.NullDecimal
	}
	query := applySummaryFilter(r.db.WithContext(ctx).Table(mergedTable), filter).
		Select("internal_projects.id AS project_id, internal_projects.name AS project_name, " + totalsSelect).
		Joins("JOIN internal_projects ON internal_projects.id = merged_purchase_orders.internal_project_id").
		Group("internal_projects.id, internal_projects.name").
		Order("internal_projects.name ASC")
	if err := query.Scan(&rows).Error; err != nil {
		return nil, err
	}
	result := make([]ledger.ProjectTotals, len(rows))
	for i, row := range rows {
		result[i] = ledger.ProjectTotals{
			ProjectID:   row.ProjectID,
			ProjectName: row.ProjectName,
			Totals: totalsRow{
				EntryCount:  row.EntryCount,
				POValue:     row.POValue,
				AcceptedAC:  row.AcceptedAC,
				AcceptedPAC: row.AcceptedPAC,
			}.totals(),
		}
	}
	return result, nil
}

// TotalsByPeriod sums the ledger per period with one conditional-aggregation
// query. PO value and entry count bucket by publish date, accepted AC by the
// AC date and accepted PAC by the PAC date.
func (r *GormReportRepository) TotalsByPeriod(ctx context.Context, periods []ledger.Period, filter ledger.SummaryFilter) ([]ledger.PeriodTotals, error) {
	if len(periods) == 0 {
		return []ledger.PeriodTotals{}, nil
	}

	selects := make([]string, 0, len(periods)*4)
	args := make([]any, 0, len(periods)*8)
	for i, p := range periods {
		selects = append(selects,
			fmt.Sprintf("SUM(CASE WHEN publish_date >= ? AND publish_date < ? THEN 1 ELSE 0 END) AS n_%d", i),
			fmt.Sprintf("SUM(CASE WHEN publish_date >= ? AND publish_date < ? THEN line_value ELSE 0 END) AS po_%d", i),
			fmt.Sprintf("SUM(CASE WHEN date_ac_ok >= ? AND date_ac_ok < ? THEN COALESCE(accepted_ac_amount, 0) ELSE 0 END) AS ac_%d", i),
			fmt.Sprintf("SUM(CASE WHEN date_pac_ok >= ? AND date_pac_ok < ? THEN COALESCE(accepted_pac_amount, 0) ELSE 0 END) AS pac_%d", i),
		)
		args = append(args, p.Start, p.End, p.Start, p.End, p.Start, p.End, p.Start, p.End)
	}

	// The period window replaces the publish date range
	query := applySummaryFilter(r.db.WithContext(ctx).Table(mergedTable), ledger.SummaryFilter{ProjectID: filter.ProjectID}).
		Select(strings.Join(selects, ", "), args...)
	rows, err := query.Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	values := make([]decimal.NullDecimal, len(periods)*4)
	dest := make([]any, len(values))
	for i := range values {
		dest[i] = &values[i]
	}
	if rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	result := make([]ledger.PeriodTotals, len(periods))
	for i, p := range periods {
		base := i * 4
		result[i] = ledger.PeriodTotals{
			Period: p,
			Totals: ledger.Totals{
				EntryCount:  amount(values[base]).IntPart(),
				POValue:     amount(values[base+1]),
				AcceptedAC:  amount(values[base+2]),
				AcceptedPAC: amount(values[base+3]),
			}.WithGap(),
		}
	}
	return result, nil
}

// Remaining returns a page of outstanding entries and their summed gap
func (r *GormReportRepository) Remaining(ctx context.Context, filter ledger.RemainingFilter) ([]ledger.MergedPO, int64, decimal.Decimal, error) {
	f := filter.Filter.Normalize()
	// Tolerance is inlined: sqlite compares a bound text parameter as text
	query := r.db.WithContext(ctx).Model(&models.MergedPOModel{}).
		Where(fmt.Sprintf("ABS%s > %s", remainingExpr, ledger.GapTolerance.String()))
	if filter.ProjectID != nil {
		query = query.Where("internal_project_id = ?", *filter.ProjectID)
	}
	switch filter.Stage {
	case ledger.StageWaitingAC:
		query = query.Where("date_ac_ok IS NULL")
	case ledger.StageWaitingPAC:
		query = query.Where("date_ac_ok IS NOT NULL AND date_pac_ok IS NULL")
	case ledger.StagePartialGap:
		query = query.Where("date_ac_ok IS NOT NULL AND date_pac_ok IS NOT NULL")
	}

	var agg struct {
		Total int64
		Gap   decimal.NullDecimal
	}
	if err := query.Session(&gorm.Session{}).
		Select("COUNT(*) AS total, SUM" + remainingExpr + " AS gap").
		Scan(&agg).Error; err != nil {
		return nil, 0, decimal.Zero, err
	}

	order := "po_id ASC"
	switch field := ValidateSortField(f.OrderBy, RemainingSortFields, "remaining"); field {
	case "remaining":
		order = fmt.Sprintf("%s %s, po_id ASC", remainingExpr, ValidateSortOrder(f.OrderDir))
	default:
		order = fmt.Sprintf("%s %s, po_id ASC", field, ValidateSortOrder(f.OrderDir))
	}

	var found []models.MergedPOModel
	if err := query.Session(&gorm.Session{}).
		Order(order).
		Offset(f.Offset()).
		Limit(f.PageSize).
		Find(&found).Error; err != nil {
		return nil, 0, decimal.Zero, err
	}
	return toLedgerEntries(found), agg.Total, amount(agg.Gap), nil
}

// applySummaryFilter narrows a merged_purchase_orders query
func applySummaryFilter(query *gorm.DB, filter ledger.SummaryFilter) *gorm.DB {
	if filter.ProjectID != nil {
		query = query.Where("merged_purchase_orders.internal_project_id = ?", *filter.ProjectID)
	}
	if filter.PublishedFrom != nil {
		query = query.Where("merged_purchase_orders.publish_date >= ?", filter.PublishedFrom.UTC())
	}
	if filter.PublishedTo != nil {
		query = query.Where("merged_purchase_orders.publish_date <= ?", filter.PublishedTo.UTC())
	}
	return query
}

func toLedgerEntries(found []models.MergedPOModel) []ledger.MergedPO {
	entries := make([]ledger.MergedPO, len(found))
	for i := range found {
		entries[i] = *found[i].ToDomain()
	}
	return entries
}

// amount normalizes a nullable SQL aggregate to a 4-place decimal.
// SQLite returns sums as floats, so rounding keeps results comparable.
func amount(d decimal.NullDecimal) decimal.Decimal {
	if !d.Valid {
		return decimal.Zero
	}
	return d.Decimal.Round(4)
}
