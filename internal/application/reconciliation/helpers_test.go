package reconciliation_test

import (
	"context"
	"testing"
	"time"

	"github.com/erp/reconciler/internal/application/reconciliation"
	"github.com/erp/reconciler/internal/domain/ledger"
	"github.com/erp/reconciler/internal/infrastructure/cache"
	"github.com/erp/reconciler/internal/infrastructure/lock"
	"github.com/erp/reconciler/internal/infrastructure/persistence"
	"github.com/erp/reconciler/internal/infrastructure/persistence/testdb"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixture struct {
	ctx     context.Context
	db      *gorm.DB
	locker  *lock.MutexPassLocker
	svc     *reconciliation.Service
	reports *reconciliation.ReportService
}

func newFixture(t *testing.T, opts ...reconciliation.ServiceOption) *fixture {
	t.Helper()
	db := testdb.NewSeededSQLite(t)
	locker := lock.NewMutexPassLocker(200 * time.Millisecond)
	opts = append([]reconciliation.ServiceOption{reconciliation.WithResolverCache(cache.NewResolverCache())}, opts...)
	svc := reconciliation.NewService(
		persistence.NewGormTransactionScope(db),
		locker,
		zap.NewNop(),
		opts...,
	)
	reports := reconciliation.NewReportService(
		persistence.NewGormReportRepository(db),
		persistence.NewGormMergedPORepository(db),
		zap.NewNop(),
	)
	return &fixture{ctx: context.Background(), db: db, locker: locker, svc: svc, reports: reports}
}

func intPtr(v int) *int { return &v }

func day(s string) *time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return &t
}

func amount(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(s))
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func poLine(po string, line int, price, qty, site, term, published string) ledger.RawPOLine {
	l := ledger.RawPOLine{
		PONumber:         po,
		LineNo:           intPtr(line),
		SiteCode:         site,
		ItemDescription:  "Antenna install",
		UnitPrice:        amount(price),
		RequestedQty:     amount(qty),
		PaymentTermLabel: term,
	}
	if published != "" {
		l.PublishDate = day(published)
	}
	return l
}

func acceptance(po string, line, shipment int, qty, processed string) ledger.RawAcceptanceLine {
	return ledger.RawAcceptanceLine{
		PONumber:    po,
		LineNo:      intPtr(line),
		ShipmentNo:  intPtr(shipment),
		AcceptedQty: amount(qty),
		ProcessedAt: day(processed),
	}
}

func (f *fixture) ingestPOs(t *testing.T, lines ...ledger.RawPOLine) *reconciliation.IngestResult {
	t.Helper()
	res, err := f.svc.IngestRawPOs(f.ctx, reconciliation.IngestPOInput{UploadedBy: "tester", FileName: "po.csv", Lines: lines})
	require.NoError(t, err)
	return res
}

func (f *fixture) ingestAcceptances(t *testing.T, lines ...ledger.RawAcceptanceLine) *reconciliation.IngestResult {
	t.Helper()
	res, err := f.svc.IngestRawAcceptances(f.ctx, reconciliation.IngestAcceptanceInput{UploadedBy: "tester", FileName: "acc.csv", Lines: lines})
	require.NoError(t, err)
	return res
}

func (f *fixture) mergePOs(t *testing.T) *reconciliation.MergeResult {
	t.Helper()
	res, err := f.svc.MergeUnprocessedPOs(f.ctx)
	require.NoError(t, err)
	return res
}

func (f *fixture) mergeAcceptances(t *testing.T) *reconciliation.MergeResult {
	t.Helper()
	res, err := f.svc.MergeUnprocessedAcceptances(f.ctx)
	require.NoError(t, err)
	return res
}

func (f *fixture) entry(t *testing.T, poID string) *reconciliation.LedgerEntryResponse {
	t.Helper()
	e, err := f.reports.GetLedgerEntry(f.ctx, poID)
	require.NoError(t, err)
	return e
}

func (f *fixture) createProject(t *testing.T, name string) *reconciliation.ProjectResponse {
	t.Helper()
	p, err := f.svc.CreateProject(f.ctx, reconciliation.CreateProjectInput{Name: name})
	require.NoError(t, err)
	return p
}

func (f *fixture) unprocessedPOs(t *testing.T) int64 {
	t.Helper()
	n, err := persistence.NewGormRawPORepository(f.db).CountUnprocessed(f.ctx)
	require.NoError(t, err)
	return n
}

func (f *fixture) unprocessedAcceptances(t *testing.T) int64 {
	t.Helper()
	n, err := persistence.NewGormRawAcceptanceRepository(f.db).CountUnprocessed(f.ctx)
	require.NoError(t, err)
	return n
}
