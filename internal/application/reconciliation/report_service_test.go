package reconciliation_test

import (
	"testing"
	"time"

	"github.com/erp/reconciler/internal/application/reconciliation"
	"github.com/erp/reconciler/internal/domain/ledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// seedLedger builds three entries on two projects:
// 4500001-1 settled, 4500001-2 waiting PAC, 4500002-1 waiting AC
func seedLedger(t *testing.T, f *fixture) *reconciliation.ProjectResponse {
	t.Helper()
	north := f.createProject(t, "North")
	_, err := f.svc.AssignSiteToProject(f.ctx, "NE-001", "North")
	require.NoError(t, err)

	f.ingestPOs(t,
		poLine("4500001", 1, "100", "10", "NE-001", termFull, "2024-01-10"),
		poLine("4500001", 2, "50", "10", "NE-001", termSplit, "2024-02-10"),
		poLine("4500002", 1, "20", "10", "SW-001", termSplit, "2024-02-20"),
	)
	f.mergePOs(t)
	f.ingestAcceptances(t,
		acceptance("4500001", 1, 1, "10", "2024-03-01"),
		acceptance("4500001", 2, 1, "10", "2024-03-15"),
	)
	f.mergeAcceptances(t)
	return north
}

func TestReportService_ListLedger(t *testing.T) {
	f := newFixture(t)
	north := seedLedger(t, f)

	page, err := f.reports.ListLedger(f.ctx, reconciliation.LedgerQuery{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), page.Total)
	require.Len(t, page.Items, 3)
	assert.Equal(t, "4500001-1", page.Items[0].PoID)

	page, err = f.reports.ListLedger(f.ctx, reconciliation.LedgerQuery{ProjectID: north.ID.String()})
	require.NoError(t, err)
	assert.Equal(t, int64(2), page.Total)

	page, err = f.reports.ListLedger(f.ctx, reconciliation.LedgerQuery{Search: "sw-"})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "4500002-1", page.Items[0].PoID)

	// "to" is an inclusive day
	page, err = f.reports.ListLedger(f.ctx, reconciliation.LedgerQuery{PublishedTo: day("2024-02-10")})
	require.NoError(t, err)
	assert.Equal(t, int64(2), page.Total)

	page, err = f.reports.ListLedger(f.ctx, reconciliation.LedgerQuery{Page: 2, PageSize: 2})
	require.NoError(t, err)
	assert.Len(t, page.Items, 1)
	assert.Equal(t, 2, page.TotalPages)
}

func TestReportService_GetLedgerEntry(t *testing.T) {
	f := newFixture(t)
	seedLedger(t, f)

	e, err := f.reports.GetLedgerEntry(f.ctx, "4500001-2")
	require.NoError(t, err)
	assert.Equal(t, ledger.StageWaitingPAC, e.Stage)
	assert.True(t, e.Remaining.Equal(dec("100")))

	_, err = f.reports.GetLedgerEntry(f.ctx, "nope-1")
	assert.ErrorIs(t, err, reconciliation.ErrLedgerEntryNotFound)
}

func TestReportService_Summaries(t *testing.T) {
	f := newFixture(t)
	north := seedLedger(t, f)

	totals, err := f.reports.Summary(f.ctx, reconciliation.SummaryQuery{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), totals.EntryCount)
	assert.True(t, totals.POValue.Equal(dec("1700")))
	assert.True(t, totals.AcceptedAC.Equal(dec("1200")))
	assert.True(t, totals.AcceptedPAC.Equal(dec("200")))
	assert.True(t, totals.Gap.Equal(dec("300")))

	byProject, err := f.reports.SummaryByProject(f.ctx, reconciliation.SummaryQuery{})
	require.NoError(t, err)
	require.Len(t, byProject, 2)
	for _, row := range byProject {
		if row.ProjectID == north.ID {
			assert.Equal(t, "North", row.ProjectName)
			assert.True(t, row.POValue.Equal(dec("1500")))
		} else {
			assert.True(t, row.POValue.Equal(dec("200")))
		}
	}

	periods, err := f.reports.SummaryByPeriod(f.ctx, reconciliation.PeriodQuery{
		Granularity: ledger.GranularityMonth,
		From:        *day("2024-01-01"),
		To:          *day("2024-03-31"),
	})
	require.NoError(t, err)
	require.Len(t, periods, 3)
	assert.Equal(t, "2024-01", periods[0].Label)
	assert.True(t, periods[0].POValue.Equal(dec("1000")))
	assert.True(t, periods[1].POValue.Equal(dec("700")))
	assert.True(t, periods[2].AcceptedAC.Equal(dec("1200")))
	assert.True(t, periods[2].AcceptedPAC.Equal(dec("200")))
}

func TestReportService_SummaryByPeriodRejectsWideRanges(t *testing.T) {
	f := newFixture(t)

	_, err := f.reports.SummaryByPeriod(f.ctx, reconciliation.PeriodQuery{
		Granularity: ledger.GranularityWeek,
		From:        *day("2020-01-01"),
		To:          *day("2024-01-01"),
	})
	require.Error(t, err)

	_, err = f.reports.SummaryByPeriod(f.ctx, reconciliation.PeriodQuery{
		Granularity: ledger.GranularityYear,
		From:        time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		To:          time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	require.Error(t, err)
}

func TestReportService_RemainingToAccept(t *testing.T) {
	f := newFixture(t)
	seedLedger(t, f)

	res, err := f.reports.RemainingToAccept(f.ctx, reconciliation.RemainingQuery{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.Total)
	require.Len(t, res.Items, 2)
	// largest gap first
	assert.Equal(t, "4500002-1", res.Items[0].PoID)
	assert.True(t, res.TotalGap.Equal(dec("300")))

	res, err = f.reports.RemainingToAccept(f.ctx, reconciliation.RemainingQuery{Stage: ledger.StageWaitingPAC})
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.Equal(t, "4500001-2", res.Items[0].PoID)

	_, err = f.reports.RemainingToAccept(f.ctx, reconciliation.RemainingQuery{Stage: ledger.StageSettled})
	assert.ErrorIs(t, err, reconciliation.ErrInvalidStageFilter)
}
