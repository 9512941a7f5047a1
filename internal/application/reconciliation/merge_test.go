package reconciliation_test

import (
	"testing"

	"github.com/erp/reconciler/internal/application/reconciliation"
	"github.com/erp/reconciler/internal/domain/ledger"
	"github.com/erp/reconciler/internal/domain/shared"
	"github.com/erp/reconciler/internal/infrastructure/persistence/testdb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const termSplit = "AC1 80 | PAC 20"
const termFull = "AC PAC 100%"

func TestMergeUnprocessedPOs_CreatesEntriesOnTBD(t *testing.T) {
	f := newFixture(t)
	f.ingestPOs(t,
		poLine("4500001", 1, "100", "10", "NE-001", termSplit, "2024-01-10"),
		poLine("4500001", 2, "12.5", "4", "NE-002", termFull, "2024-01-10"),
	)

	res := f.mergePOs(t)
	assert.Equal(t, reconciliation.ReasonMerged, res.Reason)
	assert.Equal(t, 2, res.Fetched)
	assert.Equal(t, 2, res.Created)
	assert.Equal(t, 2, res.Merged)
	assert.Equal(t, int64(2), res.Processed)

	e := f.entry(t, "4500001-1")
	assert.True(t, e.LineValue.Equal(dec("1000")))
	assert.Equal(t, ledger.PaymentTermAC80PAC20, e.PaymentTerm)
	assert.Equal(t, testdb.TBDProjectID, e.InternalProjectID)
	assert.Equal(t, ledger.StageWaitingAC, e.Stage)

	e = f.entry(t, "4500001-2")
	assert.True(t, e.LineValue.Equal(dec("50")))
	assert.Equal(t, ledger.PaymentTermACPAC100, e.PaymentTerm)
}

func TestMergeUnprocessedPOs_Idempotent(t *testing.T) {
	f := newFixture(t)
	f.ingestPOs(t, poLine("4500001", 1, "100", "10", "NE-001", termSplit, "2024-01-10"))
	f.mergePOs(t)

	res := f.mergePOs(t)
	assert.Equal(t, reconciliation.ReasonNoPendingRows, res.Reason)
	assert.Zero(t, res.Merged)

	// the same upload again leaves the ledger as it is
	f.ingestPOs(t, poLine("4500001", 1, "100", "10", "NE-001", termSplit, "2024-01-10"))
	res = f.mergePOs(t)
	assert.Equal(t, reconciliation.ReasonNothingMerged, res.Reason)
	assert.Equal(t, 1, res.Unchanged)
	assert.Zero(t, f.unprocessedPOs(t))
}

func TestMergeUnprocessedPOs_LatestPublishDateWins(t *testing.T) {
	f := newFixture(t)
	f.ingestPOs(t,
		poLine("4500001", 1, "100", "10", "NE-001", termSplit, "2024-01-10"),
		poLine("4500001", 1, "100", "12", "NE-001", termSplit, "2024-02-10"),
		poLine("4500001", 1, "100", "8", "NE-001", termSplit, ""),
	)

	res := f.mergePOs(t)
	assert.Equal(t, 1, res.Created)
	assert.Equal(t, 2, res.Duplicates)
	assert.Equal(t, int64(3), res.Processed)

	e := f.entry(t, "4500001-1")
	assert.True(t, e.RequestedQty.Equal(dec("12")))
	assert.True(t, e.LineValue.Equal(dec("1200")))
}

func TestMergeUnprocessedPOs_LaterUploadOverwrites(t *testing.T) {
	f := newFixture(t)
	f.ingestPOs(t, poLine("4500001", 1, "100", "10", "NE-001", termSplit, "2024-02-01"))
	f.mergePOs(t)

	// a later upload wins even when it carries an earlier publish date
	f.ingestPOs(t, poLine("4500001", 1, "100", "7", "NE-001", termSplit, "2024-01-01"))
	res := f.mergePOs(t)
	assert.Equal(t, 1, res.Updated)
	assert.True(t, f.entry(t, "4500001-1").LineValue.Equal(dec("700")))

	f.ingestPOs(t, poLine("4500001", 1, "90", "20", "NE-001", termSplit, "2024-03-01"))
	res = f.mergePOs(t)
	assert.Equal(t, 1, res.Updated)
	assert.True(t, f.entry(t, "4500001-1").LineValue.Equal(dec("1800")))
}

func TestMergeUnprocessedPOs_CancellationWithoutPublishDate(t *testing.T) {
	f := newFixture(t)
	f.ingestPOs(t, poLine("4500001", 1, "100", "10", "NE-001", termSplit, "2024-01-10"))
	f.mergePOs(t)

	f.ingestPOs(t, poLine("4500001", 1, "100", "0", "NE-001", termSplit, ""))
	res := f.mergePOs(t)
	assert.Equal(t, reconciliation.ReasonMerged, res.Reason)
	assert.Equal(t, 1, res.Updated)

	e := f.entry(t, "4500001-1")
	assert.True(t, e.RequestedQty.IsZero())
	assert.True(t, e.LineValue.IsZero())
	assert.Zero(t, f.unprocessedPOs(t))
}

func TestMergeUnprocessedPOs_SkipsMalformedRows(t *testing.T) {
	f := newFixture(t)
	bad := poLine("4500001", 1, "100", "10", "NE-001", termSplit, "2024-01-10")
	bad.LineNo = nil
	f.ingestPOs(t, bad, poLine("4500002", 1, "100", "1", "NE-001", termSplit, "2024-01-10"))

	res := f.mergePOs(t)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, 1, res.Created)
	assert.Equal(t, int64(2), res.Processed)
	assert.Zero(t, f.unprocessedPOs(t))
}

func TestMergeUnprocessedPOs_UnknownCustomerProjectStaysPending(t *testing.T) {
	f := newFixture(t)
	line := poLine("4500001", 1, "100", "10", "NE-001", termSplit, "2024-01-10")
	line.CustomerProjectLabel = "CP-77"
	f.ingestPOs(t, line)

	res := f.mergePOs(t)
	assert.Equal(t, 1, res.Unresolved)
	assert.Zero(t, res.Merged)
	assert.Contains(t, res.FirstError, "CP-77")
	assert.Equal(t, int64(1), f.unprocessedPOs(t))

	_, err := f.svc.CreateCustomerProject(f.ctx, reconciliation.CreateCustomerProjectInput{Code: "CP-77", Name: "Metro"})
	require.NoError(t, err)

	res = f.mergePOs(t)
	assert.Equal(t, 1, res.Created)
	assert.NotNil(t, f.entry(t, "4500001-1").CustomerProjectID)
	assert.Zero(t, f.unprocessedPOs(t))
}

func TestMergeUnprocessedPOs_FetchLimitRotatesPastUnresolved(t *testing.T) {
	f := newFixture(t, reconciliation.WithFetchLimit(1))
	blocked := poLine("4500001", 1, "100", "10", "NE-001", termSplit, "2024-01-10")
	blocked.CustomerProjectLabel = "CP-77"
	f.ingestPOs(t, blocked, poLine("4500002", 1, "50", "2", "NE-002", termSplit, "2024-01-10"))

	res := f.mergePOs(t)
	assert.Equal(t, 1, res.Unresolved)

	res = f.mergePOs(t)
	assert.Equal(t, 1, res.Created)
	assert.True(t, f.entry(t, "4500002-1").LineValue.Equal(dec("100")))
	assert.Equal(t, int64(1), f.unprocessedPOs(t))
}

func TestMergeUnprocessedPOs_FetchLimitKeepsDuplicatesTogether(t *testing.T) {
	f := newFixture(t, reconciliation.WithFetchLimit(1))
	f.ingestPOs(t,
		poLine("4500001", 1, "100", "10", "NE-001", termSplit, "2024-02-01"),
		poLine("4500001", 1, "100", "3", "NE-001", termSplit, "2024-01-01"),
	)

	res := f.mergePOs(t)
	assert.Equal(t, 1, res.Created)
	assert.Equal(t, 1, res.Duplicates)
	assert.True(t, f.entry(t, "4500001-1").RequestedQty.Equal(dec("10")))
	assert.Zero(t, f.unprocessedPOs(t))
}

func TestMergeUnprocessedPOs_ResolverPrecedence(t *testing.T) {
	f := newFixture(t)
	north := f.createProject(t, "North")
	pinned := f.createProject(t, "Pinned")

	_, err := f.svc.CreateRule(f.ctx, reconciliation.CreateRuleInput{
		Name:              "north sites",
		TargetProjectName: "North",
		SitePrefix:        "NE-",
	})
	require.NoError(t, err)
	_, err = f.svc.AssignSiteToProject(f.ctx, "NE-009", "Pinned")
	require.NoError(t, err)

	f.ingestPOs(t,
		poLine("4500001", 1, "1", "1", "NE-001", termSplit, "2024-01-10"),
		poLine("4500001", 2, "1", "1", "NE-009", termSplit, "2024-01-10"),
		poLine("4500001", 3, "1", "1", "SW-001", termSplit, "2024-01-10"),
	)
	f.mergePOs(t)

	assert.Equal(t, north.ID, f.entry(t, "4500001-1").InternalProjectID)
	assert.Equal(t, pinned.ID, f.entry(t, "4500001-2").InternalProjectID)
	assert.Equal(t, testdb.TBDProjectID, f.entry(t, "4500001-3").InternalProjectID)
}

func TestMergeUnprocessedPOs_PassInProgress(t *testing.T) {
	f := newFixture(t)
	f.ingestPOs(t, poLine("4500001", 1, "100", "10", "NE-001", termSplit, "2024-01-10"))

	release, err := f.locker.Acquire(f.ctx, "ledger")
	require.NoError(t, err)
	defer release()

	res, err := f.svc.MergeUnprocessedPOs(f.ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrPassInProgress)
	assert.Equal(t, reconciliation.ReasonFailed, res.Reason)
	assert.Equal(t, int64(1), f.unprocessedPOs(t))
}

func TestMergeAcceptances_ACPAC100SettlesOnShipmentOne(t *testing.T) {
	f := newFixture(t)
	f.ingestPOs(t, poLine("4500001", 1, "100", "10", "NE-001", termFull, "2024-01-10"))
	f.mergePOs(t)

	f.ingestAcceptances(t, acceptance("4500001", 1, 1, "10", "2024-03-05"))
	res := f.mergeAcceptances(t)
	assert.Equal(t, 1, res.Updated)

	e := f.entry(t, "4500001-1")
	assert.True(t, e.AcceptedACAmount.Decimal.Equal(dec("800")))
	assert.True(t, e.AcceptedPACAmount.Decimal.Equal(dec("200")))
	require.NotNil(t, e.DateACOK)
	require.NotNil(t, e.DatePACOK)
	assert.True(t, e.DateACOK.Equal(*e.DatePACOK))
	assert.True(t, e.Remaining.IsZero())
	assert.Equal(t, ledger.StageSettled, e.Stage)
}

func TestMergeAcceptances_SplitTermsWaitForPAC(t *testing.T) {
	f := newFixture(t)
	f.ingestPOs(t, poLine("4500001", 1, "100", "10", "NE-001", termSplit, "2024-01-10"))
	f.mergePOs(t)

	f.ingestAcceptances(t, acceptance("4500001", 1, 1, "10", "2024-03-05"))
	f.mergeAcceptances(t)

	e := f.entry(t, "4500001-1")
	assert.True(t, e.AcceptedACAmount.Decimal.Equal(dec("800")))
	assert.False(t, e.AcceptedPACAmount.Valid)
	assert.Equal(t, ledger.StageWaitingPAC, e.Stage)
	assert.True(t, e.Remaining.Equal(dec("200")))

	f.ingestAcceptances(t, acceptance("4500001", 1, 2, "10", "2024-06-01"))
	f.mergeAcceptances(t)

	e = f.entry(t, "4500001-1")
	assert.True(t, e.AcceptedPACAmount.Decimal.Equal(dec("200")))
	assert.Equal(t, ledger.StageSettled, e.Stage)
}

func TestMergeAcceptances_SumsAcrossUploads(t *testing.T) {
	f := newFixture(t)
	f.ingestPOs(t, poLine("4500001", 1, "100", "10", "NE-001", termSplit, "2024-01-10"))
	f.mergePOs(t)

	f.ingestAcceptances(t, acceptance("4500001", 1, 1, "4", "2024-03-05"))
	f.mergeAcceptances(t)
	assert.True(t, f.entry(t, "4500001-1").AcceptedACAmount.Decimal.Equal(dec("320")))

	f.ingestAcceptances(t, acceptance("4500001", 1, 1, "6", "2024-03-20"))
	f.mergeAcceptances(t)

	e := f.entry(t, "4500001-1")
	assert.True(t, e.AcceptedACAmount.Decimal.Equal(dec("800")))
	require.NotNil(t, e.DateACOK)
	assert.True(t, e.DateACOK.Equal(*day("2024-03-20")))

	// rerunning over the same history does not count a row twice
	res := f.mergeAcceptances(t)
	assert.Equal(t, reconciliation.ReasonNoPendingRows, res.Reason)
	assert.True(t, f.entry(t, "4500001-1").AcceptedACAmount.Decimal.Equal(dec("800")))
}

func TestMergeAcceptances_WaitsForPO(t *testing.T) {
	f := newFixture(t)
	f.ingestAcceptances(t, acceptance("4500001", 1, 1, "10", "2024-03-05"))

	res := f.mergeAcceptances(t)
	assert.Equal(t, 1, res.Unresolved)
	assert.Equal(t, int64(1), f.unprocessedAcceptances(t))

	f.ingestPOs(t, poLine("4500001", 1, "100", "10", "NE-001", termSplit, "2024-01-10"))
	f.mergePOs(t)
	res = f.mergeAcceptances(t)
	assert.Equal(t, 1, res.Updated)
	assert.Zero(t, f.unprocessedAcceptances(t))
	assert.Equal(t, ledger.StageWaitingPAC, f.entry(t, "4500001-1").Stage)
}

func TestMergeAcceptances_FetchLimitRotatesPastUnresolved(t *testing.T) {
	f := newFixture(t, reconciliation.WithFetchLimit(1))
	f.ingestPOs(t, poLine("4500001", 1, "100", "10", "NE-001", termSplit, "2024-01-10"))
	f.mergePOs(t)

	f.ingestAcceptances(t,
		acceptance("9999999", 1, 1, "5", "2024-03-01"),
		acceptance("4500001", 1, 1, "10", "2024-03-05"),
	)

	res := f.mergeAcceptances(t)
	assert.Equal(t, 1, res.Unresolved)

	res = f.mergeAcceptances(t)
	assert.Equal(t, 1, res.Updated)
	require.NotNil(t, f.entry(t, "4500001-1").DateACOK)
	assert.Equal(t, int64(1), f.unprocessedAcceptances(t))
}

func TestMergeAcceptances_SkipsMalformedRows(t *testing.T) {
	f := newFixture(t)
	bad := acceptance("4500001", 1, 1, "10", "2024-03-05")
	bad.ProcessedAt = nil
	f.ingestAcceptances(t, bad)

	res := f.mergeAcceptances(t)
	assert.Equal(t, 1, res.Skipped)
	assert.Zero(t, f.unprocessedAcceptances(t))
}
