package persistence

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/erp/reconciler/internal/domain/ledger"
	"github.com/erp/reconciler/internal/domain/shared"
	"github.com/erp/reconciler/internal/infrastructure/persistence/testdb"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEntry(po string, line int, site string, projectID uuid.UUID) *ledger.MergedPO {
	return ledger.NewMergedPO(ledger.IncomingLine{
		Key:               ledger.POKey{PONumber: po, LineNo: line},
		SiteCode:          site,
		ItemDescription:   "Transport of equipment",
		UnitPrice:         decimal.NewFromInt(100),
		RequestedQty:      decimal.NewFromInt(10),
		PublishDate:       timePtr("2024-01-10T00:00:00Z"),
		PaymentTerm:       ledger.PaymentTermAC80PAC20,
		InternalProjectID: projectID,
	})
}

func TestGormMergedPORepository_FindByPoIDsForUpdateLocksOnPostgres(t *testing.T) {
	db, mock, mockDB := newMockDatabase(t)
	defer mockDB.Close()

	id := uuid.New()
	mock.ExpectQuery(`SELECT \* FROM "merged_purchase_orders" WHERE po_id IN \(\$1,\$2\) ORDER BY po_id ASC FOR UPDATE$`).
		WithArgs("PO-1-1", "PO-1-2").
		WillReturnRows(sqlmock.NewRows([]string{"id", "po_id", "po_number", "po_line_no", "line_value"}).
			AddRow(id.String(), "PO-1-1", "PO-1", 1, "1000.0000"))

	found, err := NewGormMergedPORepository(db.DB).FindByPoIDsForUpdate(context.Background(), []string{"PO-1-1", "PO-1-2"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, id, found["PO-1-1"].ID)
	assert.True(t, found["PO-1-1"].LineValue.Equal(decimal.NewFromInt(1000)))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormMergedPORepository_ReassignProjectIsSetBased(t *testing.T) {
	db, mock, mockDB := newMockDatabase(t)
	defer mockDB.Close()

	repo := NewGormMergedPORepository(db.DB)
	from, to := uuid.New(), uuid.New()
	ids := []uuid.UUID{uuid.New(), uuid.New()}

	mock.ExpectExec(`UPDATE "merged_purchase_orders" SET "internal_project_id"=\$1,"updated_at"=\$2 WHERE id IN \(\$3,\$4\) AND internal_project_id = \$5`).
		WillReturnResult(sqlmock.NewResult(0, 2))

	n, err := repo.ReassignProject(context.Background(), ids, from, to)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormMergedPORepository_Lifecycle(t *testing.T) {
	ctx := context.Background()
	repo := NewGormMergedPORepository(testdb.NewSQLite(t))
	tbd, other := uuid.New(), uuid.New()

	a := newEntry("PO-1", 1, "JKT-001", tbd)
	b := newEntry("PO-1", 2, "BDG-002", tbd)
	c := newEntry("PO-2", 1, "JKT-003", other)
	require.NoError(t, repo.Create(ctx, []*ledger.MergedPO{a, b, c}))

	t.Run("find by po id", func(t *testing.T) {
		got, err := repo.FindByPoID(ctx, "PO-1-1")
		require.NoError(t, err)
		assert.Equal(t, a.ID, got.ID)
		assert.Equal(t, "Transportation", got.Category)
		assert.True(t, got.LineValue.Equal(decimal.NewFromInt(1000)))
		assert.False(t, got.TotalACAmount.Valid)

		_, err = repo.FindByPoID(ctx, "PO-404-1")
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("update writes null and zero values", func(t *testing.T) {
		got, err := repo.FindByPoID(ctx, "PO-1-2")
		require.NoError(t, err)
		got.RequestedQty = decimal.Zero
		got.LineValue = decimal.Zero
		got.AcceptedACAmount = decimal.NewNullDecimal(decimal.NewFromInt(5))
		require.NoError(t, repo.Update(ctx, got))

		reloaded, err := repo.FindByPoID(ctx, "PO-1-2")
		require.NoError(t, err)
		assert.True(t, reloaded.LineValue.IsZero())
		assert.True(t, reloaded.AcceptedACAmount.Decimal.Equal(decimal.NewFromInt(5)))
	})

	t.Run("update of unknown entry", func(t *testing.T) {
		ghost := newEntry("PO-9", 9, "X", tbd)
		assert.ErrorIs(t, repo.Update(ctx, ghost), shared.ErrNotFound)
	})

	t.Run("duplicate po id", func(t *testing.T) {
		dup := newEntry("PO-1", 1, "JKT-001", tbd)
		assert.ErrorIs(t, repo.Create(ctx, []*ledger.MergedPO{dup}), shared.ErrAlreadyExists)
	})

	t.Run("batch lookup", func(t *testing.T) {
		found, err := repo.FindByPoIDsForUpdate(ctx, []string{"PO-1-1", "PO-2-1", "PO-3-1"})
		require.NoError(t, err)
		assert.Len(t, found, 2)
		assert.Contains(t, found, "PO-2-1")
	})

	t.Run("reassign only moves entries still on the source project", func(t *testing.T) {
		candidates, err := repo.FindByProject(ctx, tbd)
		require.NoError(t, err)
		require.Len(t, candidates, 2)
		assert.Equal(t, "JKT-001", candidates[0].SiteCode)

		target := uuid.New()
		n, err := repo.ReassignProject(ctx, []uuid.UUID{a.ID, c.ID}, tbd, target)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		got, err := repo.FindByPoID(ctx, "PO-2-1")
		require.NoError(t, err)
		assert.Equal(t, other, got.InternalProjectID)
	})

	t.Run("reassign sites", func(t *testing.T) {
		target := uuid.New()
		n, err := repo.ReassignSites(ctx, []string{"BDG-002", "JKT-003", "NOPE"}, target)
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)

		n, err = repo.ReassignSites(ctx, []string{"BDG-002"}, target)
		require.NoError(t, err)
		assert.Zero(t, n, "entries already on the project are not rewritten")
	})
}
