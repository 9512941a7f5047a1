package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/erp/reconciler/internal/domain/ledger"
	"github.com/erp/reconciler/internal/infrastructure/persistence/testdb"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

func timePtr(s string) *time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return &t
}

func nullDec(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(s))
}

func rawPOLine(po string, line int, qty string) ledger.RawPOLine {
	return ledger.RawPOLine{
		UploadedBy:       "tester",
		PONumber:         po,
		LineNo:           intPtr(line),
		SiteCode:         "SITE-1",
		ItemDescription:  "Site survey",
		UnitPrice:        nullDec("100"),
		RequestedQty:     nullDec(qty),
		PublishDate:      timePtr("2024-01-10T00:00:00Z"),
		PaymentTermLabel: "AC1 80% | PAC 20%",
		PaymentTerm:      ledger.PaymentTermAC80PAC20,
	}
}

func TestGormRawPORepository_FetchUnprocessedLocksOnPostgres(t *testing.T) {
	db, mock, mockDB := newMockDatabase(t)
	defer mockDB.Close()

	mock.ExpectQuery(`SELECT \* FROM "raw_purchase_order_lines" WHERE processed = \$1 ORDER BY CASE WHEN attempted_at IS NULL THEN 0 ELSE 1 END, attempted_at ASC, id ASC LIMIT .+ FOR UPDATE SKIP LOCKED`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "po_number", "po_line_no", "processed", "payment_term"}).
			AddRow(7, "PO-1", 1, false, "AC_PAC_100"))
	mock.ExpectQuery(`SELECT \* FROM "raw_purchase_order_lines" WHERE .*po_number IN \(\$2\) AND id NOT IN \(\$3\).* FOR UPDATE SKIP LOCKED`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "po_number", "po_line_no", "processed", "payment_term"}).
			AddRow(12, "PO-1", 2, false, "AC_PAC_100"))

	rows, err := NewGormRawPORepository(db.DB).FetchUnprocessed(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, int64(7), rows[0].ID)
	assert.Equal(t, int64(12), rows[1].ID)
	assert.Equal(t, ledger.PaymentTermACPAC100, rows[0].PaymentTerm)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormRawPORepository_Queue(t *testing.T) {
	ctx := context.Background()
	repo := NewGormRawPORepository(testdb.NewSQLite(t))

	batchID := uuid.New()
	rows := []ledger.RawPOLine{
		rawPOLine("PO-1", 1, "2"),
		rawPOLine("PO-1", 1, "3"),
		rawPOLine("PO-2", 1, "1"),
	}
	for i := range rows {
		rows[i].BatchID = &batchID
	}
	require.NoError(t, repo.CreateBatch(ctx, rows))
	assert.NotZero(t, rows[0].ID)
	assert.Less(t, rows[0].ID, rows[1].ID)
	assert.Less(t, rows[1].ID, rows[2].ID)

	pending, err := repo.FetchUnprocessed(ctx, 0)
	require.NoError(t, err)
	require.Len(t, pending, 3)
	assert.Equal(t, rows[0].ID, pending[0].ID)
	assert.True(t, pending[0].RequestedQty.Decimal.Equal(decimal.NewFromInt(2)))
	assert.Equal(t, batchID, *pending[0].BatchID)
	assert.True(t, pending[0].PublishDate.Equal(*timePtr("2024-01-10T00:00:00Z")))

	limited, err := repo.FetchUnprocessed(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	marked, err := repo.MarkProcessed(ctx, []int64{rows[0].ID, rows[1].ID})
	require.NoError(t, err)
	assert.Equal(t, int64(2), marked)

	again, err := repo.MarkProcessed(ctx, []int64{rows[0].ID})
	require.NoError(t, err)
	assert.Zero(t, again, "already processed rows are not touched")

	count, err := repo.CountUnprocessed(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	pending, err = repo.FetchUnprocessed(ctx, 0)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "PO-2", pending[0].PONumber)
}

func TestGormRawPORepository_AttemptedRowsMoveToBack(t *testing.T) {
	ctx := context.Background()
	repo := NewGormRawPORepository(testdb.NewSQLite(t))

	rows := []ledger.RawPOLine{
		rawPOLine("PO-1", 1, "1"),
		rawPOLine("PO-2", 1, "1"),
		rawPOLine("PO-3", 1, "1"),
	}
	require.NoError(t, repo.CreateBatch(ctx, rows))

	first, err := repo.FetchUnprocessed(ctx, 1)
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.Equal(t, "PO-1", first[0].PONumber)

	require.NoError(t, repo.MarkAttempted(ctx, []int64{rows[0].ID}))
	next, err := repo.FetchUnprocessed(ctx, 1)
	require.NoError(t, err)
	require.Len(t, next, 1)
	assert.Equal(t, "PO-2", next[0].PONumber)

	require.NoError(t, repo.MarkAttempted(ctx, []int64{rows[1].ID, rows[2].ID}))
	cycled, err := repo.FetchUnprocessed(ctx, 1)
	require.NoError(t, err)
	require.Len(t, cycled, 1)
	assert.Equal(t, "PO-1", cycled[0].PONumber, "least recently attempted comes back first")

	count, err := repo.CountUnprocessed(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count, "attempting leaves rows pending")
}

func TestGormRawPORepository_LimitedFetchKeepsPONumberTogether(t *testing.T) {
	ctx := context.Background()
	repo := NewGormRawPORepository(testdb.NewSQLite(t))

	rows := []ledger.RawPOLine{
		rawPOLine("PO-1", 1, "1"),
		rawPOLine("PO-2", 1, "1"),
		rawPOLine("PO-1", 1, "4"),
		rawPOLine("PO-1", 2, "1"),
	}
	require.NoError(t, repo.CreateBatch(ctx, rows))

	fetched, err := repo.FetchUnprocessed(ctx, 1)
	require.NoError(t, err)
	require.Len(t, fetched, 3)
	for i, row := range fetched {
		assert.Equal(t, "PO-1", row.PONumber)
		if i > 0 {
			assert.Less(t, fetched[i-1].ID, row.ID)
		}
	}
}

func TestGormRawPORepository_MarkProcessedChunks(t *testing.T) {
	ctx := context.Background()
	repo := NewGormRawPORepository(testdb.NewSQLite(t))
	repo.chunkSize = 2

	rows := make([]ledger.RawPOLine, 5)
	for i := range rows {
		rows[i] = rawPOLine("PO-9", i+1, "1")
	}
	require.NoError(t, repo.CreateBatch(ctx, rows))

	ids := make([]int64, len(rows))
	for i := range rows {
		ids[i] = rows[i].ID
	}
	marked, err := repo.MarkProcessed(ctx, ids)
	require.NoError(t, err)
	assert.Equal(t, int64(5), marked)
}

func TestGormRawAcceptanceRepository_History(t *testing.T) {
	ctx := context.Background()
	repo := NewGormRawAcceptanceRepository(testdb.NewSQLite(t))

	rows := []ledger.RawAcceptanceLine{
		{UploadedBy: "t", PONumber: "PO-1", LineNo: intPtr(1), ShipmentNo: intPtr(1), AcceptedQty: nullDec("1"), ProcessedAt: timePtr("2024-02-01T00:00:00Z")},
		{UploadedBy: "t", PONumber: "PO-1", LineNo: intPtr(1), ShipmentNo: intPtr(1), AcceptedQty: nullDec("2"), ProcessedAt: timePtr("2024-02-03T00:00:00Z")},
		{UploadedBy: "t", PONumber: "PO-2", LineNo: intPtr(1), ShipmentNo: intPtr(1), AcceptedQty: nullDec("5"), ProcessedAt: timePtr("2024-02-01T00:00:00Z")},
		{UploadedBy: "t", PONumber: "PO-3"},
	}
	require.NoError(t, repo.CreateBatch(ctx, rows))

	_, err := repo.MarkProcessed(ctx, []int64{rows[0].ID})
	require.NoError(t, err)

	history, err := repo.FindByPONumbers(ctx, []string{"PO-1"})
	require.NoError(t, err)
	require.Len(t, history, 2, "history spans processed and unprocessed rows")
	assert.True(t, history[0].Processed)
	assert.NotNil(t, history[0].MarkedAt)
	assert.False(t, history[1].Processed)

	pending, err := repo.FetchUnprocessed(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, pending, 3)

	last := pending[len(pending)-1]
	assert.Nil(t, last.LineNo)
	assert.False(t, last.AcceptedQty.Valid)

	count, err := repo.CountUnprocessed(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	require.NoError(t, repo.MarkAttempted(ctx, []int64{rows[1].ID}))
	limited, err := repo.FetchUnprocessed(ctx, 2)
	require.NoError(t, err)
	require.Len(t, limited, 2)
	assert.Equal(t, "PO-2", limited[0].PONumber)
	assert.Equal(t, "PO-3", limited[1].PONumber)
}
