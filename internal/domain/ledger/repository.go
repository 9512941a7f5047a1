package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RawPORepository is the staging queue of uploaded PO lines. Unprocessed rows
// are the pending work; marking them processed in the merge transaction
// advances the cursor.
type RawPORepository interface {
	// CreateBatch inserts rows and fills in their IDs
	CreateBatch(ctx context.Context, rows []RawPOLine) error

	// FetchUnprocessed returns up to limit unprocessed rows, never-attempted
	// rows first, in insertion order. limit <= 0 fetches all.
	FetchUnprocessed(ctx context.Context, limit int) ([]RawPOLine, error)

	// MarkProcessed flags the given rows processed and returns how many changed
	MarkProcessed(ctx context.Context, ids []int64) (int64, error)

	// MarkAttempted records that a pass looked at rows it had to leave pending
	MarkAttempted(ctx context.Context, ids []int64) error

	// CountUnprocessed counts pending rows
	CountUnprocessed(ctx context.Context) (int64, error)
}

// RawAcceptanceRepository is the staging queue of uploaded acceptance lines
type RawAcceptanceRepository interface {
	// CreateBatch inserts rows and fills in their IDs
	CreateBatch(ctx context.Context, rows []RawAcceptanceLine) error

	// FetchUnprocessed returns up to limit unprocessed rows, never-attempted
	// rows first
	FetchUnprocessed(ctx context.Context, limit int) ([]RawAcceptanceLine, error)

	// FindByPONumbers returns every row, processed or not, of the given POs
	FindByPONumbers(ctx context.Context, poNumbers []string) ([]RawAcceptanceLine, error)

	// MarkProcessed flags the given rows processed and returns how many changed
	MarkProcessed(ctx context.Context, ids []int64) (int64, error)

	// MarkAttempted records that a pass looked at rows it had to leave pending
	MarkAttempted(ctx context.Context, ids []int64) error

	// CountUnprocessed counts pending rows
	CountUnprocessed(ctx context.Context) (int64, error)
}

// RuleCandidate is the slice of a ledger entry a resolution rule looks at
type RuleCandidate struct {
	ID                uuid.UUID
	SiteCode          string
	CustomerProjectID *uuid.UUID
	PublishDate       *time.Time
}

// MergedPORepository defines persistence for canonical ledger entries
type MergedPORepository interface {
	// FindByPoID finds an entry by its canonical identifier
	FindByPoID(ctx context.Context, poID string) (*MergedPO, error)

	// FindByPoIDsForUpdate loads entries keyed by PoID, locking them where the
	// store supports row locks
	FindByPoIDsForUpdate(ctx context.Context, poIDs []string) (map[string]*MergedPO, error)

	// Create inserts new entries
	Create(ctx context.Context, entries []*MergedPO) error

	// Update writes back a modified entry
	Update(ctx context.Context, entry *MergedPO) error

	// FindByProject returns rule candidates currently assigned to projectID
	FindByProject(ctx context.Context, projectID uuid.UUID) ([]RuleCandidate, error)

	// ReassignProject moves the given entries from one project to another.
	// Entries no longer on from are left alone.
	ReassignProject(ctx context.Context, ids []uuid.UUID, from, to uuid.UUID) (int64, error)

	// ReassignSites points every entry on the given sites at projectID
	ReassignSites(ctx context.Context, sites []string, projectID uuid.UUID) (int64, error)
}

// ReportRepository is the read side over the ledger
type ReportRepository interface {
	// List returns a page of entries matching the filter
	List(ctx context.Context, filter LedgerFilter) ([]MergedPO, int64, error)

	// Totals sums the ledger under the filter
	Totals(ctx context.Context, filter SummaryFilter) (Totals, error)

	// TotalsByProject sums the ledger per internal project
	TotalsByProject(ctx context.Context, filter SummaryFilter) ([]ProjectTotals, error)

	// TotalsByPeriod sums the ledger per period in one pass
	TotalsByPeriod(ctx context.Context, periods []Period, filter SummaryFilter) ([]PeriodTotals, error)

	// Remaining returns a page of outstanding entries and the summed gap
	Remaining(ctx context.Context, filter RemainingFilter) ([]MergedPO, int64, decimal.Decimal, error)
}
