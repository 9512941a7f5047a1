package persistence

import (
	"context"
	"sort"
	"time"

	"github.com/erp/reconciler/internal/domain/ledger"
	"github.com/erp/reconciler/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

const insertBatchSize = 500

// pendingOrder puts never-attempted rows first, then the least recently
// attempted, so rows a pass could not resolve do not starve the ones behind them
const pendingOrder = "CASE WHEN attempted_at IS NULL THEN 0 ELSE 1 END, attempted_at ASC, id ASC"

// GormRawPORepository implements ledger.RawPORepository using GORM
type GormRawPORepository struct {
	db        *gorm.DB
	chunkSize int
}

// NewGormRawPORepository creates a new GormRawPORepository
func NewGormRawPORepository(db *gorm.DB) *GormRawPORepository {
	return &GormRawPORepository{db: db, chunkSize: DefaultChunkSize}
}

// CreateBatch inserts rows and writes the assigned IDs back
func (r *GormRawPORepository) CreateBatch(ctx context.Context, rows []ledger.RawPOLine) error {
	if len(rows) == 0 {
		return nil
	}
	now := time.Now().UTC()
	batch := make([]models.RawPOLineModel, len(rows))
	for i := range rows {
		if rows[i].CreatedAt.IsZero() {
			rows[i].CreatedAt = now
		}
		batch[i].FromDomain(&rows[i])
	}
	if err := r.db.WithContext(ctx).CreateInBatches(batch, insertBatchSize).Error; err != nil {
		return translateError(err)
	}
	for i := range rows {
		rows[i].ID = batch[i].ID
	}
	return nil
}

// FetchUnprocessed returns up to limit pending rows, least recently attempted
// first. A limited fetch is widened to every pending row of the fetched PO
// numbers so a dedup group is never split across passes. On postgres rows held
// by another pass are skipped.
func (r *GormRawPORepository) FetchUnprocessed(ctx context.Context, limit int) ([]ledger.RawPOLine, error) {
	var found []models.RawPOLineModel
	query := lockForUpdate(r.db.WithContext(ctx), true).
		Where("processed = ?", false).
		Order(pendingOrder)
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&found).Error; err != nil {
		return nil, err
	}
	if limit > 0 && len(found) > 0 {
		siblings, err := r.pendingSiblings(ctx, found)
		if err != nil {
			return nil, err
		}
		found = append(found, siblings...)
	}

	sort.Slice(found, func(i, j int) bool { return found[i].ID < found[j].ID })
	rows := make([]ledger.RawPOLine, len(found))
	for i := range found {
		rows[i] = found[i].ToDomain()
	}
	return rows, nil
}

// pendingSiblings loads the pending rows sharing a PO number with fetched
// that the limit cut off
func (r *GormRawPORepository) pendingSiblings(ctx context.Context, fetched []models.RawPOLineModel) ([]models.RawPOLineModel, error) {
	ids := make([]int64, len(fetched))
	seen := make(map[string]struct{})
	numbers := make([]string, 0, len(fetched))
	for i := range fetched {
		ids[i] = fetched[i].ID
		if _, ok := seen[fetched[i].PONumber]; !ok {
			seen[fetched[i].PONumber] = struct{}{}
			numbers = append(numbers, fetched[i].PONumber)
		}
	}

	var siblings []models.RawPOLineModel
	err := inChunks(numbers, r.chunkSize, func(chunk []string) error {
		var part []models.RawPOLineModel
		if err := lockForUpdate(r.db.WithContext(ctx), true).
			Where("processed = ? AND po_number IN ? AND id NOT IN ?", false, chunk, ids).
			Find(&part).Error; err != nil {
			return err
		}
		siblings = append(siblings, part...)
		return nil
	})
	return siblings, err
}

// MarkProcessed flags the rows processed
func (r *GormRawPORepository) MarkProcessed(ctx context.Context, ids []int64) (int64, error) {
	return markProcessed(ctx, r.db, &models.RawPOLineModel{}, ids, r.chunkSize)
}

// MarkAttempted stamps rows a pass left pending so the next limited fetch
// moves past them
func (r *GormRawPORepository) MarkAttempted(ctx context.Context, ids []int64) error {
	return markAttempted(ctx, r.db, &models.RawPOLineModel{}, ids, r.chunkSize)
}

// CountUnprocessed counts pending rows
func (r *GormRawPORepository) CountUnprocessed(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.RawPOLineModel{}).
		Where("processed = ?", false).
		Count(&count).Error
	return count, err
}

// GormRawAcceptanceRepository implements ledger.RawAcceptanceRepository using GORM
type GormRawAcceptanceRepository struct {
	db        *gorm.DB
	chunkSize int
}

// NewGormRawAcceptanceRepository creates a new GormRawAcceptanceRepository
func NewGormRawAcceptanceRepository(db *gorm.DB) *GormRawAcceptanceRepository {
	return &GormRawAcceptanceRepository{db: db, chunkSize: DefaultChunkSize}
}

// CreateBatch inserts rows and writes the assigned IDs back
func (r *GormRawAcceptanceRepository) CreateBatch(ctx context.Context, rows []ledger.RawAcceptanceLine) error {
	if len(rows) == 0 {
		return nil
	}
	now := time.Now().UTC()
	batch := make([]models.RawAcceptanceLineModel, len(rows))
	for i := range rows {
		if rows[i].CreatedAt.IsZero() {
			rows[i].CreatedAt = now
		}
		batch[i].FromDomain(&rows[i])
	}
	if err := r.db.WithContext(ctx).CreateInBatches(batch, insertBatchSize).Error; err != nil {
		return translateError(err)
	}
	for i := range rows {
		rows[i].ID = batch[i].ID
	}
	return nil
}

// FetchUnprocessed returns up to limit pending rows, least recently attempted
// first. Shipments are re-aggregated over their full history, so a limit
// needs no widening here.
func (r *GormRawAcceptanceRepository) FetchUnprocessed(ctx context.Context, limit int) ([]ledger.RawAcceptanceLine, error) {
	var found []models.RawAcceptanceLineModel
	query := lockForUpdate(r.db.WithContext(ctx), true).
		Where("processed = ?", false).
		Order(pendingOrder)
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&found).Error; err != nil {
		return nil, err
	}
	return acceptanceLines(found), nil
}

// FindByPONumbers returns the full history of the given POs
func (r *GormRawAcceptanceRepository) FindByPONumbers(ctx context.Context, poNumbers []string) ([]ledger.RawAcceptanceLine, error) {
	var found []models.RawAcceptanceLineModel
	err := inChunks(poNumbers, r.chunkSize, func(chunk []string) error {
		var part []models.RawAcceptanceLineModel
		if err := r.db.WithContext(ctx).
			Where("po_number IN ?", chunk).
			Order("id ASC").
			Find(&part).Error; err != nil {
			return err
		}
		found = append(found, part...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return acceptanceLines(found), nil
}

// MarkProcessed flags the rows processed
func (r *GormRawAcceptanceRepository) MarkProcessed(ctx context.Context, ids []int64) (int64, error) {
	return markProcessed(ctx, r.db, &models.RawAcceptanceLineModel{}, ids, r.chunkSize)
}

// MarkAttempted stamps rows a pass left pending
func (r *GormRawAcceptanceRepository) MarkAttempted(ctx context.Context, ids []int64) error {
	return markAttempted(ctx, r.db, &models.RawAcceptanceLineModel{}, ids, r.chunkSize)
}

// CountUnprocessed counts pending rows
func (r *GormRawAcceptanceRepository) CountUnprocessed(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.RawAcceptanceLineModel{}).
		Where("processed = ?", false).
		Count(&count).Error
	return count, err
}

func acceptanceLines(found []models.RawAcceptanceLineModel) []ledger.RawAcceptanceLine {
	rows := make([]ledger.RawAcceptanceLine, len(found))
	for i := range found {
		rows[i] = found[i].ToDomain()
	}
	return rows
}

// markProcessed is the set-based cursor advance shared by both staging tables.
// Rows already processed are not touched again.
func markProcessed(ctx context.Context, db *gorm.DB, model any, ids []int64, chunkSize int) (int64, error) {
	var total int64
	now := time.Now().UTC()
	err := inChunks(ids, chunkSize, func(chunk []int64) error {
		result := db.WithContext(ctx).Model(model).
			Where("id IN ? AND processed = ?", chunk, false).
			Updates(map[string]any{"processed": true, "processed_at": now})
		if result.Error != nil {
			return result.Error
		}
		total += result.RowsAffected
		return nil
	})
	return total, err
}

func markAttempted(ctx context.Context, db *gorm.DB, model any, ids []int64, chunkSize int) error {
	now := time.Now().UTC()
	return inChunks(ids, chunkSize, func(chunk []int64) error {
		return db.WithContext(ctx).Model(model).
			Where("id IN ? AND processed = ?", chunk, false).
			Update("attempted_at", now).Error
	})
}
