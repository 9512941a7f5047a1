package persistence

import (
	"context"
	"time"

	"github.com/erp/reconciler/internal/domain/ledger"
	"github.com/erp/reconciler/internal/domain/shared"
	"github.com/erp/reconciler/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormMergedPORepository implements ledger.MergedPORepository using GORM
type GormMergedPORepository struct {
	db        *gorm.DB
	chunkSize int
}

// NewGormMergedPORepository creates a new GormMergedPORepository
func NewGormMergedPORepository(db *gorm.DB) *GormMergedPORepository {
	return &GormMergedPORepository{db: db, chunkSize: DefaultChunkSize}
}

// FindByPoID finds a ledger entry by its canonical identifier
func (r *GormMergedPORepository) FindByPoID(ctx context.Context, poID string) (*ledger.MergedPO, error) {
	var m models.MergedPOModel
	if err := r.db.WithContext(ctx).Where("po_id = ?", poID).First(&m).Error; err != nil {
		return nil, translateError(err)
	}
	return m.ToDomain(), nil
}

// FindByPoIDsForUpdate loads and row-locks the entries keyed by PoID
func (r *GormMergedPORepository) FindByPoIDsForUpdate(ctx context.Context, poIDs []string) (map[string]*ledger.MergedPO, error) {
	entries := make(map[string]*ledger.MergedPO, len(poIDs))
	err := inChunks(poIDs, r.chunkSize, func(chunk []string) error {
		var found []models.MergedPOModel
		if err := lockForUpdate(r.db.WithContext(ctx), false).
			Where("po_id IN ?", chunk).
			Order("po_id ASC").
			Find(&found).Error; err != nil {
			return err
		}
		for i := range found {
			entries[found[i].PoID] = found[i].ToDomain()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// Create inserts new ledger entries
func (r *GormMergedPORepository) Create(ctx context.Context, entries []*ledger.MergedPO) error {
	if len(entries) == 0 {
		return nil
	}
	batch := make([]*models.MergedPOModel, len(entries))
	for i, e := range entries {
		batch[i] = models.MergedPOModelFromDomain(e)
	}
	return translateError(r.db.WithContext(ctx).CreateInBatches(batch, insertBatchSize).Error)
}

// Update writes back every column of a modified entry
func (r *GormMergedPORepository) Update(ctx context.Context, entry *ledger.MergedPO) error {
	m := models.MergedPOModelFromDomain(entry)
	result := r.db.WithContext(ctx).Model(m).
		Select("*").
		Omit("id", "created_at").
		Updates(m)
	if result.Error != nil {
		return translateError(result.Error)
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// FindByProject returns rule candidates currently assigned to projectID
func (r *GormMergedPORepository) FindByProject(ctx context.Context, projectID uuid.UUID) ([]ledger.RuleCandidate, error) {
	var rows []struct {
		ID                uuid.UUID
		SiteCode          string
		CustomerProjectID *uuid.UUID
		PublishDate       *time.Time
	}
	if err := r.db.WithContext(ctx).Model(&models.MergedPOModel{}).
		Select("id, site_code, customer_project_id, publish_date").
		Where("internal_project_id = ?", projectID).
		Order("po_id ASC").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	candidates := make([]ledger.RuleCandidate, len(rows))
	for i, row := range rows {
		candidates[i] = ledger.RuleCandidate{
			ID:                row.ID,
			SiteCode:          row.SiteCode,
			CustomerProjectID: row.CustomerProjectID,
			PublishDate:       utcTime(row.PublishDate),
		}
	}
	return candidates, nil
}

// ReassignProject moves the given entries from one project to another
func (r *GormMergedPORepository) ReassignProject(ctx context.Context, ids []uuid.UUID, from, to uuid.UUID) (int64, error) {
	var total int64
	now := time.Now().UTC()
	err := inChunks(ids, r.chunkSize, func(chunk []uuid.UUID) error {
		result := r.db.WithContext(ctx).Model(&models.MergedPOModel{}).
			Where("id IN ? AND internal_project_id = ?", chunk, from).
			Updates(map[string]any{"internal_project_id": to, "updated_at": now})
		if result.Error != nil {
			return result.Error
		}
		total += result.RowsAffected
		return nil
	})
	return total, err
}

// ReassignSites points every entry on the given sites at projectID
func (r *GormMergedPORepository) ReassignSites(ctx context.Context, sites []string, projectID uuid.UUID) (int64, error) {
	var total int64
	now := time.Now().UTC()
	err := inChunks(sites, r.chunkSize, func(chunk []string) error {
		result := r.db.WithContext(ctx).Model(&models.MergedPOModel{}).
			Where("site_code IN ? AND internal_project_id <> ?", chunk, projectID).
			Updates(map[string]any{"internal_project_id": projectID, "updated_at": now})
		if result.Error != nil {
			return result.Error
		}
		total += result.RowsAffected
		return nil
	})
	return total, err
}

func utcTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
