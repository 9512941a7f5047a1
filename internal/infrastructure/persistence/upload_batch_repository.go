package persistence

import (
	"context"

	"github.com/erp/reconciler/internal/domain/batch"
	"github.com/erp/reconciler/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormUploadBatchRepository implements batch.Repository using GORM
type GormUploadBatchRepository struct {
	db *gorm.DB
}

// NewGormUploadBatchRepository creates a new GormUploadBatchRepository
func NewGormUploadBatchRepository(db *gorm.DB) *GormUploadBatchRepository {
	return &GormUploadBatchRepository{db: db}
}

// FindByID finds a batch by its ID
func (r *GormUploadBatchRepository) FindByID(ctx context.Context, id uuid.UUID) (*batch.UploadBatch, error) {
	var m models.UploadBatchModel
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		return nil, translateError(err)
	}
	return m.ToDomain(), nil
}

// FindRecent returns the most recent batches, newest first
func (r *GormUploadBatchRepository) FindRecent(ctx context.Context, limit int) ([]batch.UploadBatch, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	var found []models.UploadBatchModel
	if err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&found).Error; err != nil {
		return nil, err
	}
	batches := make([]batch.UploadBatch, len(found))
	for i := range found {
		batches[i] = *found[i].ToDomain()
	}
	return batches, nil
}

// Save creates or updates a batch
func (r *GormUploadBatchRepository) Save(ctx context.Context, b *batch.UploadBatch) error {
	var m models.UploadBatchModel
	m.FromDomain(b)
	return translateError(r.db.WithContext(ctx).Save(&m).Error)
}
