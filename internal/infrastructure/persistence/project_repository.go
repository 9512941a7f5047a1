package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/erp/reconciler/internal/domain/project"
	"github.com/erp/reconciler/internal/domain/shared"
	"github.com/erp/reconciler/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormInternalProjectRepository implements project.InternalProjectRepository using GORM
type GormInternalProjectRepository struct {
	db *gorm.DB
}

// NewGormInternalProjectRepository creates a new GormInternalProjectRepository
func NewGormInternalProjectRepository(db *gorm.DB) *GormInternalProjectRepository {
	return &GormInternalProjectRepository{db: db}
}

// FindByID finds a project by its ID
func (r *GormInternalProjectRepository) FindByID(ctx context.Context, id uuid.UUID) (*project.InternalProject, error) {
	var m models.InternalProjectModel
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		return nil, translateError(err)
	}
	return m.ToDomain(), nil
}

// FindByName finds a project by its unique name
func (r *GormInternalProjectRepository) FindByName(ctx context.Context, name string) (*project.InternalProject, error) {
	var m models.InternalProjectModel
	if err := r.db.WithContext(ctx).Where("name = ?", name).First(&m).Error; err != nil {
		return nil, translateError(err)
	}
	return m.ToDomain(), nil
}

// FindAll returns all projects ordered by name
func (r *GormInternalProjectRepository) FindAll(ctx context.Context) ([]project.InternalProject, error) {
	var found []models.InternalProjectModel
	if err := r.db.WithContext(ctx).Order("name ASC").Find(&found).Error; err != nil {
		return nil, err
	}
	projects := make([]project.InternalProject, len(found))
	for i := range found {
		projects[i] = *found[i].ToDomain()
	}
	return projects, nil
}

// EnsureTBD returns the sentinel project, inserting it if a migration has not
func (r *GormInternalProjectRepository) EnsureTBD(ctx context.Context) (*project.InternalProject, error) {
	var m models.InternalProjectModel
	err := r.db.WithContext(ctx).Where("is_tbd = ?", true).First(&m).Error
	if err == nil {
		return m.ToDomain(), nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	m.FromDomain(project.NewTBDProject())
	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "name"}}, DoNothing: true}).
		Create(&m).Error; err != nil {
		return nil, err
	}
	return r.FindByName(ctx, project.TBDProjectName)
}

// Save creates or updates a project
func (r *GormInternalProjectRepository) Save(ctx context.Context, p *project.InternalProject) error {
	var m models.InternalProjectModel
	m.FromDomain(p)
	return translateError(r.db.WithContext(ctx).Save(&m).Error)
}

// GormCustomerProjectRepository implements project.CustomerProjectRepository using GORM
type GormCustomerProjectRepository struct {
	db        *gorm.DB
	chunkSize int
}

// NewGormCustomerProjectRepository creates a new GormCustomerProjectRepository
func NewGormCustomerProjectRepository(db *gorm.DB) *GormCustomerProjectRepository {
	return &GormCustomerProjectRepository{db: db, chunkSize: DefaultChunkSize}
}

// FindIDsByCodes maps each known code to its ID. Unknown codes are absent.
func (r *GormCustomerProjectRepository) FindIDsByCodes(ctx context.Context, codes []string) (map[string]uuid.UUID, error) {
	ids := make(map[string]uuid.UUID, len(codes))
	err := inChunks(codes, r.chunkSize, func(chunk []string) error {
		var rows []struct {
			ID   uuid.UUID
			Code string
		}
		if err := r.db.WithContext(ctx).Model(&models.CustomerProjectModel{}).
			Select("id, code").
			Where("code IN ?", chunk).
			Scan(&rows).Error; err != nil {
			return err
		}
		for _, row := range rows {
			ids[row.Code] = row.ID
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// FindAll returns all customer projects ordered by code
func (r *GormCustomerProjectRepository) FindAll(ctx context.Context) ([]project.CustomerProject, error) {
	var found []models.CustomerProjectModel
	if err := r.db.WithContext(ctx).Order("code ASC").Find(&found).Error; err != nil {
		return nil, err
	}
	projects := make([]project.CustomerProject, len(found))
	for i := range found {
		projects[i] = *found[i].ToDomain()
	}
	return projects, nil
}

// Save creates or updates a customer project
func (r *GormCustomerProjectRepository) Save(ctx context.Context, p *project.CustomerProject) error {
	var m models.CustomerProjectModel
	m.FromDomain(p)
	return translateError(r.db.WithContext(ctx).Save(&m).Error)
}

// GormRuleRepository implements project.RuleRepository using GORM
type GormRuleRepository struct {
	db *gorm.DB
}

// NewGormRuleRepository creates a new GormRuleRepository
func NewGormRuleRepository(db *gorm.DB) *GormRuleRepository {
	return &GormRuleRepository{db: db}
}

// FindByID finds a rule by its ID
func (r *GormRuleRepository) FindByID(ctx context.Context, id uuid.UUID) (*project.Rule, error) {
	var m models.ResolutionRuleModel
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		return nil, translateError(err)
	}
	return m.ToDomain(), nil
}

// FindAll returns all rules, newest first
func (r *GormRuleRepository) FindAll(ctx context.Context) ([]project.Rule, error) {
	var found []models.ResolutionRuleModel
	if err := r.db.WithContext(ctx).Order("created_at DESC, id DESC").Find(&found).Error; err != nil {
		return nil, err
	}
	rules := make([]project.Rule, len(found))
	for i := range found {
		rules[i] = *found[i].ToDomain()
	}
	return rules, nil
}

// Save persists a rule
func (r *GormRuleRepository) Save(ctx context.Context, rule *project.Rule) error {
	var m models.ResolutionRuleModel
	m.FromDomain(rule)
	return translateError(r.db.WithContext(ctx).Save(&m).Error)
}

// GormAllocationRepository implements project.AllocationRepository using GORM
type GormAllocationRepository struct {
	db *gorm.DB
}

// NewGormAllocationRepository creates a new GormAllocationRepository
func NewGormAllocationRepository(db *gorm.DB) *GormAllocationRepository {
	return &GormAllocationRepository{db: db}
}

// UpsertMany creates allocations or re-points existing ones, keyed by site code
func (r *GormAllocationRepository) UpsertMany(ctx context.Context, allocations []project.SiteAllocation) error {
	if len(allocations) == 0 {
		return nil
	}
	batch := make([]models.SiteAllocationModel, len(allocations))
	for i := range allocations {
		batch[i].FromDomain(&allocations[i])
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "site_code"}},
			DoUpdates: clause.AssignmentColumns([]string{"project_id", "updated_at"}),
		}).
		CreateInBatches(batch, insertBatchSize).Error
}

// FindAll returns all allocations
func (r *GormAllocationRepository) FindAll(ctx context.Context) ([]project.SiteAllocation, error) {
	var found []models.SiteAllocationModel
	if err := r.db.WithContext(ctx).Order("site_code ASC").Find(&found).Error; err != nil {
		return nil, err
	}
	allocations := make([]project.SiteAllocation, len(found))
	for i := range found {
		allocations[i] = *found[i].ToDomain()
	}
	return allocations, nil
}

// GormVersionRepository implements project.VersionRepository using GORM
type GormVersionRepository struct {
	db *gorm.DB
}

// NewGormVersionRepository creates a new GormVersionRepository
func NewGormVersionRepository(db *gorm.DB) *GormVersionRepository {
	return &GormVersionRepository{db: db}
}

// Current returns the resolution version, 0 when the row does not exist yet
func (r *GormVersionRepository) Current(ctx context.Context) (int64, error) {
	var m models.ResolutionVersionModel
	err := r.db.WithContext(ctx).First(&m, "id = ?", models.ResolutionVersionID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return m.Version, nil
}

// Bump increments the resolution version, creating the row on first use
func (r *GormVersionRepository) Bump(ctx context.Context) (int64, error) {
	now := time.Now().UTC()
	row := models.ResolutionVersionModel{ID: models.ResolutionVersionID, Version: 1, UpdatedAt: now}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "id"}},
			DoUpdates: clause.Assignments(map[string]any{
				"version":    gorm.Expr("resolution_versions.version + 1"),
				"updated_at": now,
			}),
		}).
		Create(&row).Error
	if err != nil {
		return 0, err
	}
	version, err := r.Current(ctx)
	if err != nil {
		return 0, err
	}
	if version == 0 {
		return 0, shared.NewDomainError("VERSION_NOT_BUMPED", "Resolution version row is missing after bump")
	}
	return version, nil
}
