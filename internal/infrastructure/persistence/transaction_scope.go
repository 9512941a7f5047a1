package persistence

import (
	"context"

	"github.com/erp/reconciler/internal/application/reconciliation"
	"github.com/erp/reconciler/internal/domain/batch"
	"github.com/erp/reconciler/internal/domain/ledger"
	"github.com/erp/reconciler/internal/domain/project"
	"gorm.io/gorm"
)

// GormTransactionScope implements reconciliation.TransactionScope using GORM transactions.
type GormTransactionScope struct {
	db        *gorm.DB
	chunkSize int
}

// NewGormTransactionScope creates a new GormTransactionScope
func NewGormTransactionScope(db *gorm.DB) *GormTransactionScope {
	return &GormTransactionScope{db: db, chunkSize: DefaultChunkSize}
}

// WithChunkSize sets how many ids the scoped repositories bind per IN (...) list
func (s *GormTransactionScope) WithChunkSize(size int) *GormTransactionScope {
	if size > 0 {
		s.chunkSize = size
	}
	return s
}

// Execute runs fn within a database transaction. An error from fn rolls the
// transaction back, success commits it.
func (s *GormTransactionScope) Execute(ctx context.Context, fn func(repos reconciliation.TransactionalRepositories) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormTransactionalRepositories{tx: tx, chunkSize: s.chunkSize})
	})
}

// gormTransactionalRepositories provides access to all repositories within a transaction.
type gormTransactionalRepositories struct {
	tx        *gorm.DB
	chunkSize int
}

func (r *gormTransactionalRepositories) RawPOs() ledger.RawPORepository {
	repo := NewGormRawPORepository(r.tx)
	repo.chunkSize = r.chunkSize
	return repo
}

func (r *gormTransactionalRepositories) RawAcceptances() ledger.RawAcceptanceRepository {
	repo := NewGormRawAcceptanceRepository(r.tx)
	repo.chunkSize = r.chunkSize
	return repo
}

func (r *gormTransactionalRepositories) MergedPOs() ledger.MergedPORepository {
	repo := NewGormMergedPORepository(r.tx)
	repo.chunkSize = r.chunkSize
	return repo
}

func (r *gormTransactionalRepositories) Projects() project.InternalProjectRepository {
	return NewGormInternalProjectRepository(r.tx)
}

func (r *gormTransactionalRepositories) CustomerProjects() project.CustomerProjectRepository {
	repo := NewGormCustomerProjectRepository(r.tx)
	repo.chunkSize = r.chunkSize
	return repo
}

func (r *gormTransactionalRepositories) Rules() project.RuleRepository {
	return NewGormRuleRepository(r.tx)
}

func (r *gormTransactionalRepositories) Allocations() project.AllocationRepository {
	return NewGormAllocationRepository(r.tx)
}

func (r *gormTransactionalRepositories) Versions() project.VersionRepository {
	return NewGormVersionRepository(r.tx)
}

func (r *gormTransactionalRepositories) Batches() batch.Repository {
	return NewGormUploadBatchRepository(r.tx)
}

var (
	_ reconciliation.TransactionScope          = (*GormTransactionScope)(nil)
	_ reconciliation.TransactionalRepositories = (*gormTransactionalRepositories)(nil)

	_ ledger.RawPORepository            = (*GormRawPORepository)(nil)
	_ ledger.RawAcceptanceRepository    = (*GormRawAcceptanceRepository)(nil)
	_ ledger.MergedPORepository         = (*GormMergedPORepository)(nil)
	_ ledger.ReportRepository           = (*GormReportRepository)(nil)
	_ project.InternalProjectRepository = (*GormInternalProjectRepository)(nil)
	_ project.CustomerProjectRepository = (*GormCustomerProjectRepository)(nil)
	_ project.RuleRepository            = (*GormRuleRepository)(nil)
	_ project.AllocationRepository      = (*GormAllocationRepository)(nil)
	_ project.VersionRepository         = (*GormVersionRepository)(nil)
	_ batch.Repository                  = (*GormUploadBatchRepository)(nil)
)
