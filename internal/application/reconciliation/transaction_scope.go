package reconciliation

import (
	"context"

	"github.com/erp/reconciler/internal/domain/batch"
	"github.com/erp/reconciler/internal/domain/ledger"
	"github.com/erp/reconciler/internal/domain/project"
)

// TransactionScope runs a pass atomically. When fn returns an error every
// write made through the repositories it received is rolled back.
type TransactionScope interface {
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories provides the repositories of one transaction.
// All of them share the same underlying database transaction.
type TransactionalRepositories interface {
	RawPOs() ledger.RawPORepository
	RawAcceptances() ledger.RawAcceptanceRepository
	MergedPOs() ledger.MergedPORepository
	Projects() project.InternalProjectRepository
	CustomerProjects() project.CustomerProjectRepository
	Rules() project.RuleRepository
	Allocations() project.AllocationRepository
	Versions() project.VersionRepository
	Batches() batch.Repository
}
