package scheduler

import (
	"context"
	"fmt"

	"github.com/erp/reconciler/internal/application/reconciliation"
	"github.com/erp/reconciler/internal/domain/batch"
	"github.com/erp/reconciler/internal/infrastructure/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// BatchMerger runs a merge pass, optionally on behalf of an upload batch
type BatchMerger interface {
	MergeBatch(ctx context.Context, kind batch.Kind, batchID *uuid.UUID) (*reconciliation.MergeResult, error)
}

// MergeExecutor runs queued merge jobs against the reconciliation service
type MergeExecutor struct {
	merger BatchMerger
	logger *zap.Logger
}

// NewMergeExecutor creates a new merge executor
func NewMergeExecutor(merger BatchMerger, logger *zap.Logger) *MergeExecutor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MergeExecutor{merger: merger, logger: logger}
}

// Execute runs the pass the job names. Rows the pass leaves unresolved are
// not a failure; the next sweep retries them.
func (e *MergeExecutor) Execute(ctx context.Context, job *Job) error {
	kind, err := batchKind(job.Kind)
	if err != nil {
		return err
	}

	log := logger.L(ctx, e.logger)
	if job.BatchID != nil {
		ctx, log = logger.WithBatchID(ctx, log, job.BatchID.String())
	}

	result, err := e.merger.MergeBatch(ctx, kind, job.BatchID)
	if err != nil {
		return err
	}

	log.Debug("Merge job finished",
		zap.String("job_id", job.ID.String()),
		zap.String("kind", string(job.Kind)),
		zap.String("reason", result.Reason),
		zap.Int("merged", result.Merged),
		zap.Int("unresolved", result.Unresolved),
	)
	return nil
}

func batchKind(kind JobKind) (batch.Kind, error) {
	switch kind {
	case JobKindMergePurchaseOrders:
		return batch.KindPurchaseOrders, nil
	case JobKindMergeAcceptances:
		return batch.KindAcceptances, nil
	}
	return "", fmt.Errorf("%w: %s", ErrInvalidJobKind, kind)
}

// JobKindFor returns the merge job kind that consumes a batch kind
func JobKindFor(kind batch.Kind) JobKind {
	if kind == batch.KindAcceptances {
		return JobKindMergeAcceptances
	}
	return JobKindMergePurchaseOrders
}

var _ JobExecutor = (*MergeExecutor)(nil)
