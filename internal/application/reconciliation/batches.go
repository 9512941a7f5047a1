package reconciliation

import (
	"context"
	"fmt"

	"github.com/erp/reconciler/internal/domain/batch"
	"github.com/erp/reconciler/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrBatchKindMismatch is returned when a merge job names a batch of the other kind
var ErrBatchKindMismatch = shared.NewDomainError("BATCH_KIND_MISMATCH", "Batch kind does not match the merge pass")

// GetBatch returns one upload batch
func (s *Service) GetBatch(ctx context.Context, id uuid.UUID) (*BatchResponse, error) {
	var resp BatchResponse
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		b, err := repos.Batches().FindByID(ctx, id)
		if err != nil {
			return notFoundAs(err, ErrBatchNotFound)
		}
		resp = ToBatchResponse(b)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListBatches returns the most recent upload batches
func (s *Service) ListBatches(ctx context.Context, limit int) ([]BatchResponse, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var out []BatchResponse
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		batches, err := repos.Batches().FindRecent(ctx, limit)
		if err != nil {
			return err
		}
		out = make([]BatchResponse, len(batches))
		for i := range batches {
			out[i] = ToBatchResponse(&batches[i])
		}
		return nil
	})
	return out, err
}

// MergeBatch runs the merge pass of the given kind. When batchID is set the
// batch is moved to PROCESSING first and to COMPLETED or FAILED after; a
// FAILED batch is requeued. The pass itself always consumes every pending
// row, so the recorded counts are those of the whole pass.
func (s *Service) MergeBatch(ctx context.Context, kind batch.Kind, batchID *uuid.UUID) (*MergeResult, error) {
	run := s.MergeUnprocessedPOs
	if kind == batch.KindAcceptances {
		run = s.MergeUnprocessedAcceptances
	}
	if batchID == nil {
		return run(ctx)
	}

	tracked, err := s.startBatch(ctx, kind, *batchID)
	if err != nil {
		return nil, err
	}
	result, mergeErr := run(ctx)
	if tracked {
		s.finishBatch(ctx, *batchID, result, mergeErr)
	}
	return result, mergeErr
}

// startBatch moves the batch into PROCESSING. It reports false for a batch
// that already completed; the pass still runs but the batch keeps its record.
func (s *Service) startBatch(ctx context.Context, kind batch.Kind, id uuid.UUID) (bool, error) {
	tracked := false
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		b, err := repos.Batches().FindByID(ctx, id)
		if err != nil {
			return notFoundAs(err, ErrBatchNotFound)
		}
		if b.Kind != kind {
			return ErrBatchKindMismatch
		}

		switch b.Status {
		case batch.StatusCompleted:
			return nil
		case batch.StatusProcessing:
			// left over from an interrupted run
			tracked = true
			return nil
		case batch.StatusFailed:
			if err := b.Requeue(); err != nil {
				return err
			}
		}
		if err := b.StartProcessing(); err != nil {
			return err
		}
		tracked = true
		return repos.Batches().Save(ctx, b)
	})
	if err != nil {
		return false, err
	}
	return tracked, nil
}

func (s *Service) finishBatch(ctx context.Context, id uuid.UUID, result *MergeResult, mergeErr error) {
	// the outcome is recorded even when the pass was canceled
	ctx = context.WithoutCancel(ctx)
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		b, err := repos.Batches().FindByID(ctx, id)
		if err != nil {
			return err
		}
		if mergeErr != nil {
			if err := b.Fail(mergeErr.Error()); err != nil {
				return err
			}
		} else if err := b.Complete(result.Merged, result.Skipped, result.Unresolved); err != nil {
			return err
		}
		return repos.Batches().Save(ctx, b)
	})
	if err != nil {
		s.logger.Error("Failed to record batch outcome",
			zap.String("batch_id", id.String()),
			zap.Error(fmt.Errorf("finish batch: %w", err)),
		)
	}
}
