package batch

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines persistence for upload batches
type Repository interface {
	// FindByID finds a batch by ID
	FindByID(ctx context.Context, id uuid.UUID) (*UploadBatch, error)

	// FindRecent returns the most recent batches, newest first
	FindRecent(ctx context.Context, limit int) ([]UploadBatch, error)

	// Save creates or updates a batch
	Save(ctx context.Context, b *UploadBatch) error
}
