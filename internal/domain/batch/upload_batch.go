// Package batch tracks upload batches from ingestion through the merge pass
// that consumes them.
package batch

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/erp/reconciler/internal/domain/shared"
)

// Kind is what an upload batch carries
type Kind string

const (
	KindPurchaseOrders Kind = "PURCHASE_ORDERS"
	KindAcceptances    Kind = "ACCEPTANCES"
)

// IsValid checks if the kind is valid
func (k Kind) IsValid() bool {
	return k == KindPurchaseOrders || k == KindAcceptances
}

// Status represents the status of an upload batch
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
)

// IsValid checks if the status is valid
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// IsTerminal returns true if this is a terminal state
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// RowError describes a row rejected during ingestion
type RowError struct {
	Row     int    `json:"row"`
	Column  string `json:"column,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Value   string `json:"value,omitempty"`
}

// MaxRowErrors caps how many row errors a batch keeps
const MaxRowErrors = 100

// UploadBatch is one upload of raw PO or acceptance rows
type UploadBatch struct {
	shared.BaseEntity
	Kind         Kind
	FileName     string
	UploadedBy   string
	Status       Status
	TotalRows    int
	IngestedRows int
	RejectedRows int
	MergedRows   int
	SkippedRows  int
	Unresolved   int
	RowErrors    []RowError
	ErrorDetail  string
	Attempts     int
	StartedAt    *time.Time
	CompletedAt  *time.Time
}

// NewUploadBatch creates a new pending batch
func NewUploadBatch(kind Kind, fileName, uploadedBy string) (*UploadBatch, error) {
	if !kind.IsValid() {
		return nil, shared.NewDomainError("INVALID_BATCH_KIND", fmt.Sprintf("Invalid batch kind: %s", kind))
	}
	uploadedBy = strings.TrimSpace(uploadedBy)
	if uploadedBy == "" {
		return nil, shared.NewDomainError("INVALID_UPLOADER", "Uploader identity is required")
	}
	fileName = strings.TrimSpace(fileName)
	if fileName == "" {
		fileName = "inline"
	}
	return &UploadBatch{
		BaseEntity: shared.NewBaseEntity(),
		Kind:       kind,
		FileName:   fileName,
		UploadedBy: uploadedBy,
		Status:     StatusPending,
		RowErrors:  make([]RowError, 0),
	}, nil
}

// RecordIngest stores the outcome of writing the raw rows
func (b *UploadBatch) RecordIngest(total, ingested int, rowErrors []RowError) error {
	if b.Status != StatusPending {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot record ingest in state: %s", b.Status))
	}
	if total < 0 || ingested < 0 || ingested > total {
		return shared.NewDomainError("INVALID_ROW_COUNT", "Ingested rows must be between 0 and total rows")
	}
	b.TotalRows = total
	b.IngestedRows = ingested
	b.RejectedRows = total - ingested
	if len(rowErrors) > MaxRowErrors {
		rowErrors = rowErrors[:MaxRowErrors]
	}
	if rowErrors == nil {
		rowErrors = make([]RowError, 0)
	}
	b.RowErrors = rowErrors
	b.Touch()
	return nil
}

// StartProcessing marks the merge of this batch as started
func (b *UploadBatch) StartProcessing() error {
	if b.Status != StatusPending {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot start processing from state: %s", b.Status))
	}
	now := time.Now().UTC()
	b.Status = StatusProcessing
	b.Attempts++
	b.StartedAt = &now
	b.ErrorDetail = ""
	b.UpdatedAt = now
	return nil
}

// Complete records a successful merge pass
func (b *UploadBatch) Complete(merged, skipped, unresolved int) error {
	if b.Status != StatusProcessing {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot complete from state: %s", b.Status))
	}
	now := time.Now().UTC()
	b.Status = StatusCompleted
	b.MergedRows = merged
	b.SkippedRows = skipped
	b.Unresolved = unresolved
	b.CompletedAt = &now
	b.UpdatedAt = now
	return nil
}

// Fail records a failed merge pass
func (b *UploadBatch) Fail(detail string) error {
	if b.Status.IsTerminal() {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot fail from terminal state: %s", b.Status))
	}
	now := time.Now().UTC()
	b.Status = StatusFailed
	b.ErrorDetail = detail
	b.CompletedAt = &now
	b.UpdatedAt = now
	return nil
}

// Requeue puts a failed batch back in line for another merge attempt. The raw
// rows were never marked processed, so the retry picks them up again.
func (b *UploadBatch) Requeue() error {
	if b.Status != StatusFailed {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot requeue from state: %s", b.Status))
	}
	b.Status = StatusPending
	b.CompletedAt = nil
	b.Touch()
	return nil
}

// RowErrorsJSON returns the row errors as a JSON string
func (b *UploadBatch) RowErrorsJSON() (string, error) {
	if len(b.RowErrors) == 0 {
		return "[]", nil
	}
	data, err := json.Marshal(b.RowErrors)
	if err != nil {
		return "", fmt.Errorf("failed to marshal row errors: %w", err)
	}
	return string(data), nil
}

// SetRowErrorsFromJSON parses row errors from a JSON string
func (b *UploadBatch) SetRowErrorsFromJSON(jsonStr string) error {
	if jsonStr == "" || jsonStr == "[]" {
		b.RowErrors = make([]RowError, 0)
		return nil
	}
	var rowErrors []RowError
	if err := json.Unmarshal([]byte(jsonStr), &rowErrors); err != nil {
		return fmt.Errorf("failed to unmarshal row errors: %w", err)
	}
	b.RowErrors = rowErrors
	return nil
}

// Duration returns how long the merge took, or has taken so far
func (b *UploadBatch) Duration() time.Duration {
	if b.StartedAt == nil {
		return 0
	}
	end := time.Now()
	if b.CompletedAt != nil {
		end = *b.CompletedAt
	}
	return end.Sub(*b.StartedAt)
}
