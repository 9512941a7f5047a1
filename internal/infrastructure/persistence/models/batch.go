package models

import (
	"time"

	"github.com/erp/reconciler/internal/domain/batch"
)

// UploadBatchModel is the persistence model for an upload batch
type UploadBatchModel struct {
	BaseModel
	Kind         string `gorm:"size:30;not null;index"`
	FileName     string `gorm:"size:255;not null"`
	UploadedBy   string `gorm:"size:100;not null"`
	Status       string `gorm:"size:20;not null;index"`
	TotalRows    int    `gorm:"not null"`
	IngestedRows int    `gorm:"not null"`
	RejectedRows int    `gorm:"not null"`
	MergedRows   int    `gorm:"not null"`
	SkippedRows  int    `gorm:"not null"`
	Unresolved   int    `gorm:"column:unresolved_rows;not null"`
	RowErrors    string `gorm:"type:text;not null"`
	ErrorDetail  string `gorm:"type:text"`
	Attempts     int    `gorm:"not null"`
	StartedAt    *time.Time
	CompletedAt  *time.Time
}

// TableName returns the table name for GORM
func (UploadBatchModel) TableName() string {
	return "upload_batches"
}

// ToDomain converts the persistence model to a domain UploadBatch
func (m *UploadBatchModel) ToDomain() *batch.UploadBatch {
	b := &batch.UploadBatch{
		BaseEntity:   m.BaseModel.ToDomain(),
		Kind:         batch.Kind(m.Kind),
		FileName:     m.FileName,
		UploadedBy:   m.UploadedBy,
		Status:       batch.Status(m.Status),
		TotalRows:    m.TotalRows,
		IngestedRows: m.IngestedRows,
		RejectedRows: m.RejectedRows,
		MergedRows:   m.MergedRows,
		SkippedRows:  m.SkippedRows,
		Unresolved:   m.Unresolved,
		ErrorDetail:  m.ErrorDetail,
		Attempts:     m.Attempts,
		StartedAt:    utc(m.StartedAt),
		CompletedAt:  utc(m.CompletedAt),
	}
	// Stored by FromDomain, so a parse failure only loses the row error list
	_ = b.SetRowErrorsFromJSON(m.RowErrors)
	return b
}

// FromDomain populates the persistence model from a domain UploadBatch
func (m *UploadBatchModel) FromDomain(b *batch.UploadBatch) {
	m.FromDomainBaseEntity(b.BaseEntity)
	m.Kind = string(b.Kind)
	m.FileName = b.FileName
	m.UploadedBy = b.UploadedBy
	m.Status = string(b.Status)
	m.TotalRows = b.TotalRows
	m.IngestedRows = b.IngestedRows
	m.RejectedRows = b.RejectedRows
	m.MergedRows = b.MergedRows
	m.SkippedRows = b.SkippedRows
	m.Unresolved = b.Unresolved
	m.ErrorDetail = b.ErrorDetail
	m.Attempts = b.Attempts
	m.StartedAt = utc(b.StartedAt)
	m.CompletedAt = utc(b.CompletedAt)
	if rowErrors, err := b.RowErrorsJSON(); err == nil {
		m.RowErrors = rowErrors
	} else {
		m.RowErrors = "[]"
	}
}

// AllModels lists every model, in dependency order, for schema bootstrap in tests
func AllModels() []any {
	return []any{
		&InternalProjectModel{},
		&CustomerProjectModel{},
		&ResolutionRuleModel{},
		&SiteAllocationModel{},
		&ResolutionVersionModel{},
		&UploadBatchModel{},
		&RawPOLineModel{},
		&RawAcceptanceLineModel{},
		&MergedPOModel{},
	}
}
