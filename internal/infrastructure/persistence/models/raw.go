package models

import (
	"time"

	"github.com/erp/reconciler/internal/domain/ledger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RawPOLineModel is one staged purchase order line as uploaded.
// The id sequence records insertion order.
type RawPOLineModel struct {
	ID                   int64               `gorm:"primaryKey;autoIncrement"`
	BatchID              *uuid.UUID          `gorm:"type:uuid;index"`
	UploadedBy           string              `gorm:"size:100;not null"`
	PONumber             string              `gorm:"column:po_number;size:100"`
	LineNo               *int                `gorm:"column:po_line_no"`
	SiteCode             string              `gorm:"size:100"`
	CustomerProjectLabel string              `gorm:"size:200"`
	ItemDescription      string              `gorm:"type:text"`
	UnitPrice            decimal.NullDecimal `gorm:"type:decimal(18,4)"`
	RequestedQty         decimal.NullDecimal `gorm:"type:decimal(18,4)"`
	PublishDate          *time.Time
	PaymentTermLabel     string `gorm:"size:200"`
	PaymentTerm          string `gorm:"size:20;not null"`
	Processed            bool   `gorm:"not null;index"`
	ProcessedAt          *time.Time
	AttemptedAt          *time.Time
	CreatedAt            time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (RawPOLineModel) TableName() string {
	return "raw_purchase_order_lines"
}

// ToDomain converts the persistence model to a domain RawPOLine
func (m *RawPOLineModel) ToDomain() ledger.RawPOLine {
	return ledger.RawPOLine{
		ID:                   m.ID,
		BatchID:              m.BatchID,
		UploadedBy:           m.UploadedBy,
		PONumber:             m.PONumber,
		LineNo:               m.LineNo,
		SiteCode:             m.SiteCode,
		CustomerProjectLabel: m.CustomerProjectLabel,
		ItemDescription:      m.ItemDescription,
		UnitPrice:            m.UnitPrice,
		RequestedQty:         m.RequestedQty,
		PublishDate:          utc(m.PublishDate),
		PaymentTermLabel:     m.PaymentTermLabel,
		PaymentTerm:          ledger.PaymentTerm(m.PaymentTerm),
		Processed:            m.Processed,
		MarkedAt:             utc(m.ProcessedAt),
		CreatedAt:            m.CreatedAt.UTC(),
	}
}

// FromDomain populates the persistence model from a domain RawPOLine
func (m *RawPOLineModel) FromDomain(r *ledger.RawPOLine) {
	m.ID = r.ID
	m.BatchID = r.BatchID
	m.UploadedBy = r.UploadedBy
	m.PONumber = r.PONumber
	m.LineNo = r.LineNo
	m.SiteCode = r.SiteCode
	m.CustomerProjectLabel = r.CustomerProjectLabel
	m.ItemDescription = r.ItemDescription
	m.UnitPrice = r.UnitPrice
	m.RequestedQty = r.RequestedQty
	m.PublishDate = utc(r.PublishDate)
	m.PaymentTermLabel = r.PaymentTermLabel
	m.PaymentTerm = string(r.PaymentTerm)
	if m.PaymentTerm == "" {
		m.PaymentTerm = string(ledger.PaymentTermUnknown)
	}
	m.Processed = r.Processed
	m.ProcessedAt = utc(r.MarkedAt)
	m.CreatedAt = r.CreatedAt
}

// RawAcceptanceLineModel is one staged acceptance line as uploaded
type RawAcceptanceLineModel struct {
	ID          int64               `gorm:"primaryKey;autoIncrement"`
	BatchID     *uuid.UUID          `gorm:"type:uuid;index"`
	UploadedBy  string              `gorm:"size:100;not null"`
	PONumber    string              `gorm:"column:po_number;size:100;index"`
	LineNo      *int                `gorm:"column:po_line_no"`
	ShipmentNo  *int                `gorm:"column:shipment_no"`
	AcceptedQty decimal.NullDecimal `gorm:"type:decimal(18,4)"`
	// ApplicationProcessedAt is when the customer processed the acceptance,
	// not when this row was merged.
	ApplicationProcessedAt *time.Time
	Processed              bool `gorm:"not null;index"`
	ProcessedAt            *time.Time
	AttemptedAt            *time.Time
	CreatedAt              time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (RawAcceptanceLineModel) TableName() string {
	return "raw_acceptance_lines"
}

// ToDomain converts the persistence model to a domain RawAcceptanceLine
func (m *RawAcceptanceLineModel) ToDomain() ledger.RawAcceptanceLine {
	return ledger.RawAcceptanceLine{
		ID:          m.ID,
		BatchID:     m.BatchID,
		UploadedBy:  m.UploadedBy,
		PONumber:    m.PONumber,
		LineNo:      m.LineNo,
		ShipmentNo:  m.ShipmentNo,
		AcceptedQty: m.AcceptedQty,
		ProcessedAt: utc(m.ApplicationProcessedAt),
		Processed:   m.Processed,
		MarkedAt:    utc(m.ProcessedAt),
		CreatedAt:   m.CreatedAt.UTC(),
	}
}

// FromDomain populates the persistence model from a domain RawAcceptanceLine
func (m *RawAcceptanceLineModel) FromDomain(r *ledger.RawAcceptanceLine) {
	m.ID = r.ID
	m.BatchID = r.BatchID
	m.UploadedBy = r.UploadedBy
	m.PONumber = r.PONumber
	m.LineNo = r.LineNo
	m.ShipmentNo = r.ShipmentNo
	m.AcceptedQty = r.AcceptedQty
	m.ApplicationProcessedAt = utc(r.ProcessedAt)
	m.Processed = r.Processed
	m.ProcessedAt = utc(r.MarkedAt)
	m.CreatedAt = r.CreatedAt
}
