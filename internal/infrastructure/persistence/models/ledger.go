package models

import (
	"time"

	"github.com/erp/reconciler/internal/domain/ledger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MergedPOModel is the persistence model for a canonical ledger entry
type MergedPOModel struct {
	BaseModel
	PoID              string          `gorm:"column:po_id;size:120;not null;uniqueIndex"`
	PONumber          string          `gorm:"column:po_number;size:100;not null"`
	LineNo            int             `gorm:"column:po_line_no;not null"`
	InternalProjectID uuid.UUID       `gorm:"type:uuid;not null;index"`
	CustomerProjectID *uuid.UUID      `gorm:"type:uuid"`
	SiteCode          string          `gorm:"size:100;index"`
	ItemDescription   string          `gorm:"type:text"`
	Category          string          `gorm:"size:50;not null"`
	PaymentTerm       string          `gorm:"size:20;not null"`
	UnitPrice         decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	RequestedQty      decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	LineValue         decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	PublishDate       *time.Time

	TotalACAmount     decimal.NullDecimal `gorm:"column:total_ac_amount;type:decimal(18,4)"`
	AcceptedACAmount  decimal.NullDecimal `gorm:"column:accepted_ac_amount;type:decimal(18,4)"`
	DateACOK          *time.Time          `gorm:"column:date_ac_ok"`
	TotalPACAmount    decimal.NullDecimal `gorm:"column:total_pac_amount;type:decimal(18,4)"`
	AcceptedPACAmount decimal.NullDecimal `gorm:"column:accepted_pac_amount;type:decimal(18,4)"`
	DatePACOK         *time.Time          `gorm:"column:date_pac_ok"`
}

// TableName returns the table name for GORM
func (MergedPOModel) TableName() string {
	return "merged_purchase_orders"
}

// ToDomain converts the persistence model to a domain MergedPO
func (m *MergedPOModel) ToDomain() *ledger.MergedPO {
	return &ledger.MergedPO{
		BaseEntity:        m.BaseModel.ToDomain(),
		PoID:              m.PoID,
		PONumber:          m.PONumber,
		LineNo:            m.LineNo,
		InternalProjectID: m.InternalProjectID,
		CustomerProjectID: m.CustomerProjectID,
		SiteCode:          m.SiteCode,
		ItemDescription:   m.ItemDescription,
		Category:          m.Category,
		PaymentTerm:       ledger.PaymentTerm(m.PaymentTerm),
		UnitPrice:         m.UnitPrice,
		RequestedQty:      m.RequestedQty,
		LineValue:         m.LineValue,
		PublishDate:       utc(m.PublishDate),
		TotalACAmount:     m.TotalACAmount,
		AcceptedACAmount:  m.AcceptedACAmount,
		DateACOK:          utc(m.DateACOK),
		TotalPACAmount:    m.TotalPACAmount,
		AcceptedPACAmount: m.AcceptedPACAmount,
		DatePACOK:         utc(m.DatePACOK),
	}
}

// FromDomain populates the persistence model from a domain MergedPO
func (m *MergedPOModel) FromDomain(e *ledger.MergedPO) {
	m.FromDomainBaseEntity(e.BaseEntity)
	m.PoID = e.PoID
	m.PONumber = e.PONumber
	m.LineNo = e.LineNo
	m.InternalProjectID = e.InternalProjectID
	m.CustomerProjectID = e.CustomerProjectID
	m.SiteCode = e.SiteCode
	m.ItemDescription = e.ItemDescription
	m.Category = e.Category
	m.PaymentTerm = string(e.PaymentTerm)
	m.UnitPrice = e.UnitPrice
	m.RequestedQty = e.RequestedQty
	m.LineValue = e.LineValue
	m.PublishDate = utc(e.PublishDate)
	m.TotalACAmount = e.TotalACAmount
	m.AcceptedACAmount = e.AcceptedACAmount
	m.DateACOK = utc(e.DateACOK)
	m.TotalPACAmount = e.TotalPACAmount
	m.AcceptedPACAmount = e.AcceptedPACAmount
	m.DatePACOK = utc(e.DatePACOK)
}

// MergedPOModelFromDomain creates a new persistence model from a domain MergedPO
func MergedPOModelFromDomain(e *ledger.MergedPO) *MergedPOModel {
	m := &MergedPOModel{}
	m.FromDomain(e)
	return m
}
