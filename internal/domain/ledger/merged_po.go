package ledger

import (
	"strings"
	"time"

	"github.com/erp/reconciler/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// amountScale matches the decimal(18,4) ledger columns
const amountScale = 4

// MergedPO is the canonical ledger entry of one PO line, keyed by PoID
type MergedPO struct {
	shared.BaseEntity
	PoID              string
	PONumber          string
	LineNo            int
	InternalProjectID uuid.UUID
	CustomerProjectID *uuid.UUID
	SiteCode          string
	ItemDescription   string
	Category          string
	PaymentTerm       PaymentTerm
	UnitPrice         decimal.Decimal
	RequestedQty      decimal.Decimal
	LineValue         decimal.Decimal
	PublishDate       *time.Time

	TotalACAmount     decimal.NullDecimal
	AcceptedACAmount  decimal.NullDecimal
	DateACOK          *time.Time
	TotalPACAmount    decimal.NullDecimal
	AcceptedPACAmount decimal.NullDecimal
	DatePACOK         *time.Time
}

// IncomingLine is a deduplicated raw PO line with its references resolved
type IncomingLine struct {
	Key               POKey
	SiteCode          string
	ItemDescription   string
	UnitPrice         decimal.Decimal
	RequestedQty      decimal.Decimal
	PublishDate       *time.Time
	PaymentTerm       PaymentTerm
	CustomerProjectID *uuid.UUID
	InternalProjectID uuid.UUID
}

// IncomingFromRaw lifts a dedup representative into an incoming line
func IncomingFromRaw(g POGroup, customerProjectID *uuid.UUID, internalProjectID uuid.UUID) IncomingLine {
	r := g.Representative
	term := r.PaymentTerm
	if !term.IsValid() {
		term = CategorizePaymentTerm(r.PaymentTermLabel)
	}
	return IncomingLine{
		Key:               g.Key,
		SiteCode:          strings.TrimSpace(r.SiteCode),
		ItemDescription:   strings.TrimSpace(r.ItemDescription),
		UnitPrice:         r.UnitPrice.Decimal,
		RequestedQty:      r.RequestedQty.Decimal,
		PublishDate:       utcPtr(r.PublishDate),
		PaymentTerm:       term,
		CustomerProjectID: customerProjectID,
		InternalProjectID: internalProjectID,
	}
}

// NewMergedPO creates the ledger entry for a PO line seen for the first time
func NewMergedPO(in IncomingLine) *MergedPO {
	term := in.PaymentTerm
	if !term.IsValid() {
		term = PaymentTermUnknown
	}
	return &MergedPO{
		BaseEntity:        shared.NewBaseEntity(),
		PoID:              in.Key.PoID(),
		PONumber:          in.Key.PONumber,
		LineNo:            in.Key.LineNo,
		InternalProjectID: in.InternalProjectID,
		CustomerProjectID: in.CustomerProjectID,
		SiteCode:          in.SiteCode,
		ItemDescription:   in.ItemDescription,
		Category:          Classify(in.ItemDescription),
		PaymentTerm:       term,
		UnitPrice:         in.UnitPrice,
		RequestedQty:      in.RequestedQty,
		LineValue:         lineValue(in.UnitPrice, in.RequestedQty),
		PublishDate:       in.PublishDate,
	}
}

// ApplyIncoming merges a later upload of the same PO line into the entry and
// reports whether anything changed.
//
// A zero quantity cancels the line: quantity and line value drop to zero and
// everything else, acceptance history included, stays. Otherwise price,
// quantity, line value, publish date, site and project are overwritten, last
// write wins.
func (m *MergedPO) ApplyIncoming(in IncomingLine) bool {
	if in.RequestedQty.IsZero() {
		if m.RequestedQty.IsZero() && m.LineValue.IsZero() {
			return false
		}
		m.RequestedQty = decimal.Zero
		m.LineValue = decimal.Zero
		m.Touch()
		return true
	}

	value := lineValue(in.UnitPrice, in.RequestedQty)
	changed := !m.UnitPrice.Equal(in.UnitPrice) ||
		!m.RequestedQty.Equal(in.RequestedQty) ||
		!m.LineValue.Equal(value) ||
		!sameTime(m.PublishDate, in.PublishDate) ||
		m.SiteCode != in.SiteCode ||
		m.InternalProjectID != in.InternalProjectID
	if !changed {
		return false
	}

	m.UnitPrice = in.UnitPrice
	m.RequestedQty = in.RequestedQty
	m.LineValue = value
	m.PublishDate = in.PublishDate
	m.SiteCode = in.SiteCode
	m.InternalProjectID = in.InternalProjectID
	m.Touch()
	return true
}

func lineValue(price, qty decimal.Decimal) decimal.Decimal {
	return price.Mul(qty).Round(amountScale)
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
