// Package ledger holds the canonical PO ledger and the pure steps that feed
// it: deduplication of raw PO lines, acceptance aggregation, AC/PAC
// derivation and gap staging.
package ledger

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// POKey identifies a PO line
type POKey struct {
	PONumber string
	LineNo   int
}

// PoID returns the canonical ledger identifier "{po_no}-{line}"
func (k POKey) PoID() string {
	return FormatPoID(k.PONumber, k.LineNo)
}

// Less orders keys by PO number then line
func (k POKey) Less(other POKey) bool {
	if k.PONumber != other.PONumber {
		return k.PONumber < other.PONumber
	}
	return k.LineNo < other.LineNo
}

// FormatPoID builds the canonical ledger identifier
func FormatPoID(poNumber string, lineNo int) string {
	return fmt.Sprintf("%s-%d", strings.TrimSpace(poNumber), lineNo)
}

// RawPOLine is one uploaded PO line occurrence. Only the processed flag
// changes after it is written.
type RawPOLine struct {
	ID                   int64
	BatchID              *uuid.UUID
	UploadedBy           string
	PONumber             string
	LineNo               *int
	SiteCode             string
	CustomerProjectLabel string
	ItemDescription      string
	UnitPrice            decimal.NullDecimal
	RequestedQty         decimal.NullDecimal
	PublishDate          *time.Time
	PaymentTermLabel     string
	PaymentTerm          PaymentTerm
	Processed            bool
	MarkedAt             *time.Time
	CreatedAt            time.Time
}

// Key returns the PO line key, false when the row lacks what a merge needs
func (r *RawPOLine) Key() (POKey, bool) {
	po := strings.TrimSpace(r.PONumber)
	if po == "" || r.LineNo == nil || !r.UnitPrice.Valid || !r.RequestedQty.Valid {
		return POKey{}, false
	}
	return POKey{PONumber: po, LineNo: *r.LineNo}, true
}

// NewerThan reports whether r supersedes other within a dedup group: the later
// publish date wins, a missing date sorts first, and equal dates fall back to
// insertion order.
func (r *RawPOLine) NewerThan(other *RawPOLine) bool {
	switch {
	case r.PublishDate == nil && other.PublishDate != nil:
		return false
	case r.PublishDate != nil && other.PublishDate == nil:
		return true
	case r.PublishDate != nil && !r.PublishDate.Equal(*other.PublishDate):
		return r.PublishDate.After(*other.PublishDate)
	}
	return r.ID > other.ID
}

// AcceptanceKey identifies a shipment of a PO line
type AcceptanceKey struct {
	PONumber   string
	LineNo     int
	ShipmentNo int
}

// PoID returns the ledger identifier the shipment belongs to
func (k AcceptanceKey) PoID() string {
	return FormatPoID(k.PONumber, k.LineNo)
}

// RawAcceptanceLine is one uploaded acceptance occurrence
type RawAcceptanceLine struct {
	ID          int64
	BatchID     *uuid.UUID
	UploadedBy  string
	PONumber    string
	LineNo      *int
	ShipmentNo  *int
	AcceptedQty decimal.NullDecimal
	ProcessedAt *time.Time
	Processed   bool
	MarkedAt    *time.Time
	CreatedAt   time.Time
}

// Key returns the shipment key, false when any required field is missing
func (r *RawAcceptanceLine) Key() (AcceptanceKey, bool) {
	po := strings.TrimSpace(r.PONumber)
	if po == "" || r.LineNo == nil || r.ShipmentNo == nil || !r.AcceptedQty.Valid || r.ProcessedAt == nil {
		return AcceptanceKey{}, false
	}
	return AcceptanceKey{PONumber: po, LineNo: *r.LineNo, ShipmentNo: *r.ShipmentNo}, true
}
