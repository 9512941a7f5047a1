package csvimport

import (
	"time"

	"github.com/erp/reconciler/internal/domain/ledger"
	"github.com/shopspring/decimal"
)

// Canonical column names
const (
	ColPONumber        = "po_number"
	ColPOLineNo        = "po_line_no"
	ColSiteCode        = "site_code"
	ColCustomerProject = "customer_project"
	ColItemDescription = "item_description"
	ColUnitPrice       = "unit_price"
	ColRequestedQty    = "requested_qty"
	ColPublishDate     = "publish_date"
	ColPaymentTerms    = "payment_terms"
	ColShipmentNo      = "shipment_no"
	ColAcceptedQty     = "accepted_qty"
	ColProcessedAt     = "application_processed_at"
)

// headerAliases maps normalized header spellings seen in exports to the
// canonical column names
var headerAliases = map[string]string{
	"po":                         ColPONumber,
	"po_no":                      ColPONumber,
	"po_num":                     ColPONumber,
	"purchase_order":             ColPONumber,
	"line":                       ColPOLineNo,
	"line_no":                    ColPOLineNo,
	"po_line":                    ColPOLineNo,
	"po_line_number":             ColPOLineNo,
	"site":                       ColSiteCode,
	"site_id":                    ColSiteCode,
	"project_code":               ColCustomerProject,
	"customer_project_code":      ColCustomerProject,
	"description":                ColItemDescription,
	"item":                       ColItemDescription,
	"price":                      ColUnitPrice,
	"qty":                        ColRequestedQty,
	"quantity":                   ColRequestedQty,
	"requested_quantity":         ColRequestedQty,
	"published":                  ColPublishDate,
	"publication_date":           ColPublishDate,
	"payment_term":               ColPaymentTerms,
	"terms":                      ColPaymentTerms,
	"shipment":                   ColShipmentNo,
	"shipment_number":            ColShipmentNo,
	"accepted_quantity":          ColAcceptedQty,
	"application_processed":      ColProcessedAt,
	"application_processed_date": ColProcessedAt,
	"acceptance_date":            ColProcessedAt,
}

// Required columns. Rows may still leave these cells blank; such rows are
// ingested and discarded as malformed by the merge pass.
var (
	RequiredPOColumns         = []string{ColPONumber, ColPOLineNo}
	RequiredAcceptanceColumns = []string{ColPONumber, ColPOLineNo, ColShipmentNo}
)

// rowReader coerces the cells of one row, recording each failure
type rowReader struct {
	row  *Row
	errs *ErrorCollection
	ok   bool
}

func newRowReader(row *Row, errs *ErrorCollection) *rowReader {
	return &rowReader{row: row, errs: errs, ok: true}
}

func (r *rowReader) str(col string) string {
	return r.row.Get(col)
}

func (r *rowReader) dec(col string) decimal.NullDecimal {
	raw := r.row.Get(col)
	v, err := parseDecimal(raw)
	if err != nil {
		r.errs.AddTypeError(r.row.LineNumber, col, "decimal", raw)
		r.ok = false
	}
	return v
}

func (r *rowReader) integer(col string) *int {
	raw := r.row.Get(col)
	v, err := parseInt(raw)
	if err != nil {
		r.errs.AddTypeError(r.row.LineNumber, col, "integer", raw)
		r.ok = false
		return nil
	}
	if v != nil && *v < 0 {
		r.errs.AddRangeError(r.row.LineNumber, col, "must not be negative", raw)
		r.ok = false
		return nil
	}
	return v
}

func (r *rowReader) date(col string) *time.Time {
	raw := r.row.Get(col)
	v, err := parseDate(raw)
	if err != nil {
		r.errs.AddTypeError(r.row.LineNumber, col, "date", raw)
		r.ok = false
	}
	return v
}

// Mapped is the outcome of mapping a table
type Mapped[T any] struct {
	Rows      []T
	TotalRows int
	Errors    *ErrorCollection
}

// MapPurchaseOrders coerces PO rows. Rows with an unparseable cell are
// rejected into errs; the rest are returned in file order.
func MapPurchaseOrders(t *Table, errs *ErrorCollection) (*Mapped[ledger.RawPOLine], error) {
	if missing := t.MissingHeaders(RequiredPOColumns); len(missing) > 0 {
		return nil, &MissingColumnsError{Columns: missing}
	}
	if errs == nil {
		errs = NewErrorCollection(0)
	}

	out := &Mapped[ledger.RawPOLine]{Rows: make([]ledger.RawPOLine, 0, len(t.Rows)), TotalRows: len(t.Rows), Errors: errs}
	for _, row := range t.Rows {
		r := newRowReader(row, errs)
		line := ledger.RawPOLine{
			PONumber:             r.str(ColPONumber),
			LineNo:               r.integer(ColPOLineNo),
			SiteCode:             r.str(ColSiteCode),
			CustomerProjectLabel: r.str(ColCustomerProject),
			ItemDescription:      r.str(ColItemDescription),
			UnitPrice:            r.dec(ColUnitPrice),
			RequestedQty:         r.dec(ColRequestedQty),
			PublishDate:          r.date(ColPublishDate),
			PaymentTermLabel:     r.str(ColPaymentTerms),
		}
		if r.ok {
			out.Rows = append(out.Rows, line)
		}
	}
	out.TotalRows += errs.malformedRows()
	return out, nil
}

// MapAcceptances coerces acceptance rows the same way
func MapAcceptances(t *Table, errs *ErrorCollection) (*Mapped[ledger.RawAcceptanceLine], error) {
	if missing := t.MissingHeaders(RequiredAcceptanceColumns); len(missing) > 0 {
		return nil, &MissingColumnsError{Columns: missing}
	}
	if errs == nil {
		errs = NewErrorCollection(0)
	}

	out := &Mapped[ledger.RawAcceptanceLine]{Rows: make([]ledger.RawAcceptanceLine, 0, len(t.Rows)), TotalRows: len(t.Rows), Errors: errs}
	for _, row := range t.Rows {
		r := newRowReader(row, errs)
		line := ledger.RawAcceptanceLine{
			PONumber:    r.str(ColPONumber),
			LineNo:      r.integer(ColPOLineNo),
			ShipmentNo:  r.integer(ColShipmentNo),
			AcceptedQty: r.dec(ColAcceptedQty),
			ProcessedAt: r.date(ColProcessedAt),
		}
		if r.ok {
			out.Rows = append(out.Rows, line)
		}
	}
	out.TotalRows += errs.malformedRows()
	return out, nil
}
