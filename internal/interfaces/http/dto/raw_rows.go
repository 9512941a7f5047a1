package dto

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/erp/reconciler/internal/application/reconciliation"
	"github.com/erp/reconciler/internal/domain/batch"
	"github.com/erp/reconciler/internal/domain/ledger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Date is a calendar day accepted as "2006-01-02" or RFC 3339 in request
// bodies
type Date struct {
	time.Time
}

// UnmarshalJSON parses a day or a full timestamp; null leaves the zero value
func (d *Date) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			d.Time = t.UTC()
			return nil
		}
	}
	return fmt.Errorf("invalid date %q, expected YYYY-MM-DD", s)
}

// Ptr returns nil for the zero day
func (d *Date) Ptr() *time.Time {
	if d == nil || d.IsZero() {
		return nil
	}
	t := d.Time
	return &t
}

// RawPORow is one PO line as posted in a JSON upload. Every field may be
// missing; incomplete rows are staged and skipped by the merge pass.
type RawPORow struct {
	PONumber        string              `json:"po_number" binding:"max=100"`
	LineNo          *int                `json:"po_line_no"`
	SiteCode        string              `json:"site_code" binding:"max=100"`
	CustomerProject string              `json:"customer_project" binding:"max=100"`
	ItemDescription string              `json:"item_description" binding:"max=1000"`
	UnitPrice       decimal.NullDecimal `json:"unit_price"`
	RequestedQty    decimal.NullDecimal `json:"requested_qty"`
	PublishDate     *Date               `json:"publish_date"`
	PaymentTerms    string              `json:"payment_terms" binding:"max=200"`
}

// RawPOUploadRequest is a JSON upload of PO lines
type RawPOUploadRequest struct {
	UploadedBy       string     `json:"uploaded_by" binding:"max=100"`
	FileName         string     `json:"file_name" binding:"max=255"`
	Rows             []RawPORow `json:"rows" binding:"required,min=1,dive"`
	MergeAfterUpload *bool      `json:"merge_after_upload"`
}

// ToInput converts the request into the ingestion input
func (r *RawPOUploadRequest) ToInput() reconciliation.IngestPOInput {
	lines := make([]ledger.RawPOLine, len(r.Rows))
	for i, row := range r.Rows {
		lines[i] = ledger.RawPOLine{
			PONumber:             row.PONumber,
			LineNo:               row.LineNo,
			SiteCode:             row.SiteCode,
			CustomerProjectLabel: row.CustomerProject,
			ItemDescription:      row.ItemDescription,
			UnitPrice:            row.UnitPrice,
			RequestedQty:         row.RequestedQty,
			PublishDate:          row.PublishDate.Ptr(),
			PaymentTermLabel:     row.PaymentTerms,
		}
	}
	return reconciliation.IngestPOInput{
		UploadedBy: r.UploadedBy,
		FileName:   r.FileName,
		Lines:      lines,
	}
}

// RawAcceptanceRow is one acceptance as posted in a JSON upload
type RawAcceptanceRow struct {
	PONumber    string              `json:"po_number" binding:"max=100"`
	LineNo      *int                `json:"po_line_no"`
	ShipmentNo  *int                `json:"shipment_no"`
	AcceptedQty decimal.NullDecimal `json:"accepted_qty"`
	ProcessedAt *Date               `json:"processed_at"`
}

// RawAcceptanceUploadRequest is a JSON upload of acceptance lines
type RawAcceptanceUploadRequest struct {
	UploadedBy       string             `json:"uploaded_by" binding:"max=100"`
	FileName         string             `json:"file_name" binding:"max=255"`
	Rows             []RawAcceptanceRow `json:"rows" binding:"required,min=1,dive"`
	MergeAfterUpload *bool              `json:"merge_after_upload"`
}

// ToInput converts the request into the ingestion input
func (r *RawAcceptanceUploadRequest) ToInput() reconciliation.IngestAcceptanceInput {
	lines := make([]ledger.RawAcceptanceLine, len(r.Rows))
	for i, row := range r.Rows {
		lines[i] = ledger.RawAcceptanceLine{
			PONumber:    row.PONumber,
			LineNo:      row.LineNo,
			ShipmentNo:  row.ShipmentNo,
			AcceptedQty: row.AcceptedQty,
			ProcessedAt: row.ProcessedAt.Ptr(),
		}
	}
	return reconciliation.IngestAcceptanceInput{
		UploadedBy: r.UploadedBy,
		FileName:   r.FileName,
		Lines:      lines,
	}
}

// UploadResponse reports an accepted upload
// @Description Result of a file or JSON upload
type UploadResponse struct {
	BatchID     uuid.UUID        `json:"batch_id"`
	TotalRows   int              `json:"total_rows" example:"120"`
	Ingested    int              `json:"ingested_rows" example:"118"`
	Rejected    int              `json:"rejected_rows" example:"2"`
	Errors      []batch.RowError `json:"errors,omitempty"`
	IsTruncated bool             `json:"is_truncated,omitempty"`
	MergeJobID  *uuid.UUID       `json:"merge_job_id,omitempty"`
}

// MergeRequest optionally ties a merge to an upload batch
type MergeRequest struct {
	BatchID *uuid.UUID `json:"batch_id"`
	Async   bool       `json:"async"`
}

// MergeJobResponse reports a merge queued on the scheduler
type MergeJobResponse struct {
	JobID   uuid.UUID  `json:"job_id"`
	Kind    string     `json:"kind"`
	BatchID *uuid.UUID `json:"batch_id,omitempty"`
	Status  string     `json:"status"`
}

// AllocationRequest assigns one site to a project
type AllocationRequest struct {
	SiteCode    string `json:"site_code" binding:"required,max=100"`
	ProjectName string `json:"project_name" binding:"required,max=200"`
}

// BulkAllocationRequest assigns many sites to a project
type BulkAllocationRequest struct {
	SiteCodes   []string `json:"site_codes" binding:"required,min=1,max=5000"`
	ProjectName string   `json:"project_name" binding:"required,max=200"`
}

// ReassignedResponse counts ledger entries moved by an assignment
type ReassignedResponse struct {
	Reassigned int64 `json:"reassigned" example:"42"`
}
