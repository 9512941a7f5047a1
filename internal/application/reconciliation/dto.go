package reconciliation

import (
	"time"

	"github.com/erp/reconciler/internal/domain/batch"
	"github.com/erp/reconciler/internal/domain/ledger"
	"github.com/erp/reconciler/internal/domain/project"
	"github.com/erp/reconciler/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// IngestPOInput is one upload of raw PO lines. Rejected and RowErrors carry
// what the file parser already refused so the batch reports the whole file.
type IngestPOInput struct {
	UploadedBy string
	FileName   string
	Lines      []ledger.RawPOLine
	Rejected   int
	RowErrors  []batch.RowError
}

// IngestAcceptanceInput is one upload of raw acceptance lines
type IngestAcceptanceInput struct {
	UploadedBy string
	FileName   string
	Lines      []ledger.RawAcceptanceLine
	Rejected   int
	RowErrors  []batch.RowError
}

// IngestResult reports what an upload wrote
type IngestResult struct {
	BatchID  uuid.UUID `json:"batch_id"`
	Count    int       `json:"count"`
	Rejected int       `json:"rejected"`
}

// Merge outcome reasons
const (
	ReasonMerged        = "MERGED"
	ReasonNoPendingRows = "NO_PENDING_ROWS"
	ReasonNothingMerged = "NOTHING_MERGED"
	ReasonFailed        = "FAILED"
)

// MergeResult reports one merge pass. Merged counts ledger entries written;
// Skipped counts raw rows discarded for missing fields; Unresolved counts raw
// rows left unprocessed because a reference could not be resolved.
type MergeResult struct {
	Pass       string        `json:"pass"`
	Reason     string        `json:"reason"`
	Fetched    int           `json:"fetched"`
	Merged     int           `json:"merged"`
	Created    int           `json:"created"`
	Updated    int           `json:"updated"`
	Unchanged  int           `json:"unchanged"`
	Duplicates int           `json:"duplicates"`
	Skipped    int           `json:"skipped"`
	Unresolved int           `json:"unresolved"`
	Processed  int64         `json:"processed"`
	FirstError string        `json:"first_error,omitempty"`
	Duration   time.Duration `json:"duration_ns"`
}

func (r *MergeResult) noteError(msg string) {
	if r.FirstError == "" {
		r.FirstError = msg
	}
}

func (r *MergeResult) finish() {
	switch {
	case r.Fetched == 0:
		r.Reason = ReasonNoPendingRows
	case r.Merged == 0:
		r.Reason = ReasonNothingMerged
	default:
		r.Reason = ReasonMerged
	}
}

// CreateRuleInput describes a new resolution rule. The target project is
// given by id or, when the id is empty, by name. The customer project
// predicate is given by code.
type CreateRuleInput struct {
	Name                string     `json:"name" binding:"required,max=200"`
	TargetProjectID     *uuid.UUID `json:"target_project_id"`
	TargetProjectName   string     `json:"target_project_name" binding:"required_without=TargetProjectID,max=200"`
	SitePrefix          string     `json:"site_prefix" binding:"max=100"`
	SiteSuffix          string     `json:"site_suffix" binding:"max=100"`
	SiteContains        string     `json:"site_contains" binding:"max=100"`
	CustomerProjectCode string     `json:"customer_project_code" binding:"max=100"`
	PublishDateMin      *time.Time `json:"publish_date_min"`
	PublishDateMax      *time.Time `json:"publish_date_max"`
}

// RuleResponse is a resolution rule in API responses
type RuleResponse struct {
	ID                uuid.UUID  `json:"id"`
	Name              string     `json:"name"`
	TargetProjectID   uuid.UUID  `json:"target_project_id"`
	SitePrefix        string     `json:"site_prefix,omitempty"`
	SiteSuffix        string     `json:"site_suffix,omitempty"`
	SiteContains      string     `json:"site_contains,omitempty"`
	CustomerProjectID *uuid.UUID `json:"customer_project_id,omitempty"`
	PublishDateMin    *time.Time `json:"publish_date_min,omitempty"`
	PublishDateMax    *time.Time `json:"publish_date_max,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
}

// ToRuleResponse converts a domain rule
func ToRuleResponse(r *project.Rule) RuleResponse {
	return RuleResponse{
		ID:                r.ID,
		Name:              r.Name,
		TargetProjectID:   r.TargetProjectID,
		SitePrefix:        r.SitePrefix,
		SiteSuffix:        r.SiteSuffix,
		SiteContains:      r.SiteContains,
		CustomerProjectID: r.CustomerProjectID,
		PublishDateMin:    r.PublishDateMin,
		PublishDateMax:    r.PublishDateMax,
		CreatedAt:         r.CreatedAt,
	}
}

// RuleResult is a created rule and how many TBD entries it claimed
type RuleResult struct {
	Rule       RuleResponse `json:"rule"`
	Reassigned int64        `json:"reassigned"`
}

// ProjectResponse is an internal project in API responses
type ProjectResponse struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	IsTBD       bool      `json:"is_tbd"`
}

// ToProjectResponse converts a domain project
func ToProjectResponse(p *project.InternalProject) ProjectResponse {
	return ProjectResponse{ID: p.ID, Name: p.Name, Description: p.Description, IsTBD: p.IsTBD}
}

// CustomerProjectResponse is a customer project in API responses
type CustomerProjectResponse struct {
	ID   uuid.UUID `json:"id"`
	Code string    `json:"code"`
	Name string    `json:"name"`
}

// LedgerEntryResponse is a ledger entry with its derived gap and stage
type LedgerEntryResponse struct {
	ID                uuid.UUID           `json:"id"`
	PoID              string              `json:"po_id"`
	PONumber          string              `json:"po_number"`
	LineNo            int                 `json:"po_line_no"`
	InternalProjectID uuid.UUID           `json:"internal_project_id"`
	CustomerProjectID *uuid.UUID          `json:"customer_project_id,omitempty"`
	SiteCode          string              `json:"site_code"`
	ItemDescription   string              `json:"item_description"`
	Category          string              `json:"category"`
	PaymentTerm       ledger.PaymentTerm  `json:"payment_term"`
	UnitPrice         decimal.Decimal     `json:"unit_price"`
	RequestedQty      decimal.Decimal     `json:"requested_qty"`
	LineValue         decimal.Decimal     `json:"line_value"`
	PublishDate       *time.Time          `json:"publish_date,omitempty"`
	TotalACAmount     decimal.NullDecimal `json:"total_ac_amount"`
	AcceptedACAmount  decimal.NullDecimal `json:"accepted_ac_amount"`
	DateACOK          *time.Time          `json:"date_ac_ok,omitempty"`
	TotalPACAmount    decimal.NullDecimal `json:"total_pac_amount"`
	AcceptedPACAmount decimal.NullDecimal `json:"accepted_pac_amount"`
	DatePACOK         *time.Time          `json:"date_pac_ok,omitempty"`
	Remaining         decimal.Decimal     `json:"remaining"`
	Stage             ledger.Stage        `json:"stage"`
	UpdatedAt         time.Time           `json:"updated_at"`
}

// ToLedgerEntryResponse converts a ledger entry
func ToLedgerEntryResponse(m *ledger.MergedPO) LedgerEntryResponse {
	return LedgerEntryResponse{
		ID:                m.ID,
		PoID:              m.PoID,
		PONumber:          m.PONumber,
		LineNo:            m.LineNo,
		InternalProjectID: m.InternalProjectID,
		CustomerProjectID: m.CustomerProjectID,
		SiteCode:          m.SiteCode,
		ItemDescription:   m.ItemDescription,
		Category:          m.Category,
		PaymentTerm:       m.PaymentTerm,
		UnitPrice:         m.UnitPrice,
		RequestedQty:      m.RequestedQty,
		LineValue:         m.LineValue,
		PublishDate:       m.PublishDate,
		TotalACAmount:     m.TotalACAmount,
		AcceptedACAmount:  m.AcceptedACAmount,
		DateACOK:          m.DateACOK,
		TotalPACAmount:    m.TotalPACAmount,
		AcceptedPACAmount: m.AcceptedPACAmount,
		DatePACOK:         m.DatePACOK,
		Remaining:         m.Remaining(),
		Stage:             m.Stage(),
		UpdatedAt:         m.UpdatedAt,
	}
}

func toLedgerEntryResponses(entries []ledger.MergedPO) []LedgerEntryResponse {
	out := make([]LedgerEntryResponse, len(entries))
	for i := range entries {
		out[i] = ToLedgerEntryResponse(&entries[i])
	}
	return out
}

// LedgerQuery filters the ledger listing
type LedgerQuery struct {
	ProjectID     string     `form:"project_id" binding:"omitempty,uuid"`
	SiteCode      string     `form:"site_code"`
	PublishedFrom *time.Time `form:"from" time_format:"2006-01-02"`
	PublishedTo   *time.Time `form:"to" time_format:"2006-01-02"`
	Search        string     `form:"search"`
	Page          int        `form:"page" binding:"omitempty,min=1"`
	PageSize      int        `form:"page_size" binding:"omitempty,min=1,max=500"`
	OrderBy       string     `form:"order_by"`
	OrderDir      string     `form:"order_dir" binding:"omitempty,oneof=asc desc"`
}

func (q LedgerQuery) filter() ledger.LedgerFilter {
	if q.OrderBy == "" && q.OrderDir == "" {
		q.OrderDir = "asc"
	}
	return ledger.LedgerFilter{
		Filter: shared.Filter{
			Page:     q.Page,
			PageSize: q.PageSize,
			OrderBy:  q.OrderBy,
			OrderDir: q.OrderDir,
			Search:   q.Search,
		},
		ProjectID:     parseOptionalID(q.ProjectID),
		SiteCode:      q.SiteCode,
		PublishedFrom: q.PublishedFrom,
		PublishedTo:   endOfDay(q.PublishedTo),
	}
}

// SummaryQuery filters the summaries. To is an inclusive day.
type SummaryQuery struct {
	ProjectID     string     `form:"project_id" binding:"omitempty,uuid"`
	PublishedFrom *time.Time `form:"from" time_format:"2006-01-02"`
	PublishedTo   *time.Time `form:"to" time_format:"2006-01-02"`
}

func (q SummaryQuery) filter() ledger.SummaryFilter {
	return ledger.SummaryFilter{
		ProjectID:     parseOptionalID(q.ProjectID),
		PublishedFrom: q.PublishedFrom,
		PublishedTo:   endOfDay(q.PublishedTo),
	}
}

// PeriodQuery selects the buckets of a period summary
type PeriodQuery struct {
	Granularity ledger.Granularity `form:"granularity" binding:"required,oneof=year month week"`
	From        time.Time          `form:"from" binding:"required" time_format:"2006-01-02"`
	To          time.Time          `form:"to" binding:"required" time_format:"2006-01-02"`
	ProjectID   string             `form:"project_id" binding:"omitempty,uuid"`
}

// RemainingQuery filters the outstanding view
type RemainingQuery struct {
	Stage     ledger.Stage `form:"stage"`
	ProjectID string       `form:"project_id" binding:"omitempty,uuid"`
	Page      int          `form:"page" binding:"omitempty,min=1"`
	PageSize  int          `form:"page_size" binding:"omitempty,min=1,max=500"`
	OrderBy   string       `form:"order_by"`
	OrderDir  string       `form:"order_dir" binding:"omitempty,oneof=asc desc"`
}

// RemainingResponse is a page of outstanding entries plus the gap of every
// entry the filter matches
type RemainingResponse struct {
	shared.Paginated[LedgerEntryResponse]
	TotalGap decimal.Decimal `json:"total_gap"`
}

// BatchResponse is an upload batch in API responses
type BatchResponse struct {
	ID           uuid.UUID        `json:"id"`
	Kind         batch.Kind       `json:"kind"`
	FileName     string           `json:"file_name"`
	UploadedBy   string           `json:"uploaded_by"`
	Status       batch.Status     `json:"status"`
	TotalRows    int              `json:"total_rows"`
	IngestedRows int              `json:"ingested_rows"`
	RejectedRows int              `json:"rejected_rows"`
	MergedRows   int              `json:"merged_rows"`
	SkippedRows  int              `json:"skipped_rows"`
	Unresolved   int              `json:"unresolved_rows"`
	RowErrors    []batch.RowError `json:"row_errors"`
	ErrorDetail  string           `json:"error_detail,omitempty"`
	Attempts     int              `json:"attempts"`
	CreatedAt    time.Time        `json:"created_at"`
	StartedAt    *time.Time       `json:"started_at,omitempty"`
	CompletedAt  *time.Time       `json:"completed_at,omitempty"`
}

// ToBatchResponse converts a domain batch
func ToBatchResponse(b *batch.UploadBatch) BatchResponse {
	return BatchResponse{
		ID:           b.ID,
		Kind:         b.Kind,
		FileName:     b.FileName,
		UploadedBy:   b.UploadedBy,
		Status:       b.Status,
		TotalRows:    b.TotalRows,
		IngestedRows: b.IngestedRows,
		RejectedRows: b.RejectedRows,
		MergedRows:   b.MergedRows,
		SkippedRows:  b.SkippedRows,
		Unresolved:   b.Unresolved,
		RowErrors:    b.RowErrors,
		ErrorDetail:  b.ErrorDetail,
		Attempts:     b.Attempts,
		CreatedAt:    b.CreatedAt,
		StartedAt:    b.StartedAt,
		CompletedAt:  b.CompletedAt,
	}
}

// parseOptionalID parses an already validated optional uuid
func parseOptionalID(s string) *uuid.UUID {
	if s == "" {
		return nil
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return nil
	}
	return &id
}

// endOfDay turns an inclusive "to" day into its last instant
func endOfDay(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	end := time.Date(u.Year(), u.Month(), u.Day(), 23, 59, 59, int(time.Second-time.Nanosecond), time.UTC)
	return &end
}

// CreateProjectInput describes a new internal project
type CreateProjectInput struct {
	Name        string `json:"name" binding:"required,max=200"`
	Description string `json:"description" binding:"max=1000"`
}

// CreateCustomerProjectInput describes a new customer project
type CreateCustomerProjectInput struct {
	Code string `json:"code" binding:"required,max=100"`
	Name string `json:"name" binding:"max=200"`
}

// ToCustomerProjectResponse converts a domain customer project
func ToCustomerProjectResponse(p *project.CustomerProject) CustomerProjectResponse {
	return CustomerProjectResponse{ID: p.ID, Code: p.Code, Name: p.Name}
}
