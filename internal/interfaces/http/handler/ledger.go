package handler

import (
	"github.com/erp/reconciler/internal/application/reconciliation"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// LedgerHandler serves the ledger listing and the reconciliation reports
type LedgerHandler struct {
	BaseHandler
	reports *reconciliation.ReportService
}

// NewLedgerHandler creates a new LedgerHandler
func NewLedgerHandler(reports *reconciliation.ReportService) *LedgerHandler {
	return &LedgerHandler{reports: reports}
}

// RemainingData is a page of outstanding entries with the gap of every entry
// the filter matches
// @Description Outstanding ledger entries
type RemainingData struct {
	Items    []reconciliation.LedgerEntryResponse `json:"items"`
	TotalGap decimal.Decimal                      `json:"total_gap"`
}

// ListLedger godoc
//
//	@Summary		List ledger entries
//	@Description	Paginated ledger with project, site, publish date and free-text filters.
//	@Tags			ledger
//	@ID				listLedger
//	@Produce		json
//	@Param			project_id	query		string	false	"Internal project"	format(uuid)
//	@Param			site_code	query		string	false	"Site code"
//	@Param			from		query		string	false	"Published on or after (YYYY-MM-DD)"
//	@Param			to			query		string	false	"Published on or before (YYYY-MM-DD)"
//	@Param			search		query		string	false	"Matches po_id, site or item description"
//	@Param			page		query		int		false	"Page number"	default(1)
//	@Param			page_size	query		int		false	"Page size"		default(20)
//	@Param			order_by	query		string	false	"Sort column"
//	@Param			order_dir	query		string	false	"asc or desc"
//	@Success		200			{object}	APIResponse[[]reconciliation.LedgerEntryResponse]
//	@Failure		400			{object}	ErrorResponse
//	@Router			/ledger [get]
func (h *LedgerHandler) ListLedger(c *gin.Context) {
	var q reconciliation.LedgerQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.BindError(c, err)
		return
	}

	page, err := h.reports.ListLedger(c.Request.Context(), q)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, page.Items, page.Total, page.Page, page.PageSize)
}

// GetLedgerEntry godoc
//
//	@Summary		Get one ledger entry
//	@Tags			ledger
//	@ID				getLedgerEntry
//	@Produce		json
//	@Param			po_id	path		string	true	"PO id, {po_number}-{line}"
//	@Success		200		{object}	APIResponse[reconciliation.LedgerEntryResponse]
//	@Failure		404		{object}	ErrorResponse
//	@Router			/ledger/{po_id} [get]
func (h *LedgerHandler) GetLedgerEntry(c *gin.Context) {
	entry, err := h.reports.GetLedgerEntry(c.Request.Context(), c.Param("po_id"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, entry)
}

// Summary godoc
//
//	@Summary		Global reconciliation totals
//	@Tags			reports
//	@ID				getSummary
//	@Produce		json
//	@Param			project_id	query		string	false	"Internal project"	format(uuid)
//	@Param			from		query		string	false	"Published on or after (YYYY-MM-DD)"
//	@Param			to			query		string	false	"Published on or before (YYYY-MM-DD)"
//	@Success		200			{object}	APIResponse[ledger.Totals]
//	@Router			/reports/summary [get]
func (h *LedgerHandler) Summary(c *gin.Context) {
	var q reconciliation.SummaryQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.BindError(c, err)
		return
	}

	totals, err := h.reports.Summary(c.Request.Context(), q)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, totals)
}

// SummaryByProject godoc
//
//	@Summary		Totals per internal project
//	@Tags			reports
//	@ID				getSummaryByProject
//	@Produce		json
//	@Param			from	query		string	false	"Published on or after (YYYY-MM-DD)"
//	@Param			to		query		string	false	"Published on or before (YYYY-MM-DD)"
//	@Success		200		{object}	APIResponse[[]ledger.ProjectTotals]
//	@Router			/reports/summary/projects [get]
func (h *LedgerHandler) SummaryByProject(c *gin.Context) {
	var q reconciliation.SummaryQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.BindError(c, err)
		return
	}

	rows, err := h.reports.SummaryByProject(c.Request.Context(), q)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, rows)
}

// SummaryByPeriod godoc
//
//	@Summary		Totals per year, month or week
//	@Description	PO value is bucketed by publish date, AC by its OK date and PAC by its OK date.
//	@Tags			reports
//	@ID				getSummaryByPeriod
//	@Produce		json
//	@Param			granularity	query		string	true	"year, month or week"
//	@Param			from		query		string	true	"First day (YYYY-MM-DD)"
//	@Param			to			query		string	true	"Last day (YYYY-MM-DD)"
//	@Param			project_id	query		string	false	"Internal project"	format(uuid)
//	@Success		200			{object}	APIResponse[[]ledger.PeriodTotals]
//	@Failure		400			{object}	ErrorResponse
//	@Router			/reports/summary/periods [get]
func (h *LedgerHandler) SummaryByPeriod(c *gin.Context) {
	var q reconciliation.PeriodQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.BindError(c, err)
		return
	}

	rows, err := h.reports.SummaryByPeriod(c.Request.Context(), q)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, rows)
}

// Remaining godoc
//
//	@Summary		Outstanding entries, largest gap first
//	@Tags			reports
//	@ID				getRemaining
//	@Produce		json
//	@Param			stage		query		string	false	"WAITING_AC, WAITING_PAC or PARTIAL_GAP"
//	@Param			project_id	query		string	false	"Internal project"	format(uuid)
//	@Param			page		query		int		false	"Page number"	default(1)
//	@Param			page_size	query		int		false	"Page size"		default(20)
//	@Success		200			{object}	APIResponse[RemainingData]
//	@Failure		400			{object}	ErrorResponse
//	@Router			/reports/remaining [get]
func (h *LedgerHandler) Remaining(c *gin.Context) {
	var q reconciliation.RemainingQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.BindError(c, err)
		return
	}

	page, err := h.reports.RemainingToAccept(c.Request.Context(), q)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, RemainingData{Items: page.Items, TotalGap: page.TotalGap},
		page.Total, page.Page, page.PageSize)
}
