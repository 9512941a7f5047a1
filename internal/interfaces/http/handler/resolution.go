package handler

import (
	"github.com/erp/reconciler/internal/application/reconciliation"
	"github.com/erp/reconciler/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ResolutionHandler manages projects, resolution rules and site
// allocations, the inputs that decide which internal project a ledger entry
// belongs to
type ResolutionHandler struct {
	BaseHandler
	service *reconciliation.Service
}

// NewResolutionHandler creates a new ResolutionHandler
func NewResolutionHandler(service *reconciliation.Service) *ResolutionHandler {
	return &ResolutionHandler{service: service}
}

// ListRules godoc
//
//	@Summary		List resolution rules
//	@Tags			rules
//	@ID				listRules
//	@Produce		json
//	@Success		200	{object}	APIResponse[[]reconciliation.RuleResponse]
//	@Router			/rules [get]
func (h *ResolutionHandler) ListRules(c *gin.Context) {
	rules, err := h.service.ListRules(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, rules)
}

// CreateRule godoc
//
//	@Summary		Create a resolution rule
//	@Description	Persists the rule and applies it at once to every ledger entry still on TBD.
//	@Tags			rules
//	@ID				createRule
//	@Accept			json
//	@Produce		json
//	@Param			request	body		reconciliation.CreateRuleInput	true	"Rule"
//	@Success		201		{object}	APIResponse[reconciliation.RuleResult]
//	@Failure		400		{object}	ErrorResponse
//	@Failure		404		{object}	ErrorResponse
//	@Failure		409		{object}	ErrorResponse
//	@Router			/rules [post]
func (h *ResolutionHandler) CreateRule(c *gin.Context) {
	var req reconciliation.CreateRuleInput
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	result, err := h.service.CreateRule(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, result)
}

// ApplyRule godoc
//
//	@Summary		Re-apply a rule to entries on TBD
//	@Tags			rules
//	@ID				applyRule
//	@Produce		json
//	@Param			id	path		string	true	"Rule ID"	format(uuid)
//	@Success		200	{object}	APIResponse[dto.ReassignedResponse]
//	@Failure		404	{object}	ErrorResponse
//	@Failure		409	{object}	ErrorResponse
//	@Router			/rules/{id}/apply [post]
func (h *ResolutionHandler) ApplyRule(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid rule ID")
		return
	}

	n, err := h.service.ApplyRuleRetrospectively(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.ReassignedResponse{Reassigned: n})
}

// AssignSite godoc
//
//	@Summary		Allocate a site to a project
//	@Description	Upserts the site allocation and moves every ledger entry on that site.
//	@Tags			allocations
//	@ID				assignSite
//	@Accept			json
//	@Produce		json
//	@Param			request	body		dto.AllocationRequest	true	"Allocation"
//	@Success		200		{object}	APIResponse[dto.ReassignedResponse]
//	@Failure		400		{object}	ErrorResponse
//	@Failure		404		{object}	ErrorResponse
//	@Router			/allocations [post]
func (h *ResolutionHandler) AssignSite(c *gin.Context) {
	var req dto.AllocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	n, err := h.service.AssignSiteToProject(c.Request.Context(), req.SiteCode, req.ProjectName)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.ReassignedResponse{Reassigned: n})
}

// AssignSites godoc
//
//	@Summary		Allocate many sites to a project
//	@Tags			allocations
//	@ID				assignSites
//	@Accept			json
//	@Produce		json
//	@Param			request	body		dto.BulkAllocationRequest	true	"Allocations"
//	@Success		200		{object}	APIResponse[dto.ReassignedResponse]
//	@Failure		400		{object}	ErrorResponse
//	@Failure		404		{object}	ErrorResponse
//	@Router			/allocations/bulk [post]
func (h *ResolutionHandler) AssignSites(c *gin.Context) {
	var req dto.BulkAllocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	n, err := h.service.AssignSitesToProject(c.Request.Context(), req.SiteCodes, req.ProjectName)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.ReassignedResponse{Reassigned: n})
}

// ListProjects godoc
//
//	@Summary		List internal projects
//	@Tags			projects
//	@ID				listProjects
//	@Produce		json
//	@Success		200	{object}	APIResponse[[]reconciliation.ProjectResponse]
//	@Router			/projects [get]
func (h *ResolutionHandler) ListProjects(c *gin.Context) {
	projects, err := h.service.ListProjects(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, projects)
}

// CreateProject godoc
//
//	@Summary		Create an internal project
//	@Tags			projects
//	@ID				createProject
//	@Accept			json
//	@Produce		json
//	@Param			request	body		reconciliation.CreateProjectInput	true	"Project"
//	@Success		201		{object}	APIResponse[reconciliation.ProjectResponse]
//	@Failure		400		{object}	ErrorResponse
//	@Failure		409		{object}	ErrorResponse
//	@Router			/projects [post]
func (h *ResolutionHandler) CreateProject(c *gin.Context) {
	var req reconciliation.CreateProjectInput
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	p, err := h.service.CreateProject(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, p)
}

// ListCustomerProjects godoc
//
//	@Summary		List customer projects
//	@Tags			projects
//	@ID				listCustomerProjects
//	@Produce		json
//	@Success		200	{object}	APIResponse[[]reconciliation.CustomerProjectResponse]
//	@Router			/customer-projects [get]
func (h *ResolutionHandler) ListCustomerProjects(c *gin.Context) {
	projects, err := h.service.ListCustomerProjects(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, projects)
}

// CreateCustomerProject godoc
//
//	@Summary		Register a customer project code
//	@Tags			projects
//	@ID				createCustomerProject
//	@Accept			json
//	@Produce		json
//	@Param			request	body		reconciliation.CreateCustomerProjectInput	true	"Customer project"
//	@Success		201		{object}	APIResponse[reconciliation.CustomerProjectResponse]
//	@Failure		400		{object}	ErrorResponse
//	@Failure		409		{object}	ErrorResponse
//	@Router			/customer-projects [post]
func (h *ResolutionHandler) CreateCustomerProject(c *gin.Context) {
	var req reconciliation.CreateCustomerProjectInput
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	p, err := h.service.CreateCustomerProject(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, p)
}
