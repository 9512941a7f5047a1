package router

import "github.com/erp/reconciler/internal/interfaces/http/handler"

// Handlers are the endpoint groups of the reconciler API
type Handlers struct {
	Upload     *handler.UploadHandler
	Merge      *handler.MergeHandler
	Resolution *handler.ResolutionHandler
	Ledger     *handler.LedgerHandler
	System     *handler.SystemHandler
}

// RegisterAPI registers every reconciler route on r
func RegisterAPI(r *Router, h Handlers) {
	uploads := NewDomainGroup("uploads", "/uploads")
	uploads.POST("/purchase-orders", h.Upload.UploadPurchaseOrders)
	uploads.POST("/acceptances", h.Upload.UploadAcceptances)

	raw := NewDomainGroup("raw", "/raw")
	raw.POST("/purchase-orders", h.Upload.IngestRawPurchaseOrders)
	raw.POST("/acceptances", h.Upload.IngestRawAcceptances)

	merge := NewDomainGroup("merge", "/merge")
	merge.POST("/purchase-orders", h.Merge.MergePurchaseOrders)
	merge.POST("/acceptances", h.Merge.MergeAcceptances)

	batches := NewDomainGroup("batches", "/batches")
	batches.GET("", h.Merge.ListBatches)
	batches.GET("/:id", h.Merge.GetBatch)

	rules := NewDomainGroup("rules", "/rules")
	rules.GET("", h.Resolution.ListRules)
	rules.POST("", h.Resolution.CreateRule)
	rules.POST("/:id/apply", h.Resolution.ApplyRule)

	allocations := NewDomainGroup("allocations", "/allocations")
	allocations.POST("", h.Resolution.AssignSite)
	allocations.POST("/bulk", h.Resolution.AssignSites)

	projects := NewDomainGroup("projects", "/projects")
	projects.GET("", h.Resolution.ListProjects)
	projects.POST("", h.Resolution.CreateProject)

	customerProjects := NewDomainGroup("customer-projects", "/customer-projects")
	customerProjects.GET("", h.Resolution.ListCustomerProjects)
	customerProjects.POST("", h.Resolution.CreateCustomerProject)

	ledgerRoutes := NewDomainGroup("ledger", "/ledger")
	ledgerRoutes.GET("", h.Ledger.ListLedger)
	ledgerRoutes.GET("/:po_id", h.Ledger.GetLedgerEntry)

	reports := NewDomainGroup("reports", "/reports")
	reports.GET("/remaining", h.Ledger.Remaining)
	summary := reports.Group("summary", "/summary")
	summary.GET("", h.Ledger.Summary)
	summary.GET("/projects", h.Ledger.SummaryByProject)
	summary.GET("/periods", h.Ledger.SummaryByPeriod)

	system := NewDomainGroup("system", "")
	system.GET("/health", h.System.Health)

	r.Register(uploads).
		Register(raw).
		Register(merge).
		Register(batches).
		Register(rules).
		Register(allocations).
		Register(projects).
		Register(customerProjects).
		Register(ledgerRoutes).
		Register(reports).
		Register(system).
		NoRoute(h.System.RouteNotFound)
}
