package handler

import (
	"context"
	"errors"
	"io"
	"strconv"

	"github.com/erp/reconciler/internal/application/reconciliation"
	"github.com/erp/reconciler/internal/domain/batch"
	"github.com/erp/reconciler/internal/infrastructure/logger"
	"github.com/erp/reconciler/internal/infrastructure/scheduler"
	"github.com/erp/reconciler/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// MergeHandler runs merge passes and reports upload batches
type MergeHandler struct {
	BaseHandler
	service *reconciliation.Service
	queue   MergeQueue
}

// NewMergeHandler creates a new MergeHandler
func NewMergeHandler(service *reconciliation.Service) *MergeHandler {
	return &MergeHandler{service: service}
}

// SetMergeQueue enables async merges ("async": true in the request body)
func (h *MergeHandler) SetMergeQueue(queue MergeQueue) {
	h.queue = queue
}

// MergePurchaseOrders godoc
//
//	@Summary		Merge staged PO rows into the ledger
//	@Description	Runs the PO merge pass synchronously, or queues it when async is set.
//	@Description	A batch id moves that upload batch through PROCESSING to COMPLETED or FAILED.
//	@Tags			merge
//	@ID				mergePurchaseOrders
//	@Accept			json
//	@Produce		json
//	@Param			request	body		dto.MergeRequest	false	"Merge options"
//	@Success		200		{object}	APIResponse[reconciliation.MergeResult]
//	@Success		202		{object}	APIResponse[dto.MergeJobResponse]
//	@Failure		404		{object}	ErrorResponse
//	@Failure		409		{object}	ErrorResponse
//	@Router			/merge/purchase-orders [post]
func (h *MergeHandler) MergePurchaseOrders(c *gin.Context) {
	h.merge(c, batch.KindPurchaseOrders)
}

// MergeAcceptances godoc
//
//	@Summary		Merge staged acceptance rows into the ledger
//	@Tags			merge
//	@ID				mergeAcceptances
//	@Accept			json
//	@Produce		json
//	@Param			request	body		dto.MergeRequest	false	"Merge options"
//	@Success		200		{object}	APIResponse[reconciliation.MergeResult]
//	@Success		202		{object}	APIResponse[dto.MergeJobResponse]
//	@Failure		404		{object}	ErrorResponse
//	@Failure		409		{object}	ErrorResponse
//	@Router			/merge/acceptances [post]
func (h *MergeHandler) MergeAcceptances(c *gin.Context) {
	h.merge(c, batch.KindAcceptances)
}

func (h *MergeHandler) merge(c *gin.Context, kind batch.Kind) {
	var req dto.MergeRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		h.BindError(c, err)
		return
	}

	if req.Async {
		if h.queue == nil {
			h.ServiceUnavailable(c, "Merge scheduler is disabled")
			return
		}
		job, err := h.queue.Enqueue(scheduler.JobKindFor(kind), req.BatchID)
		if err != nil {
			h.ServiceUnavailable(c, err.Error())
			return
		}
		h.Accepted(c, dto.MergeJobResponse{
			JobID:   job.ID,
			Kind:    string(job.Kind),
			BatchID: job.BatchID,
			Status:  string(job.Status),
		})
		return
	}

	result, err := h.service.MergeBatch(tagBatch(c, req.BatchID), kind, req.BatchID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// tagBatch scopes the request logger, the SQL logged under it and the
// request span to the batch being merged
func tagBatch(c *gin.Context, batchID *uuid.UUID) context.Context {
	ctx := c.Request.Context()
	if batchID == nil {
		return ctx
	}
	ctx, _ = logger.WithBatchID(ctx, logger.L(ctx, logger.GetGinLogger(c)), batchID.String())
	c.Request = c.Request.WithContext(ctx)
	return ctx
}

// GetBatch godoc
//
//	@Summary		Get an upload batch
//	@Tags			batches
//	@ID				getBatch
//	@Produce		json
//	@Param			id	path		string	true	"Batch ID"	format(uuid)
//	@Success		200	{object}	APIResponse[reconciliation.BatchResponse]
//	@Failure		400	{object}	ErrorResponse
//	@Failure		404	{object}	ErrorResponse
//	@Router			/batches/{id} [get]
func (h *MergeHandler) GetBatch(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid batch ID")
		return
	}

	b, err := h.service.GetBatch(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, b)
}

// ListBatches godoc
//
//	@Summary		List recent upload batches
//	@Tags			batches
//	@ID				listBatches
//	@Produce		json
//	@Param			limit	query		int	false	"Max batches (default 50, max 200)"
//	@Success		200		{object}	APIResponse[[]reconciliation.BatchResponse]
//	@Router			/batches [get]
func (h *MergeHandler) ListBatches(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			h.BadRequest(c, "limit must be a positive integer")
			return
		}
		limit = n
	}

	batches, err := h.service.ListBatches(c.Request.Context(), limit)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, batches)
}
