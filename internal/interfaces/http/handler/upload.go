package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/erp/reconciler/internal/application/reconciliation"
	"github.com/erp/reconciler/internal/domain/batch"
	"github.com/erp/reconciler/internal/infrastructure/cache"
	csvimport "github.com/erp/reconciler/internal/infrastructure/import"
	"github.com/erp/reconciler/internal/infrastructure/logger"
	"github.com/erp/reconciler/internal/infrastructure/scheduler"
	"github.com/erp/reconciler/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// defaultMaxUploadSize caps uploaded files when the config leaves it unset
	defaultMaxUploadSize = 32 << 20
	// maxReportedRowErrors bounds the row errors kept per upload
	maxReportedRowErrors = 200
	maxIdempotencyKeyLen = 200
)

// IdempotencyKeyHeader lets a client retry an upload without staging it twice
const IdempotencyKeyHeader = "Idempotency-Key"

// MergeQueue hands merge passes to the background scheduler
type MergeQueue interface {
	Enqueue(kind scheduler.JobKind, batchID *uuid.UUID) (*scheduler.Job, error)
}

// UploadHandler ingests PO and acceptance extracts, as files or JSON rows
type UploadHandler struct {
	BaseHandler
	service          *reconciliation.Service
	queue            MergeQueue
	maxUploadSize    int64
	mergeAfterUpload bool
	keys             cache.UploadKeyStore
	keyTTL           time.Duration
}

// NewUploadHandler creates a new UploadHandler
func NewUploadHandler(service *reconciliation.Service, maxUploadSize int64) *UploadHandler {
	if maxUploadSize <= 0 {
		maxUploadSize = defaultMaxUploadSize
	}
	return &UploadHandler{
		service:       service,
		maxUploadSize: maxUploadSize,
	}
}

// SetMergeQueue enables merging after upload. A nil queue or a false flag
// leaves uploads staged until an explicit merge or the next sweep.
func (h *UploadHandler) SetMergeQueue(queue MergeQueue, mergeAfterUpload bool) {
	h.queue = queue
	h.mergeAfterUpload = mergeAfterUpload
}

// SetUploadKeyStore enables Idempotency-Key checks on every upload endpoint
func (h *UploadHandler) SetUploadKeyStore(keys cache.UploadKeyStore, ttl time.Duration) {
	if ttl <= 0 {
		ttl = cache.DefaultUploadKeyTTL
	}
	h.keys = keys
	h.keyTTL = ttl
}

// UploadPurchaseOrders godoc
//
//	@Summary		Upload a PO extract
//	@Description	Parses a CSV or XLSX PO extract and stages its rows under a new batch.
//	@Description	Rows that fail coercion are rejected and reported; the rest are staged.
//	@Tags			uploads
//	@ID				uploadPurchaseOrders
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			file				formData	file	true	"CSV or XLSX file"
//	@Param			uploaded_by			formData	string	false	"Uploader name"
//	@Param			merge_after_upload	formData	bool	false	"Queue a merge once staged"
//	@Param			delimiter			formData	string	false	"CSV delimiter, one character or \"tab\" (default comma)"
//	@Param			strict_quotes		formData	bool	false	"Reject rows with stray quotes instead of reading them leniently"
//	@Param			sheet				formData	string	false	"Worksheet to read from an XLSX file (default the first)"
//	@Success		201					{object}	APIResponse[dto.UploadResponse]
//	@Failure		400					{object}	ErrorResponse
//	@Failure		413					{object}	ErrorResponse
//	@Failure		422					{object}	ErrorResponse
//	@Router			/uploads/purchase-orders [post]
func (h *UploadHandler) UploadPurchaseOrders(c *gin.Context) {
	key, ok := h.claimUpload(c, batch.KindPurchaseOrders)
	if !ok {
		return
	}
	defer h.releaseOnFailure(c, key)

	table, errs, fileName, read := h.readUpload(c)
	if !read {
		return
	}
	mapped, err := csvimport.MapPurchaseOrders(table, errs)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	uploadedBy := uploader(c, c.PostForm("uploaded_by"))
	result, err := h.service.IngestRawPOs(tagUploader(c, uploadedBy), reconciliation.IngestPOInput{
		UploadedBy: uploadedBy,
		FileName:   fileName,
		Lines:      mapped.Rows,
		Rejected:   errs.RejectedRows(),
		RowErrors:  errs.BatchErrors(),
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	resp := h.uploadResponse(result, mapped.TotalRows, errs)
	resp.MergeJobID = h.queueMerge(c, batch.KindPurchaseOrders, result.BatchID, formBool(c, "merge_after_upload"))
	h.Created(c, resp)
}

// UploadAcceptances godoc
//
//	@Summary		Upload an acceptance extract
//	@Description	Parses a CSV or XLSX acceptance extract and stages its rows under a new batch.
//	@Tags			uploads
//	@ID				uploadAcceptances
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			file				formData	file	true	"CSV or XLSX file"
//	@Param			uploaded_by			formData	string	false	"Uploader name"
//	@Param			merge_after_upload	formData	bool	false	"Queue a merge once staged"
//	@Param			delimiter			formData	string	false	"CSV delimiter, one character or \"tab\" (default comma)"
//	@Param			strict_quotes		formData	bool	false	"Reject rows with stray quotes instead of reading them leniently"
//	@Param			sheet				formData	string	false	"Worksheet to read from an XLSX file (default the first)"
//	@Success		201					{object}	APIResponse[dto.UploadResponse]
//	@Failure		400					{object}	ErrorResponse
//	@Failure		413					{object}	ErrorResponse
//	@Failure		422					{object}	ErrorResponse
//	@Router			/uploads/acceptances [post]
func (h *UploadHandler) UploadAcceptances(c *gin.Context) {
	key, ok := h.claimUpload(c, batch.KindAcceptances)
	if !ok {
		return
	}
	defer h.releaseOnFailure(c, key)

	table, errs, fileName, read := h.readUpload(c)
	if !read {
		return
	}
	mapped, err := csvimport.MapAcceptances(table, errs)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	uploadedBy := uploader(c, c.PostForm("uploaded_by"))
	result, err := h.service.IngestRawAcceptances(tagUploader(c, uploadedBy), reconciliation.IngestAcceptanceInput{
		UploadedBy: uploadedBy,
		FileName:   fileName,
		Lines:      mapped.Rows,
		Rejected:   errs.RejectedRows(),
		RowErrors:  errs.BatchErrors(),
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	resp := h.uploadResponse(result, mapped.TotalRows, errs)
	resp.MergeJobID = h.queueMerge(c, batch.KindAcceptances, result.BatchID, formBool(c, "merge_after_upload"))
	h.Created(c, resp)
}

// IngestRawPurchaseOrders godoc
//
//	@Summary		Stage PO rows posted as JSON
//	@Tags			uploads
//	@ID				ingestRawPurchaseOrders
//	@Accept			json
//	@Produce		json
//	@Param			request	body		dto.RawPOUploadRequest	true	"PO rows"
//	@Success		201		{object}	APIResponse[dto.UploadResponse]
//	@Failure		400		{object}	ErrorResponse
//	@Router			/raw/purchase-orders [post]
func (h *UploadHandler) IngestRawPurchaseOrders(c *gin.Context) {
	key, ok := h.claimUpload(c, batch.KindPurchaseOrders)
	if !ok {
		return
	}
	defer h.releaseOnFailure(c, key)

	var req dto.RawPOUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	in := req.ToInput()
	in.UploadedBy = uploader(c, in.UploadedBy)
	result, err := h.service.IngestRawPOs(tagUploader(c, in.UploadedBy), in)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	resp := h.uploadResponse(result, len(req.Rows), nil)
	resp.MergeJobID = h.queueMerge(c, batch.KindPurchaseOrders, result.BatchID, req.MergeAfterUpload)
	h.Created(c, resp)
}

// IngestRawAcceptances godoc
//
//	@Summary		Stage acceptance rows posted as JSON
//	@Tags			uploads
//	@ID				ingestRawAcceptances
//	@Accept			json
//	@Produce		json
//	@Param			request	body		dto.RawAcceptanceUploadRequest	true	"Acceptance rows"
//	@Success		201		{object}	APIResponse[dto.UploadResponse]
//	@Failure		400		{object}	ErrorResponse
//	@Router			/raw/acceptances [post]
func (h *UploadHandler) IngestRawAcceptances(c *gin.Context) {
	key, ok := h.claimUpload(c, batch.KindAcceptances)
	if !ok {
		return
	}
	defer h.releaseOnFailure(c, key)

	var req dto.RawAcceptanceUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	in := req.ToInput()
	in.UploadedBy = uploader(c, in.UploadedBy)
	result, err := h.service.IngestRawAcceptances(tagUploader(c, in.UploadedBy), in)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	resp := h.uploadResponse(result, len(req.Rows), nil)
	resp.MergeJobID = h.queueMerge(c, batch.KindAcceptances, result.BatchID, req.MergeAfterUpload)
	h.Created(c, resp)
}

// claimUpload spends the request's Idempotency-Key, scoped to the upload
// kind. It answers the request itself and returns ok=false for a replayed
// key. An empty key means nothing was claimed.
func (h *UploadHandler) claimUpload(c *gin.Context, kind batch.Kind) (string, bool) {
	raw := strings.TrimSpace(c.GetHeader(IdempotencyKeyHeader))
	if h.keys == nil || raw == "" {
		return "", true
	}
	if len(raw) > maxIdempotencyKeyLen {
		h.BadRequest(c, "Idempotency-Key is too long")
		return "", false
	}

	key := string(kind) + ":" + raw
	ctx := c.Request.Context()
	fresh, err := h.keys.Claim(ctx, key, h.keyTTL)
	if err != nil {
		// the upload is still accepted; the key store is advisory
		logger.FromContext(ctx).Warn("Upload key store unavailable", zap.Error(err))
		return "", true
	}
	if !fresh {
		h.Error(c, http.StatusConflict, dto.ErrCodeDuplicateUpload,
			"An upload with this Idempotency-Key was already accepted")
		return "", false
	}
	return key, true
}

// releaseOnFailure frees a claimed key when the upload was not accepted, so
// the client can retry with the same key
func (h *UploadHandler) releaseOnFailure(c *gin.Context, key string) {
	if key == "" || c.Writer.Status() < http.StatusBadRequest {
		return
	}
	ctx := context.WithoutCancel(c.Request.Context())
	if err := h.keys.Release(ctx, key); err != nil {
		logger.FromContext(ctx).Warn("Failed to release upload key", zap.Error(err))
	}
}

// readUpload pulls the "file" part and parses it into a table. It answers
// the request itself and returns ok=false on failure.
func (h *UploadHandler) readUpload(c *gin.Context) (*csvimport.Table, *csvimport.ErrorCollection, string, bool) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		h.BadRequest(c, "file is required")
		return nil, nil, "", false
	}
	defer file.Close()

	if header.Size > h.maxUploadSize {
		h.HandleError(c, csvimport.ErrFileTooLarge)
		return nil, nil, "", false
	}

	opts, err := readOptions(c)
	if err != nil {
		h.HandleError(c, err)
		return nil, nil, "", false
	}

	errs := csvimport.NewErrorCollection(maxReportedRowErrors)
	table, err := csvimport.ReadTable(header.Filename, file, h.maxUploadSize, errs, opts...)
	if err != nil {
		if _, _, known := uploadErrorStatus(err); known {
			h.HandleError(c, err)
		} else {
			h.Error(c, http.StatusBadRequest, dto.ErrCodeUploadInvalid, err.Error())
		}
		return nil, nil, "", false
	}
	return table, errs, header.Filename, true
}

// readOptions turns the delimiter, strict_quotes and sheet form fields into
// parser settings
func readOptions(c *gin.Context) ([]csvimport.ReadOption, error) {
	delimiter, err := csvimport.ParseDelimiter(c.PostForm("delimiter"))
	if err != nil {
		return nil, err
	}
	csvOpts := []csvimport.ParserOption{csvimport.WithDelimiter(delimiter)}
	if strict := formBool(c, "strict_quotes"); strict != nil {
		csvOpts = append(csvOpts, csvimport.WithLazyQuotes(!*strict))
	}

	opts := []csvimport.ReadOption{csvimport.WithCSVOptions(csvOpts...)}
	if sheet := strings.TrimSpace(c.PostForm("sheet")); sheet != "" {
		opts = append(opts, csvimport.WithXLSXOptions(csvimport.WithSheet(sheet)))
	}
	return opts, nil
}

func (h *UploadHandler) uploadResponse(result *reconciliation.IngestResult, total int, errs *csvimport.ErrorCollection) *dto.UploadResponse {
	resp := &dto.UploadResponse{
		BatchID:   result.BatchID,
		TotalRows: total,
		Ingested:  result.Count,
		Rejected:  result.Rejected,
	}
	if errs != nil {
		resp.Errors = errs.BatchErrors()
		resp.IsTruncated = errs.IsTruncated()
	}
	return resp
}

// queueMerge enqueues the merge for a freshly staged batch. The request
// flag overrides the configured default. Failing to queue never fails the
// upload; the sweep picks the rows up later.
func (h *UploadHandler) queueMerge(c *gin.Context, kind batch.Kind, batchID uuid.UUID, requested *bool) *uuid.UUID {
	want := h.mergeAfterUpload
	if requested != nil {
		want = *requested
	}
	if !want || h.queue == nil {
		return nil
	}
	job, err := h.queue.Enqueue(scheduler.JobKindFor(kind), &batchID)
	if err != nil {
		ctx := c.Request.Context()
		_, log := logger.WithBatchID(ctx, logger.FromContext(ctx), batchID.String())
		log.Warn("Failed to queue merge after upload", zap.Error(err))
		return nil
	}
	return &job.ID
}

// uploader prefers the body value, then the X-Uploaded-By header. An empty
// result lets the service apply its configured default.
func uploader(c *gin.Context, fromBody string) string {
	if name := strings.TrimSpace(fromBody); name != "" {
		return name
	}
	return strings.TrimSpace(c.GetHeader(UploaderHeader))
}

// tagUploader scopes the request logger, and the SQL logged under it, to the
// uploader. An empty name leaves the context as is.
func tagUploader(c *gin.Context, uploadedBy string) context.Context {
	ctx := c.Request.Context()
	if uploadedBy == "" {
		return ctx
	}
	ctx, _ = logger.WithUploader(ctx, logger.L(ctx, logger.GetGinLogger(c)), uploadedBy)
	c.Request = c.Request.WithContext(ctx)
	return ctx
}

// formBool reads an optional boolean form field
func formBool(c *gin.Context, name string) *bool {
	raw, ok := c.GetPostForm(name)
	if !ok || raw == "" {
		return nil
	}
	v := raw == "1" || strings.EqualFold(raw, "true") || strings.EqualFold(raw, "yes")
	return &v
}
