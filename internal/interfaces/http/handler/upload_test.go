package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/erp/reconciler/internal/infrastructure/logger"
	"github.com/erp/reconciler/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestUpload_ParserFormFields(t *testing.T) {
	api := newTestAPI(t)

	semicolons := strings.NewReplacer(",", ";").Replace(
		"PO Number,PO Line,Site Code,Description,Unit Price,Qty,Publish Date,Payment Terms\n" +
			"4500001,1,NE-001,Tower,100,10,2024-01-10,AC PAC 100%\n")

	t.Run("delimiter", func(t *testing.T) {
		w, resp := api.upload(t, "/uploads/purchase-orders", "po.csv", semicolons, map[string]string{"delimiter": ";"})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		var upload dto.UploadResponse
		data(t, resp, &upload)
		assert.Equal(t, 1, upload.Ingested)
	})

	t.Run("default delimiter cannot split the header", func(t *testing.T) {
		w, resp := api.upload(t, "/uploads/purchase-orders", "po.csv", semicolons, nil)
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Equal(t, dto.ErrCodeUploadColumns, resp.Error.Code)
	})

	t.Run("invalid delimiter", func(t *testing.T) {
		w, resp := api.upload(t, "/uploads/purchase-orders", "po.csv", semicolons, map[string]string{"delimiter": ";;"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, dto.ErrCodeUploadInvalid, resp.Error.Code)
	})

	t.Run("strict quotes reject stray quotes", func(t *testing.T) {
		content := "PO Number,PO Line,Site Code,Unit Price,Qty\n" +
			"4500003,1,NE-\"9,100,1\n" +
			"4500003,2,NE-010,100,1\n"
		w, resp := api.upload(t, "/uploads/purchase-orders", "po.csv", content, map[string]string{"strict_quotes": "true"})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		var upload dto.UploadResponse
		data(t, resp, &upload)
		assert.Equal(t, 1, upload.Ingested)
		assert.Equal(t, 1, upload.Rejected)
	})

	t.Run("sheet", func(t *testing.T) {
		f := excelize.NewFile()
		defer func() { _ = f.Close() }()
		_, err := f.NewSheet("Acceptances")
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Acceptances", "A1", &[]any{"PO Number", "PO Line", "Shipment No", "Accepted Qty", "Application Processed At"}))
		require.NoError(t, f.SetSheetRow("Acceptances", "A2", &[]any{"4500001", 1, 1, 10, "2024-03-01"}))
		buf, err := f.WriteToBuffer()
		require.NoError(t, err)

		w, resp := api.upload(t, "/uploads/acceptances", "acc.xlsx", buf.String(), map[string]string{"sheet": "Acceptances"})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		var upload dto.UploadResponse
		data(t, resp, &upload)
		assert.Equal(t, 1, upload.Ingested)

		w, resp = api.upload(t, "/uploads/acceptances", "acc.xlsx", buf.String(), map[string]string{"sheet": "Q3"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, dto.ErrCodeUploadInvalid, resp.Error.Code)
		assert.Contains(t, resp.Error.Message, "Q3")
	})
}

func TestTagUploader(t *testing.T) {
	core, recorded := observer.New(zapcore.DebugLevel)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req := httptest.NewRequest(http.MethodPost, "/uploads/purchase-orders", nil)
	c.Request = req.WithContext(logger.WithContext(req.Context(), zap.New(core)))

	untouched := c.Request.Context()
	assert.Equal(t, untouched, tagUploader(c, ""))

	ctx := tagUploader(c, "alice")
	assert.Equal(t, "alice", logger.GetUploader(ctx))
	assert.Equal(t, "alice", logger.GetUploader(c.Request.Context()))

	logger.FromContext(ctx).Info("staged")
	entries := recorded.FilterMessage("staged").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "alice", entries[0].ContextMap()["uploaded_by"])
}

func TestTagBatch(t *testing.T) {
	core, recorded := observer.New(zapcore.DebugLevel)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req := httptest.NewRequest(http.MethodPost, "/merge/purchase-orders", nil)
	c.Request = req.WithContext(logger.WithContext(req.Context(), zap.New(core)))

	assert.Empty(t, logger.GetBatchID(tagBatch(c, nil)))

	id := uuid.MustParse("0191d7c4-8a2e-7b1c-9d3f-4e5a6b7c8d9e")
	ctx := tagBatch(c, &id)
	assert.Equal(t, id.String(), logger.GetBatchID(ctx))
	assert.Equal(t, id.String(), logger.GetBatchID(c.Request.Context()))

	logger.FromContext(ctx).Info("merging")
	entries := recorded.FilterMessage("merging").All()
	require.Len(t, entries, 1)
	assert.Equal(t, id.String(), entries[0].ContextMap()["batch_id"])
}
