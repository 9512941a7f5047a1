package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/erp/reconciler/internal/application/reconciliation"
	"github.com/erp/reconciler/internal/domain/shared"
	csvimport "github.com/erp/reconciler/internal/infrastructure/import"
	"github.com/erp/reconciler/internal/interfaces/http/dto"
	"github.com/erp/reconciler/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
	middleware.SetupValidator()
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) dto.Response {
	t.Helper()
	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestGetRequestID(t *testing.T) {
	tests := []struct {
		name       string
		setup      func(*gin.Context)
		expectedID string
	}{
		{
			name:       "from context",
			setup:      func(c *gin.Context) { c.Set(middleware.RequestIDContextKey, "ctx-request-id") },
			expectedID: "ctx-request-id",
		},
		{
			name:       "from header when context empty",
			setup:      func(c *gin.Context) { c.Request.Header.Set(middleware.RequestIDHeader, "header-request-id") },
			expectedID: "header-request-id",
		},
		{
			name:       "empty when not set",
			setup:      func(c *gin.Context) {},
			expectedID: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := gin.CreateTestContext(httptest.NewRecorder())
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
			tt.setup(c)
			assert.Equal(t, tt.expectedID, getRequestID(c))
		})
	}
}

func TestBaseHandler_HandleError(t *testing.T) {
	tests := []struct {
		name           string
		err            error
		expectedStatus int
		expectedCode   string
	}{
		{"generic not found", shared.ErrNotFound, http.StatusNotFound, dto.ErrCodeNotFound},
		{"specific not found", reconciliation.ErrRuleNotFound, http.StatusNotFound, "RULE_NOT_FOUND"},
		{"wrapped domain error", fmt.Errorf("apply: %w", reconciliation.ErrEmptySiteList), http.StatusBadRequest, "EMPTY_SITE_LIST"},
		{"pass in progress", shared.ErrPassInProgress, http.StatusConflict, dto.ErrCodePassInProgress},
		{"invalid state", shared.ErrInvalidState, http.StatusUnprocessableEntity, dto.ErrCodeInvalidState},
		{"file too large", csvimport.ErrFileTooLarge, http.StatusRequestEntityTooLarge, dto.ErrCodeUploadTooLarge},
		{"missing columns", &csvimport.MissingColumnsError{Columns: []string{"po_number"}}, http.StatusUnprocessableEntity, dto.ErrCodeUploadColumns},
		{"unsupported format", csvimport.ErrUnsupportedFormat, http.StatusBadRequest, dto.ErrCodeUploadInvalid},
		{"bad delimiter", fmt.Errorf("%w: %q", csvimport.ErrInvalidDelimiter, ";;"), http.StatusBadRequest, dto.ErrCodeUploadInvalid},
		{"unknown sheet", fmt.Errorf("%w: Q3", csvimport.ErrSheetNotFound), http.StatusBadRequest, dto.ErrCodeUploadInvalid},
		{"unknown error", fmt.Errorf("connection reset"), http.StatusInternalServerError, dto.ErrCodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
			c.Set(middleware.RequestIDContextKey, "req-1")

			h := &BaseHandler{}
			h.HandleError(c, tt.err)

			assert.Equal(t, tt.expectedStatus, w.Code)
			resp := decodeResponse(t, w)
			assert.False(t, resp.Success)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.expectedCode, resp.Error.Code)
			assert.Equal(t, "req-1", resp.Error.RequestID)
		})
	}
}

func TestBaseHandler_HandleErrorHidesInternalMessages(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	(&BaseHandler{}).HandleError(c, fmt.Errorf("pq: password authentication failed"))

	resp := decodeResponse(t, w)
	assert.Equal(t, "An unexpected error occurred", resp.Error.Message)
}

func TestBaseHandler_BindError(t *testing.T) {
	type assignment struct {
		SiteCode string `json:"site_code" binding:"required"`
	}
	bind := func(body string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
		c.Request.Header.Set("Content-Type", "application/json")
		c.Set(middleware.RequestIDContextKey, "req-9")

		var req assignment
		(&BaseHandler{}).BindError(c, c.ShouldBindJSON(&req))
		return w
	}

	t.Run("field errors carry details", func(t *testing.T) {
		w := bind(`{}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		resp := decodeResponse(t, w)
		assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code)
		assert.Equal(t, "req-9", resp.Error.RequestID)
		require.Len(t, resp.Error.Details, 1)
		assert.Equal(t, "site_code", resp.Error.Details[0].Field)
	})

	t.Run("malformed json is a plain bad request", func(t *testing.T) {
		w := bind(`{"site_code":`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		resp := decodeResponse(t, w)
		assert.Equal(t, dto.ErrCodeBadRequest, resp.Error.Code)
		assert.Empty(t, resp.Error.Details)
	})
}

func TestBaseHandler_HandleErrorNil(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	(&BaseHandler{}).HandleError(c, nil)
	assert.Empty(t, w.Body.String())
}
