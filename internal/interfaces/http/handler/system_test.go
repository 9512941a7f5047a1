package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSystemHandler_Health(t *testing.T) {
	h := NewSystemHandler("po-reconciler", "1.2.3")
	h.AddCheck("database", PingerFunc(func(context.Context) error { return nil }))

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/health", nil)

	h.Health(c)

	assert.Equal(t, http.StatusOK, w.Code)
	resp := decodeResponse(t, w)
	assert.True(t, resp.Success)

	data, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "ok", data["status"])
	assert.Equal(t, "po-reconciler", data["name"])
	assert.Equal(t, "1.2.3", data["version"])
	assert.NotEmpty(t, data["go_version"])
	assert.Equal(t, map[string]any{"database": "ok"}, data["checks"])
}

func TestSystemHandler_HealthDegraded(t *testing.T) {
	h := NewSystemHandler("po-reconciler", "1.2.3")
	h.AddCheck("database", PingerFunc(func(context.Context) error { return nil }))
	h.AddCheck("redis", PingerFunc(func(context.Context) error { return errors.New("dial tcp: connection refused") }))

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/health", nil)

	h.Health(c)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	resp := decodeResponse(t, w)
	assert.False(t, resp.Success)

	data := resp.Data.(map[string]any)
	assert.Equal(t, "degraded", data["status"])
	checks := data["checks"].(map[string]any)
	assert.Equal(t, "ok", checks["database"])
	assert.Equal(t, "dial tcp: connection refused", checks["redis"])
}
