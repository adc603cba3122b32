package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestLogger(t *testing.T) {
	gin.SetMode(gin.TestMode)
	newEngine := func() *gin.Engine {
		engine := gin.New()
		engine.Use(requestLogger())
		engine.GET("/ping", func(c *gin.Context) { c.Status(http.StatusNoContent) })
		return engine
	}
	t.Run("Should assign a request id when none is provided", func(t *testing.T) {
		rec := httptest.NewRecorder()
		newEngine().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
		require.Equal(t, http.StatusNoContent, rec.Code)
		assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	})
	t.Run("Should echo a caller-provided request id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.Header.Set("X-Request-ID", "corr-1234")
		rec := httptest.NewRecorder()
		newEngine().ServeHTTP(rec, req)
		assert.Equal(t, "corr-1234", rec.Header().Get("X-Request-ID"))
	})
	t.Run("Should assign distinct ids across requests", func(t *testing.T) {
		engine := newEngine()
		first := httptest.NewRecorder()
		engine.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/ping", nil))
		second := httptest.NewRecorder()
		engine.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/ping", nil))
		assert.NotEqual(t,
			first.Header().Get("X-Request-ID"),
			second.Header().Get("X-Request-ID"),
		)
	})
}
