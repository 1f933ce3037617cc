package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dumeirei/storefront-backend/internal/testutil"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serveReady(t *testing.T, r *gin.Engine) (int, HealthResponse) {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ready", nil)
	r.ServeHTTP(w, req)
	var resp HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return w.Code, resp
}

func TestReadyHandler(t *testing.T) {
	db := testutil.NewTestDB(t)

	t.Run("未启用 Redis", func(t *testing.T) {
		r := gin.New()
		r.GET("/ready", readyHandler(db, nil))
		code, resp := serveReady(t, r)
		assert.Equal(t, http.StatusOK, code)
		assert.Equal(t, "ready", resp.Status)
		assert.Equal(t, "disabled", resp.Checks["redis"])
	})

	t.Run("Redis 正常", func(t *testing.T) {
		mr := miniredis.RunT(t)
		rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		defer rdb.Close()

		r := gin.New()
		r.GET("/ready", readyHandler(db, rdb))
		code, resp := serveReady(t, r)
		assert.Equal(t, http.StatusOK, code)
		assert.Equal(t, "ok", resp.Checks["redis"])
	})

	t.Run("Redis 不可用", func(t *testing.T) {
		mr := miniredis.RunT(t)
		rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		defer rdb.Close()
		mr.Close()

		r := gin.New()
		r.GET("/ready", readyHandler(db, rdb))
		code, resp := serveReady(t, r)
		assert.Equal(t, http.StatusServiceUnavailable, code)
		assert.Equal(t, "not ready", resp.Status)
	})
}

func TestHealthAndPing(t *testing.T) {
	r := gin.New()
	r.GET("/health", healthHandler)
	r.GET("/ping", pingHandler)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, "pong", w.Body.String())
}
