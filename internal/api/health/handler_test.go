package health

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	redisadapter "hermes/internal/adapters/redis"
	"hermes/pkg/logger"
)

func TestHandleLiveness(t *testing.T) {
	h := New(logger.Get(), nil, nil, "hermes", "test")

	req := httptest.NewRequest(http.MethodGet, "/live", nil)
	rec := httptest.NewRecorder()
	h.HandleLiveness(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "alive", resp["status"])
}

func TestHandleReadiness_NoBackends(t *testing.T) {
	h := New(logger.Get(), nil, nil, "hermes", "1.2.3")

	req := httptest.NewRequest(http.MethodGet, "/ready", nil)
	rec := httptest.NewRecorder()
	h.HandleReadiness(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var status HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "healthy", status.Status)
	assert.Equal(t, "hermes", status.Service)
	assert.Equal(t, "1.2.3", status.Version)
	assert.Empty(t, status.Checks)
	assert.NotEmpty(t, status.Uptime)
}

func TestHandleReadiness_RedisHealthy(t *testing.T) {
	srv := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	h := New(logger.Get(), nil, redisadapter.NewClientFrom(rdb), "hermes", "test")

	req := httptest.NewRequest(http.MethodGet, "/ready", nil)
	rec := httptest.NewRecorder()
	h.HandleReadiness(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var status HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	require.Contains(t, status.Checks, "redis")
	assert.Equal(t, "healthy", status.Checks["redis"].Status)
	assert.NotEmpty(t, status.Checks["redis"].ResponseTime)
}

func TestHandleReadiness_RedisDown(t *testing.T) {
	srv := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	h := New(logger.Get(), nil, redisadapter.NewClientFrom(rdb), "hermes", "test")
	srv.Close()

	req := httptest.NewRequest(http.MethodGet, "/ready", nil)
	rec := httptest.NewRecorder()
	h.HandleReadiness(rec, req)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var status HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "unhealthy", status.Status)
	require.Contains(t, status.Checks, "redis")
	assert.Equal(t, "unhealthy", status.Checks["redis"].Status)
	assert.NotEmpty(t, status.Checks["redis"].Error)
}

func TestHandleHealth(t *testing.T) {
	srv := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	h := New(logger.Get(), nil, redisadapter.NewClientFrom(rdb), "hermes", "test")

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	h.HandleHealth(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var status HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "healthy", status.Status)

	// With the only backend down the service reports unhealthy.
	srv.Close()
	rec = httptest.NewRecorder()
	h.HandleHealth(rec, req)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "unhealthy", status.Status)
}
