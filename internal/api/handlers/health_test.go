package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/irfndi/funding-monitor-go/internal/services"
)

func healthRouter(h *HealthHandler) *gin.Engine {
	r := gin.New()
	r.GET("/health", h.HealthCheck)
	r.GET("/health/live", h.LivenessCheck)
	return r
}

func healthyCollector(healthy bool) *MockCollector {
	c := new(MockCollector)
	c.On("GetWorkerStatus").Return(map[string]services.Worker{
		"binance": {Exchange: "binance", State: services.StateIdle, LastSuccess: time.Now()},
	})
	c.On("IsHealthy").Return(healthy)
	return c
}

func decodeHealth(t *testing.T, body []byte) HealthResponse {
	t.Helper()
	var resp HealthResponse
	require.NoError(t, json.Unmarshal(body, &resp))
	return resp
}

func TestHealthHandler_Healthy(t *testing.T) {
	db := new(MockHealthChecker)
	db.On("HealthCheck", mock.Anything).Return(nil)
	redis := new(MockHealthChecker)
	redis.On("HealthCheck", mock.Anything).Return(nil)

	w := get(healthRouter(NewHealthHandler(db, redis, healthyCollector(true), "1.2.3")), "/health")

	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeHealth(t, w.Body.Bytes())
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, "1.2.3", resp.Version)
	assert.Equal(t, "healthy", resp.Services["database"])
	assert.Equal(t, "healthy", resp.Services["collector"])
	assert.Contains(t, resp.Workers, "binance")
	assert.Positive(t, resp.Resources.Goroutines)
}

func TestHealthHandler_Degraded(t *testing.T) {
	db := new(MockHealthChecker)
	db.On("HealthCheck", mock.Anything).Return(nil)
	redis := new(MockHealthChecker)
	redis.On("HealthCheck", mock.Anything).Return(errors.New("connection refused"))

	w := get(healthRouter(NewHealthHandler(db, redis, healthyCollector(true), "dev")), "/health")

	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeHealth(t, w.Body.Bytes())
	assert.Equal(t, "degraded", resp.Status)
	assert.Equal(t, "unhealthy: connection refused", resp.Services["redis"])
}

func TestHealthHandler_CollectorLagging(t *testing.T) {
	db := new(MockHealthChecker)
	db.On("HealthCheck", mock.Anything).Return(nil)
	redis := new(MockHealthChecker)
	redis.On("HealthCheck", mock.Anything).Return(nil)

	w := get(healthRouter(NewHealthHandler(db, redis, healthyCollector(false), "dev")), "/health")

	resp := decodeHealth(t, w.Body.Bytes())
	assert.Equal(t, "degraded", resp.Status)
	assert.Equal(t, "degraded", resp.Services["collector"])
}

func TestHealthHandler_DatabaseDown(t *testing.T) {
	db := new(MockHealthChecker)
	db.On("HealthCheck", mock.Anything).Return(errors.New("timeout"))

	w := get(healthRouter(NewHealthHandler(db, nil, nil, "dev")), "/health")

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	resp := decodeHealth(t, w.Body.Bytes())
	assert.Equal(t, "unhealthy", resp.Status)
	assert.Equal(t, "unhealthy: not configured", resp.Services["redis"])
	assert.Equal(t, "unhealthy: not configured", resp.Services["collector"])
}

func TestHealthHandler_Liveness(t *testing.T) {
	w := get(healthRouter(NewHealthHandler(nil, nil, nil, "dev")), "/health/live")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"alive"`)
}
