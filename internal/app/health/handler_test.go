package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"coderoom/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func newEngine(checker *utils.HealthChecker) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterRoutes(r, r.Group("/api"), NewHandler(NewService(checker)))
	return r
}

func TestAliveText(t *testing.T) {
	r := newEngine(&utils.HealthChecker{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, LivenessText, w.Body.String())
}

func TestHealthReportsCounters(t *testing.T) {
	r := newEngine(&utils.HealthChecker{
		Clients:  func() int { return 2 },
		Messages: func() int { return 7 },
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var status utils.HealthStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, utils.StatusHealthy, status.Status)
	assert.Equal(t, 2, status.Clients)
	assert.Equal(t, 7, status.Messages)
	assert.Empty(t, status.Services)
}

func TestHealthDegradesWhenBlobStoreIsDown(t *testing.T) {
	r := newEngine(&utils.HealthChecker{
		Blob: pingerFunc(func(context.Context) error { return errors.New("connection refused") }),
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	require.Equal(t, http.StatusServiceUnavailable, w.Code)

	var status utils.HealthStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, utils.StatusDegraded, status.Status)
	require.Len(t, status.Services, 1)
	assert.Equal(t, "down", status.Services[0].Status)
	assert.Equal(t, "connection refused", status.Services[0].Message)
}
