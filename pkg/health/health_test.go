package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ok(context.Context) error   { return nil }
func fail(context.Context) error { return errors.New("connection refused") }

func readiness(t *testing.T, h *Handler) (int, Response) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ReadinessHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	var resp Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return rec.Code, resp
}

func TestLiveness(t *testing.T) {
	rec := httptest.NewRecorder()
	NewHandler().LivenessHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadiness_AllUp(t *testing.T) {
	h := NewHandler()
	h.RegisterCritical("postgres", ok)
	h.RegisterNonCritical("redis", ok)

	code, resp := readiness(t, h)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, StatusUp, resp.Status)
	assert.Len(t, resp.Checks, 2)
}

func TestReadiness_NonCriticalDownIsDegraded(t *testing.T) {
	h := NewHandler()
	h.RegisterCritical("postgres", ok)
	h.RegisterNonCritical("kafka", fail)

	code, resp := readiness(t, h)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, StatusDegraded, resp.Status)
	assert.Equal(t, "connection refused", resp.Checks["kafka"].Error)
}

func TestReadiness_CriticalDown(t *testing.T) {
	h := NewHandler()
	h.RegisterCritical("postgres", fail)
	h.RegisterNonCritical("redis", ok)

	code, resp := readiness(t, h)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, StatusDown, resp.Status)
	assert.True(t, resp.Checks["postgres"].Critical)
}
