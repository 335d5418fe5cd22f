package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/coursereviews/pkg/logger"
)

func TestIdentity_PopulatesContext(t *testing.T) {
	var gotUser, gotRef, gotRole, gotLogUser string
	h := Identity(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser = UserIDFromContext(r.Context())
		gotRef = ReferrerFromContext(r.Context())
		gotRole = RoleFromContext(r.Context())
		gotLogUser = logger.UserIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-User-ID", "user-1")
	req.Header.Set(ReferrerHeader, "session-7")
	req.Header.Set(RoleHeader, "admin")
	h.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, "user-1", gotUser)
	assert.Equal(t, "session-7", gotRef)
	assert.Equal(t, "admin", gotRole)
	assert.Equal(t, "user-1", gotLogUser)
}

func TestRequireRole(t *testing.T) {
	h := Identity(RequireRole("admin")(okHandler()))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/admin", nil))
	assert.Equal(t, http.StatusForbidden, rr.Code)

	req := httptest.NewRequest(http.MethodPost, "/admin", nil)
	req.Header.Set(RoleHeader, "admin")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestRequestLogging_CorrelationAndScopedLogger(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, nil))

	var scoped *slog.Logger
	h := Identity(RequestLogging(base)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		scoped = logger.FromContext(r.Context())
		w.WriteHeader(http.StatusCreated)
	})))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/reviews", nil)
	req.Header.Set(CorrelationHeader, "corr-42")
	req.Header.Set("X-User-ID", "user-1")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Equal(t, "corr-42", rr.Header().Get(CorrelationHeader))
	require.NotNil(t, scoped)
	assert.NotSame(t, slog.Default(), scoped)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "corr-42", line["correlation_id"])
	assert.Equal(t, "user-1", line["user_id"])
	assert.Equal(t, float64(http.StatusCreated), line["status"])
}

func TestRequestLogging_GeneratesCorrelationID(t *testing.T) {
	h := RequestLogging(slog.New(slog.NewJSONHandler(&bytes.Buffer{}, nil)))(okHandler())
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Len(t, rr.Header().Get(CorrelationHeader), 36)
}

func TestRecovery(t *testing.T) {
	var buf bytes.Buffer
	h := Recovery(slog.New(slog.NewJSONHandler(&buf, nil)))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("nil map write")
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Contains(t, rr.Body.String(), "INTERNAL_ERROR")
	assert.Contains(t, buf.String(), "panic recovered")
}
