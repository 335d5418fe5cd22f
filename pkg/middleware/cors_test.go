package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestCORS_Wildcard(t *testing.T) {
	h := CORS(DefaultCORSConfig())(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/courses/COMP248", nil)
	req.Header.Set("Origin", "https://example.org")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rr.Header().Get("Access-Control-Allow-Headers"), ReferrerHeader)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestCORS_ExplicitOrigins(t *testing.T) {
	h := CORS(CORSConfig{AllowedOrigins: []string{"https://reviews.example.org"}})(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://reviews.example.org")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, "https://reviews.example.org", rr.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "Origin", rr.Header().Get("Vary"))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://other.example.org")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORS_Preflight(t *testing.T) {
	called := false
	h := CORS(DefaultCORSConfig())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodOptions, "/api/v1/reviews", nil))

	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, "3600", rr.Header().Get("Access-Control-Max-Age"))
	assert.False(t, called)
}

func TestCacheControl(t *testing.T) {
	h := CacheControl(60)(okHandler())

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "public, max-age=60", rr.Header().Get("Cache-Control"))

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/", nil))
	assert.Empty(t, rr.Header().Get("Cache-Control"))

	rr = httptest.NewRecorder()
	NoStore(okHandler()).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "no-store", rr.Header().Get("Cache-Control"))
}
