package app

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/coursereviews/services/review/internal/config"
)

func memoryConfig() *config.Config {
	return &config.Config{
		Environment:             "test",
		HTTPPort:                8080,
		RequestTimeout:          5 * time.Second,
		CORSAllowedOrigins:      []string{"*"},
		MaxRequestBodyBytes:     1 << 16,
		StoreBackend:            config.BackendMemory,
		CacheEnabled:            false,
		KafkaEnabled:            false,
		StatsRefreshConcurrency: 2,
		RateLimitRPS:            100,
		RateLimitBurst:          100,
		OTELSampleRate:          1,
	}
}

func newTestApp(t *testing.T) *App {
	t.Helper()
	a, err := NewApp(memoryConfig(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Shutdown() })
	return a
}

func send(t *testing.T, h http.Handler, method, path, user, role string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set("X-User-ID", user)
	}
	if role != "" {
		req.Header.Set("X-User-Role", role)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestNewApp_InvalidConfig(t *testing.T) {
	cfg := memoryConfig()
	cfg.StoreBackend = "sqlite"

	_, err := NewApp(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "STORE_BACKEND")
}

func TestNewApp_MemoryBackendServesAPI(t *testing.T) {
	a := newTestApp(t)
	h := a.Handler()

	rec := send(t, h, http.MethodGet, "/health/ready", "", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = send(t, h, http.MethodPut, "/api/v1/courses/COMP248", "root", "admin", map[string]any{
		"subject": "COMP", "catalog": "248", "title": "Object-Oriented Programming I",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = send(t, h, http.MethodPost, "/api/v1/reviews", "alice", "", map[string]any{
		"type": "course", "target_id": "COMP248", "content": "fine",
		"course": map[string]int{"difficulty": 2, "experience": 4},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = send(t, h, http.MethodGet, "/api/v1/stats/home", "", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"data":{"courses":1,"instructors":0,"reviews":1}}`, rec.Body.String())
}

func TestRefreshStats_KeepsStatsConsistent(t *testing.T) {
	a := newTestApp(t)
	h := a.Handler()

	send(t, h, http.MethodPut, "/api/v1/courses/COMP248", "root", "admin", map[string]any{
		"subject": "COMP", "catalog": "248", "title": "OOP I",
	})
	for user, difficulty := range map[string]int{"alice": 2, "bob": 4} {
		rec := send(t, h, http.MethodPost, "/api/v1/reviews", user, "", map[string]any{
			"type": "course", "target_id": "COMP248",
			"course": map[string]int{"difficulty": difficulty, "experience": 3},
		})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}

	a.refreshStats(context.Background())

	rec := send(t, h, http.MethodGet, "/api/v1/courses/COMP248", "", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Data struct {
			Stats struct {
				AvgDifficulty float64 `json:"avg_difficulty"`
				ReviewCount   int     `json:"review_count"`
			} `json:"stats"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, 2, body.Data.Stats.ReviewCount)
	assert.InDelta(t, 3.0, body.Data.Stats.AvgDifficulty, 1e-9)
}

func TestRunStatsRefresh_StopsOnCancel(t *testing.T) {
	a := newTestApp(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		a.runStatsRefresh(ctx, time.Millisecond)
		close(done)
	}()
	time.Sleep(5 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("stats refresh did not stop after cancel")
	}
}
