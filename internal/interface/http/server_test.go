package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mentor-hub/learning-mentor/pkg/logger"
)

type fakeStats struct{}

func (fakeStats) Stats() map[string]any {
	return map[string]any{"poll_cycles": 42}
}

func newTestServer(t *testing.T, checkErr error) *Server {
	t.Helper()
	log := logger.New(logger.Options{Level: logger.LevelFatal, Output: io.Discard})
	checker := HealthCheckerFunc(func(ctx context.Context) error { return checkErr })
	return NewServer(DefaultConfig(), checker, fakeStats{}, "1.0.0", log)
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t, nil)
	rec := httptest.NewRecorder()

	s.handleHealthz(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "1.0.0", body["version"])
}

func TestReadyz(t *testing.T) {
	s := newTestServer(t, nil)
	rec := httptest.NewRecorder()

	s.handleReadyz(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	failing := newTestServer(t, errors.New("state not loaded"))
	rec = httptest.NewRecorder()
	failing.handleReadyz(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, decode(t, rec)["error"], "state not loaded")
}

func TestStatsz(t *testing.T) {
	s := newTestServer(t, nil)
	rec := httptest.NewRecorder()

	s.handleStatsz(rec, httptest.NewRequest(http.MethodGet, "/statsz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 42, decode(t, rec)["poll_cycles"])
}

func TestRecoverMiddleware(t *testing.T) {
	s := newTestServer(t, nil)
	handler := s.recoverMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
