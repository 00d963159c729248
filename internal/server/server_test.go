package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evalforge/modelrun/pkg/runner"
)

func testServer(progress ProgressFunc) *Server {
	return New("127.0.0.1:0", Info{RunID: "run-1", Model: "m", Version: "dev"}, progress)
}

func TestServer_Health(t *testing.T) {
	srv := testServer(nil)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "run-1", body["run_id"])
}

func TestServer_Progress(t *testing.T) {
	srv := testServer(func() runner.Progress {
		return runner.Progress{Total: 10, Completed: 4, Failed: 1, Pending: 5, Skipped: 2}
	})

	req := httptest.NewRequest(http.MethodGet, "/progress", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var p runner.Progress
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&p))
	assert.Equal(t, int64(4), p.Completed)
	assert.Equal(t, int64(5), p.Pending)
}

func TestServer_ProgressWithoutCallback(t *testing.T) {
	srv := testServer(nil)

	req := httptest.NewRequest(http.MethodGet, "/progress", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var p runner.Progress
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&p))
	assert.Zero(t, p.Total)
}

func TestServer_Version(t *testing.T) {
	srv := testServer(nil)

	req := httptest.NewRequest(http.MethodGet, "/version", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var info Info
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&info))
	assert.Equal(t, "m", info.Model)
}

func TestServer_NotFound(t *testing.T) {
	srv := testServer(nil)

	req := httptest.NewRequest(http.MethodGet, "/does-not-exist", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_MethodNotAllowed(t *testing.T) {
	srv := testServer(nil)

	req := httptest.NewRequest(http.MethodPost, "/progress", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
