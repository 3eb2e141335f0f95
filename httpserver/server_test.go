package httpserver

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(status StatusFunc) *Server {
	return New(&Config{
		ListenAddr:    "127.0.0.1:0",
		Log:           slog.New(slog.NewTextHandler(io.Discard, nil)),
		DrainDuration: time.Millisecond,
	}, status)
}

func get(t *testing.T, handler http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestLivenessAlwaysOK(t *testing.T) {
	router := newTestServer(nil).getRouter()

	rec := get(t, router, "/livez")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "alive")
}

func TestReadinessFollowsDrainState(t *testing.T) {
	srv := newTestServer(nil)
	router := srv.getRouter()

	assert.Equal(t, http.StatusOK, get(t, router, "/readyz").Code)

	assert.Equal(t, http.StatusOK, get(t, router, "/drain").Code)
	assert.Equal(t, http.StatusServiceUnavailable, get(t, router, "/readyz").Code)

	assert.Equal(t, http.StatusOK, get(t, router, "/undrain").Code)
	assert.Equal(t, http.StatusOK, get(t, router, "/readyz").Code)
}

func TestStatusServesSnapshot(t *testing.T) {
	srv := newTestServer(func() any {
		return map[string]string{"certificate": "valid"}
	})

	rec := get(t, srv.getRouter(), "/status")
	require.Equal(t, http.StatusOK, rec.Code)

	var snapshot map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snapshot))
	assert.Equal(t, "valid", snapshot["certificate"])
}

func TestStatusWithoutSourceServesEmptyObject(t *testing.T) {
	rec := get(t, newTestServer(nil).getRouter(), "/status")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "{}", rec.Body.String())
}
