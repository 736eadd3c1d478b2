package handlers

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vedaai/veda-backend/repositories/postgres"
	"go.uber.org/zap"
)

type staticProviders []string

func (p staticProviders) ListProviders() []string { return p }

func decodeHealth(t *testing.T, w *httptest.ResponseRecorder) HealthResponse {
	t.Helper()
	var resp HealthResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	return resp
}

func TestHandleHealth(t *testing.T) {
	handler := NewHealthHandler(nil, nil, StatusResponse{}, zap.NewNop())

	w := httptest.NewRecorder()
	handler.HandleHealth(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	resp := decodeHealth(t, w)
	assert.Equal(t, "ok", resp.Status)
	assert.NotEmpty(t, resp.Timestamp)
}

func TestHandleReadiness(t *testing.T) {
	logger := zap.NewNop()
	providers := staticProviders{"openrouter"}

	t.Run("ready when database and providers are available", func(t *testing.T) {
		db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectPing()
		mock.ExpectQuery("SELECT 1").WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))

		handler := NewHealthHandler(postgres.Wrap(db, logger), providers, StatusResponse{}, logger)
		w := httptest.NewRecorder()
		handler.HandleReadiness(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		resp := decodeHealth(t, w)
		assert.Equal(t, "ready", resp.Status)
		assert.Equal(t, "healthy", resp.Checks["database"])
		assert.Equal(t, "configured", resp.Checks["providers"])
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not ready when database ping fails", func(t *testing.T) {
		db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectPing().WillReturnError(sql.ErrConnDone)

		handler := NewHealthHandler(postgres.Wrap(db, logger), providers, StatusResponse{}, logger)
		w := httptest.NewRecorder()
		handler.HandleReadiness(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		resp := decodeHealth(t, w)
		assert.Equal(t, "not_ready", resp.Status)
		assert.Equal(t, "unhealthy", resp.Checks["database"])
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not ready when database query fails", func(t *testing.T) {
		db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectPing()
		mock.ExpectQuery("SELECT 1").WillReturnError(sql.ErrConnDone)

		handler := NewHealthHandler(postgres.Wrap(db, logger), providers, StatusResponse{}, logger)
		w := httptest.NewRecorder()
		handler.HandleReadiness(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Equal(t, "unhealthy", decodeHealth(t, w).Checks["database"])
	})

	t.Run("not ready without database or providers", func(t *testing.T) {
		handler := NewHealthHandler(nil, staticProviders{}, StatusResponse{}, logger)
		w := httptest.NewRecorder()
		handler.HandleReadiness(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		resp := decodeHealth(t, w)
		assert.Equal(t, "not_initialized", resp.Checks["database"])
		assert.Equal(t, "none_configured", resp.Checks["providers"])
	})
}

func TestHandleStatus(t *testing.T) {
	handler := NewHealthHandler(nil, staticProviders{"groq", "openrouter"}, StatusResponse{
		Service:     "veda-backend",
		Version:     "1.2.3",
		Environment: "test",
		Tasks:       []string{"general_chat"},
	}, zap.NewNop())

	w := httptest.NewRecorder()
	handler.HandleStatus(w, httptest.NewRequest(http.MethodGet, "/api/v1/status", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	var resp StatusResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "1.2.3", resp.Version)
	assert.Equal(t, "test", resp.Environment)
	assert.Equal(t, []string{"groq", "openrouter"}, resp.Providers)
	assert.Equal(t, []string{"general_chat"}, resp.Tasks)
}
