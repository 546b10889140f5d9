// Package api_test provides behavior tests for the API package.
package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/tormodh/doipuds/internal/api"
	"github.com/tormodh/doipuds/internal/api/models"
	"github.com/tormodh/doipuds/internal/config"
	"github.com/tormodh/doipuds/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestConfig() *config.Config {
	return &config.Config{
		Transport: config.TransportConfig{DefaultTimeoutMs: 30000},
		Security:  config.SecurityConfig{Constants: map[uint8]uint32{2: 0x1234}},
		API: config.APIConfig{
			Enabled: true,
			Host:    "127.0.0.1",
			Port:    8080,
			APIKey:  "",
		},
	}
}

func performRequest(r http.Handler, method, path string, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestNew_CreatesServer(t *testing.T) {
	cfg := createTestConfig()
	server := api.New(cfg, session.New(nil, nil), nil)
	assert.NotNil(t, server)
}

func TestNew_PanicsOnNilConfig(t *testing.T) {
	assert.Panics(t, func() {
		api.New(nil, session.New(nil, nil), nil)
	})
}

func TestServer_Addr(t *testing.T) {
	cfg := createTestConfig()
	cfg.API.Host = "0.0.0.0"
	cfg.API.Port = 9090

	server := api.New(cfg, session.New(nil, nil), nil)
	assert.Equal(t, "0.0.0.0:9090", server.Addr())
}

func TestServer_Engine(t *testing.T) {
	cfg := createTestConfig()
	server := api.New(cfg, session.New(nil, nil), nil)
	assert.NotNil(t, server.Engine())
}

func TestRoutes_HealthEndpoint(t *testing.T) {
	cfg := createTestConfig()
	server := api.New(cfg, session.New(nil, nil), nil)

	w := performRequest(server.Engine(), http.MethodGet, "/api/v1/health", "")
	assert.Equal(t, http.StatusOK, w.Code)

	var resp models.StatusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
}

func TestRoutes_StatsEndpoint(t *testing.T) {
	cfg := createTestConfig()
	server := api.New(cfg, session.New(nil, nil), nil)

	w := performRequest(server.Engine(), http.MethodGet, "/api/v1/stats", "")
	assert.Equal(t, http.StatusOK, w.Code)

	var resp models.ServerStatsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Uptime)
	assert.False(t, resp.Connected)
}

func TestRoutes_ConnectionStatusEndpoint(t *testing.T) {
	cfg := createTestConfig()
	server := api.New(cfg, session.New(nil, nil), nil)

	w := performRequest(server.Engine(), http.MethodGet, "/api/v1/connection", "")
	assert.Equal(t, http.StatusOK, w.Code)

	var resp models.ConnectionStatusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Connected)
}

func TestRoutes_ConnectionConfigEndpoint_NotYetConnected(t *testing.T) {
	cfg := createTestConfig()
	server := api.New(cfg, session.New(nil, nil), nil)

	w := performRequest(server.Engine(), http.MethodGet, "/api/v1/connection/config", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRoutes_ConnectECU_InvalidBody(t *testing.T) {
	cfg := createTestConfig()
	server := api.New(cfg, session.New(nil, nil), nil)

	w := performRequest(server.Engine(), http.MethodPost, "/api/v1/connection", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRoutes_DisconnectECU_WhenNotConnected(t *testing.T) {
	cfg := createTestConfig()
	server := api.New(cfg, session.New(nil, nil), nil)

	w := performRequest(server.Engine(), http.MethodDelete, "/api/v1/connection", "")
	assert.Equal(t, http.StatusOK, w.Code)

	var resp models.CommandResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
}

func TestRoutes_SendCommand_NotConnected(t *testing.T) {
	cfg := createTestConfig()
	server := api.New(cfg, session.New(nil, nil), nil)

	body := `{"service_id_hex":"0x10","operand_hex":"1003"}`
	w := performRequest(server.Engine(), http.MethodPost, "/api/v1/commands", body)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var resp models.CommandResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
}

func TestRoutes_SetSecurityConstant(t *testing.T) {
	cfg := createTestConfig()
	mgr := session.New(nil, nil)
	server := api.New(cfg, mgr, nil)

	body := `{"constant":4660}`
	w := performRequest(server.Engine(), http.MethodPut, "/api/v1/security/constant/2", body)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRoutes_WithAPIKey_ValidKey(t *testing.T) {
	cfg := createTestConfig()
	cfg.API.APIKey = "secret-key"
	server := api.New(cfg, session.New(nil, nil), nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("X-Api-Key", "secret-key")
	w := httptest.NewRecorder()
	server.Engine().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRoutes_WithAPIKey_InvalidKey(t *testing.T) {
	cfg := createTestConfig()
	cfg.API.APIKey = "secret-key"
	server := api.New(cfg, session.New(nil, nil), nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("X-Api-Key", "wrong-key")
	w := httptest.NewRecorder()
	server.Engine().ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRoutes_WithAPIKey_MissingKey(t *testing.T) {
	cfg := createTestConfig()
	cfg.API.APIKey = "secret-key"
	server := api.New(cfg, session.New(nil, nil), nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	w := httptest.NewRecorder()
	server.Engine().ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRoutes_NoAPIKey_NoAuth(t *testing.T) {
	cfg := createTestConfig()
	cfg.API.APIKey = ""
	server := api.New(cfg, session.New(nil, nil), nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	w := httptest.NewRecorder()
	server.Engine().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestServer_Shutdown(t *testing.T) {
	cfg := createTestConfig()
	cfg.API.Port = 0
	server := api.New(cfg, session.New(nil, nil), nil)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	assert.NoError(t, server.Shutdown(ctx))
}

func TestRoutes_NotFound(t *testing.T) {
	cfg := createTestConfig()
	server := api.New(cfg, session.New(nil, nil), nil)

	w := performRequest(server.Engine(), http.MethodGet, "/api/v1/nonexistent", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
