package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/fyrsmithlabs/resumegate/internal/config"
	"github.com/fyrsmithlabs/resumegate/internal/gateway"
	"github.com/fyrsmithlabs/resumegate/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func gatewayConfig(startURL string) config.GatewayConfig {
	return config.GatewayConfig{
		StartURL:        startURL,
		UpstreamTimeout: 5 * time.Second,
		MaxBodyBytes:    1 << 20,
		PreviewChars:    200,
	}
}

func setupTestServer(t *testing.T, gw config.GatewayConfig) (*Server, *logging.TestLogger) {
	t.Helper()
	tl := logging.NewTestLogger()
	fwd := gateway.New(gw, tl.Logger, gateway.WithMetrics(gateway.NewMetrics()))
	server, err := NewServer(fwd, tl.Logger, &Config{Host: "127.0.0.1", Port: 0, ServiceName: "resumegate-test"})
	require.NoError(t, err)
	return server, tl
}

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func TestNewServer(t *testing.T) {
	fwd := gateway.New(gatewayConfig(""), nil)

	t.Run("uses defaults when config is nil", func(t *testing.T) {
		server, err := NewServer(fwd, logging.NewNop(), nil)
		require.NoError(t, err)
		assert.Equal(t, "localhost:9090", server.Addr())
		assert.Equal(t, "resumegate", server.config.ServiceName)
	})

	t.Run("returns error when logger is nil", func(t *testing.T) {
		_, err := NewServer(fwd, nil, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "logger is required")
	})

	t.Run("returns error when forwarder is nil", func(t *testing.T) {
		_, err := NewServer(nil, logging.NewNop(), nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "forwarder cannot be nil")
	})
}

func TestHandleHealth(t *testing.T) {
	server, _ := setupTestServer(t, gatewayConfig(""))

	rec := serve(server, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, HealthResponse{Status: "ok", Service: "resumegate-test"}, resp)
}

func TestRoutes_ResumeAliases(t *testing.T) {
	server, _ := setupTestServer(t, gatewayConfig(""))

	for _, path := range []string{"/resume", "/api/resume"} {
		t.Run(path, func(t *testing.T) {
			rec := serve(server, httptest.NewRequest(http.MethodPost, path, nil))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.JSONEq(t, `{"error":"Missing 'url' query parameter"}`, rec.Body.String())
		})
	}
}

func TestRoutes_StartMethodAndConfig(t *testing.T) {
	server, _ := setupTestServer(t, gatewayConfig(""))

	for _, path := range []string{"/start", "/api/start"} {
		t.Run(path, func(t *testing.T) {
			rec := serve(server, httptest.NewRequest(http.MethodGet, path, nil))
			assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
			assert.Equal(t, http.MethodPost, rec.Header().Get("Allow"))

			rec = serve(server, httptest.NewRequest(http.MethodPost, path, strings.NewReader(`{}`)))
			assert.Equal(t, http.StatusInternalServerError, rec.Code)
			assert.JSONEq(t, `{"error":"Server misconfigured","message":"gateway.start_url (GATEWAY_START_URL) is not set"}`, rec.Body.String())
		})
	}
}

func TestRelay_SessionIDLoggedNotForwarded(t *testing.T) {
	seen := make(chan string, 1)
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen <- r.Header.Get(HeaderSessionID)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"ok":true}`)
	}))
	defer upstream.Close()

	server, tl := setupTestServer(t, gatewayConfig(""))

	req := httptest.NewRequest(http.MethodPost, "/resume?url="+url.QueryEscape(upstream.URL+"/wf/1"), strings.NewReader(`{"action":"approve"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderSessionID, "sess-42")
	rec := serve(server, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok":true}`, rec.Body.String())
	assert.Empty(t, <-seen)

	tl.AssertField(t, "http request", "session.id", "sess-42")
	tl.AssertField(t, "http request", "path", "/resume")
	tl.AssertField(t, "http request", "status", int64(http.StatusOK))
	rid, ok := tl.Field("http request", "request.id")
	require.True(t, ok)
	assert.Equal(t, rec.Header().Get("X-Request-Id"), rid)
	tl.AssertField(t, "relay complete", "session.id", "sess-42")
}

func TestRelay_InvalidSessionIDDropped(t *testing.T) {
	server, tl := setupTestServer(t, gatewayConfig(""))

	req := httptest.NewRequest(http.MethodPost, "/resume", nil)
	req.Header.Set(HeaderSessionID, "not a valid id!")
	serve(server, req)

	_, ok := tl.Field("http request", "session.id")
	assert.False(t, ok)
	tl.AssertLogged(t, zapcore.InfoLevel, "http request")
}

func TestUnknownRouteLogged(t *testing.T) {
	server, tl := setupTestServer(t, gatewayConfig(""))

	rec := serve(server, httptest.NewRequest(http.MethodGet, "/nope", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	tl.AssertField(t, "http request", "status", int64(http.StatusNotFound))
}

func TestMetricsEndpoint(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "ok")
	}))
	defer upstream.Close()

	server, _ := setupTestServer(t, gatewayConfig(upstream.URL))
	serve(server, httptest.NewRequest(http.MethodPost, "/start", strings.NewReader(`{}`)))

	rec := serve(server, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `resumegate_relays_total{endpoint="start",outcome="success"}`)
}

func TestServer_StartAndShutdown(t *testing.T) {
	server, _ := setupTestServer(t, gatewayConfig(""))

	done := make(chan error, 1)
	go func() { done <- server.Start() }()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, server.Shutdown(ctx))

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
