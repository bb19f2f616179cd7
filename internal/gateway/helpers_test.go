package gateway

import (
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/fyrsmithlabs/resumegate/internal/config"
	"github.com/fyrsmithlabs/resumegate/internal/logging"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
)

func testConfig() config.GatewayConfig {
	return config.GatewayConfig{
		UpstreamTimeout: 5 * time.Second,
		MaxBodyBytes:    1 << 20,
		PreviewChars:    2000,
	}
}

func newTestForwarder(t *testing.T, cfg config.GatewayConfig, opts ...Option) (*Forwarder, *logging.TestLogger) {
	t.Helper()
	tl := logging.NewTestLogger()
	return New(cfg, tl.Logger, opts...), tl
}

// call invokes h the way echo would for a single request.
func call(t *testing.T, h echo.HandlerFunc, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	rec := httptest.NewRecorder()
	require.NoError(t, h(e.NewContext(req, rec)))
	return rec
}

func resumeTarget(upstream string) string {
	return "/resume?url=" + url.QueryEscape(upstream)
}

// recordedRequest captures what the upstream saw.
type recordedRequest struct {
	Method string
	Header http.Header
	Body   string
}

// upstreamLog is safe for use from handler goroutines.
type upstreamLog struct {
	mu   sync.Mutex
	hits []recordedRequest
}

func (l *upstreamLog) add(r recordedRequest) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.hits = append(l.hits, r)
}

func (l *upstreamLog) All() []recordedRequest {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]recordedRequest(nil), l.hits...)
}

func recordingUpstream(t *testing.T, status int, respBody string) (*httptest.Server, *upstreamLog) {
	t.Helper()
	log := &upstreamLog{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		log.add(recordedRequest{Method: r.Method, Header: r.Header.Clone(), Body: string(body)})
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Engine", "workflow")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, respBody)
	}))
	t.Cleanup(srv.Close)
	return srv, log
}
