package gateway

import (
	"compress/gzip"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestResume_MissingURL(t *testing.T) {
	f, _ := newTestForwarder(t, testConfig())

	rec := call(t, f.Resume, httptest.NewRequest(http.MethodPost, "/resume", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"Missing 'url' query parameter"}`, rec.Body.String())
}

func TestResume_InvalidURL(t *testing.T) {
	f, _ := newTestForwarder(t, testConfig())

	for _, raw := range []string{"not-a-url", "/relative/path", "ftp://files.example.com/x", "http://"} {
		t.Run(raw, func(t *testing.T) {
			rec := call(t, f.Resume, httptest.NewRequest(http.MethodPost, resumeTarget(raw), nil))

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.JSONEq(t, `{"error":"Invalid resumeUrl; must be absolute"}`, rec.Body.String())
		})
	}
}

func TestResume_AlwaysPostsWithAllowListedHeaders(t *testing.T) {
	upstream, log := recordingUpstream(t, http.StatusOK, `{"ok":true}`)
	f, _ := newTestForwarder(t, testConfig())

	req := httptest.NewRequest(http.MethodPut, resumeTarget(upstream.URL+"/webhook-waiting/123"),
		strings.NewReader(`{"action":"loadSongs"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer abc")
	req.Header.Set("Cookie", "sid=1")
	req.Header.Set("X-Session-Id", "sess-1")
	req.Header.Set("X-Custom", "nope")

	rec := call(t, f.Resume, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok":true}`, rec.Body.String())
	assert.Equal(t, "workflow", rec.Header().Get("X-Engine"))

	hits := log.All()
	require.Len(t, hits, 1)
	got := hits[0]
	assert.Equal(t, http.MethodPost, got.Method)
	assert.Equal(t, `{"action":"loadSongs"}`, got.Body)
	assert.Equal(t, "application/json", got.Header.Get("Content-Type"))
	assert.Equal(t, "Bearer abc", got.Header.Get("Authorization"))
	assert.Empty(t, got.Header.Get("Cookie"))
	assert.Empty(t, got.Header.Get("X-Session-Id"))
	assert.Empty(t, got.Header.Get("X-Custom"))
}

func TestResume_GetHasNoBody(t *testing.T) {
	upstream, log := recordingUpstream(t, http.StatusOK, `[]`)
	f, _ := newTestForwarder(t, testConfig())

	rec := call(t, f.Resume, httptest.NewRequest(http.MethodGet, resumeTarget(upstream.URL), nil))

	require.Equal(t, http.StatusOK, rec.Code)
	hits := log.All()
	require.Len(t, hits, 1)
	assert.Equal(t, http.MethodPost, hits[0].Method)
	assert.Empty(t, hits[0].Body)
}

func TestResume_DropsEncodingAndLengthHeaders(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "gzip")
		w.Header().Set("Keep-Alive", "timeout=5")
		w.Header().Set("X-Engine", "workflow")
		gz := gzip.NewWriter(w)
		_, _ = io.WriteString(gz, `{"songs":[]}`)
		_ = gz.Close()
	}))
	defer upstream.Close()
	f, _ := newTestForwarder(t, testConfig())

	rec := call(t, f.Resume, httptest.NewRequest(http.MethodPost, resumeTarget(upstream.URL), strings.NewReader("{}")))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `{"songs":[]}`, rec.Body.String())
	assert.Empty(t, rec.Header().Get("Content-Encoding"))
	assert.Empty(t, rec.Header().Get("Content-Length"))
	assert.Empty(t, rec.Header().Get("Transfer-Encoding"))
	assert.Empty(t, rec.Header().Get("Keep-Alive"))
	assert.Equal(t, "workflow", rec.Header().Get("X-Engine"))
}

func TestResume_RedirectReturnedVerbatim(t *testing.T) {
	var hits atomic.Int32
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Location", "https://elsewhere.example.com/next")
		w.WriteHeader(http.StatusFound)
	}))
	defer upstream.Close()
	f, _ := newTestForwarder(t, testConfig())

	rec := call(t, f.Resume, httptest.NewRequest(http.MethodPost, resumeTarget(upstream.URL), nil))

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "https://elsewhere.example.com/next", rec.Header().Get("Location"))
	assert.Equal(t, int32(1), hits.Load())
}

func TestResume_NonSuccessPassthroughWithPreview(t *testing.T) {
	long := strings.Repeat("x", 3000)
	upstream, _ := recordingUpstream(t, http.StatusInternalServerError, long)
	f, tl := newTestForwarder(t, testConfig())

	rec := call(t, f.Resume, httptest.NewRequest(http.MethodPost, resumeTarget(upstream.URL), nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, long, rec.Body.String())
	assert.Equal(t, "workflow", rec.Header().Get("X-Engine"))

	tl.AssertLogged(t, zapcore.WarnLevel, "upstream non-success")
	got, ok := tl.Field("upstream non-success", "body_preview")
	require.True(t, ok)
	assert.Len(t, got, 2000)
	tl.AssertField(t, "upstream non-success", "status", int64(500))
}

func TestResume_UnreachableIs502WithDiagnostics(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	f, tl := newTestForwarder(t, testConfig())
	token := "http://" + addr + "/webhook-waiting/secret-token"

	rec := call(t, f.Resume, httptest.NewRequest(http.MethodPost, resumeTarget(token), nil))

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), `"error":"Upstream request failed"`)
	assert.NotContains(t, rec.Body.String(), "secret-token")

	tl.AssertLogged(t, zapcore.ErrorLevel, "upstream request failed")
	tl.AssertField(t, "upstream request failed", "code", "ECONNREFUSED")
	tl.AssertField(t, "upstream request failed", "syscall", "connect")
	tl.AssertField(t, "upstream request failed", "address", "127.0.0.1")
}

func TestResume_TimeoutIs504(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer upstream.Close()

	cfg := testConfig()
	cfg.UpstreamTimeout = 50 * time.Millisecond
	f, _ := newTestForwarder(t, cfg)

	rec := call(t, f.Resume, httptest.NewRequest(http.MethodPost, resumeTarget(upstream.URL), nil))

	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
	assert.Contains(t, rec.Body.String(), "Upstream request timed out")
}

func TestResume_DeclaredBodyOverCeilingIs413(t *testing.T) {
	upstream, log := recordingUpstream(t, http.StatusOK, `{}`)
	cfg := testConfig()
	cfg.MaxBodyBytes = 16
	f, _ := newTestForwarder(t, cfg)

	req := httptest.NewRequest(http.MethodPost, resumeTarget(upstream.URL), strings.NewReader(strings.Repeat("a", 64)))
	rec := call(t, f.Resume, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Contains(t, rec.Body.String(), "Request body too large")
	assert.Empty(t, log.All())
}
