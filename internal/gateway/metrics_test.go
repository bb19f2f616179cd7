package gateway

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetrics_Singleton(t *testing.T) {
	assert.Same(t, NewMetrics(), NewMetrics())
}

func TestMetrics_RecordsOutcomes(t *testing.T) {
	m := NewMetrics()
	upstream, _ := recordingUpstream(t, http.StatusServiceUnavailable, `down`)
	f, _ := newTestForwarder(t, testConfig(), WithMetrics(m))

	rejected := m.RelaysTotal.WithLabelValues(EndpointResume, "rejected")
	upstreamErr := m.RelaysTotal.WithLabelValues(EndpointResume, "upstream_error")
	fiveXX := m.UpstreamStatus.WithLabelValues(EndpointResume, "5xx")
	beforeRejected := testutil.ToFloat64(rejected)
	beforeErr := testutil.ToFloat64(upstreamErr)
	before5xx := testutil.ToFloat64(fiveXX)

	call(t, f.Resume, httptest.NewRequest(http.MethodPost, "/resume", nil))
	rec := call(t, f.Resume, httptest.NewRequest(http.MethodPost, resumeTarget(upstream.URL), nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	assert.Equal(t, beforeRejected+1, testutil.ToFloat64(rejected))
	assert.Equal(t, beforeErr+1, testutil.ToFloat64(upstreamErr))
	assert.Equal(t, before5xx+1, testutil.ToFloat64(fiveXX))
}

func TestStatusClass(t *testing.T) {
	assert.Equal(t, "2xx", statusClass(204))
	assert.Equal(t, "3xx", statusClass(302))
	assert.Equal(t, "5xx", statusClass(504))
}
