package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/fyrsmithlabs/resumegate/internal/logging"
	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startTestNATSServer(t *testing.T) *natsserver.Server {
	t.Helper()
	server, err := natsserver.NewServer(&natsserver.Options{
		Host:   "127.0.0.1",
		Port:   -1,
		NoLog:  true,
		NoSigs: true,
	})
	require.NoError(t, err)

	go server.Start()
	if !server.ReadyForConnections(5 * time.Second) {
		t.Fatal("NATS server not ready")
	}
	t.Cleanup(func() {
		server.Shutdown()
		server.WaitForShutdown()
	})
	return server
}

func subscribe(t *testing.T, nc *nats.Conn, subject string) chan *nats.Msg {
	t.Helper()
	ch := make(chan *nats.Msg, 8)
	sub, err := nc.ChanSubscribe(subject, ch)
	require.NoError(t, err)
	require.NoError(t, nc.Flush())
	t.Cleanup(func() { _ = sub.Unsubscribe() })
	return ch
}

func receive(t *testing.T, ch chan *nats.Msg) (*nats.Msg, RelayEvent) {
	t.Helper()
	select {
	case msg := <-ch:
		var ev RelayEvent
		require.NoError(t, json.Unmarshal(msg.Data, &ev))
		return msg, ev
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for relay event")
		return nil, RelayEvent{}
	}
}

func TestNATSPublisher_Subject(t *testing.T) {
	p := NewNATSPublisher(nil, "", nil)
	assert.Equal(t, "resumegate.relay.resume.success",
		p.Subject(RelayEvent{Endpoint: EndpointResume, Outcome: "success"}))

	p = NewNATSPublisher(nil, "audit", nil)
	assert.Equal(t, "audit.start.rejected", p.Subject(RelayEvent{Endpoint: EndpointStart, Outcome: "rejected"}))
}

func TestNATSPublisher_PublishAssignsID(t *testing.T) {
	server := startTestNATSServer(t)
	nc, err := nats.Connect(server.ClientURL())
	require.NoError(t, err)
	defer nc.Close()

	ch := subscribe(t, nc, "resumegate.relay.>")
	p := NewNATSPublisher(nc, "", logging.NewNop())

	p.Publish(context.Background(), RelayEvent{Endpoint: EndpointStart, Outcome: "upstream_error", Status: 503})

	msg, ev := receive(t, ch)
	assert.Equal(t, "resumegate.relay.start.upstream_error", msg.Subject)
	assert.NotEmpty(t, ev.ID)
	assert.False(t, ev.At.IsZero())
	assert.Equal(t, 503, ev.Status)
}

func TestForwarder_PublishesRelayEvents(t *testing.T) {
	server := startTestNATSServer(t)
	nc, err := nats.Connect(server.ClientURL())
	require.NoError(t, err)
	defer nc.Close()

	ch := subscribe(t, nc, "resumegate.relay.>")
	upstream, _ := recordingUpstream(t, http.StatusOK, `{"ok":true}`)
	f, _ := newTestForwarder(t, testConfig(), WithEvents(NewNATSPublisher(nc, "", nil)))

	token := upstream.URL + "/webhook-waiting/secret-token"
	rec := call(t, f.Resume, httptest.NewRequest(http.MethodPost, resumeTarget(token), strings.NewReader(`{}`)))
	require.Equal(t, http.StatusOK, rec.Code)

	msg, ev := receive(t, ch)
	u, err := url.Parse(upstream.URL)
	require.NoError(t, err)
	assert.Equal(t, "resumegate.relay.resume.success", msg.Subject)
	assert.Equal(t, EndpointResume, ev.Endpoint)
	assert.Equal(t, "success", ev.Outcome)
	assert.Equal(t, http.StatusOK, ev.Status)
	assert.Equal(t, u.Host, ev.UpstreamHost)
	assert.NotContains(t, string(msg.Data), "secret-token")

	rec = call(t, f.Resume, httptest.NewRequest(http.MethodPost, "/resume", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	msg, ev = receive(t, ch)
	assert.Equal(t, "resumegate.relay.resume.rejected", msg.Subject)
	assert.Equal(t, http.StatusBadRequest, ev.Status)
}

func TestNopPublisher(t *testing.T) {
	assert.NotPanics(t, func() {
		NopPublisher{}.Publish(context.Background(), RelayEvent{})
	})
}
