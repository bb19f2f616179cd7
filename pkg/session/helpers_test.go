package session

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/fyrsmithlabs/resumegate/pkg/session/store"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const firstToken = "https://engine.example.com/wf/run-1?sig=first"

var fixedNow = time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)

// engineCall is one request received by fakeEngine.
type engineCall struct {
	Path   string
	Token  string
	Action string
	Body   map[string]any
	Header http.Header
}

type reply struct {
	status int
	body   string
}

func okReply(body string) reply { return reply{status: http.StatusOK, body: body} }

// fakeEngine stands in for the gateway plus workflow engine. Replies are
// queued per action; the last queued reply repeats.
type fakeEngine struct {
	t   *testing.T
	srv *httptest.Server

	mu      sync.Mutex
	calls   []engineCall
	replies map[string][]reply
}

func newFakeEngine(t *testing.T) *fakeEngine {
	t.Helper()
	e := &fakeEngine{t: t, replies: map[string][]reply{}}
	e.on(ActionStart, okReply(`{"resumeUrl":"`+firstToken+`"}`))
	e.srv = httptest.NewServer(http.HandlerFunc(e.serve))
	t.Cleanup(e.srv.Close)
	return e
}

func (e *fakeEngine) on(action string, replies ...reply) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.replies[action] = replies
}

func (e *fakeEngine) serve(w http.ResponseWriter, r *http.Request) {
	raw, _ := io.ReadAll(r.Body)
	var body map[string]any
	_ = json.Unmarshal(raw, &body)

	action := ActionStart
	if r.URL.Path == "/resume" {
		action, _ = body["action"].(string)
	}

	e.mu.Lock()
	e.calls = append(e.calls, engineCall{
		Path:   r.URL.Path,
		Token:  r.URL.Query().Get("url"),
		Action: action,
		Body:   body,
		Header: r.Header.Clone(),
	})
	queue := e.replies[action]
	rep := okReply(`{"ok":true}`)
	if len(queue) > 0 {
		rep = queue[0]
		if len(queue) > 1 {
			e.replies[action] = queue[1:]
		}
	}
	e.mu.Unlock()

	if rep.status >= 300 && rep.status < 400 {
		w.Header().Set("Location", "https://elsewhere.example.com/")
	}
	w.WriteHeader(rep.status)
	_, _ = io.WriteString(w, rep.body)
}

func (e *fakeEngine) Calls() []engineCall {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]engineCall(nil), e.calls...)
}

// count returns how many requests carried action.
func (e *fakeEngine) count(action string) int {
	n := 0
	for _, c := range e.Calls() {
		if c.Action == action {
			n++
		}
	}
	return n
}

func (e *fakeEngine) last(action string) engineCall {
	e.t.Helper()
	calls := e.Calls()
	for i := len(calls) - 1; i >= 0; i-- {
		if calls[i].Action == action {
			return calls[i]
		}
	}
	e.t.Fatalf("no %s call recorded", action)
	return engineCall{}
}

// sleepRecorder records backoff delays without waiting.
type sleepRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *sleepRecorder) sleep(_ context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays = append(s.delays, d)
	return nil
}

func (s *sleepRecorder) Delays() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.delays...)
}

func validDetails() LessonDetails {
	return LessonDetails{
		LessonsToGenerate: 6,
		FirstLessonDate:   "2026-03-02",
		School:            "Hillside Primary",
		GroupSize:         24,
		Concept1:          "rhythm",
	}
}

type clientFixture struct {
	engine *fakeEngine
	client *Client
	sleeps *sleepRecorder
	store  store.Store
}

func newFixture(t *testing.T, opts ...Option) *clientFixture {
	t.Helper()
	f := &clientFixture{engine: newFakeEngine(t), sleeps: &sleepRecorder{}, store: store.NewMemory()}
	f.client = f.newClient(t, "sess-1", opts...)
	return f
}

func (f *clientFixture) newClient(t *testing.T, sessionID string, opts ...Option) *Client {
	t.Helper()
	opts = append([]Option{WithClock(func() time.Time { return fixedNow }), WithSleeper(f.sleeps.sleep)}, opts...)
	return New(Config{
		BaseURL:   f.engine.srv.URL,
		SessionID: sessionID,
		Store:     f.store,
		Logger:    zaptest.NewLogger(t),
	}, opts...)
}

// started returns a fixture whose client already holds firstToken.
func started(t *testing.T, opts ...Option) *clientFixture {
	t.Helper()
	f := newFixture(t, opts...)
	_, err := f.client.Start(context.Background(), validDetails())
	require.NoError(t, err)
	return f
}
