// Package session implements the stateful wizard client for the resume
// gateway.
//
// A Client owns one workflow session: the continuation token, the
// execution context echoed to the engine, single-use prefetch slots, the
// lesson-plan cache and the suppression gate. Operations never fail hard
// except Start; everything else resolves to a Live result or to the fixed
// offline Fallback together with its cause.
//
//	c := session.New(session.Config{BaseURL: "http://localhost:9090"})
//	if _, err := c.Start(ctx, details); err != nil {
//	    return err
//	}
//	songs := c.LoadSongs(ctx)
//	if songs.IsFallback() {
//	    log.Printf("offline: %v", songs.Cause())
//	}
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/fyrsmithlabs/resumegate/pkg/session/store"
	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Action names understood by the engine.
const (
	ActionStart            = "start"
	ActionLoadSongs        = "loadSongs"
	ActionSelectSong       = "selectSong"
	ActionLoadActivities   = "loadActivities"
	ActionSelectActivities = "selectActivities"
	ActionLoadPlans        = "loadPlans"
	ActionRefine           = "refine"
	ActionApprove          = "approve"
	ActionGetDownloads     = "getDownloads"
)

const defaultHTTPTimeout = 90 * time.Second

// Config configures a Client.
type Config struct {
	// BaseURL is the gateway root, e.g. http://localhost:9090.
	BaseURL string
	// SessionID namespaces persisted state. A random UUID when empty.
	SessionID string
	// Store persists execution context and caches. In-memory when nil.
	Store store.Store
	// HTTPClient is used for every call. Redirects are never followed.
	HTTPClient *http.Client
	Logger     *zap.Logger
	// Retry overrides DefaultRetry. The zero value means DefaultRetry; use
	// NoRetry for a single attempt. Negative Retries count as zero.
	Retry RetryPolicy
	// Authorization is sent verbatim as the Authorization header.
	Authorization string
}

// Option tunes a Client beyond Config.
type Option func(*Client)

// WithClock replaces time.Now for timestamps and fallback dates.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// WithSleeper replaces the backoff wait.
func WithSleeper(s Sleeper) Option {
	return func(c *Client) { c.sleep = s }
}

// WithRateLimit caps upstream attempts per second.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(c *Client) {
		if perSecond > 0 {
			if burst < 1 {
				burst = 1
			}
			c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
		}
	}
}

// WithMeterProvider records client metrics on mp instead of the global
// provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(c *Client) { c.meterProvider = mp }
}

// Client is a single wizard session. It is safe for concurrent use; calls
// are serialized so no two requests ever hold different tokens.
type Client struct {
	mu sync.Mutex

	baseURL       string
	sessionID     string
	authorization string
	store         store.Store
	http          *http.Client
	logger        *zap.Logger
	retry         RetryPolicy
	maxResponse   int64
	now           func() time.Time
	sleep         Sleeper
	limiter       *rate.Limiter
	meterProvider metric.MeterProvider
	metrics       *clientMetrics

	token     string
	execCtx   map[string]any
	gate      gate
	plan      string
	planCause error // nil when plan came from the engine

	songsPrefetch      prefetch[Song]
	activitiesPrefetch prefetch[Activity]
	songs              catalog[Song]
	activities         catalog[Activity]
}

// New creates a Client and restores any execution context persisted under
// the same session ID.
func New(cfg Config, opts ...Option) *Client {
	c := &Client{
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		sessionID:     cfg.SessionID,
		authorization: cfg.Authorization,
		store:         cfg.Store,
		logger:        cfg.Logger,
		retry:         cfg.Retry,
		maxResponse:   maxResponseBytes,
		now:           time.Now,
		sleep:         sleepContext,
		execCtx:       map[string]any{},

		songsPrefetch:      prefetch[Song]{name: keyPrefetchSongs},
		activitiesPrefetch: prefetch[Activity]{name: keyPrefetchActivities},
		songs:              catalog[Song]{name: keyCatalogSongs},
		activities:         catalog[Activity]{name: keyCatalogActivities},
	}
	if c.sessionID == "" {
		c.sessionID = uuid.New().String()
	}
	if c.store == nil {
		c.store = store.NewMemory()
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	if c.retry == (RetryPolicy{}) {
		c.retry = DefaultRetry
	}
	c.retry.Retries = max(c.retry.Retries, 0)

	httpClient := &http.Client{
		Transport: otelhttp.NewTransport(http.DefaultTransport),
		Timeout:   defaultHTTPTimeout,
	}
	if cfg.HTTPClient != nil {
		clone := *cfg.HTTPClient
		httpClient = &clone
	}
	httpClient.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	c.http = httpClient

	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(zap.String("session.id", c.sessionID))
	c.metrics = newClientMetrics(c.meterProvider, c.logger)

	var restored map[string]any
	if c.loadStored(context.Background(), keyExecutionContext, &restored) && restored != nil {
		c.execCtx = restored
	}
	return c
}

// SessionID returns the persistent session identifier.
func (c *Client) SessionID() string { return c.sessionID }

// Token returns the current continuation token, empty before Start.
func (c *Client) Token() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

// GateState returns the suppression gate state.
func (c *Client) GateState() GateState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gate.state
}

// ExecutionContext returns a copy of the execution context.
func (c *Client) ExecutionContext() map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return maps.Clone(c.execCtx)
}

// Start posts details to the gateway's start endpoint and stores the
// returned continuation token. It is the only operation that fails hard:
// without a token the session cannot proceed.
func (c *Client) Start(ctx context.Context, details LessonDetails) (StartResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := details.Validate(); err != nil {
		return StartResult{}, err
	}
	if err := c.admit(ActionStart, intentAuto); err != nil {
		return StartResult{}, err
	}

	body, err := json.Marshal(details)
	if err != nil {
		return StartResult{}, fmt.Errorf("encode lesson details: %w", err)
	}
	data, err := c.post(ctx, ActionStart, c.baseURL+"/start", body)
	if err != nil {
		c.metrics.operation(ctx, ActionStart, false)
		return StartResult{}, err
	}

	resp := decodeResponse(data)
	if resp.kind != kindContinuation {
		c.metrics.operation(ctx, ActionStart, false)
		return StartResult{}, ErrNoResumeURL
	}
	c.token = resp.resumeURL
	c.plan, c.planCause = "", nil
	c.gate.reset()

	var result StartResult
	if raw, ok := resp.field("songs"); ok {
		var songs []Song
		if err := json.Unmarshal(raw, &songs); err == nil {
			c.songsPrefetch.put(ctx, c, songs)
			result.PrefetchedSongs = len(songs)
		} else {
			c.logger.Warn("ignoring malformed prefetched songs", zap.Error(err))
		}
	}
	result.ExecutionContext = c.harvestExecutionContext(ctx, resp)

	c.metrics.operation(ctx, ActionStart, true)
	c.logger.Info("session started",
		zap.Int("prefetched_songs", result.PrefetchedSongs),
		zap.Bool("execution_context", result.ExecutionContext),
	)
	return result, nil
}

// resume sends an action envelope through the gateway, rotating the token
// when the reply carries a new one.
func (c *Client) resume(ctx context.Context, action string, fields map[string]any) (response, error) {
	if c.token == "" {
		return response{}, fmt.Errorf("%s: %w", action, ErrNotStarted)
	}

	envelope := make(map[string]any, len(fields)+2)
	for k, v := range fields {
		envelope[k] = v
	}
	envelope["action"] = action
	envelope["executionContext"] = c.execCtx

	body, err := json.Marshal(envelope)
	if err != nil {
		return response{}, fmt.Errorf("encode %s envelope: %w", action, err)
	}

	target := c.baseURL + "/resume?url=" + url.QueryEscape(c.token)
	data, err := c.post(ctx, action, target, body)
	if err != nil {
		return response{}, err
	}

	resp := decodeResponse(data)
	if resp.kind == kindContinuation && resp.resumeURL != c.token {
		c.token = resp.resumeURL
		c.logger.Debug("continuation token rotated", zap.String("action", action))
	}
	c.harvestExecutionContext(ctx, resp)
	return resp, nil
}

// harvestExecutionContext replaces the execution context when the response
// carries one, and persists it.
func (c *Client) harvestExecutionContext(ctx context.Context, resp response) bool {
	raw, ok := resp.field("executionContext")
	if !ok {
		return false
	}
	var ec map[string]any
	if err := json.Unmarshal(raw, &ec); err != nil || ec == nil {
		return false
	}
	c.execCtx = ec
	c.saveStored(ctx, keyExecutionContext, c.execCtx)
	return true
}

// finish records metrics and logs fallbacks for a completed operation.
func finish[T any](ctx context.Context, c *Client, action string, r Result[T]) Result[T] {
	c.metrics.operation(ctx, action, r.IsLive())
	if r.IsFallback() {
		c.logger.Warn("using fallback", zap.String("action", action), zap.Error(r.Cause()))
	}
	return r
}
