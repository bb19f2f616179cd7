// Package gateway implements the resume-gateway forwarders.
//
// Two stateless relays share one core:
//   - Resume forwards to a caller-supplied absolute URL (the continuation
//     token issued by the workflow engine).
//   - Start forwards to the single server-configured start URL.
//
// Both always POST upstream, forward only Content-Type and Authorization,
// never follow redirects, stream 2xx bodies, and buffer non-2xx bodies up
// to the configured ceiling so they can be logged before passthrough.
package gateway

import (
	"net/http"

	"github.com/fyrsmithlabs/resumegate/internal/config"
	"github.com/fyrsmithlabs/resumegate/internal/logging"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Endpoint names used in logs, metrics and event subjects.
const (
	EndpointResume = "resume"
	EndpointStart  = "start"
)

// Forwarder serves the /resume and /start relays.
type Forwarder struct {
	cfg      config.GatewayConfig
	client   *http.Client
	logger   *logging.Logger
	events   EventPublisher
	metrics  *Metrics
	scrubber Scrubber
}

// Option configures a Forwarder.
type Option func(*Forwarder)

// WithHTTPClient overrides the upstream client. Redirect handling is
// always replaced so 3xx responses reach the caller verbatim.
func WithHTTPClient(c *http.Client) Option {
	return func(f *Forwarder) {
		if c != nil {
			clone := *c
			f.client = &clone
		}
	}
}

// WithEvents sets the relay event publisher.
func WithEvents(p EventPublisher) Option {
	return func(f *Forwarder) {
		if p != nil {
			f.events = p
		}
	}
}

// WithScrubber replaces the Gitleaks scrubber applied to logged upstream
// error previews.
func WithScrubber(s Scrubber) Option {
	return func(f *Forwarder) {
		if s != nil {
			f.scrubber = s
		}
	}
}

// WithMetrics sets the Prometheus relay metrics.
func WithMetrics(m *Metrics) Option {
	return func(f *Forwarder) { f.metrics = m }
}

// New creates a Forwarder. Unset limits in cfg take their defaults and a
// nil logger discards output.
func New(cfg config.GatewayConfig, logger *logging.Logger, opts ...Option) *Forwarder {
	if logger == nil {
		logger = logging.NewNop()
	}
	f := &Forwarder{
		cfg:      cfg.WithDefaults(),
		client:   &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
		logger:   logger.Named("gateway"),
		events:   NopPublisher{},
		scrubber: defaultScrubber,
	}
	for _, opt := range opts {
		opt(f)
	}
	f.client.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	if f.client.Transport == nil {
		f.client.Transport = otelhttp.NewTransport(http.DefaultTransport)
	}

	return f
}
