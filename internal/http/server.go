// Package http hosts the resumegate HTTP surface: the resume and start
// relays, health and Prometheus metrics.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/fyrsmithlabs/resumegate/internal/gateway"
	"github.com/fyrsmithlabs/resumegate/internal/logging"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// HeaderSessionID carries the wizard session identifier. It is logged but
// never forwarded upstream.
const HeaderSessionID = "X-Session-Id"

// Server provides HTTP endpoints for resumegate.
type Server struct {
	echo      *echo.Echo
	forwarder *gateway.Forwarder
	logger    *logging.Logger
	config    *Config
	metrics   *HTTPMetrics
}

// Option configures a Server.
type Option func(*Server)

// WithHTTPMetrics records OpenTelemetry request metrics.
func WithHTTPMetrics(m *HTTPMetrics) Option {
	return func(s *Server) { s.metrics = m }
}

// NewServer creates a new HTTP server.
func NewServer(fwd *gateway.Forwarder, logger *logging.Logger, cfg *Config, opts ...Option) (*Server, error) {
	if fwd == nil {
		return nil, errors.New("forwarder cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{
			Host:        "localhost",
			Port:        9090,
			ServiceName: "resumegate",
		}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:      e,
		forwarder: fwd,
		logger:    logger.Named("http"),
		config:    cfg,
	}
	for _, opt := range opts {
		opt(s)
	}

	// Middleware
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(s.contextMiddleware)
	if s.metrics != nil {
		e.Use(s.metrics.MetricsMiddleware())
	}
	e.Use(s.requestLogMiddleware)

	s.registerRoutes()

	return s, nil
}

// registerRoutes sets up the HTTP endpoints. The relays accept any method
// so they can answer unsupported ones themselves.
func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	for _, prefix := range []string{"", "/api"} {
		s.echo.Any(prefix+"/resume", s.forwarder.Resume)
		s.echo.Any(prefix+"/start", s.forwarder.Start)
	}
}

// contextMiddleware puts the request and session IDs on the request
// context. Malformed IDs are dropped.
func (s *Server) contextMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := c.Request()
		ctx := req.Context()

		if rid := c.Response().Header().Get(echo.HeaderXRequestID); logging.ValidateID(rid, "request ID") == nil {
			ctx = logging.WithRequestID(ctx, rid)
		}
		if sid := req.Header.Get(HeaderSessionID); sid != "" {
			if err := logging.ValidateID(sid, "session ID"); err == nil {
				ctx = logging.WithSessionID(ctx, sid)
			} else {
				s.logger.Debug(ctx, "ignoring session id", zap.Error(err))
			}
		}
		ctx = logging.WithLogger(ctx, s.logger)

		c.SetRequest(req.WithContext(ctx))
		return next(c)
	}
}

func (s *Server) requestLogMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		if err != nil {
			c.Error(err)
		}

		s.logger.Info(c.Request().Context(), "http request",
			zap.String("method", c.Request().Method),
			zap.String("path", c.Path()),
			zap.Int("status", c.Response().Status),
			zap.Int64("size", c.Response().Size),
			zap.Duration("duration", time.Since(start)),
		)
		return nil
	}
}

// handleHealth returns a simple health check response.
func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok", Service: s.config.ServiceName})
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
}

// Start starts the HTTP server and blocks until it stops. A graceful
// Shutdown is not reported as an error.
func (s *Server) Start() error {
	addr := s.Addr()
	s.logger.Info(context.Background(), "starting http server", zap.String("addr", addr))
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info(ctx, "shutting down http server")
	return s.echo.Shutdown(ctx)
}

// ServeHTTP lets the server be mounted or exercised without a listener.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}
