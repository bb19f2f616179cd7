// Resumegate is the resume-gateway daemon.
//
// It serves the /resume and /start relays in front of the workflow engine,
// plus /health and /metrics.
//
// Configuration is loaded from ~/.config/resumegate/config.yaml (or the
// -config path) overlaid with environment variables. A .env file in the
// working directory is loaded first when present. See internal/config.
//
// Usage:
//
//	# Start with defaults
//	GATEWAY_START_URL=https://engine.example.com/webhook/start resumegate
//
//	# Show version
//	resumegate version
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	otellog "go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/log/global"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/resumegate/internal/config"
	"github.com/fyrsmithlabs/resumegate/internal/gateway"
	httpserver "github.com/fyrsmithlabs/resumegate/internal/http"
	"github.com/fyrsmithlabs/resumegate/internal/logging"
	"github.com/fyrsmithlabs/resumegate/internal/telemetry"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml (default ~/.config/resumegate/config.yaml)")
	flag.Parse()
	args := flag.Args()

	if len(args) > 0 {
		switch args[0] {
		case "version":
			printVersion()
			os.Exit(0)
		default:
			fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
			fmt.Fprintf(os.Stderr, "\nUsage:\n")
			fmt.Fprintf(os.Stderr, "  resumegate           Start the gateway\n")
			fmt.Fprintf(os.Stderr, "  resumegate version   Show version information\n")
			os.Exit(1)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *configPath); err != nil {
		log.Fatalf("Server error: %v", err)
	}
	log.Println("Server shutdown complete")
}

func printVersion() {
	fmt.Printf("resumegate by Fyrsmith Labs\n")
	fmt.Printf("Version:    %s\n", version)
	fmt.Printf("Commit:     %s\n", gitCommit)
	fmt.Printf("Build Date: %s\n", buildDate)
}

// run wires configuration, logging, telemetry, relay events and the HTTP
// server, then blocks until ctx is cancelled and the server has drained.
func run(ctx context.Context, configPath string) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("ignoring .env: %v", err)
	}

	cfg, err := config.LoadWithFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := initLogger(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	tel, err := telemetry.New(ctx, telemetry.FromObservability(cfg.Observability, version))
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			logger.Warn(shutdownCtx, "telemetry shutdown failed", zap.Error(err))
		}
	}()
	if h := tel.Health(); h.Degraded {
		logger.Warn(ctx, "telemetry degraded", zap.Strings("reasons", h.Reasons))
	}

	events, closeEvents := initEvents(ctx, cfg, logger)
	defer closeEvents()

	fwd := gateway.New(cfg.Gateway, logger,
		gateway.WithMetrics(gateway.NewMetrics()),
		gateway.WithEvents(events),
	)

	srv, err := httpserver.NewServer(fwd, logger,
		&httpserver.Config{
			Host:        cfg.Server.Host,
			Port:        cfg.Server.Port,
			ServiceName: cfg.Observability.ServiceName,
		},
		httpserver.WithHTTPMetrics(httpserver.NewHTTPMetrics(tel.MeterProvider(), logger.Underlying())),
	)
	if err != nil {
		return fmt.Errorf("failed to create http server: %w", err)
	}

	if cfg.Gateway.StartURL == "" {
		logger.Warn(ctx, "start url not configured; /start will answer 500", zap.String("key", config.StartURLKey))
	}
	logger.Info(ctx, "starting resumegate",
		zap.String("addr", srv.Addr()),
		zap.String("version", version),
		zap.Duration("upstream_timeout", cfg.Gateway.UpstreamTimeout),
		zap.Int64("max_body_bytes", cfg.Gateway.MaxBodyBytes),
		zap.Bool("telemetry", tel.IsEnabled()),
	)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	return <-errCh
}

// initLogger builds the structured logger. With telemetry enabled, records
// are also bridged to the global OpenTelemetry logger provider.
func initLogger(cfg *config.Config) (*logging.Logger, error) {
	obs := cfg.Observability
	logCfg, err := logging.NewConfigFromSettings(obs.LogLevel, obs.LogFormat, obs.ServiceName)
	if err != nil {
		return nil, err
	}

	var provider otellog.LoggerProvider
	if obs.EnableTelemetry {
		logCfg.Output.OTEL = true
		provider = global.GetLoggerProvider()
	}
	return logging.NewLogger(logCfg, provider)
}

// initEvents connects the NATS relay event publisher when configured.
// Connection failures disable events rather than the gateway.
func initEvents(ctx context.Context, cfg *config.Config, logger *logging.Logger) (gateway.EventPublisher, func()) {
	if !cfg.Events.NATSURL.IsSet() {
		return gateway.NopPublisher{}, func() {}
	}

	pub, err := gateway.ConnectNATS(cfg.Events.NATSURL.Value(), cfg.Events.SubjectPrefix, logger)
	if err != nil {
		logger.Warn(ctx, "relay events disabled", zap.Error(err))
		return gateway.NopPublisher{}, func() {}
	}
	logger.Info(ctx, "relay events enabled", zap.String("subject_prefix", cfg.Events.SubjectPrefix))
	return pub, func() {
		if err := pub.Close(); err != nil {
			logger.Warn(context.Background(), "closing nats", zap.Error(err))
		}
	}
}
