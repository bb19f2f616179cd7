package session

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/fyrsmithlabs/resumegate/pkg/session"

// clientMetrics counts operations by provenance and upstream attempts.
type clientMetrics struct {
	operations metric.Int64Counter
	attempts   metric.Int64Counter
}

func newClientMetrics(mp metric.MeterProvider, logger *zap.Logger) *clientMetrics {
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	meter := mp.Meter(instrumentationName)
	m := &clientMetrics{}

	var err error
	m.operations, err = meter.Int64Counter(
		"resumegate.session.operations",
		metric.WithDescription("Session operations by action and result (live, fallback)"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		logger.Warn("failed to create operations counter", zap.Error(err))
	}

	m.attempts, err = meter.Int64Counter(
		"resumegate.session.upstream_attempts",
		metric.WithDescription("Upstream HTTP attempts including retries"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		logger.Warn("failed to create attempts counter", zap.Error(err))
	}
	return m
}

func (m *clientMetrics) operation(ctx context.Context, action string, live bool) {
	if m == nil || m.operations == nil {
		return
	}
	result := "fallback"
	if live {
		result = "live"
	}
	m.operations.Add(ctx, 1, metric.WithAttributes(
		attribute.String("action", action),
		attribute.String("result", result),
	))
}

func (m *clientMetrics) attempt(ctx context.Context, action string) {
	if m == nil || m.attempts == nil {
		return
	}
	m.attempts.Add(ctx, 1, metric.WithAttributes(attribute.String("action", action)))
}
