package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fyrsmithlabs/resumegate/internal/logging"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// DefaultSubjectPrefix is used when no prefix is configured.
const DefaultSubjectPrefix = "resumegate.relay"

// RelayEvent is the audit record published after every relay. Only the
// upstream host is included; full URLs carry continuation tokens.
type RelayEvent struct {
	ID           string    `json:"id"`
	Endpoint     string    `json:"endpoint"`
	Outcome      string    `json:"outcome"`
	Status       int       `json:"status"`
	UpstreamHost string    `json:"upstream_host,omitempty"`
	DurationMS   int64     `json:"duration_ms"`
	RequestID    string    `json:"request_id,omitempty"`
	At           time.Time `json:"at"`
}

// EventPublisher receives relay events. Implementations must not block the
// relay and must not fail it.
type EventPublisher interface {
	Publish(ctx context.Context, ev RelayEvent)
}

// NopPublisher discards events.
type NopPublisher struct{}

// Publish implements EventPublisher.
func (NopPublisher) Publish(context.Context, RelayEvent) {}

// NATSPublisher publishes relay events as JSON to
// <prefix>.<endpoint>.<outcome>.
type NATSPublisher struct {
	nc     *nats.Conn
	prefix string
	logger *logging.Logger
}

// NewNATSPublisher wraps an established connection.
func NewNATSPublisher(nc *nats.Conn, prefix string, logger *logging.Logger) *NATSPublisher {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &NATSPublisher{nc: nc, prefix: prefix, logger: logger.Named("events")}
}

// ConnectNATS dials url and returns a publisher that owns the connection.
func ConnectNATS(url, prefix string, logger *logging.Logger) (*NATSPublisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("resumegate"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return NewNATSPublisher(nc, prefix, logger), nil
}

// Subject returns the subject an event is published on.
func (p *NATSPublisher) Subject(ev RelayEvent) string {
	return fmt.Sprintf("%s.%s.%s", p.prefix, ev.Endpoint, ev.Outcome)
}

// Publish implements EventPublisher. Failures are logged and dropped.
func (p *NATSPublisher) Publish(ctx context.Context, ev RelayEvent) {
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}

	data, err := json.Marshal(ev)
	if err != nil {
		p.logger.Warn(ctx, "marshal relay event", zap.Error(err))
		return
	}
	if err := p.nc.Publish(p.Subject(ev), data); err != nil {
		p.logger.Warn(ctx, "publish relay event",
			zap.String("subject", p.Subject(ev)), zap.Error(err))
	}
}

// Close drains the connection, flushing pending events.
func (p *NATSPublisher) Close() error {
	if p.nc == nil {
		return nil
	}
	return p.nc.Drain()
}
