package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"speech-transcript-service/internal/observability/metrics"
)

// NATSConfig holds NATS publisher configuration.
type NATSConfig struct {
	URL            string
	SubjectPartial string
	SubjectFinal   string
	Principal      string
	ConnectTimeout time.Duration
}

// msgPublisher is the part of *nats.Conn the publisher uses.
type msgPublisher interface {
	PublishMsg(m *nats.Msg) error
	Drain() error
}

// NATSPublisher publishes transcript events to NATS subjects.
type NATSPublisher struct {
	conn           msgPublisher
	principal      string
	subjectPartial string
	subjectFinal   string
	metrics        *metrics.Metrics
}

// NewNATS connects to NATS and returns a publisher.
func NewNATS(cfg *NATSConfig) (*NATSPublisher, error) {
	if cfg == nil || cfg.URL == "" {
		return nil, fmt.Errorf("nats: no server URL configured")
	}

	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = nats.DefaultTimeout
	}

	options := []nats.Option{
		nats.Name(cfg.Principal),
		nats.Timeout(timeout),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info().Str("url", c.ConnectedUrl()).Msg("NATS reconnected")
		}),
	}

	conn, err := nats.Connect(cfg.URL, options...)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}

	log.Info().
		Str("url", cfg.URL).
		Str("subjectPartial", cfg.SubjectPartial).
		Str("subjectFinal", cfg.SubjectFinal).
		Msg("NATS publisher initialized")

	return newNATSPublisher(conn, cfg), nil
}

func newNATSPublisher(conn msgPublisher, cfg *NATSConfig) *NATSPublisher {
	return &NATSPublisher{
		conn:           conn,
		principal:      cfg.Principal,
		subjectPartial: cfg.SubjectPartial,
		subjectFinal:   cfg.SubjectFinal,
		metrics:        metrics.DefaultMetrics,
	}
}

// PublishPartial publishes a partial transcript event to the partial subject.
func (p *NATSPublisher) PublishPartial(ctx context.Context, key string, event any) error {
	return p.publish(ctx, p.subjectPartial, "partial", key, event)
}

// PublishFinal publishes a final transcript event to the final subject.
func (p *NATSPublisher) PublishFinal(ctx context.Context, key string, event any) error {
	return p.publish(ctx, p.subjectFinal, "final", key, event)
}

func (p *NATSPublisher) publish(ctx context.Context, subject, eventType, key string, event any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	start := time.Now()

	payload, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("subject", subject).Msg("Failed to marshal event")
		return err
	}

	msg := nats.NewMsg(subject)
	msg.Data = payload
	msg.Header.Set("eventType", eventTypeHeader(eventType))
	msg.Header.Set("principal", p.principal)
	msg.Header.Set("key", key)

	if err := p.conn.PublishMsg(msg); err != nil {
		log.Error().
			Err(err).
			Str("subject", subject).
			Str("key", key).
			Msg("Failed to publish to NATS")
		p.metrics.RecordPublish(BackendNATS, subject, eventType, err, time.Since(start).Seconds())
		return err
	}

	p.metrics.RecordPublish(BackendNATS, subject, eventType, nil, time.Since(start).Seconds())
	return nil
}

// Close drains pending messages and closes the connection.
func (p *NATSPublisher) Close() error {
	if p.conn == nil {
		return nil
	}
	return p.conn.Drain()
}
