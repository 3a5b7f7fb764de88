package events

import (
	"context"
	"fmt"

	"speech-transcript-service/internal/models"
)

// Backend names accepted by Open.
const (
	BackendKafka = "kafka"
	BackendNATS  = "nats"
	BackendLog   = "log"
)

// Sink is implemented by every publisher backend.
type Sink interface {
	PublishPartial(ctx context.Context, key string, event any) error
	PublishFinal(ctx context.Context, key string, event any) error
	Close() error
}

// Open returns the publisher for backend. The log backend is a Kafka
// publisher in log-only mode.
func Open(backend string, kafkaCfg *Config, natsCfg *NATSConfig) (Sink, error) {
	if kafkaCfg == nil {
		kafkaCfg = &Config{}
	}
	switch backend {
	case BackendKafka:
		cfg := *kafkaCfg
		cfg.Enabled = true
		return New(&cfg), nil
	case BackendNATS:
		p, err := NewNATS(natsCfg)
		if err != nil {
			return nil, err
		}
		return p, nil
	case BackendLog, "":
		return New(&Config{
			TopicPartial: kafkaCfg.TopicPartial,
			TopicFinal:   kafkaCfg.TopicFinal,
			Principal:    kafkaCfg.Principal,
		}), nil
	default:
		return nil, fmt.Errorf("unknown events backend %q", backend)
	}
}

func eventTypeHeader(kind string) string {
	if kind == "final" {
		return models.EventTypeFinal
	}
	return models.EventTypePartial
}
