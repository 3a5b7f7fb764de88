// Transcript viewer tails partial and final transcript events from Kafka or
// NATS and prints the live transcript of every turn.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
)

func main() {
	source := flag.String("source", "kafka", "Event source: kafka or nats")
	brokers := flag.String("brokers", "localhost:9092", "Kafka brokers (comma-separated)")
	natsURL := flag.String("nats", nats.DefaultURL, "NATS server URL")
	partial := flag.String("partial", "speech.transcript.partial", "Partial transcript topic or subject")
	final := flag.String("final", "speech.transcript.final", "Final transcript topic or subject")
	since := flag.Duration("since", time.Hour, "Replay Kafka messages newer than this")
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	b := newBoard(os.Stdout)

	switch *source {
	case "kafka":
		done := make(chan struct{}, 2)
		for _, topic := range []string{*partial, *final} {
			go func(topic string) {
				consumeKafka(ctx, b, strings.Split(*brokers, ","), topic, *since)
				done <- struct{}{}
			}(topic)
		}
		<-done
		<-done
	case "nats":
		if err := consumeNATS(ctx, b, *natsURL, *partial, *final); err != nil {
			log.Fatal().Err(err).Msg("NATS consumer failed")
		}
	default:
		log.Fatal().Str("source", *source).Msg("Unknown source")
	}
}

func consumeKafka(ctx context.Context, b *board, brokers []string, topic string, since time.Duration) {
	// Partition reader without a consumer group, so several viewers can tail
	// the same topic.
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:   brokers,
		Topic:     topic,
		Partition: 0,
		MinBytes:  1,
		MaxBytes:  10e6,
	})
	defer reader.Close()

	if err := reader.SetOffsetAt(ctx, time.Now().Add(-since)); err != nil {
		log.Warn().Err(err).Str("topic", topic).Msg("Failed to seek, reading from the start")
	}
	log.Info().Str("topic", topic).Dur("since", since).Msg("Consuming from Kafka")

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Error().Err(err).Str("topic", topic).Msg("Kafka read error")
			time.Sleep(time.Second)
			continue
		}
		if err := b.Apply(msg.Value); err != nil {
			log.Warn().Err(err).Str("topic", topic).Msg("Skipping event")
		}
	}
}

func consumeNATS(ctx context.Context, b *board, url string, subjects ...string) error {
	nc, err := nats.Connect(url, nats.Name("transcript-viewer"))
	if err != nil {
		return err
	}
	defer nc.Drain()

	for _, subject := range subjects {
		if _, err := nc.Subscribe(subject, func(m *nats.Msg) {
			if err := b.Apply(m.Data); err != nil {
				log.Warn().Err(err).Str("subject", subject).Msg("Skipping event")
			}
		}); err != nil {
			return err
		}
	}
	log.Info().Str("url", url).Strs("subjects", subjects).Msg("Consuming from NATS")

	<-ctx.Done()
	return nil
}
