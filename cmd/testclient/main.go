package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	grpcapi "speech-transcript-service/internal/api/grpc"
)

func main() {
	serverAddr := flag.String("server", "localhost:50051", "gRPC server address")
	frames := flag.Int("frames", 5, "Audio frames to send per turn")
	turns := flag.Int("turns", 2, "Turns to run")
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	conn, err := grpc.NewClient(*serverAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect")
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	stream, err := grpcapi.NewTranscriptClient(conn).Transcribe(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create stream")
	}
	log.Info().Str("server", *serverAddr).Msg("Connected to server")

	turnEnded := make(chan struct{}, 1)
	go func() {
		for {
			frame, err := stream.Recv()
			if err != nil {
				if !errors.Is(err, io.EOF) {
					log.Error().Err(err).Msg("Stream receive failed")
				}
				return
			}
			if frame.Error != "" {
				log.Warn().Str("error", frame.Error).Msg("Server rejected frame")
				continue
			}
			v := frame.View
			log.Info().
				Str("turnId", v.TurnID).
				Bool("start", v.StartEnabled).
				Bool("stop", v.StopEnabled).
				Str("notice", v.Notice).
				Msgf("%q", v.Text)
			if !v.Listening && v.TurnID != "" {
				select {
				case turnEnded <- struct{}{}:
				default:
				}
			}
		}
	}()

	for t := 0; t < *turns; t++ {
		if err := stream.Send(&grpcapi.ClientFrame{Type: grpcapi.FrameStart}); err != nil {
			log.Fatal().Err(err).Msg("Failed to start turn")
		}
		for i := 0; i < *frames; i++ {
			frame := &grpcapi.ClientFrame{
				Type:          grpcapi.FrameAudio,
				Audio:         make([]byte, 1600),
				AudioOffsetMs: int64(i * 100),
			}
			if err := stream.Send(frame); err != nil {
				log.Fatal().Err(err).Msg("Failed to send frame")
			}
			time.Sleep(100 * time.Millisecond)
		}

		select {
		case <-turnEnded:
		case <-time.After(5 * time.Second):
			log.Warn().Msg("No final result, stopping turn")
			_ = stream.Send(&grpcapi.ClientFrame{Type: grpcapi.FrameStop})
			<-turnEnded
		}
	}

	if err := stream.CloseSend(); err != nil {
		log.Error().Err(err).Msg("Failed to close stream")
	}
}
