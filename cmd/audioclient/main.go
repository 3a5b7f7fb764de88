package main

import (
	"context"
	"encoding/binary"
	"errors"
	"flag"
	"io"
	"os"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	grpcapi "speech-transcript-service/internal/api/grpc"
)

// Stream audio in chunks to simulate real-time streaming.
const chunkInterval = 100 * time.Millisecond

func main() {
	audioFile := flag.String("audio", "testdata/sample-8khz.wav", "Path to WAV file (16-bit PCM mono)")
	serverAddr := flag.String("server", "localhost:50051", "gRPC server address")
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	f, err := os.Open(*audioFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open audio file")
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		log.Fatal().Str("file", *audioFile).Msg("Not a valid WAV file")
	}
	if err := dec.FwdToPCM(); err != nil {
		log.Fatal().Err(err).Msg("Failed to find PCM data")
	}

	log.Info().
		Uint16("format", dec.WavAudioFormat).
		Uint16("channels", dec.NumChans).
		Uint32("sampleRate", dec.SampleRate).
		Uint16("bitsPerSample", dec.BitDepth).
		Msg("WAV file")

	if dec.WavAudioFormat != 1 || dec.BitDepth != 16 {
		log.Fatal().Msg("Only 16-bit PCM is supported")
	}
	if dec.SampleRate != 8000 {
		log.Warn().Uint32("sampleRate", dec.SampleRate).Msg("Expected 8000 Hz audio")
	}

	conn, err := grpc.NewClient(*serverAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect")
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	stream, err := grpcapi.NewTranscriptClient(conn).Transcribe(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create stream")
	}

	ended := make(chan struct{})
	go func() {
		defer close(ended)
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
			log.Info().Str("turnId", v.TurnID).Bool("listening", v.Listening).Str("notice", v.Notice).Msg(v.Text)
			if !v.Listening && v.TurnID != "" {
				return
			}
		}
	}()

	if err := stream.Send(&grpcapi.ClientFrame{Type: grpcapi.FrameStart}); err != nil {
		log.Fatal().Err(err).Msg("Failed to start turn")
	}

	samplesPerChunk := int(dec.SampleRate) * int(dec.NumChans) * int(chunkInterval/time.Millisecond) / 1000
	buf := &audio.IntBuffer{
		Format:         dec.Format(),
		Data:           make([]int, samplesPerChunk),
		SourceBitDepth: int(dec.BitDepth),
	}

	var offset time.Duration
	var chunks int
	for {
		n, err := dec.PCMBuffer(buf)
		if err != nil && !errors.Is(err, io.EOF) {
			log.Fatal().Err(err).Msg("Failed to read audio")
		}
		if n == 0 {
			break
		}

		frame := &grpcapi.ClientFrame{
			Type:          grpcapi.FrameAudio,
			Audio:         linear16(buf.Data[:n]),
			AudioOffsetMs: offset.Milliseconds(),
		}
		if err := stream.Send(frame); err != nil {
			log.Fatal().Err(err).Msg("Failed to send audio")
		}

		chunks++
		offset += chunkInterval
		time.Sleep(chunkInterval)
	}

	log.Info().Int("chunks", chunks).Dur("audio", offset).Msg("Finished streaming, stopping turn")
	if err := stream.Send(&grpcapi.ClientFrame{Type: grpcapi.FrameStop}); err != nil {
		log.Warn().Err(err).Msg("Failed to stop turn")
	}

	<-ended
	_ = stream.CloseSend()
}

// linear16 encodes samples as little-endian signed 16-bit PCM.
func linear16(samples []int) []byte {
	out := make([]byte, 2*len(samples))
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[2*i:], uint16(int16(s)))
	}
	return out
}
