package grpcapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"speech-transcript-service/internal/service/session"
)

type Server struct {
	sessions *session.Manager
}

// Register adds the transcript service to g.
func Register(g *grpc.Server, sessions *session.Manager) *Server {
	s := &Server{sessions: sessions}
	g.RegisterService(&ServiceDesc, s)
	return s
}

// streamSink sends session views on the gRPC stream. Send is not safe for
// concurrent use, so views and error frames share one lock.
type streamSink struct {
	mu     sync.Mutex
	stream grpc.BidiStreamingServer[ClientFrame, ServerFrame]
}

func (k *streamSink) SendView(v session.View) error {
	return k.send(&ServerFrame{View: &v})
}

func (k *streamSink) sendError(err error) error {
	return k.send(&ServerFrame{Error: err.Error()})
}

func (k *streamSink) send(f *ServerFrame) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.stream.Send(f)
}

// Transcribe runs one session for the lifetime of the stream.
func (s *Server) Transcribe(stream grpc.BidiStreamingServer[ClientFrame, ServerFrame]) error {
	ctx := stream.Context()
	sink := &streamSink{stream: stream}

	sess, err := s.sessions.Open(ctx, sink)
	if err != nil {
		return status.Error(codes.Unavailable, err.Error())
	}
	defer s.sessions.Close(sess.ID())

	logger := log.With().Str("sessionId", sess.ID()).Logger()
	logger.Info().Msg("Transcribe stream opened")

	for {
		frame, err := stream.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) || status.Code(err) == codes.Canceled {
				logger.Info().Msg("Transcribe stream closed by client")
				return nil
			}
			logger.Warn().Err(err).Msg("Transcribe stream receive failed")
			return err
		}

		if err := apply(ctx, sess, frame); err != nil {
			logger.Debug().Err(err).Str("frame", frame.Type).Msg("Frame rejected")
			if sendErr := sink.sendError(err); sendErr != nil {
				return sendErr
			}
		}
	}
}

// apply performs the action carried by one client frame. Audio arriving
// after a turn ended is dropped silently.
func apply(ctx context.Context, sess *session.Session, frame *ClientFrame) error {
	switch frame.Type {
	case FrameStart:
		_, err := sess.StartTurn(ctx)
		return err
	case FrameStop:
		return sess.StopTurn()
	case FrameAudio:
		err := sess.SendAudio(ctx, frame.Audio, frame.AudioOffsetMs)
		if errors.Is(err, session.ErrNotListening) {
			return nil
		}
		return err
	default:
		return fmt.Errorf("unknown frame type %q", frame.Type)
	}
}
