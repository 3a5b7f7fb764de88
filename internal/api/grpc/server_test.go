package grpcapi

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"

	"speech-transcript-service/internal/observability/metrics"
	"speech-transcript-service/internal/service/recognizer"
	"speech-transcript-service/internal/service/recognizer/mock"
	"speech-transcript-service/internal/service/session"
)

func init() {
	mock.PartialDelay = time.Millisecond
	mock.FinalDelay = time.Millisecond
}

var testUtterance = mock.SimulatedUtterance{
	Partials:   []string{"hello", "hello world"},
	Final:      "hello world again",
	Confidence: 0.9,
}

func startServer(t *testing.T) *TranscriptClient {
	t.Helper()

	mgr := session.NewManager(session.Options{
		Factory: func(ctx context.Context) (recognizer.Adapter, error) {
			return mock.NewWithUtterance(testUtterance), nil
		},
		Provider:  "mock",
		MergeMode: "prefix",
		Metrics:   metrics.NewMetrics(prometheus.NewRegistry()),
	})

	lis := bufconn.Listen(1 << 20)
	g := grpc.NewServer()
	Register(g, mgr)
	go g.Serve(lis)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}

	t.Cleanup(func() {
		conn.Close()
		g.Stop()
		mgr.Shutdown()
	})
	return NewTranscriptClient(conn)
}

func recvUntil(t *testing.T, stream grpc.BidiStreamingClient[ClientFrame, ServerFrame], match func(*ServerFrame) bool) *ServerFrame {
	t.Helper()
	for {
		f, err := stream.Recv()
		if err != nil {
			t.Fatalf("Recv: %v", err)
		}
		if match(f) {
			return f
		}
	}
}

func TestTranscribe_FullTurn(t *testing.T) {
	client := startServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stream, err := client.Transcribe(ctx)
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}

	initial := recvUntil(t, stream, func(f *ServerFrame) bool { return f.View != nil })
	if !initial.View.StartEnabled || initial.View.StopEnabled {
		t.Errorf("expected idle view, got %+v", initial.View)
	}

	if err := stream.Send(&ClientFrame{Type: FrameStart}); err != nil {
		t.Fatalf("Send start: %v", err)
	}
	listening := recvUntil(t, stream, func(f *ServerFrame) bool { return f.View != nil && f.View.Listening })
	if listening.View.TurnID == "" {
		t.Error("expected turn ID on listening view")
	}

	for i := 0; i < 3; i++ {
		if err := stream.Send(&ClientFrame{Type: FrameAudio, Audio: make([]byte, 320), AudioOffsetMs: int64(i * 20)}); err != nil {
			t.Fatalf("Send audio: %v", err)
		}
	}

	done := recvUntil(t, stream, func(f *ServerFrame) bool {
		return f.View != nil && !f.View.Listening && f.View.TurnID != ""
	})
	if done.View.Text != "hello world again" {
		t.Errorf("expected final transcript, got %q", done.View.Text)
	}
	if !done.View.StartEnabled {
		t.Error("expected start to be enabled after the turn ended")
	}

	if err := stream.CloseSend(); err != nil {
		t.Fatalf("CloseSend: %v", err)
	}
}

func TestTranscribe_RejectedFrames(t *testing.T) {
	client := startServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stream, err := client.Transcribe(ctx)
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}

	if err := stream.Send(&ClientFrame{Type: "rewind"}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	f := recvUntil(t, stream, func(f *ServerFrame) bool { return f.Error != "" })
	if f.Error != `unknown frame type "rewind"` {
		t.Errorf("unexpected error frame: %q", f.Error)
	}

	if err := stream.Send(&ClientFrame{Type: FrameStop}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	f = recvUntil(t, stream, func(f *ServerFrame) bool { return f.Error != "" })
	if f.Error != session.ErrNotListening.Error() {
		t.Errorf("expected %q, got %q", session.ErrNotListening, f.Error)
	}
}

func TestTranscribe_AudioWhileIdleIsIgnored(t *testing.T) {
	client := startServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stream, err := client.Transcribe(ctx)
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}

	if err := stream.Send(&ClientFrame{Type: FrameAudio, Audio: []byte{1, 2}}); err != nil {
		t.Fatalf("Send audio: %v", err)
	}
	if err := stream.Send(&ClientFrame{Type: "bogus"}); err != nil {
		t.Fatalf("Send: %v", err)
	}

	// The only error frame is for the bogus frame.
	f := recvUntil(t, stream, func(f *ServerFrame) bool { return f.Error != "" })
	if f.Error != `unknown frame type "bogus"` {
		t.Errorf("expected error for bogus frame only, got %q", f.Error)
	}
}

func TestJSONCodec(t *testing.T) {
	c := jsonCodec{}
	if c.Name() != "json" {
		t.Errorf("expected codec name json, got %s", c.Name())
	}

	data, err := c.Marshal(&ClientFrame{Type: FrameAudio, Audio: []byte{0xff}, AudioOffsetMs: 40})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var got ClientFrame
	if err := c.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got.Type != FrameAudio || len(got.Audio) != 1 || got.Audio[0] != 0xff || got.AudioOffsetMs != 40 {
		t.Errorf("unexpected frame after round trip: %+v", got)
	}
}
