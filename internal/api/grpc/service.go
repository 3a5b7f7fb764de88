package grpcapi

import (
	"context"

	"google.golang.org/grpc"

	"speech-transcript-service/internal/service/session"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "speech.transcript.v1.TranscriptService"

// Client frame types.
const (
	FrameStart = "start"
	FrameStop  = "stop"
	FrameAudio = "audio"
)

// ClientFrame is a control message or an audio chunk sent by the client.
type ClientFrame struct {
	Type          string `json:"type"`
	Audio         []byte `json:"audio,omitempty"`
	AudioOffsetMs int64  `json:"audioOffsetMs,omitempty"`
}

// ServerFrame carries either a view update or an error for the last
// client frame.
type ServerFrame struct {
	View  *session.View `json:"view,omitempty"`
	Error string        `json:"error,omitempty"`
}

// TranscriptServer is the server API for TranscriptService.
type TranscriptServer interface {
	Transcribe(grpc.BidiStreamingServer[ClientFrame, ServerFrame]) error
}

// ServiceDesc is the grpc.ServiceDesc for TranscriptService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*TranscriptServer)(nil),
	Methods:     []grpc.MethodDesc{},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Transcribe",
			Handler:       transcribeHandler,
			ServerStreams: true,
			ClientStreams: true,
		},
	},
	Metadata: "speech/transcript/v1/transcript.json",
}

func transcribeHandler(srv any, stream grpc.ServerStream) error {
	return srv.(TranscriptServer).Transcribe(&grpc.GenericServerStream[ClientFrame, ServerFrame]{ServerStream: stream})
}

// TranscriptClient is the client API for TranscriptService.
type TranscriptClient struct {
	cc grpc.ClientConnInterface
}

func NewTranscriptClient(cc grpc.ClientConnInterface) *TranscriptClient {
	return &TranscriptClient{cc: cc}
}

// Transcribe opens a bidirectional transcription stream using the JSON codec.
func (c *TranscriptClient) Transcribe(ctx context.Context, opts ...grpc.CallOption) (grpc.BidiStreamingClient[ClientFrame, ServerFrame], error) {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(codecName)}, opts...)
	stream, err := c.cc.NewStream(ctx, &ServiceDesc.Streams[0], "/"+ServiceName+"/Transcribe", opts...)
	if err != nil {
		return nil, err
	}
	return &grpc.GenericClientStream[ClientFrame, ServerFrame]{ClientStream: stream}, nil
}
