// Package google provides a Google Cloud Speech-to-Text recognizer.
package google

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"github.com/rs/zerolog"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"speech-transcript-service/internal/observability/logging"
	"speech-transcript-service/internal/service/recognizer"
)

// Provider is the sttProvider value logged by this recognizer.
const Provider = "google"

// Config holds streaming recognition settings.
type Config struct {
	LanguageCode    string
	SampleRateHz    int32
	InterimResults  bool
	AudioEncoding   string
	SingleUtterance bool
	MaxAlternatives int32
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		LanguageCode:    "en-US",
		SampleRateHz:    8000,
		InterimResults:  true,
		AudioEncoding:   "LINEAR16",
		SingleUtterance: false,
		MaxAlternatives: 1,
	}
}

// Adapter implements recognizer.Adapter using Google Cloud Speech-to-Text.
type Adapter struct {
	client *speech.Client
	cfg    Config
	stream speechpb.Speech_StreamingRecognizeClient
	cb     recognizer.Callback
	log    zerolog.Logger

	mu     sync.Mutex
	closed bool
}

// New creates a new Google recognizer.
// Requires GOOGLE_APPLICATION_CREDENTIALS environment variable to be set.
func New(ctx context.Context, cfg Config) (*Adapter, error) {
	c, err := speech.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create speech client: %w", err)
	}
	return &Adapter{client: c, cfg: cfg}, nil
}

// Start opens a streaming recognition session, sends the initial config and
// starts receiving results.
func (a *Adapter) Start(ctx context.Context, cb recognizer.Callback) error {
	stream, err := a.client.StreamingRecognize(ctx)
	if err != nil {
		return recognizer.NewError(classify(err), err)
	}
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		_ = stream.CloseSend()
		return errors.New("recognizer closed before start")
	}
	a.stream = stream
	a.cb = cb
	a.log = streamLogger(cb)
	a.mu.Unlock()

	err = stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: &speechpb.StreamingRecognitionConfig{
				Config: &speechpb.RecognitionConfig{
					Encoding:        parseAudioEncoding(a.cfg.AudioEncoding),
					SampleRateHertz: a.cfg.SampleRateHz,
					LanguageCode:    a.cfg.LanguageCode,
					MaxAlternatives: a.cfg.MaxAlternatives,
				},
				InterimResults:  a.cfg.InterimResults,
				SingleUtterance: a.cfg.SingleUtterance,
			},
		},
	})
	if err != nil {
		return recognizer.NewError(classify(err), err)
	}

	a.log.Debug().Str("languageCode", a.cfg.LanguageCode).Msg("Streaming recognition started")
	cb.OnReadyForSpeech()
	go a.listen()
	return nil
}

// SendAudio sends audio bytes to Google Speech-to-Text.
func (a *Adapter) SendAudio(ctx context.Context, audio []byte) error {
	a.mu.Lock()
	stream := a.stream
	a.mu.Unlock()
	if stream == nil {
		return errors.New("recognition stream not started")
	}
	err := stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_AudioContent{
			AudioContent: audio,
		},
	})
	if err != nil {
		return recognizer.NewError(classify(err), err)
	}
	return nil
}

// Close half-closes the stream and releases the client.
func (a *Adapter) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	stream := a.stream
	a.mu.Unlock()

	var err error
	if stream != nil {
		err = stream.CloseSend()
	}
	if cerr := a.client.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

func (a *Adapter) isClosed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.closed
}

// listen receives responses from Google and invokes callbacks until the
// stream ends.
func (a *Adapter) listen() {
	for {
		resp, err := a.stream.Recv()
		if err == io.EOF {
			return
		}
		if err != nil {
			if a.isClosed() {
				return
			}
			a.log.Warn().Err(err).Msg("Streaming recognize failed")
			a.cb.OnError(recognizer.NewError(classify(err), err))
			return
		}
		if st := resp.GetError(); st != nil && st.GetCode() != int32(codes.OK) {
			err := status.ErrorProto(st)
			a.cb.OnError(recognizer.NewError(classify(err), err))
			return
		}
		if resp.GetSpeechEventType() == speechpb.StreamingRecognizeResponse_END_OF_SINGLE_UTTERANCE {
			a.cb.OnEndOfSpeech()
		}

		for _, r := range resp.GetResults() {
			if len(r.GetAlternatives()) == 0 {
				continue
			}
			alt := r.GetAlternatives()[0]
			if r.GetIsFinal() {
				a.cb.OnFinal(alt.GetTranscript(), float64(alt.GetConfidence()))
			} else {
				a.cb.OnPartial(alt.GetTranscript())
			}
		}
	}
}

// streamLogger tags log lines with the session and turn cb reports for.
func streamLogger(cb recognizer.Callback) zerolog.Logger {
	sessionID, turnID := recognizer.TurnOf(cb)
	return logging.WithStream(sessionID, turnID, Provider)
}

// classify maps gRPC status codes onto recognizer error kinds.
func classify(err error) recognizer.ErrorKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return recognizer.ErrorNetworkTimeout
	}
	switch status.Code(err) {
	case codes.DeadlineExceeded:
		return recognizer.ErrorNetworkTimeout
	case codes.Unavailable:
		return recognizer.ErrorNetwork
	case codes.OutOfRange:
		return recognizer.ErrorSpeechTimeout
	case codes.InvalidArgument, codes.FailedPrecondition, codes.Unauthenticated, codes.PermissionDenied:
		return recognizer.ErrorClient
	case codes.ResourceExhausted, codes.Aborted:
		return recognizer.ErrorRecognizerBusy
	case codes.Internal, codes.DataLoss:
		return recognizer.ErrorServer
	case codes.NotFound:
		return recognizer.ErrorNoMatch
	default:
		return recognizer.ErrorUnknown
	}
}

// parseAudioEncoding converts an upper-case encoding name to the API enum.
// Unknown names fall back to LINEAR16.
func parseAudioEncoding(name string) speechpb.RecognitionConfig_AudioEncoding {
	if name == "UNKNOWN" || name == "ENCODING_UNSPECIFIED" {
		return speechpb.RecognitionConfig_LINEAR16
	}
	if v, ok := speechpb.RecognitionConfig_AudioEncoding_value[name]; ok {
		return speechpb.RecognitionConfig_AudioEncoding(v)
	}
	return speechpb.RecognitionConfig_LINEAR16
}
