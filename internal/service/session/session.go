// Package session drives recognition turns for one client connection.
//
// A Session owns one recognizer at a time. Recognizer callbacks are turned
// into recognizer.Event values and handled by a single goroutine, so the
// transcript merger and the UI state see one ordered event sequence. Views,
// transcript events and turn records leave the session through an ordered
// outbox drained by a second goroutine.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"speech-transcript-service/internal/models"
	"speech-transcript-service/internal/observability/logging"
	"speech-transcript-service/internal/observability/metrics"
	"speech-transcript-service/internal/service/recognizer"
	"speech-transcript-service/internal/service/turn"
	"speech-transcript-service/internal/transcript"
)

var (
	ErrSessionClosed         = errors.New("session closed")
	ErrAlreadyListening      = errors.New("already listening")
	ErrNotListening          = errors.New("not listening")
	ErrRecognizerUnavailable = errors.New("speech recognition unavailable")
	ErrTurnLimitExceeded     = errors.New("turn limit exceeded")
)

// Publisher publishes transcript events keyed by session ID.
type Publisher interface {
	PublishPartial(ctx context.Context, key string, event any) error
	PublishFinal(ctx context.Context, key string, event any) error
}

// TurnRecorder persists finalized turns.
type TurnRecorder interface {
	SaveTurn(ctx context.Context, rec models.TurnRecord) error
}

// Validator checks events before they are published.
type Validator interface {
	Validate(event any) error
}

// ViewSink receives every rendered view of a session, in order.
type ViewSink interface {
	SendView(v View) error
}

// Limits bounds a single turn. Zero disables a limit.
type Limits struct {
	MaxAudioBytes int64
	MaxDuration   time.Duration
	MaxPartials   int
}

// DefaultLimits returns sensible default limits.
func DefaultLimits() Limits {
	return Limits{
		MaxAudioBytes: 5 * 1024 * 1024, // 5MB (~5 minutes at 8kHz 16-bit mono)
		MaxDuration:   5 * time.Minute,
		MaxPartials:   500,
	}
}

// Options configures sessions. Only Factory is required.
type Options struct {
	Factory   recognizer.Factory
	Provider  string
	MergeMode string
	Limits    Limits
	Publisher Publisher
	Recorder  TurnRecorder
	Validator Validator
	TurnIDs   *turn.Generator
	Metrics   *metrics.Metrics
	Clock     func() time.Time
}

func (o Options) withDefaults() Options {
	if o.TurnIDs == nil {
		o.TurnIDs = turn.NewGenerator()
	}
	if o.Metrics == nil {
		o.Metrics = metrics.DefaultMetrics
	}
	if o.Clock == nil {
		o.Clock = time.Now
	}
	if o.Provider == "" {
		o.Provider = "unknown"
	}
	return o
}

const (
	eventBuffer    = 64
	outboxBuffer   = 256
	publishTimeout = 10 * time.Second
)

// turnStats is reset at the start of every turn.
type turnStats struct {
	startedAt  time.Time
	audioBytes int64
	partials   int
	offsetMs   int64
	confidence float64
	errKind    string
}

// Session is one client's transcription session.
type Session struct {
	id   string
	opts Options
	sink ViewSink
	log  zerolog.Logger

	events    chan recognizer.Event
	outbox    chan func()
	done      chan struct{}
	closeOnce sync.Once
	runWG     sync.WaitGroup
	outboxWG  sync.WaitGroup

	mu        sync.Mutex
	closed    bool
	ui        UIState
	merger    transcript.Merger
	adapter   recognizer.Adapter
	lifecycle *turn.Lifecycle
	stats     turnStats
	turnLog   zerolog.Logger

	// unwatch stops the context watch registered by Manager.Open.
	unwatch func() bool
}

// New creates a session and sends its initial view to sink.
func New(id string, sink ViewSink, opts Options) *Session {
	opts = opts.withDefaults()
	s := &Session{
		id:     id,
		opts:   opts,
		sink:   sink,
		log:    logging.WithSession(id),
		events: make(chan recognizer.Event, eventBuffer),
		outbox: make(chan func(), outboxBuffer),
		done:   make(chan struct{}),
		merger: transcript.NewMerger(opts.MergeMode),
	}
	s.turnLog = s.log

	s.runWG.Add(1)
	go s.run()
	s.outboxWG.Add(1)
	go s.drainOutbox()

	s.mu.Lock()
	s.renderLocked()
	s.mu.Unlock()

	s.log.Info().Str("mergeMode", opts.MergeMode).Msg("Session opened")
	return s
}

// ID returns the session ID.
func (s *Session) ID() string {
	return s.id
}

// State returns a snapshot of the UI state.
func (s *Session) State() UIState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ui
}

// StartTurn creates a recognizer and starts listening. It returns the new
// turn ID.
func (s *Session) StartTurn(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.closed:
		return "", ErrSessionClosed
	case s.ui.Unavailable:
		return "", ErrRecognizerUnavailable
	case s.ui.Listening:
		return "", ErrAlreadyListening
	}

	adapter, err := s.opts.Factory(ctx)
	if err != nil {
		s.log.Error().Err(err).Str("sttProvider", s.opts.Provider).Msg("Recognizer unavailable")
		s.opts.Metrics.RecordRecognizerUnavailable(s.opts.Provider)
		s.ui.Unavailable = true
		s.ui.Notice = NoticeUnavailable
		s.renderLocked()
		return "", fmt.Errorf("%w: %v", ErrRecognizerUnavailable, err)
	}

	turnID := s.opts.TurnIDs.Next(s.id)
	if s.lifecycle == nil {
		s.lifecycle = turn.NewLifecycle(turnID)
	} else {
		s.lifecycle.Reset(turnID)
	}
	s.merger.Reset()
	s.stats = turnStats{startedAt: s.opts.Clock()}
	s.adapter = adapter
	s.turnLog = logging.WithTurn(s.id, turnID)
	s.ui = UIState{Listening: true, TurnID: turnID}
	s.opts.Metrics.RecordTurnStarted()

	s.turnLog.Info().Str("sttProvider", s.opts.Provider).Msg("Turn started")

	if err := adapter.Start(ctx, recognizer.NewDispatcher(s.id, turnID, s.events, s.done)); err != nil {
		s.failLocked(recognizer.KindOf(err), err)
		return "", fmt.Errorf("start recognizer: %w", err)
	}

	s.renderLocked()
	return turnID, nil
}

// SendAudio forwards audio to the recognizer of the current turn. When a
// turn limit is exceeded the turn is ended and ErrTurnLimitExceeded returned.
func (s *Session) SendAudio(ctx context.Context, audio []byte, offsetMs int64) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if !s.ui.Listening || s.adapter == nil {
		s.mu.Unlock()
		return ErrNotListening
	}

	s.stats.audioBytes += int64(len(audio))
	if offsetMs > s.stats.offsetMs {
		s.stats.offsetMs = offsetMs
	}

	if limitType, reason := s.exceededLocked(); limitType != "" {
		s.opts.Metrics.RecordLimitExceeded(limitType)
		s.turnLog.Warn().
			Str("limit", limitType).
			Str("reason", reason).
			Msg("Turn limit exceeded")
		s.endTurnLocked(turn.ReasonLimitExceeded)
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrTurnLimitExceeded, reason)
	}
	adapter := s.adapter
	s.mu.Unlock()

	s.opts.Metrics.RecordAudioReceived(len(audio))
	if err := adapter.SendAudio(ctx, audio); err != nil {
		return fmt.Errorf("send audio: %w", err)
	}
	return nil
}

func (s *Session) exceededLocked() (limitType, reason string) {
	l := s.opts.Limits
	if l.MaxAudioBytes > 0 && s.stats.audioBytes > l.MaxAudioBytes {
		return "audio_bytes", fmt.Sprintf("max audio bytes exceeded: %d > %d", s.stats.audioBytes, l.MaxAudioBytes)
	}
	if l.MaxDuration > 0 {
		if elapsed := s.opts.Clock().Sub(s.stats.startedAt); elapsed > l.MaxDuration {
			return "duration", fmt.Sprintf("max duration exceeded: %v > %v", elapsed, l.MaxDuration)
		}
	}
	return "", ""
}

// StopTurn ends the current turn at the user's request. The transcript
// collected so far is finalized and published.
func (s *Session) StopTurn() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSessionClosed
	}
	if !s.ui.Listening {
		return ErrNotListening
	}
	s.ui.UserStopped = true
	s.endTurnLocked(turn.ReasonUserStop)
	return nil
}

// Close ends any active turn, stops the event loop and waits until every
// queued view and event has been delivered. Safe to call more than once.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.endTurnLocked(turn.ReasonSessionClosed)
		s.closed = true
		s.mu.Unlock()

		close(s.done)
		s.runWG.Wait()
		close(s.outbox)
		s.outboxWG.Wait()

		s.log.Info().Msg("Session closed")
	})
	return nil
}

func (s *Session) run() {
	defer s.runWG.Done()
	for {
		select {
		case ev := <-s.events:
			s.handle(ev)
		case <-s.done:
			return
		}
	}
}

func (s *Session) handle(ev recognizer.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.lifecycle == nil || ev.TurnID != s.lifecycle.TurnID() || s.lifecycle.IsEnded() {
		s.log.Debug().
			Str("turnId", ev.TurnID).
			Stringer("event", ev.Type).
			Msg("Dropping event for inactive turn")
		return
	}

	switch ev.Type {
	case recognizer.EventReadyForSpeech:
		s.turnLog.Debug().Msg("Ready for speech")
		s.ui.Status = StatusListening
		s.renderLocked()
	case recognizer.EventPartialResult:
		s.partialLocked(ev.Text)
	case recognizer.EventFinalResult:
		s.finalLocked(ev.Text, ev.Confidence)
	case recognizer.EventError:
		s.failLocked(ev.Kind, ev.Err)
	case recognizer.EventEndOfSpeech:
		s.opts.Metrics.RecordEndOfSpeech()
		s.turnLog.Debug().Msg("Speech has ended")
	}
}

func (s *Session) partialLocked(text string) {
	turnID := s.lifecycle.TurnID()
	if err := s.lifecycle.ObservePartial(); err != nil {
		s.turnLog.Debug().Err(err).Msg("Partial ignored")
		return
	}

	// The partial over the limit is neither folded nor counted.
	if limit := s.opts.Limits.MaxPartials; limit > 0 && s.stats.partials >= limit {
		s.opts.Metrics.RecordLimitExceeded("partials")
		s.turnLog.Warn().
			Int("partials", s.stats.partials).
			Msg("Turn limit exceeded")
		s.endTurnLocked(turn.ReasonLimitExceeded)
		return
	}

	s.stats.partials++
	extended := true
	if acc, ok := s.merger.(interface{ Extends(string) bool }); ok {
		extended = acc.Extends(text)
	}
	display := s.merger.ObservePartial(text)
	s.ui.Transcript = display
	s.opts.Metrics.RecordPartialTranscript(extended)

	s.turnLog.Debug().
		Str("text", text).
		Bool("extended", extended).
		Msg("Partial result")

	ev := models.TranscriptPartial{
		EventType:  models.EventTypePartial,
		SessionID:  s.id,
		TurnID:     turnID,
		Timestamp:  s.opts.Clock().UnixMilli(),
		Sequence:   s.stats.partials,
		Text:       text,
		Transcript: display,
		Extended:   extended,
	}
	s.enqueue(func() { s.publishPartial(ev) })
	s.renderLocked()
}

func (s *Session) finalLocked(text string, confidence float64) {
	if err := s.lifecycle.ObserveFinal(); err != nil {
		s.turnLog.Debug().Err(err).Msg("Final ignored")
		return
	}

	s.ui.Transcript = s.merger.ObserveFinal(text)
	s.stats.confidence = confidence
	s.opts.Metrics.RecordFinalTranscript()

	s.turnLog.Debug().
		Str("text", text).
		Float64("confidence", confidence).
		Msg("Final result")

	s.endTurnLocked(turn.ReasonFinalResult)
}

// failLocked shows the error notice and ends the turn the same way a user
// stop does.
func (s *Session) failLocked(kind recognizer.ErrorKind, err error) {
	s.turnLog.Warn().
		Err(err).
		Str("kind", kind.String()).
		Msg("Recognizer error")
	s.opts.Metrics.RecordRecognizerError(s.opts.Provider, kind.String())

	s.ui.Notice = kind.Message()
	s.stats.errKind = kind.String()
	s.endTurnLocked(turn.ReasonError)
}

// endTurnLocked closes the recognizer, finalizes the transcript and queues
// the final event and turn record. It does nothing if no turn is active.
func (s *Session) endTurnLocked(reason turn.EndReason) {
	if s.lifecycle == nil || !s.ui.Listening {
		return
	}

	var ended bool
	if reason == turn.ReasonError {
		ended = s.lifecycle.Fail()
	} else {
		ended = s.lifecycle.End(reason)
	}
	if !ended {
		return
	}

	if s.adapter != nil {
		if err := s.adapter.Close(); err != nil {
			s.turnLog.Warn().Err(err).Msg("Error closing recognizer")
		}
		s.adapter = nil
	}

	turnID := s.lifecycle.TurnID()
	text := s.merger.Finalize()
	now := s.opts.Clock()
	duration := now.Sub(s.stats.startedAt)

	s.ui.Listening = false
	s.ui.Status = ""
	s.ui.Transcript = text
	s.opts.Metrics.RecordTurnEnded(string(reason), duration.Seconds(), len(strings.Fields(text)))

	s.turnLog.Info().
		Str("reason", string(reason)).
		Str("state", s.lifecycle.State().String()).
		Int("partials", s.stats.partials).
		Int64("audioBytes", s.stats.audioBytes).
		Dur("duration", duration.Round(time.Millisecond)).
		Msg("Turn ended")

	final := models.TranscriptFinal{
		EventType:     models.EventTypeFinal,
		SessionID:     s.id,
		TurnID:        turnID,
		Timestamp:     now.UnixMilli(),
		Transcript:    text,
		Confidence:    s.stats.confidence,
		EndReason:     string(reason),
		ErrorKind:     s.stats.errKind,
		PartialCount:  s.stats.partials,
		AudioOffsetMs: s.stats.offsetMs,
		DurationMs:    duration.Milliseconds(),
	}
	rec := models.TurnRecord{
		SessionID:    s.id,
		TurnID:       turnID,
		Transcript:   text,
		EndReason:    string(reason),
		ErrorKind:    s.stats.errKind,
		PartialCount: s.stats.partials,
		StartedAt:    s.stats.startedAt.UnixMilli(),
		EndedAt:      now.UnixMilli(),
	}
	s.enqueue(func() {
		s.publishFinal(final)
		s.saveTurn(rec)
	})
	s.renderLocked()
}

// renderLocked queues the current view. The notice is shown once.
func (s *Session) renderLocked() {
	v := Render(s.ui)
	v.SessionID = s.id
	s.ui.Notice = ""
	if s.sink == nil {
		return
	}
	s.enqueue(func() {
		if err := s.sink.SendView(v); err != nil {
			s.log.Debug().Err(err).Msg("Failed to send view")
		}
	})
}

// enqueue must be called with s.mu held and the session open.
func (s *Session) enqueue(fn func()) {
	s.outbox <- fn
}

func (s *Session) drainOutbox() {
	defer s.outboxWG.Done()
	for fn := range s.outbox {
		fn()
	}
}

func (s *Session) publishPartial(ev models.TranscriptPartial) {
	if s.opts.Publisher == nil || !s.valid(ev) {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := s.opts.Publisher.PublishPartial(ctx, ev.SessionID, ev); err != nil {
		s.log.Error().Err(err).Str("turnId", ev.TurnID).Msg("Failed to publish partial")
	}
}

func (s *Session) publishFinal(ev models.TranscriptFinal) {
	if s.opts.Publisher == nil || !s.valid(ev) {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := s.opts.Publisher.PublishFinal(ctx, ev.SessionID, ev); err != nil {
		s.log.Error().Err(err).Str("turnId", ev.TurnID).Msg("Failed to publish final")
	}
}

func (s *Session) saveTurn(rec models.TurnRecord) {
	if s.opts.Recorder == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := s.opts.Recorder.SaveTurn(ctx, rec); err != nil {
		s.opts.Metrics.RecordStoreError("save")
		s.log.Error().Err(err).Str("turnId", rec.TurnID).Msg("Failed to save turn")
	}
}

func (s *Session) valid(ev any) bool {
	if s.opts.Validator == nil {
		return true
	}
	if err := s.opts.Validator.Validate(ev); err != nil {
		s.log.Error().Err(err).Msg("Dropping invalid event")
		return false
	}
	return true
}
