// Package mock provides a mock recognizer for running without cloud credentials.
// It simulates a recognizer that resends its whole best guess on every partial,
// sends exactly one final result per utterance and then signals end of speech.
package mock

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"speech-transcript-service/internal/service/recognizer"
)

// SimulatedUtterance represents a mock utterance with progressive transcripts.
type SimulatedUtterance struct {
	Partials   []string // Cumulative best guesses, one per audio frame
	Final      string   // Final transcript text
	Confidence float64  // Confidence score for final
	// FailWith, when set, replaces the final result with an error of this kind.
	FailWith *recognizer.ErrorKind
}

// DefaultUtterances provides sample utterances for simulation.
var DefaultUtterances = []SimulatedUtterance{
	{
		Partials:   []string{"I want", "I want to", "I want to cancel"},
		Final:      "I want to cancel my subscription",
		Confidence: 0.94,
	},
	{
		Partials:   []string{"Yes", "Yes please"},
		Final:      "Yes please go ahead",
		Confidence: 0.97,
	},
	{
		Partials:   []string{"Can you", "Can you help", "Can you help me with"},
		Final:      "Can you help me with my account",
		Confidence: 0.91,
	},
	{
		// The recognizer revises an earlier word mid-utterance.
		Partials:   []string{"I've been", "I've been waiting", "I have been waiting for"},
		Final:      "I have been waiting for over an hour",
		Confidence: 0.89,
	},
	{
		Partials:   []string{"Thank you"},
		Final:      "Thank you very much",
		Confidence: 0.98,
	},
}

// Delays used to simulate recognizer processing time.
var (
	PartialDelay = 50 * time.Millisecond
	FinalDelay   = 100 * time.Millisecond
)

// Adapter implements recognizer.Adapter with simulated responses.
// Events are delivered in order from a single goroutine.
type Adapter struct {
	cb           recognizer.Callback
	mu           sync.Mutex
	queue        chan emission
	framesSeen   int                // Count of audio frames received
	utterance    SimulatedUtterance // Current utterance being simulated
	partialIndex int                // Next partial to send
	finalSent    bool               // Ensures only one final per utterance
	closed       atomic.Bool
}

type emission struct {
	delay time.Duration
	fn    func(recognizer.Callback)
}

// utteranceCounter tracks which utterance to use next (cycles through defaults)
var (
	utteranceCounter int
	counterMu        sync.Mutex
)

// New creates a mock adapter that cycles through DefaultUtterances.
func New() *Adapter {
	counterMu.Lock()
	idx := utteranceCounter % len(DefaultUtterances)
	utteranceCounter++
	counterMu.Unlock()

	return NewWithUtterance(DefaultUtterances[idx])
}

// NewWithUtterance creates a mock adapter simulating a single utterance.
func NewWithUtterance(u SimulatedUtterance) *Adapter {
	return &Adapter{
		utterance: u,
		queue:     make(chan emission, 64),
	}
}

// Start begins a mock session and reports readiness.
func (a *Adapter) Start(ctx context.Context, cb recognizer.Callback) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed.Load() {
		return nil
	}
	a.cb = cb
	go a.loop(cb)
	a.queue <- emission{fn: func(cb recognizer.Callback) { cb.OnReadyForSpeech() }}
	return nil
}

// SendAudio sends the next partial for each audio frame. Once all partials
// are sent the next frame completes the utterance, like silence detection.
func (a *Adapter) SendAudio(ctx context.Context, audio []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed.Load() || a.cb == nil {
		return nil
	}

	a.framesSeen++

	if a.partialIndex < len(a.utterance.Partials) {
		text := a.utterance.Partials[a.partialIndex]
		a.partialIndex++
		a.queue <- emission{delay: PartialDelay, fn: func(cb recognizer.Callback) { cb.OnPartial(text) }}
	} else if !a.finalSent {
		a.finalSent = true
		utt := a.utterance
		a.queue <- emission{delay: FinalDelay, fn: func(cb recognizer.Callback) { complete(cb, utt) }}
	}

	return nil
}

// Close ends the mock session. Events not yet delivered are discarded.
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed.Swap(true) {
		return nil
	}
	close(a.queue)
	return nil
}

// FramesSeen returns the number of audio frames received.
func (a *Adapter) FramesSeen() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.framesSeen
}

// loop delivers queued events until the adapter is closed.
func (a *Adapter) loop(cb recognizer.Callback) {
	for e := range a.queue {
		if e.delay > 0 {
			time.Sleep(e.delay)
		}
		if a.closed.Load() {
			continue
		}
		e.fn(cb)
	}
}

func complete(cb recognizer.Callback, utt SimulatedUtterance) {
	if utt.FailWith != nil {
		cb.OnError(recognizer.NewError(*utt.FailWith, nil))
		return
	}
	cb.OnFinal(utt.Final, utt.Confidence)
	cb.OnEndOfSpeech()
}
