// Package recognizer defines the interface for streaming speech recognizers.
package recognizer

import "context"

// Callback receives recognition events from the recognizer.
type Callback interface {
	// OnReadyForSpeech is called once the recognizer accepts audio.
	OnReadyForSpeech()

	// OnPartial is called with the recognizer's current best guess for the
	// whole utterance so far.
	OnPartial(text string)

	// OnFinal is called when a final transcript is received.
	OnFinal(text string, confidence float64)

	// OnEndOfSpeech is called when the recognizer detects the speaker stopped.
	OnEndOfSpeech()

	// OnError is called when recognition fails. No further events follow.
	OnError(err error)
}

// Adapter defines the interface for recognizer providers (Google, mock, ...).
type Adapter interface {
	// Start begins a streaming recognition session.
	Start(ctx context.Context, cb Callback) error

	// SendAudio sends audio bytes to the recognizer.
	SendAudio(ctx context.Context, audio []byte) error

	// Close ends the session and releases resources.
	Close() error
}

// Factory creates a new adapter for each recognition turn.
type Factory func(ctx context.Context) (Adapter, error)
