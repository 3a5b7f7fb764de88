// Package transcript merges the partial results of a streaming recognizer
// into a single running transcript per recognition turn.
package transcript

import (
	"fmt"
	"strings"
)

// State represents the accumulator state within a recognition turn.
type State int

const (
	// StateIdle - Reset was called and no partial has been observed yet.
	StateIdle State = iota
	// StateAccumulating - At least one partial was observed since Reset.
	StateAccumulating
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateAccumulating:
		return "ACCUMULATING"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", s)
	}
}

// Merger folds recognizer results into a running transcript.
type Merger interface {
	// Reset clears all state for a new recognition turn.
	Reset()

	// ObservePartial folds a partial result and returns the text to display.
	ObservePartial(text string) string

	// ObserveFinal folds a final result and returns the text to display.
	ObserveFinal(text string) string

	// Finalize returns the transcript of the current turn without resetting it.
	Finalize() string
}

// Accumulator converts overlapping partial results into one growing transcript.
//
// Recognizers resend their full best guess for the utterance on every partial,
// so each new partial is reduced to the words that follow the previous one.
// When a partial does not start with the previous partial no stripping happens
// and the whole partial is appended. Revisions of earlier words therefore show
// up as repeated text.
//
// Accumulator is not safe for concurrent use; callers serialize access.
type Accumulator struct {
	committed   strings.Builder
	lastPartial string
	state       State
}

// NewAccumulator creates an accumulator in IDLE state.
func NewAccumulator() *Accumulator {
	return &Accumulator{}
}

// Reset clears the committed text and the last seen partial.
func (a *Accumulator) Reset() {
	a.committed.Reset()
	a.lastPartial = ""
	a.state = StateIdle
}

// ObservePartial folds the latest partial into the committed text and returns
// the trimmed transcript.
func (a *Accumulator) ObservePartial(text string) string {
	newWords := strings.TrimSpace(strings.TrimPrefix(text, a.lastPartial))
	if newWords != "" {
		a.committed.WriteString(" ")
		a.committed.WriteString(newWords)
	}
	a.lastPartial = text
	a.state = StateAccumulating
	return a.Finalize()
}

// ObserveFinal folds a final result like a partial. The final result is the
// recognizer's last best guess, so only its trailing words are new.
func (a *Accumulator) ObserveFinal(text string) string {
	return a.ObservePartial(text)
}

// Finalize returns the trimmed committed text. It does not change state.
func (a *Accumulator) Finalize() string {
	return strings.TrimSpace(a.committed.String())
}

// State returns the current state.
func (a *Accumulator) State() State {
	return a.state
}

// LastPartial returns the raw text of the most recent partial.
func (a *Accumulator) LastPartial() string {
	return a.lastPartial
}

// Extends reports whether text would be prefix-stripped against the last partial.
func (a *Accumulator) Extends(text string) bool {
	return strings.HasPrefix(text, a.lastPartial)
}
