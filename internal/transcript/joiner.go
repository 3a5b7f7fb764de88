package transcript

import "strings"

// FinalJoiner commits only final results. Partials are shown after the
// committed text but never stored, so each partial replaces the previous one
// on display.
type FinalJoiner struct {
	committed strings.Builder
	state     State
}

// NewFinalJoiner creates a joiner in IDLE state.
func NewFinalJoiner() *FinalJoiner {
	return &FinalJoiner{}
}

// Reset clears the committed text.
func (j *FinalJoiner) Reset() {
	j.committed.Reset()
	j.state = StateIdle
}

// ObservePartial returns the committed text followed by the partial.
func (j *FinalJoiner) ObservePartial(text string) string {
	j.state = StateAccumulating
	return strings.TrimSpace(j.committed.String() + " " + strings.TrimSpace(text))
}

// ObserveFinal appends the final result to the committed text.
func (j *FinalJoiner) ObserveFinal(text string) string {
	j.state = StateAccumulating
	if final := strings.TrimSpace(text); final != "" {
		j.committed.WriteString(" ")
		j.committed.WriteString(final)
	}
	return j.Finalize()
}

// Finalize returns the trimmed committed text.
func (j *FinalJoiner) Finalize() string {
	return strings.TrimSpace(j.committed.String())
}

// State returns the current state.
func (j *FinalJoiner) State() State {
	return j.state
}

// Merge modes accepted by NewMerger.
const (
	ModePrefix = "prefix"
	ModeFinal  = "final"
)

// NewMerger returns the merger for mode. Unknown modes use ModePrefix.
func NewMerger(mode string) Merger {
	if mode == ModeFinal {
		return NewFinalJoiner()
	}
	return NewAccumulator()
}
