package recognizer

import "fmt"

// EventType identifies a recognition event variant.
type EventType int

const (
	EventReadyForSpeech EventType = iota
	EventPartialResult
	EventFinalResult
	EventError
	EventEndOfSpeech
)

// String returns the string representation of the event type.
func (t EventType) String() string {
	switch t {
	case EventReadyForSpeech:
		return "READY_FOR_SPEECH"
	case EventPartialResult:
		return "PARTIAL_RESULT"
	case EventFinalResult:
		return "FINAL_RESULT"
	case EventError:
		return "ERROR"
	case EventEndOfSpeech:
		return "END_OF_SPEECH"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", t)
	}
}

// Event is a single recognition event tagged with the turn it belongs to.
// Text is set for partial and final results, Confidence for final results,
// Kind and Err for errors.
type Event struct {
	Type       EventType
	TurnID     string
	Text       string
	Confidence float64
	Kind       ErrorKind
	Err        error
}

// Dispatcher implements Callback by sending events to a single consumer.
// Sends are abandoned once done is closed so a recognizer goroutine never
// blocks on a session that went away.
type Dispatcher struct {
	sessionID string
	turnID    string
	out       chan<- Event
	done      <-chan struct{}
}

// NewDispatcher creates a dispatcher for one recognition turn.
func NewDispatcher(sessionID, turnID string, out chan<- Event, done <-chan struct{}) *Dispatcher {
	return &Dispatcher{sessionID: sessionID, turnID: turnID, out: out, done: done}
}

// SessionID returns the session the turn belongs to.
func (d *Dispatcher) SessionID() string {
	return d.sessionID
}

// TurnID returns the turn the dispatcher tags events with.
func (d *Dispatcher) TurnID() string {
	return d.turnID
}

func (d *Dispatcher) OnReadyForSpeech() {
	d.send(Event{Type: EventReadyForSpeech})
}

func (d *Dispatcher) OnPartial(text string) {
	d.send(Event{Type: EventPartialResult, Text: text})
}

func (d *Dispatcher) OnFinal(text string, confidence float64) {
	d.send(Event{Type: EventFinalResult, Text: text, Confidence: confidence})
}

func (d *Dispatcher) OnEndOfSpeech() {
	d.send(Event{Type: EventEndOfSpeech})
}

func (d *Dispatcher) OnError(err error) {
	d.send(Event{Type: EventError, Kind: KindOf(err), Err: err})
}

// TurnOf returns the session and turn cb reports for. Callbacks other than
// a Dispatcher report empty IDs.
func TurnOf(cb Callback) (sessionID, turnID string) {
	if d, ok := cb.(*Dispatcher); ok {
		return d.sessionID, d.turnID
	}
	return "", ""
}

func (d *Dispatcher) send(ev Event) {
	ev.TurnID = d.turnID
	select {
	case d.out <- ev:
	case <-d.done:
	}
}
