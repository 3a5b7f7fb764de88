// Package models defines the data structures for transcript events.
package models

// Event types carried in the eventType field and the Kafka/NATS headers.
const (
	EventTypePartial = "speech.transcript.partial"
	EventTypeFinal   = "speech.transcript.final"
)

// TranscriptPartial is published for every partial result of a turn.
// Text is the raw recognizer output, Transcript the merged display text.
type TranscriptPartial struct {
	EventType  string `json:"eventType" validate:"required,eq=speech.transcript.partial"`
	SessionID  string `json:"sessionId" validate:"required"`
	TurnID     string `json:"turnId" validate:"required"`
	Timestamp  int64  `json:"timestamp" validate:"gt=0"`
	Sequence   int    `json:"sequence" validate:"gte=1"`
	Text       string `json:"text"`
	Transcript string `json:"transcript"`
	Extended   bool   `json:"extended"`
}

// TranscriptFinal is published once when a turn ends.
type TranscriptFinal struct {
	EventType     string  `json:"eventType" validate:"required,eq=speech.transcript.final"`
	SessionID     string  `json:"sessionId" validate:"required"`
	TurnID        string  `json:"turnId" validate:"required"`
	Timestamp     int64   `json:"timestamp" validate:"gt=0"`
	Transcript    string  `json:"transcript"`
	Confidence    float64 `json:"confidence" validate:"gte=0,lte=1"`
	EndReason     string  `json:"endReason" validate:"required,oneof=user_stop final_result error limit_exceeded session_closed"`
	ErrorKind     string  `json:"errorKind,omitempty"`
	PartialCount  int     `json:"partialCount" validate:"gte=0"`
	AudioOffsetMs int64   `json:"audioOffsetMs" validate:"gte=0"`
	DurationMs    int64   `json:"durationMs" validate:"gte=0"`
}

// TurnRecord is a finalized turn as persisted by the store.
type TurnRecord struct {
	SessionID    string `json:"sessionId" validate:"required"`
	TurnID       string `json:"turnId" validate:"required"`
	Transcript   string `json:"transcript"`
	EndReason    string `json:"endReason" validate:"required"`
	ErrorKind    string `json:"errorKind,omitempty"`
	PartialCount int    `json:"partialCount" validate:"gte=0"`
	StartedAt    int64  `json:"startedAt" validate:"gt=0"`
	EndedAt      int64  `json:"endedAt" validate:"gtefield=StartedAt"`
}
