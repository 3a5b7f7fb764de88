package schema

import (
	"strings"
	"testing"

	"speech-transcript-service/internal/models"
)

func TestValidate_Partial(t *testing.T) {
	v := New()

	valid := models.TranscriptPartial{
		EventType:  models.EventTypePartial,
		SessionID:  "sess-1",
		TurnID:     "sess-1-turn-1",
		Timestamp:  1700000000000,
		Sequence:   1,
		Text:       "hello",
		Transcript: "hello",
	}
	if err := v.Validate(valid); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*models.TranscriptPartial)
		field  string
	}{
		{"missing session", func(p *models.TranscriptPartial) { p.SessionID = "" }, "SessionID"},
		{"missing turn", func(p *models.TranscriptPartial) { p.TurnID = "" }, "TurnID"},
		{"wrong event type", func(p *models.TranscriptPartial) { p.EventType = models.EventTypeFinal }, "EventType"},
		{"zero sequence", func(p *models.TranscriptPartial) { p.Sequence = 0 }, "Sequence"},
		{"zero timestamp", func(p *models.TranscriptPartial) { p.Timestamp = 0 }, "Timestamp"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := valid
			tt.mutate(&ev)
			err := v.Validate(ev)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.field) {
				t.Errorf("expected error to name %s, got %v", tt.field, err)
			}
		})
	}
}

func TestValidate_Final(t *testing.T) {
	v := New()

	ev := models.TranscriptFinal{
		EventType:  models.EventTypeFinal,
		SessionID:  "sess-1",
		TurnID:     "sess-1-turn-1",
		Timestamp:  1700000000000,
		Transcript: "hello world",
		Confidence: 0.93,
		EndReason:  "final_result",
	}
	if err := v.Validate(ev); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ev.EndReason = "dropped"
	if err := v.Validate(ev); err == nil {
		t.Error("expected error for unknown end reason")
	}

	ev.EndReason = "error"
	ev.Confidence = 1.5
	if err := v.Validate(ev); err == nil {
		t.Error("expected error for confidence above 1")
	}
}

func TestValidate_EmptyTranscriptAllowed(t *testing.T) {
	v := New()

	ev := models.TranscriptFinal{
		EventType: models.EventTypeFinal,
		SessionID: "sess-1",
		TurnID:    "sess-1-turn-1",
		Timestamp: 1700000000000,
		EndReason: "user_stop",
	}
	if err := v.Validate(ev); err != nil {
		t.Errorf("a turn stopped before any speech must still validate: %v", err)
	}
}

func TestValidate_TurnRecord(t *testing.T) {
	v := New()

	rec := models.TurnRecord{
		SessionID: "sess-1",
		TurnID:    "sess-1-turn-1",
		EndReason: "user_stop",
		StartedAt: 2000,
		EndedAt:   1000,
	}
	if err := v.Validate(rec); err == nil {
		t.Error("expected error when turn ends before it starts")
	}

	rec.EndedAt = 3000
	if err := v.Validate(rec); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
