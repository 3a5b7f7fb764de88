package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestBoard_Apply(t *testing.T) {
	var out bytes.Buffer
	b := newBoard(&out)

	events := []string{
		`{"eventType":"speech.transcript.partial","turnId":"s-turn-1","sequence":1,"transcript":"the cat","extended":true}`,
		`{"eventType":"speech.transcript.partial","turnId":"s-turn-1","sequence":2,"transcript":"the cat sat","extended":true}`,
		// Replayed message.
		`{"eventType":"speech.transcript.partial","turnId":"s-turn-1","sequence":1,"transcript":"the cat","extended":true}`,
		`{"eventType":"speech.transcript.partial","turnId":"s-turn-1","sequence":3,"transcript":"the cat sat I","extended":false}`,
		`{"eventType":"speech.transcript.final","turnId":"s-turn-1","transcript":"the cat sat I","endReason":"user_stop","confidence":0.5}`,
		`{"eventType":"speech.transcript.partial","turnId":"s-turn-1","sequence":4,"transcript":"late"}`,
	}
	for _, ev := range events {
		if err := b.Apply([]byte(ev)); err != nil {
			t.Fatalf("Apply(%s): %v", ev, err)
		}
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected 4 lines, got %d:\n%s", len(lines), out.String())
	}
	if !strings.Contains(lines[2], "(revised)") {
		t.Errorf("expected revised marker, got %q", lines[2])
	}
	if !strings.Contains(lines[3], "user_stop") || !strings.HasSuffix(lines[3], "the cat sat I") {
		t.Errorf("unexpected final line %q", lines[3])
	}
}

func TestBoard_ApplyErrors(t *testing.T) {
	b := newBoard(&bytes.Buffer{})

	tests := []struct {
		name string
		data string
	}{
		{"not json", `nope`},
		{"missing turn", `{"eventType":"speech.transcript.final"}`},
		{"unknown type", `{"eventType":"other","turnId":"t"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := b.Apply([]byte(tt.data)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestBoard_ForgetsOldTurns(t *testing.T) {
	var out bytes.Buffer
	b := newBoardSize(&out, 2)

	for _, turn := range []string{"t1", "t2", "t3"} {
		ev := `{"eventType":"speech.transcript.final","turnId":"` + turn + `","transcript":"x","endReason":"user_stop"}`
		if err := b.Apply([]byte(ev)); err != nil {
			t.Fatalf("Apply: %v", err)
		}
	}

	if b.ended.Len() != 2 {
		t.Errorf("expected 2 remembered turns, got %d", b.ended.Len())
	}
	if b.ended.Contains("t1") {
		t.Error("expected the oldest turn to be evicted")
	}
	if !b.ended.Contains("t3") {
		t.Error("expected the newest turn to be remembered")
	}
}
