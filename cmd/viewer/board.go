package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"speech-transcript-service/internal/models"
)

// envelope holds the fields shared by partial and final events.
type envelope struct {
	EventType  string  `json:"eventType"`
	SessionID  string  `json:"sessionId"`
	TurnID     string  `json:"turnId"`
	Transcript string  `json:"transcript"`
	Sequence   int     `json:"sequence"`
	Extended   *bool   `json:"extended"`
	EndReason  string  `json:"endReason"`
	Confidence float64 `json:"confidence"`
}

// maxTrackedTurns bounds how many open and ended turns the board remembers.
const maxTrackedTurns = 4096

// board prints one line per event. Replayed partials and partials for a turn
// already printed as final are skipped, for the most recent turns only.
type board struct {
	mu    sync.Mutex
	out   io.Writer
	turns *lru.Cache[string, int] // turnID -> last sequence
	ended *lru.Cache[string, struct{}]
}

func newBoard(out io.Writer) *board {
	return newBoardSize(out, maxTrackedTurns)
}

func newBoardSize(out io.Writer, size int) *board {
	turns, err := lru.New[string, int](size)
	if err != nil {
		panic(err)
	}
	ended, err := lru.New[string, struct{}](size)
	if err != nil {
		panic(err)
	}
	return &board{out: out, turns: turns, ended: ended}
}

// Apply decodes one event and prints it.
func (b *board) Apply(data []byte) error {
	var ev envelope
	if err := json.Unmarshal(data, &ev); err != nil {
		return fmt.Errorf("decode event: %w", err)
	}
	if ev.TurnID == "" {
		return fmt.Errorf("event without turn id")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	switch ev.EventType {
	case models.EventTypePartial:
		last, _ := b.turns.Get(ev.TurnID)
		if b.ended.Contains(ev.TurnID) || ev.Sequence <= last {
			return nil
		}
		b.turns.Add(ev.TurnID, ev.Sequence)
		marker := ""
		if ev.Extended != nil && !*ev.Extended {
			marker = " (revised)"
		}
		fmt.Fprintf(b.out, "… %s #%d%s: %s\n", ev.TurnID, ev.Sequence, marker, ev.Transcript)
	case models.EventTypeFinal:
		if b.ended.Contains(ev.TurnID) {
			return nil
		}
		b.ended.Add(ev.TurnID, struct{}{})
		b.turns.Remove(ev.TurnID)
		fmt.Fprintf(b.out, "✔ %s [%s %.2f]: %s\n", ev.TurnID, ev.EndReason, ev.Confidence, ev.Transcript)
	default:
		return fmt.Errorf("unknown event type %q", ev.EventType)
	}
	return nil
}
