package mock

import (
	"context"
	"sync"
	"testing"
	"time"

	"speech-transcript-service/internal/service/recognizer"
)

// testCallback implements recognizer.Callback for testing
type testCallback struct {
	mu       sync.Mutex
	ready    int
	partials []string
	finals   []finalResult
	errors   []error
	ends     int
}

type finalResult struct {
	text       string
	confidence float64
}

func (c *testCallback) OnReadyForSpeech() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ready++
}

func (c *testCallback) OnPartial(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.partials = append(c.partials, text)
}

func (c *testCallback) OnFinal(text string, confidence float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.finals = append(c.finals, finalResult{text, confidence})
}

func (c *testCallback) OnEndOfSpeech() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ends++
}

func (c *testCallback) OnError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errors = append(c.errors, err)
}

func (c *testCallback) getPartials() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string{}, c.partials...)
}

func (c *testCallback) getFinals() []finalResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]finalResult{}, c.finals...)
}

func (c *testCallback) getErrors() []error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]error{}, c.errors...)
}

func (c *testCallback) counts() (ready, ends int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ready, c.ends
}

func init() {
	PartialDelay = 5 * time.Millisecond
	FinalDelay = 10 * time.Millisecond
}

var testUtterance = SimulatedUtterance{
	Partials:   []string{"the cat", "the cat sat", "the cat sat down"},
	Final:      "the cat sat down quietly",
	Confidence: 0.9,
}

func sendFrames(t *testing.T, a *Adapter, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		if err := a.SendAudio(context.Background(), []byte("audio")); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
}

func TestAdapter_New(t *testing.T) {
	adapter := New()
	if adapter == nil {
		t.Fatal("expected non-nil adapter")
	}
	if adapter.closed.Load() {
		t.Error("expected adapter to not be closed initially")
	}
	if adapter.finalSent {
		t.Error("expected finalSent to be false initially")
	}
}

func TestAdapter_Start_ReportsReady(t *testing.T) {
	adapter := NewWithUtterance(testUtterance)
	cb := &testCallback{}

	if err := adapter.Start(context.Background(), cb); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	time.Sleep(50 * time.Millisecond)

	if ready, _ := cb.counts(); ready != 1 {
		t.Errorf("expected 1 ready event, got %d", ready)
	}
}

func TestAdapter_PartialsAreCumulativeAndOrdered(t *testing.T) {
	adapter := NewWithUtterance(testUtterance)
	cb := &testCallback{}
	adapter.Start(context.Background(), cb)

	sendFrames(t, adapter, 3)
	time.Sleep(100 * time.Millisecond)

	partials := cb.getPartials()
	if len(partials) != 3 {
		t.Fatalf("expected 3 partials, got %d", len(partials))
	}
	for i, want := range testUtterance.Partials {
		if partials[i] != want {
			t.Errorf("partial %d: expected %q, got %q", i, want, partials[i])
		}
	}
}

func TestAdapter_FinalAndEndOfSpeech(t *testing.T) {
	adapter := NewWithUtterance(testUtterance)
	cb := &testCallback{}
	adapter.Start(context.Background(), cb)

	// Extra frames after the final must not produce a second final.
	sendFrames(t, adapter, 6)
	time.Sleep(150 * time.Millisecond)

	finals := cb.getFinals()
	if len(finals) != 1 {
		t.Fatalf("expected 1 final, got %d", len(finals))
	}
	if finals[0].text != testUtterance.Final {
		t.Errorf("expected final %q, got %q", testUtterance.Final, finals[0].text)
	}
	if _, ends := cb.counts(); ends != 1 {
		t.Errorf("expected 1 end of speech, got %d", ends)
	}
	if adapter.FramesSeen() != 6 {
		t.Errorf("expected 6 frames seen, got %d", adapter.FramesSeen())
	}
}

func TestAdapter_FailWith(t *testing.T) {
	kind := recognizer.ErrorNoMatch
	adapter := NewWithUtterance(SimulatedUtterance{Partials: []string{"uh"}, FailWith: &kind})
	cb := &testCallback{}
	adapter.Start(context.Background(), cb)

	sendFrames(t, adapter, 2)
	time.Sleep(100 * time.Millisecond)

	errs := cb.getErrors()
	if len(errs) != 1 {
		t.Fatalf("expected 1 error, got %d", len(errs))
	}
	if recognizer.KindOf(errs[0]) != recognizer.ErrorNoMatch {
		t.Errorf("expected ErrorNoMatch, got %v", recognizer.KindOf(errs[0]))
	}
	if len(cb.getFinals()) != 0 {
		t.Error("expected no final after error")
	}
}

func TestAdapter_Close_DiscardsPendingEvents(t *testing.T) {
	adapter := NewWithUtterance(testUtterance)
	cb := &testCallback{}
	adapter.Start(context.Background(), cb)
	time.Sleep(20 * time.Millisecond)

	sendFrames(t, adapter, 3)
	adapter.Close()
	time.Sleep(100 * time.Millisecond)

	if n := len(cb.getPartials()); n > 1 {
		t.Errorf("expected pending partials to be discarded, got %d", n)
	}
}

func TestAdapter_Close_Idempotent(t *testing.T) {
	adapter := New()
	cb := &testCallback{}
	adapter.Start(context.Background(), cb)

	adapter.Close()
	if err := adapter.Close(); err != nil {
		t.Fatalf("unexpected error on second close: %v", err)
	}
}

func TestAdapter_SendAudio_AfterClose(t *testing.T) {
	adapter := New()
	cb := &testCallback{}
	adapter.Start(context.Background(), cb)
	adapter.Close()

	// Should not panic or error
	if err := adapter.SendAudio(context.Background(), []byte("audio")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestAdapter_NoCallbackSet(t *testing.T) {
	adapter := New()

	if err := adapter.SendAudio(context.Background(), []byte("audio")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := adapter.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDefaultUtterances(t *testing.T) {
	if len(DefaultUtterances) != 5 {
		t.Errorf("expected 5 default utterances, got %d", len(DefaultUtterances))
	}

	for i, utt := range DefaultUtterances {
		if len(utt.Partials) == 0 {
			t.Errorf("utterance %d has no partials", i)
		}
		if utt.Final == "" {
			t.Errorf("utterance %d has empty final", i)
		}
		if utt.Confidence <= 0 || utt.Confidence > 1 {
			t.Errorf("utterance %d has invalid confidence %f", i, utt.Confidence)
		}
	}
}

func TestAdapter_ThreadSafety(t *testing.T) {
	adapter := New()
	cb := &testCallback{}
	adapter.Start(context.Background(), cb)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 5; j++ {
				adapter.SendAudio(context.Background(), []byte("audio"))
			}
		}()
	}

	wg.Wait()
	adapter.Close()
}
