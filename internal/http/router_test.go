package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"

	"speech-transcript-service/internal/models"
	"speech-transcript-service/internal/observability/metrics"
	"speech-transcript-service/internal/service/recognizer"
	"speech-transcript-service/internal/service/recognizer/mock"
	"speech-transcript-service/internal/service/session"
)

func init() {
	mock.PartialDelay = time.Millisecond
	mock.FinalDelay = time.Millisecond
}

type fakeLister struct {
	recs      []models.TurnRecord
	err       error
	sessionID string
	limit     int
}

func (f *fakeLister) ListTurns(ctx context.Context, sessionID string, limit int) ([]models.TurnRecord, error) {
	f.sessionID = sessionID
	f.limit = limit
	return f.recs, f.err
}

func TestRouter_Health(t *testing.T) {
	ready := errors.New("draining")
	h := NewRouter(Deps{Ready: func() error { return ready }})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/liveness", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("liveness: expected 200, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/readiness", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("readiness: expected 503, got %d", rec.Code)
	}

	ready = nil
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/readiness", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("readiness: expected 200, got %d", rec.Code)
	}
}

func TestRouter_ListTurns(t *testing.T) {
	lister := &fakeLister{recs: []models.TurnRecord{
		{SessionID: "s1", TurnID: "s1-turn-1", Transcript: "hello world", EndReason: "user_stop"},
	}}
	h := NewRouter(Deps{Turns: lister})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/sessions/s1/turns?limit=5", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if lister.sessionID != "s1" || lister.limit != 5 {
		t.Errorf("expected lister called with s1/5, got %s/%d", lister.sessionID, lister.limit)
	}

	var got []models.TurnRecord
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 1 || got[0].Transcript != "hello world" {
		t.Errorf("unexpected turns: %+v", got)
	}
}

func TestRouter_ListTurnsErrors(t *testing.T) {
	tests := []struct {
		name   string
		deps   Deps
		url    string
		status int
	}{
		{"disabled", Deps{}, "/v1/sessions/s1/turns", http.StatusNotFound},
		{"bad limit", Deps{Turns: &fakeLister{}}, "/v1/sessions/s1/turns?limit=abc", http.StatusBadRequest},
		{"limit too large", Deps{Turns: &fakeLister{}}, "/v1/sessions/s1/turns?limit=5000", http.StatusBadRequest},
		{"store failure", Deps{Turns: &fakeLister{err: errors.New("disk")}}, "/v1/sessions/s1/turns", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			NewRouter(tt.deps).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.url, nil))
			if rec.Code != tt.status {
				t.Errorf("expected %d, got %d", tt.status, rec.Code)
			}
		})
	}
}

func TestRouter_ListTurnsEmptyIsArray(t *testing.T) {
	h := NewRouter(Deps{Turns: &fakeLister{}})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/sessions/none/turns", nil))

	if strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Errorf("expected empty array, got %q", rec.Body.String())
	}
}

func dialSession(t *testing.T) *websocket.Conn {
	t.Helper()

	mgr := session.NewManager(session.Options{
		Factory: func(ctx context.Context) (recognizer.Adapter, error) {
			return mock.NewWithUtterance(mock.SimulatedUtterance{
				Partials:   []string{"the cat", "the cat sat"},
				Final:      "the cat sat down",
				Confidence: 0.9,
			}), nil
		},
		MergeMode: "prefix",
		Metrics:   metrics.NewMetrics(prometheus.NewRegistry()),
	})
	srv := httptest.NewServer(NewRouter(Deps{Sessions: mgr}))
	t.Cleanup(func() {
		srv.Close()
		mgr.Shutdown()
	})

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// wsFrame is either a view or an error message.
type wsFrame struct {
	session.View
	Error string `json:"error"`
}

func readUntil(t *testing.T, conn *websocket.Conn, match func(wsFrame) bool) wsFrame {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		var f wsFrame
		if err := conn.ReadJSON(&f); err != nil {
			t.Fatalf("ReadJSON: %v", err)
		}
		if match(f) {
			return f
		}
	}
}

func TestWebSocket_Turn(t *testing.T) {
	conn := dialSession(t)

	initial := readUntil(t, conn, func(f wsFrame) bool { return f.SessionID != "" })
	if !initial.StartEnabled {
		t.Errorf("expected start enabled on initial view, got %+v", initial.View)
	}

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"start"}`)); err != nil {
		t.Fatalf("write start: %v", err)
	}
	readUntil(t, conn, func(f wsFrame) bool { return f.Listening })

	for i := 0; i < 3; i++ {
		if err := conn.WriteMessage(websocket.BinaryMessage, make([]byte, 320)); err != nil {
			t.Fatalf("write audio: %v", err)
		}
	}

	done := readUntil(t, conn, func(f wsFrame) bool { return !f.Listening && f.TurnID != "" })
	if done.Text != "the cat sat down" {
		t.Errorf("expected %q, got %q", "the cat sat down", done.Text)
	}
}

func TestWebSocket_BadControlMessage(t *testing.T) {
	conn := dialSession(t)

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"pause"}`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	f := readUntil(t, conn, func(f wsFrame) bool { return f.Error != "" })
	if f.Error != `unknown message type "pause"` {
		t.Errorf("unexpected error: %q", f.Error)
	}

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`not json`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	f = readUntil(t, conn, func(f wsFrame) bool { return f.Error != "" })
	if !strings.HasPrefix(f.Error, "invalid control message") {
		t.Errorf("unexpected error: %q", f.Error)
	}
}
