package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"speech-transcript-service/internal/service/session"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// controlMessage is a text frame sent by a WebSocket client. Binary frames
// carry raw audio for the current turn.
type controlMessage struct {
	Type string `json:"type"` // start, stop
}

// errorMessage is written when a control message is rejected.
type errorMessage struct {
	Error string `json:"error"`
}

// wsSink writes session views as JSON text frames. Gorilla connections allow
// one concurrent writer, so every write takes mu.
type wsSink struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (s *wsSink) SendView(v session.View) error {
	return s.write(v)
}

func (s *wsSink) write(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(v)
}

func wsHandler(sessions *session.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Warn().Err(err).Msg("WebSocket upgrade failed")
			return
		}
		defer conn.Close()

		sink := &wsSink{conn: conn}
		sess, err := sessions.Open(r.Context(), sink)
		if err != nil {
			_ = sink.write(errorMessage{Error: err.Error()})
			return
		}
		defer sessions.Close(sess.ID())

		logger := log.With().Str("sessionId", sess.ID()).Str("transport", "websocket").Logger()
		logger.Info().Msg("WebSocket session opened")

		var offsetMs int64
		for {
			kind, data, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					logger.Warn().Err(err).Msg("WebSocket read failed")
				}
				logger.Info().Msg("WebSocket session closed")
				return
			}

			switch kind {
			case websocket.BinaryMessage:
				err = sess.SendAudio(r.Context(), data, offsetMs)
				offsetMs += int64(len(data)) / bytesPerMs
				if errors.Is(err, session.ErrNotListening) {
					err = nil
				}
			case websocket.TextMessage:
				err = control(r, sess, data)
				if err == nil {
					offsetMs = 0
				}
			}

			if err != nil {
				logger.Debug().Err(err).Msg("Message rejected")
				if werr := sink.write(errorMessage{Error: err.Error()}); werr != nil {
					return
				}
			}
		}
	}
}

// bytesPerMs assumes 8 kHz 16-bit mono LINEAR16 audio when deriving offsets
// from binary frames.
const bytesPerMs = 16

func control(r *http.Request, sess *session.Session, data []byte) error {
	var msg controlMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return fmt.Errorf("invalid control message: %w", err)
	}
	switch msg.Type {
	case "start":
		_, err := sess.StartTurn(r.Context())
		return err
	case "stop":
		return sess.StopTurn()
	default:
		return fmt.Errorf("unknown message type %q", msg.Type)
	}
}
