package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"speech-transcript-service/internal/models"
	"speech-transcript-service/internal/service/session"
)

// TurnLister reads finalized turns of a session.
type TurnLister interface {
	ListTurns(ctx context.Context, sessionID string, limit int) ([]models.TurnRecord, error)
}

// Deps are the services the router exposes. Turns and Ready may be nil.
type Deps struct {
	Sessions *session.Manager
	Turns    TurnLister
	Ready    func() error
}

// NewRouter constructs the HTTP router for the service.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	// Basic middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	// Health endpoints
	r.Get("/v1/liveness", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/v1/readiness", func(w http.ResponseWriter, _ *http.Request) {
		if deps.Ready != nil {
			if err := deps.Ready(); err != nil {
				http.Error(w, err.Error(), http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	// API routes
	r.Route("/v1", func(r chi.Router) {
		r.Get("/sessions/{sessionID}/turns", listTurns(deps.Turns))
		if deps.Sessions != nil {
			r.Get("/ws", wsHandler(deps.Sessions))
		}
	})

	return r
}

const (
	defaultTurnLimit = 100
	maxTurnLimit     = 1000
)

func listTurns(turns TurnLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if turns == nil {
			http.Error(w, "turn history is disabled", http.StatusNotFound)
			return
		}

		limit := defaultTurnLimit
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 || n > maxTurnLimit {
				http.Error(w, "invalid limit", http.StatusBadRequest)
				return
			}
			limit = n
		}

		sessionID := chi.URLParam(r, "sessionID")
		recs, err := turns.ListTurns(r.Context(), sessionID, limit)
		if err != nil {
			log.Error().Err(err).Str("sessionId", sessionID).Msg("Failed to list turns")
			http.Error(w, "failed to list turns", http.StatusInternalServerError)
			return
		}
		if recs == nil {
			recs = []models.TurnRecord{}
		}

		writeJSON(w, http.StatusOK, recs)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug().Err(err).Msg("Failed to write response")
	}
}
