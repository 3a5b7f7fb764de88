// Package store persists finalized turns in SQLite.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"speech-transcript-service/internal/models"
)

// Config holds store configuration.
type Config struct {
	Enabled bool
	Path    string
}

// Store wraps a SQLite-backed table of finalized turns.
// A disabled store accepts writes and returns no rows.
type Store struct {
	db    *sql.DB
	clock func() time.Time
}

// Open opens (creating if needed) the database at cfg.Path.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	if !cfg.Enabled {
		log.Info().Msg("Turn store disabled")
		return &Store{clock: time.Now}, nil
	}

	dir := filepath.Dir(cfg.Path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", cfg.Path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	s := &Store{db: db, clock: time.Now}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	log.Info().Str("path", cfg.Path).Msg("Turn store opened")
	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	ddl := `
CREATE TABLE IF NOT EXISTS turns (
    turn_id TEXT PRIMARY KEY,
    session_id TEXT NOT NULL,
    transcript TEXT NOT NULL,
    end_reason TEXT NOT NULL,
    error_kind TEXT,
    partial_count INTEGER NOT NULL DEFAULT 0,
    started_at INTEGER NOT NULL,
    ended_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_turns_session_started ON turns(session_id, started_at);
`
	_, err := s.db.ExecContext(ctx, ddl)
	return err
}

// Enabled reports whether turns are persisted.
func (s *Store) Enabled() bool {
	return s.db != nil
}

// Close releases underlying resources.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// SaveTurn writes a finalized turn. Saving the same turn twice keeps the
// latest record.
func (s *Store) SaveTurn(ctx context.Context, rec models.TurnRecord) error {
	if s.db == nil {
		return nil
	}
	if rec.EndedAt == 0 {
		rec.EndedAt = s.clock().UnixMilli()
	}
	if rec.StartedAt == 0 {
		rec.StartedAt = rec.EndedAt
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO turns(turn_id, session_id, transcript, end_reason, error_kind, partial_count, started_at, ended_at)
		 VALUES(?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(turn_id) DO UPDATE SET
		   transcript=excluded.transcript,
		   end_reason=excluded.end_reason,
		   error_kind=excluded.error_kind,
		   partial_count=excluded.partial_count,
		   ended_at=excluded.ended_at`,
		rec.TurnID, rec.SessionID, rec.Transcript, rec.EndReason, rec.ErrorKind,
		rec.PartialCount, rec.StartedAt, rec.EndedAt)
	if err != nil {
		return fmt.Errorf("save turn %s: %w", rec.TurnID, err)
	}
	return nil
}

// ListTurns returns up to limit turns of a session, oldest first.
func (s *Store) ListTurns(ctx context.Context, sessionID string, limit int) ([]models.TurnRecord, error) {
	if s.db == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT turn_id, session_id, transcript, end_reason, COALESCE(error_kind, ''), partial_count, started_at, ended_at
		 FROM turns WHERE session_id = ? ORDER BY started_at ASC, turn_id ASC LIMIT ?`, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("list turns: %w", err)
	}
	defer rows.Close()

	var turns []models.TurnRecord
	for rows.Next() {
		var r models.TurnRecord
		if err := rows.Scan(&r.TurnID, &r.SessionID, &r.Transcript, &r.EndReason, &r.ErrorKind,
			&r.PartialCount, &r.StartedAt, &r.EndedAt); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		turns = append(turns, r)
	}
	return turns, rows.Err()
}

// Prune deletes turns that ended before now minus maxAge.
func (s *Store) Prune(ctx context.Context, maxAge time.Duration) (int64, error) {
	if s.db == nil || maxAge <= 0 {
		return 0, nil
	}
	cutoff := s.clock().Add(-maxAge).UnixMilli()
	res, err := s.db.ExecContext(ctx, `DELETE FROM turns WHERE ended_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune turns: %w", err)
	}
	return res.RowsAffected()
}
