package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/Terpedia/functional-flavors/internal/contextutil"
)

// SessionStore defines persistence for per-session conversation history.
type SessionStore interface {
	// History returns the stored message turns for a session. A missing or
	// unparseable row is treated as an empty history, never as an error.
	History(ctx context.Context, sessionID string) ([]Message, error)
	// SaveHistory replaces the stored history for a session.
	SaveHistory(ctx context.Context, sessionID string, history []Message) error
}

// SessionRepo provides SQLite-backed session history persistence.
// It implements the SessionStore interface.
type SessionRepo struct {
	db *sql.DB
}

// NewSessionRepo creates a new SessionRepo.
func NewSessionRepo(db *sql.DB) *SessionRepo {
	return &SessionRepo{db: db}
}

// History returns the stored history for a session.
// Corrupt stored state is discarded and an empty history returned.
func (r *SessionRepo) History(ctx context.Context, sessionID string) ([]Message, error) {
	var raw string
	err := r.db.QueryRowContext(ctx,
		"SELECT history FROM sessions WHERE id = ?", sessionID,
	).Scan(&raw)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query session: %w", err)
	}

	var history []Message
	if err := json.Unmarshal([]byte(raw), &history); err != nil {
		contextutil.LoggerFromContext(ctx).WarnContext(ctx,
			"discarding corrupt session history", "session_id", sessionID, "error", err)
		return nil, nil
	}

	return history, nil
}

// SaveHistory replaces the stored history for a session.
func (r *SessionRepo) SaveHistory(ctx context.Context, sessionID string, history []Message) error {
	raw, err := json.Marshal(history)
	if err != nil {
		return fmt.Errorf("failed to marshal session history: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO sessions (id, history, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(id) DO UPDATE SET history = excluded.history, updated_at = CURRENT_TIMESTAMP`,
		sessionID, string(raw),
	)
	if err != nil {
		return fmt.Errorf("failed to save session history: %w", err)
	}
	return nil
}
