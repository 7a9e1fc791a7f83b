package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"parkflow/internal/session"

	"github.com/lib/pq"
)

const sessionSlotsSchema = `
	CREATE TABLE IF NOT EXISTS session_slots (
		session_id TEXT        NOT NULL,
		key        TEXT        NOT NULL,
		value      TEXT        NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (session_id, key)
	)`

// SessionRepository is the Postgres-backed session.Store. Slots survive a gateway
// restart, which the payment-provider redirect relies on.
type SessionRepository struct {
	DB *sql.DB
}

func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{DB: db}
}

var _ session.Store = (*SessionRepository)(nil)

func (r *SessionRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.DB.ExecContext(ctx, sessionSlotsSchema); err != nil {
		return fmt.Errorf("error creating session_slots table: %w", err)
	}
	return nil
}

func (r *SessionRepository) Get(ctx context.Context, sessionID, key string) (string, bool, error) {
	var value string
	err := r.DB.QueryRowContext(ctx,
		`SELECT value FROM session_slots WHERE session_id = $1 AND key = $2`,
		sessionID, key,
	).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("error reading slot %s for session %s: %w", key, sessionID, err)
	}
	return value, true, nil
}

func (r *SessionRepository) Set(ctx context.Context, sessionID, key, value string) error {
	query := `
		INSERT INTO session_slots (session_id, key, value, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (session_id, key)
		DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`
	if _, err := r.DB.ExecContext(ctx, query, sessionID, key, value, time.Now().UTC()); err != nil {
		return fmt.Errorf("error writing slot %s for session %s: %w", key, sessionID, err)
	}
	return nil
}

func (r *SessionRepository) Clear(ctx context.Context, sessionID, key string) error {
	_, err := r.DB.ExecContext(ctx, `DELETE FROM session_slots WHERE session_id = $1 AND key = $2`, sessionID, key)
	if err != nil {
		return fmt.Errorf("error clearing slot %s for session %s: %w", key, sessionID, err)
	}
	return nil
}

func (r *SessionRepository) List(ctx context.Context, key string) ([]session.Slot, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT session_id, key, value, updated_at FROM session_slots WHERE key = $1 ORDER BY updated_at`,
		key,
	)
	if err != nil {
		return nil, fmt.Errorf("error querying slots %s: %w", key, err)
	}
	defer rows.Close()

	var slots []session.Slot
	for rows.Next() {
		var s session.Slot
		if err := rows.Scan(&s.SessionID, &s.Key, &s.Value, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("error scanning slot: %w", err)
		}
		slots = append(slots, s)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error after iterating slot rows: %w", err)
	}
	return slots, nil
}

func (r *SessionRepository) ClearSessions(ctx context.Context, sessionIDs []string) error {
	if len(sessionIDs) == 0 {
		return nil
	}
	_, err := r.DB.ExecContext(ctx, `DELETE FROM session_slots WHERE session_id = ANY($1)`, pq.Array(sessionIDs))
	if err != nil {
		return fmt.Errorf("error clearing %d sessions: %w", len(sessionIDs), err)
	}
	return nil
}
