package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sakif/codespaces/internal/session"
)

var _ session.Store = (*SessionStore)(nil)

// SessionStore keeps server-side sessions in the main database.
// It is the default session backend when no Redis URL is configured.
type SessionStore struct {
	conn *sql.DB
}

// Save records a session. Saving an existing id replaces it.
func (s *SessionStore) Save(ctx context.Context, id, userID string, expiresAt time.Time) error {
	_, err := s.conn.ExecContext(ctx,
		`INSERT OR REPLACE INTO sessions (id, user_id, expires_at, created_at)
		 VALUES (?, ?, ?, ?)`,
		id, userID, expiresAt.UTC(), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("sqlite: saving session: %w", err)
	}
	return nil
}

// Lookup returns the user id of a live session.
//
// Expiry is compared in Go rather than in SQL: the driver stores times as text,
// and comparing text timestamps across time zones is a trap.
func (s *SessionStore) Lookup(ctx context.Context, id string) (string, error) {
	var (
		userID    string
		expiresAt time.Time
	)
	err := s.conn.QueryRowContext(ctx,
		`SELECT user_id, expires_at FROM sessions WHERE id = ?`, id,
	).Scan(&userID, &expiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", session.ErrNotFound
		}
		return "", fmt.Errorf("sqlite: looking up session: %w", err)
	}

	if !time.Now().Before(expiresAt) {
		if err := s.Revoke(ctx, id); err != nil {
			return "", err
		}
		return "", session.ErrNotFound
	}
	return userID, nil
}

// Revoke deletes a session. Revoking an unknown id is not an error.
func (s *SessionStore) Revoke(ctx context.Context, id string) error {
	if _, err := s.conn.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("sqlite: revoking session: %w", err)
	}
	return nil
}
