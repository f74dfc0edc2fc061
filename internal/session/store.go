// Package session turns the session cookie into a user id and back.
//
// A session is a random id stored server-side next to its user id and
// expiry. The cookie holds a signed token naming both ids (see auth.TokenService).
// A request is authenticated only when the token verifies AND the store still
// holds the same session for the same user, so revoking the row logs the
// browser out even though its token has not expired.
//
// Two Store backends exist: the SQLite table in repository/sqlite (default)
// and RedisStore, chosen when REDIS_URL is set.
package session

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Store.Lookup for unknown, revoked or expired sessions.
var ErrNotFound = errors.New("session: not found or expired")

// Store persists sessions.
type Store interface {
	// Save records session id for userID until expiresAt, replacing any existing entry.
	Save(ctx context.Context, id, userID string, expiresAt time.Time) error
	// Lookup returns the user id owning a live session, or ErrNotFound.
	Lookup(ctx context.Context, id string) (string, error)
	// Revoke deletes a session. Unknown ids are not an error.
	Revoke(ctx context.Context, id string) error
}
