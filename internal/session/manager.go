package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/codespaces/internal/auth"
)

// DefaultTTL is how long a login lasts.
const DefaultTTL = 7 * 24 * time.Hour

// ErrNoRequest is returned by Issue and Clear when ctx did not come through
// Manager.Middleware, so there is no response to set a cookie on.
var ErrNoRequest = errors.New("session: context has no request state")

// Options controls the cookie.
type Options struct {
	CookieName string
	TTL        time.Duration
	Secure     bool
	HTTPOnly   bool
}

// Manager issues, resolves and clears session cookies.
type Manager struct {
	tokens *auth.TokenService
	store  Store
	opts   Options
	logger *slog.Logger
}

// NewManager fills zero Options with defaults: cookie "token", DefaultTTL.
func NewManager(tokens *auth.TokenService, store Store, opts Options, logger *slog.Logger) *Manager {
	if opts.CookieName == "" {
		opts.CookieName = "token"
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	return &Manager{
		tokens: tokens,
		store:  store,
		opts:   opts,
		logger: logger,
	}
}

type contextKey struct{}

// requestState is what the middleware parks in the request context.
// Resolvers cannot reach the ResponseWriter, so Issue and Clear go through it.
type requestState struct {
	w         http.ResponseWriter
	userID    string
	sessionID string
}

// Middleware resolves the session cookie on every request.
//
// It never rejects a request: an absent or invalid cookie just leaves the
// request anonymous and each operation decides whether that is an error.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		state := &requestState{w: w}
		if userID, sessionID, ok := m.resolve(r); ok {
			state.userID = userID
			state.sessionID = sessionID
		}
		ctx := context.WithValue(r.Context(), contextKey{}, state)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// UserIDFromContext returns the authenticated user id, or ("", false).
func UserIDFromContext(ctx context.Context) (string, bool) {
	state, ok := ctx.Value(contextKey{}).(*requestState)
	if !ok || state.userID == "" {
		return "", false
	}
	return state.userID, true
}

// Issue starts a session for userID and sets the cookie on the response.
func (m *Manager) Issue(ctx context.Context, userID string) error {
	state, ok := ctx.Value(contextKey{}).(*requestState)
	if !ok {
		return ErrNoRequest
	}

	sessionID := xid.New().String()
	expiresAt := time.Now().Add(m.opts.TTL)

	if err := m.store.Save(ctx, sessionID, userID, expiresAt); err != nil {
		return fmt.Errorf("session: saving: %w", err)
	}

	token, err := m.tokens.Generate(userID, sessionID, m.opts.TTL)
	if err != nil {
		return err
	}

	http.SetCookie(state.w, m.cookie(url.QueryEscape(token), expiresAt, int(m.opts.TTL.Seconds())))

	// A later operation in the same request sees the new identity.
	state.userID = userID
	state.sessionID = sessionID
	return nil
}

// Clear revokes the current session, if any, and expires the cookie.
func (m *Manager) Clear(ctx context.Context) error {
	state, ok := ctx.Value(contextKey{}).(*requestState)
	if !ok {
		return ErrNoRequest
	}

	if state.sessionID != "" {
		if err := m.store.Revoke(ctx, state.sessionID); err != nil {
			return fmt.Errorf("session: revoking: %w", err)
		}
	}

	http.SetCookie(state.w, m.cookie("", time.Unix(0, 0), -1))
	state.userID = ""
	state.sessionID = ""
	return nil
}

func (m *Manager) cookie(value string, expires time.Time, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     m.opts.CookieName,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		MaxAge:   maxAge,
		Secure:   m.opts.Secure,
		HttpOnly: m.opts.HTTPOnly,
		SameSite: http.SameSiteLaxMode,
	}
}

// resolve reads the cookie and checks it against the token signature and the store.
func (m *Manager) resolve(r *http.Request) (userID, sessionID string, ok bool) {
	c, err := r.Cookie(m.opts.CookieName)
	if err != nil || c.Value == "" {
		return "", "", false
	}

	raw, err := url.QueryUnescape(c.Value)
	if err != nil {
		return "", "", false
	}

	claims, err := m.tokens.Validate(raw)
	if err != nil {
		m.logger.Debug("rejected session token", slog.String("error", err.Error()))
		return "", "", false
	}

	owner, err := m.store.Lookup(r.Context(), claims.SessionID)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			m.logger.Error("session lookup failed",
				slog.String("sessionID", claims.SessionID),
				slog.String("error", err.Error()),
			)
		}
		return "", "", false
	}
	if owner != claims.UserID {
		m.logger.Warn("session token names a different user than the store",
			slog.String("sessionID", claims.SessionID),
		)
		return "", "", false
	}

	return claims.UserID, claims.SessionID, true
}
