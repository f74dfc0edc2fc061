package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/rs/xid"
	"github.com/sakif/codespaces/internal/auth"
	"github.com/sakif/codespaces/internal/model"
)

const (
	stateCookieName = "oauth_state"
	stateCookieAge  = 600 // seconds
)

// GitHubExchanger is the part of auth.GitHubProvider the handler uses.
type GitHubExchanger interface {
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (*auth.GitHubUser, error)
}

// GitHubAccounts maps a GitHub profile to a local account.
type GitHubAccounts interface {
	LoginWithGitHub(ctx context.Context, gh *auth.GitHubUser) (*model.User, error)
}

// SessionIssuer starts a session on the current response.
type SessionIssuer interface {
	Issue(ctx context.Context, userID string) error
}

// AuthHandler runs the GitHub OAuth login flow.
//
//   - HandleGitHubLogin    → redirect to GitHub with a fresh state value
//   - HandleGitHubCallback → check state, exchange the code, start a session
//
// The session cookie it sets is the same one the GraphQL login mutation sets,
// so the request must pass through session.Manager.Middleware first.
type AuthHandler struct {
	github      GitHubExchanger
	accounts    GitHubAccounts
	sessions    SessionIssuer
	redirectURL string
	logger      *slog.Logger
}

// NewAuthHandler creates an AuthHandler. redirectURL is where the browser
// lands after the callback; "/" if empty.
func NewAuthHandler(
	github GitHubExchanger,
	accounts GitHubAccounts,
	sessions SessionIssuer,
	redirectURL string,
	logger *slog.Logger,
) *AuthHandler {
	if redirectURL == "" {
		redirectURL = "/"
	}
	return &AuthHandler{
		github:      github,
		accounts:    accounts,
		sessions:    sessions,
		redirectURL: redirectURL,
		logger:      logger,
	}
}

// HandleGitHubLogin redirects the browser to GitHub's authorization page.
//
// HTTP: GET /auth/github/login
//
// The random state is echoed back by GitHub and compared against the
// short-lived cookie on callback, which ties the callback to this browser.
func (h *AuthHandler) HandleGitHubLogin(w http.ResponseWriter, r *http.Request) {
	state := xid.New().String()

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     "/",
		MaxAge:   stateCookieAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.github.AuthURL(state), http.StatusTemporaryRedirect)
}

// HandleGitHubCallback completes the flow.
//
// HTTP: GET /auth/github/callback?code=xxx&state=yyy
//
//  1. Validate the state parameter
//  2. Exchange the code for a GitHub profile
//  3. Find, link or create the local account
//  4. Issue the session cookie
//  5. Redirect to the app
func (h *AuthHandler) HandleGitHubCallback(w http.ResponseWriter, r *http.Request) {
	stateCookie, err := r.Cookie(stateCookieName)
	if err != nil || stateCookie.Value == "" {
		h.logger.Warn("auth callback: missing state cookie")
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "INVALID_STATE", Message: "Invalid OAuth state"})
		return
	}
	if r.URL.Query().Get("state") != stateCookie.Value {
		h.logger.Warn("auth callback: state mismatch")
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "INVALID_STATE", Message: "Invalid OAuth state"})
		return
	}

	// single use
	http.SetCookie(w, &http.Cookie{
		Name:   stateCookieName,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})

	if errParam := r.URL.Query().Get("error"); errParam != "" {
		h.logger.Info("auth callback: user denied authorization", slog.String("error", errParam))
		http.Redirect(w, r, h.redirectURL+"?auth=denied", http.StatusSeeOther)
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "INVALID_INPUT", Message: "Missing OAuth code"})
		return
	}

	ghUser, err := h.github.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Error("auth callback: GitHub exchange failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadGateway, ErrorResponse{Error: "SOMETHING_WENT_WRONG", Message: "Authentication failed"})
		return
	}

	user, err := h.accounts.LoginWithGitHub(r.Context(), ghUser)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.sessions.Issue(r.Context(), user.ID); err != nil {
		h.logger.Error("auth callback: issuing session failed",
			slog.String("userID", user.ID),
			slog.String("error", err.Error()),
		)
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "SOMETHING_WENT_WRONG", Message: "Authentication failed"})
		return
	}

	h.logger.Info("user authenticated with GitHub",
		slog.String("userID", user.ID),
		slog.String("username", user.Username),
	)
	http.Redirect(w, r, h.redirectURL, http.StatusSeeOther)
}
