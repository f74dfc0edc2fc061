// Package auth holds the credential primitives: signed session tokens,
// bcrypt password hashing and the GitHub OAuth provider.
//
// SESSION TOKEN SHAPE:
// The cookie never carries a raw database id. It carries an HS256 JWT:
//
//	{"iss":"codespaces","sub":"<user id>","jti":"<session id>","exp":...}
//
// The signature stops tampering; the jti ties the token to a row in the
// server-side session store so logout and account deletion revoke it.
// Checking the store is the session package's job, not this one.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "codespaces"

// ErrTokenExpired is returned by Validate for a well-formed token past its exp.
var ErrTokenExpired = errors.New("auth: token expired")

// TokenService signs and verifies session tokens with one HMAC secret.
type TokenService struct {
	secret []byte
}

// NewTokenService creates a TokenService. Secrets shorter than 16 bytes are rejected.
// Example: SESSION_SECRET=$(openssl rand -hex 32)
func NewTokenService(secret string) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: session secret must be at least 16 characters")
	}
	return &TokenService{secret: []byte(secret)}, nil
}

// Claims identifies a session.
type Claims struct {
	UserID    string
	SessionID string
	ExpiresAt time.Time
}

// Generate signs a token for userID's session sessionID that expires after ttl.
func (s *TokenService) Generate(userID, sessionID string, ttl time.Duration) (string, error) {
	now := time.Now()

	c := jwt.RegisteredClaims{
		Subject:   userID,
		ID:        sessionID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		Issuer:    issuer,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}
	return signed, nil
}

// Validate parses tokenStr and returns its claims.
//
// CHECKS:
//   - signature matches our secret, algorithm pinned to HS256
//     (a token claiming "alg":"none" is refused)
//   - issuer is "codespaces"
//   - exp is present and in the future
//   - sub and jti are both non-empty
func (s *TokenService) Validate(tokenStr string) (*Claims, error) {
	var rc jwt.RegisteredClaims
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&rc,
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("auth: invalid token: %w", err)
	}
	if !token.Valid {
		return nil, errors.New("auth: invalid token")
	}

	if rc.Subject == "" || rc.ID == "" {
		return nil, errors.New("auth: token is missing subject or session id")
	}

	return &Claims{
		UserID:    rc.Subject,
		SessionID: rc.ID,
		ExpiresAt: rc.ExpiresAt.Time,
	}, nil
}
