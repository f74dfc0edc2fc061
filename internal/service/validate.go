package service

import (
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/sakif/codespaces/internal/apperror"
)

// Field bounds. Lengths count characters (runes), not bytes.
const (
	MinUsernameLength = 3
	MaxUsernameLength = 20
	MinPasswordLength = 6
	MaxPasswordLength = 50
	MinTitleLength    = 3
	MaxTitleLength    = 50
)

// validate is safe for concurrent use and caches struct metadata, so one
// instance serves the whole package.
var validate = validator.New(validator.WithRequiredStructEnabled())

func isEmail(s string) bool {
	return validate.Var(s, "required,email") == nil
}

func lengthBetween(s string, min, max int) bool {
	n := utf8.RuneCountInString(s)
	return n >= min && n <= max
}

func checkEmail(email string) error {
	if !isEmail(email) {
		return apperror.WithField(apperror.CodeInvalidEmail, "email", "Invalid email")
	}
	return nil
}

func checkUsername(username string) error {
	if !lengthBetween(username, MinUsernameLength, MaxUsernameLength) {
		return apperror.WithField(apperror.CodeInvalidUsername, "username", "Invalid username")
	}
	return nil
}

func checkPassword(password string) error {
	if !lengthBetween(password, MinPasswordLength, MaxPasswordLength) {
		return apperror.WithField(apperror.CodeInvalidPassword, "password",
			"Password must be between 6 and 50 characters")
	}
	return nil
}

// checkTitle trims title and enforces its bounds.
func checkTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if !lengthBetween(title, MinTitleLength, MaxTitleLength) {
		return "", apperror.WithField(apperror.CodeInvalidCodespaceInput, "title",
			"Title must be between 3 and 50.")
	}
	return title, nil
}

// LoginIdentifier is what a user typed into the login form: an email address
// or a username. ParseLoginIdentifier decides which once; the two variants are
// the only implementations.
type LoginIdentifier interface {
	isLoginIdentifier()
}

// EmailIdentifier is an identifier with email syntax.
type EmailIdentifier struct{ Email string }

// UsernameIdentifier is any other identifier.
type UsernameIdentifier struct{ Username string }

func (EmailIdentifier) isLoginIdentifier()    {}
func (UsernameIdentifier) isLoginIdentifier() {}

// ParseLoginIdentifier classifies raw. A username must satisfy the signup
// length bounds, since no shorter or longer username can exist.
func ParseLoginIdentifier(raw string) (LoginIdentifier, error) {
	if raw == "" {
		return nil, apperror.WithField(apperror.CodeInvalidInput, "identifier",
			"Identifier or password is missing")
	}
	if isEmail(raw) {
		return EmailIdentifier{Email: raw}, nil
	}
	if !lengthBetween(raw, MinUsernameLength, MaxUsernameLength) {
		return nil, apperror.WithField(apperror.CodeInvalidUsername, "identifier", "Invalid username")
	}
	return UsernameIdentifier{Username: raw}, nil
}
