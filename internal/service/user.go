// Package service holds the account and codespace workflows.
//
// LAYERING:
//
//	graph / handler (transport) → service (rules) → repository (storage)
//
// Services never see HTTP. The caller resolves the session cookie and passes
// the session's user id in as a plain string; "" means no valid session.
// Every failure a client can act on is an *apperror.AppError with a Code.
// Storage failures are logged here and returned as SOMETHING_WENT_WRONG,
// except UNIQUE races, which keep their CONFLICT code.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/rs/xid"
	"github.com/sakif/codespaces/internal/apperror"
	"github.com/sakif/codespaces/internal/auth"
	"github.com/sakif/codespaces/internal/codec"
	"github.com/sakif/codespaces/internal/model"
	"github.com/sakif/codespaces/internal/repository"
)

// CreateUserInput is the signup form.
type CreateUserInput struct {
	Name     string
	Username string
	Email    string
	Password string
}

// UpdateUserInput carries only the fields the caller supplied; nil means "leave as is".
type UpdateUserInput struct {
	Name     *string
	Username *string
	Email    *string
	Password *string
	Avatar   *string
}

// UserService runs the account workflows.
type UserService struct {
	users         repository.UserRepository
	passwords     *auth.PasswordService
	defaultAvatar string
	logger        *slog.Logger
}

// NewUserService wires a UserService. defaultAvatar is given to every new account.
func NewUserService(
	users repository.UserRepository,
	passwords *auth.PasswordService,
	defaultAvatar string,
	logger *slog.Logger,
) *UserService {
	return &UserService{
		users:         users,
		passwords:     passwords,
		defaultAvatar: defaultAvatar,
		logger:        logger,
	}
}

func errSessionExpired() error {
	return apperror.New(apperror.CodeSessionExpired, "Session expired")
}

func errUserNotFound() error {
	return apperror.New(apperror.CodeUserNotFound, "User not found")
}

// CreateUser signs up a new account. Checks run in a fixed order and the first
// failure wins: required fields, email syntax, username length, password
// length, email taken, username taken.
func (s *UserService) CreateUser(ctx context.Context, in CreateUserInput) (bool, error) {
	if in.Username == "" || in.Email == "" || in.Password == "" {
		return false, apperror.New(apperror.CodeInvalidInput, "Username, email or password is missing")
	}
	if err := checkEmail(in.Email); err != nil {
		return false, err
	}
	if err := checkUsername(in.Username); err != nil {
		return false, err
	}
	if err := checkPassword(in.Password); err != nil {
		return false, err
	}

	if taken, err := s.emailTaken(ctx, in.Email, ""); err != nil {
		return false, err
	} else if taken {
		return false, apperror.WithField(apperror.CodeEmailAlreadyExists, "email", "Email already exists")
	}
	if taken, err := s.usernameTaken(ctx, in.Username, ""); err != nil {
		return false, err
	} else if taken {
		return false, apperror.WithField(apperror.CodeUsernameAlreadyExists, "username", "Username already exists")
	}

	hash, err := s.passwords.Hash(in.Password)
	if err != nil {
		return false, s.storeError("hashing password", err)
	}

	user := &model.User{
		Name:         strings.TrimSpace(in.Name),
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
		Avatar:       s.defaultAvatar,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return false, s.storeError("creating user", err)
	}

	s.logger.Info("user created",
		slog.String("userID", user.ID),
		slog.String("username", user.Username),
	)
	return true, nil
}

// Authenticate checks a login. The caller issues the session on success.
//
// An unknown account and a wrong password produce the same error, flagged on
// both fields, so the response does not reveal which one was wrong.
func (s *UserService) Authenticate(ctx context.Context, identifier, password string) (*model.User, error) {
	if identifier == "" || password == "" {
		return nil, apperror.New(apperror.CodeInvalidInput, "Identifier or password is missing")
	}

	id, err := ParseLoginIdentifier(identifier)
	if err != nil {
		return nil, err
	}

	var user *model.User
	switch id := id.(type) {
	case EmailIdentifier:
		user, err = s.users.GetByEmail(ctx, id.Email)
	case UsernameIdentifier:
		user, err = s.users.GetByUsername(ctx, id.Username)
	}
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, invalidCredentials()
		}
		return nil, s.storeError("looking up user for login", err)
	}

	if err := s.passwords.Verify(user.PasswordHash, password); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			return nil, invalidCredentials()
		}
		return nil, s.storeError("verifying password", err)
	}

	s.logger.Info("user logged in", slog.String("userID", user.ID))
	return user, nil
}

func invalidCredentials() error {
	const msg = "Invalid credentials"
	return apperror.New(apperror.CodeInvalidCredentials, msg,
		apperror.FieldError{Field: "identifier", Message: msg},
		apperror.FieldError{Field: "password", Message: msg},
	)
}

// Me returns the session's user.
func (s *UserService) Me(ctx context.Context, sessionUserID string) (*model.User, error) {
	if sessionUserID == "" {
		return nil, errSessionExpired()
	}
	user, err := s.users.GetByID(ctx, sessionUserID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, errUserNotFound()
		}
		return nil, s.storeError("loading session user", err)
	}
	return user, nil
}

// GetUser returns any user by id. Malformed ids are rejected before the store is asked.
func (s *UserService) GetUser(ctx context.Context, id string) (*model.User, error) {
	if _, err := xid.FromString(id); err != nil {
		return nil, apperror.WithField(apperror.CodeInvalidID, "id", "Invalid id")
	}
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.WithField(apperror.CodeUserNotFound, "id", "User not found")
		}
		return nil, s.storeError("getting user", err)
	}
	return user, nil
}

// UpdateUser applies the supplied fields to the session's user.
//
// Every supplied field is validated before anything is written. The user is
// saved, and true returned, only if some field actually differs from what is
// stored; otherwise nothing is written and updatedAt stays put.
func (s *UserService) UpdateUser(ctx context.Context, sessionUserID string, in UpdateUserInput) (bool, error) {
	user, err := s.Me(ctx, sessionUserID)
	if err != nil {
		return false, err
	}

	changed := false

	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name != user.Name {
			user.Name = name
			changed = true
		}
	}

	if in.Username != nil {
		if err := checkUsername(*in.Username); err != nil {
			return false, err
		}
		if *in.Username != user.Username {
			taken, err := s.usernameTaken(ctx, *in.Username, user.ID)
			if err != nil {
				return false, err
			}
			if taken {
				return false, apperror.WithField(apperror.CodeUsernameAlreadyExists, "username", "Username already exists")
			}
			user.Username = *in.Username
			changed = true
		}
	}

	if in.Email != nil {
		if err := checkEmail(*in.Email); err != nil {
			return false, err
		}
		if *in.Email != user.Email {
			taken, err := s.emailTaken(ctx, *in.Email, user.ID)
			if err != nil {
				return false, err
			}
			if taken {
				return false, apperror.WithField(apperror.CodeEmailAlreadyExists, "email", "Email already exists")
			}
			user.Email = *in.Email
			changed = true
		}
	}

	if in.Password != nil {
		if err := checkPassword(*in.Password); err != nil {
			return false, err
		}
		// Only a hash is stored, so "same password" means "the hash verifies".
		err := s.passwords.Verify(user.PasswordHash, *in.Password)
		switch {
		case err == nil:
		case errors.Is(err, auth.ErrPasswordMismatch):
			hash, err := s.passwords.Hash(*in.Password)
			if err != nil {
				return false, s.storeError("hashing password", err)
			}
			user.PasswordHash = hash
			changed = true
		default:
			return false, s.storeError("verifying password", err)
		}
	}

	if in.Avatar != nil {
		if !codec.IsImageURL(*in.Avatar) {
			return false, apperror.WithField(apperror.CodeInvalidAvatar, "avatar", "Invalid avatar")
		}
		if *in.Avatar != user.Avatar {
			user.Avatar = *in.Avatar
			changed = true
		}
	}

	if !changed {
		return false, nil
	}

	if err := s.users.Update(ctx, user); err != nil {
		return false, s.storeError("updating user", err)
	}

	s.logger.Info("user updated", slog.String("userID", user.ID))
	return true, nil
}

// DeleteUser removes the session user's own account. Their codespaces and
// sessions go with it. The caller clears the cookie.
func (s *UserService) DeleteUser(ctx context.Context, sessionUserID, username string) (bool, error) {
	user, err := s.Me(ctx, sessionUserID)
	if err != nil {
		return false, err
	}
	if user.Username != username {
		s.logger.Warn("refused to delete another user's account",
			slog.String("userID", user.ID),
			slog.String("target", username),
		)
		return false, apperror.Forbidden("You can only delete your own account")
	}

	if err := s.users.DeleteByUsername(ctx, username); err != nil {
		return false, s.storeError("deleting user", err)
	}

	s.logger.Info("user deleted", slog.String("userID", user.ID), slog.String("username", username))
	return true, nil
}

// SearchUsers returns up to repository.MaxUserSearchResults profiles whose
// username contains fragment, ignoring case, sorted by username.
func (s *UserService) SearchUsers(ctx context.Context, fragment string) ([]model.Profile, error) {
	if fragment == "" {
		return nil, apperror.WithField(apperror.CodeInvalidInput, "username", "Username is missing")
	}

	users, err := s.users.SearchByUsername(ctx, fragment, repository.MaxUserSearchResults)
	if err != nil {
		return nil, s.storeError("searching users", err)
	}

	profiles := make([]model.Profile, 0, len(users))
	for i := range users {
		profiles = append(profiles, users[i].Profile())
	}
	return profiles, nil
}

// usernameChars matches what GitHub logins may contain that we also allow.
var usernameChars = regexp.MustCompile(`[^A-Za-z0-9_-]`)

// LoginWithGitHub finds or creates the account for a GitHub profile:
//
//  1. an account already linked to this GitHub id
//  2. else an account with the same email, which gets linked
//  3. else a new account with a username derived from the GitHub login
//     and a random password nobody knows
func (s *UserService) LoginWithGitHub(ctx context.Context, gh *auth.GitHubUser) (*model.User, error) {
	user, err := s.users.GetByGitHubID(ctx, gh.ID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, apperror.ErrNotFound) {
		return nil, s.storeError("looking up GitHub user", err)
	}

	if gh.Email != "" {
		user, err := s.users.GetByEmail(ctx, gh.Email)
		switch {
		case err == nil:
			githubID := gh.ID
			user.GitHubID = &githubID
			if err := s.users.Update(ctx, user); err != nil {
				return nil, s.storeError("linking GitHub account", err)
			}
			s.logger.Info("linked GitHub account",
				slog.String("userID", user.ID),
				slog.Int64("githubID", gh.ID),
			)
			return user, nil
		case !errors.Is(err, apperror.ErrNotFound):
			return nil, s.storeError("looking up user by email", err)
		}
	}

	username, err := s.availableUsername(ctx, gh.Login)
	if err != nil {
		return nil, err
	}
	hash, err := s.passwords.HashUnusable()
	if err != nil {
		return nil, s.storeError("hashing placeholder password", err)
	}

	email := gh.Email
	if email == "" {
		email = gh.Login + "@users.noreply.github.com"
	}
	avatar := gh.AvatarURL
	if avatar == "" {
		avatar = s.defaultAvatar
	}
	githubID := gh.ID

	user = &model.User{
		Name:         gh.Name,
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Avatar:       avatar,
		GitHubID:     &githubID,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, s.storeError("creating GitHub user", err)
	}

	s.logger.Info("user created from GitHub",
		slog.String("userID", user.ID),
		slog.String("username", user.Username),
		slog.Int64("githubID", gh.ID),
	)
	return user, nil
}

// availableUsername turns a GitHub login into a free username within bounds.
func (s *UserService) availableUsername(ctx context.Context, login string) (string, error) {
	base := usernameChars.ReplaceAllString(login, "")
	if len(base) < MinUsernameLength {
		base = "gh_" + base
	}
	if len(base) > MaxUsernameLength {
		base = base[:MaxUsernameLength]
	}

	taken, err := s.usernameTaken(ctx, base, "")
	if err != nil || !taken {
		return base, err
	}

	// xid's trailing characters come from its counter and differ between calls.
	id := xid.New().String()
	suffix := "-" + id[len(id)-6:]
	if len(base)+len(suffix) > MaxUsernameLength {
		base = base[:MaxUsernameLength-len(suffix)]
	}
	return base + suffix, nil
}

// usernameTaken reports whether a user other than exceptID holds username.
func (s *UserService) usernameTaken(ctx context.Context, username, exceptID string) (bool, error) {
	u, err := s.users.GetByUsername(ctx, username)
	return s.taken(u, err, exceptID, "checking username")
}

// emailTaken reports whether a user other than exceptID holds email.
func (s *UserService) emailTaken(ctx context.Context, email, exceptID string) (bool, error) {
	u, err := s.users.GetByEmail(ctx, email)
	return s.taken(u, err, exceptID, "checking email")
}

func (s *UserService) taken(u *model.User, err error, exceptID, op string) (bool, error) {
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return false, nil
		}
		return false, s.storeError(op, err)
	}
	return u.ID != exceptID, nil
}

// storeError logs an unexpected failure and hides it behind SOMETHING_WENT_WRONG.
// UNIQUE races already carry CONFLICT and pass through unchanged.
func (s *UserService) storeError(op string, err error) error {
	if errors.Is(err, apperror.ErrConflict) {
		s.logger.Warn("concurrent write conflict", slog.String("op", op), slog.String("error", err.Error()))
		return err
	}
	s.logger.Error("user workflow failed", slog.String("op", op), slog.String("error", err.Error()))
	return apperror.Internal(fmt.Errorf("%s: %w", op, err))
}
