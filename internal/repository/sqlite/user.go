package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/codespaces/internal/apperror"
	"github.com/sakif/codespaces/internal/model"
	"github.com/sakif/codespaces/internal/repository"
)

// compile-time check that *UserStore implements repository.UserRepository
var _ repository.UserRepository = (*UserStore)(nil)

// UserStore is the users collection.
type UserStore struct {
	conn *sql.DB
}

const userColumns = `id, name, username, email, password_hash, avatar,
	followers, codespaces_count, github_id, created_at, updated_at`

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*model.User, error) {
	var (
		u        model.User
		githubID sql.NullInt64
	)
	err := row.Scan(
		&u.ID,
		&u.Name,
		&u.Username,
		&u.Email,
		&u.PasswordHash,
		&u.Avatar,
		&u.Followers,
		&u.CodespacesCount,
		&githubID,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if githubID.Valid {
		id := githubID.Int64
		u.GitHubID = &id
	}
	return &u, nil
}

func nullableGitHubID(id *int64) sql.NullInt64 {
	if id == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *id, Valid: true}
}

// Create inserts a new user, filling in ID and timestamps on the caller's struct.
// A duplicate username, email or GitHub ID returns apperror.ErrConflict.
func (s *UserStore) Create(ctx context.Context, user *model.User) error {
	now := time.Now().UTC()
	user.ID = xid.New().String()
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := s.conn.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`, username_lower)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		user.Name,
		user.Username,
		user.Email,
		user.PasswordHash,
		user.Avatar,
		user.Followers,
		user.CodespacesCount,
		nullableGitHubID(user.GitHubID),
		user.CreatedAt,
		user.UpdatedAt,
		strings.ToLower(user.Username),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("user", "username or email")
		}
		return fmt.Errorf("sqlite: inserting user %q: %w", user.Username, err)
	}
	return nil
}

// getOne runs a single-row user query. key is only used in error messages.
func (s *UserStore) getOne(ctx context.Context, key string, query string, args ...any) (*model.User, error) {
	u, err := scanUser(s.conn.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", key)
		}
		return nil, fmt.Errorf("sqlite: getting user %s: %w", key, err)
	}
	return u, nil
}

// GetByID retrieves a user by internal ID.
func (s *UserStore) GetByID(ctx context.Context, id string) (*model.User, error) {
	return s.getOne(ctx, id, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
}

// GetByEmail retrieves a user by exact email.
func (s *UserStore) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return s.getOne(ctx, email, `SELECT `+userColumns+` FROM users WHERE email = ?`, email)
}

// GetByUsername retrieves a user by exact username.
func (s *UserStore) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	return s.getOne(ctx, username, `SELECT `+userColumns+` FROM users WHERE username = ?`, username)
}

// GetByGitHubID retrieves the user linked to a GitHub account.
func (s *UserStore) GetByGitHubID(ctx context.Context, githubID int64) (*model.User, error) {
	return s.getOne(ctx, fmt.Sprintf("github:%d", githubID),
		`SELECT `+userColumns+` FROM users WHERE github_id = ?`, githubID)
}

// Update writes every mutable column and refreshes UpdatedAt.
// Counters and CreatedAt are never touched here.
func (s *UserStore) Update(ctx context.Context, user *model.User) error {
	user.UpdatedAt = time.Now().UTC()

	result, err := s.conn.ExecContext(ctx,
		`UPDATE users
		 SET name = ?, username = ?, username_lower = ?, email = ?, password_hash = ?, avatar = ?,
		     github_id = ?, updated_at = ?
		 WHERE id = ?`,
		user.Name,
		user.Username,
		strings.ToLower(user.Username),
		user.Email,
		user.PasswordHash,
		user.Avatar,
		nullableGitHubID(user.GitHubID),
		user.UpdatedAt,
		user.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("user", "username or email")
		}
		return fmt.Errorf("sqlite: updating user %s: %w", user.ID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("user", user.ID)
	}
	return nil
}

// DeleteByUsername removes the user. Codespaces and sessions go with it
// (ON DELETE CASCADE). Deleting a missing user is not an error.
func (s *UserStore) DeleteByUsername(ctx context.Context, username string) error {
	if _, err := s.conn.ExecContext(ctx, `DELETE FROM users WHERE username = ?`, username); err != nil {
		return fmt.Errorf("sqlite: deleting user %q: %w", username, err)
	}
	return nil
}

// SearchByUsername returns up to limit users whose username contains fragment,
// ignoring case. Both sides are folded with strings.ToLower because SQLite's
// LIKE only folds ASCII.
func (s *UserStore) SearchByUsername(ctx context.Context, fragment string, limit int) ([]model.User, error) {
	if limit <= 0 || limit > repository.MaxUserSearchResults {
		limit = repository.MaxUserSearchResults
	}

	rows, err := s.conn.QueryContext(ctx,
		`SELECT `+userColumns+`
		 FROM users
		 WHERE username_lower LIKE ? ESCAPE '\'
		 ORDER BY username ASC
		 LIMIT ?`,
		"%"+escapeLike(strings.ToLower(fragment))+"%",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: searching users: %w", err)
	}
	defer rows.Close()

	users := make([]model.User, 0, limit)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning user row: %w", err)
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating users: %w", err)
	}
	return users, nil
}
