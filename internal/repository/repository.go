// Package repository declares the persistence interfaces the services depend on.
//
// Implementations live in sub-packages (repository/sqlite). Services only ever
// see these interfaces, so tests can swap in in-memory fakes.
//
// ERROR CONTRACT:
//   - missing rows        → apperror.ErrNotFound
//   - UNIQUE violations   → apperror.ErrConflict (code CONFLICT)
//   - anything else       → wrapped driver error
package repository

import (
	"context"

	"github.com/sakif/codespaces/internal/model"
)

// MaxUserSearchResults caps SearchByUsername.
const MaxUserSearchResults = 50

// UserRepository stores accounts.
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	GetByGitHubID(ctx context.Context, githubID int64) (*model.User, error)
	Update(ctx context.Context, user *model.User) error
	// DeleteByUsername succeeds whether or not the user existed.
	DeleteByUsername(ctx context.Context, username string) error
	// SearchByUsername matches fragment as a case-insensitive substring,
	// ordered by username ascending.
	SearchByUsername(ctx context.Context, fragment string, limit int) ([]model.User, error)
}

// CodespaceRepository stores codespaces. Lookups by title are always exact.
type CodespaceRepository interface {
	Create(ctx context.Context, codespace *model.Codespace) error
	GetByOwnerAndTitle(ctx context.Context, ownerID, title string) (*model.Codespace, error)
	ListByOwner(ctx context.Context, ownerID string) ([]model.Codespace, error)
	ListPublicByTitle(ctx context.Context, title string) ([]model.Codespace, error)
	Update(ctx context.Context, codespace *model.Codespace) error
}
