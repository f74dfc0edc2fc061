package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/codespaces/internal/apperror"
	"github.com/sakif/codespaces/internal/model"
	"github.com/sakif/codespaces/internal/repository"
)

var _ repository.CodespaceRepository = (*CodespaceStore)(nil)

// CodespaceStore is the codespaces collection.
type CodespaceStore struct {
	conn *sql.DB
}

const codespaceColumns = `id, owner_id, title, description, code, language, is_public,
	stars, views, downloads, contributors, commits, created_at, updated_at`

func scanCodespace(row rowScanner) (*model.Codespace, error) {
	var c model.Codespace
	err := row.Scan(
		&c.ID,
		&c.OwnerID,
		&c.Title,
		&c.Description,
		&c.Code,
		&c.Language,
		&c.IsPublic,
		&c.Stars,
		&c.Views,
		&c.Downloads,
		&c.Contributors,
		&c.Commits,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// Create inserts a codespace. The caller is expected to have encoded Code already.
// A second codespace with the same (owner, title) returns apperror.ErrConflict.
func (s *CodespaceStore) Create(ctx context.Context, c *model.Codespace) error {
	now := time.Now().UTC()
	c.ID = xid.New().String()
	c.CreatedAt = now
	c.UpdatedAt = now

	_, err := s.conn.ExecContext(ctx,
		`INSERT INTO codespaces (`+codespaceColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID,
		c.OwnerID,
		c.Title,
		c.Description,
		c.Code,
		c.Language,
		c.IsPublic,
		c.Stars,
		c.Views,
		c.Downloads,
		c.Contributors,
		c.Commits,
		c.CreatedAt,
		c.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("codespace", "owner and title")
		}
		return fmt.Errorf("sqlite: creating codespace %q: %w", c.Title, err)
	}
	return nil
}

// GetByOwnerAndTitle finds the owner's codespace with exactly this title.
func (s *CodespaceStore) GetByOwnerAndTitle(ctx context.Context, ownerID, title string) (*model.Codespace, error) {
	c, err := scanCodespace(s.conn.QueryRowContext(ctx,
		`SELECT `+codespaceColumns+` FROM codespaces WHERE owner_id = ? AND title = ?`,
		ownerID, title,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("codespace", title)
		}
		return nil, fmt.Errorf("sqlite: getting codespace %q: %w", title, err)
	}
	return c, nil
}

// ListByOwner returns all of the owner's codespaces, newest first.
func (s *CodespaceStore) ListByOwner(ctx context.Context, ownerID string) ([]model.Codespace, error) {
	return s.list(ctx,
		`SELECT `+codespaceColumns+` FROM codespaces
		 WHERE owner_id = ?
		 ORDER BY created_at DESC, id DESC`,
		ownerID,
	)
}

// ListPublicByTitle returns public codespaces with exactly this title.
// Private codespaces are filtered in SQL, never in Go.
func (s *CodespaceStore) ListPublicByTitle(ctx context.Context, title string) ([]model.Codespace, error) {
	return s.list(ctx,
		`SELECT `+codespaceColumns+` FROM codespaces
		 WHERE title = ? AND is_public = 1
		 ORDER BY created_at DESC, id DESC`,
		title,
	)
}

func (s *CodespaceStore) list(ctx context.Context, query string, args ...any) ([]model.Codespace, error) {
	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing codespaces: %w", err)
	}
	defer rows.Close()

	var codespaces []model.Codespace
	for rows.Next() {
		c, err := scanCodespace(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning codespace row: %w", err)
		}
		codespaces = append(codespaces, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating codespaces: %w", err)
	}
	return codespaces, nil
}

// Update writes the mutable columns and refreshes UpdatedAt.
func (s *CodespaceStore) Update(ctx context.Context, c *model.Codespace) error {
	c.UpdatedAt = time.Now().UTC()

	result, err := s.conn.ExecContext(ctx,
		`UPDATE codespaces
		 SET title = ?, description = ?, code = ?, language = ?, is_public = ?, updated_at = ?
		 WHERE id = ?`,
		c.Title,
		c.Description,
		c.Code,
		c.Language,
		c.IsPublic,
		c.UpdatedAt,
		c.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("codespace", "owner and title")
		}
		return fmt.Errorf("sqlite: updating codespace %s: %w", c.ID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("codespace", c.ID)
	}
	return nil
}
