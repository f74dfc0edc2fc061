package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sakif/codespaces/internal/apperror"
	"github.com/sakif/codespaces/internal/codec"
	"github.com/sakif/codespaces/internal/model"
	"github.com/sakif/codespaces/internal/repository"
)

// CreateCodespaceInput is the create form. Code is plain source text.
type CreateCodespaceInput struct {
	Title       string
	Code        string
	Language    string
	Description string
	IsPublic    bool
}

// UpdateCodespaceInput carries only the supplied fields. A nil IsPublic keeps
// the current visibility.
type UpdateCodespaceInput struct {
	Title       *string
	Description *string
	Code        *string
	Language    *string
	IsPublic    *bool
}

// CodespaceService runs the codespace workflows.
//
// Titles are unique per owner, so every owner-scoped operation addresses a
// codespace by (session user, exact title). Code is encoded with codec.Encode
// on the way in and stored only in that form.
type CodespaceService struct {
	codespaces repository.CodespaceRepository
	users      repository.UserRepository
	logger     *slog.Logger
}

// NewCodespaceService wires a CodespaceService.
func NewCodespaceService(
	codespaces repository.CodespaceRepository,
	users repository.UserRepository,
	logger *slog.Logger,
) *CodespaceService {
	return &CodespaceService{
		codespaces: codespaces,
		users:      users,
		logger:     logger,
	}
}

func errCodespaceNotFound() error {
	return apperror.New(apperror.CodeCodespaceNotFound, "Codespace not found")
}

func errCodespaceExists() error {
	return apperror.WithField(apperror.CodeCodespaceAlreadyExists, "title", "Codespace already exists")
}

func errTitleMissing() error {
	return apperror.WithField(apperror.CodeInvalidCodespaceInput, "title", "Title is missing")
}

// Create stores a new codespace owned by the session user.
func (s *CodespaceService) Create(ctx context.Context, ownerID string, in CreateCodespaceInput) (*model.Codespace, error) {
	if ownerID == "" {
		return nil, errSessionExpired()
	}
	if in.Title == "" || in.Code == "" || in.Language == "" {
		return nil, apperror.New(apperror.CodeInvalidCodespaceInput, "Title, code or language is missing")
	}
	title, err := checkTitle(in.Title)
	if err != nil {
		return nil, err
	}

	// A signed session for a deleted user is a server-side inconsistency,
	// not an expired session.
	if _, err := s.users.GetByID(ctx, ownerID); err != nil {
		return nil, s.storeError("loading codespace owner", err)
	}

	if exists, err := s.exists(ctx, ownerID, title); err != nil {
		return nil, err
	} else if exists {
		return nil, errCodespaceExists()
	}

	codespace := &model.Codespace{
		OwnerID:     ownerID,
		Title:       title,
		Description: in.Description,
		Code:        codec.Encode(in.Code),
		Language:    in.Language,
		IsPublic:    in.IsPublic,
	}
	if err := s.codespaces.Create(ctx, codespace); err != nil {
		return nil, s.storeError("creating codespace", err)
	}

	s.logger.Info("codespace created",
		slog.String("id", codespace.ID),
		slog.String("ownerID", ownerID),
		slog.String("title", title),
	)
	return codespace, nil
}

// Update applies the supplied fields to the owner's codespace named title.
func (s *CodespaceService) Update(ctx context.Context, ownerID, title string, in UpdateCodespaceInput) (*model.Codespace, error) {
	codespace, err := s.GetForOwner(ctx, ownerID, title)
	if err != nil {
		return nil, err
	}

	if in.Title != nil {
		newTitle, err := checkTitle(*in.Title)
		if err != nil {
			return nil, err
		}
		if newTitle != codespace.Title {
			if exists, err := s.exists(ctx, ownerID, newTitle); err != nil {
				return nil, err
			} else if exists {
				return nil, errCodespaceExists()
			}
			codespace.Title = newTitle
		}
	}
	if in.Description != nil {
		codespace.Description = *in.Description
	}
	if in.Code != nil {
		if *in.Code == "" {
			return nil, apperror.WithField(apperror.CodeInvalidCodespaceInput, "code", "Code is missing")
		}
		codespace.Code = codec.Encode(*in.Code)
	}
	if in.Language != nil {
		if *in.Language == "" {
			return nil, apperror.WithField(apperror.CodeInvalidCodespaceInput, "language", "Language is missing")
		}
		codespace.Language = *in.Language
	}
	if in.IsPublic != nil {
		codespace.IsPublic = *in.IsPublic
	}

	if err := s.codespaces.Update(ctx, codespace); err != nil {
		return nil, s.storeError("updating codespace", err)
	}

	s.logger.Info("codespace updated",
		slog.String("id", codespace.ID),
		slog.String("ownerID", ownerID),
	)
	return codespace, nil
}

// GetForOwner returns the session user's codespace with exactly this title.
func (s *CodespaceService) GetForOwner(ctx context.Context, ownerID, title string) (*model.Codespace, error) {
	if ownerID == "" {
		return nil, errSessionExpired()
	}
	if title == "" {
		return nil, errTitleMissing()
	}

	codespace, err := s.codespaces.GetByOwnerAndTitle(ctx, ownerID, title)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, errCodespaceNotFound()
		}
		return nil, s.storeError("getting codespace", err)
	}
	return codespace, nil
}

// SearchPublicByTitle returns every public codespace with exactly this title.
// No session is needed.
func (s *CodespaceService) SearchPublicByTitle(ctx context.Context, title string) ([]model.Codespace, error) {
	if title == "" {
		return nil, errTitleMissing()
	}

	codespaces, err := s.codespaces.ListPublicByTitle(ctx, title)
	if err != nil {
		return nil, s.storeError("searching codespaces", err)
	}
	if len(codespaces) == 0 {
		return nil, apperror.New(apperror.CodeCodespacesNotFound, "Codespaces not found")
	}
	return codespaces, nil
}

// ListForOwner returns all of the session user's codespaces, newest first.
func (s *CodespaceService) ListForOwner(ctx context.Context, ownerID string) ([]model.Codespace, error) {
	if ownerID == "" {
		return nil, errSessionExpired()
	}

	codespaces, err := s.codespaces.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, s.storeError("listing codespaces", err)
	}
	if len(codespaces) == 0 {
		return nil, apperror.New(apperror.CodeCodespacesNotFound, "Codespaces not found")
	}
	return codespaces, nil
}

func (s *CodespaceService) exists(ctx context.Context, ownerID, title string) (bool, error) {
	_, err := s.codespaces.GetByOwnerAndTitle(ctx, ownerID, title)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, apperror.ErrNotFound) {
		return false, nil
	}
	return false, s.storeError("checking codespace title", err)
}

func (s *CodespaceService) storeError(op string, err error) error {
	if errors.Is(err, apperror.ErrConflict) {
		s.logger.Warn("concurrent write conflict", slog.String("op", op), slog.String("error", err.Error()))
		return err
	}
	s.logger.Error("codespace workflow failed", slog.String("op", op), slog.String("error", err.Error()))
	return apperror.Internal(fmt.Errorf("%s: %w", op, err))
}
