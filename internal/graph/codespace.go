package graph

import (
	"context"

	graphql "github.com/graph-gophers/graphql-go"
	"github.com/sakif/codespaces/internal/apperror"
	"github.com/sakif/codespaces/internal/codec"
	"github.com/sakif/codespaces/internal/model"
	"github.com/sakif/codespaces/internal/service"
)

type codespaceResolver struct {
	c *model.Codespace
}

func (r *codespaceResolver) ID() graphql.ID { return graphql.ID(r.c.ID) }
func (r *codespaceResolver) Title() string { return r.c.Title }
func (r *codespaceResolver) Description() string { return r.c.Description }
func (r *codespaceResolver) Code() string { return r.c.Code }
func (r *codespaceResolver) Language() string { return r.c.Language }
func (r *codespaceResolver) Owner() graphql.ID { return graphql.ID(r.c.OwnerID) }
func (r *codespaceResolver) IsPublic() bool { return r.c.IsPublic }
func (r *codespaceResolver) Stars() int32 { return int32(r.c.Stars) }
func (r *codespaceResolver) Views() int32 { return int32(r.c.Views) }
func (r *codespaceResolver) Downloads() int32 { return int32(r.c.Downloads) }
func (r *codespaceResolver) Contributors() int32 { return int32(r.c.Contributors) }
func (r *codespaceResolver) Commits() int32 { return int32(r.c.Commits) }

func (r *codespaceResolver) CreatedAt() graphql.Time {
	return graphql.Time{Time: r.c.CreatedAt}
}

func (r *codespaceResolver) UpdatedAt() graphql.Time {
	return graphql.Time{Time: r.c.UpdatedAt}
}

// Source decodes the stored code.
func (r *codespaceResolver) Source() (string, error) {
	src, err := codec.Decode(r.c.Code)
	if err != nil {
		return "", &resolverError{code: apperror.CodeSomethingWentWrong, message: "Something went wrong"}
	}
	return src, nil
}

func codespaceList(list []model.Codespace) []*codespaceResolver {
	out := make([]*codespaceResolver, len(list))
	for i := range list {
		out[i] = &codespaceResolver{c: &list[i]}
	}
	return out
}

// =========================================================================
// QUERIES
// =========================================================================

func (r *Resolver) GetCodespace(ctx context.Context, args struct{ Title string }) (*codespaceResolver, error) {
	c, err := r.codespaces.GetForOwner(ctx, sessionUserID(ctx), args.Title)
	if err != nil {
		return nil, r.fail(err)
	}
	return &codespaceResolver{c: c}, nil
}

// SearchCodespaceForUserByTitle is the older name of GetCodespace.
func (r *Resolver) SearchCodespaceForUserByTitle(ctx context.Context, args struct{ Title string }) (*codespaceResolver, error) {
	return r.GetCodespace(ctx, args)
}

func (r *Resolver) SearchCodespacesByTitle(ctx context.Context, args struct{ Title string }) ([]*codespaceResolver, error) {
	list, err := r.codespaces.SearchPublicByTitle(ctx, args.Title)
	if err != nil {
		return nil, r.fail(err)
	}
	return codespaceList(list), nil
}

func (r *Resolver) GetCodespacesForUser(ctx context.Context) ([]*codespaceResolver, error) {
	list, err := r.codespaces.ListForOwner(ctx, sessionUserID(ctx))
	if err != nil {
		return nil, r.fail(err)
	}
	return codespaceList(list), nil
}

// =========================================================================
// MUTATIONS
// =========================================================================

type createCodespaceInput struct {
	Title       *string
	Code        *string
	Language    *string
	Description *string
	IsPublic    *bool
}

func (r *Resolver) CreateCodespace(ctx context.Context, args struct{ Input createCodespaceInput }) (*codespaceResolver, error) {
	c, err := r.codespaces.Create(ctx, sessionUserID(ctx), service.CreateCodespaceInput{
		Title:       deref(args.Input.Title),
		Code:        deref(args.Input.Code),
		Language:    deref(args.Input.Language),
		Description: deref(args.Input.Description),
		IsPublic:    deref(args.Input.IsPublic),
	})
	if err != nil {
		return nil, r.fail(err)
	}
	return &codespaceResolver{c: c}, nil
}

type updateCodespaceArgs struct {
	Title string
	Input struct {
		Title       *string
		Description *string
		Code        *string
		Language    *string
		IsPublic    *bool
	}
}

func (r *Resolver) UpdateCodespace(ctx context.Context, args updateCodespaceArgs) (*codespaceResolver, error) {
	c, err := r.codespaces.Update(ctx, sessionUserID(ctx), args.Title, service.UpdateCodespaceInput(args.Input))
	if err != nil {
		return nil, r.fail(err)
	}
	return &codespaceResolver{c: c}, nil
}
