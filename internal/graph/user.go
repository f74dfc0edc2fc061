package graph

import (
	"context"
	"log/slog"

	graphql "github.com/graph-gophers/graphql-go"
	"github.com/sakif/codespaces/internal/model"
	"github.com/sakif/codespaces/internal/service"
)

type userResolver struct {
	u *model.User
}

func (r *userResolver) ID() graphql.ID { return graphql.ID(r.u.ID) }
func (r *userResolver) Name() string { return r.u.Name }
func (r *userResolver) Username() string { return r.u.Username }
func (r *userResolver) Email() string { return r.u.Email }
func (r *userResolver) Avatar() string { return r.u.Avatar }
func (r *userResolver) Followers() int32 { return int32(r.u.Followers) }
func (r *userResolver) CodespacesCount() int32 { return int32(r.u.CodespacesCount) }
func (r *userResolver) CreatedAt() graphql.Time {
	return graphql.Time{Time: r.u.CreatedAt}
}
func (r *userResolver) UpdatedAt() graphql.Time {
	return graphql.Time{Time: r.u.UpdatedAt}
}

type profileResolver struct {
	p model.Profile
}

func (r *profileResolver) Name() string { return r.p.Name }
func (r *profileResolver) Username() string { return r.p.Username }
func (r *profileResolver) Email() string { return r.p.Email }
func (r *profileResolver) Avatar() string { return r.p.Avatar }
func (r *profileResolver) Followers() int32 { return int32(r.p.Followers) }
func (r *profileResolver) CodespacesCount() int32 { return int32(r.p.CodespacesCount) }
func (r *profileResolver) CreatedAt() graphql.Time {
	return graphql.Time{Time: r.p.CreatedAt}
}
func (r *profileResolver) UpdatedAt() graphql.Time {
	return graphql.Time{Time: r.p.UpdatedAt}
}

// =========================================================================
// QUERIES
// =========================================================================

func (r *Resolver) Me(ctx context.Context) (*userResolver, error) {
	u, err := r.users.Me(ctx, sessionUserID(ctx))
	if err != nil {
		return nil, r.fail(err)
	}
	return &userResolver{u: u}, nil
}

func (r *Resolver) GetUser(ctx context.Context, args struct{ ID graphql.ID }) (*userResolver, error) {
	u, err := r.users.GetUser(ctx, string(args.ID))
	if err != nil {
		return nil, r.fail(err)
	}
	return &userResolver{u: u}, nil
}

func (r *Resolver) SearchUsers(ctx context.Context, args struct{ Username string }) ([]*profileResolver, error) {
	profiles, err := r.users.SearchUsers(ctx, args.Username)
	if err != nil {
		return nil, r.fail(err)
	}
	out := make([]*profileResolver, len(profiles))
	for i := range profiles {
		out[i] = &profileResolver{p: profiles[i]}
	}
	return out, nil
}

// =========================================================================
// MUTATIONS
// =========================================================================

type createUserInput struct {
	Name     *string
	Username *string
	Email    *string
	Password *string
}

func (r *Resolver) CreateUser(ctx context.Context, args struct{ Input createUserInput }) (bool, error) {
	ok, err := r.users.CreateUser(ctx, service.CreateUserInput{
		Name:     deref(args.Input.Name),
		Username: deref(args.Input.Username),
		Email:    deref(args.Input.Email),
		Password: deref(args.Input.Password),
	})
	if err != nil {
		return false, r.fail(err)
	}
	return ok, nil
}

type loginArgs struct {
	Identifier *string
	Password   *string
}

// Login authenticates and sets the session cookie. No cookie is set on failure.
func (r *Resolver) Login(ctx context.Context, args loginArgs) (*userResolver, error) {
	u, err := r.users.Authenticate(ctx, deref(args.Identifier), deref(args.Password))
	if err != nil {
		return nil, r.fail(err)
	}
	if err := r.sessions.Issue(ctx, u.ID); err != nil {
		return nil, r.fail(err)
	}
	return &userResolver{u: u}, nil
}

type updateUserInput struct {
	Name     *string
	Username *string
	Email    *string
	Password *string
	Avatar   *string
}

func (r *Resolver) UpdateUser(ctx context.Context, args struct{ Input updateUserInput }) (bool, error) {
	changed, err := r.users.UpdateUser(ctx, sessionUserID(ctx), service.UpdateUserInput(args.Input))
	if err != nil {
		return false, r.fail(err)
	}
	return changed, nil
}

// DeleteUser deletes the caller's own account and ends the session.
func (r *Resolver) DeleteUser(ctx context.Context, args struct{ Username string }) (bool, error) {
	ok, err := r.users.DeleteUser(ctx, sessionUserID(ctx), args.Username)
	if err != nil {
		return false, r.fail(err)
	}
	if err := r.sessions.Clear(ctx); err != nil {
		r.logger.Warn("clearing session after account deletion", slog.String("error", err.Error()))
	}
	return ok, nil
}

// Logout always succeeds from the client's point of view.
func (r *Resolver) Logout(ctx context.Context) bool {
	if err := r.sessions.Clear(ctx); err != nil {
		r.logger.Warn("logout could not revoke session", slog.String("error", err.Error()))
	}
	return true
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}
