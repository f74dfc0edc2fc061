package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/xid"
	"github.com/sakif/codespaces/internal/apperror"
	"github.com/sakif/codespaces/internal/auth"
	"github.com/sakif/codespaces/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testAvatar = "https://example.com/default.png"

func newTestUserService(t *testing.T) (*UserService, *fakeUserRepo) {
	t.Helper()
	repo := newFakeUserRepo()
	svc := NewUserService(repo, auth.NewPasswordServiceForTest(bcrypt.MinCost), testAvatar, discardLogger())
	return svc, repo
}

// signup creates a user through the service and returns the stored record.
func signup(t *testing.T, svc *UserService, repo *fakeUserRepo, username, email, password string) *model.User {
	t.Helper()
	ok, err := svc.CreateUser(context.Background(), CreateUserInput{
		Username: username,
		Email:    email,
		Password: password,
	})
	require.NoError(t, err)
	require.True(t, ok)

	u, err := repo.GetByUsername(context.Background(), username)
	require.NoError(t, err)
	return u
}

func ptr[T any](v T) *T { return &v }

func assertCode(t *testing.T, err error, want apperror.Code) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, want, apperror.CodeOf(err), "error: %v", err)
}

// =========================================================================
// CREATE USER
// =========================================================================

func TestCreateUser(t *testing.T) {
	svc, repo := newTestUserService(t)

	u := signup(t, svc, repo, "alice", "alice@x.com", "secret1")

	assert.Equal(t, testAvatar, u.Avatar)
	assert.Zero(t, u.Followers)
	assert.Zero(t, u.CodespacesCount)
	assert.NotEqual(t, "secret1", u.PasswordHash)
	assert.True(t, strings.HasPrefix(u.PasswordHash, "$2"))
}

func TestCreateUser_Validation(t *testing.T) {
	cases := []struct {
		name     string
		in       CreateUserInput
		wantCode apperror.Code
	}{
		{"missing username", CreateUserInput{Email: "a@x.com", Password: "secret1"}, apperror.CodeInvalidInput},
		{"missing email", CreateUserInput{Username: "alice", Password: "secret1"}, apperror.CodeInvalidInput},
		{"missing password", CreateUserInput{Username: "alice", Email: "a@x.com"}, apperror.CodeInvalidInput},
		{"bad email", CreateUserInput{Username: "alice", Email: "not-an-email", Password: "secret1"}, apperror.CodeInvalidEmail},
		{"username 2", CreateUserInput{Username: "al", Email: "a@x.com", Password: "secret1"}, apperror.CodeInvalidUsername},
		{"username 21", CreateUserInput{Username: strings.Repeat("a", 21), Email: "a@x.com", Password: "secret1"}, apperror.CodeInvalidUsername},
		{"password 5", CreateUserInput{Username: "alice", Email: "a@x.com", Password: "12345"}, apperror.CodeInvalidPassword},
		{"password 51", CreateUserInput{Username: "alice", Email: "a@x.com", Password: strings.Repeat("p", 51)}, apperror.CodeInvalidPassword},
		// email is checked before username
		{"bad email and username", CreateUserInput{Username: "al", Email: "nope", Password: "secret1"}, apperror.CodeInvalidEmail},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc, repo := newTestUserService(t)
			ok, err := svc.CreateUser(context.Background(), tc.in)
			assert.False(t, ok)
			assertCode(t, err, tc.wantCode)
			assert.Empty(t, repo.users, "nothing should be stored")
		})
	}
}

func TestCreateUser_BoundariesAccepted(t *testing.T) {
	cases := []CreateUserInput{
		{Username: "abc", Email: "u3@x.com", Password: "secret1"},
		{Username: strings.Repeat("u", 20), Email: "u20@x.com", Password: "secret1"},
		{Username: "pass6", Email: "p6@x.com", Password: "123456"},
		{Username: "pass50", Email: "p50@x.com", Password: strings.Repeat("p", 50)},
	}
	svc, _ := newTestUserService(t)
	for _, in := range cases {
		ok, err := svc.CreateUser(context.Background(), in)
		assert.NoError(t, err, "input %+v", in)
		assert.True(t, ok)
	}
}

func TestCreateUser_Duplicates(t *testing.T) {
	svc, repo := newTestUserService(t)
	signup(t, svc, repo, "alice", "alice@x.com", "secret1")

	_, err := svc.CreateUser(context.Background(), CreateUserInput{Username: "alice2", Email: "alice@x.com", Password: "secret1"})
	assertCode(t, err, apperror.CodeEmailAlreadyExists)
	assert.Equal(t, "email", err.(*apperror.AppError).Field())

	_, err = svc.CreateUser(context.Background(), CreateUserInput{Username: "alice", Email: "other@x.com", Password: "secret1"})
	assertCode(t, err, apperror.CodeUsernameAlreadyExists)
	assert.Equal(t, "username", err.(*apperror.AppError).Field())
}

// racingUserRepo hides existing rows from the pre-checks, so only the store's
// own uniqueness stops the second insert, as when two signups race.
type racingUserRepo struct {
	*fakeUserRepo
}

func (r racingUserRepo) GetByUsername(_ context.Context, username string) (*model.User, error) {
	return nil, apperror.NotFound("user", username)
}

func (r racingUserRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
	return nil, apperror.NotFound("user", email)
}

func TestCreateUser_StoreConflictSurfacesAsConflict(t *testing.T) {
	repo := racingUserRepo{newFakeUserRepo()}
	svc := NewUserService(repo, auth.NewPasswordServiceForTest(bcrypt.MinCost), testAvatar, discardLogger())

	in := CreateUserInput{Username: "alice", Email: "alice@x.com", Password: "secret1"}
	_, err := svc.CreateUser(context.Background(), in)
	require.NoError(t, err)

	_, err = svc.CreateUser(context.Background(), in)
	assertCode(t, err, apperror.CodeConflict)
	assert.True(t, errors.Is(err, apperror.ErrConflict))
}

func TestCreateUser_StoreFailure(t *testing.T) {
	svc, repo := newTestUserService(t)
	repo.failWith = errors.New("disk on fire")

	_, err := svc.CreateUser(context.Background(), CreateUserInput{Username: "alice", Email: "alice@x.com", Password: "secret1"})
	assertCode(t, err, apperror.CodeSomethingWentWrong)
	assert.NotContains(t, err.Error(), "disk on fire")
}

// =========================================================================
// AUTHENTICATE
// =========================================================================

func TestAuthenticate(t *testing.T) {
	svc, repo := newTestUserService(t)
	alice := signup(t, svc, repo, "alice", "alice@x.com", "secret1")

	for _, identifier := range []string{"alice@x.com", "alice"} {
		t.Run(identifier, func(t *testing.T) {
			u, err := svc.Authenticate(context.Background(), identifier, "secret1")
			require.NoError(t, err)
			assert.Equal(t, alice.ID, u.ID)
		})
	}
}

func TestAuthenticate_MultiBytePasswordAtLimit(t *testing.T) {
	svc, repo := newTestUserService(t)
	password := strings.Repeat("€", MaxPasswordLength)
	alice := signup(t, svc, repo, "alice", "alice@x.com", password)

	u, err := svc.Authenticate(context.Background(), "alice", password)
	require.NoError(t, err)
	assert.Equal(t, alice.ID, u.ID)

	_, err = svc.Authenticate(context.Background(), "alice", strings.Repeat("€", MaxPasswordLength-1)+"x")
	assertCode(t, err, apperror.CodeInvalidCredentials)
}

func TestAuthenticate_Failures(t *testing.T) {
	svc, repo := newTestUserService(t)
	signup(t, svc, repo, "alice", "alice@x.com", "secret1")

	cases := []struct {
		name       string
		identifier string
		password   string
		wantCode   apperror.Code
	}{
		{"wrong password", "alice@x.com", "secret2", apperror.CodeInvalidCredentials},
		{"unknown email", "bob@x.com", "secret1", apperror.CodeInvalidCredentials},
		{"unknown username", "bobby", "secret1", apperror.CodeInvalidCredentials},
		{"empty identifier", "", "secret1", apperror.CodeInvalidInput},
		{"empty password", "alice", "", apperror.CodeInvalidInput},
		{"username too short", "al", "secret1", apperror.CodeInvalidUsername},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			u, err := svc.Authenticate(context.Background(), tc.identifier, tc.password)
			assert.Nil(t, u)
			assertCode(t, err, tc.wantCode)
		})
	}
}

func TestAuthenticate_UniformCredentialError(t *testing.T) {
	svc, repo := newTestUserService(t)
	signup(t, svc, repo, "alice", "alice@x.com", "secret1")

	_, wrongPassword := svc.Authenticate(context.Background(), "alice", "nope-nope")
	_, unknownUser := svc.Authenticate(context.Background(), "nobody", "secret1")

	var a, b *apperror.AppError
	require.True(t, errors.As(wrongPassword, &a))
	require.True(t, errors.As(unknownUser, &b))
	assert.Equal(t, a.Message, b.Message)
	assert.Equal(t, a.Fields, b.Fields)
	assert.Equal(t, []apperror.FieldError{
		{Field: "identifier", Message: "Invalid credentials"},
		{Field: "password", Message: "Invalid credentials"},
	}, a.Fields)
}

// =========================================================================
// ME / GET USER
// =========================================================================

func TestMe(t *testing.T) {
	svc, repo := newTestUserService(t)
	alice := signup(t, svc, repo, "alice", "alice@x.com", "secret1")

	u, err := svc.Me(context.Background(), alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", u.Username)

	_, err = svc.Me(context.Background(), "")
	assertCode(t, err, apperror.CodeSessionExpired)

	_, err = svc.Me(context.Background(), "deleted-user")
	assertCode(t, err, apperror.CodeUserNotFound)
}

func TestGetUser(t *testing.T) {
	svc, repo := newTestUserService(t)

	// The fake assigns its own ids; plant a user under a real xid.
	id := xid.New().String()
	repo.users[id] = &model.User{ID: id, Username: "planted", Email: "p@x.com"}

	u, err := svc.GetUser(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "planted", u.Username)

	_, err = svc.GetUser(context.Background(), "not-an-id")
	assertCode(t, err, apperror.CodeInvalidID)

	_, err = svc.GetUser(context.Background(), xid.New().String())
	assertCode(t, err, apperror.CodeUserNotFound)
	assert.Equal(t, "id", err.(*apperror.AppError).Field())
}

// =========================================================================
// UPDATE USER
// =========================================================================

func TestUpdateUser_NoChangeDoesNotWrite(t *testing.T) {
	svc, repo := newTestUserService(t)
	alice := signup(t, svc, repo, "alice", "alice@x.com", "secret1")

	changed, err := svc.UpdateUser(context.Background(), alice.ID, UpdateUserInput{
		Username: ptr("alice"),
		Email:    ptr("alice@x.com"),
		Password: ptr("secret1"),
		Avatar:   ptr(testAvatar),
	})
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Zero(t, repo.updates)

	after, _ := repo.GetByID(context.Background(), alice.ID)
	assert.Equal(t, alice.UpdatedAt, after.UpdatedAt)

	changed, err = svc.UpdateUser(context.Background(), alice.ID, UpdateUserInput{})
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestUpdateUser_Changes(t *testing.T) {
	svc, repo := newTestUserService(t)
	alice := signup(t, svc, repo, "alice", "alice@x.com", "secret1")
	ctx := context.Background()

	changed, err := svc.UpdateUser(ctx, alice.ID, UpdateUserInput{
		Name:   ptr("Alice A."),
		Avatar: ptr("https://cdn.example.com/me.JPG"),
	})
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, 1, repo.updates)

	u, _ := repo.GetByID(ctx, alice.ID)
	assert.Equal(t, "Alice A.", u.Name)
	assert.Equal(t, "https://cdn.example.com/me.JPG", u.Avatar)

	changed, err = svc.UpdateUser(ctx, alice.ID, UpdateUserInput{Password: ptr("secret2")})
	require.NoError(t, err)
	assert.True(t, changed)

	_, err = svc.Authenticate(ctx, "alice", "secret1")
	assertCode(t, err, apperror.CodeInvalidCredentials)
	_, err = svc.Authenticate(ctx, "alice", "secret2")
	assert.NoError(t, err)
}

func TestUpdateUser_Validation(t *testing.T) {
	svc, repo := newTestUserService(t)
	alice := signup(t, svc, repo, "alice", "alice@x.com", "secret1")
	signup(t, svc, repo, "bob", "bob@x.com", "secret1")

	cases := []struct {
		name     string
		in       UpdateUserInput
		wantCode apperror.Code
	}{
		{"short username", UpdateUserInput{Username: ptr("al")}, apperror.CodeInvalidUsername},
		{"bad email", UpdateUserInput{Email: ptr("alice")}, apperror.CodeInvalidEmail},
		{"short password", UpdateUserInput{Password: ptr("123")}, apperror.CodeInvalidPassword},
		{"avatar not an image", UpdateUserInput{Avatar: ptr("https://example.com/me.svg")}, apperror.CodeInvalidAvatar},
		{"username of other user", UpdateUserInput{Username: ptr("bob")}, apperror.CodeUsernameAlreadyExists},
		{"email of other user", UpdateUserInput{Email: ptr("bob@x.com")}, apperror.CodeEmailAlreadyExists},
		// a valid change alongside an invalid field must not be written
		{"mixed", UpdateUserInput{Name: ptr("New"), Avatar: ptr("nope")}, apperror.CodeInvalidAvatar},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			changed, err := svc.UpdateUser(context.Background(), alice.ID, tc.in)
			assert.False(t, changed)
			assertCode(t, err, tc.wantCode)
		})
	}
	assert.Zero(t, repo.updates)
}

func TestUpdateUser_Session(t *testing.T) {
	svc, _ := newTestUserService(t)

	_, err := svc.UpdateUser(context.Background(), "", UpdateUserInput{Name: ptr("x")})
	assertCode(t, err, apperror.CodeSessionExpired)

	_, err = svc.UpdateUser(context.Background(), "ghost", UpdateUserInput{Name: ptr("x")})
	assertCode(t, err, apperror.CodeUserNotFound)
}

// =========================================================================
// DELETE USER
// =========================================================================

func TestDeleteUser(t *testing.T) {
	svc, repo := newTestUserService(t)
	alice := signup(t, svc, repo, "alice", "alice@x.com", "secret1")
	signup(t, svc, repo, "bob", "bob@x.com", "secret1")
	ctx := context.Background()

	_, err := svc.DeleteUser(ctx, "", "alice")
	assertCode(t, err, apperror.CodeSessionExpired)

	_, err = svc.DeleteUser(ctx, alice.ID, "bob")
	assertCode(t, err, apperror.CodeForbidden)
	_, err = repo.GetByUsername(ctx, "bob")
	assert.NoError(t, err, "bob must survive a forbidden delete")

	ok, err := svc.DeleteUser(ctx, alice.ID, "alice")
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = repo.GetByUsername(ctx, "alice")
	assert.True(t, errors.Is(err, apperror.ErrNotFound))

	// The session now points at a deleted user.
	_, err = svc.DeleteUser(ctx, alice.ID, "alice")
	assertCode(t, err, apperror.CodeUserNotFound)
}

// =========================================================================
// SEARCH USERS
// =========================================================================

func TestSearchUsers(t *testing.T) {
	svc, repo := newTestUserService(t)
	signup(t, svc, repo, "malice", "m@x.com", "secret1")
	signup(t, svc, repo, "alice", "a@x.com", "secret1")
	signup(t, svc, repo, "bob", "b@x.com", "secret1")

	profiles, err := svc.SearchUsers(context.Background(), "ALI")
	require.NoError(t, err)
	require.Len(t, profiles, 2)
	assert.Equal(t, "alice", profiles[0].Username)
	assert.Equal(t, "malice", profiles[1].Username)

	none, err := svc.SearchUsers(context.Background(), "zzz")
	require.NoError(t, err)
	assert.Empty(t, none)

	_, err = svc.SearchUsers(context.Background(), "")
	assertCode(t, err, apperror.CodeInvalidInput)
}

// =========================================================================
// GITHUB LOGIN
// =========================================================================

func TestLoginWithGitHub_CreatesThenFinds(t *testing.T) {
	svc, repo := newTestUserService(t)
	ctx := context.Background()
	gh := &auth.GitHubUser{ID: 99, Login: "octo.cat", Email: "octo@github.com", AvatarURL: "https://avatars/u/99"}

	first, err := svc.LoginWithGitHub(ctx, gh)
	require.NoError(t, err)
	assert.Equal(t, "octocat", first.Username)
	assert.Equal(t, "octo@github.com", first.Email)
	require.NotNil(t, first.GitHubID)
	assert.Equal(t, int64(99), *first.GitHubID)

	// A GitHub-created account has no usable password.
	_, err = svc.Authenticate(ctx, "octocat", "")
	assertCode(t, err, apperror.CodeInvalidInput)

	second, err := svc.LoginWithGitHub(ctx, gh)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, repo.users, 1)
}

func TestLoginWithGitHub_LinksByEmail(t *testing.T) {
	svc, repo := newTestUserService(t)
	alice := signup(t, svc, repo, "alice", "alice@x.com", "secret1")

	u, err := svc.LoginWithGitHub(context.Background(), &auth.GitHubUser{ID: 5, Login: "alice-gh", Email: "alice@x.com"})
	require.NoError(t, err)
	assert.Equal(t, alice.ID, u.ID)

	stored, _ := repo.GetByGitHubID(context.Background(), 5)
	assert.Equal(t, alice.ID, stored.ID)
}

func TestLoginWithGitHub_UsernameDerivation(t *testing.T) {
	svc, repo := newTestUserService(t)
	signup(t, svc, repo, "taken", "taken@x.com", "secret1")
	ctx := context.Background()

	short, err := svc.LoginWithGitHub(ctx, &auth.GitHubUser{ID: 1, Login: "x"})
	require.NoError(t, err)
	assert.Equal(t, "gh_x", short.Username)
	assert.Equal(t, "x@users.noreply.github.com", short.Email)
	assert.Equal(t, testAvatar, short.Avatar)

	long, err := svc.LoginWithGitHub(ctx, &auth.GitHubUser{ID: 2, Login: strings.Repeat("l", 39)})
	require.NoError(t, err)
	assert.Len(t, long.Username, MaxUsernameLength)

	dup, err := svc.LoginWithGitHub(ctx, &auth.GitHubUser{ID: 3, Login: "taken"})
	require.NoError(t, err)
	assert.NotEqual(t, "taken", dup.Username)
	assert.True(t, strings.HasPrefix(dup.Username, "taken-"))
	assert.NoError(t, checkUsername(dup.Username))
}
