package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sakif/codespaces/internal/apperror"
	"github.com/sakif/codespaces/internal/model"
	"github.com/sakif/codespaces/internal/repository"
)

// =========================================================================
// FAKE REPOSITORIES
// =========================================================================
//
// In-memory stand-ins for repository.UserRepository and
// repository.CodespaceRepository. They copy on the way in and out so a test
// holding a pointer cannot mutate "stored" state behind the service's back.
// Setting failWith makes every call return that error.

type fakeUserRepo struct {
	mu       sync.Mutex
	users    map[string]*model.User
	nextID   int
	updates  int
	failWith error
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*model.User)}
}

var _ repository.UserRepository = (*fakeUserRepo)(nil)

func (f *fakeUserRepo) Create(_ context.Context, u *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	for _, existing := range f.users {
		if existing.Username == u.Username || existing.Email == u.Email {
			return apperror.Conflict("user", "username or email")
		}
	}
	f.nextID++
	u.ID = fmt.Sprintf("fake-user-%d", f.nextID)
	u.CreatedAt = time.Now()
	u.UpdatedAt = u.CreatedAt
	stored := *u
	f.users[u.ID] = &stored
	return nil
}

func (f *fakeUserRepo) find(match func(*model.User) bool, key string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	for _, u := range f.users {
		if match(u) {
			out := *u
			return &out, nil
		}
	}
	return nil, apperror.NotFound("user", key)
}

func (f *fakeUserRepo) GetByID(_ context.Context, id string) (*model.User, error) {
	return f.find(func(u *model.User) bool { return u.ID == id }, id)
}

func (f *fakeUserRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
	return f.find(func(u *model.User) bool { return u.Email == email }, email)
}

func (f *fakeUserRepo) GetByUsername(_ context.Context, username string) (*model.User, error) {
	return f.find(func(u *model.User) bool { return u.Username == username }, username)
}

func (f *fakeUserRepo) GetByGitHubID(_ context.Context, githubID int64) (*model.User, error) {
	return f.find(func(u *model.User) bool { return u.GitHubID != nil && *u.GitHubID == githubID }, "github")
}

func (f *fakeUserRepo) Update(_ context.Context, u *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	if _, ok := f.users[u.ID]; !ok {
		return apperror.NotFound("user", u.ID)
	}
	f.updates++
	u.UpdatedAt = time.Now()
	stored := *u
	f.users[u.ID] = &stored
	return nil
}

func (f *fakeUserRepo) DeleteByUsername(_ context.Context, username string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	for id, u := range f.users {
		if u.Username == username {
			delete(f.users, id)
		}
	}
	return nil
}

func (f *fakeUserRepo) SearchByUsername(_ context.Context, fragment string, limit int) ([]model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	var out []model.User
	for _, u := range f.users {
		if strings.Contains(strings.ToLower(u.Username), strings.ToLower(fragment)) {
			out = append(out, *u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type fakeCodespaceRepo struct {
	mu         sync.Mutex
	codespaces map[string]*model.Codespace
	nextID     int
	failWith   error
}

func newFakeCodespaceRepo() *fakeCodespaceRepo {
	return &fakeCodespaceRepo{codespaces: make(map[string]*model.Codespace)}
}

var _ repository.CodespaceRepository = (*fakeCodespaceRepo)(nil)

func (f *fakeCodespaceRepo) Create(_ context.Context, c *model.Codespace) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	f.nextID++
	c.ID = fmt.Sprintf("fake-codespace-%d", f.nextID)
	// nextID doubles as a clock so "newest first" is deterministic.
	c.CreatedAt = time.Unix(int64(f.nextID), 0)
	c.UpdatedAt = c.CreatedAt
	stored := *c
	f.codespaces[c.ID] = &stored
	return nil
}

func (f *fakeCodespaceRepo) GetByOwnerAndTitle(_ context.Context, ownerID, title string) (*model.Codespace, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	for _, c := range f.codespaces {
		if c.OwnerID == ownerID && c.Title == title {
			out := *c
			return &out, nil
		}
	}
	return nil, apperror.NotFound("codespace", title)
}

func (f *fakeCodespaceRepo) filter(match func(*model.Codespace) bool) ([]model.Codespace, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	var out []model.Codespace
	for _, c := range f.codespaces {
		if match(c) {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeCodespaceRepo) ListByOwner(_ context.Context, ownerID string) ([]model.Codespace, error) {
	return f.filter(func(c *model.Codespace) bool { return c.OwnerID == ownerID })
}

func (f *fakeCodespaceRepo) ListPublicByTitle(_ context.Context, title string) ([]model.Codespace, error) {
	return f.filter(func(c *model.Codespace) bool { return c.Title == title && c.IsPublic })
}

func (f *fakeCodespaceRepo) Update(_ context.Context, c *model.Codespace) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	if _, ok := f.codespaces[c.ID]; !ok {
		return apperror.NotFound("codespace", c.ID)
	}
	c.UpdatedAt = time.Now()
	stored := *c
	f.codespaces[c.ID] = &stored
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
