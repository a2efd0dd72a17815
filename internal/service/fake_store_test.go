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

	"github.com/onemployment/api/internal/apperror"
	"github.com/onemployment/api/internal/model"
	"github.com/onemployment/api/internal/repository"
)

// =========================================================================
// FAKE STORE
// =========================================================================

// fakeStore is an in-memory repository.Store. It copies on every read and
// write so tests see the same isolation a database gives, and it enforces
// the same unique fields and owner filter.
type fakeStore struct {
	mu      sync.Mutex
	nextID  int
	users   map[string]*model.User
	repos   map[string]*model.Repo
	follows map[[2]string]time.Time
	clock   time.Time

	// failUpdateUser makes UpdateUser fail once.
	failUpdateUser error
}

var _ repository.Store = (*fakeStore)(nil)

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:   map[string]*model.User{},
		repos:   map[string]*model.Repo{},
		follows: map[[2]string]time.Time{},
		clock:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (f *fakeStore) id(prefix string) string {
	f.nextID++
	return fmt.Sprintf("%s-%d", prefix, f.nextID)
}

// tick returns strictly increasing timestamps so newest-first is stable.
func (f *fakeStore) tick() time.Time {
	f.clock = f.clock.Add(time.Second)
	return f.clock
}

func cloneUser(u *model.User) *model.User {
	cp := *u
	if u.GitHubID != nil {
		id := *u.GitHubID
		cp.GitHubID = &id
	}
	cp.Followers, cp.Following, cp.PinnedRepos = nil, nil, nil
	return &cp
}

func cloneRepo(r *model.Repo) *model.Repo {
	cp := *r
	cp.User = nil
	cp.Commits = make([]model.Commit, len(r.Commits))
	for i, c := range r.Commits {
		c.User = nil
		comments := make([]model.Comment, len(c.Comments))
		for j, cm := range c.Comments {
			cm.AuthorUser = nil
			comments[j] = cm
		}
		c.Comments = comments
		cp.Commits[i] = c
	}
	return &cp
}

func (f *fakeStore) checkUnique(u *model.User) error {
	for _, other := range f.users {
		if other.ID == u.ID {
			continue
		}
		switch {
		case other.Username == u.Username:
			return apperror.Conflict("username")
		case other.Email == u.Email:
			return apperror.Conflict("email")
		case u.GitHubID != nil && other.GitHubID != nil && *other.GitHubID == *u.GitHubID:
			return apperror.Conflict("github account")
		}
	}
	return nil
}

func (f *fakeStore) CreateUser(_ context.Context, u *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.checkUnique(u); err != nil {
		return err
	}
	u.ID = f.id("user")
	u.CreatedAt = f.tick()
	u.UpdatedAt = u.CreatedAt
	f.users[u.ID] = cloneUser(u)
	return nil
}

func (f *fakeStore) findUser(match func(*model.User) bool) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if match(u) {
			return cloneUser(u), nil
		}
	}
	return nil, apperror.NotFound("user")
}

func (f *fakeStore) GetUserByID(_ context.Context, id string) (*model.User, error) {
	return f.findUser(func(u *model.User) bool { return u.ID == id })
}

func (f *fakeStore) GetUserByUsername(_ context.Context, username string) (*model.User, error) {
	return f.findUser(func(u *model.User) bool { return u.Username == username })
}

func (f *fakeStore) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	return f.findUser(func(u *model.User) bool { return u.Email == email })
}

func (f *fakeStore) GetUserByGitHubID(_ context.Context, id int64) (*model.User, error) {
	return f.findUser(func(u *model.User) bool { return u.GitHubID != nil && *u.GitHubID == id })
}

func (f *fakeStore) UpdateUser(_ context.Context, u *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failUpdateUser; err != nil {
		f.failUpdateUser = nil
		return err
	}
	if _, ok := f.users[u.ID]; !ok {
		return apperror.NotFound("user")
	}
	if err := f.checkUnique(u); err != nil {
		return err
	}
	u.UpdatedAt = f.tick()
	f.users[u.ID] = cloneUser(u)
	return nil
}

func (f *fakeStore) ListUsersByIDs(_ context.Context, ids []string) ([]model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.User{}
	for _, id := range ids {
		if u, ok := f.users[id]; ok {
			out = append(out, *cloneUser(u))
		}
	}
	return out, nil
}

func (f *fakeStore) CreateRepo(_ context.Context, r *model.Repo) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r.ID = f.id("repo")
	r.CreatedAt = f.tick()
	r.UpdatedAt = r.CreatedAt
	f.repos[r.ID] = cloneRepo(r)
	return nil
}

func (f *fakeStore) GetRepoByID(_ context.Context, id string) (*model.Repo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.repos[id]
	if !ok {
		return nil, apperror.NotFound("repo")
	}
	return cloneRepo(r), nil
}

func (f *fakeStore) listRepos(match func(*model.Repo) bool) []model.Repo {
	out := []model.Repo{}
	for _, r := range f.repos {
		if match(r) {
			out = append(out, *cloneRepo(r))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (f *fakeStore) ListReposByOwner(_ context.Context, ownerID string, publicOnly bool) ([]model.Repo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listRepos(func(r *model.Repo) bool {
		return r.UserID == ownerID && (!publicOnly || r.IsPublic)
	}), nil
}

func (f *fakeStore) ListPublicRepos(_ context.Context, opts repository.ListOptions) ([]model.Repo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return page(f.listRepos(func(r *model.Repo) bool { return r.IsPublic }), opts), nil
}

func (f *fakeStore) UpdateRepo(_ context.Context, r *model.Repo) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.repos[r.ID]
	if !ok || stored.UserID != r.UserID {
		return apperror.NotFound("repo")
	}
	r.UpdatedAt = f.tick()
	f.repos[r.ID] = cloneRepo(r)
	return nil
}

func (f *fakeStore) Follow(_ context.Context, followerID, targetID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := [2]string{followerID, targetID}
	if _, ok := f.follows[key]; !ok {
		f.follows[key] = f.tick()
	}
	return nil
}

func (f *fakeStore) Unfollow(_ context.Context, followerID, targetID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.follows, [2]string{followerID, targetID})
	return nil
}

func (f *fakeStore) edges(pick func(key [2]string) (string, bool)) []string {
	type edge struct {
		id string
		at time.Time
	}
	var found []edge
	for key, at := range f.follows {
		if id, ok := pick(key); ok {
			found = append(found, edge{id, at})
		}
	}
	sort.Slice(found, func(i, j int) bool { return found[i].at.Before(found[j].at) })
	ids := []string{}
	for _, e := range found {
		ids = append(ids, e.id)
	}
	return ids
}

func (f *fakeStore) FollowerIDs(_ context.Context, userID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.edges(func(k [2]string) (string, bool) { return k[0], k[1] == userID }), nil
}

func (f *fakeStore) FollowingIDs(_ context.Context, userID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.edges(func(k [2]string) (string, bool) { return k[1], k[0] == userID }), nil
}

func (f *fakeStore) Ping(context.Context) error { return nil }
func (f *fakeStore) Close() error               { return nil }

// =========================================================================
// FAKE AVATAR STORE
// =========================================================================

type fakeAvatars struct {
	mu      sync.Mutex
	files   map[string][]byte
	n       int
	deleted []string
}

func newFakeAvatars() *fakeAvatars {
	return &fakeAvatars{files: map[string][]byte{}}
}

func (a *fakeAvatars) Save(_ context.Context, ext string, r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.n++
	url := fmt.Sprintf("/uploads/avatar-%d%s", a.n, ext)
	a.files[url] = data
	return url, nil
}

func (a *fakeAvatars) Delete(_ context.Context, url string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !strings.HasPrefix(url, "/uploads/") {
		return nil
	}
	delete(a.files, url)
	a.deleted = append(a.deleted, url)
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
