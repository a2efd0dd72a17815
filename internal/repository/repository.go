// Package repository declares the persistence interfaces the services
// depend on. Implementations live in the sqlite and mongo subpackages.
//
// Contract shared by every implementation:
//   - missing records return an error wrapping apperror.ErrNotFound
//   - unique violations (username, email, GitHub id) return an error
//     wrapping apperror.ErrConflict whose Field names the column
//   - a Repo is written as one unit, commits and comments included
package repository

import (
	"context"

	"github.com/onemployment/api/internal/model"
)

type ListOptions struct {
	Limit  int
	Offset int
}

type UserRepository interface {
	// CreateUser assigns ID and timestamps on the passed user.
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	GetUserByGitHubID(ctx context.Context, githubID int64) (*model.User, error)
	// UpdateUser overwrites the stored user and bumps UpdatedAt.
	UpdateUser(ctx context.Context, user *model.User) error
	// ListUsersByIDs returns the users that exist among ids, in no
	// particular order. Unknown ids are skipped.
	ListUsersByIDs(ctx context.Context, ids []string) ([]model.User, error)
}

type RepoRepository interface {
	// CreateRepo assigns ID and timestamps on the passed repo.
	CreateRepo(ctx context.Context, repo *model.Repo) error
	GetRepoByID(ctx context.Context, id string) (*model.Repo, error)
	// ListReposByOwner returns the owner's repos, newest first. With
	// publicOnly, private repos are left out.
	ListReposByOwner(ctx context.Context, ownerID string, publicOnly bool) ([]model.Repo, error)
	// ListPublicRepos returns public repos of every user, newest first.
	ListPublicRepos(ctx context.Context, opts ListOptions) ([]model.Repo, error)
	// UpdateRepo writes the whole aggregate back, matching on both
	// repo.ID and repo.UserID. No match is ErrNotFound.
	UpdateRepo(ctx context.Context, repo *model.Repo) error
}

// FollowRepository stores the follow relation as (follower, target)
// edges. One edge is one atomic write, so both directions always agree.
type FollowRepository interface {
	// Follow is idempotent: an existing edge is left alone.
	Follow(ctx context.Context, followerID, targetID string) error
	// Unfollow is idempotent: a missing edge is not an error.
	Unfollow(ctx context.Context, followerID, targetID string) error
	// FollowerIDs lists users following userID, oldest edge first.
	FollowerIDs(ctx context.Context, userID string) ([]string, error)
	// FollowingIDs lists users userID follows, oldest edge first.
	FollowingIDs(ctx context.Context, userID string) ([]string, error)
}

// Store is everything a backing database provides.
type Store interface {
	UserRepository
	RepoRepository
	FollowRepository
	Ping(ctx context.Context) error
	Close() error
}
