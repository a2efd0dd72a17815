package service

import (
	"context"
	"fmt"

	"github.com/onemployment/api/internal/model"
	"github.com/onemployment/api/internal/repository"
)

// decorateUser fills the read-time fields of u: followers and following
// from the follow edges, pinnedRepos from the owner's pinned repos. With
// publicOnly, pinned private repos are left out.
func decorateUser(ctx context.Context, store repository.Store, u *model.User, publicOnly bool) error {
	followers, err := store.FollowerIDs(ctx, u.ID)
	if err != nil {
		return fmt.Errorf("listing followers: %w", err)
	}
	following, err := store.FollowingIDs(ctx, u.ID)
	if err != nil {
		return fmt.Errorf("listing following: %w", err)
	}
	repos, err := store.ListReposByOwner(ctx, u.ID, publicOnly)
	if err != nil {
		return fmt.Errorf("listing repos: %w", err)
	}

	pinned := []string{}
	for _, r := range repos {
		if r.IsPinned {
			pinned = append(pinned, r.ID)
		}
	}

	u.Followers = followers
	u.Following = following
	u.PinnedRepos = pinned
	return nil
}

// summaries loads the users behind ids in one query and returns their
// public summaries keyed by id. Unknown ids are absent from the map.
func summaries(ctx context.Context, users repository.UserRepository, ids []string) (map[string]*model.UserSummary, error) {
	seen := make(map[string]bool, len(ids))
	unique := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != "" && !seen[id] {
			seen[id] = true
			unique = append(unique, id)
		}
	}

	found, err := users.ListUsersByIDs(ctx, unique)
	if err != nil {
		return nil, fmt.Errorf("resolving users: %w", err)
	}
	out := make(map[string]*model.UserSummary, len(found))
	for i := range found {
		s := found[i].Summary()
		out[found[i].ID] = &s
	}
	return out, nil
}

// resolveRepos attaches owner summaries to repos and their commits, and
// author summaries to every comment, with a single user lookup.
func resolveRepos(ctx context.Context, users repository.UserRepository, repos []model.Repo) error {
	var ids []string
	for _, r := range repos {
		ids = append(ids, r.UserID)
		for _, c := range r.Commits {
			for _, cm := range c.Comments {
				ids = append(ids, cm.AuthorID)
			}
		}
	}

	byID, err := summaries(ctx, users, ids)
	if err != nil {
		return err
	}

	for i := range repos {
		r := &repos[i]
		r.User = byID[r.UserID]
		for j := range r.Commits {
			c := &r.Commits[j]
			c.User = r.User
			for k := range c.Comments {
				c.Comments[k].AuthorUser = byID[c.Comments[k].AuthorID]
			}
		}
	}
	return nil
}

func resolveRepo(ctx context.Context, users repository.UserRepository, repo *model.Repo) error {
	one := []model.Repo{*repo}
	if err := resolveRepos(ctx, users, one); err != nil {
		return err
	}
	*repo = one[0]
	return nil
}
