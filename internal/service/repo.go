package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/rs/xid"

	"github.com/onemployment/api/internal/apperror"
	"github.com/onemployment/api/internal/model"
	"github.com/onemployment/api/internal/repository"
)

// RepoService owns repos and the commits and comments inside them.
//
// Visibility and ownership failures are reported as NotFound("repo"), the
// same error a missing id produces, so private repos cannot be probed.
//
// Every mutation loads the aggregate, changes it in memory and writes it
// back whole through UpdateRepo, which filters on (id, owner). Two
// concurrent edits by the owner are last-write-wins.
type RepoService struct {
	store  repository.Store
	logger *slog.Logger
}

func NewRepoService(store repository.Store, logger *slog.Logger) *RepoService {
	return &RepoService{store: store, logger: logger}
}

// RepoInput is the body of a create request. IsPublic defaults to true.
type RepoInput struct {
	Name     string `json:"name"`
	Summary  string `json:"summary"`
	Season   string `json:"season"`
	Readme   string `json:"readme"`
	IsPublic *bool  `json:"isPublic"`
}

// RepoPatch is a partial repo edit. TogglePin and ToggleStar are
// commands; at most one may be set per request, and it runs before the
// field overwrites.
type RepoPatch struct {
	Name      Optional[string] `json:"name"`
	Summary   Optional[string] `json:"summary"`
	Season    Optional[string] `json:"season"`
	Readme    Optional[string] `json:"readme"`
	IsPublic  Optional[bool]   `json:"isPublic"`
	IsPinned  Optional[bool]   `json:"isPinned"`
	IsStarred Optional[bool]   `json:"isStarred"`

	TogglePin  bool `json:"togglePin"`
	ToggleStar bool `json:"toggleStar"`
}

// CommitInput is the body of an add-commit request.
type CommitInput struct {
	Summary     string `json:"summary"`
	Description string `json:"description"`
}

func validateRepoFields(name, summary, season, readme string) error {
	if name == "" {
		return apperror.ValidationFailed("name", "name is required")
	}
	if err := checkLen("name", name, maxRepoNameLen); err != nil {
		return err
	}
	if err := checkLen("summary", summary, maxSummaryLen); err != nil {
		return err
	}
	if err := checkLen("season", season, maxSeasonLen); err != nil {
		return err
	}
	return checkLen("readme", readme, maxReadmeLen)
}

func (s *RepoService) Create(ctx context.Context, ownerID string, in RepoInput) (*model.Repo, error) {
	repo := &model.Repo{
		UserID:   ownerID,
		Name:     strings.TrimSpace(in.Name),
		Summary:  strings.TrimSpace(in.Summary),
		Season:   strings.TrimSpace(in.Season),
		Readme:   in.Readme,
		IsPublic: true,
		Commits:  []model.Commit{},
	}
	if in.IsPublic != nil {
		repo.IsPublic = *in.IsPublic
	}
	if err := validateRepoFields(repo.Name, repo.Summary, repo.Season, repo.Readme); err != nil {
		return nil, err
	}

	if err := s.store.CreateRepo(ctx, repo); err != nil {
		return nil, fmt.Errorf("service/repo: creating repo: %w", err)
	}

	s.logger.Info("repo created",
		slog.String("repoID", repo.ID),
		slog.String("userID", ownerID),
	)
	return s.resolved(ctx, repo)
}

// ListOwn returns the caller's repos, private ones included.
func (s *RepoService) ListOwn(ctx context.Context, ownerID string) ([]model.Repo, error) {
	repos, err := s.store.ListReposByOwner(ctx, ownerID, false)
	if err != nil {
		return nil, fmt.Errorf("service/repo: listing repos of %s: %w", ownerID, err)
	}
	return s.resolvedList(ctx, repos)
}

// ListPublic returns public repos newest first. A non-empty username
// narrows the list to that user and must exist.
func (s *RepoService) ListPublic(ctx context.Context, username string, opts repository.ListOptions) ([]model.Repo, error) {
	if username == "" {
		repos, err := s.store.ListPublicRepos(ctx, opts)
		if err != nil {
			return nil, fmt.Errorf("service/repo: listing public repos: %w", err)
		}
		return s.resolvedList(ctx, repos)
	}

	owner, err := s.store.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("service/repo: looking up %q: %w", username, err)
	}
	repos, err := s.store.ListReposByOwner(ctx, owner.ID, true)
	if err != nil {
		return nil, fmt.Errorf("service/repo: listing repos of %s: %w", owner.ID, err)
	}
	return s.resolvedList(ctx, page(repos, opts))
}

// PublicProfile returns the profile other users see: no email, and
// pinnedRepos limited to public repos.
func (s *RepoService) PublicProfile(ctx context.Context, username string) (*model.User, error) {
	user, err := s.store.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("service/repo: looking up %q: %w", username, err)
	}
	public := user.Public()
	if err := decorateUser(ctx, s.store, public, true); err != nil {
		return nil, fmt.Errorf("service/repo: %w", err)
	}
	return public, nil
}

// Get returns a repo the requester may see. requesterID is empty for
// anonymous callers.
func (s *RepoService) Get(ctx context.Context, repoID, requesterID string) (*model.Repo, error) {
	repo, err := s.visible(ctx, repoID, requesterID)
	if err != nil {
		return nil, err
	}
	return s.resolved(ctx, repo)
}

func (s *RepoService) Patch(ctx context.Context, repoID, requesterID string, p RepoPatch) (*model.Repo, error) {
	if p.TogglePin && p.ToggleStar {
		return nil, apperror.ValidationFailed("toggle", "togglePin and toggleStar cannot be combined")
	}

	repo, err := s.owned(ctx, repoID, requesterID)
	if err != nil {
		return nil, err
	}

	switch {
	case p.TogglePin:
		repo.TogglePin()
	case p.ToggleStar:
		repo.ToggleStar()
	}

	// Null clears: empty text, false flags.
	if p.Name.Set {
		repo.Name = strings.TrimSpace(p.Name.Get())
	}
	if p.Summary.Set {
		repo.Summary = strings.TrimSpace(p.Summary.Get())
	}
	if p.Season.Set {
		repo.Season = strings.TrimSpace(p.Season.Get())
	}
	if p.Readme.Set {
		repo.Readme = p.Readme.Get()
	}
	if p.IsPublic.Set {
		repo.IsPublic = p.IsPublic.Get()
	}
	if p.IsPinned.Set {
		repo.IsPinned = p.IsPinned.Get()
	}
	if p.IsStarred.Set {
		repo.SetStarred(p.IsStarred.Get())
	}

	if err := validateRepoFields(repo.Name, repo.Summary, repo.Season, repo.Readme); err != nil {
		return nil, err
	}
	if err := s.save(ctx, repo); err != nil {
		return nil, err
	}
	return s.resolved(ctx, repo)
}

// AddCommit appends a commit numbered one past the highest so far and
// stamps it with the repo's current season.
func (s *RepoService) AddCommit(ctx context.Context, repoID, requesterID string, in CommitInput) (*model.Commit, error) {
	summary := strings.TrimSpace(in.Summary)
	if summary == "" {
		return nil, apperror.ValidationFailed("summary", "summary is required")
	}
	if err := checkLen("summary", summary, maxCommitLen); err != nil {
		return nil, err
	}
	if err := checkLen("description", in.Description, maxReadmeLen); err != nil {
		return nil, err
	}

	repo, err := s.owned(ctx, repoID, requesterID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	repo.Commits = append(repo.Commits, model.Commit{
		ID:            xid.New().String(),
		Number:        repo.NextCommitNumber(),
		Summary:       summary,
		Description:   in.Description,
		ProjectSeason: repo.Season,
		Comments:      []model.Comment{},
		CreatedAt:     now,
		UpdatedAt:     now,
	})
	if err := s.save(ctx, repo); err != nil {
		return nil, err
	}

	s.logger.Info("commit added",
		slog.String("repoID", repo.ID),
		slog.Int("number", repo.Commits[len(repo.Commits)-1].Number),
	)
	return s.resolvedCommit(ctx, repo, repo.Commits[len(repo.Commits)-1].ID)
}

func (s *RepoService) GetCommit(ctx context.Context, repoID, commitID, requesterID string) (*model.Commit, error) {
	repo, err := s.visible(ctx, repoID, requesterID)
	if err != nil {
		return nil, err
	}
	return s.resolvedCommit(ctx, repo, commitID)
}

// EditCommitDescription changes the only mutable field of a commit.
func (s *RepoService) EditCommitDescription(ctx context.Context, repoID, commitID, requesterID, description string) (*model.Commit, error) {
	if err := checkLen("description", description, maxReadmeLen); err != nil {
		return nil, err
	}

	repo, err := s.owned(ctx, repoID, requesterID)
	if err != nil {
		return nil, err
	}
	commit := repo.Commit(commitID)
	if commit == nil {
		return nil, apperror.NotFound("commit")
	}
	commit.Description = description
	commit.UpdatedAt = time.Now().UTC()

	if err := s.save(ctx, repo); err != nil {
		return nil, err
	}
	return s.resolvedCommit(ctx, repo, commitID)
}

// AddComment appends one comment authored by authorID. Any caller who
// can see the repo may comment.
func (s *RepoService) AddComment(ctx context.Context, repoID, commitID, authorID, text string) (*model.Comment, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperror.ValidationFailed("text", "comment text is required")
	}
	if err := checkLen("text", text, maxCommentLen); err != nil {
		return nil, err
	}

	repo, err := s.visible(ctx, repoID, authorID)
	if err != nil {
		return nil, err
	}
	commit := repo.Commit(commitID)
	if commit == nil {
		return nil, apperror.NotFound("commit")
	}

	comment := model.Comment{
		ID:        xid.New().String(),
		AuthorID:  authorID,
		Text:      text,
		CreatedAt: time.Now().UTC(),
	}
	commit.Comments = append(commit.Comments, comment)

	// Commenters are usually not the owner, so the write goes through
	// the owner's filter rather than the caller's.
	if err := s.save(ctx, repo); err != nil {
		return nil, err
	}

	byID, err := summaries(ctx, s.store, []string{authorID})
	if err != nil {
		return nil, fmt.Errorf("service/repo: %w", err)
	}
	comment.AuthorUser = byID[authorID]
	return &comment, nil
}

// visible loads a repo the requester is allowed to read.
func (s *RepoService) visible(ctx context.Context, repoID, requesterID string) (*model.Repo, error) {
	repo, err := s.store.GetRepoByID(ctx, repoID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.NotFound("repo")
		}
		return nil, fmt.Errorf("service/repo: fetching repo %s: %w", repoID, err)
	}
	if !repo.VisibleTo(requesterID) {
		return nil, apperror.NotFound("repo")
	}
	return repo, nil
}

// owned loads a repo the requester owns.
func (s *RepoService) owned(ctx context.Context, repoID, requesterID string) (*model.Repo, error) {
	repo, err := s.visible(ctx, repoID, requesterID)
	if err != nil {
		return nil, err
	}
	if !repo.OwnedBy(requesterID) {
		return nil, apperror.NotFound("repo")
	}
	return repo, nil
}

func (s *RepoService) save(ctx context.Context, repo *model.Repo) error {
	if err := s.store.UpdateRepo(ctx, repo); err != nil {
		return fmt.Errorf("service/repo: saving repo %s: %w", repo.ID, err)
	}
	return nil
}

func (s *RepoService) resolved(ctx context.Context, repo *model.Repo) (*model.Repo, error) {
	if err := resolveRepo(ctx, s.store, repo); err != nil {
		return nil, fmt.Errorf("service/repo: %w", err)
	}
	return repo, nil
}

func (s *RepoService) resolvedList(ctx context.Context, repos []model.Repo) ([]model.Repo, error) {
	if err := resolveRepos(ctx, s.store, repos); err != nil {
		return nil, fmt.Errorf("service/repo: %w", err)
	}
	return repos, nil
}

func (s *RepoService) resolvedCommit(ctx context.Context, repo *model.Repo, commitID string) (*model.Commit, error) {
	if _, err := s.resolved(ctx, repo); err != nil {
		return nil, err
	}
	commit := repo.Commit(commitID)
	if commit == nil {
		return nil, apperror.NotFound("commit")
	}
	return commit, nil
}

// page applies opts to an in-memory slice.
func page(repos []model.Repo, opts repository.ListOptions) []model.Repo {
	if opts.Offset >= len(repos) {
		return []model.Repo{}
	}
	repos = repos[max(opts.Offset, 0):]
	if opts.Limit > 0 && opts.Limit < len(repos) {
		repos = repos[:opts.Limit]
	}
	return repos
}
