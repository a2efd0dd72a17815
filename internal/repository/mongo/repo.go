package mongo

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/xid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/onemployment/api/internal/apperror"
	"github.com/onemployment/api/internal/model"
	"github.com/onemployment/api/internal/repository"
)

var newestFirst = bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}

// CreateRepo inserts a new repo, generating its ID and timestamps.
func (db *DB) CreateRepo(ctx context.Context, repo *model.Repo) error {
	now := time.Now().UTC().Truncate(time.Millisecond)
	repo.ID = xid.New().String()
	repo.CreatedAt = now
	repo.UpdatedAt = now
	if repo.Commits == nil {
		repo.Commits = []model.Commit{}
	}

	if _, err := db.repos.InsertOne(ctx, repo); err != nil {
		return fmt.Errorf("mongo: inserting repo %q: %w", repo.Name, err)
	}
	return nil
}

func (db *DB) GetRepoByID(ctx context.Context, id string) (*model.Repo, error) {
	var r model.Repo
	if err := db.repos.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&r); err != nil {
		return nil, fmt.Errorf("mongo: getting repo %s: %w", id, notFound(err, "repo"))
	}
	normalizeRepo(&r)
	return &r, nil
}

func (db *DB) ListReposByOwner(ctx context.Context, ownerID string, publicOnly bool) ([]model.Repo, error) {
	filter := bson.D{{Key: "user_id", Value: ownerID}}
	if publicOnly {
		filter = append(filter, bson.E{Key: "is_public", Value: true})
	}
	return db.findRepos(ctx, filter, options.Find().SetSort(newestFirst))
}

func (db *DB) ListPublicRepos(ctx context.Context, opts repository.ListOptions) ([]model.Repo, error) {
	find := options.Find().SetSort(newestFirst).SetSkip(int64(opts.Offset))
	if opts.Limit > 0 {
		find.SetLimit(int64(opts.Limit))
	}
	return db.findRepos(ctx, bson.D{{Key: "is_public", Value: true}}, find)
}

func (db *DB) findRepos(ctx context.Context, filter bson.D, opts *options.FindOptions) ([]model.Repo, error) {
	cur, err := db.repos.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo: listing repos: %w", err)
	}
	repos := []model.Repo{}
	if err := cur.All(ctx, &repos); err != nil {
		return nil, fmt.Errorf("mongo: decoding repos: %w", err)
	}
	for i := range repos {
		normalizeRepo(&repos[i])
	}
	return repos, nil
}

// UpdateRepo replaces the document, filtering on owner as well as id.
func (db *DB) UpdateRepo(ctx context.Context, repo *model.Repo) error {
	repo.UpdatedAt = time.Now().UTC().Truncate(time.Millisecond)

	filter := bson.D{{Key: "_id", Value: repo.ID}, {Key: "user_id", Value: repo.UserID}}
	res, err := db.repos.ReplaceOne(ctx, filter, repo)
	if err != nil {
		return fmt.Errorf("mongo: updating repo %s: %w", repo.ID, err)
	}
	if res.MatchedCount == 0 {
		return apperror.NotFound("repo")
	}
	return nil
}

// normalizeRepo turns decoded null arrays into empty ones so JSON output
// matches the sqlite store.
func normalizeRepo(r *model.Repo) {
	if r.Commits == nil {
		r.Commits = []model.Commit{}
	}
	for i := range r.Commits {
		if r.Commits[i].Comments == nil {
			r.Commits[i].Comments = []model.Comment{}
		}
	}
}
