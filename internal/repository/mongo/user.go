package mongo

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/xid"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/onemployment/api/internal/apperror"
	"github.com/onemployment/api/internal/model"
)

// CreateUser inserts a new user, generating its ID and timestamps.
func (db *DB) CreateUser(ctx context.Context, user *model.User) error {
	now := time.Now().UTC().Truncate(time.Millisecond)
	user.ID = xid.New().String()
	user.CreatedAt = now
	user.UpdatedAt = now

	if _, err := db.users.InsertOne(ctx, user); err != nil {
		return fmt.Errorf("mongo: inserting user %q: %w", user.Username, translateDuplicate(err))
	}
	return nil
}

func (db *DB) findUser(ctx context.Context, filter bson.D) (*model.User, error) {
	var u model.User
	if err := db.users.FindOne(ctx, filter).Decode(&u); err != nil {
		return nil, fmt.Errorf("mongo: getting user: %w", notFound(err, "user"))
	}
	return &u, nil
}

func (db *DB) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	return db.findUser(ctx, bson.D{{Key: "_id", Value: id}})
}

func (db *DB) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	return db.findUser(ctx, bson.D{{Key: "username", Value: username}})
}

func (db *DB) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return db.findUser(ctx, bson.D{{Key: "email", Value: email}})
}

func (db *DB) GetUserByGitHubID(ctx context.Context, githubID int64) (*model.User, error) {
	return db.findUser(ctx, bson.D{{Key: "github_id", Value: githubID}})
}

// UpdateUser replaces the stored document.
func (db *DB) UpdateUser(ctx context.Context, user *model.User) error {
	user.UpdatedAt = time.Now().UTC().Truncate(time.Millisecond)

	res, err := db.users.ReplaceOne(ctx, bson.D{{Key: "_id", Value: user.ID}}, user)
	if err != nil {
		return fmt.Errorf("mongo: updating user %s: %w", user.ID, translateDuplicate(err))
	}
	if res.MatchedCount == 0 {
		return apperror.NotFound("user")
	}
	return nil
}

func (db *DB) ListUsersByIDs(ctx context.Context, ids []string) ([]model.User, error) {
	if len(ids) == 0 {
		return []model.User{}, nil
	}

	cur, err := db.users.Find(ctx, bson.D{{Key: "_id", Value: bson.D{{Key: "$in", Value: ids}}}})
	if err != nil {
		return nil, fmt.Errorf("mongo: listing users: %w", err)
	}
	users := []model.User{}
	if err := cur.All(ctx, &users); err != nil {
		return nil, fmt.Errorf("mongo: decoding users: %w", err)
	}
	return users, nil
}
