// Package mongo implements the repository interfaces on MongoDB.
//
// Collections:
//   - users   unique indexes on username, email and (sparse) github_id
//   - repos   one document per repo with commits and comments embedded,
//             so every repo write is a single-document write
//   - follows one document per (follower_id, target_id) edge, unique
//
// Document ids are xid strings, the same ids the sqlite store hands out.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/onemployment/api/internal/apperror"
	"github.com/onemployment/api/internal/repository"
)

var _ repository.Store = (*DB)(nil)

const (
	usersCollection   = "users"
	reposCollection   = "repos"
	followsCollection = "follows"

	closeTimeout = 5 * time.Second
)

// DB holds a connected client and the three collections.
type DB struct {
	client  *mongo.Client
	users   *mongo.Collection
	repos   *mongo.Collection
	follows *mongo.Collection
}

// New connects to uri, selects database and creates indexes.
func New(ctx context.Context, uri, database string) (*DB, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo: connecting: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo: pinging: %w", err)
	}

	d := client.Database(database)
	db := &DB{
		client:  client,
		users:   d.Collection(usersCollection),
		repos:   d.Collection(reposCollection),
		follows: d.Collection(followsCollection),
	}
	if err := db.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo: creating indexes: %w", err)
	}
	return db, nil
}

func (db *DB) ensureIndexes(ctx context.Context) error {
	_, err := db.users.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetName("username").SetUnique(true)},
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetName("email").SetUnique(true)},
		{Keys: bson.D{{Key: "github_id", Value: 1}}, Options: options.Index().SetName("github_id").SetUnique(true).SetSparse(true)},
	})
	if err != nil {
		return fmt.Errorf("users: %w", err)
	}

	_, err = db.repos.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "is_public", Value: 1}, {Key: "created_at", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("repos: %w", err)
	}

	_, err = db.follows.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "follower_id", Value: 1}, {Key: "target_id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "target_id", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("follows: %w", err)
	}
	return nil
}

// Ping checks the primary is reachable. Used by /healthz.
func (db *DB) Ping(ctx context.Context) error {
	return db.client.Ping(ctx, readpref.Primary())
}

// Close disconnects the client.
func (db *DB) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	return db.client.Disconnect(ctx)
}

// translateDuplicate turns a duplicate key error into
// apperror.Conflict(field), where field is the violated index name.
// Other errors pass through unchanged.
func translateDuplicate(err error) error {
	if !mongo.IsDuplicateKeyError(err) {
		return err
	}
	// Message shape: "E11000 duplicate key error collection: db.users index: email dup key: ..."
	field := "record"
	msg := err.Error()
	if i := strings.Index(msg, "index: "); i >= 0 {
		rest := msg[i+len("index: "):]
		if j := strings.IndexByte(rest, ' '); j >= 0 {
			rest = rest[:j]
		}
		field = rest
	}
	if field == "github_id" {
		field = "github account"
	}
	return apperror.Conflict(field)
}

func notFound(err error, resource string) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return apperror.NotFound(resource)
	}
	return err
}
