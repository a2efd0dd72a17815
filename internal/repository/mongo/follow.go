package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type followDoc struct {
	FollowerID string    `bson:"follower_id"`
	TargetID   string    `bson:"target_id"`
	CreatedAt  time.Time `bson:"created_at"`
}

// Follow upserts the edge; $setOnInsert keeps an existing edge untouched.
func (db *DB) Follow(ctx context.Context, followerID, targetID string) error {
	filter := bson.D{{Key: "follower_id", Value: followerID}, {Key: "target_id", Value: targetID}}
	update := bson.D{{Key: "$setOnInsert", Value: followDoc{
		FollowerID: followerID,
		TargetID:   targetID,
		CreatedAt:  time.Now().UTC(),
	}}}

	_, err := db.follows.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	// Two racing upserts can both miss and insert; the unique index
	// rejects the loser, whose edge already exists.
	if err != nil && !mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("mongo: following %s -> %s: %w", followerID, targetID, err)
	}
	return nil
}

func (db *DB) Unfollow(ctx context.Context, followerID, targetID string) error {
	filter := bson.D{{Key: "follower_id", Value: followerID}, {Key: "target_id", Value: targetID}}
	if _, err := db.follows.DeleteOne(ctx, filter); err != nil {
		return fmt.Errorf("mongo: unfollowing %s -> %s: %w", followerID, targetID, err)
	}
	return nil
}

func (db *DB) FollowerIDs(ctx context.Context, userID string) ([]string, error) {
	edges, err := db.findEdges(ctx, bson.D{{Key: "target_id", Value: userID}})
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(edges))
	for i, e := range edges {
		ids[i] = e.FollowerID
	}
	return ids, nil
}

func (db *DB) FollowingIDs(ctx context.Context, userID string) ([]string, error) {
	edges, err := db.findEdges(ctx, bson.D{{Key: "follower_id", Value: userID}})
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(edges))
	for i, e := range edges {
		ids[i] = e.TargetID
	}
	return ids, nil
}

func (db *DB) findEdges(ctx context.Context, filter bson.D) ([]followDoc, error) {
	cur, err := db.follows.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("mongo: listing follow edges: %w", err)
	}
	var edges []followDoc
	if err := cur.All(ctx, &edges); err != nil {
		return nil, fmt.Errorf("mongo: decoding follow edges: %w", err)
	}
	return edges, nil
}
