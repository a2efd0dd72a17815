package sqlite

import (
	"context"
	"fmt"
	"time"
)

// Follow inserts the edge. ON CONFLICT DO NOTHING makes a repeated
// follow a no-op.
func (db *DB) Follow(ctx context.Context, followerID, targetID string) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO follows (follower_id, target_id, created_at) VALUES (?, ?, ?)
		 ON CONFLICT (follower_id, target_id) DO NOTHING`,
		followerID, targetID, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("sqlite: following %s -> %s: %w", followerID, targetID, err)
	}
	return nil
}

func (db *DB) Unfollow(ctx context.Context, followerID, targetID string) error {
	_, err := db.conn.ExecContext(ctx,
		`DELETE FROM follows WHERE follower_id = ? AND target_id = ?`,
		followerID, targetID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: unfollowing %s -> %s: %w", followerID, targetID, err)
	}
	return nil
}

func (db *DB) FollowerIDs(ctx context.Context, userID string) ([]string, error) {
	return db.queryIDs(ctx,
		`SELECT follower_id FROM follows WHERE target_id = ? ORDER BY created_at, follower_id`, userID)
}

func (db *DB) FollowingIDs(ctx context.Context, userID string) ([]string, error) {
	return db.queryIDs(ctx,
		`SELECT target_id FROM follows WHERE follower_id = ? ORDER BY created_at, target_id`, userID)
}

func (db *DB) queryIDs(ctx context.Context, query, arg string) ([]string, error) {
	rows, err := db.conn.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing follow edges: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("sqlite: scanning follow edge: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
