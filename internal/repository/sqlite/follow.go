package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/sakif/storyline/internal/apperror"
	"github.com/sakif/storyline/internal/model"
	"github.com/sakif/storyline/internal/repository"
)

var _ repository.FollowRepository = (*DB)(nil)

// CreateFollow inserts the edge. The (follower_id, followed_id) primary key
// guarantees at most one edge per ordered pair; a second insert becomes
// Conflict.
func (db *DB) CreateFollow(ctx context.Context, follow *model.Follow) error {
	follow.CreatedAt = time.Now().UTC()

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO follows (follower_id, followed_id, created_at) VALUES (?, ?, ?)`,
		follow.FollowerID, follow.FollowedID, toUnix(follow.CreatedAt),
	)
	if err != nil {
		if _, ok := uniqueViolation(err); ok {
			return apperror.Conflict("follow", "already following this user")
		}
		return fmt.Errorf("sqlite: creating follow %s -> %s: %w", follow.FollowerID, follow.FollowedID, err)
	}
	return nil
}

func (db *DB) DeleteFollow(ctx context.Context, followerID, followedID string) error {
	_, err := db.conn.ExecContext(ctx,
		`DELETE FROM follows WHERE follower_id = ? AND followed_id = ?`,
		followerID, followedID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: deleting follow %s -> %s: %w", followerID, followedID, err)
	}
	return nil
}

// FollowedIDs returns the ids followerID follows, most recent edge first.
func (db *DB) FollowedIDs(ctx context.Context, followerID string) ([]string, error) {
	return db.queryIDs(ctx,
		`SELECT followed_id FROM follows WHERE follower_id = ? ORDER BY created_at DESC`,
		followerID,
	)
}

// FollowerIDs returns the ids following followedID, most recent edge first.
func (db *DB) FollowerIDs(ctx context.Context, followedID string) ([]string, error) {
	return db.queryIDs(ctx,
		`SELECT follower_id FROM follows WHERE followed_id = ? ORDER BY created_at DESC`,
		followedID,
	)
}

func (db *DB) CountFollows(ctx context.Context, userID string) (followers, following int, err error) {
	err = db.conn.QueryRowContext(ctx,
		`SELECT
			(SELECT COUNT(*) FROM follows WHERE followed_id = ?),
			(SELECT COUNT(*) FROM follows WHERE follower_id = ?)`,
		userID, userID,
	).Scan(&followers, &following)
	if err != nil {
		return 0, 0, fmt.Errorf("sqlite: counting follows for %s: %w", userID, err)
	}
	return followers, following, nil
}

func (db *DB) queryIDs(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: querying ids: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("sqlite: scanning id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating ids: %w", err)
	}
	return ids, nil
}
