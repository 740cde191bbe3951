package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/storyline/internal/apperror"
	"github.com/sakif/storyline/internal/model"
	"github.com/sakif/storyline/internal/repository"
)

var _ repository.PostRepository = (*DB)(nil)

const postColumns = `p.id, p.owner_id, p.media_id, p.media_url, p.caption, p.created_at`

// CreatePost inserts the post and its hashtag rows in one transaction.
// Hashtags are expected to be normalized (lower-case, no '#', unique) by the
// caller.
func (db *DB) CreatePost(ctx context.Context, post *model.Post) error {
	post.ID = xid.New().String()
	if post.CreatedAt.IsZero() {
		post.CreatedAt = time.Now().UTC()
	}
	if post.Hashtags == nil {
		post.Hashtags = []string{}
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning post insert: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO posts (id, owner_id, media_id, media_url, caption, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		post.ID,
		post.OwnerID,
		post.Media.ID,
		post.Media.URL,
		post.Caption,
		toUnix(post.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating post for %s: %w", post.OwnerID, err)
	}

	for _, tag := range post.Hashtags {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO post_hashtags (post_id, tag) VALUES (?, ?)`,
			post.ID, tag,
		); err != nil {
			return fmt.Errorf("sqlite: tagging post %s with %q: %w", post.ID, tag, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing post %s: %w", post.ID, err)
	}
	return nil
}

func (db *DB) GetPost(ctx context.Context, id string) (*model.Post, error) {
	p, err := scanPost(db.conn.QueryRowContext(ctx,
		`SELECT `+postColumns+` FROM posts p WHERE p.id = ?`, id,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("post", id)
		}
		return nil, fmt.Errorf("sqlite: getting post %s: %w", id, err)
	}

	posts := []model.Post{*p}
	if err := db.loadHashtags(ctx, posts); err != nil {
		return nil, err
	}
	return &posts[0], nil
}

// ListPostsByOwners returns posts owned by any of ownerIDs, newest first.
func (db *DB) ListPostsByOwners(ctx context.Context, ownerIDs []string, opts repository.ListOptions) ([]model.Post, error) {
	if len(ownerIDs) == 0 {
		return []model.Post{}, nil
	}
	limit, offset := pageBounds(opts)

	owners, err := idList(ownerIDs)
	if err != nil {
		return nil, err
	}

	return db.queryPosts(ctx,
		`SELECT `+postColumns+` FROM posts p
		 WHERE p.owner_id IN `+inList+`
		 ORDER BY p.created_at DESC
		 LIMIT ? OFFSET ?`,
		owners, limit, offset,
	)
}

func (db *DB) ListPostsByHashtag(ctx context.Context, tag string, opts repository.ListOptions) ([]model.Post, error) {
	limit, offset := pageBounds(opts)

	return db.queryPosts(ctx,
		`SELECT `+postColumns+` FROM posts p
		 JOIN post_hashtags h ON h.post_id = p.id
		 WHERE h.tag = ?
		 ORDER BY p.created_at DESC
		 LIMIT ? OFFSET ?`,
		tag, limit, offset,
	)
}

func (db *DB) CountPosts(ctx context.Context, ownerID string) (int, error) {
	var n int
	if err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM posts WHERE owner_id = ?`, ownerID,
	).Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlite: counting posts for %s: %w", ownerID, err)
	}
	return n, nil
}

// DeletePost removes the post together with its tags, likes and comments.
// Notifications referencing the post are kept: they are history.
func (db *DB) DeletePost(ctx context.Context, id string) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning delete of post %s: %w", id, err)
	}
	defer tx.Rollback()

	for _, table := range []string{"post_hashtags", "likes", "comments"} {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM `+table+` WHERE post_id = ?`, id,
		); err != nil {
			return fmt.Errorf("sqlite: deleting %s of post %s: %w", table, id, err)
		}
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM posts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting post %s: %w", id, err)
	}
	if err := checkAffected(result, apperror.NotFound("post", id)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing delete of post %s: %w", id, err)
	}
	return nil
}

// queryPosts runs a post SELECT and then fills in hashtags with one extra
// query. The rows are fully drained and closed before the second query, so
// this also works on a single-connection pool.
func (db *DB) queryPosts(ctx context.Context, query string, args ...any) ([]model.Post, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: querying posts: %w", err)
	}

	posts := []model.Post{}
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("sqlite: scanning post row: %w", err)
		}
		posts = append(posts, *p)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("sqlite: iterating posts: %w", err)
	}
	rows.Close()

	if err := db.loadHashtags(ctx, posts); err != nil {
		return nil, err
	}
	return posts, nil
}

func (db *DB) loadHashtags(ctx context.Context, posts []model.Post) error {
	if len(posts) == 0 {
		return nil
	}

	ids := make([]string, len(posts))
	index := make(map[string]int, len(posts))
	for i := range posts {
		ids[i] = posts[i].ID
		index[posts[i].ID] = i
		posts[i].Hashtags = []string{}
	}

	list, err := idList(ids)
	if err != nil {
		return err
	}
	rows, err := db.conn.QueryContext(ctx,
		`SELECT post_id, tag FROM post_hashtags WHERE post_id IN `+inList+` ORDER BY tag`,
		list,
	)
	if err != nil {
		return fmt.Errorf("sqlite: loading hashtags: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var postID, tag string
		if err := rows.Scan(&postID, &tag); err != nil {
			return fmt.Errorf("sqlite: scanning hashtag: %w", err)
		}
		if i, ok := index[postID]; ok {
			posts[i].Hashtags = append(posts[i].Hashtags, tag)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("sqlite: iterating hashtags: %w", err)
	}
	return nil
}

func scanPost(row rowScanner) (*model.Post, error) {
	var (
		p         model.Post
		createdAt int64
	)
	if err := row.Scan(
		&p.ID,
		&p.OwnerID,
		&p.Media.ID,
		&p.Media.URL,
		&p.Caption,
		&createdAt,
	); err != nil {
		return nil, err
	}
	p.CreatedAt = fromUnix(createdAt)
	return &p, nil
}
