package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/storyline/internal/apperror"
	"github.com/sakif/storyline/internal/model"
	"github.com/sakif/storyline/internal/repository"
)

var (
	_ repository.LikeRepository         = (*DB)(nil)
	_ repository.CommentRepository      = (*DB)(nil)
	_ repository.NotificationRepository = (*DB)(nil)
)

// =========================================================================
// LIKES
// =========================================================================

// CreateLike relies on the (post_id, user_id) primary key: of two racing
// likes from the same user, exactly one insert wins and the other gets
// Conflict.
func (db *DB) CreateLike(ctx context.Context, like *model.Like) error {
	like.CreatedAt = time.Now().UTC()

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO likes (post_id, user_id, created_at) VALUES (?, ?, ?)`,
		like.PostID, like.UserID, toUnix(like.CreatedAt),
	)
	if err != nil {
		if _, ok := uniqueViolation(err); ok {
			return apperror.Conflict("like", "post already liked")
		}
		return fmt.Errorf("sqlite: liking post %s: %w", like.PostID, err)
	}
	return nil
}

func (db *DB) DeleteLike(ctx context.Context, postID, userID string) error {
	if _, err := db.conn.ExecContext(ctx,
		`DELETE FROM likes WHERE post_id = ? AND user_id = ?`, postID, userID,
	); err != nil {
		return fmt.Errorf("sqlite: unliking post %s: %w", postID, err)
	}
	return nil
}

func (db *DB) CountLikes(ctx context.Context, postID string) (int, error) {
	var n int
	if err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM likes WHERE post_id = ?`, postID,
	).Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlite: counting likes of post %s: %w", postID, err)
	}
	return n, nil
}

// =========================================================================
// COMMENTS
// =========================================================================

func (db *DB) CreateComment(ctx context.Context, c *model.Comment) error {
	c.ID = xid.New().String()
	c.CreatedAt = time.Now().UTC()

	if _, err := db.conn.ExecContext(ctx,
		`INSERT INTO comments (id, post_id, user_id, text, created_at) VALUES (?, ?, ?, ?, ?)`,
		c.ID, c.PostID, c.UserID, c.Text, toUnix(c.CreatedAt),
	); err != nil {
		return fmt.Errorf("sqlite: commenting on post %s: %w", c.PostID, err)
	}
	return nil
}

// ListComments returns a post's comments oldest first, the order they are
// read in a thread.
func (db *DB) ListComments(ctx context.Context, postID string, opts repository.ListOptions) ([]model.Comment, error) {
	limit, offset := pageBounds(opts)

	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, post_id, user_id, text, created_at FROM comments
		 WHERE post_id = ?
		 ORDER BY created_at ASC
		 LIMIT ? OFFSET ?`,
		postID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing comments of post %s: %w", postID, err)
	}
	defer rows.Close()

	comments := make([]model.Comment, 0, limit)
	for rows.Next() {
		var (
			c         model.Comment
			createdAt int64
		)
		if err := rows.Scan(&c.ID, &c.PostID, &c.UserID, &c.Text, &createdAt); err != nil {
			return nil, fmt.Errorf("sqlite: scanning comment: %w", err)
		}
		c.CreatedAt = fromUnix(createdAt)
		comments = append(comments, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating comments: %w", err)
	}
	return comments, nil
}

// =========================================================================
// NOTIFICATIONS
// =========================================================================

// CreateNotification appends to the recipient's log. Notifications are never
// updated.
func (db *DB) CreateNotification(ctx context.Context, n *model.Notification) error {
	n.ID = xid.New().String()
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}

	if _, err := db.conn.ExecContext(ctx,
		`INSERT INTO notifications (id, recipient_id, type, from_user_id, post_id, story_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		n.ID, n.RecipientID, string(n.Type), n.FromUserID, n.PostID, n.StoryID, toUnix(n.CreatedAt),
	); err != nil {
		return fmt.Errorf("sqlite: creating %s notification for %s: %w", n.Type, n.RecipientID, err)
	}
	return nil
}

func (db *DB) ListNotifications(ctx context.Context, recipientID string, opts repository.ListOptions) ([]model.Notification, error) {
	limit, offset := pageBounds(opts)

	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, recipient_id, type, from_user_id, post_id, story_id, created_at
		 FROM notifications
		 WHERE recipient_id = ?
		 ORDER BY created_at DESC
		 LIMIT ? OFFSET ?`,
		recipientID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing notifications for %s: %w", recipientID, err)
	}
	defer rows.Close()

	out := make([]model.Notification, 0, limit)
	for rows.Next() {
		var (
			n         model.Notification
			typ       string
			createdAt int64
		)
		if err := rows.Scan(&n.ID, &n.RecipientID, &typ, &n.FromUserID, &n.PostID, &n.StoryID, &createdAt); err != nil {
			return nil, fmt.Errorf("sqlite: scanning notification: %w", err)
		}
		n.Type = model.NotificationType(typ)
		n.CreatedAt = fromUnix(createdAt)
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating notifications: %w", err)
	}
	return out, nil
}
