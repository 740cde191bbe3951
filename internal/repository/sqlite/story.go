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

var (
	_ repository.StoryRepository     = (*DB)(nil)
	_ repository.StoryViewRepository = (*DB)(nil)
)

const storyColumns = `id, owner_id, media_id, media_url, caption, created_at, expires_at, is_active`

// CreateStory inserts the story as given. CreatedAt, ExpiresAt and IsActive
// are decided by the caller (the story service owns the TTL); only the ID is
// generated here.
func (db *DB) CreateStory(ctx context.Context, story *model.Story) error {
	story.ID = xid.New().String()
	if story.CreatedAt.IsZero() {
		story.CreatedAt = time.Now().UTC()
	}

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO stories (`+storyColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		story.ID,
		story.OwnerID,
		story.Media.ID,
		story.Media.URL,
		story.Caption,
		toUnix(story.CreatedAt),
		toUnix(story.ExpiresAt),
		story.IsActive,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating story for %s: %w", story.OwnerID, err)
	}
	return nil
}

func (db *DB) GetStory(ctx context.Context, id string) (*model.Story, error) {
	s, err := scanStory(db.conn.QueryRowContext(ctx,
		`SELECT `+storyColumns+` FROM stories WHERE id = ?`, id,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("story", id)
		}
		return nil, fmt.Errorf("sqlite: getting story %s: %w", id, err)
	}
	return s, nil
}

// ListVisibleStories is the storage half of the visibility predicate:
// is_active AND expires_at > now. It must stay in step with
// model.Story.IsVisible.
func (db *DB) ListVisibleStories(ctx context.Context, ownerIDs []string, now time.Time) ([]model.Story, error) {
	if len(ownerIDs) == 0 {
		return []model.Story{}, nil
	}

	owners, err := idList(ownerIDs)
	if err != nil {
		return nil, err
	}

	return db.queryStories(ctx,
		`SELECT `+storyColumns+` FROM stories
		 WHERE owner_id IN `+inList+`
		   AND is_active = 1
		   AND expires_at > ?
		 ORDER BY created_at DESC`,
		owners, toUnix(now),
	)
}

// ListExpiredStories is the complement of ListVisibleStories for one owner.
func (db *DB) ListExpiredStories(ctx context.Context, ownerID string, now time.Time, opts repository.ListOptions) ([]model.Story, error) {
	limit, offset := pageBounds(opts)

	return db.queryStories(ctx,
		`SELECT `+storyColumns+` FROM stories
		 WHERE owner_id = ?
		   AND (is_active = 0 OR expires_at <= ?)
		 ORDER BY created_at DESC
		 LIMIT ? OFFSET ?`,
		ownerID, toUnix(now), limit, offset,
	)
}

// DeleteStory removes the story and its view rows. The two deletes share a
// transaction so a story never disappears while leaving its views behind.
func (db *DB) DeleteStory(ctx context.Context, id string) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning delete of story %s: %w", id, err)
	}
	defer tx.Rollback() // no-op after Commit

	if _, err := tx.ExecContext(ctx, `DELETE FROM story_views WHERE story_id = ?`, id); err != nil {
		return fmt.Errorf("sqlite: deleting views of story %s: %w", id, err)
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM stories WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting story %s: %w", id, err)
	}
	if err := checkAffected(result, apperror.NotFound("story", id)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing delete of story %s: %w", id, err)
	}
	return nil
}

// DeactivateExpired is the sweep: one UPDATE over every story whose expiry
// has passed. The is_active = 1 filter makes a second run with the same now
// report zero changed rows.
func (db *DB) DeactivateExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE stories SET is_active = 0 WHERE is_active = 1 AND expires_at <= ?`,
		toUnix(now),
	)
	if err != nil {
		return 0, fmt.Errorf("sqlite: deactivating expired stories: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	return n, nil
}

// =========================================================================
// STORY VIEWS
// =========================================================================

// CreateStoryView appends a view row. There is deliberately no uniqueness on
// (story_id, viewer_id): every view is recorded.
func (db *DB) CreateStoryView(ctx context.Context, view *model.StoryView) error {
	view.ID = xid.New().String()
	if view.ViewedAt.IsZero() {
		view.ViewedAt = time.Now().UTC()
	}

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO story_views (id, story_id, viewer_id, viewed_at) VALUES (?, ?, ?, ?)`,
		view.ID, view.StoryID, view.ViewerID, toUnix(view.ViewedAt),
	)
	if err != nil {
		return fmt.Errorf("sqlite: recording view of story %s: %w", view.StoryID, err)
	}
	return nil
}

func (db *DB) ListStoryViews(ctx context.Context, storyID string) ([]model.StoryView, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, story_id, viewer_id, viewed_at FROM story_views
		 WHERE story_id = ?
		 ORDER BY viewed_at DESC`,
		storyID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing views of story %s: %w", storyID, err)
	}
	defer rows.Close()

	views := []model.StoryView{}
	for rows.Next() {
		var (
			v        model.StoryView
			viewedAt int64
		)
		if err := rows.Scan(&v.ID, &v.StoryID, &v.ViewerID, &viewedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scanning story view: %w", err)
		}
		v.ViewedAt = fromUnix(viewedAt)
		views = append(views, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating story views: %w", err)
	}
	return views, nil
}

func (db *DB) queryStories(ctx context.Context, query string, args ...any) ([]model.Story, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: querying stories: %w", err)
	}
	defer rows.Close()

	stories := []model.Story{}
	for rows.Next() {
		s, err := scanStory(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning story row: %w", err)
		}
		stories = append(stories, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating stories: %w", err)
	}
	return stories, nil
}

func scanStory(row rowScanner) (*model.Story, error) {
	var (
		s                    model.Story
		createdAt, expiresAt int64
	)
	if err := row.Scan(
		&s.ID,
		&s.OwnerID,
		&s.Media.ID,
		&s.Media.URL,
		&s.Caption,
		&createdAt,
		&expiresAt,
		&s.IsActive,
	); err != nil {
		return nil, err
	}
	s.CreatedAt = fromUnix(createdAt)
	s.ExpiresAt = fromUnix(expiresAt)
	return &s, nil
}
