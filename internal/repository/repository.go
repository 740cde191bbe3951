// Package repository declares the storage interfaces the service layer
// depends on. The only production implementation lives in
// repository/sqlite; service tests use in-memory fakes.
//
// Conventions shared by every implementation:
//   - a missing row is reported as apperror.NotFound
//   - a uniqueness violation is reported as apperror.Conflict
//   - Create methods assign ID and timestamps on the passed struct
package repository

import (
	"context"
	"time"

	"github.com/sakif/storyline/internal/model"
)

type ListOptions struct {
	Limit  int
	Offset int
}

type UserRepository interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByLogin(ctx context.Context, usernameOrEmail string) (*model.User, error)
	GetUserByGitHubID(ctx context.Context, githubID int64) (*model.User, error)
	SearchUsers(ctx context.Context, prefix string, limit int) ([]model.User, error)
	UpdateAvatar(ctx context.Context, userID string, avatar *model.Media) error
	UpdateBio(ctx context.Context, userID, bio string) error
}

type FollowRepository interface {
	CreateFollow(ctx context.Context, follow *model.Follow) error
	// DeleteFollow removes the edge; absence is not an error.
	DeleteFollow(ctx context.Context, followerID, followedID string) error
	FollowedIDs(ctx context.Context, followerID string) ([]string, error)
	FollowerIDs(ctx context.Context, followedID string) ([]string, error)
	CountFollows(ctx context.Context, userID string) (followers, following int, err error)
}

type PostRepository interface {
	CreatePost(ctx context.Context, post *model.Post) error
	GetPost(ctx context.Context, id string) (*model.Post, error)
	ListPostsByOwners(ctx context.Context, ownerIDs []string, opts ListOptions) ([]model.Post, error)
	ListPostsByHashtag(ctx context.Context, tag string, opts ListOptions) ([]model.Post, error)
	CountPosts(ctx context.Context, ownerID string) (int, error)
	DeletePost(ctx context.Context, id string) error
}

type StoryRepository interface {
	CreateStory(ctx context.Context, story *model.Story) error
	// GetStory returns the story regardless of visibility.
	GetStory(ctx context.Context, id string) (*model.Story, error)
	// ListVisibleStories returns stories owned by any of ownerIDs that are
	// active and expire strictly after now, newest first.
	ListVisibleStories(ctx context.Context, ownerIDs []string, now time.Time) ([]model.Story, error)
	// ListExpiredStories returns an owner's stories that are no longer
	// visible at now, newest first.
	ListExpiredStories(ctx context.Context, ownerID string, now time.Time, opts ListOptions) ([]model.Story, error)
	DeleteStory(ctx context.Context, id string) error
	// DeactivateExpired sets is_active = false on every active story whose
	// expiry is at or before now and returns how many rows changed.
	DeactivateExpired(ctx context.Context, now time.Time) (int64, error)
}

type StoryViewRepository interface {
	CreateStoryView(ctx context.Context, view *model.StoryView) error
	ListStoryViews(ctx context.Context, storyID string) ([]model.StoryView, error)
}

type LikeRepository interface {
	CreateLike(ctx context.Context, like *model.Like) error
	// DeleteLike removes the like; absence is not an error.
	DeleteLike(ctx context.Context, postID, userID string) error
	CountLikes(ctx context.Context, postID string) (int, error)
}

type CommentRepository interface {
	CreateComment(ctx context.Context, comment *model.Comment) error
	ListComments(ctx context.Context, postID string, opts ListOptions) ([]model.Comment, error)
}

type NotificationRepository interface {
	CreateNotification(ctx context.Context, n *model.Notification) error
	ListNotifications(ctx context.Context, recipientID string, opts ListOptions) ([]model.Notification, error)
}
