package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/sakif/storyline/internal/apperror"
	"github.com/sakif/storyline/internal/media"
	"github.com/sakif/storyline/internal/model"
	"github.com/sakif/storyline/internal/repository"
)

const (
	DefaultSearchLimit = 20
	MaxBioLength       = 150
)

type UserService struct {
	users    repository.UserRepository
	follows  repository.FollowRepository
	posts    repository.PostRepository
	media    media.Store
	maxBytes int64
	logger   *slog.Logger
}

func NewUserService(
	users repository.UserRepository,
	follows repository.FollowRepository,
	posts repository.PostRepository,
	store media.Store,
	maxBytes int64,
	logger *slog.Logger,
) *UserService {
	return &UserService{
		users:    users,
		follows:  follows,
		posts:    posts,
		media:    store,
		maxBytes: maxBytes,
		logger:   logger,
	}
}

// Profile returns the user with follower, following and post counts.
func (s *UserService) Profile(ctx context.Context, userID string) (*model.Profile, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	followers, following, err := s.follows.CountFollows(ctx, userID)
	if err != nil {
		return nil, err
	}
	posts, err := s.posts.CountPosts(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &model.Profile{
		User:      *user,
		Followers: followers,
		Following: following,
		Posts:     posts,
	}, nil
}

// Search finds users whose username starts with query, ignoring case.
func (s *UserService) Search(ctx context.Context, query string, limit int) ([]model.User, error) {
	query = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(query), "@"))
	if query == "" {
		return nil, apperror.ValidationFailed("q", "search query is required")
	}
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	return s.users.SearchUsers(ctx, query, limit)
}

// UpdateProfile replaces the caller's bio. Surrounding whitespace is
// trimmed; an empty bio clears it.
func (s *UserService) UpdateProfile(ctx context.Context, userID, bio string) (*model.User, error) {
	bio = strings.TrimSpace(bio)
	if utf8.RuneCountInString(bio) > MaxBioLength {
		return nil, apperror.ValidationFailed("bio",
			fmt.Sprintf("bio must be at most %d characters", MaxBioLength))
	}

	if err := s.users.UpdateBio(ctx, userID, bio); err != nil {
		return nil, err
	}

	s.logger.Info("profile updated", slog.String("userID", userID))
	return s.users.GetUserByID(ctx, userID)
}

// UpdateAvatar uploads the new image, points the user at it and then
// deletes the previous image. Failing to delete the old image is logged and
// ignored; failing to save the new reference removes the fresh upload again.
func (s *UserService) UpdateAvatar(ctx context.Context, userID string, body io.ReadSeeker, size int64) (*model.User, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	previous := user.Avatar

	uploaded, err := s.media.Upload(ctx, media.Upload{
		Body:        body,
		Size:        size,
		Folder:      media.FolderAvatars,
		Constraints: media.ImageConstraints(s.maxBytes),
	})
	if err != nil {
		return nil, err
	}

	if err := s.users.UpdateAvatar(ctx, userID, uploaded); err != nil {
		s.discardMedia(ctx, uploaded.ID)
		return nil, err
	}
	user.Avatar = uploaded

	// External avatars (GitHub) have no delegate id and nothing to delete.
	if previous != nil && previous.ID != "" {
		s.discardMedia(ctx, previous.ID)
	}

	s.logger.Info("avatar updated", slog.String("userID", userID), slog.String("mediaID", uploaded.ID))
	return user, nil
}

func (s *UserService) discardMedia(ctx context.Context, mediaID string) {
	if err := s.media.Delete(ctx, mediaID); err != nil {
		s.logger.Error("failed to delete media",
			slog.String("mediaID", mediaID),
			slog.String("error", err.Error()),
		)
	}
}
