package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/sakif/storyline/internal/apperror"
	"github.com/sakif/storyline/internal/model"
	"github.com/sakif/storyline/internal/repository"
)

type GraphService struct {
	users    repository.UserRepository
	follows  repository.FollowRepository
	notifier Notifier
	logger   *slog.Logger
}

func NewGraphService(users repository.UserRepository, follows repository.FollowRepository, notifier Notifier, logger *slog.Logger) *GraphService {
	return &GraphService{users: users, follows: follows, notifier: notifier, logger: logger}
}

// Follow adds the edge followerID → targetID and notifies the target.
// A second follow of the same user is a Conflict decided by the store.
func (s *GraphService) Follow(ctx context.Context, followerID, targetID string) error {
	if followerID == targetID {
		return apperror.InvalidArgument("you cannot follow yourself")
	}
	if _, err := s.users.GetUserByID(ctx, targetID); err != nil {
		return err
	}

	if err := s.follows.CreateFollow(ctx, &model.Follow{FollowerID: followerID, FollowedID: targetID}); err != nil {
		return err
	}

	s.logger.Info("user followed", slog.String("follower", followerID), slog.String("followed", targetID))
	s.notifier.Notify(ctx, model.Notification{
		RecipientID: targetID,
		Type:        model.NotificationFollow,
		FromUserID:  followerID,
	})
	return nil
}

// Unfollow removes the edge. Unfollowing someone you do not follow succeeds,
// and that includes yourself: a self-edge never exists.
func (s *GraphService) Unfollow(ctx context.Context, followerID, targetID string) error {
	return s.follows.DeleteFollow(ctx, followerID, targetID)
}

func (s *GraphService) Followers(ctx context.Context, userID string) ([]model.User, error) {
	if _, err := s.users.GetUserByID(ctx, userID); err != nil {
		return nil, err
	}
	ids, err := s.follows.FollowerIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.resolve(ctx, ids)
}

func (s *GraphService) Following(ctx context.Context, userID string) ([]model.User, error) {
	if _, err := s.users.GetUserByID(ctx, userID); err != nil {
		return nil, err
	}
	ids, err := s.follows.FollowedIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.resolve(ctx, ids)
}

// resolve loads users in the order of ids. Ids whose user has since
// disappeared are skipped.
func (s *GraphService) resolve(ctx context.Context, ids []string) ([]model.User, error) {
	users := make([]model.User, 0, len(ids))
	for _, id := range ids {
		u, err := s.users.GetUserByID(ctx, id)
		if err != nil {
			if errors.Is(err, apperror.ErrNotFound) {
				continue
			}
			return nil, err
		}
		users = append(users, *u)
	}
	return users, nil
}
