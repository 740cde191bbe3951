package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/sakif/storyline/internal/apperror"
	"github.com/sakif/storyline/internal/model"
	"github.com/sakif/storyline/internal/repository"
)

const MaxCommentLength = 2200

// EngagementService handles likes and comments on posts. Each successful
// write is followed by a notification to the post owner unless the actor is
// the owner.
type EngagementService struct {
	posts    repository.PostRepository
	likes    repository.LikeRepository
	comments repository.CommentRepository
	notifier Notifier
	logger   *slog.Logger
}

func NewEngagementService(
	posts repository.PostRepository,
	likes repository.LikeRepository,
	comments repository.CommentRepository,
	notifier Notifier,
	logger *slog.Logger,
) *EngagementService {
	return &EngagementService{
		posts:    posts,
		likes:    likes,
		comments: comments,
		notifier: notifier,
		logger:   logger,
	}
}

// Like records userID's like of postID. Of two concurrent likes by the same
// user exactly one succeeds; the other gets apperror.ErrConflict.
func (s *EngagementService) Like(ctx context.Context, postID, userID string) error {
	post, err := s.posts.GetPost(ctx, postID)
	if err != nil {
		return err
	}

	if err := s.likes.CreateLike(ctx, &model.Like{PostID: postID, UserID: userID}); err != nil {
		return err
	}

	if userID != post.OwnerID {
		s.notifier.Notify(ctx, model.Notification{
			RecipientID: post.OwnerID,
			Type:        model.NotificationLike,
			FromUserID:  userID,
			PostID:      postID,
		})
	}
	return nil
}

// Unlike is idempotent.
func (s *EngagementService) Unlike(ctx context.Context, postID, userID string) error {
	if _, err := s.posts.GetPost(ctx, postID); err != nil {
		return err
	}
	return s.likes.DeleteLike(ctx, postID, userID)
}

func (s *EngagementService) Likes(ctx context.Context, postID string) (int, error) {
	return s.likes.CountLikes(ctx, postID)
}

func (s *EngagementService) Comment(ctx context.Context, postID, userID, text string) (*model.Comment, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperror.ValidationFailed("text", "comment cannot be empty")
	}
	if utf8.RuneCountInString(text) > MaxCommentLength {
		return nil, apperror.ValidationFailed("text",
			fmt.Sprintf("comment must be at most %d characters", MaxCommentLength))
	}

	post, err := s.posts.GetPost(ctx, postID)
	if err != nil {
		return nil, err
	}

	comment := &model.Comment{PostID: postID, UserID: userID, Text: text}
	if err := s.comments.CreateComment(ctx, comment); err != nil {
		return nil, err
	}

	if userID != post.OwnerID {
		s.notifier.Notify(ctx, model.Notification{
			RecipientID: post.OwnerID,
			Type:        model.NotificationComment,
			FromUserID:  userID,
			PostID:      postID,
		})
	}
	return comment, nil
}

// Comments lists a post's comments oldest first.
func (s *EngagementService) Comments(ctx context.Context, postID string, page Page) ([]model.Comment, error) {
	if _, err := s.posts.GetPost(ctx, postID); err != nil {
		return nil, err
	}
	return s.comments.ListComments(ctx, postID, page.Options())
}
