package service

import (
	"context"
	"time"

	"github.com/sakif/storyline/internal/model"
	"github.com/sakif/storyline/internal/repository"
)

// FeedService composes the two home feeds from the follow graph. Neither
// feed includes the viewer's own content.
type FeedService struct {
	follows repository.FollowRepository
	stories repository.StoryRepository
	posts   repository.PostRepository
}

func NewFeedService(follows repository.FollowRepository, stories repository.StoryRepository, posts repository.PostRepository) *FeedService {
	return &FeedService{follows: follows, stories: stories, posts: posts}
}

// StoriesFeed returns the visible stories of everyone viewerID follows,
// newest first. Following nobody yields an empty slice.
func (s *FeedService) StoriesFeed(ctx context.Context, viewerID string, now time.Time) ([]model.Story, error) {
	ids, err := s.follows.FollowedIDs(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []model.Story{}, nil
	}
	return s.stories.ListVisibleStories(ctx, ids, now)
}

// PostsFeed returns one page of posts by followed users, newest first.
func (s *FeedService) PostsFeed(ctx context.Context, viewerID string, page Page) ([]model.Post, error) {
	ids, err := s.follows.FollowedIDs(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []model.Post{}, nil
	}
	return s.posts.ListPostsByOwners(ctx, ids, page.Options())
}
