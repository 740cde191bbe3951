package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/sakif/storyline/internal/apperror"
	"github.com/sakif/storyline/internal/media"
	"github.com/sakif/storyline/internal/model"
	"github.com/sakif/storyline/internal/repository"
)

// StoryService owns the story lifecycle:
//
//	Created (active) → expiry passes → Swept (inactive)
//	        └──────── owner deletes ───────┴──→ Deleted
//
// Visibility is always model.Story.IsVisible(now). IsActive is never read on
// its own, so a story that has expired but has not been swept yet is already
// invisible everywhere.
type StoryService struct {
	stories  repository.StoryRepository
	views    repository.StoryViewRepository
	media    media.Store
	notifier Notifier
	ttl      time.Duration
	maxBytes int64
	logger   *slog.Logger
}

func NewStoryService(
	stories repository.StoryRepository,
	views repository.StoryViewRepository,
	store media.Store,
	notifier Notifier,
	ttl time.Duration,
	maxBytes int64,
	logger *slog.Logger,
) *StoryService {
	if ttl <= 0 {
		ttl = model.StoryTTL
	}
	return &StoryService{
		stories:  stories,
		views:    views,
		media:    store,
		notifier: notifier,
		ttl:      ttl,
		maxBytes: maxBytes,
		logger:   logger,
	}
}

// Publish uploads the media and creates the story. The record is written
// only after the delegate accepted the bytes; if the write then fails, the
// upload is deleted again.
func (s *StoryService) Publish(ctx context.Context, ownerID string, body io.ReadSeeker, size int64, caption string, now time.Time) (*model.Story, error) {
	if err := validateCaption(caption); err != nil {
		return nil, err
	}

	uploaded, err := s.media.Upload(ctx, media.Upload{
		Body:        body,
		Size:        size,
		Folder:      media.FolderStories,
		Constraints: media.MediaConstraints(s.maxBytes),
	})
	if err != nil {
		return nil, err
	}

	story, err := s.CreateStory(ctx, ownerID, *uploaded, caption, now)
	if err != nil {
		if derr := s.media.Delete(ctx, uploaded.ID); derr != nil {
			s.logger.Error("failed to delete orphaned story media",
				slog.String("mediaID", uploaded.ID),
				slog.String("error", derr.Error()),
			)
		}
		return nil, err
	}
	return story, nil
}

// CreateStory records a story for media that is already stored. It expires
// exactly one TTL after now.
func (s *StoryService) CreateStory(ctx context.Context, ownerID string, m model.Media, caption string, now time.Time) (*model.Story, error) {
	if m.ID == "" || m.URL == "" {
		return nil, apperror.ValidationFailed("media", "media reference is required")
	}
	if err := validateCaption(caption); err != nil {
		return nil, err
	}

	now = now.UTC()
	story := &model.Story{
		OwnerID:   ownerID,
		Media:     m,
		Caption:   caption,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
		IsActive:  true,
	}
	if err := s.stories.CreateStory(ctx, story); err != nil {
		return nil, err
	}

	s.logger.Info("story created",
		slog.String("storyID", story.ID),
		slog.String("ownerID", ownerID),
		slog.Time("expiresAt", story.ExpiresAt),
	)
	return story, nil
}

// Get returns the story only while it is visible. An expired or swept story
// is reported as not found, the same as a missing one.
func (s *StoryService) Get(ctx context.Context, storyID string, now time.Time) (*model.Story, error) {
	story, err := s.stories.GetStory(ctx, storyID)
	if err != nil {
		return nil, err
	}
	if !story.IsVisible(now) {
		return nil, apperror.NotFound("story", storyID)
	}
	return story, nil
}

// ListByOwner returns the owner's visible stories, newest first.
func (s *StoryService) ListByOwner(ctx context.Context, ownerID string, now time.Time) ([]model.Story, error) {
	return s.stories.ListVisibleStories(ctx, []string{ownerID}, now)
}

// Archive returns the owner's own stories that are no longer visible.
func (s *StoryService) Archive(ctx context.Context, ownerID string, now time.Time, page Page) ([]model.Story, error) {
	return s.stories.ListExpiredStories(ctx, ownerID, now, page.Options())
}

// RecordView appends a view of a visible story and notifies the owner.
// Every call records a new row. Viewing your own story records the view
// but sends no notification.
func (s *StoryService) RecordView(ctx context.Context, storyID, viewerID string, now time.Time) (*model.StoryView, error) {
	story, err := s.Get(ctx, storyID, now)
	if err != nil {
		return nil, err
	}

	view := &model.StoryView{
		StoryID:  storyID,
		ViewerID: viewerID,
		ViewedAt: now.UTC(),
	}
	if err := s.views.CreateStoryView(ctx, view); err != nil {
		return nil, err
	}

	if viewerID != story.OwnerID {
		s.notifier.Notify(ctx, model.Notification{
			RecipientID: story.OwnerID,
			Type:        model.NotificationStoryView,
			FromUserID:  viewerID,
			StoryID:     storyID,
		})
	}
	return view, nil
}

// Viewers lists every recorded view, newest first. Only the owner may see
// them, and still can after the story expired.
func (s *StoryService) Viewers(ctx context.Context, storyID, requesterID string) ([]model.StoryView, error) {
	story, err := s.stories.GetStory(ctx, storyID)
	if err != nil {
		return nil, err
	}
	if story.OwnerID != requesterID {
		return nil, apperror.Forbidden("only the owner can see who viewed a story")
	}
	return s.views.ListStoryViews(ctx, storyID)
}

// Delete removes the owner's story whatever its visibility. The media
// delegate is asked first; its failure is logged and does not stop the
// record from being removed.
func (s *StoryService) Delete(ctx context.Context, storyID, requesterID string) error {
	story, err := s.stories.GetStory(ctx, storyID)
	if err != nil {
		return err
	}
	if story.OwnerID != requesterID {
		return apperror.Forbidden("only the owner can delete a story")
	}

	if err := s.media.Delete(ctx, story.Media.ID); err != nil {
		s.logger.Error("failed to delete story media",
			slog.String("storyID", storyID),
			slog.String("mediaID", story.Media.ID),
			slog.String("error", err.Error()),
		)
	}

	if err := s.stories.DeleteStory(ctx, storyID); err != nil {
		return err
	}

	s.logger.Info("story deleted", slog.String("storyID", storyID), slog.String("ownerID", requesterID))
	return nil
}

// SweepExpired flips every expired, still-active story to inactive and
// returns how many changed. Running it twice with the same now changes
// nothing the second time. No rows and no media are deleted.
func (s *StoryService) SweepExpired(ctx context.Context, now time.Time) (int64, error) {
	n, err := s.stories.DeactivateExpired(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("service/story: sweeping expired stories: %w", err)
	}
	return n, nil
}

func validateCaption(caption string) error {
	if utf8.RuneCountInString(caption) > MaxCaptionLength {
		return apperror.ValidationFailed("caption",
			fmt.Sprintf("caption must be at most %d characters", MaxCaptionLength))
	}
	return nil
}
