package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/sakif/storyline/internal/apperror"
	"github.com/sakif/storyline/internal/media"
	"github.com/sakif/storyline/internal/model"
	"github.com/sakif/storyline/internal/repository"
)

const (
	MaxHashtags      = 30
	MaxHashtagLength = 100
)

var (
	hashtagPattern = regexp.MustCompile(`#([\p{L}\p{N}_]+)`)
	tagPattern     = regexp.MustCompile(`^[\p{L}\p{N}_]+$`)
)

type PostService struct {
	posts    repository.PostRepository
	media    media.Store
	maxBytes int64
	logger   *slog.Logger
}

func NewPostService(posts repository.PostRepository, store media.Store, maxBytes int64, logger *slog.Logger) *PostService {
	return &PostService{
		posts:    posts,
		media:    store,
		maxBytes: maxBytes,
		logger:   logger,
	}
}

// Publish uploads the media and creates the post. As with stories, the
// record is written only after a successful upload.
func (s *PostService) Publish(ctx context.Context, ownerID string, body io.ReadSeeker, size int64, caption string, tags []string) (*model.Post, error) {
	if _, err := buildHashtags(caption, tags); err != nil {
		return nil, err
	}
	if err := validateCaption(caption); err != nil {
		return nil, err
	}

	uploaded, err := s.media.Upload(ctx, media.Upload{
		Body:        body,
		Size:        size,
		Folder:      media.FolderPosts,
		Constraints: media.MediaConstraints(s.maxBytes),
	})
	if err != nil {
		return nil, err
	}

	post, err := s.Create(ctx, ownerID, *uploaded, caption, tags)
	if err != nil {
		if derr := s.media.Delete(ctx, uploaded.ID); derr != nil {
			s.logger.Error("failed to delete orphaned post media",
				slog.String("mediaID", uploaded.ID),
				slog.String("error", derr.Error()),
			)
		}
		return nil, err
	}
	return post, nil
}

// Create records a post for already-stored media. Hashtags are the union of
// the #tags in the caption and the explicit tags, lower-cased and without
// duplicates.
func (s *PostService) Create(ctx context.Context, ownerID string, m model.Media, caption string, tags []string) (*model.Post, error) {
	if m.ID == "" || m.URL == "" {
		return nil, apperror.ValidationFailed("media", "media reference is required")
	}
	if err := validateCaption(caption); err != nil {
		return nil, err
	}
	hashtags, err := buildHashtags(caption, tags)
	if err != nil {
		return nil, err
	}

	post := &model.Post{
		OwnerID:   ownerID,
		Media:     m,
		Caption:   caption,
		Hashtags:  hashtags,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.posts.CreatePost(ctx, post); err != nil {
		return nil, err
	}

	s.logger.Info("post created",
		slog.String("postID", post.ID),
		slog.String("ownerID", ownerID),
		slog.Int("hashtags", len(hashtags)),
	)
	return post, nil
}

func (s *PostService) Get(ctx context.Context, postID string) (*model.Post, error) {
	return s.posts.GetPost(ctx, postID)
}

func (s *PostService) ListByOwner(ctx context.Context, ownerID string, page Page) ([]model.Post, error) {
	return s.posts.ListPostsByOwners(ctx, []string{ownerID}, page.Options())
}

// Delete removes the owner's post with its likes, comments and tags. A
// media delete failure is logged, not returned.
func (s *PostService) Delete(ctx context.Context, postID, requesterID string) error {
	post, err := s.posts.GetPost(ctx, postID)
	if err != nil {
		return err
	}
	if post.OwnerID != requesterID {
		return apperror.Forbidden("only the owner can delete a post")
	}

	if err := s.media.Delete(ctx, post.Media.ID); err != nil {
		s.logger.Error("failed to delete post media",
			slog.String("postID", postID),
			slog.String("mediaID", post.Media.ID),
			slog.String("error", err.Error()),
		)
	}

	if err := s.posts.DeletePost(ctx, postID); err != nil {
		return err
	}

	s.logger.Info("post deleted", slog.String("postID", postID), slog.String("ownerID", requesterID))
	return nil
}

// SearchByHashtag accepts the tag with or without its leading '#'.
func (s *PostService) SearchByHashtag(ctx context.Context, tag string, page Page) ([]model.Post, error) {
	normalized := normalizeHashtag(tag)
	if normalized == "" {
		return nil, apperror.ValidationFailed("tag", "hashtag is required")
	}
	return s.posts.ListPostsByHashtag(ctx, normalized, page.Options())
}

// ExtractHashtags returns the #tags in text, normalized, in order of first
// appearance.
func ExtractHashtags(text string) []string {
	matches := hashtagPattern.FindAllStringSubmatch(text, -1)
	tags := make([]string, 0, len(matches))
	for _, m := range matches {
		tags = append(tags, m[1])
	}
	return dedupeHashtags(tags)
}

func buildHashtags(caption string, explicit []string) ([]string, error) {
	tags := dedupeHashtags(append(ExtractHashtags(caption), explicit...))

	if len(tags) > MaxHashtags {
		return nil, apperror.ValidationFailed("hashtags",
			fmt.Sprintf("a post can have at most %d hashtags", MaxHashtags))
	}
	for _, t := range tags {
		if len(t) > MaxHashtagLength {
			return nil, apperror.ValidationFailed("hashtags",
				fmt.Sprintf("hashtag %q is longer than %d bytes", t, MaxHashtagLength))
		}
		if !tagPattern.MatchString(t) {
			return nil, apperror.ValidationFailed("hashtags",
				fmt.Sprintf("hashtag %q may only contain letters, digits and '_'", t))
		}
	}
	return tags, nil
}

func dedupeHashtags(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = normalizeHashtag(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

func normalizeHashtag(tag string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(tag), "#"))
}
