package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/sakif/storyline/internal/service"
)

// FeedHandler serves the two home feeds and the notification list.
type FeedHandler struct {
	feed          *service.FeedService
	notifications *service.NotificationService
	now           func() time.Time
	logger        *slog.Logger
}

func NewFeedHandler(feed *service.FeedService, notifications *service.NotificationService, logger *slog.Logger) *FeedHandler {
	return &FeedHandler{
		feed:          feed,
		notifications: notifications,
		now:           func() time.Time { return time.Now().UTC() },
		logger:        logger,
	}
}

// HTTP: GET /api/feed/stories
func (h *FeedHandler) HandleStories(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUser(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	stories, err := h.feed.StoriesFeed(r.Context(), userID, h.now())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, stories)
}

// HTTP: GET /api/feed/posts?page=&pageSize=
func (h *FeedHandler) HandlePosts(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUser(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	posts, err := h.feed.PostsFeed(r.Context(), userID, pageFromQuery(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, posts)
}

// HTTP: GET /api/notifications?page=&pageSize=
func (h *FeedHandler) HandleNotifications(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUser(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	notifications, err := h.notifications.List(r.Context(), userID, pageFromQuery(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, notifications)
}
