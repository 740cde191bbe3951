package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/storyline/internal/model"
	"github.com/sakif/storyline/internal/service"
)

// PostHandler serves posts and the likes and comments attached to them.
type PostHandler struct {
	posts      *service.PostService
	engagement *service.EngagementService
	maxUpload  int64
	logger     *slog.Logger
}

func NewPostHandler(posts *service.PostService, engagement *service.EngagementService, maxUpload int64, logger *slog.Logger) *PostHandler {
	return &PostHandler{posts: posts, engagement: engagement, maxUpload: maxUpload, logger: logger}
}

// postResponse is a post with its like count.
type postResponse struct {
	model.Post
	Likes int `json:"likes"`
}

type commentRequest struct {
	Text string `json:"text"`
}

// HandleCreate uploads the media and publishes a post.
//
// HTTP: POST /api/posts (multipart/form-data: file, caption, hashtags)
//
// hashtags may be repeated or comma-separated; #tags in the caption are
// picked up as well.
func (h *PostHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUser(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	upload, err := parseUpload(w, r, h.maxUpload)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	defer upload.Close()

	var tags []string
	for _, v := range upload.Values("hashtags") {
		for _, t := range strings.Split(v, ",") {
			if t = strings.TrimSpace(t); t != "" {
				tags = append(tags, t)
			}
		}
	}

	post, err := h.posts.Publish(r.Context(), userID, upload.File, upload.Size, upload.Value("caption"), tags)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, postResponse{Post: *post})
}

// HTTP: GET /api/posts/{id}
func (h *PostHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	post, err := h.posts.Get(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	likes, err := h.engagement.Likes(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, postResponse{Post: *post, Likes: likes})
}

// HTTP: GET /api/users/{id}/posts?page=&pageSize=
func (h *PostHandler) HandleListByOwner(w http.ResponseWriter, r *http.Request) {
	posts, err := h.posts.ListByOwner(r.Context(), chi.URLParam(r, "id"), pageFromQuery(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, posts)
}

// HandleSearch finds posts carrying a hashtag.
//
// HTTP: GET /api/posts/search?tag=travel&page=&pageSize=
func (h *PostHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	posts, err := h.posts.SearchByHashtag(r.Context(), r.URL.Query().Get("tag"), pageFromQuery(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, posts)
}

// HTTP: DELETE /api/posts/{id}
func (h *PostHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUser(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	if err := h.posts.Delete(r.Context(), chi.URLParam(r, "id"), userID); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleLike answers 409 when the caller already likes the post.
//
// HTTP: POST /api/posts/{id}/like
func (h *PostHandler) HandleLike(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUser(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	if err := h.engagement.Like(r.Context(), chi.URLParam(r, "id"), userID); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HTTP: DELETE /api/posts/{id}/like
func (h *PostHandler) HandleUnlike(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUser(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	if err := h.engagement.Unlike(r.Context(), chi.URLParam(r, "id"), userID); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HTTP: GET /api/posts/{id}/comments?page=&pageSize=
func (h *PostHandler) HandleComments(w http.ResponseWriter, r *http.Request) {
	comments, err := h.engagement.Comments(r.Context(), chi.URLParam(r, "id"), pageFromQuery(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, comments)
}

// HandleAddComment appends a comment.
//
// HTTP: POST /api/posts/{id}/comments
// REQUEST BODY: {"text": "nice shot"}
func (h *PostHandler) HandleAddComment(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUser(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	var req commentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	comment, err := h.engagement.Comment(r.Context(), chi.URLParam(r, "id"), userID, req.Text)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, comment)
}
