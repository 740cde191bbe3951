package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/storyline/internal/service"
)

// UserHandler serves profiles, user search, avatars and the follow graph.
type UserHandler struct {
	users     *service.UserService
	graph     *service.GraphService
	maxUpload int64
	logger    *slog.Logger
}

func NewUserHandler(users *service.UserService, graph *service.GraphService, maxUpload int64, logger *slog.Logger) *UserHandler {
	return &UserHandler{users: users, graph: graph, maxUpload: maxUpload, logger: logger}
}

// HandleSearch finds users by username prefix.
//
// HTTP: GET /api/users/search?q=ali&limit=10
func (h *UserHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	users, err := h.users.Search(r.Context(), r.URL.Query().Get("q"), limit)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

// HandleProfile returns a user with follower, following and post counts.
//
// HTTP: GET /api/users/{id}
func (h *UserHandler) HandleProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := h.users.Profile(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

type updateProfileRequest struct {
	Bio string `json:"bio"`
}

// HandleUpdateProfile replaces the caller's bio.
//
// HTTP: PUT /api/users/me
func (h *UserHandler) HandleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUser(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	var req updateProfileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	user, err := h.users.UpdateProfile(r.Context(), userID, req.Bio)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// HandleUpdateAvatar replaces the caller's profile image.
//
// HTTP: PUT /api/users/me/avatar (multipart/form-data, field "file")
func (h *UserHandler) HandleUpdateAvatar(w http.ResponseWriter, r *http.Request) {
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

	user, err := h.users.UpdateAvatar(r.Context(), userID, upload.File, upload.Size)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// HandleFollow makes the caller follow {id}.
//
// HTTP: POST /api/users/{id}/follow
func (h *UserHandler) HandleFollow(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUser(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	if err := h.graph.Follow(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleUnfollow removes the edge. Succeeds when there was none.
//
// HTTP: DELETE /api/users/{id}/follow
func (h *UserHandler) HandleUnfollow(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUser(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	if err := h.graph.Unfollow(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HTTP: GET /api/users/{id}/followers
func (h *UserHandler) HandleFollowers(w http.ResponseWriter, r *http.Request) {
	users, err := h.graph.Followers(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

// HTTP: GET /api/users/{id}/following
func (h *UserHandler) HandleFollowing(w http.ResponseWriter, r *http.Request) {
	users, err := h.graph.Following(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}
