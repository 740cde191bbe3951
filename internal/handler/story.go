package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/storyline/internal/service"
)

// StoryHandler serves story upload, viewing and deletion. Every visibility
// decision uses the handler's clock, read once per request.
type StoryHandler struct {
	stories   *service.StoryService
	maxUpload int64
	now       func() time.Time
	logger    *slog.Logger
}

func NewStoryHandler(stories *service.StoryService, maxUpload int64, logger *slog.Logger) *StoryHandler {
	return &StoryHandler{
		stories:   stories,
		maxUpload: maxUpload,
		now:       func() time.Time { return time.Now().UTC() },
		logger:    logger,
	}
}

// HandleCreate uploads the media and publishes a story.
//
// HTTP: POST /api/stories (multipart/form-data: file, caption)
func (h *StoryHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
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

	story, err := h.stories.Publish(r.Context(), userID, upload.File, upload.Size, upload.Value("caption"), h.now())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, story)
}

// HandleGet returns a story while it is visible; afterwards it is 404.
//
// HTTP: GET /api/stories/{id}
func (h *StoryHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	story, err := h.stories.Get(r.Context(), chi.URLParam(r, "id"), h.now())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, story)
}

// HandleListByOwner returns a user's visible stories.
//
// HTTP: GET /api/users/{id}/stories
func (h *StoryHandler) HandleListByOwner(w http.ResponseWriter, r *http.Request) {
	stories, err := h.stories.ListByOwner(r.Context(), chi.URLParam(r, "id"), h.now())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, stories)
}

// HandleArchive returns the caller's own expired stories.
//
// HTTP: GET /api/stories/archive?page=&pageSize=
func (h *StoryHandler) HandleArchive(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUser(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	stories, err := h.stories.Archive(r.Context(), userID, h.now(), pageFromQuery(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, stories)
}

// HandleDelete removes one of the caller's stories.
//
// HTTP: DELETE /api/stories/{id}
func (h *StoryHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUser(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	if err := h.stories.Delete(r.Context(), chi.URLParam(r, "id"), userID); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleRecordView records that the caller watched the story.
//
// HTTP: POST /api/stories/{id}/views
func (h *StoryHandler) HandleRecordView(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUser(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	view, err := h.stories.RecordView(r.Context(), chi.URLParam(r, "id"), userID, h.now())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

// HandleViewers lists who watched the story. Owner only.
//
// HTTP: GET /api/stories/{id}/views
func (h *StoryHandler) HandleViewers(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUser(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	views, err := h.stories.Viewers(r.Context(), chi.URLParam(r, "id"), userID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}
