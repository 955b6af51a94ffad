package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog/hlog"

	"scholar-watch/contenthub/internal/server/storage"
)

type templateRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

func (t *templateRequest) validate() string {
	t.Title = strings.TrimSpace(t.Title)
	t.Content = strings.TrimSpace(t.Content)
	if t.Title == "" || t.Content == "" {
		return "Both 'title' and 'content' are required"
	}
	return ""
}

// ListTemplates handles GET /v1/reply-templates.
func (h *Handler) ListTemplates(w http.ResponseWriter, r *http.Request) {
	log := hlog.FromRequest(r)

	templates, err := h.repo.ListTemplates(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Error listing reply templates")
		writeError(w, r, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	writeJSON(w, r, http.StatusOK, templates)
}

// CreateTemplate handles POST /v1/admin/reply-templates.
func (h *Handler) CreateTemplate(w http.ResponseWriter, r *http.Request) {
	log := hlog.FromRequest(r)

	var req templateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}
	if msg := req.validate(); msg != "" {
		writeError(w, r, http.StatusBadRequest, msg)
		return
	}

	template, err := h.repo.CreateTemplate(r.Context(), req.Title, req.Content)
	if err != nil {
		log.Error().Err(err).Msg("Error creating reply template")
		writeError(w, r, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	writeJSON(w, r, http.StatusCreated, template)
}

// UpdateTemplate handles PUT /v1/admin/reply-templates/{id}.
func (h *Handler) UpdateTemplate(w http.ResponseWriter, r *http.Request) {
	log := hlog.FromRequest(r)

	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, r, http.StatusBadRequest, "Invalid template id")
		return
	}

	var req templateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}
	if msg := req.validate(); msg != "" {
		writeError(w, r, http.StatusBadRequest, msg)
		return
	}

	template, err := h.repo.UpdateTemplate(r.Context(), id, req.Title, req.Content)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, r, http.StatusNotFound, "Template not found")
		return
	}
	if err != nil {
		log.Error().Err(err).Int64("template_id", id).Msg("Error updating reply template")
		writeError(w, r, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	writeJSON(w, r, http.StatusOK, template)
}

// DeleteTemplate handles DELETE /v1/admin/reply-templates/{id}.
func (h *Handler) DeleteTemplate(w http.ResponseWriter, r *http.Request) {
	log := hlog.FromRequest(r)

	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, r, http.StatusBadRequest, "Invalid template id")
		return
	}

	err = h.repo.DeleteTemplate(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, r, http.StatusNotFound, "Template not found")
		return
	}
	if err != nil {
		log.Error().Err(err).Int64("template_id", id).Msg("Error deleting reply template")
		writeError(w, r, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
