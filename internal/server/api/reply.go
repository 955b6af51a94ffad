package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog/hlog"

	"scholar-watch/contenthub/internal/reply"
)

type replyRequest struct {
	ContentID int64  `json:"content_id"`
	Text      string `json:"text"`
}

// SendReply handles POST /v1/admin/reply: it posts the text as a comment on
// the platform hosting the content.
func (h *Handler) SendReply(w http.ResponseWriter, r *http.Request) {
	log := hlog.FromRequest(r)

	var req replyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.Text = strings.TrimSpace(req.Text)
	if req.ContentID <= 0 || req.Text == "" {
		writeError(w, r, http.StatusBadRequest, "Both 'content_id' and 'text' are required")
		return
	}

	err := h.sender.Send(r.Context(), req.ContentID, req.Text)
	switch {
	case errors.Is(err, reply.ErrContentNotFound):
		writeError(w, r, http.StatusNotFound, "Content not found")
	case errors.Is(err, reply.ErrNotAuthorized):
		writeError(w, r, http.StatusForbidden, "Platform account is not authorized")
	case errors.Is(err, reply.ErrUnsupportedPlatform):
		writeError(w, r, http.StatusBadRequest, "Replying is not supported for this platform")
	case err != nil:
		log.Error().Err(err).Int64("content_id", req.ContentID).Msg("Error sending reply")
		writeError(w, r, http.StatusInternalServerError, "Internal Server Error")
	default:
		writeJSON(w, r, http.StatusOK, map[string]bool{"sent": true})
	}
}
