// Package api implements the HTTP handlers of the content service.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/hlog"

	"scholar-watch/contenthub/internal/database"
	"scholar-watch/contenthub/internal/ingest"
	"scholar-watch/contenthub/internal/reply"
	"scholar-watch/contenthub/internal/server/storage"
	"scholar-watch/contenthub/internal/zhihuauth"
)

// Handler holds dependencies shared by all endpoints. Loggers come from the
// request context, not from the struct.
type Handler struct {
	repo     storage.ContentRepository
	db       *database.DB
	importer *ingest.Service
	sender   *reply.Sender
	oauth    zhihuauth.Config

	maxImportItems int
}

// NewHandler creates the API handler.
func NewHandler(db *database.DB, oauth zhihuauth.Config, maxImportItems int) *Handler {
	return &Handler{
		repo:           storage.NewRepository(db),
		db:             db,
		importer:       ingest.NewService(db),
		sender:         reply.NewSender(db),
		oauth:          oauth,
		maxImportItems: maxImportItems,
	}
}

// writeJSON marshals v and sends it with the given status. Marshal failures
// turn into a 500 before any body is written.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	log := hlog.FromRequest(r)

	jsonBytes, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("Error marshaling JSON response")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(jsonBytes); err != nil {
		log.Error().Err(err).Msg("Error writing JSON response body to client")
	}
}

type errorBody struct {
	Error string `json:"error"`
}

// writeError sends a JSON error body with the given status.
func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeJSON(w, r, status, errorBody{Error: msg})
}
