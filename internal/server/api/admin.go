package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"

	"github.com/rs/zerolog/hlog"

	"scholar-watch/contenthub/internal/dedupe"
	"scholar-watch/contenthub/internal/ingest"
	"scholar-watch/contenthub/internal/models"
)

// ImportContents handles POST /v1/admin/contents/import. The body is a JSON
// array of raw items, or an object with an "items" array. Elements that are
// not objects are rejected individually; the rest of the batch proceeds.
func (h *Handler) ImportContents(w http.ResponseWriter, r *http.Request) {
	log := hlog.FromRequest(r)

	payload, err := decodeImportBody(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if payload.total > h.maxImportItems {
		writeError(w, r, http.StatusBadRequest,
			fmt.Sprintf("Batch too large: at most %d items per import", h.maxImportItems))
		return
	}

	result, err := h.importer.Import(r.Context(), payload.items)
	if errors.Is(err, ingest.ErrNoValidItems) {
		// The accounting still describes every rejected item.
		payload.merge(result)
		writeJSON(w, r, http.StatusBadRequest, result)
		return
	}
	if err != nil {
		log.Error().Err(err).Msg("Import failed")
		writeError(w, r, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	payload.merge(result)
	writeJSON(w, r, http.StatusOK, result)
}

// maxImportBodyBytes bounds the import payload before JSON decoding.
const maxImportBodyBytes = 16 << 20

// importPayload is one decoded import body. items holds the elements that
// parsed as raw items; indexes maps each back to its position in the
// submitted batch so rejections keep the caller's numbering.
type importPayload struct {
	total    int
	items    []models.RawItem
	indexes  []int
	rejected []ingest.Rejection
}

// merge folds the decode-time rejections into a pipeline result and restores
// the submitted batch's indexes.
func (p *importPayload) merge(result *ingest.Result) {
	result.Total = p.total
	result.Invalid += len(p.rejected)
	for i := range result.Errors {
		result.Errors[i].Index = p.indexes[result.Errors[i].Index]
	}
	result.Errors = append(result.Errors, p.rejected...)
	sort.Slice(result.Errors, func(i, j int) bool {
		return result.Errors[i].Index < result.Errors[j].Index
	})
	if len(result.Errors) > ingest.MaxReportedErrors {
		result.Errors = result.Errors[:ingest.MaxReportedErrors]
	}
}

func decodeImportBody(r *http.Request) (*importPayload, error) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxImportBodyBytes))
	if err != nil {
		return nil, errors.New("Failed to read request body")
	}

	var elements []json.RawMessage
	if err := json.Unmarshal(data, &elements); err != nil {
		var envelope struct {
			Items []json.RawMessage `json:"items"`
		}
		if err := json.Unmarshal(data, &envelope); err != nil || envelope.Items == nil {
			return nil, errors.New("Invalid request body: expected a JSON array of items")
		}
		elements = envelope.Items
	}

	payload := &importPayload{total: len(elements)}
	for i, raw := range elements {
		var item models.RawItem
		if err := json.Unmarshal(raw, &item); err != nil {
			payload.rejected = append(payload.rejected, ingest.Rejection{Index: i, Reason: "invalid item"})
			continue
		}
		payload.items = append(payload.items, item)
		payload.indexes = append(payload.indexes, i)
	}
	return payload, nil
}

type dedupeRequest struct {
	DryRun bool `json:"dry_run"`
}

// RunDedupe handles POST /v1/admin/maintenance/dedupe.
func (h *Handler) RunDedupe(w http.ResponseWriter, r *http.Request) {
	log := hlog.FromRequest(r)

	var req dedupeRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, r, http.StatusBadRequest, "Invalid request body")
			return
		}
	}

	result, err := dedupe.Sweep(r.Context(), h.db, req.DryRun)
	if err != nil {
		log.Error().Err(err).Msg("Dedup sweep failed")
		writeError(w, r, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	writeJSON(w, r, http.StatusOK, result)
}

// GetStats handles GET /v1/admin/stats.
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	log := hlog.FromRequest(r)

	stats, err := h.repo.Stats(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Error computing stats")
		writeError(w, r, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	writeJSON(w, r, http.StatusOK, stats)
}
