package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/hlog"

	"scholar-watch/contenthub/internal/links"
	"scholar-watch/contenthub/internal/models"
	"scholar-watch/contenthub/internal/server/pagination"
	"scholar-watch/contenthub/internal/server/storage"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100

	feedDefaultLimit = 100
	feedMaxLimit     = 1000
)

// ListResponse is the envelope of the paged content listing.
type ListResponse struct {
	Items    []storage.ContentWithPlatform `json:"items"`
	Total    int64                         `json:"total"`
	Page     int                           `json:"page"`
	PageSize int                           `json:"page_size"`
}

// ListContents handles GET /v1/contents with filter and page parameters.
func (h *Handler) ListContents(w http.ResponseWriter, r *http.Request) {
	log := hlog.FromRequest(r)
	query := r.URL.Query()

	filter := storage.ContentFilter{
		ContentType: query.Get("content_type"),
		Keyword:     query.Get("keyword"),
		Page:        1,
		PageSize:    defaultPageSize,
	}

	if filter.ContentType != "" &&
		filter.ContentType != models.TypePost && filter.ContentType != models.TypeComment {
		writeError(w, r, http.StatusBadRequest, "Invalid 'content_type' parameter: must be 'post' or 'comment'")
		return
	}

	if v := query.Get("platform_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id <= 0 {
			writeError(w, r, http.StatusBadRequest, "Invalid 'platform_id' parameter")
			return
		}
		filter.PlatformID = &id
	}

	if v := query.Get("replied"); v != "" {
		replied, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "Invalid 'replied' parameter: must be a boolean")
			return
		}
		filter.Replied = &replied
	}

	for name, dst := range map[string]**time.Time{
		"published_from": &filter.PublishedFrom,
		"published_to":   &filter.PublishedTo,
	} {
		v := query.Get(name)
		if v == "" {
			continue
		}
		parsed, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, r, http.StatusBadRequest,
				fmt.Sprintf("Invalid '%s' parameter: use RFC3339 format", name))
			return
		}
		utc := parsed.UTC()
		*dst = &utc
	}

	if v := query.Get("page"); v != "" {
		page, err := strconv.Atoi(v)
		if err != nil || page <= 0 {
			writeError(w, r, http.StatusBadRequest, "Invalid 'page' parameter")
			return
		}
		filter.Page = page
	}
	if v := query.Get("page_size"); v != "" {
		size, err := strconv.Atoi(v)
		if err != nil || size <= 0 || size > maxPageSize {
			writeError(w, r, http.StatusBadRequest,
				fmt.Sprintf("Invalid 'page_size' parameter: must be between 1 and %d", maxPageSize))
			return
		}
		filter.PageSize = size
	}

	items, total, err := h.repo.ListContents(r.Context(), filter)
	if err != nil {
		log.Error().Err(err).Msg("Error listing contents")
		writeError(w, r, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	writeJSON(w, r, http.StatusOK, ListResponse{
		Items:    items,
		Total:    total,
		Page:     filter.Page,
		PageSize: filter.PageSize,
	})
}

// GetContent handles GET /v1/contents/{id}.
func (h *Handler) GetContent(w http.ResponseWriter, r *http.Request) {
	log := hlog.FromRequest(r)

	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, r, http.StatusBadRequest, "Invalid content id")
		return
	}

	item, err := h.repo.GetContent(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, r, http.StatusNotFound, "Content not found")
		return
	}
	if err != nil {
		log.Error().Err(err).Int64("content_id", id).Msg("Error fetching content")
		writeError(w, r, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	writeJSON(w, r, http.StatusOK, item)
}

// GetContentLink handles GET /v1/contents/{id}/link and returns the resolved
// deep link for the content.
func (h *Handler) GetContentLink(w http.ResponseWriter, r *http.Request) {
	log := hlog.FromRequest(r)

	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, r, http.StatusBadRequest, "Invalid content id")
		return
	}

	item, err := h.repo.GetContent(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, r, http.StatusNotFound, "Content not found")
		return
	}
	if err != nil {
		log.Error().Err(err).Int64("content_id", id).Msg("Error fetching content for link resolution")
		writeError(w, r, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	resolved := links.Resolve(links.Input{
		SourceURL:         item.SourceURL,
		PlatformSlug:      item.PlatformSlug,
		ContentType:       item.ContentType,
		PlatformContentID: item.PlatformContentID.String,
	})
	writeJSON(w, r, http.StatusOK, resolved)
}

// FeedResponse is the envelope of the incremental feed endpoint.
type FeedResponse struct {
	Items      []models.Content `json:"items"`
	NextCursor *string          `json:"next_cursor,omitempty"`
}

// GetFeed handles GET /v1/contents/feed, a keyset-paginated stream of
// contents in insertion order for incremental consumers.
func (h *Handler) GetFeed(w http.ResponseWriter, r *http.Request) {
	log := hlog.FromRequest(r)
	query := r.URL.Query()

	limit := feedDefaultLimit
	if v := query.Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 || parsed > feedMaxLimit {
			writeError(w, r, http.StatusBadRequest,
				fmt.Sprintf("Invalid 'limit' parameter: must be between 1 and %d", feedMaxLimit))
			return
		}
		limit = parsed
	}

	var since *time.Time
	var cursorTimestamp *time.Time
	var cursorID *int64

	cursorStr := query.Get("cursor")
	sinceStr := query.Get("since")

	if cursorStr != "" {
		ts, id, err := pagination.DecodeCursor(cursorStr)
		if err != nil {
			log.Warn().Err(err).Str("cursor", cursorStr).Msg("Invalid 'cursor' parameter")
			writeError(w, r, http.StatusBadRequest, "Invalid 'cursor' parameter")
			return
		}
		cursorTimestamp = &ts
		cursorID = &id
	} else if sinceStr != "" {
		parsed, err := time.Parse(time.RFC3339, sinceStr)
		if err != nil {
			writeError(w, r, http.StatusBadRequest,
				"Invalid 'since' parameter: use RFC3339 format (e.g., 2025-03-28T15:00:00Z)")
			return
		}
		utc := parsed.UTC()
		since = &utc
	} else {
		writeError(w, r, http.StatusBadRequest, "Missing required parameter: 'since' or 'cursor'")
		return
	}

	// Fetch one extra row to detect the next page.
	items, err := h.repo.FetchFeed(r.Context(), limit+1, since, cursorTimestamp, cursorID)
	if err != nil {
		log.Error().Err(err).Str("cursor", cursorStr).Msg("Error fetching feed")
		writeError(w, r, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	var nextCursor *string
	if len(items) > limit {
		items = items[:limit]
		last := items[len(items)-1]
		cursor := pagination.EncodeCursor(last.CreatedAt.UTC(), last.ID)
		nextCursor = &cursor
	}

	writeJSON(w, r, http.StatusOK, FeedResponse{Items: items, NextCursor: nextCursor})
}

// ListPlatforms handles GET /v1/platforms.
func (h *Handler) ListPlatforms(w http.ResponseWriter, r *http.Request) {
	log := hlog.FromRequest(r)

	platforms, err := h.repo.ListPlatforms(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Error listing platforms")
		writeError(w, r, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	writeJSON(w, r, http.StatusOK, platforms)
}
