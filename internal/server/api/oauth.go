package api

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog/hlog"

	"scholar-watch/contenthub/internal/zhihuauth"
)

// authURLResponse is returned by the OAuth URL endpoint; the caller opens
// the URL in a browser and the platform redirects back to the callback.
type authURLResponse struct {
	URL   string `json:"url"`
	State string `json:"state"`
}

// ZhihuAuthURL handles GET /v1/admin/oauth/zhihu/url.
func (h *Handler) ZhihuAuthURL(w http.ResponseWriter, r *http.Request) {
	log := hlog.FromRequest(r)

	redirectURI := r.URL.Query().Get("redirect_uri")
	if redirectURI == "" {
		redirectURI = callbackURL(r)
	}

	state, err := zhihuauth.EncodeState(redirectURI)
	if err != nil {
		log.Error().Err(err).Msg("Error generating OAuth state")
		writeError(w, r, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	authURL, err := h.oauth.AuthCodeURL(redirectURI, state)
	if errors.Is(err, zhihuauth.ErrNotConfigured) {
		writeError(w, r, http.StatusServiceUnavailable, "Zhihu OAuth is not configured")
		return
	}
	if err != nil {
		log.Error().Err(err).Msg("Error building OAuth URL")
		writeError(w, r, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	writeJSON(w, r, http.StatusOK, authURLResponse{URL: authURL, State: state})
}

// ZhihuCallback handles GET /v1/oauth/zhihu/callback. It exchanges the code
// and stores the token for the zhihu platform.
func (h *Handler) ZhihuCallback(w http.ResponseWriter, r *http.Request) {
	log := hlog.FromRequest(r)
	query := r.URL.Query()

	code := query.Get("code")
	state := query.Get("state")
	if code == "" || state == "" {
		writeError(w, r, http.StatusBadRequest, "Missing 'code' or 'state' parameter")
		return
	}

	redirectURI, ok := zhihuauth.DecodeState(state)
	if !ok {
		writeError(w, r, http.StatusBadRequest, "Invalid 'state' parameter")
		return
	}

	token, err := h.oauth.Exchange(r.Context(), code, redirectURI)
	if errors.Is(err, zhihuauth.ErrNotConfigured) {
		writeError(w, r, http.StatusServiceUnavailable, "Zhihu OAuth is not configured")
		return
	}
	if err != nil {
		log.Error().Err(err).Msg("OAuth code exchange failed")
		writeError(w, r, http.StatusBadGateway, "Authorization exchange failed")
		return
	}

	platformID, err := h.db.EnsurePlatform(r.Context(), zhihuauth.PlatformSlug)
	if err != nil {
		log.Error().Err(err).Msg("Error resolving zhihu platform")
		writeError(w, r, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	if err := zhihuauth.SaveToken(r.Context(), h.db, platformID, token); err != nil {
		log.Error().Err(err).Msg("Error saving zhihu token")
		writeError(w, r, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	log.Info().Int64("platform_id", platformID).Msg("Zhihu account authorized")
	writeJSON(w, r, http.StatusOK, map[string]bool{"authorized": true})
}

// callbackURL rebuilds this service's own callback URL from the request.
func callbackURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
		scheme = "https"
	}
	return scheme + "://" + r.Host + "/v1/oauth/zhihu/callback"
}
