package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"scholar-watch/contenthub/internal/database"
	"scholar-watch/contenthub/internal/server/api"
	"scholar-watch/contenthub/internal/zhihuauth"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
)

// apiKeyMiddleware checks for the X-API-Key header and validates it against the provided key.
// If key is empty, it allows all requests.
func apiKeyMiddleware(apiKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if apiKey == "" {
				next.ServeHTTP(w, r)
				return
			}

			reqApiKey := r.Header.Get("X-API-Key")
			if reqApiKey == "" {
				http.Error(w, "API key required", http.StatusUnauthorized)
				return
			}

			if reqApiKey != apiKey {
				http.Error(w, "Invalid API key", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RunServer starts the HTTP server with graceful shutdown support.
// Admin routes sit behind the API key; the read surface and the OAuth
// callback stay open.
func RunServer(db *database.DB, listenAddr string, logger zerolog.Logger, apiKey string, oauth zhihuauth.Config, maxImportItems int) error {
	logger = logger.With().Str("service", "content-api").Logger()

	handler := api.NewHandler(db, oauth, maxImportItems)
	admin := apiKeyMiddleware(apiKey)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", healthCheckHandler(db))

	mux.HandleFunc("GET /v1/platforms", handler.ListPlatforms)
	mux.HandleFunc("GET /v1/contents", handler.ListContents)
	mux.HandleFunc("GET /v1/contents/feed", handler.GetFeed)
	mux.HandleFunc("GET /v1/contents/{id}", handler.GetContent)
	mux.HandleFunc("GET /v1/contents/{id}/link", handler.GetContentLink)
	mux.HandleFunc("GET /v1/reply-templates", handler.ListTemplates)
	mux.HandleFunc("GET /v1/oauth/zhihu/callback", handler.ZhihuCallback)

	mux.Handle("POST /v1/admin/contents/import", admin(http.HandlerFunc(handler.ImportContents)))
	mux.Handle("POST /v1/admin/maintenance/dedupe", admin(http.HandlerFunc(handler.RunDedupe)))
	mux.Handle("GET /v1/admin/stats", admin(http.HandlerFunc(handler.GetStats)))
	mux.Handle("POST /v1/admin/reply-templates", admin(http.HandlerFunc(handler.CreateTemplate)))
	mux.Handle("PUT /v1/admin/reply-templates/{id}", admin(http.HandlerFunc(handler.UpdateTemplate)))
	mux.Handle("DELETE /v1/admin/reply-templates/{id}", admin(http.HandlerFunc(handler.DeleteTemplate)))
	mux.Handle("POST /v1/admin/reply", admin(http.HandlerFunc(handler.SendReply)))
	mux.Handle("GET /v1/admin/oauth/zhihu/url", admin(http.HandlerFunc(handler.ZhihuAuthURL)))

	// Set up middleware chain for logging and request tracking
	h := hlog.NewHandler(logger)(mux)
	h = hlog.MethodHandler("method")(h)
	h = hlog.URLHandler("url")(h)
	h = hlog.RemoteAddrHandler("remote_addr")(h)
	h = hlog.UserAgentHandler("user_agent")(h)
	h = hlog.RequestIDHandler("req_id", "Request-Id")(h)
	h = hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		idReq, _ := hlog.IDFromRequest(r)

		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Stringer("url", r.URL).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Str("req_id", idReq.String()).
			Msg("HTTP Request")
	})(h)

	if apiKey != "" {
		logger.Info().Msg("Admin API key authentication enabled")
	} else {
		logger.Warn().Msg("Admin API key authentication disabled")
	}

	httpServer := &http.Server{
		Addr:              listenAddr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info().Str("address", listenAddr).Msg("API Server starting")
		err := httpServer.ListenAndServe()
		if !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		logger.Fatal().Err(err).Msg("Server failed to start")

	case sig := <-shutdown:
		logger.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("HTTP server shutdown error")
			if err := httpServer.Close(); err != nil {
				logger.Error().Err(err).Msg("HTTP server force close error")
			}
		} else {
			logger.Info().Msg("HTTP server shutdown complete.")
		}
		if err := <-serverErr; err != nil {
			logger.Error().Err(err).Msg("ListenAndServe error during shutdown")
		}
	}

	logger.Info().Msg("Server exiting.")
	return nil
}

// healthCheckHandler responds to health check requests. The store is pinged
// so a wedged database surfaces as 503 instead of a healthy-looking 200.
func healthCheckHandler(db *database.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := hlog.FromRequest(r)
		log.Debug().Msg("Health check request received")

		if err := db.PingContext(r.Context()); err != nil {
			log.Error().Err(err).Msg("Health check database ping failed")
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}

		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			log.Error().Err(err).Msg("Error writing health check response")
		}
	}
}
