// Package api exposes gigs, reminders, exports, settings, recordings and the
// teleprompter library over HTTP/JSON.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"bandaid/internal/models"
	"bandaid/internal/recordings"
	"bandaid/internal/reminders"
	"bandaid/internal/service"
	"bandaid/internal/settings"
	"bandaid/internal/teleprompter"
)

// GigService is the gig use-case layer the handlers drive.
type GigService interface {
	List(ctx context.Context) []models.Gig
	Get(ctx context.Context, id string) (*models.Gig, error)
	Create(ctx context.Context, in service.GigInput) (*models.Gig, error)
	Update(ctx context.Context, id string, in service.GigInput) (*models.Gig, error)
	Delete(ctx context.Context, id string) error
}

// NotificationLister enumerates the scheduled reminders.
type NotificationLister interface {
	ListAll(ctx context.Context) ([]reminders.Notification, error)
}

// Deps are the components served by the HTTP API.
type Deps struct {
	Gigs          GigService
	Notifications NotificationLister
	Library       *teleprompter.Library
	Recordings    *recordings.Store
	Settings      *settings.Store
	Location      *time.Location
	// Ready reports whether backing stores are reachable; nil means always ready.
	Ready func(ctx context.Context) error
}

type HTTPServer struct {
	server   *http.Server
	deps     Deps
	apiKey   string
	logger   zerolog.Logger
	requests *prometheus.CounterVec
	now      func() time.Time
}

// NewHTTPServer builds the API server listening on addr. Request counters are
// registered on reg.
func NewHTTPServer(addr, apiKey string, deps Deps, reg prometheus.Registerer, logger zerolog.Logger) *HTTPServer {
	if deps.Location == nil {
		deps.Location = time.Local
	}
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	s := &HTTPServer{
		deps:   deps,
		apiKey: apiKey,
		logger: logger.With().Str("component", "http_api").Logger(),
		requests: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "bandaid",
			Name:      "http_requests_total",
			Help:      "Total number of HTTP API requests",
		}, []string{"handler", "code"}),
		now: time.Now,
	}

	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Handler returns the root handler, for tests and embedding.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

// Start serves in the background until Shutdown.
func (s *HTTPServer) Start() {
	go func() {
		s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("HTTP API server failed")
		}
	}()
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("GET /readyz", s.handleReadyz)

	api := http.NewServeMux()
	api.HandleFunc("GET /api/v1/gigs", s.handleListGigs)
	api.HandleFunc("POST /api/v1/gigs", s.handleCreateGig)
	api.HandleFunc("GET /api/v1/gigs/{id}", s.handleGetGig)
	api.HandleFunc("PUT /api/v1/gigs/{id}", s.handleUpdateGig)
	api.HandleFunc("DELETE /api/v1/gigs/{id}", s.handleDeleteGig)
	api.HandleFunc("GET /api/v1/gigs.ics", s.handleExportICS)
	api.HandleFunc("GET /api/v1/gigs.xlsx", s.handleExportXLSX)
	api.HandleFunc("GET /api/v1/notifications", s.handleNotifications)

	api.HandleFunc("GET /api/v1/settings", s.handleGetSettings)
	api.HandleFunc("PUT /api/v1/settings", s.handlePatchSettings)
	api.HandleFunc("POST /api/v1/settings/reset", s.handleResetSettings)

	api.HandleFunc("GET /api/v1/texts", s.handleListTexts)
	api.HandleFunc("POST /api/v1/texts", s.handleCreateText)
	api.HandleFunc("POST /api/v1/texts/reorder", s.handleReorderTexts)
	api.HandleFunc("GET /api/v1/texts/{id}", s.handleGetText)
	api.HandleFunc("PUT /api/v1/texts/{id}", s.handleUpdateText)
	api.HandleFunc("DELETE /api/v1/texts/{id}", s.handleDeleteText)

	api.HandleFunc("GET /api/v1/playlists", s.handleListPlaylists)
	api.HandleFunc("POST /api/v1/playlists", s.handleCreatePlaylist)
	api.HandleFunc("POST /api/v1/playlists/reorder", s.handleReorderPlaylists)
	api.HandleFunc("GET /api/v1/playlists/{id}", s.handleGetPlaylist)
	api.HandleFunc("PUT /api/v1/playlists/{id}", s.handleUpdatePlaylist)
	api.HandleFunc("DELETE /api/v1/playlists/{id}", s.handleDeletePlaylist)
	api.HandleFunc("GET /api/v1/playlists/{id}/texts", s.handlePlaylistTexts)
	api.HandleFunc("POST /api/v1/playlists/{id}/texts", s.handleAddPlaylistText)
	api.HandleFunc("DELETE /api/v1/playlists/{id}/texts/{textId}", s.handleRemovePlaylistText)

	api.HandleFunc("GET /api/v1/recordings", s.handleListRecordings)
	api.HandleFunc("POST /api/v1/recordings", s.handleCreateRecording)
	api.HandleFunc("GET /api/v1/recordings/{id}", s.handleGetRecording)
	api.HandleFunc("PUT /api/v1/recordings/{id}", s.handleUpdateRecording)
	api.HandleFunc("DELETE /api/v1/recordings/{id}", s.handleDeleteRecording)
	api.HandleFunc("GET /api/v1/recordings/{id}/audio", s.handleDownloadAudio)
	api.HandleFunc("PUT /api/v1/recordings/{id}/audio", s.handleUploadAudio)

	mux.Handle("/api/", s.authMiddleware(api))
	return s.instrument(mux)
}

func (s *HTTPServer) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.apiKey != "" && r.Header.Get("X-Api-Key") != s.apiKey {
			writeError(w, http.StatusUnauthorized, "invalid or missing API key")
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *HTTPServer) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		handler := r.Pattern
		if handler == "" {
			handler = "unmatched"
		}
		s.requests.WithLabelValues(handler, strconv.Itoa(rec.status)).Inc()
	})
}

func (s *HTTPServer) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPServer) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if s.deps.Ready != nil {
		if err := s.deps.Ready(r.Context()); err != nil {
			s.logger.Warn().Err(err).Msg("Readiness check failed")
			writeError(w, http.StatusServiceUnavailable, "not ready")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func decodeJSON(r *http.Request, v interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeServiceError maps domain errors to HTTP status codes.
func (s *HTTPServer) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound),
		errors.Is(err, teleprompter.ErrTextNotFound),
		errors.Is(err, teleprompter.ErrPlaylistNotFound),
		errors.Is(err, recordings.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, models.ErrInvalidGig),
		errors.Is(err, teleprompter.ErrInvalid),
		errors.Is(err, recordings.ErrInvalid),
		errors.Is(err, settings.ErrInvalidSettings):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.logger.Error().Err(err).Msg("Request failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
