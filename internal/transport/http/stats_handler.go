package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apierrors "sbpcli/internal/errors"
	"sbpcli/internal/services"
)

// StatsHandler exposes runtime statistics about the data directory,
// the exported artifact, and connected clients.
type StatsHandler struct {
	service      *services.HealthService
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewStatsHandler creates a new stats handler
func NewStatsHandler(service *services.HealthService, logger *slog.Logger) *StatsHandler {
	return &StatsHandler{
		service:      service,
		logger:       logger.With(slog.String("handler", "stats")),
		errorHandler: apierrors.NewErrorHandler(logger, false),
	}
}

// Routes sets up the stats routes
func (h *StatsHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.GetStats)
	r.Get("/artifact", h.GetArtifactStatus)
	return r
}

// GetStats handles GET /api/stats
func (h *StatsHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.SystemStats(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "system stats collection failed",
			slog.String("error", err.Error()))

		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.JSON(w, r, stats)
}

// GetArtifactStatus handles GET /api/stats/artifact
func (h *StatsHandler) GetArtifactStatus(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, h.service.ArtifactStatus(r.Context()))
}
