package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	apierrors "sbpcli/internal/errors"
	"sbpcli/internal/infrastructure"
	"sbpcli/internal/middleware"
	"sbpcli/pkg/contracts/events"
)

// PipelineHandler handles pipeline run HTTP requests
type PipelineHandler struct {
	service      PipelineServiceInterface
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewPipelineHandler creates a new pipeline handler
func NewPipelineHandler(service PipelineServiceInterface, logger *slog.Logger) *PipelineHandler {
	if service == nil {
		panic("service cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &PipelineHandler{
		service:      service,
		logger:       logger.With(slog.String("handler", "pipeline")),
		errorHandler: apierrors.NewErrorHandler(logger, false),
	}
}

// Routes sets up the pipeline routes
func (h *PipelineHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Timeout(30*time.Second, h.logger))

	r.Post("/run", h.TriggerRun)
	r.Post("/stop", h.StopRun)
	r.Get("/status", h.GetStatus)
	r.Get("/last", h.GetLastRun)

	return r
}

// TriggerRun handles POST /api/pipeline/run. The run executes in the
// background; clients follow progress over the WebSocket or by polling
// the status endpoint. Returns 409 when a run is already in flight.
func (h *PipelineHandler) TriggerRun(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reqID := middleware.GetReqID(ctx)
	tracer := otel.Tracer("pipeline-handler")

	ctx, span := tracer.Start(ctx, "pipeline_handler.trigger_run",
		trace.WithAttributes(
			attribute.String("http.method", r.Method),
			attribute.String("http.route", "/api/pipeline/run"),
			attribute.String("request_id", reqID),
		),
	)
	defer span.End()

	h.logger.InfoContext(ctx, "pipeline run requested",
		slog.String("request_id", reqID),
		slog.String("trace_id", infrastructure.TraceIDFromContext(ctx)))

	runID, err := h.service.Trigger(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "pipeline trigger rejected")

		h.logger.WarnContext(ctx, "pipeline trigger rejected",
			slog.String("error", err.Error()),
			slog.String("request_id", reqID))

		h.errorHandler.HandleError(w, r, err)
		return
	}

	span.SetAttributes(attribute.String("run.id", runID))

	h.logger.InfoContext(ctx, "pipeline run accepted",
		slog.String("run_id", runID),
		slog.String("request_id", reqID))

	render.Status(r, http.StatusAccepted)
	render.JSON(w, r, map[string]interface{}{
		"run_id":     runID,
		"status":     events.StatusPending,
		"message":    "Pipeline run accepted",
		"status_url": "/api/pipeline/status",
	})
}

// StopRun handles POST /api/pipeline/stop
func (h *PipelineHandler) StopRun(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reqID := middleware.GetReqID(ctx)
	tracer := otel.Tracer("pipeline-handler")

	ctx, span := tracer.Start(ctx, "pipeline_handler.stop_run",
		trace.WithAttributes(
			attribute.String("http.method", r.Method),
			attribute.String("http.route", "/api/pipeline/stop"),
			attribute.String("request_id", reqID),
		),
	)
	defer span.End()

	if !h.service.Cancel() {
		span.SetStatus(codes.Error, "no active run")

		h.logger.WarnContext(ctx, "stop requested with no active run",
			slog.String("request_id", reqID))

		h.errorHandler.HandleError(w, r,
			apierrors.NewConflictError("no pipeline run is currently active"))
		return
	}

	h.logger.InfoContext(ctx, "pipeline run cancellation requested",
		slog.String("request_id", reqID))

	render.JSON(w, r, map[string]string{
		"message": "Pipeline run cancellation requested",
	})
}

// GetStatus handles GET /api/pipeline/status
func (h *PipelineHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	snapshot := h.service.Status()
	if snapshot == nil {
		render.JSON(w, r, map[string]interface{}{
			"status":  "idle",
			"message": "No pipeline run has been started yet",
		})
		return
	}

	render.JSON(w, r, snapshot)
}

// GetLastRun handles GET /api/pipeline/last
func (h *PipelineHandler) GetLastRun(w http.ResponseWriter, r *http.Request) {
	summary := h.service.LastRun()
	if summary == nil {
		h.errorHandler.HandleError(w, r,
			apierrors.NewNotFoundError("pipeline run history"))
		return
	}

	render.JSON(w, r, summary)
}
