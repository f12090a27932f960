package http

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	apierrors "sbpcli/internal/errors"
	"sbpcli/internal/middleware"
	"sbpcli/pkg/contracts/domain"
)

// IndicatorHandler handles indicator query HTTP requests
type IndicatorHandler struct {
	service      IndicatorServiceInterface
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewIndicatorHandler creates a new indicator handler
func NewIndicatorHandler(service IndicatorServiceInterface, logger *slog.Logger) *IndicatorHandler {
	if service == nil {
		panic("service cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &IndicatorHandler{
		service:      service,
		logger:       logger.With(slog.String("handler", "indicators")),
		errorHandler: apierrors.NewErrorHandler(logger, false),
	}
}

// Routes sets up the indicator routes
func (h *IndicatorHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Timeout(15*time.Second, h.logger))

	r.Get("/", h.GetIndicators)
	r.Get("/banks", h.ListBanks)
	r.Get("/periods", h.ListPeriods)
	r.Get("/metadata", h.GetMetadata)

	return r
}

// GetIndicators handles GET /api/indicators with filter and pagination
// query parameters: bank (repeatable), year, month, classification,
// limit, offset.
func (h *IndicatorHandler) GetIndicators(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reqID := middleware.GetReqID(ctx)
	tracer := otel.Tracer("indicator-handler")

	ctx, span := tracer.Start(ctx, "indicator_handler.get_indicators",
		trace.WithAttributes(
			attribute.String("http.method", r.Method),
			attribute.String("http.route", "/api/indicators"),
			attribute.String("request_id", reqID),
		),
	)
	defer span.End()

	filter, err := parseIndicatorFilter(r)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid filter parameters")

		h.logger.WarnContext(ctx, "invalid indicator filter",
			slog.String("error", err.Error()),
			slog.String("request_id", reqID))

		h.errorHandler.HandleError(w, r, err)
		return
	}

	response, err := h.service.GetIndicators(ctx, filter)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "indicator query failed")

		h.logger.ErrorContext(ctx, "indicator query failed",
			slog.String("error", err.Error()),
			slog.String("request_id", reqID))

		h.errorHandler.HandleError(w, r, err)
		return
	}

	span.SetAttributes(
		attribute.Int("indicators.total_count", response.TotalCount),
		attribute.Int("indicators.returned", len(response.Metrics)),
	)

	render.JSON(w, r, response)
}

// ListBanks handles GET /api/indicators/banks
func (h *IndicatorHandler) ListBanks(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	banks, err := h.service.ListBanks(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "bank list query failed",
			slog.String("error", err.Error()),
			slog.String("request_id", middleware.GetReqID(ctx)))

		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"banks": banks,
		"count": len(banks),
	})
}

// ListPeriods handles GET /api/indicators/periods
func (h *IndicatorHandler) ListPeriods(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	periods, err := h.service.ListPeriods(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "period list query failed",
			slog.String("error", err.Error()),
			slog.String("request_id", middleware.GetReqID(ctx)))

		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"periods": periods,
		"count":   len(periods),
	})
}

// GetMetadata handles GET /api/indicators/metadata
func (h *IndicatorHandler) GetMetadata(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	metadata, err := h.service.GetMetadata(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "run metadata query failed",
			slog.String("error", err.Error()),
			slog.String("request_id", middleware.GetReqID(ctx)))

		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.JSON(w, r, metadata)
}

// parseIndicatorFilter builds a row filter from query parameters,
// validating each one before it reaches the service layer.
func parseIndicatorFilter(r *http.Request) (domain.BankMetricsFilter, error) {
	query := r.URL.Query()
	filter := domain.BankMetricsFilter{
		Banks: query["bank"],
	}

	if yearStr := query.Get("year"); yearStr != "" {
		year, err := strconv.Atoi(yearStr)
		if err != nil || year < 1990 || year > 2100 {
			return filter, apierrors.ErrValidation("year", "Year must be a number between 1990 and 2100")
		}
		filter.Year = year
	}

	if monthStr := query.Get("month"); monthStr != "" {
		month, err := strconv.Atoi(monthStr)
		if err != nil || month < 1 || month > 12 {
			return filter, apierrors.ErrValidation("month", "Month must be a number between 1 and 12")
		}
		filter.Month = month
	}

	if classification := query.Get("classification"); classification != "" {
		if !domain.IsValidClassification(classification) {
			return filter, apierrors.ErrValidation("classification",
				"Classification must be one of: Low performance, Medium performance, High performance, Unknown")
		}
		filter.Classification = classification
	}

	if limitStr := query.Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit < 1 || limit > 10000 {
			return filter, apierrors.ErrValidation("limit", "Limit must be a number between 1 and 10000")
		}
		filter.Limit = limit
	}

	if offsetStr := query.Get("offset"); offsetStr != "" {
		offset, err := strconv.Atoi(offsetStr)
		if err != nil || offset < 0 {
			return filter, apierrors.ErrValidation("offset", "Offset must be a non-negative number")
		}
		filter.Offset = offset
	}

	return filter, nil
}
