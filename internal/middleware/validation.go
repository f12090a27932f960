package middleware

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	apierrors "sbpcli/internal/errors"
	"sbpcli/pkg/contracts/domain"
)

// maxRequestBodySize bounds JSON bodies accepted by the API.
const maxRequestBodySize = 10 * 1024 * 1024

// ValidationMiddleware rejects oversized and syntactically invalid JSON
// bodies before a handler runs, and exposes tag-based struct validation
// with the domain's custom rules (reporting period bounds, performance
// tier labels).
type ValidationMiddleware struct {
	validator    *validator.Validate
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewValidationMiddleware builds the middleware and registers the
// domain validators.
func NewValidationMiddleware(logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *ValidationMiddleware {
	v := validator.New()
	v.RegisterValidation("reportmonth", isReportMonth)
	v.RegisterValidation("reportyear", isReportYear)
	v.RegisterValidation("classification", isClassification)

	// Error messages name fields by their JSON tag, not the Go field.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &ValidationMiddleware{
		validator:    v,
		logger:       logger.With(slog.String("component", "validation_middleware")),
		errorHandler: errorHandler,
	}
}

// ValidateRequest is the body gate mounted on /api: mutating requests
// with a body must carry well-formed JSON within the size limit.
func (m *ValidationMiddleware) ValidateRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			next.ServeHTTP(w, r)
			return
		}

		if r.ContentLength > maxRequestBodySize {
			m.errorHandler.HandleError(w, r, apierrors.NewWithDetails(
				http.StatusRequestEntityTooLarge,
				"PAYLOAD_TOO_LARGE",
				"Request body exceeds maximum allowed size",
				map[string]interface{}{
					"max_size": int64(maxRequestBodySize),
					"size":     r.ContentLength,
				}))
			return
		}

		if r.Body != nil && r.ContentLength > 0 {
			body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBodySize))
			if err != nil {
				m.logger.ErrorContext(r.Context(), "failed to read request body",
					slog.String("error", err.Error()),
					slog.String("request_id", GetReqID(r.Context())))
				m.errorHandler.HandleError(w, r, apierrors.InvalidRequestWithError(err))
				return
			}

			// Handlers need the body again.
			r.Body = io.NopCloser(bytes.NewReader(body))

			if len(body) > 0 && !json.Valid(body) {
				m.errorHandler.HandleError(w, r, apierrors.New(
					http.StatusBadRequest,
					"INVALID_JSON",
					"Request body contains invalid JSON"))
				return
			}
		}

		next.ServeHTTP(w, r)
	})
}

// ValidateStruct runs tag validation on v and converts failures into
// one APIError listing every bad field.
func (m *ValidationMiddleware) ValidateStruct(v interface{}) error {
	err := m.validator.Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrors []apierrors.ValidationError
	for _, fe := range err.(validator.ValidationErrors) {
		fieldErrors = append(fieldErrors, apierrors.ValidationError{
			Field:   fe.Field(),
			Message: describeFailure(fe),
		})
	}
	return apierrors.NewValidationErrors(fieldErrors)
}

// describeFailure renders one field failure as a human-readable message.
func describeFailure(fe validator.FieldError) string {
	field, param := fe.Field(), fe.Param()

	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, param)
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, param)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(param, " ", ", "))
	case "reportmonth":
		return fmt.Sprintf("%s must be a month between 1 and 12", field)
	case "reportyear":
		return fmt.Sprintf("%s must be a plausible reporting year", field)
	case "classification":
		return fmt.Sprintf("%s must be a valid performance classification", field)
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}

// isReportMonth accepts reporting months 1-12.
func isReportMonth(fl validator.FieldLevel) bool {
	month := fl.Field().Int()
	return month >= 1 && month <= 12
}

// isReportYear accepts years within the structural bounds of a balance
// record.
func isReportYear(fl validator.FieldLevel) bool {
	year := int(fl.Field().Int())
	return year >= domain.BalanceRecordValidationRules.MinYear &&
		year <= domain.BalanceRecordValidationRules.MaxYear
}

// isClassification accepts the four performance tier labels.
func isClassification(fl validator.FieldLevel) bool {
	return domain.IsValidClassification(fl.Field().String())
}
