package errors

import (
	"context"
	stderrors "errors"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sbpcli/internal/shared/testutil"
)

func handleAndDecode(t *testing.T, h *ErrorHandler, err error) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, "/api/indicators", nil)
	rec := httptest.NewRecorder()
	h.HandleError(rec, req, err)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec, body
}

func TestHandleErrorNilWritesNothing(t *testing.T) {
	logger, logs := testutil.NewTestLogger(t)
	h := NewErrorHandler(logger, false)

	rec := httptest.NewRecorder()
	h.HandleError(rec, httptest.NewRequest(http.MethodGet, "/api/indicators", nil), nil)

	assert.Empty(t, rec.Body.String())
	assert.False(t, logs.HasMessage("request failed"))
}

func TestHandleErrorAppErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        *AppError
		wantStatus int
		wantType   string
	}{
		{
			name:       "validation",
			err:        NewAppValidationError("malformed balance record", nil),
			wantStatus: http.StatusBadRequest,
			wantType:   TypeValidation,
		},
		{
			name:       "not found",
			err:        NewNotFoundError("indicator artifact"),
			wantStatus: http.StatusNotFound,
			wantType:   TypeNotFound,
		},
		{
			name:       "conflict",
			err:        NewConflictError("a pipeline run is already active"),
			wantStatus: http.StatusConflict,
			wantType:   TypeConflict,
		},
		{
			name:       "parsing maps to unprocessable entity",
			err:        NewParsingError("workbook sheet has no header row", nil),
			wantStatus: http.StatusUnprocessableEntity,
			wantType:   TypeDataCorrupted,
		},
		{
			name:       "storage is internal",
			err:        NewStorageError("cannot write artifact", nil),
			wantStatus: http.StatusInternalServerError,
			wantType:   TypeInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, logs := testutil.NewTestLogger(t)
			h := NewErrorHandler(logger, false)

			rec, body := handleAndDecode(t, h, tt.err)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantType, body["type"])
			assert.Equal(t, string(tt.err.Type), body["error_type"])
			assert.True(t, logs.HasMessage("request failed"))
		})
	}
}

func TestHandleErrorAPIError(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	h := NewErrorHandler(logger, false)

	rec, body := handleAndDecode(t, h, ErrValidation("year", "Year must be a number between 1990 and 2100"))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, TypeValidation, body["type"])
	assert.Equal(t, "VALIDATION_FAILED", body["error_code"])

	details, ok := body["details"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "year", details["field"])
}

func TestHandleErrorContextExpiry(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	h := NewErrorHandler(logger, false)

	for _, err := range []error{context.DeadlineExceeded, context.Canceled} {
		rec, body := handleAndDecode(t, h, err)
		assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
		assert.Equal(t, TypeTimeout, body["type"])
	}
}

func TestHandleErrorUnknownIsInternal(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	h := NewErrorHandler(logger, false)

	rec, body := handleAndDecode(t, h, stderrors.New("pivot exploded"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, TypeInternal, body["type"])
	// Internal detail must not leak to clients.
	assert.NotContains(t, rec.Body.String(), "pivot exploded")
}

func TestHandleErrorIncludesStackInDevelopment(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)

	_, prodBody := handleAndDecode(t, NewErrorHandler(logger, false), stderrors.New("boom"))
	assert.NotContains(t, prodBody, "stack")

	_, devBody := handleAndDecode(t, NewErrorHandler(logger, true), stderrors.New("boom"))
	assert.Contains(t, devBody, "stack")
}

func TestHandleErrorCarriesAppErrorContext(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	h := NewErrorHandler(logger, false)

	err := NewParsingError("unreadable sheet", nil).
		WithContext("file", "balance_2023_01.xlsx")
	_, body := handleAndDecode(t, h, err)

	ctx, ok := body["context"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "balance_2023_01.xlsx", ctx["file"])
}

func TestTypeForStatus(t *testing.T) {
	assert.Equal(t, TypeValidation, typeForStatus(http.StatusBadRequest))
	assert.Equal(t, TypeNotFound, typeForStatus(http.StatusNotFound))
	assert.Equal(t, TypeConflict, typeForStatus(http.StatusConflict))
	assert.Equal(t, TypeRateLimit, typeForStatus(http.StatusTooManyRequests))
	assert.Equal(t, TypeServiceDown, typeForStatus(http.StatusBadGateway))
	assert.Equal(t, TypeInternal, typeForStatus(http.StatusTeapot))
}
