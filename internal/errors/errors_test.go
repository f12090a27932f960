package errors

import (
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/render"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAPIErrorImplementsError(t *testing.T) {
	err := New(http.StatusNotFound, "NOT_FOUND", "indicator table not computed yet")
	assert.Equal(t, "indicator table not computed yet", err.Error())
	assert.Equal(t, http.StatusNotFound, err.StatusCode)
	assert.Equal(t, "NOT_FOUND", err.ErrorCode)
}

func TestAPIErrorRenderSetsStatus(t *testing.T) {
	apiErr := NewWithDetails(http.StatusConflict, "CONFLICT", "run already active", "run-7")

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/pipeline/run", nil)
	require.NoError(t, render.Render(rec, req, apiErr))

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), `"error_code":"CONFLICT"`)
	assert.Contains(t, rec.Body.String(), `"details":"run-7"`)
}

func TestErrValidation(t *testing.T) {
	err := ErrValidation("month", "Month must be a number between 1 and 12")

	assert.Equal(t, http.StatusBadRequest, err.StatusCode)
	assert.Equal(t, "VALIDATION_FAILED", err.ErrorCode)

	detail, ok := err.Details.(ValidationError)
	require.True(t, ok)
	assert.Equal(t, "month", detail.Field)
}

func TestNewValidationErrors(t *testing.T) {
	err := NewValidationErrors([]ValidationError{
		{Field: "year", Message: "out of range"},
		{Field: "classification", Message: "unknown tier"},
	})

	assert.Equal(t, http.StatusBadRequest, err.StatusCode)
	detail, ok := err.Details.(ValidationErrors)
	require.True(t, ok)
	assert.Len(t, detail.Errors, 2)
}

func TestInvalidRequestWithError(t *testing.T) {
	cause := stderrors.New("unexpected end of JSON input")
	err := InvalidRequestWithError(cause)

	assert.Equal(t, http.StatusBadRequest, err.StatusCode)
	assert.Equal(t, "INVALID_REQUEST", err.ErrorCode)
	assert.Equal(t, "unexpected end of JSON input", err.Details)
}
