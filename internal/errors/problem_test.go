package errors

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/render"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProblemDetails_MarshalOmitsEmptyFields(t *testing.T) {
	problem := NewProblemDetails(http.StatusInternalServerError, "/errors/internal", "Internal Server Error", "", "")

	data, err := json.Marshal(problem)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Len(t, decoded, 3)
	assert.Equal(t, "/errors/internal", decoded["type"])
	assert.Equal(t, "Internal Server Error", decoded["title"])
	assert.Equal(t, float64(http.StatusInternalServerError), decoded["status"])
}

func TestProblemDetails_MarshalIncludesExtensions(t *testing.T) {
	problem := NewProblemDetails(
		http.StatusUnprocessableEntity,
		"/errors/data/corrupted",
		"Unprocessable Entity",
		"Workbook has no header row",
		"/api/pipeline/run",
	).WithExtension("trace_id", "run-42").
		WithExtension("sheet", "Balance")

	data, err := json.Marshal(problem)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, "Workbook has no header row", decoded["detail"])
	assert.Equal(t, "/api/pipeline/run", decoded["instance"])
	assert.Equal(t, "run-42", decoded["trace_id"])
	assert.Equal(t, "Balance", decoded["sheet"])
}

func TestProblemDetails_MarshalWithNilExtensions(t *testing.T) {
	// Hand-built literals may leave Extensions nil.
	problem := &ProblemDetails{
		Type:   "/errors/validation",
		Title:  "Validation Error",
		Status: http.StatusBadRequest,
		Detail: "month out of range",
	}

	data, err := json.Marshal(problem)
	require.NoError(t, err)
	assert.Contains(t, string(data), "month out of range")
}

func TestProblemDetails_WithExtensionChains(t *testing.T) {
	problem := NewProblemDetails(http.StatusBadRequest, "/errors/validation", "Validation Error", "bad filter", "/api/indicators")

	same := problem.WithExtension("trace_id", "abc").WithExtension("error_code", "INVALID_FILTER")

	assert.Same(t, problem, same)
	assert.Equal(t, "abc", problem.Extensions["trace_id"])
	assert.Equal(t, "INVALID_FILTER", problem.Extensions["error_code"])
}

func TestProblemDetails_RenderSetsStatusAndContentType(t *testing.T) {
	problem := NewProblemDetails(
		http.StatusUnprocessableEntity,
		"/errors/data/corrupted",
		"Unprocessable Entity",
		"No balance records found after header row",
		"/api/pipeline/run",
	).WithExtension("error_type", "PARSING")

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/pipeline/run", nil)
	require.NoError(t, render.Render(rec, req, problem))

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")

	var decoded map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&decoded))
	assert.Equal(t, "/errors/data/corrupted", decoded["type"])
	assert.Equal(t, "PARSING", decoded["error_type"])
}
