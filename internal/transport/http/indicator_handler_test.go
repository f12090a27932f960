package http

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apierrors "sbpcli/internal/errors"
	"sbpcli/internal/services"
	"sbpcli/pkg/contracts/domain"
)

// MockIndicatorService is a mock implementation of the indicator service
type MockIndicatorService struct {
	mock.Mock
}

func (m *MockIndicatorService) GetIndicators(ctx context.Context, filter domain.BankMetricsFilter) (*domain.BankMetricsResponse, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.BankMetricsResponse), args.Error(1)
}

func (m *MockIndicatorService) ListBanks(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockIndicatorService) ListPeriods(ctx context.Context) ([]services.ReportingPeriod, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]services.ReportingPeriod), args.Error(1)
}

func (m *MockIndicatorService) GetMetadata(ctx context.Context) (*domain.RunMetadata, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RunMetadata), args.Error(1)
}

// Test helper to create an indicator handler with a mocked service
func setupIndicatorHandler(t *testing.T) (*IndicatorHandler, *MockIndicatorService) {
	t.Helper()
	service := &MockIndicatorService{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewIndicatorHandler(service, logger), service
}

// Test helper to create a router with the handler mounted the way the
// application mounts it
func setupIndicatorRouter(handler *IndicatorHandler) chi.Router {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Mount("/api/indicators", handler.Routes())
	return r
}

func sampleResponse(rows ...domain.BankMetrics) *domain.BankMetricsResponse {
	return &domain.BankMetricsResponse{
		Metrics:     rows,
		TotalCount:  len(rows),
		GeneratedAt: time.Now().UTC(),
	}
}

func TestIndicatorHandler_GetIndicators(t *testing.T) {
	tests := []struct {
		name           string
		target         string
		setupMocks     func(*MockIndicatorService)
		expectedStatus int
		validateBody   func(*testing.T, map[string]interface{})
	}{
		{
			name:   "no filter returns every row",
			target: "/api/indicators",
			setupMocks: func(s *MockIndicatorService) {
				s.On("GetIndicators", mock.Anything, domain.BankMetricsFilter{}).
					Return(sampleResponse(
						domain.BankMetrics{Bank: "BANCO GENERAL", Year: 2023, Month: 6, Classification: domain.ClassificationHigh},
						domain.BankMetrics{Bank: "BNP", Year: 2023, Month: 6, Classification: domain.ClassificationLow},
					), nil)
			},
			expectedStatus: http.StatusOK,
			validateBody: func(t *testing.T, body map[string]interface{}) {
				assert.Equal(t, float64(2), body["total_count"])
				metrics, ok := body["metrics"].([]interface{})
				require.True(t, ok)
				assert.Len(t, metrics, 2)
			},
		},
		{
			name:   "full filter is parsed from query parameters",
			target: "/api/indicators?bank=BNP&bank=BANCO+GENERAL&year=2023&month=6&classification=High+performance&limit=50&offset=10",
			setupMocks: func(s *MockIndicatorService) {
				expected := domain.BankMetricsFilter{
					Banks:          []string{"BNP", "BANCO GENERAL"},
					Year:           2023,
					Month:          6,
					Classification: domain.ClassificationHigh,
					Limit:          50,
					Offset:         10,
				}
				s.On("GetIndicators", mock.Anything, expected).
					Return(sampleResponse(), nil)
			},
			expectedStatus: http.StatusOK,
			validateBody: func(t *testing.T, body map[string]interface{}) {
				assert.Equal(t, float64(0), body["total_count"])
			},
		},
		{
			name:           "invalid year",
			target:         "/api/indicators?year=bank",
			setupMocks:     func(s *MockIndicatorService) {},
			expectedStatus: http.StatusBadRequest,
			validateBody: func(t *testing.T, body map[string]interface{}) {
				assert.Equal(t, "/errors/validation", body["type"])
			},
		},
		{
			name:           "year out of range",
			target:         "/api/indicators?year=1850",
			setupMocks:     func(s *MockIndicatorService) {},
			expectedStatus: http.StatusBadRequest,
			validateBody: func(t *testing.T, body map[string]interface{}) {
				assert.Equal(t, "/errors/validation", body["type"])
			},
		},
		{
			name:           "month out of range",
			target:         "/api/indicators?month=13",
			setupMocks:     func(s *MockIndicatorService) {},
			expectedStatus: http.StatusBadRequest,
			validateBody: func(t *testing.T, body map[string]interface{}) {
				assert.Equal(t, "/errors/validation", body["type"])
			},
		},
		{
			name:           "unknown classification label",
			target:         "/api/indicators?classification=Stellar",
			setupMocks:     func(s *MockIndicatorService) {},
			expectedStatus: http.StatusBadRequest,
			validateBody: func(t *testing.T, body map[string]interface{}) {
				assert.Equal(t, "/errors/validation", body["type"])
			},
		},
		{
			name:           "limit above the cap",
			target:         "/api/indicators?limit=20000",
			setupMocks:     func(s *MockIndicatorService) {},
			expectedStatus: http.StatusBadRequest,
			validateBody: func(t *testing.T, body map[string]interface{}) {
				assert.Equal(t, "/errors/validation", body["type"])
			},
		},
		{
			name:           "negative offset",
			target:         "/api/indicators?offset=-5",
			setupMocks:     func(s *MockIndicatorService) {},
			expectedStatus: http.StatusBadRequest,
			validateBody: func(t *testing.T, body map[string]interface{}) {
				assert.Equal(t, "/errors/validation", body["type"])
			},
		},
		{
			name:   "artifact not generated yet",
			target: "/api/indicators",
			setupMocks: func(s *MockIndicatorService) {
				s.On("GetIndicators", mock.Anything, domain.BankMetricsFilter{}).
					Return(nil, apierrors.NewAppError(apierrors.ErrTypeNotFound,
						"indicator artifact not found, trigger a pipeline run first", nil))
			},
			expectedStatus: http.StatusNotFound,
			validateBody: func(t *testing.T, body map[string]interface{}) {
				assert.Equal(t, "/errors/not-found", body["type"])
				assert.Contains(t, body["detail"], "trigger a pipeline run first")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler, service := setupIndicatorHandler(t)
			tt.setupMocks(service)

			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			rec := httptest.NewRecorder()
			setupIndicatorRouter(handler).ServeHTTP(rec, req)

			assert.Equal(t, tt.expectedStatus, rec.Code)

			var body map[string]interface{}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			tt.validateBody(t, body)
			service.AssertExpectations(t)
		})
	}
}

func TestIndicatorHandler_GetIndicators_NullRatiosSerializeAsNull(t *testing.T) {
	handler, service := setupIndicatorHandler(t)
	service.On("GetIndicators", mock.Anything, domain.BankMetricsFilter{}).
		Return(sampleResponse(domain.BankMetrics{
			Bank:           "CREDICORP",
			Year:           2024,
			Month:          1,
			Classification: domain.ClassificationUnknown,
		}), nil)

	req := httptest.NewRequest(http.MethodGet, "/api/indicators", nil)
	rec := httptest.NewRecorder()
	setupIndicatorRouter(handler).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Metrics []map[string]interface{} `json:"metrics"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Metrics, 1)

	row := body.Metrics[0]
	require.Contains(t, row, "roe")
	assert.Nil(t, row["roe"])
	assert.Nil(t, row["roa"])
	assert.Equal(t, domain.ClassificationUnknown, row["classification"])
}

func TestIndicatorHandler_ListBanks(t *testing.T) {
	handler, service := setupIndicatorHandler(t)
	service.On("ListBanks", mock.Anything).
		Return([]string{"BANCO GENERAL", "BNP", "CREDICORP"}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/indicators/banks", nil)
	rec := httptest.NewRecorder()
	setupIndicatorRouter(handler).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, float64(3), body["count"])

	banks, ok := body["banks"].([]interface{})
	require.True(t, ok)
	assert.Equal(t, "BANCO GENERAL", banks[0])
}

func TestIndicatorHandler_ListPeriods(t *testing.T) {
	handler, service := setupIndicatorHandler(t)
	service.On("ListPeriods", mock.Anything).
		Return([]services.ReportingPeriod{
			{Year: 2023, Month: 6},
			{Year: 2023, Month: 7},
		}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/indicators/periods", nil)
	rec := httptest.NewRecorder()
	setupIndicatorRouter(handler).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Periods []services.ReportingPeriod `json:"periods"`
		Count   int                        `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Count)
	assert.Equal(t, services.ReportingPeriod{Year: 2023, Month: 6}, body.Periods[0])
}

func TestIndicatorHandler_GetMetadata(t *testing.T) {
	t.Run("metadata of the last run", func(t *testing.T) {
		handler, service := setupIndicatorHandler(t)
		service.On("GetMetadata", mock.Anything).
			Return(&domain.RunMetadata{
				RunID:       "run-42",
				RecordCount: 1200,
				PeriodCount: 36,
				Thresholds:  domain.ClassificationThresholds{Lower: 0.01, Upper: 0.04, SampleCount: 36},
			}, nil)

		req := httptest.NewRequest(http.MethodGet, "/api/indicators/metadata", nil)
		rec := httptest.NewRecorder()
		setupIndicatorRouter(handler).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)

		var body map[string]interface{}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "run-42", body["run_id"])
		assert.Equal(t, float64(36), body["period_count"])

		thresholds, ok := body["thresholds"].(map[string]interface{})
		require.True(t, ok)
		assert.InDelta(t, 0.01, thresholds["lower"], 1e-9)
	})

	t.Run("no metadata yet", func(t *testing.T) {
		handler, service := setupIndicatorHandler(t)
		service.On("GetMetadata", mock.Anything).
			Return(nil, apierrors.NewNotFoundError("run metadata"))

		req := httptest.NewRequest(http.MethodGet, "/api/indicators/metadata", nil)
		rec := httptest.NewRecorder()
		setupIndicatorRouter(handler).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}
