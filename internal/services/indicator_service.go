package services

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"

	"sbpcli/internal/config"
	apierrors "sbpcli/internal/errors"
	"sbpcli/internal/infrastructure"
	"sbpcli/pkg/contracts/domain"
)

// ReportingPeriod is one distinct (year, month) present in the
// indicator table.
type ReportingPeriod struct {
	Year  int `json:"year"`
	Month int `json:"month"`
}

// IndicatorService serves the derived indicator table back out of the
// exported JSON artifact. The artifact is reloaded when its
// modification time changes, so a pipeline run completed by another
// process is picked up without a restart.
type IndicatorService struct {
	paths  *config.Paths
	logger *slog.Logger

	mu         sync.RWMutex
	metrics    []domain.BankMetrics
	artifactMT time.Time
}

// NewIndicatorService creates an indicator service reading from the
// well-known artifact paths.
func NewIndicatorService(paths *config.Paths, logger *slog.Logger) *IndicatorService {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	return &IndicatorService{
		paths:  paths,
		logger: logger.With(slog.String("component", "indicator_service")),
	}
}

// GetIndicators returns the rows matching the filter, paginated by the
// filter's Limit and Offset. TotalCount reports matches before
// pagination.
func (s *IndicatorService) GetIndicators(ctx context.Context, filter domain.BankMetricsFilter) (*domain.BankMetricsResponse, error) {
	metrics, err := s.load(ctx)
	if err != nil {
		return nil, err
	}

	var matched []domain.BankMetrics
	for i := range metrics {
		if filter.Matches(&metrics[i]) {
			matched = append(matched, metrics[i])
		}
	}

	total := len(matched)
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	if offset > total {
		offset = total
	}
	matched = matched[offset:]
	if filter.Limit > 0 && filter.Limit < len(matched) {
		matched = matched[:filter.Limit]
	}
	if matched == nil {
		matched = []domain.BankMetrics{}
	}

	s.logger.DebugContext(ctx, "indicators_queried",
		slog.Int("total", total),
		slog.Int("returned", len(matched)),
		slog.Int("banks_filter", len(filter.Banks)),
		slog.Int("year", filter.Year),
		slog.Int("month", filter.Month))

	return &domain.BankMetricsResponse{
		Metrics:     matched,
		TotalCount:  total,
		Limit:       filter.Limit,
		Offset:      offset,
		GeneratedAt: time.Now().UTC(),
	}, nil
}

// ListBanks returns the distinct bank groups in the artifact, sorted.
func (s *IndicatorService) ListBanks(ctx context.Context) ([]string, error) {
	metrics, err := s.load(ctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var banks []string
	for i := range metrics {
		if !seen[metrics[i].Bank] {
			seen[metrics[i].Bank] = true
			banks = append(banks, metrics[i].Bank)
		}
	}
	sort.Strings(banks)
	return banks, nil
}

// ListPeriods returns the distinct reporting periods in the artifact
// in chronological order.
func (s *IndicatorService) ListPeriods(ctx context.Context) ([]ReportingPeriod, error) {
	metrics, err := s.load(ctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[ReportingPeriod]bool)
	var periods []ReportingPeriod
	for i := range metrics {
		period := ReportingPeriod{Year: metrics[i].Year, Month: metrics[i].Month}
		if !seen[period] {
			seen[period] = true
			periods = append(periods, period)
		}
	}
	sort.Slice(periods, func(i, j int) bool {
		if periods[i].Year != periods[j].Year {
			return periods[i].Year < periods[j].Year
		}
		return periods[i].Month < periods[j].Month
	})
	return periods, nil
}

// GetMetadata returns the provenance record of the run that produced
// the current artifact, including the classification thresholds.
func (s *IndicatorService) GetMetadata(ctx context.Context) (*domain.RunMetadata, error) {
	data, err := os.ReadFile(s.paths.RunMetadataJSON)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apierrors.NewNotFoundError("run metadata")
		}
		return nil, apierrors.NewStorageError("failed to read run metadata", err)
	}

	var meta domain.RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, apierrors.NewParsingError("run metadata is not valid JSON", err)
	}
	return &meta, nil
}

// load returns the artifact rows, reloading from disk when the JSON
// artifact changed since the last read.
func (s *IndicatorService) load(ctx context.Context) ([]domain.BankMetrics, error) {
	info, err := os.Stat(s.paths.IndicatorsJSON)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apierrors.NewAppError(apierrors.ErrTypeNotFound,
				"indicator artifact not found, trigger a pipeline run first", err)
		}
		return nil, apierrors.NewStorageError("failed to stat indicator artifact", err)
	}

	s.mu.RLock()
	if s.metrics != nil && info.ModTime().Equal(s.artifactMT) {
		metrics := s.metrics
		s.mu.RUnlock()
		return metrics, nil
	}
	s.mu.RUnlock()

	data, err := os.ReadFile(s.paths.IndicatorsJSON)
	if err != nil {
		return nil, apierrors.NewStorageError("failed to read indicator artifact", err)
	}

	var metrics []domain.BankMetrics
	if err := json.Unmarshal(data, &metrics); err != nil {
		return nil, apierrors.NewParsingError("indicator artifact is not valid JSON", err)
	}

	s.mu.Lock()
	s.metrics = metrics
	s.artifactMT = info.ModTime()
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "indicator_artifact_loaded",
		slog.String("path", s.paths.IndicatorsJSON),
		slog.Int("rows", len(metrics)),
		slog.Time("artifact_modified", info.ModTime()))

	return metrics, nil
}
