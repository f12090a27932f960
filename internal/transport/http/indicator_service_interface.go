package http

import (
	"context"

	"sbpcli/internal/services"
	"sbpcli/pkg/contracts/domain"
)

// IndicatorServiceInterface defines the interface for indicator queries
type IndicatorServiceInterface interface {
	GetIndicators(ctx context.Context, filter domain.BankMetricsFilter) (*domain.BankMetricsResponse, error)
	ListBanks(ctx context.Context) ([]string, error)
	ListPeriods(ctx context.Context) ([]services.ReportingPeriod, error)
	GetMetadata(ctx context.Context) (*domain.RunMetadata, error)
}
