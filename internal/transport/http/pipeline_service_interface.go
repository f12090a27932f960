package http

import (
	"context"

	"sbpcli/internal/services"
	"sbpcli/pkg/contracts/events"
)

// PipelineServiceInterface defines the interface for pipeline runs
type PipelineServiceInterface interface {
	Trigger(ctx context.Context) (string, error)
	Cancel() bool
	IsRunning() bool
	Status() *events.PipelineSnapshot
	LastRun() *services.RunSummary
}
