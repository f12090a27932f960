// Package services implements the business logic layer of the SBP Lens
// application. It provides a clean separation between HTTP handlers and
// the pipeline/artifact machinery, ensuring that business rules are
// centralized and testable.
//
// # Architecture
//
// Services follow these architectural principles:
//
//	1. Interface-driven design for testability
//	2. Context propagation for cancellation and tracing
//	3. Dependency injection for loose coupling
//	4. Domain-focused methods that encapsulate business rules
//
// # Service Layer Responsibilities
//
// The service layer is responsible for:
//
//	- Business logic and validation
//	- Cross-cutting concerns (logging, metrics)
//	- Error handling and transformation
//	- Artifact caching and reload
//
// # Available Services
//
// The package provides these core services:
//
//	- PipelineService: runs the parse/compute/export pipeline, one run
//	  at a time, and publishes progress to the WebSocket hub
//	- IndicatorService: serves the derived indicator table back out of
//	  the exported artifact with filtering and pagination
//	- HealthService: liveness, readiness and artifact freshness checks
//
// # Error Handling
//
// Services return typed AppErrors that handlers transform into
// RFC 7807 problem responses:
//
//	- Validation errors for invalid input
//	- Not found errors for missing artifacts
//	- Conflict errors for concurrent pipeline runs
//	- Storage errors for unexpected I/O failures
//
// # Testing
//
// Services are tested against temp-dir artifacts and mocked
// dependencies:
//
//	hub := new(MockBroadcaster)
//	service := NewPipelineService(paths, hub, nil, logger)
//
//	hub.On("Broadcast", mock.Anything, mock.Anything).Return()
//	summary, err := service.Run(ctx)
package services
