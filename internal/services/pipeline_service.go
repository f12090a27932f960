package services

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"sbpcli/internal/config"
	"sbpcli/internal/dataprocessing"
	apierrors "sbpcli/internal/errors"
	"sbpcli/internal/exporter"
	"sbpcli/internal/files"
	"sbpcli/internal/indicators"
	"sbpcli/internal/infrastructure"
	"sbpcli/internal/pipeline"
	"sbpcli/pkg/contracts/domain"
	"sbpcli/pkg/contracts/events"
)

// ProgressBroadcaster pushes pipeline events to connected WebSocket
// clients. *websocket.Hub is the production implementation; a nil
// broadcaster disables publishing (CLI runs).
type ProgressBroadcaster interface {
	Broadcast(messageType events.MessageType, data any)
}

// RunSummary describes one finished pipeline run. It is returned by
// Run, kept as the last-run record for the status API, and broadcast
// as the pipeline:complete payload.
type RunSummary struct {
	RunID           string                          `json:"run_id"`
	Status          string                          `json:"status"`
	StartedAt       time.Time                       `json:"started_at"`
	CompletedAt     time.Time                       `json:"completed_at"`
	DurationSeconds float64                         `json:"duration_seconds"`
	SourceFiles     []string                        `json:"source_files"`
	RecordCount     int                             `json:"record_count"`
	SkippedRows     int                             `json:"skipped_rows"`
	CoercedValues   int                             `json:"coerced_values"`
	PeriodCount     int                             `json:"period_count"`
	NullRatioCells  int                             `json:"null_ratio_cells"`
	Thresholds      domain.ClassificationThresholds `json:"thresholds"`
	Classifications map[string]int                  `json:"classifications"`
	Artifacts       map[string]string               `json:"artifacts"`
	Error           string                          `json:"error,omitempty"`
}

// PipelineService runs the parse/compute/export pipeline over the raw
// files in the downloads directory. Runs are serialized: while one is
// in flight, further triggers return a conflict. Progress is mirrored
// into a PipelineSnapshot for the status endpoint and broadcast to the
// WebSocket hub.
type PipelineService struct {
	paths   *config.Paths
	hub     ProgressBroadcaster
	metrics *infrastructure.PipelineMetrics
	logger  *slog.Logger

	engineConfig indicators.EngineConfig
	exportOpts   pipeline.ExportOptions

	mu       sync.RWMutex
	running  bool
	cancel   context.CancelFunc
	snapshot *events.PipelineSnapshot
	lastRun  *RunSummary
}

// NewPipelineService creates a pipeline service writing artifacts to
// their well-known paths. hub and metrics may be nil.
func NewPipelineService(paths *config.Paths, hub ProgressBroadcaster, metrics *infrastructure.PipelineMetrics, logger *slog.Logger) *PipelineService {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	return &PipelineService{
		paths:        paths,
		hub:          hub,
		metrics:      metrics,
		logger:       logger.With(slog.String("component", "pipeline_service")),
		engineConfig: indicators.DefaultEngineConfig(),
		exportOpts:   pipeline.DefaultExportOptions(paths),
	}
}

// Trigger starts a pipeline run in the background and returns its run
// id. It returns ErrTypeConflict when a run is already in flight.
func (s *PipelineService) Trigger(ctx context.Context) (string, error) {
	runID := uuid.NewString()

	// Detach from the request context so the run survives the HTTP
	// response, but bound it so a wedged run cannot hold the conflict
	// lock forever.
	runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), config.DefaultOperationTimeout)
	if err := s.begin(runID, cancel); err != nil {
		cancel()
		return "", err
	}

	s.logger.InfoContext(ctx, "pipeline_run_triggered",
		slog.String("run_id", runID))

	go func() {
		defer cancel()
		s.execute(runCtx, runID)
	}()

	return runID, nil
}

// Run executes a pipeline run synchronously and returns its summary.
// The summary is also returned for failed runs, alongside the error.
// It returns ErrTypeConflict when a run is already in flight.
func (s *PipelineService) Run(ctx context.Context) (*RunSummary, error) {
	runID := uuid.NewString()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if err := s.begin(runID, cancel); err != nil {
		return nil, err
	}

	return s.execute(runCtx, runID)
}

// Cancel aborts the in-flight run, if any. It reports whether a run
// was cancelled.
func (s *PipelineService) Cancel() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running || s.cancel == nil {
		return false
	}
	s.cancel()
	return true
}

// IsRunning reports whether a run is currently in flight.
func (s *PipelineService) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Status returns a copy of the current run snapshot. It is nil when no
// run has been triggered since startup.
func (s *PipelineService) Status() *events.PipelineSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.snapshot == nil {
		return nil
	}
	return cloneSnapshot(s.snapshot)
}

// LastRun returns the summary of the most recently finished run, nil
// when none has finished yet.
func (s *PipelineService) LastRun() *RunSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.lastRun == nil {
		return nil
	}
	out := *s.lastRun
	return &out
}

// begin transitions the service into the running state and seeds the
// snapshot all progress events update.
func (s *PipelineService) begin(runID string, cancel context.CancelFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return apierrors.NewConflictError("a pipeline run is already in progress")
	}

	now := time.Now().UTC()
	s.running = true
	s.cancel = cancel
	s.snapshot = &events.PipelineSnapshot{
		RunID:     runID,
		Status:    events.StatusPending,
		Stages:    newStageSnapshots(),
		StartedAt: now,
		UpdatedAt: now,
	}
	return nil
}

func newStageSnapshots() []events.StageSnapshot {
	return []events.StageSnapshot{
		{ID: pipeline.StageIDParse, Name: pipeline.StageNameParse, Status: events.StatusPending},
		{ID: pipeline.StageIDCompute, Name: pipeline.StageNameCompute, Status: events.StatusPending},
		{ID: pipeline.StageIDExport, Name: pipeline.StageNameExport, Status: events.StatusPending},
	}
}

// execute performs the run and finalizes snapshot, summary, metrics
// and broadcasts. Callers must have claimed the running state first.
func (s *PipelineService) execute(ctx context.Context, runID string) (*RunSummary, error) {
	started := time.Now().UTC()
	infrastructure.RecordActiveRunChange(ctx, s.metrics, 1)

	sources, err := s.discoverSources()
	if err != nil {
		summary := s.finish(ctx, runID, started, nil, nil, err)
		return summary, err
	}

	parser := dataprocessing.NewParser(s.logger)
	engine := indicators.NewEngine(s.logger, s.engineConfig)
	writer := exporter.NewIndicatorsExporter(s.paths, s.logger)

	manager := pipeline.NewManager(s.logger,
		pipeline.WithMetrics(s.metrics),
		pipeline.WithProgress(s.handleProgress))
	manager.Register(
		pipeline.NewParseStage(parser, s.logger),
		pipeline.NewComputeStage(engine, s.logger),
		pipeline.NewExportStage(writer, s.exportOpts, s.logger),
	)

	state := pipeline.NewState(runID, sources)
	runErr := manager.Run(ctx, state)

	summary := s.finish(ctx, runID, started, state, state.Result(), runErr)
	return summary, runErr
}

// discoverSources lists the raw balance files feeding the run.
func (s *PipelineService) discoverSources() ([]string, error) {
	discovery := files.NewDiscovery(s.paths.DataDir)
	found, err := discovery.FindRawSources(s.paths.DownloadsDir)
	if err != nil {
		return nil, apierrors.NewStorageError("failed to scan downloads directory", err)
	}
	if len(found) == 0 {
		return nil, apierrors.NewNotFoundError("raw balance files")
	}

	sources := make([]string, len(found))
	for i, f := range found {
		sources[i] = f.Path
	}
	return sources, nil
}

// handleProgress folds one pipeline progress event into the snapshot
// and broadcasts the updated snapshot.
func (s *PipelineService) handleProgress(p pipeline.Progress) {
	s.mu.Lock()
	snap := s.snapshot
	if snap == nil || snap.RunID != p.RunID {
		s.mu.Unlock()
		return
	}

	completed := 0
	for i := range snap.Stages {
		stage := &snap.Stages[i]
		if stage.ID == p.StageID {
			stage.Status = string(p.Status)
			stage.Progress = int(p.Percent)
			stage.Message = p.Message
			if p.Status == pipeline.StatusFailed {
				stage.Error = p.Message
			}
		}
		if stage.Status == events.StatusCompleted {
			completed++
		}
	}

	snap.Status = events.StatusRunning
	snap.CurrentStage = p.StageID
	snap.Message = p.Message
	snap.UpdatedAt = time.Now().UTC()
	if len(snap.Stages) > 0 {
		current := 0
		if p.Status == pipeline.StatusRunning {
			current = int(p.Percent)
		}
		snap.Progress = (completed*100 + current) / len(snap.Stages)
	}

	payload := cloneSnapshot(snap)
	s.mu.Unlock()

	s.publish(events.MessageTypePipelineSnapshot, payload)
}

// finish closes out the run: snapshot finalized, summary recorded,
// run-level metrics emitted, completion event broadcast.
func (s *PipelineService) finish(ctx context.Context, runID string, started time.Time, state *pipeline.State, result *indicators.Result, runErr error) *RunSummary {
	completedAt := time.Now().UTC()

	summary := &RunSummary{
		RunID:           runID,
		Status:          events.StatusCompleted,
		StartedAt:       started,
		CompletedAt:     completedAt,
		DurationSeconds: completedAt.Sub(started).Seconds(),
	}
	if runErr != nil {
		summary.Status = events.StatusFailed
		summary.Error = runErr.Error()
	}

	if state != nil {
		summary.SourceFiles = baseNames(state.Sources())
		summary.RecordCount = state.Count(pipeline.CountRecordsParsed)
		summary.SkippedRows = state.Count(pipeline.CountRowsSkipped)
		summary.PeriodCount = state.Count(pipeline.CountPeriodsComputed)
		summary.NullRatioCells = state.Count(pipeline.CountNullRatios)
		summary.Artifacts = state.Artifacts()
	}
	if result != nil {
		summary.CoercedValues = result.CoercedValues
		summary.Thresholds = result.Thresholds
		summary.Classifications = classificationCounts(result.Metrics)
	}

	s.mu.Lock()
	s.running = false
	s.cancel = nil
	s.lastRun = summary
	if s.snapshot != nil && s.snapshot.RunID == runID {
		s.snapshot.Status = summary.Status
		s.snapshot.Progress = snapshotProgress(s.snapshot.Stages)
		s.snapshot.UpdatedAt = completedAt
		s.snapshot.CompletedAt = &completedAt
		s.snapshot.Error = summary.Error
		if runErr == nil {
			s.snapshot.Progress = 100
			s.snapshot.Message = "pipeline run completed"
		}
	}
	s.mu.Unlock()

	infrastructure.RecordActiveRunChange(ctx, s.metrics, -1)
	infrastructure.RecordRunMetrics(ctx, s.metrics, runID, completedAt.Sub(started), runErr == nil, runErr)
	if runErr == nil {
		infrastructure.RecordDerivationMetrics(ctx, s.metrics,
			int64(summary.RecordCount),
			int64(summary.CoercedValues),
			int64(summary.PeriodCount),
			int64(summary.NullRatioCells))
	}

	if runErr != nil {
		s.logger.ErrorContext(ctx, "pipeline_run_failed",
			slog.String("run_id", runID),
			slog.Float64("duration_seconds", summary.DurationSeconds),
			slog.String("error", runErr.Error()))
		s.publish(events.MessageTypePipelineError, summary)
	} else {
		s.logger.InfoContext(ctx, "pipeline_run_finished",
			slog.String("run_id", runID),
			slog.Float64("duration_seconds", summary.DurationSeconds),
			slog.Int("records", summary.RecordCount),
			slog.Int("periods", summary.PeriodCount))
		s.publish(events.MessageTypePipelineComplete, summary)
	}

	out := *summary
	return &out
}

func (s *PipelineService) publish(messageType events.MessageType, data any) {
	if s.hub == nil {
		return
	}
	s.hub.Broadcast(messageType, data)
}

// classificationCounts tallies rows per performance tier for the run
// summary and the processor CLI table.
func classificationCounts(metrics []domain.BankMetrics) map[string]int {
	counts := make(map[string]int, len(domain.ValidClassifications))
	for _, m := range metrics {
		counts[m.Classification]++
	}
	return counts
}

func snapshotProgress(stages []events.StageSnapshot) int {
	if len(stages) == 0 {
		return 0
	}
	total := 0
	for _, stage := range stages {
		switch stage.Status {
		case events.StatusCompleted:
			total += 100
		default:
			total += stage.Progress
		}
	}
	return total / len(stages)
}

func cloneSnapshot(snap *events.PipelineSnapshot) *events.PipelineSnapshot {
	out := *snap
	out.Stages = make([]events.StageSnapshot, len(snap.Stages))
	copy(out.Stages, snap.Stages)
	if snap.CompletedAt != nil {
		completedAt := *snap.CompletedAt
		out.CompletedAt = &completedAt
	}
	return &out
}

func baseNames(paths []string) []string {
	names := make([]string, len(paths))
	for i, p := range paths {
		names[i] = filepath.Base(p)
	}
	return names
}
