package pipeline

import (
	"context"
	"log/slog"
	"time"

	"sbpcli/internal/infrastructure"
)

// Stage is one unit of pipeline work. Implementations read their
// inputs from State, write their outputs back into it, and may publish
// intermediate progress via State.Report. Execute must honor context
// cancellation on long loops.
type Stage interface {
	ID() string
	Name() string
	Execute(ctx context.Context, state *State) error
}

// TimeoutStage is implemented by stages that bound their own execution
// time. The manager derives a per-stage deadline before calling
// Execute; a shorter deadline on the run context still wins.
type TimeoutStage interface {
	Stage
	Timeout() time.Duration
}

// Manager runs registered stages in order. Each run reports progress
// to the configured callback, records per-stage duration and success
// metrics, and stops at the first stage failure, which is returned as
// a *StageError.
type Manager struct {
	logger     *slog.Logger
	metrics    *infrastructure.PipelineMetrics
	onProgress ProgressFunc
	stages     []Stage
}

// Option configures a Manager.
type Option func(*Manager)

// WithMetrics enables per-stage OpenTelemetry metrics.
func WithMetrics(metrics *infrastructure.PipelineMetrics) Option {
	return func(m *Manager) {
		m.metrics = metrics
	}
}

// WithProgress sets the callback that receives progress events.
func WithProgress(fn ProgressFunc) Option {
	return func(m *Manager) {
		m.onProgress = fn
	}
}

// NewManager creates a pipeline manager. A nil logger falls back to
// slog.Default.
func NewManager(logger *slog.Logger, opts ...Option) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{logger: logger}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Register appends stages to the execution order.
func (m *Manager) Register(stages ...Stage) {
	m.stages = append(m.stages, stages...)
}

// Stages returns the registered stages in execution order.
func (m *Manager) Stages() []Stage {
	out := make([]Stage, len(m.stages))
	copy(out, m.stages)
	return out
}

// Run executes every registered stage against the given state. The
// first stage error aborts the run; later stages never see a failed
// predecessor's partial output.
func (m *Manager) Run(ctx context.Context, state *State) error {
	if len(m.stages) == 0 {
		return NewStageError("", "no stages registered", nil)
	}

	m.logger.InfoContext(ctx, "pipeline_run_started",
		slog.String("run_id", state.RunID()),
		slog.Int("stage_count", len(m.stages)),
		slog.Int("source_count", len(state.Sources())))

	runStart := time.Now()
	for i, stage := range m.stages {
		if err := ctx.Err(); err != nil {
			cancelErr := NewCancellationError(stage.ID(), err)
			m.emit(state.RunID(), stage.ID(), StatusFailed, 0, cancelErr.Message)
			m.logger.WarnContext(ctx, "pipeline_run_cancelled",
				slog.String("run_id", state.RunID()),
				slog.String("stage_id", stage.ID()))
			return cancelErr
		}

		if err := m.runStage(ctx, state, stage, i); err != nil {
			return err
		}
	}

	m.logger.InfoContext(ctx, "pipeline_run_completed",
		slog.String("run_id", state.RunID()),
		slog.Duration("duration", time.Since(runStart)),
		slog.Int("records_parsed", state.Count(CountRecordsParsed)),
		slog.Int("periods_computed", state.Count(CountPeriodsComputed)))

	return nil
}

func (m *Manager) runStage(ctx context.Context, state *State, stage Stage, index int) error {
	m.logger.InfoContext(ctx, "pipeline_stage_started",
		slog.String("run_id", state.RunID()),
		slog.String("stage_id", stage.ID()),
		slog.Int("stage_number", index+1),
		slog.Int("total_stages", len(m.stages)))

	m.emit(state.RunID(), stage.ID(), StatusRunning, 0, stage.Name()+" started")

	lastPercent := 0.0
	state.bindReporter(func(percent float64, message string) {
		if percent < 0 {
			percent = 0
		}
		if percent > 100 {
			percent = 100
		}
		lastPercent = percent
		m.emit(state.RunID(), stage.ID(), StatusRunning, percent, message)
	})

	execCtx := ctx
	if ts, ok := stage.(TimeoutStage); ok {
		if d := ts.Timeout(); d > 0 {
			var cancel context.CancelFunc
			execCtx, cancel = context.WithTimeout(ctx, d)
			defer cancel()
		}
	}

	start := time.Now()
	err := stage.Execute(execCtx, state)
	duration := time.Since(start)
	state.bindReporter(nil)

	if m.metrics != nil {
		infrastructure.RecordStageMetrics(ctx, m.metrics, state.RunID(), stage.ID(), duration, err == nil)
	}

	if err != nil {
		m.logger.ErrorContext(ctx, "pipeline_stage_failed",
			slog.String("run_id", state.RunID()),
			slog.String("stage_id", stage.ID()),
			slog.Duration("duration", duration),
			slog.String("error", err.Error()))
		m.emit(state.RunID(), stage.ID(), StatusFailed, lastPercent, err.Error())
		return WrapStageError(err, stage.ID(), stage.Name()+" failed")
	}

	m.logger.InfoContext(ctx, "pipeline_stage_completed",
		slog.String("run_id", state.RunID()),
		slog.String("stage_id", stage.ID()),
		slog.Duration("duration", duration))
	m.emit(state.RunID(), stage.ID(), StatusCompleted, 100, stage.Name()+" completed")

	return nil
}

func (m *Manager) emit(runID, stageID string, status Status, percent float64, message string) {
	if m.onProgress == nil {
		return
	}
	m.onProgress(Progress{
		RunID:   runID,
		StageID: stageID,
		Status:  status,
		Percent: percent,
		Message: message,
	})
}
