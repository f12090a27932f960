// Package pipeline runs the balance-sheet derivation as an ordered
// sequence of stages: parse raw workbooks into records, compute the
// indicator table, export the artifacts. A Manager owns the stage
// list, threads a shared State through the stages, reports progress to
// an injected callback and stops at the first failure.
package pipeline

import (
	"sync"
	"time"

	"sbpcli/internal/indicators"
	"sbpcli/pkg/contracts/domain"
)

// Stage identifiers, in execution order.
const (
	StageIDParse   = "parse"
	StageIDCompute = "compute"
	StageIDExport  = "export"
)

// Human-readable stage names for progress displays.
const (
	StageNameParse   = "Workbook Ingestion"
	StageNameCompute = "Indicator Derivation"
	StageNameExport  = "Artifact Export"
)

// Counter keys tracked in State between stages.
const (
	CountFilesParsed     = "files_parsed"
	CountRecordsParsed   = "records_parsed"
	CountRowsSkipped     = "rows_skipped"
	CountValuesCoerced   = "values_coerced"
	CountPeriodsComputed = "periods_computed"
	CountNullRatios      = "null_ratios"
)

// Artifact keys for the files the export stage writes.
const (
	ArtifactIndicatorsCSV  = "indicators_csv"
	ArtifactIndicatorsJSON = "indicators_json"
	ArtifactRunMetadata    = "run_metadata"
	ArtifactBalanceCSV     = "balance_records_csv"
)

// Status is the lifecycle state of a stage within a run.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Progress is one observable step of a run. Percent is scoped to the
// named stage, 0 at start and 100 on completion.
type Progress struct {
	RunID   string  `json:"run_id"`
	StageID string  `json:"stage_id"`
	Status  Status  `json:"status"`
	Percent float64 `json:"percent"`
	Message string  `json:"message"`
}

// ProgressFunc receives progress events as a run advances. Callbacks
// run on the pipeline goroutine and must not block.
type ProgressFunc func(Progress)

// State carries the data one run threads through its stages. All
// accessors are safe for concurrent use so status endpoints can read a
// state while the run is still executing.
type State struct {
	mu sync.RWMutex

	runID     string
	startedAt time.Time

	sources   []string
	records   []domain.BalanceRecord
	result    *indicators.Result
	artifacts map[string]string
	counters  map[string]int

	// report is bound by the Manager around each Execute call so
	// stages can publish intermediate progress.
	report func(percent float64, message string)
}

// NewState creates the state for one run over the given source files.
func NewState(runID string, sources []string) *State {
	return &State{
		runID:     runID,
		startedAt: time.Now(),
		sources:   sources,
		artifacts: make(map[string]string),
		counters:  make(map[string]int),
	}
}

// RunID returns the identifier assigned to this run.
func (s *State) RunID() string {
	return s.runID
}

// StartedAt returns the state creation time.
func (s *State) StartedAt() time.Time {
	return s.startedAt
}

// Sources returns the raw input files the run ingests.
func (s *State) Sources() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.sources))
	copy(out, s.sources)
	return out
}

// SetRecords stores the parsed balance records for downstream stages.
func (s *State) SetRecords(records []domain.BalanceRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = records
}

// Records returns the parsed balance records.
func (s *State) Records() []domain.BalanceRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.records
}

// SetResult stores the computed indicator result.
func (s *State) SetResult(result *indicators.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.result = result
}

// Result returns the computed indicator result, nil before the compute
// stage has run.
func (s *State) Result() *indicators.Result {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.result
}

// SetArtifact records the path of a written artifact under a
// well-known key.
func (s *State) SetArtifact(key, path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.artifacts[key] = path
}

// Artifact returns the path recorded for an artifact key.
func (s *State) Artifact(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	path, ok := s.artifacts[key]
	return path, ok
}

// Artifacts returns a copy of all recorded artifact paths.
func (s *State) Artifacts() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.artifacts))
	for k, v := range s.artifacts {
		out[k] = v
	}
	return out
}

// AddCount adds delta to a named run counter.
func (s *State) AddCount(key string, delta int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters[key] += delta
}

// Count returns the current value of a run counter.
func (s *State) Count(key string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.counters[key]
}

// Counters returns a copy of all run counters.
func (s *State) Counters() map[string]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]int, len(s.counters))
	for k, v := range s.counters {
		out[k] = v
	}
	return out
}

// Report publishes intermediate progress for the stage currently
// executing. It is a no-op outside a Manager run.
func (s *State) Report(percent float64, message string) {
	s.mu.RLock()
	report := s.report
	s.mu.RUnlock()
	if report != nil {
		report(percent, message)
	}
}

func (s *State) bindReporter(report func(percent float64, message string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.report = report
}
