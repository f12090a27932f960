package services

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"strings"
	"time"

	"sbpcli/internal/config"
	"sbpcli/internal/files"
	ws "sbpcli/internal/websocket"
	"sbpcli/pkg/contracts"
)

// HealthService provides health check functionality
type HealthService struct {
	version   string
	buildTime string
	buildID   string
	paths     *config.Paths
	store     *files.Manager
	discovery *files.Discovery
	pipeline  *PipelineService
	hub       *ws.Hub
	startTime time.Time
	logger    *slog.Logger
}

// HealthStatus represents the health status response
type HealthStatus struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Version   string                 `json:"version"`
	Runtime   map[string]interface{} `json:"runtime,omitempty"`
	Services  map[string]interface{} `json:"services,omitempty"`
}

// ServiceHealth represents individual service health
type ServiceHealth struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Uptime  string `json:"uptime,omitempty"`
}

// ArtifactStatus describes the current indicator artifact on disk.
type ArtifactStatus struct {
	Exists     bool      `json:"exists"`
	Path       string    `json:"path"`
	SizeBytes  int64     `json:"size_bytes,omitempty"`
	ModifiedAt time.Time `json:"modified_at,omitempty"`
	AgeSeconds float64   `json:"age_seconds,omitempty"`
	Stale      bool      `json:"stale"`
	Message    string    `json:"message,omitempty"`
}

// SystemStats represents system statistics
type SystemStats struct {
	UptimeSeconds       float64   `json:"uptime_seconds"`
	TotalFiles          int       `json:"total_files"`
	TotalSizeBytes      int64     `json:"total_size_bytes"`
	DownloadedWorkbooks int       `json:"downloaded_workbooks"`
	LatestPeriod        string    `json:"latest_period,omitempty"`
	LastDownloadAt      time.Time `json:"last_download_at,omitempty"`
	WebSocketClients    int       `json:"websocket_clients"`
	PipelineRunning     bool      `json:"pipeline_running"`
	GoVersion           string    `json:"go_version"`
	OS                  string    `json:"os"`
	Arch                string    `json:"arch"`
}

// artifactStaleAge is the age past which the monthly artifact is
// flagged stale. The SBP publishes once a month; 40 days covers the
// publication lag.
const artifactStaleAge = 40 * 24 * time.Hour

// NewHealthService creates a new health service with injected dependencies and default logger
func NewHealthService(version string, paths *config.Paths, pipeline *PipelineService, hub *ws.Hub, logger *slog.Logger) *HealthService {
	return NewHealthServiceWithBuildInfo(version, "", "", paths, pipeline, hub, logger)
}

// NewHealthServiceWithBuildInfo creates a new health service with build information
func NewHealthServiceWithBuildInfo(version, buildTime, buildID string, paths *config.Paths, pipeline *PipelineService, hub *ws.Hub, logger *slog.Logger) *HealthService {
	// Ensure we have a logger
	if logger == nil {
		logger = slog.Default()
	}

	logger.Info("HealthService initialized",
		slog.String("version", version),
		slog.String("build_time", buildTime),
		slog.String("build_id", buildID))

	return &HealthService{
		version:   version,
		buildTime: buildTime,
		buildID:   buildID,
		paths:     paths,
		store:     files.NewManager(paths, logger),
		discovery: files.NewDiscovery(paths.DataDir),
		pipeline:  pipeline,
		hub:       hub,
		startTime: time.Now(),
		logger:    logger,
	}
}

// HealthCheck returns overall health status
func (hs *HealthService) HealthCheck(ctx context.Context) HealthStatus {
	hs.logger.Debug("HealthCheck: performing health check",
		slog.String("version", hs.version),
		slog.String("uptime", time.Since(hs.startTime).String()))

	return HealthStatus{
		Status:    "ok",
		Timestamp: time.Now(),
		Version:   hs.version,
	}
}

// ReadinessCheck returns readiness status
func (hs *HealthService) ReadinessCheck(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:    "ready",
		Timestamp: time.Now(),
		Version:   hs.version,
		Services:  make(map[string]interface{}),
	}

	// Check individual services
	status.Services["data"] = hs.checkDataHealth()
	status.Services["artifact"] = hs.checkArtifactHealth()
	status.Services["pipeline"] = hs.checkPipelineHealth()
	status.Services["websocket"] = hs.checkWebSocketHealth()

	// Determine overall readiness
	allReady := true
	for _, service := range status.Services {
		if sh, ok := service.(ServiceHealth); ok && sh.Status != "ready" {
			allReady = false
			break
		}
	}

	if !allReady {
		status.Status = "not_ready"
	}

	return status
}

// LivenessCheck returns liveness status
func (hs *HealthService) LivenessCheck(ctx context.Context) HealthStatus {
	return HealthStatus{
		Status:    "alive",
		Timestamp: time.Now(),
		Version:   hs.version,
		Runtime: map[string]interface{}{
			"uptime":     time.Since(hs.startTime).Seconds(),
			"go_version": runtime.Version(),
			"goroutines": runtime.NumGoroutine(),
		},
	}
}

// Version returns version information
func (hs *HealthService) Version() map[string]interface{} {
	build := contracts.CurrentBuild()
	result := map[string]interface{}{
		"version":      hs.version,
		"go_version":   build.GoVersion,
		"os":           build.OS,
		"arch":         build.Arch,
		"data_format":  contracts.DataFormatVersion,
		"api_version":  contracts.APIVersion,
		"uptime":       time.Since(hs.startTime).Seconds(),
		"start_time":   hs.startTime.Format(time.RFC3339),
		"current_time": time.Now().Format(time.RFC3339),
	}

	// Include build info if available
	if hs.buildTime != "" {
		result["build_time"] = hs.buildTime
	}
	if hs.buildID != "" {
		result["build_id"] = hs.buildID
	}

	return result
}

// ArtifactStatus reports whether the indicator artifact exists and how
// old it is relative to the monthly publication cadence.
func (hs *HealthService) ArtifactStatus(ctx context.Context) ArtifactStatus {
	path := hs.paths.IndicatorsCSV
	info, err := hs.store.Stat(path)
	if err != nil {
		return ArtifactStatus{
			Exists:  false,
			Path:    path,
			Message: "artifact not generated yet",
		}
	}

	age := time.Since(info.ModTime())
	status := ArtifactStatus{
		Exists:     true,
		Path:       path,
		SizeBytes:  info.Size(),
		ModifiedAt: info.ModTime(),
		AgeSeconds: age.Seconds(),
		Stale:      age > artifactStaleAge,
	}
	if status.Stale {
		status.Message = fmt.Sprintf("artifact is %d days old", int(age.Hours()/24))
	}
	return status
}

// SystemStats returns system statistics
func (hs *HealthService) SystemStats(ctx context.Context) (SystemStats, error) {
	totalFiles, totalSize, err := hs.store.TreeStats(hs.paths.DataDir)
	if err != nil {
		// Stats are best-effort; a tree that cannot be walked reports zeros.
		hs.logger.Debug("data tree stats unavailable",
			slog.String("error", err.Error()))
	}

	stats := SystemStats{
		UptimeSeconds:  time.Since(hs.startTime).Seconds(),
		TotalFiles:     totalFiles,
		TotalSizeBytes: totalSize,
		GoVersion:      runtime.Version(),
		OS:             runtime.GOOS,
		Arch:           runtime.GOARCH,
	}
	if hs.hub != nil {
		stats.WebSocketClients = hs.hub.ClientCount()
	}
	if hs.pipeline != nil {
		stats.PipelineRunning = hs.pipeline.IsRunning()
	}

	// Downloads coverage: how many monthly workbooks are on disk, the
	// newest reporting period among them, and when the fetcher last
	// added one.
	workbooks, err := hs.discovery.FindWorkbookFiles(hs.paths.DownloadsDir)
	if err != nil {
		hs.logger.Debug("workbook scan unavailable",
			slog.String("error", err.Error()))
	} else {
		stats.DownloadedWorkbooks = len(workbooks)
		infos := make([]files.FileInfo, 0, len(workbooks))
		latestPeriod := ""
		for period, file := range workbooks {
			infos = append(infos, file)
			if period > latestPeriod {
				latestPeriod = period
			}
		}
		stats.LatestPeriod = strings.ReplaceAll(latestPeriod, "_", "-")
		if latest, ok := files.GetLatestFile(infos); ok {
			stats.LastDownloadAt = latest.ModTime
		}
	}

	return stats, nil
}

// checkArtifactHealth reports artifact presence. A missing artifact
// does not gate readiness; a fresh install is ready before its first
// run.
func (hs *HealthService) checkArtifactHealth() ServiceHealth {
	status := hs.ArtifactStatus(context.Background())
	if !status.Exists {
		return ServiceHealth{
			Status:  "ready",
			Message: "artifact not generated yet",
		}
	}
	if status.Stale {
		return ServiceHealth{
			Status:  "ready",
			Message: status.Message,
		}
	}
	return ServiceHealth{
		Status:  "ready",
		Message: "artifact is current",
	}
}

// checkWebSocketHealth checks WebSocket service health
func (hs *HealthService) checkWebSocketHealth() ServiceHealth {
	if hs.hub == nil {
		return ServiceHealth{
			Status:  "not_ready",
			Message: "websocket hub not initialized",
		}
	}

	return ServiceHealth{
		Status:  "ready",
		Message: fmt.Sprintf("%d clients connected", hs.hub.ClientCount()),
		Uptime:  time.Since(hs.startTime).String(),
	}
}

// checkPipelineHealth checks pipeline service health
func (hs *HealthService) checkPipelineHealth() ServiceHealth {
	if hs.pipeline == nil {
		return ServiceHealth{
			Status:  "not_ready",
			Message: "pipeline service not initialized",
		}
	}

	if hs.pipeline.IsRunning() {
		return ServiceHealth{
			Status:  "ready",
			Message: "pipeline run in progress",
		}
	}
	return ServiceHealth{
		Status:  "ready",
		Message: "pipeline service is idle",
	}
}

// checkDataHealth checks data directory health
func (hs *HealthService) checkDataHealth() ServiceHealth {
	if !hs.store.Exists(hs.paths.DataDir) {
		return ServiceHealth{
			Status:  "not_ready",
			Message: fmt.Sprintf("Data directory not found: %s", hs.paths.DataDir),
		}
	}

	// Creating the cache area doubles as the writability probe.
	if err := hs.store.EnsureDirectory("cache/"); err != nil {
		return ServiceHealth{
			Status:  "not_ready",
			Message: fmt.Sprintf("Cannot write to data directory: %v", err),
		}
	}

	return ServiceHealth{
		Status:  "ready",
		Message: "Data directories are writable",
	}
}

// GetDetailedHealth returns comprehensive health information
func (hs *HealthService) GetDetailedHealth(ctx context.Context) map[string]interface{} {
	stats, _ := hs.SystemStats(ctx)

	return map[string]interface{}{
		"health":    hs.HealthCheck(ctx),
		"readiness": hs.ReadinessCheck(ctx),
		"liveness":  hs.LivenessCheck(ctx),
		"artifact":  hs.ArtifactStatus(ctx),
		"stats":     stats,
	}
}
