package services

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ws "sbpcli/internal/websocket"
	"sbpcli/pkg/contracts"
)

func testHealthService(t *testing.T) (*HealthService, *PipelineService) {
	t.Helper()
	paths := testPaths(t)
	pipelineService := NewPipelineService(paths, nil, nil, testLogger())
	hub := ws.NewHub(testLogger())
	return NewHealthService("1.2.3", paths, pipelineService, hub, testLogger()), pipelineService
}

func TestHealthService_HealthCheck(t *testing.T) {
	hs, _ := testHealthService(t)

	status := hs.HealthCheck(context.Background())
	assert.Equal(t, "ok", status.Status)
	assert.Equal(t, "1.2.3", status.Version)
	assert.False(t, status.Timestamp.IsZero())
}

func TestHealthService_LivenessCheck(t *testing.T) {
	hs, _ := testHealthService(t)

	status := hs.LivenessCheck(context.Background())
	assert.Equal(t, "alive", status.Status)
	assert.Contains(t, status.Runtime, "uptime")
	assert.Contains(t, status.Runtime, "go_version")
	assert.Contains(t, status.Runtime, "goroutines")
}

func TestHealthService_ReadinessCheck(t *testing.T) {
	hs, _ := testHealthService(t)

	status := hs.ReadinessCheck(context.Background())
	assert.Equal(t, "ready", status.Status)

	for _, component := range []string{"data", "artifact", "pipeline", "websocket"} {
		health, ok := status.Services[component].(ServiceHealth)
		require.True(t, ok, "component %s missing", component)
		assert.Equal(t, "ready", health.Status, "component %s", component)
	}
}

func TestHealthService_ReadinessCheck_MissingDataDir(t *testing.T) {
	paths := testPaths(t)
	paths.DataDir = filepath.Join(paths.DataDir, "does_not_exist")

	hs := NewHealthService("1.2.3", paths, nil, nil, testLogger())
	status := hs.ReadinessCheck(context.Background())

	assert.Equal(t, "not_ready", status.Status)
	data, ok := status.Services["data"].(ServiceHealth)
	require.True(t, ok)
	assert.Equal(t, "not_ready", data.Status)
}

func TestHealthService_ArtifactStatus(t *testing.T) {
	paths := testPaths(t)
	hs := NewHealthService("1.2.3", paths, nil, nil, testLogger())
	ctx := context.Background()

	// No artifact yet.
	status := hs.ArtifactStatus(ctx)
	assert.False(t, status.Exists)
	assert.Equal(t, paths.IndicatorsCSV, status.Path)
	assert.Equal(t, "artifact not generated yet", status.Message)

	// Fresh artifact.
	require.NoError(t, os.MkdirAll(filepath.Dir(paths.IndicatorsCSV), 0o755))
	require.NoError(t, os.WriteFile(paths.IndicatorsCSV, []byte("Bank,Year,Month\n"), 0o644))

	status = hs.ArtifactStatus(ctx)
	assert.True(t, status.Exists)
	assert.False(t, status.Stale)
	assert.Greater(t, status.SizeBytes, int64(0))

	// Stale artifact, older than the monthly publication window.
	old := time.Now().Add(-60 * 24 * time.Hour)
	require.NoError(t, os.Chtimes(paths.IndicatorsCSV, old, old))

	status = hs.ArtifactStatus(ctx)
	assert.True(t, status.Exists)
	assert.True(t, status.Stale)
	assert.Contains(t, status.Message, "days old")
}

func TestHealthService_Version(t *testing.T) {
	paths := testPaths(t)
	hs := NewHealthServiceWithBuildInfo("2.0.0", "2024-06-01T10:00:00Z", "abc123", paths, nil, nil, testLogger())

	version := hs.Version()
	assert.Equal(t, "2.0.0", version["version"])
	assert.Equal(t, "2024-06-01T10:00:00Z", version["build_time"])
	assert.Equal(t, "abc123", version["build_id"])
	assert.Equal(t, contracts.DataFormatVersion, version["data_format"])
	assert.Equal(t, contracts.APIVersion, version["api_version"])
	assert.Contains(t, version, "go_version")
	assert.Contains(t, version, "uptime")
}

func TestHealthService_SystemStats(t *testing.T) {
	hs, pipelineService := testHealthService(t)

	stats, err := hs.SystemStats(context.Background())
	require.NoError(t, err)

	assert.GreaterOrEqual(t, stats.UptimeSeconds, 0.0)
	assert.Equal(t, 0, stats.WebSocketClients)
	assert.False(t, stats.PipelineRunning)
	assert.NotEmpty(t, stats.GoVersion)

	// A claimed run flips the pipeline flag.
	require.NoError(t, pipelineService.begin("run", func() {}))
	stats, err = hs.SystemStats(context.Background())
	require.NoError(t, err)
	assert.True(t, stats.PipelineRunning)
}

func TestHealthService_SystemStats_WorkbookCoverage(t *testing.T) {
	hs, _ := testHealthService(t)

	stats, err := hs.SystemStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, stats.DownloadedWorkbooks)
	assert.Empty(t, stats.LatestPeriod)
	assert.True(t, stats.LastDownloadAt.IsZero())

	for _, name := range []string{"balance_2023_12.xlsx", "balance_2024_01.xlsx", "notes.xlsx"} {
		path := filepath.Join(hs.paths.DownloadsDir, name)
		require.NoError(t, os.WriteFile(path, []byte("wb"), 0o644))
	}

	stats, err = hs.SystemStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.DownloadedWorkbooks, "only period-named workbooks count")
	assert.Equal(t, "2024-01", stats.LatestPeriod)
	assert.False(t, stats.LastDownloadAt.IsZero())
}

func TestHealthService_GetDetailedHealth(t *testing.T) {
	hs, _ := testHealthService(t)

	detail := hs.GetDetailedHealth(context.Background())
	assert.Contains(t, detail, "health")
	assert.Contains(t, detail, "readiness")
	assert.Contains(t, detail, "liveness")
	assert.Contains(t, detail, "artifact")
	assert.Contains(t, detail, "stats")
}
