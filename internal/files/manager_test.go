package files

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sbpcli/internal/config"
)

// testTree builds a Manager over a temp data tree with the standard
// area layout.
func testTree(t *testing.T) (*Manager, *config.Paths) {
	t.Helper()

	tmpDir := t.TempDir()
	paths := &config.Paths{
		ExecutableDir: tmpDir,
		DataDir:       filepath.Join(tmpDir, "data"),
		DownloadsDir:  filepath.Join(tmpDir, "data", "downloads"),
		ReportsDir:    filepath.Join(tmpDir, "data", "reports"),
		CacheDir:      filepath.Join(tmpDir, "data", "cache"),
		LogsDir:       filepath.Join(tmpDir, "logs"),
	}
	require.NoError(t, os.MkdirAll(paths.DataDir, 0o755))

	return NewManager(paths, nil), paths
}

func writeTreeFile(t *testing.T, path string, size int) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, make([]byte, size), 0o644))
}

func TestNewManager(t *testing.T) {
	paths := &config.Paths{DataDir: "/data"}

	manager := NewManager(paths, nil)
	assert.NotNil(t, manager)
	assert.Equal(t, paths, manager.paths)
	assert.NotNil(t, manager.logger)
}

func TestManagerExists(t *testing.T) {
	manager, paths := testTree(t)

	writeTreeFile(t, filepath.Join(paths.DownloadsDir, "balance_2024_01.xlsx"), 10)

	tests := []struct {
		name   string
		path   string
		exists bool
	}{
		{
			name:   "downloaded workbook by area path",
			path:   "downloads/balance_2024_01.xlsx",
			exists: true,
		},
		{
			name:   "data directory by absolute path",
			path:   paths.DataDir,
			exists: true,
		},
		{
			name:   "missing workbook",
			path:   "downloads/balance_2030_01.xlsx",
			exists: false,
		},
		{
			name:   "missing area",
			path:   "reports/indicators/indicators.csv",
			exists: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.exists, manager.Exists(tt.path))
		})
	}
}

func TestManagerStat(t *testing.T) {
	manager, paths := testTree(t)

	writeTreeFile(t, filepath.Join(paths.ReportsDir, "indicators", "indicators.csv"), 64)

	info, err := manager.Stat("reports/indicators/indicators.csv")
	require.NoError(t, err)
	assert.Equal(t, int64(64), info.Size())
	assert.False(t, info.ModTime().IsZero())

	_, err = manager.Stat("reports/never_written.csv")
	assert.Error(t, err)
	assert.True(t, os.IsNotExist(err))
}

func TestManagerEnsureDirectory(t *testing.T) {
	manager, paths := testTree(t)

	t.Run("creates cache area with parents", func(t *testing.T) {
		require.NoError(t, manager.EnsureDirectory("cache/"))

		info, err := os.Stat(paths.CacheDir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	})

	t.Run("idempotent on existing directory", func(t *testing.T) {
		require.NoError(t, manager.EnsureDirectory("cache/"))
		assert.NoError(t, manager.EnsureDirectory("cache/"))
	})

	t.Run("nested directory under data", func(t *testing.T) {
		require.NoError(t, manager.EnsureDirectory("scratch/monthly"))

		info, err := os.Stat(filepath.Join(paths.DataDir, "scratch", "monthly"))
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	})

	t.Run("fails when a file blocks the path", func(t *testing.T) {
		writeTreeFile(t, filepath.Join(paths.DataDir, "blocker"), 1)

		err := manager.EnsureDirectory("blocker/child")
		assert.Error(t, err)
	})
}

func TestManagerTreeStats(t *testing.T) {
	manager, paths := testTree(t)

	t.Run("empty tree", func(t *testing.T) {
		count, size, err := manager.TreeStats(paths.DataDir)
		require.NoError(t, err)
		assert.Equal(t, 0, count)
		assert.Equal(t, int64(0), size)
	})

	t.Run("counts files across areas", func(t *testing.T) {
		writeTreeFile(t, filepath.Join(paths.DownloadsDir, "balance_2024_01.xlsx"), 100)
		writeTreeFile(t, filepath.Join(paths.DownloadsDir, "balance_2024_02.xlsx"), 250)
		writeTreeFile(t, filepath.Join(paths.ReportsDir, "indicators", "indicators.csv"), 50)

		count, size, err := manager.TreeStats(paths.DataDir)
		require.NoError(t, err)
		assert.Equal(t, 3, count)
		assert.Equal(t, int64(400), size)
	})

	t.Run("directories are not counted", func(t *testing.T) {
		require.NoError(t, os.MkdirAll(filepath.Join(paths.DataDir, "empty_dir"), 0o755))

		count, _, err := manager.TreeStats(paths.DataDir)
		require.NoError(t, err)
		assert.Equal(t, 3, count)
	})

	t.Run("missing root is an error", func(t *testing.T) {
		_, _, err := manager.TreeStats(filepath.Join(paths.DataDir, "does_not_exist"))
		assert.Error(t, err)
	})
}

func TestManagerResolvePath(t *testing.T) {
	manager, paths := testTree(t)

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "downloads area",
			input:    "downloads/balance_2024_06.xlsx",
			expected: paths.GetDownloadPath("balance_2024_06.xlsx"),
		},
		{
			name:     "reports area",
			input:    "reports/indicators/indicators.csv",
			expected: paths.GetReportPath("indicators/indicators.csv"),
		},
		{
			name:     "cache area root",
			input:    "cache/",
			expected: paths.CacheDir,
		},
		{
			name:     "logs area",
			input:    "logs/sbp-lens.log",
			expected: paths.GetLogPath("sbp-lens.log"),
		},
		{
			name:     "absolute path passes through",
			input:    "/absolute/path/file.txt",
			expected: "/absolute/path/file.txt",
		},
		{
			name:     "bare path lands in data",
			input:    "somefile.txt",
			expected: filepath.Join(paths.DataDir, "somefile.txt"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, manager.resolvePath(tt.input))
		})
	}
}
