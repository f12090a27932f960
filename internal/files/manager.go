package files

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"sbpcli/internal/config"
)

// Manager answers questions about the on-disk data tree: whether the
// directories the pipeline depends on exist, whether they are
// writable, and how much the tree holds. Callers address locations
// either absolutely or with an area prefix ("downloads/", "reports/",
// "cache/", "logs/") that maps onto the configured directories, so
// they never assemble tree paths by hand.
type Manager struct {
	paths  *config.Paths
	logger *slog.Logger
}

// NewManager creates a manager over the configured data tree. A nil
// logger falls back to slog.Default.
func NewManager(paths *config.Paths, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{paths: paths, logger: logger}
}

// Exists reports whether a file or directory is present at the
// resolved path.
func (m *Manager) Exists(path string) bool {
	_, err := os.Stat(m.resolvePath(path))
	return err == nil
}

// Stat returns metadata for the resolved path.
func (m *Manager) Stat(path string) (os.FileInfo, error) {
	return os.Stat(m.resolvePath(path))
}

// EnsureDirectory creates a directory, parents included, if it is not
// already present. Readiness checks use it on the cache area as a
// writability probe.
func (m *Manager) EnsureDirectory(path string) error {
	fullPath := m.resolvePath(path)
	if err := os.MkdirAll(fullPath, 0o755); err != nil {
		return fmt.Errorf("ensure directory %s: %w", fullPath, err)
	}
	return nil
}

// TreeStats reports how many regular files live under dir and their
// combined size in bytes. Entries that disappear or turn unreadable
// mid-walk are skipped; the numbers feed monitoring, where a slightly
// low count beats a failed probe. Only the root being unwalkable is an
// error.
func (m *Manager) TreeStats(dir string) (int, int64, error) {
	fullPath := m.resolvePath(dir)

	var count int
	var size int64
	err := filepath.WalkDir(fullPath, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if path == fullPath {
				return walkErr
			}
			return nil
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		count++
		size += info.Size()
		return nil
	})
	if err != nil {
		return 0, 0, fmt.Errorf("walk %s: %w", fullPath, err)
	}

	m.logger.Debug("data tree measured",
		slog.String("dir", fullPath),
		slog.Int("files", count),
		slog.Int64("size_bytes", size))

	return count, size, nil
}

// resolvePath maps an area-prefixed or bare relative path onto the
// configured tree. Absolute paths pass through unchanged; bare
// relative paths land in the data directory.
func (m *Manager) resolvePath(path string) string {
	if filepath.IsAbs(path) {
		return path
	}

	switch {
	case strings.HasPrefix(path, "downloads/"):
		return m.paths.GetDownloadPath(strings.TrimPrefix(path, "downloads/"))
	case strings.HasPrefix(path, "reports/"):
		return m.paths.GetReportPath(strings.TrimPrefix(path, "reports/"))
	case strings.HasPrefix(path, "cache/"):
		return m.paths.GetCachePath(strings.TrimPrefix(path, "cache/"))
	case strings.HasPrefix(path, "logs/"):
		return m.paths.GetLogPath(strings.TrimPrefix(path, "logs/"))
	default:
		return filepath.Join(m.paths.DataDir, path)
	}
}
