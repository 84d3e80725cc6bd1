package image

import (
	"log/slog"
	"os"
	"path/filepath"
	"sort"
)

// =============================================================================
// Artifact Retention
// =============================================================================

// Prune removes old archives for the project, keeping only the keep
// most-recently-modified ones. Each removed archive's hash sidecar goes with
// it. A missing retention directory is a no-op.
func Prune(dir, projectName string, keep int, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	if keep < 0 {
		keep = 0
	}

	dist := filepath.Join(dir, ArtifactDir)
	matches, err := filepath.Glob(filepath.Join(dist, projectName+"-*.tar.gz"))
	if err != nil {
		return err
	}

	type entry struct {
		path  string
		mtime int64
	}

	entries := make([]entry, 0, len(matches))
	for _, path := range matches {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		entries = append(entries, entry{path: path, mtime: info.ModTime().UnixNano()})
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].mtime > entries[j].mtime
	})

	for _, old := range entries[min(keep, len(entries)):] {
		if err := os.Remove(old.path); err != nil {
			return err
		}
		// Best effort: the sidecar may never have been written.
		_ = os.Remove(old.path + ".sha256")
		logger.Info("removed old artifact", "path", filepath.Base(old.path))
	}

	return nil
}
