package captures

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// PruneReport summarizes one retention pass.
type PruneReport struct {
	Cutoff  time.Time
	Scanned int
	Deleted []string
	Kept    int
	Failed  map[string]error
}

// Cutoff returns the instant before which files are expired.
func Cutoff(now time.Time, days int) time.Time {
	return now.AddDate(0, 0, -days)
}

// Prune removes regular files in the capture directory whose modification
// time is strictly before now minus days. Each file is handled on its own:
// a failure is logged and recorded in the report, and the pass continues.
// A missing directory is not an error.
func (s *Store) Prune(now time.Time, days int) (PruneReport, error) {
	report := PruneReport{
		Cutoff: Cutoff(now, days),
		Failed: make(map[string]error),
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return report, nil
		}
		return report, fmt.Errorf("failed to read capture directory: %w", err)
	}

	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		report.Scanned++
		path := filepath.Join(s.dir, entry.Name())

		info, err := entry.Info()
		if err != nil {
			slog.Warn("Cleanup error", "path", path, "error", err)
			report.Failed[path] = err
			continue
		}

		if !info.ModTime().Before(report.Cutoff) {
			report.Kept++
			continue
		}

		if err := os.Remove(path); err != nil {
			slog.Warn("Cleanup error", "path", path, "error", err)
			report.Failed[path] = err
			continue
		}
		slog.Info("Deleted old file", "path", path)
		report.Deleted = append(report.Deleted, path)
	}

	return report, nil
}
