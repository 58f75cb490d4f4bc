// Package startup provides application startup tasks: sweeping orphaned
// temp files and scheduling the recurring sweep.
package startup

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// TempFilePrefix marks intermediate files convarr creates (SVG
// rasterisations, in-flight image encodes).
const TempFilePrefix = "convarr-"

// DefaultCleanupAge is the maximum age before an orphaned temp file is
// swept. Files younger than this may belong to a running conversion.
const DefaultCleanupAge = time.Hour

// CleanupOrphanedTempFiles removes convarr temp files in dir older than
// maxAge. Returns how many entries were removed.
func CleanupOrphanedTempFiles(logger *slog.Logger, dir string, maxAge time.Duration) (int, error) {
	if dir == "" {
		dir = os.TempDir()
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		logger.Debug("temp directory does not exist, skipping cleanup", "path", dir)
		return 0, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, err
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, entry := range entries {
		if !strings.HasPrefix(entry.Name(), TempFilePrefix) {
			continue
		}
		path := filepath.Join(dir, entry.Name())

		info, err := entry.Info()
		if err != nil {
			logger.Warn("stat temp entry", "path", path, "error", err)
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}

		if err := os.RemoveAll(path); err != nil {
			logger.Warn("removing orphaned temp entry", "path", path, "error", err)
			continue
		}
		logger.Info("removed orphaned temp entry",
			"path", path, "age", time.Since(info.ModTime()).Round(time.Second))
		removed++
	}
	return removed, nil
}

// Sweeper runs the temp-file sweep on a cron schedule.
type Sweeper struct {
	cron   *cron.Cron
	logger *slog.Logger
}

// NewSweeper schedules CleanupOrphanedTempFiles on the given 5-field cron
// expression. An empty schedule yields a Sweeper whose Start is a no-op.
func NewSweeper(schedule, dir string, maxAge time.Duration, logger *slog.Logger) (*Sweeper, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "sweeper")

	s := &Sweeper{logger: logger}
	if schedule == "" {
		return s, nil
	}

	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		if _, err := CleanupOrphanedTempFiles(logger, dir, maxAge); err != nil {
			logger.Warn("scheduled temp sweep failed", "error", err)
		}
	})
	if err != nil {
		return nil, err
	}
	s.cron = c
	return s, nil
}

// Start begins the scheduled sweeps.
func (s *Sweeper) Start() {
	if s.cron != nil {
		s.cron.Start()
	}
}

// Stop halts scheduling and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
}
