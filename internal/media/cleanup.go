package media

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const DefaultCleanupInterval = 15 * time.Minute

// CleanupService removes staged uploads left behind by crashed requests.
type CleanupService struct {
	tempDir  string
	maxAge   time.Duration
	interval time.Duration
}

func NewCleanupService(tempDir string, maxAge time.Duration) *CleanupService {
	return &CleanupService{
		tempDir:  tempDir,
		maxAge:   maxAge,
		interval: DefaultCleanupInterval,
	}
}

func (s *CleanupService) Start(ctx context.Context) {
	slog.Info("starting temp upload cleanup service", "component", "upload_cleanup", "interval", s.interval, "dir", s.tempDir)

	s.runCleanup(time.Now())

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("stopping temp upload cleanup service", "component", "upload_cleanup")
			return
		case <-ticker.C:
			s.runCleanup(time.Now())
		}
	}
}

func (s *CleanupService) runCleanup(now time.Time) int {
	entries, err := os.ReadDir(s.tempDir)
	if errors.Is(err, os.ErrNotExist) {
		return 0
	}
	if err != nil {
		slog.Error("error listing temp uploads", "component", "upload_cleanup", "error", err)
		return 0
	}

	removed := 0
	cutoff := now.Add(-s.maxAge)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), "upload-") {
			continue
		}

		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}

		if err := os.Remove(filepath.Join(s.tempDir, entry.Name())); err != nil && !errors.Is(err, os.ErrNotExist) {
			slog.Warn("error deleting stale temp upload", "component", "upload_cleanup", "error", err, "file", entry.Name())
			continue
		}
		removed++
	}

	if removed > 0 {
		slog.Info("deleted stale temp uploads", "component", "upload_cleanup", "count", removed)
	}
	return removed
}
