package wal

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// CleanupStats tracks cleanup operation results.
type CleanupStats struct {
	FilesRemoved int
	BytesFreed   int64
}

// Cleanup removes journal files older than the retention period.
func Cleanup(dir string, config Config) error {
	_, err := CleanupWithStats(dir, config)
	return err
}

// CleanupWithStats removes old files and reports what was removed.
func CleanupWithStats(dir string, config Config) (CleanupStats, error) {
	if config.FilePrefix == "" {
		config.FilePrefix = DefaultConfig().FilePrefix
	}

	stats := CleanupStats{}
	cutoff := time.Now().AddDate(0, 0, -config.RetentionDays)

	pattern := filepath.Join(dir, config.FilePrefix+"-*.wal")
	files, err := filepath.Glob(pattern)
	if err != nil {
		return stats, fmt.Errorf("failed to list journal files: %w", err)
	}

	for _, file := range files {
		info, err := os.Stat(file)
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(file); err != nil {
			return stats, fmt.Errorf("failed to remove %s: %w", file, err)
		}
		stats.FilesRemoved++
		stats.BytesFreed += info.Size()
	}

	return stats, nil
}
