// Package staging removes leftovers from renders and archive encodes that
// were killed before they could clean up after themselves.
package staging

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"reelforge/internal/logging"
	"reelforge/internal/media/ffmpeg"
)

// CleanResult contains the outcome of a cleanup pass.
type CleanResult struct {
	Removed []string
	Errors  []CleanupError
}

// CleanupError pairs a path with its cleanup error.
type CleanupError struct {
	Path  string
	Error error
}

// CleanStale removes directories under dir last modified more than maxAge ago.
func CleanStale(ctx context.Context, dir string, maxAge time.Duration, logger *slog.Logger) CleanResult {
	return clean(ctx, dir, maxAge, logger, func(entry os.DirEntry) bool {
		return entry.IsDir()
	})
}

// CleanPartials removes hidden encoder temp files (".name.partial") under dir
// last modified more than maxAge ago.
func CleanPartials(ctx context.Context, dir string, maxAge time.Duration, logger *slog.Logger) CleanResult {
	return clean(ctx, dir, maxAge, logger, func(entry os.DirEntry) bool {
		name := entry.Name()
		return !entry.IsDir() && strings.HasPrefix(name, ".") && strings.HasSuffix(name, ffmpeg.PartialSuffix)
	})
}

func clean(ctx context.Context, dir string, maxAge time.Duration, logger *slog.Logger, match func(os.DirEntry) bool) CleanResult {
	result := CleanResult{}
	if logger == nil {
		logger = logging.NewNop()
	}

	dir = strings.TrimSpace(dir)
	if dir == "" {
		return result
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if !os.IsNotExist(err) {
			result.Errors = append(result.Errors, CleanupError{Path: dir, Error: err})
		}
		return result
	}

	cutoff := time.Now().Add(-maxAge)
	for _, entry := range entries {
		if ctx.Err() != nil {
			break
		}
		if !match(entry) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		info, err := entry.Info()
		if err != nil {
			result.Errors = append(result.Errors, CleanupError{Path: path, Error: err})
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		if err := os.RemoveAll(path); err != nil {
			result.Errors = append(result.Errors, CleanupError{Path: path, Error: err})
			logger.Warn("failed to remove leftover",
				logging.String("path", path),
				logging.Error(err),
			)
			continue
		}
		result.Removed = append(result.Removed, path)
		logger.Info("removed leftover",
			logging.String("path", path),
			logging.Duration("age", time.Since(info.ModTime())),
		)
	}
	return result
}
