package storage

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"slices"
	"strings"
)

var syncedExtensions = []string{".md", ".markdown", ".jpg", ".jpeg", ".png", ".gif"}

// SyncSources walks the local sources directory and uploads any missing post or image file to dst.
// Upload failures are logged and skipped so one bad file does not block the rest.
func SyncSources(ctx context.Context, dst Provider, sourceDir string, logger *slog.Logger) (int, error) {
	logger.Info("starting source sync", "dir", sourceDir)

	root, err := os.OpenRoot(sourceDir)
	if err != nil {
		return 0, fmt.Errorf("could not open directory %s: %w", sourceDir, err)
	}
	defer root.Close()

	uploaded := 0
	err = fs.WalkDir(root.FS(), ".", func(key string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !d.Type().IsRegular() {
			return nil
		}

		if !slices.Contains(syncedExtensions, strings.ToLower(path.Ext(key))) {
			return nil
		}

		if dst.Exists(ctx, key) {
			return nil
		}

		logger.Info("syncing missing source", "key", key)

		file, err := root.Open(key)
		if err != nil {
			logger.Error("failed to open local file", "key", key, "err", err)
			return nil
		}
		defer file.Close()

		if err := dst.Save(ctx, key, file); err != nil {
			logger.Error("failed to upload source", "key", key, "err", err)
			return nil
		}
		uploaded++
		return nil
	})
	if err != nil {
		return uploaded, fmt.Errorf("source sync failed: %w", err)
	}

	logger.Info("source sync complete", "uploaded", uploaded)
	return uploaded, nil
}
