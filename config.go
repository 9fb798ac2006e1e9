package main

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/shopware/php-callcheck/internal/config"
)

const cacheFolderName = "php-callcheck"

// cacheFolder returns the directory holding the class index of the project, creating it
// when needed. An explicit cache_dir wins over the per-project folder in the user cache.
func cacheFolder(cfg *config.Config) (string, error) {
	dir := cfg.CacheDir
	if dir != "" && !filepath.IsAbs(dir) {
		dir = filepath.Join(cfg.Root, dir)
	}

	if dir == "" {
		base, err := userCacheDir()
		if err != nil {
			return "", err
		}
		dir = filepath.Join(base, cacheFolderName, projectSlug(cfg.Root))
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create cache directory %s: %w", dir, err)
	}
	return dir, nil
}

// projectSlug names the cache folder of a project: the base name for humans, a hash of the
// full path to keep projects with the same name apart
func projectSlug(root string) string {
	sum := sha256.Sum256([]byte(filepath.Clean(root)))
	return filepath.Base(root) + "-" + hex.EncodeToString(sum[:6])
}

func userCacheDir() (string, error) {
	if dir, err := os.UserCacheDir(); err == nil {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to find a cache directory: %w", err)
	}
	return filepath.Join(home, ".cache"), nil
}
