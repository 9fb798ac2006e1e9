package indexer

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// IndexVersion is the version of the cache layout and the encoding of the stored metadata.
// Bumping it invalidates every existing cache.
const IndexVersion = 2

const versionFileName = "index_version"

// CheckAndMigrateCache clears cacheDir when it was written by another index version.
// It reports whether the cache was cleared and has to be rebuilt.
func CheckAndMigrateCache(cacheDir string) (bool, error) {
	versionFile := filepath.Join(cacheDir, versionFileName)

	stored, err := readVersion(versionFile)
	if err != nil {
		return false, err
	}
	if stored == IndexVersion {
		return false, nil
	}

	if err := clearCacheDir(cacheDir); err != nil {
		return false, fmt.Errorf("failed to clear cache: %w", err)
	}
	if err := os.WriteFile(versionFile, []byte(strconv.Itoa(IndexVersion)), 0o644); err != nil {
		return false, fmt.Errorf("failed to write version: %w", err)
	}
	return true, nil
}

// readVersion returns 0 for missing or unreadable version files
func readVersion(versionFile string) (int, error) {
	data, err := os.ReadFile(versionFile)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read version file: %w", err)
	}

	version, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, nil
	}
	return version, nil
}

// clearCacheDir empties the cache directory, creating it when missing
func clearCacheDir(cacheDir string) error {
	entries, err := os.ReadDir(cacheDir)
	if os.IsNotExist(err) {
		return os.MkdirAll(cacheDir, 0o755)
	}
	if err != nil {
		return err
	}

	for _, entry := range entries {
		path := filepath.Join(cacheDir, entry.Name())
		if err := os.RemoveAll(path); err != nil {
			return fmt.Errorf("failed to remove %s: %w", path, err)
		}
	}

	return nil
}
