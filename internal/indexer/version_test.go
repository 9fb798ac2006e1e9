package indexer

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCacheFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestCheckAndMigrateCache(t *testing.T) {
	current := strconv.Itoa(IndexVersion)

	testCases := []struct {
		name        string
		version     string
		writeFile   bool
		wantCleared bool
	}{
		{name: "fresh cache", wantCleared: true},
		{name: "matching version", version: current, writeFile: true, wantCleared: false},
		{name: "matching version with whitespace", version: current + "\n", writeFile: true, wantCleared: false},
		{name: "old version", version: "1", writeFile: true, wantCleared: true},
		{name: "corrupted version", version: "not-a-number", writeFile: true, wantCleared: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cacheDir := t.TempDir()
			versionFile := filepath.Join(cacheDir, versionFileName)
			if tc.writeFile {
				writeCacheFile(t, versionFile, tc.version)
			}

			dbFile := filepath.Join(cacheDir, "php_classes.db")
			writeCacheFile(t, dbFile, "data")

			cleared, err := CheckAndMigrateCache(cacheDir)
			require.NoError(t, err)
			assert.Equal(t, tc.wantCleared, cleared)

			_, err = os.Stat(dbFile)
			assert.Equal(t, tc.wantCleared, os.IsNotExist(err))

			data, err := os.ReadFile(versionFile)
			require.NoError(t, err)
			if tc.wantCleared {
				assert.Equal(t, current, string(data))
			}
		})
	}
}

func TestCheckAndMigrateCache_ClearsSubdirectories(t *testing.T) {
	cacheDir := t.TempDir()

	subDir := filepath.Join(cacheDir, "subdir")
	writeCacheFile(t, filepath.Join(subDir, "nested.db"), "nested data")

	cleared, err := CheckAndMigrateCache(cacheDir)
	require.NoError(t, err)
	assert.True(t, cleared)

	_, err = os.Stat(subDir)
	assert.True(t, os.IsNotExist(err), "Subdirectories should be deleted")
}

func TestCheckAndMigrateCache_CreatesMissingDirectory(t *testing.T) {
	cacheDir := filepath.Join(t.TempDir(), "does", "not", "exist")

	cleared, err := CheckAndMigrateCache(cacheDir)
	require.NoError(t, err)
	assert.True(t, cleared)

	cleared, err = CheckAndMigrateCache(cacheDir)
	require.NoError(t, err)
	assert.False(t, cleared)
}
