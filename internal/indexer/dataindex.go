package indexer

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/vmihailenco/msgpack/v5"
	_ "modernc.org/sqlite"
)

// DataIndexer stores msgpack encoded values of one type in SQLite, keyed by a lookup key
// and owned by the file they were extracted from.
type DataIndexer[T any] struct {
	db     *sql.DB
	mu     sync.RWMutex
	dbPath string
}

// NewDataIndexer opens or creates the database at dbPath
func NewDataIndexer[T any](dbPath string) (*DataIndexer[T], error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create db directory: %w", err)
	}

	// _txlock=immediate takes the write lock at BEGIN and avoids SQLITE_BUSY upgrades
	db, err := sql.Open("sqlite", dbPath+"?_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA auto_vacuum=INCREMENTAL",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to set pragma %s: %w", pragma, err)
		}
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS data (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			key TEXT NOT NULL,
			value BLOB NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_data_key ON data(key);

		CREATE TABLE IF NOT EXISTS files (
			file_path TEXT NOT NULL,
			data_id INTEGER NOT NULL,
			PRIMARY KEY (file_path, data_id),
			FOREIGN KEY (data_id) REFERENCES data(id) ON DELETE CASCADE
		);
		CREATE INDEX IF NOT EXISTS idx_files_path ON files(file_path);
	`)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize tables: %w", err)
	}

	return &DataIndexer[T]{
		db:     db,
		dbPath: dbPath,
	}, nil
}

// SaveItem adds one item for a file without touching the file's other items
func (idx *DataIndexer[T]) SaveItem(filePath, key string, item T) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	return idx.inTx(func(tx *sql.Tx) error {
		return insertItem(tx, filePath, key, item)
	})
}

// BatchSaveItems replaces everything stored for each given file with the given items
func (idx *DataIndexer[T]) BatchSaveItems(items map[string]map[string]T) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	return idx.inTx(func(tx *sql.Tx) error {
		for filePath, keyItems := range items {
			if err := deleteFile(tx, filePath); err != nil {
				return err
			}
			for key, item := range keyItems {
				if err := insertItem(tx, filePath, key, item); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// GetValues returns all items with the given key
func (idx *DataIndexer[T]) GetValues(key string) ([]T, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	rows, err := idx.db.Query("SELECT value FROM data WHERE key = ? ORDER BY id", key)
	if err != nil {
		return nil, fmt.Errorf("failed to query data: %w", err)
	}
	return scanValues[T](rows)
}

// GetAllValues returns every stored item
func (idx *DataIndexer[T]) GetAllValues() ([]T, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	rows, err := idx.db.Query("SELECT value FROM data ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to query data: %w", err)
	}
	return scanValues[T](rows)
}

// GetValuesByPath returns the items owned by one file
func (idx *DataIndexer[T]) GetValuesByPath(filePath string) ([]T, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	rows, err := idx.db.Query(`
		SELECT d.value FROM data d
		INNER JOIN files f ON d.id = f.data_id
		WHERE f.file_path = ?
		ORDER BY d.id
	`, filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to query data: %w", err)
	}
	return scanValues[T](rows)
}

// BatchDeleteByFilePaths deletes all items owned by the given files in a single transaction
func (idx *DataIndexer[T]) BatchDeleteByFilePaths(filePaths []string) error {
	if len(filePaths) == 0 {
		return nil
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	return idx.inTx(func(tx *sql.Tx) error {
		for _, filePath := range filePaths {
			if err := deleteFile(tx, filePath); err != nil {
				return err
			}
		}
		return nil
	})
}

// Count returns the number of stored items
func (idx *DataIndexer[T]) Count() (int, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	var count int
	if err := idx.db.QueryRow("SELECT COUNT(*) FROM data").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count data: %w", err)
	}
	return count, nil
}

func (idx *DataIndexer[T]) Clear() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if _, err := idx.db.Exec("DELETE FROM files; DELETE FROM data;"); err != nil {
		return fmt.Errorf("failed to clear data: %w", err)
	}

	_, err := idx.db.Exec("PRAGMA incremental_vacuum")
	return err
}

// Close checkpoints the WAL and closes the database
func (idx *DataIndexer[T]) Close() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	_, _ = idx.db.Exec("PRAGMA optimize")
	_, _ = idx.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")

	return idx.db.Close()
}

func (idx *DataIndexer[T]) inTx(fn func(tx *sql.Tx) error) error {
	tx, err := idx.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func insertItem[T any](tx *sql.Tx, filePath, key string, item T) error {
	data, err := msgpack.Marshal(item)
	if err != nil {
		return fmt.Errorf("failed to marshal item: %w", err)
	}

	result, err := tx.Exec("INSERT INTO data (key, value) VALUES (?, ?)", key, data)
	if err != nil {
		return fmt.Errorf("failed to save item: %w", err)
	}

	dataID, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	if _, err := tx.Exec("INSERT INTO files (file_path, data_id) VALUES (?, ?)", filePath, dataID); err != nil {
		return fmt.Errorf("failed to save file association: %w", err)
	}
	return nil
}

func deleteFile(tx *sql.Tx, filePath string) error {
	_, err := tx.Exec(`
		DELETE FROM data WHERE id IN (
			SELECT data_id FROM files WHERE file_path = ?
		)
	`, filePath)
	if err != nil {
		return fmt.Errorf("failed to delete data: %w", err)
	}

	if _, err := tx.Exec("DELETE FROM files WHERE file_path = ?", filePath); err != nil {
		return fmt.Errorf("failed to delete file associations: %w", err)
	}
	return nil
}

func scanValues[T any](rows *sql.Rows) ([]T, error) {
	defer func() { _ = rows.Close() }()

	var items []T
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		if len(data) == 0 {
			continue
		}

		var item T
		if err := msgpack.Unmarshal(data, &item); err != nil {
			return nil, fmt.Errorf("failed to unmarshal item: %w", err)
		}
		items = append(items, item)
	}

	return items, rows.Err()
}
