package indexer

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

var defaultSkipDirs = map[string]bool{
	"node_modules": true,
	"var":          true,
	"vendor-bin":   true,
	"cache":        true,
	".git":         true,
	".github":      true,
	".gitlab":      true,
	".idea":        true,
	".vscode":      true,
	"public":       true,
}

const watchDebounce = 200 * time.Millisecond

// PathFilter decides which project relative paths (slash separated) are never scanned
type PathFilter interface {
	IsIgnored(relPath string) bool
}

// FileState is the size and modification time a file had when it was last indexed
type FileState struct {
	Path    string `msgpack:"path"`
	Size    int64  `msgpack:"size"`
	ModTime int64  `msgpack:"mtime"`
}

func stateOf(path string, info os.FileInfo) FileState {
	return FileState{Path: path, Size: info.Size(), ModTime: info.ModTime().UnixNano()}
}

// FileScanner scans the project for PHP files, feeds changed files to the registered
// indexers and optionally watches the project for changes
type FileScanner struct {
	projectRoot string
	states      *DataIndexer[FileState]
	filter      PathFilter
	indexer     []Indexer

	watcher    *fsnotify.Watcher
	watcherCtx context.Context
	cancel     context.CancelFunc
	watcherWg  sync.WaitGroup
	onUpdate   func(changed []string)
}

// NewFileScanner creates a file scanner keeping its file states in cacheDir. filter may be nil.
func NewFileScanner(projectRoot, cacheDir string, filter PathFilter) (*FileScanner, error) {
	states, err := NewDataIndexer[FileState](filepath.Join(cacheDir, "file_states.db"))
	if err != nil {
		return nil, fmt.Errorf("failed to open file state store: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &FileScanner{
		projectRoot: projectRoot,
		states:      states,
		filter:      filter,
		watcherCtx:  ctx,
		cancel:      cancel,
	}, nil
}

// SetOnUpdate registers a callback receiving the files that were (re)indexed or removed
func (fs *FileScanner) SetOnUpdate(onUpdate func(changed []string)) {
	fs.onUpdate = onUpdate
}

func (fs *FileScanner) AddIndexer(indexer Indexer) {
	fs.indexer = append(fs.indexer, indexer)
}

// skipped reports whether a path lies in a skipped directory or is ignored by the filter
func (fs *FileScanner) skipped(path string) bool {
	relPath, err := filepath.Rel(fs.projectRoot, path)
	if err != nil {
		return false
	}
	for _, part := range strings.Split(relPath, string(os.PathSeparator)) {
		if defaultSkipDirs[part] {
			return true
		}
	}
	return fs.filter != nil && relPath != "." && fs.filter.IsIgnored(filepath.ToSlash(relPath))
}

func isScannedFile(path string) bool {
	if strings.HasSuffix(path, ".phar.php") {
		return false
	}
	return slices.Contains(scannedFileTypes, strings.ToLower(filepath.Ext(path)))
}

// ProjectFiles lists every scanned file below the project root
func (fs *FileScanner) ProjectFiles() ([]string, error) {
	var files []string

	err := filepath.Walk(fs.projectRoot, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // Skip files we can't access
		}

		if fs.skipped(path) {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if !info.IsDir() && isScannedFile(path) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk project directory: %w", err)
	}

	return files, nil
}

// IndexAll indexes every changed file of the project
func (fs *FileScanner) IndexAll(ctx context.Context) error {
	files, err := fs.ProjectFiles()
	if err != nil {
		return err
	}

	log.Printf("Found %d files to index", len(files))

	startTime := time.Now()

	if err := fs.IndexFiles(ctx, files); err != nil {
		return fmt.Errorf("failed to index files: %w", err)
	}

	log.Printf("Indexing took %s", time.Since(startTime))

	return nil
}

func (fs *FileScanner) knownStates() map[string]FileState {
	known := make(map[string]FileState)
	states, err := fs.states.GetAllValues()
	if err != nil {
		log.Printf("Error loading file states, reindexing everything: %v", err)
		return known
	}
	for _, state := range states {
		known[state.Path] = state
	}
	return known
}

// fileNeedsIndexing compares a file against its recorded state and reads it when it changed
func fileNeedsIndexing(path string, known map[string]FileState) (bool, []byte, os.FileInfo, error) {
	info, err := os.Stat(path)
	if err != nil {
		return false, nil, nil, err
	}

	if stored, ok := known[path]; ok && stored == stateOf(path, info) {
		return false, nil, info, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return false, nil, info, err
	}

	return true, content, info, nil
}

// RemoveFiles removes multiple files from the indexers and forgets their states
func (fs *FileScanner) RemoveFiles(ctx context.Context, paths []string) error {
	if err := fs.removeFilesFromIndexers(paths); err != nil {
		return err
	}

	if err := fs.states.BatchDeleteByFilePaths(paths); err != nil {
		return err
	}

	if fs.onUpdate != nil {
		fs.onUpdate(paths)
	}

	return nil
}

func (fs *FileScanner) removeFilesFromIndexers(paths []string) error {
	for _, indexer := range fs.indexer {
		if err := indexer.RemovedFiles(paths); err != nil {
			return fmt.Errorf("indexer %s: %w", indexer.ID(), err)
		}
	}
	return nil
}

func (fs *FileScanner) updateFileStates(files []fileWork) error {
	batch := make(map[string]map[string]FileState, len(files))
	for _, file := range files {
		batch[file.path] = map[string]FileState{file.path: stateOf(file.path, file.info)}
	}
	return fs.states.BatchSaveItems(batch)
}

type fileWork struct {
	path    string
	content []byte
	info    os.FileInfo
}

// IndexFiles processes multiple files in parallel. Files whose size and modification time
// did not change since they were last indexed are skipped.
func (fs *FileScanner) IndexFiles(ctx context.Context, files []string) error {
	if len(files) == 0 {
		return nil
	}

	files = slices.DeleteFunc(slices.Clone(files), fs.skipped)
	known := fs.knownStates()

	workerCount := min(runtime.NumCPU()+2, 16)

	fileChan := make(chan string, 100)
	errChan := make(chan error, len(files))

	var (
		wg        sync.WaitGroup
		indexedMu sync.Mutex
		indexed   []string
	)

	for i := 0; i < workerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			parsers := CreateTreesitterParsers()
			defer CloseTreesitterParsers(parsers)

			const batchSize = 50
			batch := make([]fileWork, 0, batchSize)

			processBatch := func(items []fileWork) {
				if len(items) == 0 {
					return
				}

				paths := make([]string, 0, len(items))
				for _, item := range items {
					paths = append(paths, item.path)
				}

				if err := fs.removeFilesFromIndexers(paths); err != nil {
					errChan <- err
					return
				}

				for _, item := range items {
					parser := parsers[strings.ToLower(filepath.Ext(item.path))]
					if parser == nil {
						errChan <- fmt.Errorf("no parser found for %s", item.path)
						continue
					}

					tree := parser.Parse(item.content, nil)

					for _, indexer := range fs.indexer {
						if err := indexer.Index(item.path, tree.RootNode(), item.content); err != nil {
							errChan <- fmt.Errorf("indexer %s: %w", indexer.ID(), err)
						}
					}

					tree.Close()
				}

				if err := fs.updateFileStates(items); err != nil {
					errChan <- err
				}

				indexedMu.Lock()
				indexed = append(indexed, paths...)
				indexedMu.Unlock()
			}

			for path := range fileChan {
				needsIndexing, content, info, err := fileNeedsIndexing(path, known)
				if err != nil || !needsIndexing {
					// unreadable files are skipped to reduce noise
					continue
				}

				batch = append(batch, fileWork{
					path:    path,
					content: content,
					info:    info,
				})
				if len(batch) >= batchSize {
					processBatch(batch)
					batch = batch[:0]
				}
			}

			processBatch(batch)
		}()
	}

	var cancelled error
send:
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			cancelled = err
			break
		}
		select {
		case <-ctx.Done():
			cancelled = ctx.Err()
			break send
		case fileChan <- path:
		}
	}
	close(fileChan)

	wg.Wait()
	close(errChan)

	for err := range errChan {
		log.Printf("Error processing file: %v", err)
	}

	if fs.onUpdate != nil && len(indexed) > 0 {
		slices.Sort(indexed)
		fs.onUpdate(indexed)
	}

	return cancelled
}

// ClearHashes clears the indexers and all file states, forcing a full reindex
func (fs *FileScanner) ClearHashes() error {
	for _, indexer := range fs.indexer {
		if err := indexer.Clear(); err != nil {
			return err
		}
	}

	return fs.states.Clear()
}

// StartWatcher starts watching for file changes in the project directory
func (fs *FileScanner) StartWatcher() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}

	fs.watcher = watcher
	fs.watcherWg.Add(1)

	go func() {
		defer fs.watcherWg.Done()
		defer func() { _ = watcher.Close() }()

		// Use a debounce mechanism to avoid processing the same file multiple times
		pendingAdds := make(map[string]bool)
		pendingRemoves := make(map[string]bool)
		debounceTimer := time.NewTimer(time.Hour)
		debounceTimer.Stop()

		resetTimer := func() {
			if !debounceTimer.Stop() {
				select {
				case <-debounceTimer.C:
				default:
				}
			}
			debounceTimer.Reset(watchDebounce)
		}

		processChanges := func() {
			if len(pendingAdds) > 0 {
				filesToAdd := keysOf(pendingAdds)
				pendingAdds = make(map[string]bool)

				log.Printf("Processing %d changed/added files", len(filesToAdd))
				if err := fs.IndexFiles(fs.watcherCtx, filesToAdd); err != nil {
					log.Printf("Error indexing files: %v", err)
				}
			}

			if len(pendingRemoves) > 0 {
				filesToRemove := keysOf(pendingRemoves)
				pendingRemoves = make(map[string]bool)

				log.Printf("Processing %d deleted files", len(filesToRemove))
				if err := fs.RemoveFiles(fs.watcherCtx, filesToRemove); err != nil {
					log.Printf("Error removing files: %v", err)
				}
			}
		}

		for {
			select {
			case <-fs.watcherCtx.Done():
				return

			case event, ok := <-watcher.Events:
				if !ok {
					return
				}

				if fs.skipped(event.Name) {
					continue
				}

				fileInfo, err := os.Stat(event.Name)
				if err != nil {
					// File might have been deleted
					if event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 && isScannedFile(event.Name) {
						pendingRemoves[event.Name] = true
						delete(pendingAdds, event.Name)
						resetTimer()
					}
					continue
				}

				if fileInfo.IsDir() {
					if event.Op&fsnotify.Create != 0 {
						if err := fs.addDirectoryToWatcher(event.Name); err != nil {
							log.Printf("Error adding directory to watcher: %v", err)
						}
					}
					continue
				}

				if !isScannedFile(event.Name) {
					continue
				}

				if event.Op&(fsnotify.Create|fsnotify.Write) != 0 {
					pendingAdds[event.Name] = true
					delete(pendingRemoves, event.Name)
					resetTimer()
				}

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Printf("File watcher error: %v", err)

			case <-debounceTimer.C:
				processChanges()
			}
		}
	}()

	return fs.addDirectoryToWatcher(fs.projectRoot)
}

func keysOf(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	return keys
}

// StopWatcher stops the file watcher
func (fs *FileScanner) StopWatcher() {
	if fs.watcher != nil {
		fs.cancel()
		fs.watcherWg.Wait()
		fs.watcher = nil
	}
}

// addDirectoryToWatcher recursively adds a directory and its subdirectories to the watcher
func (fs *FileScanner) addDirectoryToWatcher(dir string) error {
	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // Skip files/dirs we can't access
		}

		if !info.IsDir() {
			return nil
		}

		if fs.skipped(path) {
			return filepath.SkipDir
		}

		if err := fs.watcher.Add(path); err != nil {
			log.Printf("Error watching directory %s: %v", path, err)
		}

		return nil
	})
}

// Close stops the file watcher and closes the state store and all indexers
func (fs *FileScanner) Close() error {
	fs.StopWatcher()

	var firstErr error
	if err := fs.states.Close(); err != nil {
		firstErr = err
	}

	for _, indexer := range fs.indexer {
		if err := indexer.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}
