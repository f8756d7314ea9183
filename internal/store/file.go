package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"companion/internal/logging"
)

const fileCacheTTL = 5 * time.Minute

// FileStore keeps one <key>.json file per record under a base directory.
// Writes are atomic (temp file + rename) and serialized per key.
type FileStore struct {
	baseDir string

	fileLocks sync.Map // key -> *sync.RWMutex

	cacheMu sync.RWMutex
	cache   map[string]fileCacheEntry

	watcher *watcher
	logger  *zap.Logger
}

type fileCacheEntry struct {
	data    []byte
	loaded  time.Time
}

// NewFileStore creates the base directory if needed.
func NewFileStore(baseDir string) (*FileStore, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &FileStore{
		baseDir: baseDir,
		cache:   make(map[string]fileCacheEntry),
		logger:  logging.Named("store"),
	}, nil
}

// Watch starts invalidating cached records when their files change on disk
// (external edits to character data). Stopped by Close.
func (fs *FileStore) Watch() error {
	if fs.watcher != nil {
		return nil
	}
	w, err := newWatcher(fs.baseDir, fs.invalidate, fs.logger)
	if err != nil {
		return err
	}
	fs.watcher = w
	return nil
}

func (fs *FileStore) lockFor(key string) *sync.RWMutex {
	value, _ := fs.fileLocks.LoadOrStore(key, &sync.RWMutex{})
	return value.(*sync.RWMutex)
}

func (fs *FileStore) pathFor(key string) string {
	return filepath.Join(fs.baseDir, key+".json")
}

// Load reads the record for key, serving from the short-lived cache when the
// on-disk file has not been invalidated.
func (fs *FileStore) Load(key string, v any) error {
	lock := fs.lockFor(key)
	lock.RLock()
	defer lock.RUnlock()

	fs.cacheMu.RLock()
	entry, ok := fs.cache[key]
	fs.cacheMu.RUnlock()
	if ok && time.Since(entry.loaded) < fileCacheTTL {
		return json.Unmarshal(entry.data, v)
	}

	data, err := os.ReadFile(fs.pathFor(key))
	if err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to read record %s: %w", key, err)
	}

	fs.cacheMu.Lock()
	fs.cache[key] = fileCacheEntry{data: data, loaded: time.Now()}
	fs.cacheMu.Unlock()

	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse record %s: %w", key, err)
	}
	return nil
}

// Save writes the record atomically: marshal, write a temp file, rename.
func (fs *FileStore) Save(key string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal record %s: %w", key, err)
	}

	lock := fs.lockFor(key)
	lock.Lock()
	defer lock.Unlock()

	fullPath := fs.pathFor(key)
	tempPath := fullPath + ".tmp"

	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp record %s: %w", key, err)
	}
	if err := os.Rename(tempPath, fullPath); err != nil {
		if removeErr := os.Remove(tempPath); removeErr != nil {
			fs.logger.Warn("failed to clean up temp file",
				zap.String("path", tempPath), zap.Error(removeErr))
		}
		return fmt.Errorf("failed to save record %s: %w", key, err)
	}

	fs.cacheMu.Lock()
	fs.cache[key] = fileCacheEntry{data: data, loaded: time.Now()}
	fs.cacheMu.Unlock()

	return nil
}

// Delete removes the record file for key.
func (fs *FileStore) Delete(key string) error {
	lock := fs.lockFor(key)
	lock.Lock()
	defer lock.Unlock()

	fs.invalidate(key)

	if err := os.Remove(fs.pathFor(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete record %s: %w", key, err)
	}
	return nil
}

// Keys lists stored keys with the given prefix.
func (fs *FileStore) Keys(prefix string) ([]string, error) {
	entries, err := os.ReadDir(fs.baseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}

	var keys []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		key := strings.TrimSuffix(name, ".json")
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

// Close stops the watcher, if started.
func (fs *FileStore) Close() error {
	if fs.watcher != nil {
		return fs.watcher.close()
	}
	return nil
}

func (fs *FileStore) invalidate(key string) {
	fs.cacheMu.Lock()
	delete(fs.cache, key)
	fs.cacheMu.Unlock()
}
