package store

import (
	"fmt"

	"companion/internal/config"
)

// Open builds the record store selected by configuration.
func Open(cfg config.StorageConfig) (RecordStore, error) {
	switch cfg.Driver {
	case "", "file":
		fs, err := NewFileStore(cfg.DataDir)
		if err != nil {
			return nil, err
		}
		if cfg.WatchFiles {
			if err := fs.Watch(); err != nil {
				fs.Close()
				return nil, fmt.Errorf("failed to start file watcher: %w", err)
			}
		}
		return fs, nil
	case "sqlite":
		return NewSQLiteStore(cfg.SQLitePath)
	case "redis":
		return NewRedisStore(cfg.RedisAddr, cfg.RedisDB, cfg.Namespace)
	}
	return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
}
