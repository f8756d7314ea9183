package store

import (
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// watcher invalidates cached records when their backing files change outside
// the process (manual edits, external tooling).
type watcher struct {
	fw   *fsnotify.Watcher
	done chan struct{}
}

func newWatcher(dir string, invalidate func(key string), logger *zap.Logger) (*watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, err
	}

	w := &watcher{fw: fw, done: make(chan struct{})}

	go func() {
		defer close(w.done)
		for {
			select {
			case event, ok := <-fw.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
					continue
				}
				name := filepath.Base(event.Name)
				if !strings.HasSuffix(name, ".json") {
					continue
				}
				key := strings.TrimSuffix(name, ".json")
				invalidate(key)
				logger.Debug("cache invalidated by file event",
					zap.String("key", key), zap.String("op", event.Op.String()))
			case err, ok := <-fw.Errors:
				if !ok {
					return
				}
				logger.Warn("file watcher error", zap.Error(err))
			}
		}
	}()

	return w, nil
}

func (w *watcher) close() error {
	err := w.fw.Close()
	<-w.done
	return err
}
